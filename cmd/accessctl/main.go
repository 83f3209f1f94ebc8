// accessctl runs permission catalog maintenance from the command line.
//
//	accessctl migrate (up|down)
//	accessctl catalog validate [--json]
//	accessctl catalog provision [--json]
//	accessctl jobs trigger rbac:catalog_provision
//	accessctl jobs stats
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/odyssey-erp/odyssey-access/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-access/internal/app"
	"github.com/odyssey-erp/odyssey-access/internal/platform/db"
	"github.com/odyssey-erp/odyssey-access/internal/rbac"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var jsonOutput bool
	flagSet := pflag.NewFlagSet("accessctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.BoolVar(&jsonOutput, "json", false, "print machine readable output")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}
	rest := flagSet.Args()
	if len(rest) < 2 {
		printUsage(stderr)
		return 2
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}

	switch rest[0] {
	case "migrate":
		return runMigrate(cfg, rest[1], stdout, stderr)
	case "catalog":
		return runCatalog(ctx, cfg, rest[1], cli.CatalogOptions{JSONOutput: jsonOutput, Stdout: stdout, Stderr: stderr})
	case "jobs":
		return runJobs(ctx, cfg, rest[1:], stdout, stderr)
	}
	printUsage(stderr)
	return 2
}

func runCatalog(ctx context.Context, cfg *app.Config, command string, opts cli.CatalogOptions) int {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 4})
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "connect database: %v\n", err)
		return 1
	}
	defer pool.Close()

	repo := rbac.NewRepository(pool)
	provisioner := rbac.NewProvisioner(repo, rbac.ProvisionerConfig{
		Scope:       cfg.RBACPermissionScope,
		Concurrency: cfg.RBACProvisionConcurrency,
		Logger:      app.NewLogger(cfg),
	})
	ops, err := cli.NewCatalogOpsCLI(rbac.NewService(repo, provisioner, cfg.RBACModules))
	if err != nil {
		_, _ = fmt.Fprintln(opts.Stderr, err)
		return 1
	}

	switch command {
	case "validate":
		return ops.ValidateCommand(ctx, opts)
	case "provision":
		return ops.ProvisionCommand(ctx, opts)
	}
	_, _ = fmt.Fprintf(opts.Stderr, "unknown catalog command %q\n", command)
	return 2
}

func runMigrate(cfg *app.Config, direction string, stdout, stderr io.Writer) int {
	var err error
	switch direction {
	case "up":
		err = db.MigrateUp(cfg.PGDSN)
	case "down":
		err = db.MigrateDown(cfg.PGDSN)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown migrate direction %q\n", direction)
		return 2
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "migrate %s: %v\n", direction, err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "migrate %s: done\n", direction)
	return 0
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	defer func() {
		_ = jobsCLI.Close()
	}()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			_, _ = fmt.Fprintln(stderr, "jobs trigger: task name is required")
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "enqueued %s (%s)\n", info.ID, info.Type)
		return 0
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return 0
	}
	_, _ = fmt.Fprintf(stderr, "unknown jobs command %q\n", args[0])
	return 2
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: accessctl [--json] migrate (up|down) | catalog (validate|provision) | jobs (trigger <task>|stats)")
}
