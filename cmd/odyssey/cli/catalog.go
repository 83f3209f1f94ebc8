package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/odyssey-erp/odyssey-access/internal/rbac"
)

// CatalogSource reads and provisions the permission catalog.
type CatalogSource interface {
	Catalog(ctx context.Context) (*rbac.Catalog, error)
	EnsureCatalog(ctx context.Context) (*rbac.Catalog, error)
	Modules() []string
}

// CatalogOpsCLI offers operational helpers for the permission catalog.
type CatalogOpsCLI struct {
	source CatalogSource
}

// NewCatalogOpsCLI constructs a new helper instance.
func NewCatalogOpsCLI(source CatalogSource) (*CatalogOpsCLI, error) {
	if source == nil {
		return nil, errors.New("catalog cli: source is required")
	}
	return &CatalogOpsCLI{source: source}, nil
}

// CatalogOptions defines the flags shared by catalog commands.
type CatalogOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// CatalogSummary describes the JSON response of catalog commands.
type CatalogSummary struct {
	OK          bool                `json:"ok"`
	Modules     []string            `json:"modules"`
	Missing     []string            `json:"missing"`
	Permissions int                 `json:"permissions"`
	Failures    []CatalogFailure    `json:"failures,omitempty"`
	Coverage    []CatalogModuleLine `json:"coverage"`
}

// CatalogFailure reports one permission that could not be created.
type CatalogFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// CatalogModuleLine reports which actions of a module are configured.
type CatalogModuleLine struct {
	Module  string   `json:"module"`
	Present []string `json:"present"`
	Missing []string `json:"missing"`
}

// ValidateCommand checks catalog coverage without writing. Exit code 10
// signals missing permissions.
func (c *CatalogOpsCLI) ValidateCommand(ctx context.Context, opts CatalogOptions) int {
	opts = withDefaults(opts)
	catalog, err := c.source.Catalog(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "catalog validate: %v\n", err)
		return 1
	}
	return c.report(opts, "catalog validate", catalog, nil)
}

// ProvisionCommand creates missing permissions and reports the outcome.
// A partial run exits with 10, a fatal one with 1.
func (c *CatalogOpsCLI) ProvisionCommand(ctx context.Context, opts CatalogOptions) int {
	opts = withDefaults(opts)
	catalog, err := c.source.EnsureCatalog(ctx)
	var provErr *rbac.ProvisionError
	if err != nil && !errors.As(err, &provErr) {
		_, _ = fmt.Fprintf(opts.Stderr, "catalog provision: %v\n", err)
		return 1
	}
	return c.report(opts, "catalog provision", catalog, provErr)
}

func (c *CatalogOpsCLI) report(opts CatalogOptions, command string, catalog *rbac.Catalog, provErr *rbac.ProvisionError) int {
	summary := buildCatalogSummary(c.source.Modules(), catalog, provErr)
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "%s: encode json: %v\n", command, err)
			return 1
		}
	} else {
		renderCatalogHuman(opts.Stdout, summary)
	}
	if !summary.OK {
		return 10
	}
	return 0
}

func buildCatalogSummary(modules []string, catalog *rbac.Catalog, provErr *rbac.ProvisionError) CatalogSummary {
	missing := catalog.Missing(modules)
	if missing == nil {
		missing = []string{}
	}
	coverage := make([]CatalogModuleLine, 0, len(modules))
	for _, module := range modules {
		line := CatalogModuleLine{Module: module, Present: []string{}, Missing: []string{}}
		for _, action := range rbac.Actions() {
			if _, ok := catalog.PermissionID(module, action); ok {
				line.Present = append(line.Present, string(action))
			} else {
				line.Missing = append(line.Missing, string(action))
			}
		}
		coverage = append(coverage, line)
	}
	summary := CatalogSummary{
		OK:          len(missing) == 0 && provErr == nil,
		Modules:     modules,
		Missing:     missing,
		Permissions: catalog.Len(),
		Coverage:    coverage,
	}
	if provErr != nil {
		for _, f := range provErr.Failures {
			summary.Failures = append(summary.Failures, CatalogFailure{Name: f.Name, Error: f.Err.Error()})
		}
	}
	return summary
}

func renderCatalogHuman(out io.Writer, summary CatalogSummary) {
	_, _ = fmt.Fprintf(out, "Permission catalog: %d permission(s), %d module(s)\n", summary.Permissions, len(summary.Modules))
	for _, line := range summary.Coverage {
		if len(line.Missing) == 0 {
			_, _ = fmt.Fprintf(out, " - %s ok\n", line.Module)
			continue
		}
		_, _ = fmt.Fprintf(out, " - %s missing %s\n", line.Module, strings.Join(line.Missing, ", "))
	}
	for _, f := range summary.Failures {
		_, _ = fmt.Fprintf(out, "failed to create %s: %s\n", f.Name, f.Error)
	}
	if summary.OK {
		_, _ = fmt.Fprintln(out, "All required permissions are present.")
	}
}

func withDefaults(opts CatalogOptions) CatalogOptions {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return opts
}
