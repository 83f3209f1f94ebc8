package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/rbac/rbactest"
)

func newCatalogCLI(t *testing.T, store *rbactest.Store) *CatalogOpsCLI {
	t.Helper()
	provisioner := rbac.NewProvisioner(store, rbac.ProvisionerConfig{})
	cli, err := NewCatalogOpsCLI(rbac.NewService(store, provisioner, []string{"hrms", "lms"}))
	require.NoError(t, err)
	return cli
}

func TestValidateCommandJSONGaps(t *testing.T) {
	store := rbactest.NewStore()
	store.Seed(rbac.NewPermissionSpec("hrms", rbac.ActionView, ""))
	cli := newCatalogCLI(t, store)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.ValidateCommand(context.Background(), CatalogOptions{JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Equal(t, 10, exitCode)
	require.Empty(t, stderr.String())

	var summary CatalogSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.False(t, summary.OK)
	require.Len(t, summary.Missing, 7)
	require.Equal(t, 1, summary.Permissions)
	require.Equal(t, []string{"view"}, summary.Coverage[0].Present)
	require.Zero(t, store.CreateCalls())
}

func TestProvisionCommandJSONSuccess(t *testing.T) {
	store := rbactest.NewStore()
	cli := newCatalogCLI(t, store)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.ProvisionCommand(context.Background(), CatalogOptions{JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Zero(t, exitCode)
	require.Empty(t, stderr.String())

	var summary CatalogSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.True(t, summary.OK)
	require.Empty(t, summary.Missing)
	require.Equal(t, 8, summary.Permissions)
}

func TestProvisionCommandPartialFailure(t *testing.T) {
	store := rbactest.NewStore()
	store.CreateErr = map[string]error{"lms.update": errors.New("insert failed")}
	cli := newCatalogCLI(t, store)

	stdout := new(bytes.Buffer)
	exitCode := cli.ProvisionCommand(context.Background(), CatalogOptions{Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 10, exitCode)
	require.Contains(t, stdout.String(), "lms missing update")
	require.Contains(t, stdout.String(), "failed to create lms.update")
}

func TestProvisionCommandFatal(t *testing.T) {
	store := rbactest.NewStore()
	store.ListErr = errors.New("db down")
	cli := newCatalogCLI(t, store)

	stderr := new(bytes.Buffer)
	exitCode := cli.ProvisionCommand(context.Background(), CatalogOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "db down")
}
