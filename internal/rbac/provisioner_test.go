package rbac_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/rbac/rbactest"
)

type countingObserver struct {
	mu      sync.Mutex
	created []string
	failed  []string
}

func (o *countingObserver) PermissionCreated(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created = append(o.created, name)
}

func (o *countingObserver) PermissionFailed(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, name)
}

func TestEnsureCatalogCreatesModuleActionMatrix(t *testing.T) {
	store := rbactest.NewStore()
	observer := &countingObserver{}
	provisioner := rbac.NewProvisioner(store, rbac.ProvisionerConfig{Scope: "global", Observer: observer})

	catalog, err := provisioner.EnsureCatalog(context.Background(), []string{"hrms", "lms"})
	require.NoError(t, err)
	require.Equal(t, 8, catalog.Len())
	assert.Empty(t, catalog.Missing([]string{"hrms", "lms"}))
	assert.Len(t, observer.created, 8)

	for _, module := range []string{"hrms", "lms"} {
		for _, action := range rbac.Actions() {
			id, ok := catalog.PermissionID(module, action)
			require.True(t, ok, "%s.%s", module, action)
			p, _ := catalog.ByID(id)
			assert.Equal(t, "global", p.Scope)
		}
	}
}

func TestEnsureCatalogIsIdempotent(t *testing.T) {
	store := rbactest.NewStore()
	provisioner := rbac.NewProvisioner(store, rbac.ProvisionerConfig{})

	first, err := provisioner.EnsureCatalog(context.Background(), []string{"hrms", "lms"})
	require.NoError(t, err)
	calls := store.CreateCalls()

	second, err := provisioner.EnsureCatalog(context.Background(), []string{"hrms", "lms"})
	require.NoError(t, err)
	assert.Equal(t, calls, store.CreateCalls())
	assert.Equal(t, first.All(), second.All())
}

func TestEnsureCatalogOnlyCreatesMissing(t *testing.T) {
	store := rbactest.NewStore()
	ids := store.Seed(rbac.NewPermissionSpec("hrms", rbac.ActionView, ""))
	provisioner := rbac.NewProvisioner(store, rbac.ProvisionerConfig{})

	catalog, err := provisioner.EnsureCatalog(context.Background(), []string{"hrms"})
	require.NoError(t, err)
	assert.Equal(t, 3, store.CreateCalls())
	id, ok := catalog.PermissionID("hrms", rbac.ActionView)
	require.True(t, ok)
	assert.Equal(t, ids[0], id)
}

func TestEnsureCatalogPartialFailure(t *testing.T) {
	store := rbactest.NewStore()
	store.CreateErr = map[string]error{"lms.delete": errors.New("insert failed")}
	observer := &countingObserver{}
	provisioner := rbac.NewProvisioner(store, rbac.ProvisionerConfig{Observer: observer})

	catalog, err := provisioner.EnsureCatalog(context.Background(), []string{"hrms", "lms"})
	require.Error(t, err)
	var provErr *rbac.ProvisionError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, []string{"lms.delete"}, provErr.Names())

	require.NotNil(t, catalog)
	assert.Equal(t, 7, catalog.Len())
	assert.Equal(t, []string{"lms.delete"}, catalog.Missing([]string{"hrms", "lms"}))
	assert.Equal(t, []string{"lms.delete"}, observer.failed)

	store.CreateErr = nil
	catalog, err = provisioner.EnsureCatalog(context.Background(), []string{"hrms", "lms"})
	require.NoError(t, err)
	assert.Equal(t, 8, catalog.Len())
}

func TestEnsureCatalogRefetchFailureIsFatal(t *testing.T) {
	store := rbactest.NewStore()
	store.ListErrAfter = 1
	provisioner := rbac.NewProvisioner(store, rbac.ProvisionerConfig{})

	catalog, err := provisioner.EnsureCatalog(context.Background(), []string{"hrms"})
	require.Error(t, err)
	assert.Nil(t, catalog)
	var provErr *rbac.ProvisionError
	assert.False(t, errors.As(err, &provErr))
	assert.Contains(t, err.Error(), "refetch")
}

func TestEnsureCatalogInitialListFailure(t *testing.T) {
	store := rbactest.NewStore()
	store.ListErr = errors.New("db down")
	provisioner := rbac.NewProvisioner(store, rbac.ProvisionerConfig{})

	catalog, err := provisioner.EnsureCatalog(context.Background(), []string{"hrms"})
	require.Error(t, err)
	assert.Nil(t, catalog)
	assert.Zero(t, store.CreateCalls())
}

// racingStore reports every creation as already present, as if another
// instance inserted the row between the list and the insert.
type racingStore struct {
	*rbactest.Store
}

func (s racingStore) CreatePermissionIfAbsent(ctx context.Context, spec rbac.PermissionSpec) (bool, error) {
	s.Seed(spec)
	return false, nil
}

func TestEnsureCatalogConcurrentCreatorIsNotAnError(t *testing.T) {
	store := racingStore{Store: rbactest.NewStore()}
	observer := &countingObserver{}
	provisioner := rbac.NewProvisioner(store, rbac.ProvisionerConfig{Observer: observer})

	catalog, err := provisioner.EnsureCatalog(context.Background(), []string{"hrms"})
	require.NoError(t, err)
	assert.Equal(t, 4, catalog.Len())
	assert.Empty(t, observer.created)
	assert.Empty(t, observer.failed)
}

func TestEnsureCatalogReportsSilentlySkippedCreate(t *testing.T) {
	store := rbactest.NewStore()
	store.SkipCreate = map[string]bool{"hrms.view": true}
	observer := &countingObserver{}
	provisioner := rbac.NewProvisioner(store, rbac.ProvisionerConfig{Observer: observer})

	catalog, err := provisioner.EnsureCatalog(context.Background(), []string{"hrms"})
	var provErr *rbac.ProvisionError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, []string{"hrms.view"}, provErr.Names())
	assert.ErrorIs(t, err, rbac.ErrStillMissing)
	assert.Equal(t, []string{"hrms.view"}, observer.failed)

	require.NotNil(t, catalog)
	_, ok := catalog.PermissionID("hrms", rbac.ActionView)
	assert.False(t, ok)
	assert.Equal(t, 3, catalog.Len())
}

func TestServiceEnsureCatalogUsesConfiguredModules(t *testing.T) {
	store := rbactest.NewStore()
	provisioner := rbac.NewProvisioner(store, rbac.ProvisionerConfig{})
	service := rbac.NewService(store, provisioner, []string{" HRMS", "hrms", "lms"})

	assert.Equal(t, []string{"hrms", "lms"}, service.Modules())

	catalog, err := service.EnsureCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, catalog.Len())

	listed, err := service.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.All(), listed.All())
}

// heldListStore holds the first ListPermissions call until release is closed
// and reports the context error seen by the store at that point.
type heldListStore struct {
	*rbactest.Store
	once    sync.Once
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (s *heldListStore) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	s.once.Do(func() {
		close(s.started)
		<-s.release
		s.ctxErr <- ctx.Err()
	})
	return s.Store.ListPermissions(ctx)
}

func TestServiceSharedCatalogReadOutlivesFirstCaller(t *testing.T) {
	store := &heldListStore{
		Store:   rbactest.NewStore(),
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
	service := rbac.NewService(store, rbac.NewProvisioner(store, rbac.ProvisionerConfig{}), []string{"hrms"})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := service.Catalog(ctx)
		firstErr <- err
	}()
	<-store.started
	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(store.release)
	assert.NoError(t, <-store.ctxErr)

	catalog, err := service.Catalog(context.Background())
	require.NoError(t, err)
	assert.Zero(t, catalog.Len())
}
