// Package matrix implements the permission matrix editor: the in-memory
// working set of one operator session, seeded from the resolver and written
// back through the committer.
package matrix

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/roles"
	"github.com/odyssey-erp/odyssey-access/internal/users"
)

var (
	// ErrNotReady is returned before LoadInitialData has succeeded.
	ErrNotReady = errors.New("matrix: initial data not loaded")
	// ErrLoading is returned while the grant set of a new selection is being fetched.
	ErrLoading = errors.New("matrix: selection is loading")
	// ErrNoSelection is returned when no principal is selected.
	ErrNoSelection = errors.New("matrix: no principal selected")
	// ErrBlocked is returned when the selected principal could not be resolved.
	ErrBlocked = errors.New("matrix: editing blocked by resolution failure")
	// ErrStaleSelection is returned to a selection superseded while it was loading.
	ErrStaleSelection = errors.New("matrix: selection superseded")
	// ErrUnconfigured is returned for cells without a catalog entry.
	ErrUnconfigured = errors.New("matrix: permission not configured")
)

// CatalogProvider provisions and returns the catalog.
type CatalogProvider interface {
	EnsureCatalog(ctx context.Context) (*rbac.Catalog, error)
	Modules() []string
}

// PrincipalRegistry lists and builds principals.
type PrincipalRegistry interface {
	ListEligibleRoles(ctx context.Context) ([]roles.Role, error)
	ListUsers(ctx context.Context) ([]users.User, error)
	Principal(ctx context.Context, roleID, userID int64) (rbac.Principal, error)
}

// GrantResolver reads the stored grant record of a principal.
type GrantResolver interface {
	Record(ctx context.Context, principal rbac.Principal) (rbac.GrantRecord, error)
}

// GrantCommitter persists a whole grant set.
type GrantCommitter interface {
	Commit(ctx context.Context, catalog *rbac.Catalog, principal rbac.Principal, set rbac.GrantSet) error
}

// Deps are the collaborators of an Editor.
type Deps struct {
	Catalog   CatalogProvider
	Registry  PrincipalRegistry
	Resolver  GrantResolver
	Committer GrantCommitter
	Logger    *slog.Logger
}

// State is the complete session state of one editor.
type State struct {
	Ready   bool
	Catalog *rbac.Catalog
	Modules []string
	Roles   []roles.Role
	Users   []users.User
	// Warning carries a non-fatal provisioning failure.
	Warning string

	Selected rbac.Principal
	Working  rbac.GrantSet
	// baseline is the last seeded or persisted set; Dirty compares against it.
	baseline rbac.GrantSet
	// changed counts the IDs on which Working and baseline disagree.
	changed  int
	Override bool
	Dirty    bool
	Loading  bool
	Blocked  bool

	LastError string
	// Generation increases with every selection. Responses carrying an older
	// generation are discarded.
	Generation uint64
}

// Editor is the matrix editor of one operator session. Methods are safe for
// concurrent use; I/O happens outside the lock.
type Editor struct {
	mu     sync.Mutex
	deps   Deps
	logger *slog.Logger
	state  State
}

// NewEditor builds an Editor.
func NewEditor(deps Deps) *Editor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{deps: deps, logger: logger}
}

// LoadInitialData provisions the catalog and loads the principal lists. It
// must complete before selections so catalog lookups never race provisioning.
// A *rbac.ProvisionError is returned after loading finished; the editor is
// usable but some cells may render as unconfigured.
func (e *Editor) LoadInitialData(ctx context.Context) error {
	catalog, provErr := e.deps.Catalog.EnsureCatalog(ctx)
	if catalog == nil {
		return provErr
	}
	roleList, err := e.deps.Registry.ListEligibleRoles(ctx)
	if err != nil {
		return err
	}
	userList, err := e.deps.Registry.ListUsers(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Catalog = catalog
	e.state.Modules = e.deps.Catalog.Modules()
	e.state.Roles = roleList
	e.state.Users = userList
	e.state.Ready = true
	e.state.Warning = ""
	if provErr != nil {
		e.state.Warning = provErr.Error()
		e.logger.Warn("matrix catalog incomplete", slog.Any("error", provErr))
	}
	return provErr
}

// SelectPrincipal selects a role (userID == 0) or a user under a role,
// discarding the unsaved working set and reseeding it from the resolver.
func (e *Editor) SelectPrincipal(ctx context.Context, roleID, userID int64) error {
	e.mu.Lock()
	if !e.state.Ready {
		e.mu.Unlock()
		return ErrNotReady
	}
	e.state.Generation++
	gen := e.state.Generation
	e.state.Selected = nil
	e.state.Working = nil
	e.state.baseline = nil
	e.state.changed = 0
	e.state.Override = false
	e.state.Dirty = false
	e.state.Blocked = false
	e.state.LastError = ""
	e.state.Loading = true
	e.mu.Unlock()

	principal, err := e.deps.Registry.Principal(ctx, roleID, userID)
	var record rbac.GrantRecord
	if err == nil {
		record, err = e.deps.Resolver.Record(ctx, principal)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Generation != gen {
		return ErrStaleSelection
	}
	e.state.Loading = false
	if err != nil {
		e.state.LastError = operatorMessage(err)
		var resErr *rbac.ResolutionError
		if errors.As(err, &resErr) {
			e.state.Selected = principal
			e.state.Blocked = true
		}
		return err
	}
	e.state.Selected = principal
	e.state.Working = rbac.NewGrantSet(record.PermissionIDs...)
	e.state.baseline = e.state.Working.Clone()
	e.state.Override = record.Exists
	return nil
}

// Toggle flips permissionID in the working set and reports whether it is
// granted afterwards.
func (e *Editor) Toggle(permissionID int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.editableLocked(); err != nil {
		return false, err
	}
	if !e.state.Catalog.Has(permissionID) {
		return false, ErrUnconfigured
	}
	granted := e.state.Working.Toggle(permissionID)
	if granted == e.state.baseline.Has(permissionID) {
		e.state.changed--
	} else {
		e.state.changed++
	}
	e.state.Dirty = e.state.changed > 0
	return granted, nil
}

// ToggleCell flips the (module, action) cell.
func (e *Editor) ToggleCell(module string, action rbac.Action) (bool, error) {
	e.mu.Lock()
	catalog := e.state.Catalog
	e.mu.Unlock()
	id, ok := catalog.PermissionID(module, action)
	if !ok {
		return false, ErrUnconfigured
	}
	return e.Toggle(id)
}

// IsGranted reports whether permissionID is in the working set.
func (e *Editor) IsGranted(permissionID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Working.Has(permissionID)
}

// Revert discards unsaved toggles.
func (e *Editor) Revert() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.editableLocked(); err != nil {
		return err
	}
	e.state.Working = e.state.baseline.Clone()
	e.state.changed = 0
	e.state.Dirty = false
	return nil
}

// Save commits the working set for the selected principal. On failure the
// working set stays dirty so the operator can retry.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	if err := e.editableLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	gen := e.state.Generation
	principal := e.state.Selected
	catalog := e.state.Catalog
	snapshot := e.state.Working.Clone()
	e.mu.Unlock()

	err := e.deps.Committer.Commit(ctx, catalog, principal, snapshot)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Generation != gen {
		// The operator moved on; the write for the old principal stands.
		return err
	}
	if err != nil {
		e.state.LastError = operatorMessage(err)
		return err
	}
	e.state.LastError = ""
	e.state.baseline = snapshot
	e.state.Override = true
	e.state.changed = countChanged(e.state.Working, snapshot)
	e.state.Dirty = e.state.changed > 0
	return nil
}

// State returns a copy of the session state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state
	st.Working = e.state.Working.Clone()
	st.baseline = nil
	return st
}

// operatorMessage is the LastError shown to the operator. Storage failures
// are logged by the handler and summarised here.
func operatorMessage(err error) string {
	var (
		resErr    *rbac.ResolutionError
		commitErr *rbac.CommitError
	)
	switch {
	case errors.As(err, &resErr):
		return "grant set of " + resErr.Principal + " could not be loaded"
	case errors.As(err, &commitErr) && !errors.Is(err, rbac.ErrUnknownPermission):
		return "grant set of " + commitErr.Principal + " could not be saved"
	}
	return err.Error()
}

// countChanged returns the size of the symmetric difference of a and b.
func countChanged(a, b rbac.GrantSet) int {
	n := 0
	for id := range a {
		if !b.Has(id) {
			n++
		}
	}
	for id := range b {
		if !a.Has(id) {
			n++
		}
	}
	return n
}

func (e *Editor) editableLocked() error {
	switch {
	case !e.state.Ready:
		return ErrNotReady
	case e.state.Loading:
		return ErrLoading
	case e.state.Blocked:
		return ErrBlocked
	case e.state.Selected == nil:
		return ErrNoSelection
	}
	return nil
}
