// Package rbactest provides in-memory fakes of the rbac persistence ports.
package rbactest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/roles"
	"github.com/odyssey-erp/odyssey-access/internal/users"
)

// Store is an in-memory CatalogStore and GrantStore. Error fields inject
// failures; they are read under the store lock so tests may set them between
// calls.
type Store struct {
	mu     sync.Mutex
	nextID int64
	perms  map[string]rbac.Permission
	roles  map[int64]grantRow
	users  map[int64]grantRow

	// ListErr fails every ListPermissions call.
	ListErr error
	// ListErrAfter fails ListPermissions once it was called this many times.
	ListErrAfter int
	// CreateErr fails creation of the named permissions.
	CreateErr map[string]error
	// SkipCreate makes creation of the named permissions report "not
	// created" without inserting, like a conflict on another unique key.
	SkipCreate map[string]bool
	// ReadErr fails every grant read.
	ReadErr error
	// WriteErr fails every grant replacement.
	WriteErr error

	listCalls   int
	createCalls int
	reads       int
	writes      int
}

type grantRow struct {
	ids       []int64
	updatedAt time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		perms: make(map[string]rbac.Permission),
		roles: make(map[int64]grantRow),
		users: make(map[int64]grantRow),
	}
}

// Seed inserts permissions directly and returns their IDs in order.
func (s *Store) Seed(specs ...rbac.PermissionSpec) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(specs))
	for _, spec := range specs {
		ids = append(ids, s.insertLocked(spec).ID)
	}
	return ids
}

// SeedRoleGrants stores a role default without going through a writer.
func (s *Store) SeedRoleGrants(roleID int64, ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[roleID] = grantRow{ids: sortedCopy(ids), updatedAt: time.Now()}
}

// SeedUserGrants stores a user override without going through a writer.
func (s *Store) SeedUserGrants(userID int64, ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = grantRow{ids: sortedCopy(ids), updatedAt: time.Now()}
}

// ListPermissions implements rbac.CatalogStore.
func (s *Store) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	if s.ListErrAfter > 0 && s.listCalls > s.ListErrAfter {
		return nil, fmt.Errorf("rbactest: list call %d failed", s.listCalls)
	}
	out := make([]rbac.Permission, 0, len(s.perms))
	for _, p := range s.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreatePermissionIfAbsent implements rbac.CatalogStore.
func (s *Store) CreatePermissionIfAbsent(ctx context.Context, spec rbac.PermissionSpec) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if err, ok := s.CreateErr[spec.Name]; ok && err != nil {
		return false, err
	}
	if s.SkipCreate[spec.Name] {
		return false, nil
	}
	if _, ok := s.perms[spec.Name]; ok {
		return false, nil
	}
	s.insertLocked(spec)
	return true, nil
}

// RoleGrants implements rbac.GrantReader.
func (s *Store) RoleGrants(ctx context.Context, roleID int64) (rbac.GrantRecord, error) {
	return s.read(s.roles, roleID)
}

// UserGrants implements rbac.GrantReader.
func (s *Store) UserGrants(ctx context.Context, userID int64) (rbac.GrantRecord, error) {
	return s.read(s.users, userID)
}

// ReplaceRoleGrants implements rbac.GrantWriter.
func (s *Store) ReplaceRoleGrants(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return s.write(s.roles, roleID, permissionIDs)
}

// ReplaceUserGrants implements rbac.GrantWriter.
func (s *Store) ReplaceUserGrants(ctx context.Context, userID int64, permissionIDs []int64) error {
	return s.write(s.users, userID, permissionIDs)
}

// Permissions returns a copy of the catalog keyed by name.
func (s *Store) Permissions() map[string]rbac.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]rbac.Permission, len(s.perms))
	for k, v := range s.perms {
		out[k] = v
	}
	return out
}

// StoredRoleGrants returns the persisted role set and whether one exists.
func (s *Store) StoredRoleGrants(roleID int64) ([]int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.roles[roleID]
	return sortedCopy(row.ids), ok
}

// StoredUserGrants returns the persisted user set and whether one exists.
func (s *Store) StoredUserGrants(userID int64) ([]int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.users[userID]
	return sortedCopy(row.ids), ok
}

// CreateCalls reports how many creations were attempted.
func (s *Store) CreateCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCalls
}

// Reads reports how many grant reads reached the store.
func (s *Store) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Writes reports how many grant replacements succeeded.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) read(rows map[int64]grantRow, id int64) (rbac.GrantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.ReadErr != nil {
		return rbac.GrantRecord{}, s.ReadErr
	}
	row, ok := rows[id]
	if !ok {
		return rbac.GrantRecord{PermissionIDs: []int64{}}, nil
	}
	return rbac.GrantRecord{PermissionIDs: sortedCopy(row.ids), Exists: true, UpdatedAt: row.updatedAt}, nil
}

func (s *Store) write(rows map[int64]grantRow, id int64, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	known := make(map[int64]struct{}, len(s.perms))
	for _, p := range s.perms {
		known[p.ID] = struct{}{}
	}
	for _, pid := range ids {
		if _, ok := known[pid]; !ok {
			return fmt.Errorf("%w: %d", rbac.ErrUnknownPermission, pid)
		}
	}
	rows[id] = grantRow{ids: sortedCopy(ids), updatedAt: time.Now()}
	s.writes++
	return nil
}

func (s *Store) insertLocked(spec rbac.PermissionSpec) rbac.Permission {
	if p, ok := s.perms[spec.Name]; ok {
		return p
	}
	s.nextID++
	p := rbac.Permission{
		ID:          s.nextID,
		Name:        spec.Name,
		DisplayName: spec.DisplayName,
		Resource:    spec.Resource,
		Action:      spec.Action,
		Scope:       spec.Scope,
		CreatedAt:   time.Now(),
	}
	s.perms[spec.Name] = p
	return p
}

func sortedCopy(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	_ rbac.CatalogStore = (*Store)(nil)
	_ rbac.GrantStore   = (*Store)(nil)
)

// Directory is an in-memory identity system implementing rbac.RoleSource
// and rbac.UserSource.
type Directory struct {
	Ceiling int
	Roles   []roles.Role
	Users   []users.User
	// Err fails every call.
	Err error
}

// ListEligibleRoles implements rbac.RoleSource.
func (d *Directory) ListEligibleRoles(ctx context.Context) ([]roles.Role, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	out := make([]roles.Role, 0, len(d.Roles))
	for _, r := range d.Roles {
		if r.Level < d.Ceiling {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetEligibleRole implements rbac.RoleSource.
func (d *Directory) GetEligibleRole(ctx context.Context, id int64) (roles.Role, error) {
	if d.Err != nil {
		return roles.Role{}, d.Err
	}
	for _, r := range d.Roles {
		if r.ID != id {
			continue
		}
		if r.Level >= d.Ceiling {
			return roles.Role{}, fmt.Errorf("%w: %s", roles.ErrReserved, r.Name)
		}
		return r, nil
	}
	return roles.Role{}, roles.ErrNotFound
}

// ListUsers implements rbac.UserSource.
func (d *Directory) ListUsers(ctx context.Context) ([]users.User, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	out := make([]users.User, len(d.Users))
	copy(out, d.Users)
	return out, nil
}

// GetUser implements rbac.UserSource.
func (d *Directory) GetUser(ctx context.Context, id int64) (users.User, error) {
	if d.Err != nil {
		return users.User{}, d.Err
	}
	for _, u := range d.Users {
		if u.ID == id {
			return u, nil
		}
	}
	return users.User{}, users.ErrNotFound
}

var (
	_ rbac.RoleSource = (*Directory)(nil)
	_ rbac.UserSource = (*Directory)(nil)
)
