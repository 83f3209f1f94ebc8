package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-access/internal/roles"
	"github.com/odyssey-erp/odyssey-access/internal/users"
)

// RoleSource lists editable roles.
type RoleSource interface {
	ListEligibleRoles(ctx context.Context) ([]roles.Role, error)
	GetEligibleRole(ctx context.Context, id int64) (roles.Role, error)
}

// UserSource lists users with their assigned role level.
type UserSource interface {
	ListUsers(ctx context.Context) ([]users.User, error)
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// Registry is the read-only principal view over the identity system.
type Registry struct {
	roles RoleSource
	users UserSource
}

// NewRegistry composes role and user sources.
func NewRegistry(roleSource RoleSource, userSource UserSource) *Registry {
	return &Registry{roles: roleSource, users: userSource}
}

// ListEligibleRoles returns the roles below the administrative ceiling.
func (r *Registry) ListEligibleRoles(ctx context.Context) ([]roles.Role, error) {
	return r.roles.ListEligibleRoles(ctx)
}

// ListUsers returns every user with a role assignment.
func (r *Registry) ListUsers(ctx context.Context) ([]users.User, error) {
	return r.users.ListUsers(ctx)
}

// UsersForRole returns the users whose assigned level matches role.
func (r *Registry) UsersForRole(ctx context.Context, role roles.Role) ([]users.User, error) {
	list, err := r.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return users.ForRoleLevel(list, role.Level), nil
}

// Principal builds the typed principal for a selection. userID == 0 selects
// the role itself.
func (r *Registry) Principal(ctx context.Context, roleID, userID int64) (Principal, error) {
	role, err := r.roles.GetEligibleRole(ctx, roleID)
	switch {
	case errors.Is(err, roles.ErrReserved):
		return nil, fmt.Errorf("%w: %v", ErrIneligibleRole, err)
	case errors.Is(err, roles.ErrNotFound):
		return nil, fmt.Errorf("%w: role %d", ErrNotFound, roleID)
	case err != nil:
		return nil, err
	}
	if userID == 0 {
		return RolePrincipal{Role: role}, nil
	}
	user, err := r.users.GetUser(ctx, userID)
	switch {
	case errors.Is(err, users.ErrNotFound):
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	case err != nil:
		return nil, err
	}
	if user.AssignedRoleLevel != role.Level {
		return nil, fmt.Errorf("%w: user %d has level %d, role %s has level %d", ErrUserNotInRole, user.ID, user.AssignedRoleLevel, role.Name, role.Level)
	}
	return UserPrincipal{User: user, Role: role}, nil
}
