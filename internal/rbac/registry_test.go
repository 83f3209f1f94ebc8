package rbac_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/rbac/rbactest"
	"github.com/odyssey-erp/odyssey-access/internal/roles"
	"github.com/odyssey-erp/odyssey-access/internal/users"
)

func testDirectory() *rbactest.Directory {
	return &rbactest.Directory{
		Ceiling: 5,
		Roles: []roles.Role{
			{ID: 1, Name: "staff", DisplayName: "Staff", Level: 1},
			managerRole,
			{ID: 9, Name: "admin", DisplayName: "Admin", Level: 5},
		},
		Users: []users.User{
			alice,
			{ID: 18, DisplayName: "Bob", RoleID: 1, AssignedRoleLevel: 1},
		},
	}
}

func TestRegistryListsEligibleRolesOnly(t *testing.T) {
	registry := rbac.NewRegistry(testDirectory(), testDirectory())
	list, err := registry.ListEligibleRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, r := range list {
		assert.Less(t, r.Level, 5)
	}
}

func TestRegistryUsersForRole(t *testing.T) {
	dir := testDirectory()
	registry := rbac.NewRegistry(dir, dir)
	list, err := registry.UsersForRole(context.Background(), managerRole)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, alice.ID, list[0].ID)
}

func TestRegistryPrincipal(t *testing.T) {
	dir := testDirectory()
	registry := rbac.NewRegistry(dir, dir)
	ctx := context.Background()

	p, err := registry.Principal(ctx, managerRole.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, rbac.KindRole, p.Kind())
	assert.Equal(t, "role:3", p.Key())

	p, err = registry.Principal(ctx, managerRole.ID, alice.ID)
	require.NoError(t, err)
	up, ok := p.(rbac.UserPrincipal)
	require.True(t, ok)
	assert.Equal(t, alice.ID, up.User.ID)
	assert.Equal(t, managerRole.ID, up.RoleRecord().ID)
}

func TestRegistryPrincipalErrors(t *testing.T) {
	dir := testDirectory()
	registry := rbac.NewRegistry(dir, dir)
	ctx := context.Background()

	_, err := registry.Principal(ctx, 9, 0)
	assert.ErrorIs(t, err, rbac.ErrIneligibleRole)

	_, err = registry.Principal(ctx, 42, 0)
	assert.ErrorIs(t, err, rbac.ErrNotFound)

	_, err = registry.Principal(ctx, managerRole.ID, 404)
	assert.ErrorIs(t, err, rbac.ErrNotFound)

	_, err = registry.Principal(ctx, managerRole.ID, 18)
	assert.ErrorIs(t, err, rbac.ErrUserNotInRole)
}
