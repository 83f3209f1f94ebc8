package rbac

import "context"

// CatalogStore is the durable permission registry.
type CatalogStore interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	// CreatePermissionIfAbsent inserts spec unless a permission with the same
	// name exists. It reports whether a row was created; an existing name is
	// not an error.
	CreatePermissionIfAbsent(ctx context.Context, spec PermissionSpec) (bool, error)
}

// GrantReader reads stored grant sets.
type GrantReader interface {
	RoleGrants(ctx context.Context, roleID int64) (GrantRecord, error)
	UserGrants(ctx context.Context, userID int64) (GrantRecord, error)
}

// GrantWriter replaces stored grant sets wholesale.
type GrantWriter interface {
	ReplaceRoleGrants(ctx context.Context, roleID int64, permissionIDs []int64) error
	ReplaceUserGrants(ctx context.Context, userID int64, permissionIDs []int64) error
}

// GrantStore is the per-principal grant persistence.
type GrantStore interface {
	GrantReader
	GrantWriter
}
