package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-access/internal/platform/db"
)

// PGRepository implements CatalogStore and GrantStore on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListPermissions returns the whole catalog ordered by name.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, display_name, resource, action, scope, created_at FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Permission, error) {
		var (
			p      Permission
			action string
		)
		if err := row.Scan(&p.ID, &p.Name, &p.DisplayName, &p.Resource, &action, &p.Scope, &p.CreatedAt); err != nil {
			return Permission{}, err
		}
		p.Action = Action(action)
		return p, nil
	})
}

// CreatePermissionIfAbsent inserts spec; an existing name is reported as not
// created. A conflict on (resource, action) is also reported as not created;
// the provisioner detects the still missing name on its re-read.
func (r *PGRepository) CreatePermissionIfAbsent(ctx context.Context, spec PermissionSpec) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO permissions (name, display_name, resource, action, scope)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO NOTHING`,
		spec.Name, spec.DisplayName, spec.Resource, string(spec.Action), spec.Scope)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type grantTables struct {
	sets   string
	grants string
	owner  string
}

var (
	roleGrantTables = grantTables{sets: "role_grant_sets", grants: "role_permissions", owner: "role_id"}
	userGrantTables = grantTables{sets: "user_grant_sets", grants: "user_permissions", owner: "user_id"}
)

// RoleGrants reads the default grant set of a role.
func (r *PGRepository) RoleGrants(ctx context.Context, roleID int64) (GrantRecord, error) {
	return r.readGrants(ctx, roleGrantTables, roleID)
}

// UserGrants reads the override grant set of a user.
func (r *PGRepository) UserGrants(ctx context.Context, userID int64) (GrantRecord, error) {
	return r.readGrants(ctx, userGrantTables, userID)
}

// ReplaceRoleGrants replaces the default grant set of a role.
func (r *PGRepository) ReplaceRoleGrants(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return r.replaceGrants(ctx, roleGrantTables, roleID, permissionIDs)
}

// ReplaceUserGrants replaces the override grant set of a user.
func (r *PGRepository) ReplaceUserGrants(ctx context.Context, userID int64, permissionIDs []int64) error {
	return r.replaceGrants(ctx, userGrantTables, userID, permissionIDs)
}

func (r *PGRepository) readGrants(ctx context.Context, t grantTables, ownerID int64) (GrantRecord, error) {
	var record GrantRecord
	var updatedAt time.Time
	err := r.pool.QueryRow(ctx, `SELECT updated_at FROM `+t.sets+` WHERE `+t.owner+` = $1`, ownerID).Scan(&updatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return record, nil
	case err != nil:
		return GrantRecord{}, err
	}
	record.Exists = true
	record.UpdatedAt = updatedAt

	rows, err := r.pool.Query(ctx, `SELECT permission_id FROM `+t.grants+` WHERE `+t.owner+` = $1 ORDER BY permission_id`, ownerID)
	if err != nil {
		return GrantRecord{}, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return GrantRecord{}, err
	}
	record.PermissionIDs = ids
	return record, nil
}

func (r *PGRepository) replaceGrants(ctx context.Context, t grantTables, ownerID int64, permissionIDs []int64) error {
	ids := NewGrantSet(permissionIDs...).IDs()
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO `+t.sets+` (`+t.owner+`, updated_at) VALUES ($1, NOW())
			ON CONFLICT (`+t.owner+`) DO UPDATE SET updated_at = EXCLUDED.updated_at`, ownerID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM `+t.grants+` WHERE `+t.owner+` = $1`, ownerID); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, `INSERT INTO `+t.grants+` (`+t.owner+`, permission_id) SELECT $1, unnest($2::bigint[])`, ownerID, ids)
		return err
	})
	if err != nil && db.IsForeignKeyViolation(err) {
		if strings.Contains(db.ConstraintName(err), "permission_id") {
			return fmt.Errorf("%w: %v", ErrUnknownPermission, err)
		}
		return fmt.Errorf("%w: %s %d: %v", ErrNotFound, t.owner, ownerID, err)
	}
	return err
}

var (
	_ CatalogStore = (*PGRepository)(nil)
	_ GrantStore   = (*PGRepository)(nil)
)
