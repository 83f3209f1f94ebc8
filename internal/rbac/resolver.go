package rbac

import (
	"context"
	"fmt"
)

// Resolver computes the grant set displayed for a principal.
type Resolver struct {
	grants GrantReader
}

// NewResolver builds a Resolver reading from grants.
func NewResolver(grants GrantReader) *Resolver {
	return &Resolver{grants: grants}
}

// Resolve returns the stored grant set of principal.
//
// A role without a saved default resolves to the empty set. A user resolves
// to their own override only; when no override was saved the result is the
// empty set and the role default is deliberately not consulted.
func (r *Resolver) Resolve(ctx context.Context, principal Principal) (GrantSet, error) {
	record, err := r.Record(ctx, principal)
	if err != nil {
		return nil, err
	}
	return NewGrantSet(record.PermissionIDs...), nil
}

// Record returns the raw stored record, including whether it exists.
func (r *Resolver) Record(ctx context.Context, principal Principal) (GrantRecord, error) {
	if principal == nil {
		return GrantRecord{}, &ResolutionError{Principal: "<none>", Err: ErrNotFound}
	}
	var (
		record GrantRecord
		err    error
	)
	switch p := principal.(type) {
	case RolePrincipal:
		record, err = r.grants.RoleGrants(ctx, p.Role.ID)
	case UserPrincipal:
		record, err = r.grants.UserGrants(ctx, p.User.ID)
	default:
		err = fmt.Errorf("unsupported principal %T", principal)
	}
	if err != nil {
		return GrantRecord{}, &ResolutionError{Principal: principal.Key(), Err: err}
	}
	return record, nil
}
