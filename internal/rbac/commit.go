package rbac

import (
	"context"
	"fmt"
)

// CommitObserver is notified after each commit attempt.
type CommitObserver interface {
	Committed(kind PrincipalKind, err error)
}

// Committer persists working sets as whole-set replacements.
type Committer struct {
	grants   GrantWriter
	observer CommitObserver
}

// NewCommitter builds a Committer writing to grants. observer may be nil.
func NewCommitter(grants GrantWriter, observer CommitObserver) *Committer {
	return &Committer{grants: grants, observer: observer}
}

// Commit replaces the grant set of principal with set. Every ID must be
// present in catalog; the write is a single replacement so a failure leaves
// the previously stored set untouched.
func (c *Committer) Commit(ctx context.Context, catalog *Catalog, principal Principal, set GrantSet) (err error) {
	if principal == nil {
		return &CommitError{Principal: "<none>", Err: ErrNotFound}
	}
	defer func() {
		if c.observer != nil {
			c.observer.Committed(principal.Kind(), err)
		}
	}()
	if unknown := catalog.Unknown(set); len(unknown) > 0 {
		return &CommitError{Principal: principal.Key(), Err: fmt.Errorf("%w: %v", ErrUnknownPermission, unknown)}
	}
	ids := set.IDs()
	switch p := principal.(type) {
	case RolePrincipal:
		err = c.grants.ReplaceRoleGrants(ctx, p.Role.ID, ids)
	case UserPrincipal:
		err = c.grants.ReplaceUserGrants(ctx, p.User.ID, ids)
	default:
		err = fmt.Errorf("unsupported principal %T", principal)
	}
	if err != nil {
		return &CommitError{Principal: principal.Key(), Err: err}
	}
	return nil
}
