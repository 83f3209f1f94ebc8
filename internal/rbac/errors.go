package rbac

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrInvalidAction is returned for actions outside view/create/update/delete.
	ErrInvalidAction = errors.New("rbac: invalid action")
	// ErrUnknownPermission indicates a grant referencing a permission absent from the catalog.
	ErrUnknownPermission = errors.New("rbac: unknown permission")
	// ErrIneligibleRole is returned when selecting a platform-reserved role.
	ErrIneligibleRole = errors.New("rbac: role is reserved")
	// ErrUserNotInRole is returned when a user is selected under a role level they do not hold.
	ErrUserNotInRole = errors.New("rbac: user does not belong to role")
	// ErrStillMissing marks a required permission absent after provisioning
	// although its creation reported no error.
	ErrStillMissing = errors.New("rbac: permission still missing after create")
)

// ProvisionFailure records one catalog entry that could not be created.
type ProvisionFailure struct {
	Name string
	Err  error
}

// ProvisionError reports a partially provisioned catalog. It is non-fatal:
// the catalog returned alongside it is authoritative and the missing entries
// are retried on the next provisioning run.
type ProvisionError struct {
	Failures []ProvisionFailure
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("rbac: provision catalog: %d permission(s) not created: %s", len(e.Failures), strings.Join(e.Names(), ", "))
}

// Unwrap exposes the individual creation errors.
func (e *ProvisionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Names returns the names that are still missing.
func (e *ProvisionError) Names() []string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Name)
	}
	return names
}

// ResolutionError means the grant set of a principal could not be read.
// Callers must block editing rather than assume an empty set.
type ResolutionError struct {
	Principal string
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("rbac: resolve %s: %v", e.Principal, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// CommitError means a grant set was not persisted. Nothing is assumed written.
type CommitError struct {
	Principal string
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("rbac: commit %s: %v", e.Principal, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
