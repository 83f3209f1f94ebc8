package rbac

import (
	"strconv"

	"github.com/odyssey-erp/odyssey-access/internal/roles"
	"github.com/odyssey-erp/odyssey-access/internal/users"
)

// PrincipalKind distinguishes role defaults from user overrides.
type PrincipalKind string

// Principal kinds.
const (
	KindRole PrincipalKind = "role"
	KindUser PrincipalKind = "user"
)

// Principal is the entity whose grant set is viewed or edited. It is either a
// RolePrincipal or a UserPrincipal.
type Principal interface {
	Kind() PrincipalKind
	// Key identifies the principal, e.g. "role:3" or "user:17".
	Key() string
	// RoleRecord is the selected role; for users it is the role they were selected under.
	RoleRecord() roles.Role
	isPrincipal()
}

// RolePrincipal selects a role's default grant set.
type RolePrincipal struct {
	Role roles.Role
}

func (p RolePrincipal) Kind() PrincipalKind    { return KindRole }
func (p RolePrincipal) Key() string            { return principalKey(KindRole, p.Role.ID) }
func (p RolePrincipal) RoleRecord() roles.Role { return p.Role }
func (RolePrincipal) isPrincipal()             {}

// UserPrincipal selects a user's override grant set.
type UserPrincipal struct {
	User users.User
	Role roles.Role
}

func (p UserPrincipal) Kind() PrincipalKind    { return KindUser }
func (p UserPrincipal) Key() string            { return principalKey(KindUser, p.User.ID) }
func (p UserPrincipal) RoleRecord() roles.Role { return p.Role }
func (UserPrincipal) isPrincipal()             {}

func principalKey(kind PrincipalKind, id int64) string {
	return string(kind) + ":" + strconv.FormatInt(id, 10)
}
