package users

import (
	"errors"
	"time"
)

// ErrNotFound indicates the user does not exist or holds no role.
var ErrNotFound = errors.New("users: not found")

// User is a user account annotated with its effective role assignment.
type User struct {
	ID                int64     `json:"id"`
	Email             string    `json:"email"`
	DisplayName       string    `json:"display_name"`
	IsActive          bool      `json:"is_active"`
	RoleID            int64     `json:"role_id"`
	AssignedRoleLevel int       `json:"assigned_role_level"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ForRoleLevel returns the users whose assigned role level equals level,
// preserving input order.
func ForRoleLevel(list []User, level int) []User {
	out := make([]User, 0, len(list))
	for _, u := range list {
		if u.AssignedRoleLevel == level {
			out = append(out, u)
		}
	}
	return out
}
