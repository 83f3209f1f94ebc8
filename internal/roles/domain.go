package roles

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the role does not exist.
	ErrNotFound = errors.New("roles: not found")
	// ErrReserved marks roles at or above the administrative ceiling.
	ErrReserved = errors.New("roles: reserved")
)

// Role is a role record owned by the identity system. Level totally orders
// roles; lower means less privilege.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Level       int       `json:"level"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
