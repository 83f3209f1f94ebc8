package roles

import (
	"context"
	"fmt"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
}

// Service exposes the roles an operator may edit. Roles with a level at or
// above the ceiling belong to the platform and are never returned.
type Service struct {
	repo    RepositoryPort
	ceiling int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, ceiling int) *Service {
	return &Service{repo: repo, ceiling: ceiling}
}

// Ceiling returns the administrative ceiling.
func (s *Service) Ceiling() int { return s.ceiling }

// Eligible reports whether role may be edited.
func (s *Service) Eligible(role Role) bool {
	return role.Level < s.ceiling
}

// ListEligibleRoles returns roles strictly below the ceiling.
func (s *Service) ListEligibleRoles(ctx context.Context) ([]Role, error) {
	all, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	eligible := make([]Role, 0, len(all))
	for _, role := range all {
		if s.Eligible(role) {
			eligible = append(eligible, role)
		}
	}
	return eligible, nil
}

// GetEligibleRole fetches a role and rejects reserved ones with ErrReserved.
func (s *Service) GetEligibleRole(ctx context.Context, id int64) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if !s.Eligible(role) {
		return Role{}, fmt.Errorf("%w: %s (level %d)", ErrReserved, role.Name, role.Level)
	}
	return role, nil
}
