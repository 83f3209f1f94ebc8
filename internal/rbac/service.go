package rbac

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// sharedWorkTimeout bounds a catalog read or provisioning run shared by
// several callers.
const sharedWorkTimeout = 30 * time.Second

// Service exposes catalog operations to handlers and jobs.
type Service struct {
	store       CatalogStore
	provisioner *Provisioner
	modules     []string
	group       singleflight.Group
}

// NewService constructs a Service provisioning modules through provisioner.
func NewService(store CatalogStore, provisioner *Provisioner, modules []string) *Service {
	return &Service{store: store, provisioner: provisioner, modules: NormalizeModules(modules)}
}

// Modules returns the required module list.
func (s *Service) Modules() []string {
	out := make([]string, len(s.modules))
	copy(out, s.modules)
	return out
}

// Catalog reads the current catalog. Concurrent callers share one query.
func (s *Service) Catalog(ctx context.Context) (*Catalog, error) {
	v, err := s.shared(ctx, "catalog", func(ctx context.Context) (any, error) {
		perms, err := s.store.ListPermissions(ctx)
		if err != nil {
			return nil, fmt.Errorf("rbac: list permissions: %w", err)
		}
		return NewCatalog(perms), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Catalog), nil
}

type provisionResult struct {
	catalog *Catalog
	err     error
}

// EnsureCatalog provisions the configured modules. Concurrent callers share
// one provisioning run; see Provisioner.EnsureCatalog for the error contract.
func (s *Service) EnsureCatalog(ctx context.Context) (*Catalog, error) {
	v, err := s.shared(ctx, "provision", func(ctx context.Context) (any, error) {
		catalog, err := s.provisioner.EnsureCatalog(ctx, s.modules)
		return provisionResult{catalog: catalog, err: err}, nil
	})
	if err != nil {
		return nil, err
	}
	res := v.(provisionResult)
	return res.catalog, res.err
}

// shared runs fn once for all concurrent callers of key. The work is detached
// from the cancellation of whichever caller started it; a caller whose own
// context ends stops waiting without affecting the others.
func (s *Service) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedWorkTimeout)
		defer cancel()
		return fn(workCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
