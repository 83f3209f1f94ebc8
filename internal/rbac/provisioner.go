package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

const defaultProvisionConcurrency = 4

// ProvisionObserver receives provisioning outcomes, typically metrics.
type ProvisionObserver interface {
	PermissionCreated(name string)
	PermissionFailed(name string)
}

// ProvisionerConfig configures a Provisioner.
type ProvisionerConfig struct {
	Scope       string
	Concurrency int
	Logger      *slog.Logger
	Observer    ProvisionObserver
}

// Provisioner makes sure the module x action matrix exists in the catalog.
type Provisioner struct {
	store       CatalogStore
	scope       string
	concurrency int
	logger      *slog.Logger
	observer    ProvisionObserver
}

// NewProvisioner wires a Provisioner against store.
func NewProvisioner(store CatalogStore, cfg ProvisionerConfig) *Provisioner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultProvisionConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Provisioner{
		store:       store,
		scope:       cfg.Scope,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
		observer:    cfg.Observer,
	}
}

// EnsureCatalog creates every missing (module, action) permission and returns
// the catalog re-read from the store.
//
// Creation failures do not stop the remaining creations. When some failed
// but the final read succeeded, the catalog is returned together with a
// *ProvisionError. When the final read fails the catalog is nil and the
// caller has to retry later.
func (p *Provisioner) EnsureCatalog(ctx context.Context, modules []string) (*Catalog, error) {
	existing, err := p.store.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: provision catalog: list: %w", err)
	}
	current := NewCatalog(existing)

	var pending []PermissionSpec
	for _, spec := range RequiredSpecs(modules, p.scope) {
		if _, ok := current.ByName(spec.Name); !ok {
			pending = append(pending, spec)
		}
	}

	failures := p.createAll(ctx, pending)

	refreshed, err := p.store.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: provision catalog: refetch: %w", err)
	}
	catalog := NewCatalog(refreshed)
	failures = p.stillMissing(catalog, modules, failures)
	if len(failures) > 0 {
		return catalog, &ProvisionError{Failures: failures}
	}
	return catalog, nil
}

// stillMissing adds every required name absent from catalog that no create
// call reported. A create can be skipped by a conflict on another unique key,
// which never resolves by itself.
func (p *Provisioner) stillMissing(catalog *Catalog, modules []string, failures []ProvisionFailure) []ProvisionFailure {
	reported := make(map[string]struct{}, len(failures))
	for _, f := range failures {
		reported[f.Name] = struct{}{}
	}
	for _, name := range catalog.Missing(modules) {
		if _, ok := reported[name]; ok {
			continue
		}
		p.logger.Warn("permission missing after provisioning", slog.String("permission", name))
		if p.observer != nil {
			p.observer.PermissionFailed(name)
		}
		failures = append(failures, ProvisionFailure{Name: name, Err: ErrStillMissing})
	}
	return failures
}

func (p *Provisioner) createAll(ctx context.Context, pending []PermissionSpec) []ProvisionFailure {
	if len(pending) == 0 {
		return nil
	}
	var (
		mu       sync.Mutex
		failures []ProvisionFailure
	)
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, spec := range pending {
		spec := spec
		g.Go(func() error {
			created, err := p.store.CreatePermissionIfAbsent(ctx, spec)
			if err != nil {
				p.logger.Warn("create permission failed", slog.String("permission", spec.Name), slog.Any("error", err))
				if p.observer != nil {
					p.observer.PermissionFailed(spec.Name)
				}
				mu.Lock()
				failures = append(failures, ProvisionFailure{Name: spec.Name, Err: err})
				mu.Unlock()
				return nil
			}
			if created {
				p.logger.Info("permission created", slog.String("permission", spec.Name))
				if p.observer != nil {
					p.observer.PermissionCreated(spec.Name)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(failures, func(i, j int) bool { return failures[i].Name < failures[j].Name })
	return failures
}
