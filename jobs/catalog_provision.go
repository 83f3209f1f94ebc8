package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-access/internal/jobs"
	"github.com/odyssey-erp/odyssey-access/internal/rbac"
)

// CatalogEnsurer provisions the configured catalog.
type CatalogEnsurer interface {
	EnsureCatalog(ctx context.Context) (*rbac.Catalog, error)
	Modules() []string
}

// CatalogProvisionJob heals the permission catalog in the background.
type CatalogProvisionJob struct {
	Catalog CatalogEnsurer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCatalogProvisionJob wires dependencies for the provisioning handler.
func NewCatalogProvisionJob(catalog CatalogEnsurer, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogProvisionJob {
	return &CatalogProvisionJob{Catalog: catalog, Logger: logger, Metrics: metrics}
}

// Handle processes TaskCatalogProvision tasks. A partially provisioned
// catalog fails the task so asynq retries it.
func (j *CatalogProvisionJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Catalog == nil {
		return errors.New("catalog provision: handler not configured")
	}
	var payload CatalogProvisionPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.Metrics.Track(TaskCatalogProvision)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	catalog, err := j.Catalog.EnsureCatalog(ctx)
	if catalog != nil {
		missing := catalog.Missing(j.Catalog.Modules())
		j.Metrics.SetMissingPermissions(len(missing))
		if len(missing) > 0 {
			logger.Warn("catalog still incomplete", slog.Any("missing", missing))
		}
	}
	if err != nil {
		logger.Error("catalog provision", slog.Any("error", err))
		return err
	}
	logger.Info("catalog provisioned", slog.Int("permissions", catalog.Len()))
	return nil
}

func (j *CatalogProvisionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
