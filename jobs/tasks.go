package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogProvision re-runs catalog provisioning.
	TaskCatalogProvision = "rbac:catalog_provision"
)

// CatalogProvisionPayload describes one provisioning run.
type CatalogProvisionPayload struct {
	// Reason is informational, e.g. "cron" or "startup_partial".
	Reason string `json:"reason"`
}

// NewCatalogProvisionTask constructs an Asynq task.
func NewCatalogProvisionTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(CatalogProvisionPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogProvision, data), nil
}
