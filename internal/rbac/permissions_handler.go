package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-access/internal/platform/httpx"
)

// PermissionsHandler serves the permission catalog.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *Service
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service) *PermissionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionsHandler{logger: logger, service: service}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
	r.Post("/provision", h.provision)
}

type catalogResponse struct {
	Permissions []Permission `json:"permissions"`
	Modules     []string     `json:"modules"`
	Missing     []string     `json:"missing"`
	Warning     string       `json:"warning,omitempty"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.service.Catalog(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.response(catalog, ""))
}

func (h *PermissionsHandler) provision(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.service.EnsureCatalog(r.Context())
	var provErr *ProvisionError
	switch {
	case errors.As(err, &provErr):
		h.logger.Warn("catalog partially provisioned", slog.Any("missing", provErr.Names()))
		httpx.JSON(w, http.StatusAccepted, h.response(catalog, provErr.Error()))
	case err != nil:
		h.logger.Error("provision catalog", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Provisioning Failed", "catalog could not be read back, retry later")
	default:
		httpx.JSON(w, http.StatusOK, h.response(catalog, ""))
	}
}

func (h *PermissionsHandler) response(catalog *Catalog, warning string) catalogResponse {
	modules := h.service.Modules()
	missing := catalog.Missing(modules)
	if missing == nil {
		missing = []string{}
	}
	return catalogResponse{Permissions: catalog.All(), Modules: modules, Missing: missing, Warning: warning}
}
