package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-access/internal/platform/httpx"
)

// Handler serves user listings for principal selection.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
}

// listUsers returns all users, or the bucket of ?role_level=N.
func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	var (
		list []User
		err  error
	)
	if raw := r.URL.Query().Get("role_level"); raw != "" {
		level, convErr := strconv.Atoi(raw)
		if convErr != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "role_level must be an integer")
			return
		}
		list, err = h.service.UsersForLevel(r.Context(), level)
	} else {
		list, err = h.service.ListUsers(r.Context())
	}
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": list})
}
