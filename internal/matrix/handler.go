package matrix

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-access/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-access/internal/rbac"
)

// Handler exposes editor sessions over JSON.
type Handler struct {
	logger    *slog.Logger
	sessions  *Sessions
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, sessions *Sessions) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, sessions: sessions, validator: validator.New()}
}

// MountRoutes registers matrix routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sessions", h.createSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.showSession)
		r.Delete("/", h.deleteSession)
		r.Put("/principal", h.selectPrincipal)
		r.Post("/toggle", h.toggle)
		r.Post("/revert", h.revert)
		r.Post("/save", h.save)
	})
}

type sessionResponse struct {
	SessionID string   `json:"session_id"`
	Matrix    Snapshot `json:"matrix"`
}

type selectRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
	UserID int64 `json:"user_id" validate:"omitempty,gt=0"`
}

type toggleRequest struct {
	PermissionID int64  `json:"permission_id" validate:"omitempty,gt=0"`
	Module       string `json:"module" validate:"required_without=PermissionID"`
	Action       string `json:"action" validate:"required_with=Module"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	id, editor := h.sessions.Create()
	err := editor.LoadInitialData(r.Context())
	var provErr *rbac.ProvisionError
	if err != nil && !errors.As(err, &provErr) {
		h.sessions.Delete(id)
		h.logger.Error("matrix load initial data", slog.Any("error", err))
		httpx.RespondError(w, httpx.Classify(httpx.ErrUnavailable, err))
		return
	}
	httpx.JSON(w, http.StatusCreated, sessionResponse{SessionID: id, Matrix: editor.Snapshot()})
}

func (h *Handler) showSession(w http.ResponseWriter, r *http.Request) {
	id, editor, ok := h.editor(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{SessionID: id, Matrix: editor.Snapshot()})
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Delete(chi.URLParam(r, "sessionID")) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) selectPrincipal(w http.ResponseWriter, r *http.Request) {
	id, editor, ok := h.editor(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := editor.SelectPrincipal(r.Context(), req.RoleID, req.UserID); err != nil {
		h.fail(w, "matrix select principal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{SessionID: id, Matrix: editor.Snapshot()})
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	id, editor, ok := h.editor(w, r)
	if !ok {
		return
	}
	var req toggleRequest
	if !h.decode(w, r, &req) {
		return
	}
	var err error
	if req.PermissionID > 0 {
		_, err = editor.Toggle(req.PermissionID)
	} else {
		var action rbac.Action
		if action, err = rbac.ParseAction(req.Action); err == nil {
			_, err = editor.ToggleCell(req.Module, action)
		}
	}
	if err != nil {
		h.fail(w, "matrix toggle", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{SessionID: id, Matrix: editor.Snapshot()})
}

func (h *Handler) revert(w http.ResponseWriter, r *http.Request) {
	id, editor, ok := h.editor(w, r)
	if !ok {
		return
	}
	if err := editor.Revert(); err != nil {
		h.fail(w, "matrix revert", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{SessionID: id, Matrix: editor.Snapshot()})
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	id, editor, ok := h.editor(w, r)
	if !ok {
		return
	}
	if err := editor.Save(r.Context()); err != nil {
		h.fail(w, "matrix save", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{SessionID: id, Matrix: editor.Snapshot()})
}

func (h *Handler) editor(w http.ResponseWriter, r *http.Request) (string, *Editor, bool) {
	id := chi.URLParam(r, "sessionID")
	editor, ok := h.sessions.Get(id)
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "matrix session expired or unknown")
		return "", nil, false
	}
	return id, editor, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.RespondError(w, httpx.Classify(httpx.ErrValidation, err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	classified := classify(err)
	if errors.Is(classified, httpx.ErrUnavailable) {
		h.logger.Error(msg, slog.Any("error", err))
	} else {
		h.logger.Warn(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, classified)
}

func classify(err error) error {
	var (
		resErr    *rbac.ResolutionError
		commitErr *rbac.CommitError
	)
	switch {
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrLoading), errors.Is(err, ErrStaleSelection),
		errors.Is(err, ErrNoSelection), errors.Is(err, ErrBlocked):
		return httpx.Classify(httpx.ErrConflict, err)
	case errors.Is(err, ErrUnconfigured), errors.Is(err, rbac.ErrUnknownPermission),
		errors.Is(err, rbac.ErrUserNotInRole), errors.Is(err, rbac.ErrInvalidAction):
		return httpx.Classify(httpx.ErrUnprocessable, err)
	case errors.Is(err, rbac.ErrIneligibleRole):
		return httpx.Classify(httpx.ErrForbidden, err)
	case errors.As(err, &resErr), errors.As(err, &commitErr):
		return httpx.Classify(httpx.ErrUnavailable, err)
	case errors.Is(err, rbac.ErrNotFound):
		return httpx.Classify(httpx.ErrNotFound, err)
	}
	return err
}
