package matrix

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/odyssey-access/testing"
)

type decodedSession struct {
	SessionID string   `json:"session_id"`
	Matrix    Snapshot `json:"matrix"`
}

func newTestRouter(t *testing.T, f *fixture) http.Handler {
	t.Helper()
	sessions := NewSessions(8, time.Minute, f.editor)
	r := chi.NewRouter()
	r.Route("/matrix", NewHandler(nil, sessions).MountRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) decodedSession {
	t.Helper()
	var out decodedSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandlerEditAndSaveFlow(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(t, f)

	rec := do(t, router, http.MethodPost, "/matrix/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeSession(t, rec)
	require.NotEmpty(t, created.SessionID)
	assert.True(t, created.Matrix.Ready)
	base := "/matrix/sessions/" + created.SessionID

	rec = do(t, router, http.MethodPut, base+"/principal", map[string]any{"role_id": managerRole.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, base+"/toggle", map[string]any{"module": "hrms", "action": "create"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	toggled := decodeSession(t, rec)
	assert.True(t, toggled.Matrix.Dirty)
	require.Len(t, toggled.Matrix.Granted, 1)

	rec = do(t, router, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decodeSession(t, rec)
	assert.False(t, saved.Matrix.Dirty)
	assert.True(t, saved.Matrix.HasOverride)

	stored, ok := f.store.StoredRoleGrants(managerRole.ID)
	require.True(t, ok)
	assert.Equal(t, toggled.Matrix.Granted, stored)

	rec = do(t, router, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, router, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerErrorMapping(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(t, f)

	created := decodeSession(t, do(t, router, http.MethodPost, "/matrix/sessions", nil))
	base := "/matrix/sessions/" + created.SessionID

	rec := do(t, router, http.MethodPost, base+"/toggle", map[string]any{"permission_id": 1})
	assert.Equal(t, http.StatusConflict, rec.Code, "toggle without selection")

	rec = do(t, router, http.MethodPut, base+"/principal", map[string]any{"role_id": adminRole.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code, "reserved role")

	rec = do(t, router, http.MethodPut, base+"/principal", map[string]any{"role_id": staffRole.ID, "user_id": alice.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "user outside role")

	rec = do(t, router, http.MethodPut, base+"/principal", map[string]any{"role_id": 404})
	assert.Equal(t, http.StatusNotFound, rec.Code, "unknown role")

	rec = do(t, router, http.MethodPut, base+"/principal", map[string]any{"user_id": alice.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing role_id")

	rec = do(t, router, http.MethodPut, base+"/principal", map[string]any{"role_id": staffRole.ID, "extra": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown field")

	rec = do(t, router, http.MethodPut, base+"/principal", map[string]any{"role_id": staffRole.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, base+"/toggle", map[string]any{"module": "hrms", "action": "approve"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "invalid action")

	rec = do(t, router, http.MethodPost, base+"/toggle", map[string]any{"module": "payroll", "action": "view"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "unconfigured module")

	rec = do(t, router, http.MethodPost, base+"/toggle", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty toggle")

	f.store.ReadErr = errors.New("connection reset")
	rec = do(t, router, http.MethodPut, base+"/principal", map[string]any{"role_id": managerRole.ID})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "resolution failure")
	assert.NotContains(t, rec.Body.String(), "connection reset")
	rec = do(t, router, http.MethodPost, base+"/save", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "blocked save")

	rec = do(t, router, http.MethodGet, "/matrix/sessions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCreateSessionFatalLoad(t *testing.T) {
	f := newFixture(t)
	f.store.ListErr = errors.New("db down")
	sessions := NewSessions(8, time.Minute, f.editor)
	r := chi.NewRouter()
	r.Route("/matrix", NewHandler(nil, sessions).MountRoutes)

	rec := do(t, r, http.MethodPost, "/matrix/sessions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Zero(t, sessions.Len())
}

func TestHandlerCreateSessionPartialCatalog(t *testing.T) {
	f := newFixture(t)
	f.store.CreateErr = map[string]error{"hrms.update": errors.New("insert failed")}
	router := newTestRouter(t, f)

	rec := do(t, router, http.MethodPost, "/matrix/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeSession(t, rec)
	assert.Contains(t, created.Matrix.Warning, "hrms.update")

	var states []CellState
	for _, cell := range created.Matrix.Rows[0].Cells {
		states = append(states, cell.State)
	}
	assert.Equal(t, []CellState{CellRevoked, CellRevoked, CellUnconfigured, CellRevoked}, states)
}
