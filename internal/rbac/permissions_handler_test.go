package rbac_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/rbac/rbactest"
	_ "github.com/odyssey-erp/odyssey-access/testing"
)

type catalogBody struct {
	Permissions []rbac.Permission `json:"permissions"`
	Modules     []string          `json:"modules"`
	Missing     []string          `json:"missing"`
	Warning     string            `json:"warning"`
}

func newPermissionsRouter(store *rbactest.Store) http.Handler {
	provisioner := rbac.NewProvisioner(store, rbac.ProvisionerConfig{})
	service := rbac.NewService(store, provisioner, []string{"hrms", "lms"})
	r := chi.NewRouter()
	r.Route("/permissions", rbac.NewPermissionsHandler(nil, service).MountRoutes)
	return r
}

func TestPermissionsHandlerListsCatalog(t *testing.T) {
	store := rbactest.NewStore()
	store.Seed(rbac.NewPermissionSpec("hrms", rbac.ActionView, ""))
	router := newPermissionsRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/permissions/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body catalogBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Permissions, 1)
	assert.Equal(t, "hrms.view", body.Permissions[0].Name)
	assert.Len(t, body.Missing, 7)
}

func TestPermissionsHandlerProvision(t *testing.T) {
	store := rbactest.NewStore()
	router := newPermissionsRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/permissions/provision", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body catalogBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Permissions, 8)
	assert.Empty(t, body.Missing)
	assert.Empty(t, body.Warning)
}

func TestPermissionsHandlerProvisionPartial(t *testing.T) {
	store := rbactest.NewStore()
	store.CreateErr = map[string]error{"hrms.delete": errors.New("insert failed")}
	router := newPermissionsRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/permissions/provision", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body catalogBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"hrms.delete"}, body.Missing)
	assert.Contains(t, body.Warning, "hrms.delete")
}

func TestPermissionsHandlerProvisionFatal(t *testing.T) {
	store := rbactest.NewStore()
	store.ListErr = errors.New("db down")
	router := newPermissionsRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/permissions/provision", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}
