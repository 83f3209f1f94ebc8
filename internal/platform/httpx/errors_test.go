package httpx_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-access/internal/platform/httpx"
)

func TestRespondErrorStatus(t *testing.T) {
	domain := errors.New("rbac: not found")
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", httpx.Classify(httpx.ErrNotFound, domain), http.StatusNotFound},
		{"conflict", httpx.Classify(httpx.ErrConflict, domain), http.StatusConflict},
		{"validation", httpx.Classify(httpx.ErrValidation, domain), http.StatusBadRequest},
		{"forbidden", httpx.Classify(httpx.ErrForbidden, domain), http.StatusForbidden},
		{"unprocessable", httpx.Classify(httpx.ErrUnprocessable, domain), http.StatusUnprocessableEntity},
		{"unavailable", httpx.Classify(httpx.ErrUnavailable, domain), http.StatusServiceUnavailable},
		{"unclassified", domain, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			httpx.RespondError(rec, tc.err)

			require.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			var body httpx.ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.status, body.Status)
		})
	}
}

func TestRespondErrorHidesBackendDetail(t *testing.T) {
	driverErr := errors.New("dial tcp 10.0.0.3:5432: connection refused")
	for _, err := range []error{driverErr, httpx.Classify(httpx.ErrUnavailable, driverErr)} {
		rec := httptest.NewRecorder()
		httpx.RespondError(rec, err)

		assert.NotContains(t, rec.Body.String(), "10.0.0.3")
	}
}

func TestClassifyKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := httpx.Classify(httpx.ErrConflict, cause)

	assert.ErrorIs(t, err, httpx.ErrConflict)
	assert.ErrorIs(t, err, cause)
	assert.NoError(t, httpx.Classify(httpx.ErrConflict, nil))
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		RoleID int64 `json:"role_id"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"role_id":3,"extra":true}`))

	err := httpx.DecodeJSON(req, &target)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"role_id":3}`))
	require.NoError(t, httpx.DecodeJSON(req, &target))
	assert.EqualValues(t, 3, target.RoleID)
}
