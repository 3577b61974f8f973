package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func getHealth(t *testing.T, h http.HandlerFunc, path string) (*httptest.ResponseRecorder, HealthStatus) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return rec, status
}

func TestHealthHandler_AllChecksPass(t *testing.T) {
	h := NewHealthHandler("v1.0.0", zap.NewNop())
	h.RegisterCheck(NewFuncCheck("store", func(context.Context) error { return nil }))
	h.RegisterCheck(NewFuncCheck("collection", func(context.Context) error { return nil }))

	rec, status := getHealth(t, h.HandleHealth, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "v1.0.0", status.Version)
	assert.Equal(t, "pass", status.Checks["store"].Status)
	assert.Equal(t, "pass", status.Checks["collection"].Status)
}

func TestHealthHandler_CollectionNotBuilt(t *testing.T) {
	h := NewHealthHandler("dev", nil)
	h.RegisterCheck(NewFuncCheck("store", func(context.Context) error { return nil }))
	h.RegisterCheck(NewFuncCheck("collection", func(context.Context) error {
		return errors.New("collection has not been built")
	}))

	rec, status := getHealth(t, h.HandleHealth, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "fail", status.Checks["collection"].Status)
	assert.Equal(t, "collection has not been built", status.Checks["collection"].Message)
	assert.Equal(t, "pass", status.Checks["store"].Status)
}

func TestHealthHandler_LivenessIgnoresChecks(t *testing.T) {
	h := NewHealthHandler("dev", nil)
	h.RegisterCheck(NewFuncCheck("store", func(context.Context) error { return errors.New("down") }))

	rec, status := getHealth(t, h.HandleHealthz, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", status.Status)
	assert.Empty(t, status.Checks)
}

func TestHealthHandler_Version(t *testing.T) {
	h := NewHealthHandler("v2", nil)
	rec := httptest.NewRecorder()
	h.HandleVersion("2026-01-01", "abc123")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, "v2", data["version"])
	assert.Equal(t, "abc123", data["git_commit"])
}
