package common

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadinessHandler(t *testing.T) {
	healthy := func(ctx context.Context) error { return nil }
	broken := func(ctx context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks map[string]ReadinessCheck
		code   int
		status string
	}{
		{name: "all healthy", checks: map[string]ReadinessCheck{"mysql": healthy, "redis": healthy}, code: http.StatusOK, status: "ok"},
		{name: "redis down", checks: map[string]ReadinessCheck{"mysql": healthy, "redis": broken}, code: http.StatusServiceUnavailable, status: "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			readinessHandler(tt.checks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.code, rec.Code)

			var report readinessReport
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
			assert.Equal(t, tt.status, report.Status)
			assert.Equal(t, "ok", report.Checks["mysql"])
			assert.Len(t, report.Checks, len(tt.checks))
		})
	}
}
