package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, c *Checker, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	c.Register(e.Group(""))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]error
		wantStatus int
		wantState  string
	}{
		{
			name:       "no dependencies",
			wantStatus: http.StatusOK,
			wantState:  "healthy",
		},
		{
			name:       "all healthy",
			checks:     map[string]error{"database": nil, "redis": nil},
			wantStatus: http.StatusOK,
			wantState:  "healthy",
		},
		{
			name:       "one failing",
			checks:     map[string]error{"database": nil, "graph": errors.New("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker("test")
			for name, err := range tt.checks {
				c.AddCheck(name, PingFunc(func(context.Context) error { return err }))
			}

			rec := serve(t, c, "/health")
			require.Equal(t, tt.wantStatus, rec.Code)

			var status HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
			assert.Equal(t, tt.wantState, status.Status)
			assert.Equal(t, "test", status.Version)
			assert.Len(t, status.Checks, len(tt.checks))
			for name, err := range tt.checks {
				if err != nil {
					assert.Equal(t, "unhealthy", status.Checks[name].Status)
					assert.Equal(t, err.Error(), status.Checks[name].Message)
				}
			}
		})
	}
}

func TestReadiness(t *testing.T) {
	c := NewChecker("test")

	assert.Equal(t, http.StatusOK, serve(t, c, "/health/live").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, c, "/health/ready").Code)

	c.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(t, c, "/health/ready").Code)
}
