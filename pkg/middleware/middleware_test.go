package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/context"
)

func discard() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newEcho(debug bool) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = Error(discard(), debug)
	e.Use(Context())
	e.Use(Logger(discard()))
	e.Use(Metrics())
	return e
}

func TestContext(t *testing.T) {
	e := newEcho(false)
	e.GET("/who", func(c echo.Context) error {
		ctx := c.Request().Context()
		return c.JSON(http.StatusOK, map[string]string{
			"request_id": context.GetRequestID(ctx),
			"user_id":    context.GetUserID(ctx),
		})
	})

	t.Run("propagates request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/who", nil)
		req.Header.Set(echo.HeaderXRequestID, "req-1")
		req.Header.Set(HeaderUserID, "alice")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "req-1", body["request_id"])
		assert.Equal(t, "alice", body["user_id"])
		assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("generates request id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/who", nil))
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})
}

func TestError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		debug      bool
		wantStatus int
		wantMeta   []string
	}{
		{
			name:       "http error",
			err:        httperror.NewHTTPError(http.StatusConflict, "taken"),
			wantStatus: http.StatusConflict,
		},
		{
			name:       "http error meta",
			err:        httperror.NewHTTPError(http.StatusPreconditionFailed, "blocked").AddMetaValue("dependents", []string{"a"}),
			wantStatus: http.StatusPreconditionFailed,
			wantMeta:   []string{"dependents"},
		},
		{
			name:       "echo error",
			err:        echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"),
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "plain error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "debug adds traceback",
			err:        errors.New("boom"),
			debug:      true,
			wantStatus: http.StatusInternalServerError,
			wantMeta:   []string{"error", "traceback"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho(tt.debug)
			e.GET("/fail", func(echo.Context) error { return tt.err })

			req := httptest.NewRequest(http.MethodGet, "/fail", nil)
			req.Header.Set(echo.HeaderXRequestID, "req-2")
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Message)
			assert.Equal(t, "req-2", body.RequestID)
			for _, key := range tt.wantMeta {
				assert.Contains(t, body.Meta, key)
			}
			if !tt.debug {
				assert.NotContains(t, body.Meta, "traceback")
			}
		})
	}
}
