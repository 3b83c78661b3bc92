// Package apitest serves route handlers over a fresh in-memory registry.
package apitest

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/registry"
)

const BasePath = "/api/v1"

// Server is an echo instance with the production error handler installed.
type Server struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Registry *registry.Service
}

func NewServer(t *testing.T) *Server {
	t.Helper()

	logger := testutil.NewLogger()
	reg := registry.NewService(testutil.NewTestDB(t), logger)

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger, false)
	e.Use(middleware.Context())

	return &Server{
		Echo:     e,
		Group:    e.Group(BasePath),
		Registry: reg,
	}
}

// Do sends a request with an optional JSON body to BasePath+path.
func (s *Server) Do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, BasePath+path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

// Decode unmarshals the recorded body into a value of type T.
func Decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// ErrorBody is the JSON shape written by the error handler.
type ErrorBody = middleware.ErrorResponse
