package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsByRoute(t *testing.T) {
	Init()
	Init()

	e := echo.New()
	e.Use(Middleware())
	e.GET("/users/edit-:id/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/missing/", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound)
	})
	e.GET("/metrics", Handler())

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("/users/edit-:id/", http.MethodGet, "200"))
	for _, target := range []string{"/users/edit-1/", "/users/edit-2/", "/missing/"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	assert.Equal(t, before+2, testutil.ToFloat64(RequestsTotal.WithLabelValues("/users/edit-:id/", http.MethodGet, "200")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(RequestsTotal.WithLabelValues("/missing/", http.MethodGet, "404")), 1.0)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
