package http

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helpdeskpro/helpdesk-service/internal/observability"
	apperrors "github.com/helpdeskpro/helpdesk-service/pkg/util"
)

func newTestApp(metrics *observability.Metrics) *fiber.App {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	return app
}

func TestMiddleware_DomainErrorEnvelope(t *testing.T) {
	metrics := observability.NewMetrics()
	app := newTestApp(metrics)
	app.Get("/missing", func(c *fiber.Ctx) error {
		return apperrors.NewNotFound("ticket", map[string]any{"id": "t-1"})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestMiddleware_RequestCounterSeesErrorStatus(t *testing.T) {
	metrics := observability.NewMetrics()
	app := newTestApp(metrics)
	app.Get("/broken", func(c *fiber.Ctx) error {
		return apperrors.NewValidationError("bad input", nil)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/broken", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, int64(1), metrics.Requests("/broken", "GET", 400))
	assert.Zero(t, metrics.Requests("/broken", "GET", 200))
}

func TestMiddleware_FiberErrorKeepsStatus(t *testing.T) {
	metrics := observability.NewMetrics()
	app := newTestApp(metrics)
	app.Get("/forbidden", func(c *fiber.Ctx) error {
		return fiber.NewError(403, "insufficient role")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/forbidden", nil))
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestMiddleware_PanicRecovered(t *testing.T) {
	metrics := observability.NewMetrics()
	app := newTestApp(metrics)
	app.Get("/panic", func(c *fiber.Ctx) error {
		panic(errors.New("boom"))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/panic", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, int64(1), metrics.Requests("/panic", "GET", 500))
}
