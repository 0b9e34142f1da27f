package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/arena-go/internal/observability"
)

func TestObservabilityRecordsFinalStatus(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(Observability(zerolog.New(&buf)))
	app.Get("/api/problems/:id", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(7))
		return fiber.NewError(fiber.StatusNotFound, "problem not found")
	})
	app.Get("/static", func(c *fiber.Ctx) error { return c.SendString("ok") })

	errCounter := observability.HTTPErrors().WithLabelValues(http.MethodGet, "/api/problems/:id", "404")
	before := counterValue(t, errCounter)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/problems/12", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Equal(t, before+1, counterValue(t, errCounter))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "/api/problems/:id", line["route"])
	require.Equal(t, float64(404), line["status"])
	require.Equal(t, float64(7), line["user_id"])

	buf.Reset()
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/static", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Zero(t, buf.Len())
}

func counterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, counter.Write(&metric))
	return metric.GetCounter().GetValue()
}
