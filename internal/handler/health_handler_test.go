package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/arena-go/internal/config"
	"github.com/noah-isme/arena-go/internal/handler"
)

func TestHealthCheckReportsProbes(t *testing.T) {
	redisUp := true
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(config.Config{AppName: "arena", AppEnv: "test"}, "gateway", map[string]handler.HealthProbe{
		"contest_api": func(context.Context) error { return nil },
		"redis": func(context.Context) error {
			if redisUp {
				return nil
			}
			return errors.New("connection refused")
		},
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ok struct {
		Data handler.HealthResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ok))
	require.Equal(t, "ok", ok.Data.Status)
	require.Equal(t, map[string]string{"contest_api": "ok", "redis": "ok"}, ok.Data.Dependencies)

	redisUp = false
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var degraded struct {
		Success bool                   `json:"success"`
		Details handler.HealthResponse `json:"details"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&degraded))
	require.False(t, degraded.Success)
	require.Equal(t, "degraded", degraded.Details.Status)
	require.Equal(t, "connection refused", degraded.Details.Dependencies["redis"])
	require.Equal(t, "gateway", degraded.Details.Component)
}
