package utils_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/arena-go/internal/utils"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Details []utils.FieldError `json:"details"`
}

func TestSendSuccessWithStatus(t *testing.T) {
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "", map[string]string{"id": "s-1"})
	})

	resp := performRequest(t, app, http.MethodPost, "/")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var payload envelope
	decode(t, resp, &payload)
	require.True(t, payload.Success)
	require.Equal(t, "success", payload.Message)
	require.JSONEq(t, `{"id":"s-1"}`, string(payload.Data))
}

func TestFailIncludesDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.Fail(c, fiber.StatusConflict, "submit refused", map[string]string{"reason": "deleted"})
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var payload map[string]interface{}
	decode(t, resp, &payload)
	require.Equal(t, false, payload["success"])
	require.Equal(t, "submit refused", payload["message"])
	require.Equal(t, map[string]interface{}{"reason": "deleted"}, payload["details"])
	require.NotContains(t, payload, "data")
}

func TestSendErrorOmitsDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusNotFound, "")
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var payload map[string]interface{}
	decode(t, resp, &payload)
	require.Equal(t, "error", payload["message"])
	require.NotContains(t, payload, "details")
}

func TestValidationFailedListsFields(t *testing.T) {
	type runRequest struct {
		ProblemID uint   `json:"problemId" validate:"required,gt=0"`
		Language  string `json:"language" validate:"required,oneof=JAVA CPP"`
	}
	err := validator.New().Struct(runRequest{Language: "RUST"})
	require.Error(t, err)

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return utils.ValidationFailed(c, err) })
	app.Get("/plain", func(c *fiber.Ctx) error { return utils.ValidationFailed(c, errors.New("bad body")) })

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var payload envelope
	decode(t, resp, &payload)
	require.Equal(t, "validation failed", payload.Message)
	require.Equal(t, []utils.FieldError{
		{Field: "ProblemID", Rule: "required"},
		{Field: "Language", Rule: "oneof", Param: "JAVA CPP"},
	}, payload.Details)

	resp = performRequest(t, app, http.MethodGet, "/plain")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	decode(t, resp, &payload)
	require.Equal(t, "bad body", payload.Message)
}

func performRequest(t *testing.T, app *fiber.App, method, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
