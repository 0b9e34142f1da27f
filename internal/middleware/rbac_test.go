package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name   string
		userID interface{}
		role   interface{}
		status int
	}{
		{name: "admin", userID: uint(1), role: "admin", status: http.StatusOK},
		{name: "teacher mixed case", userID: uint(2), role: " Teacher ", status: http.StatusOK},
		{name: "student", userID: uint(3), role: "student", status: http.StatusForbidden},
		{name: "no role", userID: uint(4), status: http.StatusForbidden},
		{name: "anonymous", status: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(func(c *fiber.Ctx) error {
				if tc.userID != nil {
					c.Locals("user_id", tc.userID)
				}
				if tc.role != nil {
					c.Locals("user_role", tc.role)
				}
				return c.Next()
			})
			app.Get("/admin/contests/stats", RequireRole("ADMIN", "teacher", ""), func(c *fiber.Ctx) error {
				return c.SendStatus(http.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/contests/stats", nil))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			if tc.status == http.StatusForbidden {
				var body struct {
					Details struct {
						RequiredRoles []string `json:"required_roles"`
					} `json:"details"`
				}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				require.Equal(t, []string{"admin", "teacher"}, body.Details.RequiredRoles)
			}
		})
	}
}

func TestRateLimitPerCompetitor(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if user := c.Get("X-User"); user == "a" {
			c.Locals("user_id", uint(1))
		} else {
			c.Locals("user_id", uint(2))
		}
		return c.Next()
	})
	app.Post("/run", RateLimit("runs", 2, 0), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/run", nil)
		req.Header.Set("X-User", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, http.StatusOK, send("a"))
	require.Equal(t, http.StatusOK, send("a"))
	require.Equal(t, http.StatusTooManyRequests, send("a"))
	require.Equal(t, http.StatusOK, send("b"))
}

func TestCorrelationID(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(CorrelationIDFromContext(c.UserContext()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "abc-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "abc-123", resp.Header.Get(CorrelationHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "has spaces inside")
	resp, err = app.Test(req)
	require.NoError(t, err)
	generated := resp.Header.Get(CorrelationHeader)
	require.NotEqual(t, "has spaces inside", generated)
	require.Len(t, generated, 36)
}
