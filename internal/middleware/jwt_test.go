package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "arena-secret"

func newJWTApp() *fiber.App {
	app := fiber.New()
	app.Use(JWTProtected(testSecret))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id": c.Locals("user_id"),
			"role":    c.Locals("user_role"),
			"token":   c.Locals(AccessTokenLocal),
		})
	})
	return app
}

func TestJWTProtectedAcceptsBearerToken(t *testing.T) {
	token, err := IssueToken(testSecret, 42, "Student", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := newJWTApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		UserID uint   `json:"user_id"`
		Role   string `json:"role"`
		Token  string `json:"token"`
	}
	require.NoError(t, decodeJSON(resp, &payload))
	require.Equal(t, uint(42), payload.UserID)
	require.Equal(t, "student", payload.Role)
	require.Equal(t, token, payload.Token)
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	foreign, err := IssueToken("other-secret", 1, "student", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, 1, "student", -time.Hour)
	require.NoError(t, err)

	cases := map[string]string{
		"missing":        "",
		"wrong scheme":   "Basic abc",
		"foreign secret": "Bearer " + foreign,
		"garbage":        "Bearer not-a-jwt",
		"expired":        "Bearer " + expired,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := newJWTApp().Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestJWTProtectedQueryTokenOnlyForWebsocketUpgrades(t *testing.T) {
	token, err := IssueToken(testSecret, 9, "student", time.Hour)
	require.NoError(t, err)

	plain := httptest.NewRequest(http.MethodGet, "/me?access_token="+token, nil)
	resp, err := newJWTApp().Test(plain)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	upgrade := httptest.NewRequest(http.MethodGet, "/me?access_token="+token, nil)
	upgrade.Header.Set("Connection", "Upgrade")
	upgrade.Header.Set("Upgrade", "websocket")
	resp, err = newJWTApp().Test(upgrade)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCompetitorClaims(t *testing.T) {
	claims := CompetitorClaims{UserID: "17", Roles: []string{" ", "Teacher"}}
	id, err := claims.Competitor()
	require.NoError(t, err)
	require.Equal(t, uint(17), id)
	require.Equal(t, "teacher", claims.PrimaryRole())

	claims.Subject = "3"
	claims.Role = "Admin"
	id, err = claims.Competitor()
	require.NoError(t, err)
	require.Equal(t, uint(3), id)
	require.Equal(t, "admin", claims.PrimaryRole())

	_, err = CompetitorClaims{}.Competitor()
	require.ErrorIs(t, err, errNoCompetitor)
}

func TestJWTProtectedRejectsTokenWithoutExpiry(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "4"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := newJWTApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func decodeJSON(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}
