package middleware

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/arena-go/internal/utils"
)

// AccessTokenLocal is the fiber local holding the validated raw bearer token.
const AccessTokenLocal = "access_token"

var errNoCompetitor = errors.New("token carries no competitor id")

// CompetitorClaims are the claims the contest platform signs. The competitor
// id is read from sub, falling back to user_id.
type CompetitorClaims struct {
	jwt.RegisteredClaims
	UserID json.Number `json:"user_id,omitempty"`
	Role   string      `json:"role,omitempty"`
	Roles  []string    `json:"roles,omitempty"`
}

// Competitor returns the numeric competitor id.
func (c CompetitorClaims) Competitor() (uint, error) {
	for _, raw := range []string{c.Subject, c.UserID.String()} {
		if raw == "" {
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err == nil && id > 0 {
			return uint(id), nil
		}
	}
	return 0, errNoCompetitor
}

// PrimaryRole returns the lower-cased role, preferring role over roles.
func (c CompetitorClaims) PrimaryRole() string {
	for _, role := range append([]string{c.Role}, c.Roles...) {
		if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
			return normalized
		}
	}
	return ""
}

// JWTProtected validates HS256 bearer tokens and stores the competitor id,
// role and raw token in fiber locals. Websocket upgrades may pass the token
// as the access_token query parameter instead.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

	return func(c *fiber.Ctx) error {
		raw, message := bearerToken(c)
		if raw == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, message)
		}

		var claims CompetitorClaims
		if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}
		userID, err := claims.Competitor()
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		c.Locals("user_id", userID)
		if role := claims.PrimaryRole(); role != "" {
			c.Locals("user_role", role)
		}
		c.Locals(AccessTokenLocal, raw)

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, string) {
	authorization := c.Get(fiber.HeaderAuthorization)
	if authorization == "" {
		if websocket.IsWebSocketUpgrade(c) {
			if token := strings.TrimSpace(c.Query("access_token")); token != "" {
				return token, ""
			}
		}
		return "", "authorization header missing"
	}

	scheme, token, found := strings.Cut(authorization, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization header"
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", "invalid token"
	}
	return token, ""
}

// IssueToken signs an HS256 competitor token. It backs local tooling and
// tests; production tokens come from the contest platform.
func IssueToken(secret string, userID uint, role string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := CompetitorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
