package client_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/arena-go/internal/client"
	"github.com/noah-isme/arena-go/internal/dto"
	"github.com/noah-isme/arena-go/internal/middleware"
	"github.com/noah-isme/arena-go/internal/session"
)

type fiberTransport struct {
	app *fiber.App
}

func (t fiberTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.app.Test(req, -1)
}

func newTestClient(t *testing.T, app *fiber.App, token string) *client.Client {
	t.Helper()
	c, err := client.New(client.Config{
		BaseURL:     "http://contest.test/",
		Credentials: client.StaticToken(token),
		Transport:   fiberTransport{app: app},
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return c
}

func TestClientDecodesEnvelope(t *testing.T) {
	app := fiber.New()
	app.Get("/api/problems/:id", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "problem retrieved",
			"data":    fiber.Map{"id": 7, "title": "Two Sum", "timeLimit": 1.5},
		})
	})

	problem, err := newTestClient(t, app, "").GetProblem(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, uint(7), problem.ID)
	require.Equal(t, "Two Sum", problem.Title)
	require.Equal(t, 1.5, problem.TimeLimit)
}

func TestClientDecodesBareBody(t *testing.T) {
	app := fiber.New()
	app.Get("/api/problems/:id/contest-status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"active": true, "exists": true, "contestName": "Spring Cup"})
	})

	status, err := newTestClient(t, app, "").ContestStatus(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, status.Active)
	require.True(t, status.Exists)
	require.Equal(t, "Spring Cup", status.ContestName)
}

func TestClientNotFoundIsRecognised(t *testing.T) {
	app := fiber.New()
	app.Get("/api/submissions/user/:id", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "submission not found"})
	})

	_, err := newTestClient(t, app, "").LatestSubmission(context.Background(), 4)
	require.Error(t, err)
	require.True(t, session.IsNotFound(err))

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "submission not found", apiErr.Message)
}

func TestClientEmptyBodyYieldsZeroValue(t *testing.T) {
	app := fiber.New()
	app.Get("/api/submissions/user/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	submission, err := newTestClient(t, app, "").LatestSubmission(context.Background(), 4)
	require.NoError(t, err)
	require.Zero(t, submission.ID)
	require.Empty(t, submission.Code)
}

func TestClientServerErrorIsNotNotFound(t *testing.T) {
	app := fiber.New()
	app.Get("/api/problems", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusBadGateway).SendString("upstream down")
	})

	_, err := newTestClient(t, app, "").ListProblems(context.Background())
	require.Error(t, err)
	require.False(t, session.IsNotFound(err))
	require.Contains(t, err.Error(), "upstream down")
}

func TestClientTruncatesErrorBodyOnRuneBoundary(t *testing.T) {
	app := fiber.New()
	app.Get("/api/problems", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusInternalServerError).SendString("x" + strings.Repeat("é", 300))
	})

	_, err := newTestClient(t, app, "").ListProblems(context.Background())
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	require.True(t, utf8.ValidString(apiErr.Message))
	require.LessOrEqual(t, len(apiErr.Message), 256)
	require.Equal(t, "x"+strings.Repeat("é", 127), apiErr.Message)
}

func TestClientRejectsOversizedBody(t *testing.T) {
	app := fiber.New()
	app.Get("/api/problems", func(c *fiber.Ctx) error {
		return c.SendString("[" + strings.Repeat(" ", 4<<20) + "]")
	})

	_, err := newTestClient(t, app, "").ListProblems(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds")
}

func TestClientForwardsBearerTokenAndBody(t *testing.T) {
	var (
		authorization string
		received      dto.SubmissionRequest
	)

	app := fiber.New()
	app.Post("/api/submissions/test", func(c *fiber.Ctx) error {
		authorization = c.Get("Authorization")
		if err := c.BodyParser(&received); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "ok", "data": fiber.Map{
			"problemId":       received.ProblemID,
			"status":          "AC",
			"score":           100,
			"testCasesPassed": 2,
			"totalTestCases":  2,
			"testCaseDetails": `[{"testCase":1,"status":"PASS","hidden":false}]`,
		}})
	})

	verdict, err := newTestClient(t, app, "secret-token").TestCode(context.Background(), dto.SubmissionRequest{
		ProblemID: 9,
		Code:      "print(1)",
		Language:  "PYTHON",
	})
	require.NoError(t, err)
	require.Equal(t, "Bearer secret-token", authorization)
	require.Equal(t, uint(9), received.ProblemID)
	require.Equal(t, "PYTHON", received.Language)
	require.Equal(t, "AC", verdict.Status)
	require.Equal(t, 100, verdict.Score)
	require.Contains(t, verdict.TestCaseDetails, "PASS")
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := client.New(client.Config{})
	require.ErrorIs(t, err, client.ErrMissingBaseURL)
}

func TestClientForwardsCorrelationID(t *testing.T) {
	var seen []string
	app := fiber.New()
	app.Get("/api/problems/:id/contest-status", func(c *fiber.Ctx) error {
		seen = append(seen, c.Get(middleware.CorrelationHeader))
		return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"active": true, "exists": true}})
	})
	c := newTestClient(t, app, "tok")

	ctx := middleware.ContextWithCorrelation(context.Background(), "req-42")
	_, err := c.ContestStatus(ctx, 1)
	require.NoError(t, err)
	_, err = c.ContestStatus(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, []string{"req-42", ""}, seen)
}

func TestClientPing(t *testing.T) {
	healthy := true
	app := fiber.New()
	app.Get("/api/v1/health", func(c *fiber.Ctx) error {
		if !healthy {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"success": false, "message": "service degraded"})
		}
		return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"status": "ok"}})
	})
	api := newTestClient(t, app, "")

	require.NoError(t, api.Ping(context.Background()))

	healthy = false
	err := api.Ping(context.Background())
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, fiber.StatusServiceUnavailable, apiErr.StatusCode)
}
