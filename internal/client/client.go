// Package client talks to the contest REST API on behalf of one competitor.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/arena-go/internal/dto"
	"github.com/noah-isme/arena-go/internal/middleware"
)

const defaultTimeout = 15 * time.Second

// maxResponseBytes caps how much of a contest API body is read.
const maxResponseBytes = 4 << 20

const maxErrorMessageBytes = 256

// ErrMissingBaseURL is returned when the client is built without an API address.
var ErrMissingBaseURL = errors.New("contest api base url is required")

// CredentialProvider supplies the bearer token attached to every request.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token returns the token.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// APIError is a non-2xx answer from the contest API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// NotFound reports whether the API answered 404.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	Credentials CredentialProvider
	Transport   http.RoundTripper
	Logger      zerolog.Logger
}

// Client is a contest API client. It satisfies every source interface the
// session package consumes.
type Client struct {
	baseURL     string
	http        *http.Client
	credentials CredentialProvider
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// New constructs a client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrMissingBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		baseURL:     base,
		http:        &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(transport)},
		credentials: cfg.Credentials,
		logger:      cfg.Logger.With().Str("component", "contest_client").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/arena-go/internal/client"),
	}, nil
}

// WithCredentials returns a copy of the client that authenticates as another competitor.
func (c *Client) WithCredentials(credentials CredentialProvider) *Client {
	clone := *c
	clone.credentials = credentials
	return &clone
}

// GetProblem fetches one problem.
func (c *Client) GetProblem(ctx context.Context, id uint) (dto.ProblemResponse, error) {
	var out dto.ProblemResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/problems/%d", id), nil, &out)
	return out, err
}

// ListSnippets fetches the language snippets of a problem.
func (c *Client) ListSnippets(ctx context.Context, problemID uint) ([]dto.SnippetResponse, error) {
	var out []dto.SnippetResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/problems/%d/snippets", problemID), nil, &out)
	return out, err
}

// ListProblems fetches the ordered problem list.
func (c *Client) ListProblems(ctx context.Context) ([]dto.ProblemResponse, error) {
	var out []dto.ProblemResponse
	err := c.do(ctx, http.MethodGet, "/api/problems", nil, &out)
	return out, err
}

// ContestStatus fetches the liveness of the contest owning a problem.
func (c *Client) ContestStatus(ctx context.Context, problemID uint) (dto.ContestStatusResponse, error) {
	var out dto.ContestStatusResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/problems/%d/contest-status", problemID), nil, &out)
	return out, err
}

// LatestSubmission fetches the competitor's stored submission. An empty body
// decodes to a zero value, which callers treat as no submission.
func (c *Client) LatestSubmission(ctx context.Context, problemID uint) (dto.SubmissionResponse, error) {
	var out dto.SubmissionResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/submissions/user/%d", problemID), nil, &out)
	return out, err
}

// TestCode runs code without storing it.
func (c *Client) TestCode(ctx context.Context, req dto.SubmissionRequest) (dto.SubmissionResponse, error) {
	var out dto.SubmissionResponse
	err := c.do(ctx, http.MethodPost, "/api/submissions/test", req, &out)
	return out, err
}

// SubmitCode runs and stores code.
func (c *Client) SubmitCode(ctx context.Context, req dto.SubmissionRequest) (dto.SubmissionResponse, error) {
	var out dto.SubmissionResponse
	err := c.do(ctx, http.MethodPost, "/api/submissions", req, &out)
	return out, err
}

// Ping checks the contest API health endpoint answers 2xx.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	spanCtx, span := c.tracer.Start(ctx, "contest_api.request", trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
	))
	defer span.End()

	err := c.roundTrip(spanCtx, method, path, body, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.CorrelationHeader, id)
	}

	if c.credentials != nil {
		token, err := c.credentials.Token(ctx)
		if err != nil {
			return fmt.Errorf("resolve credentials: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	oversized := len(raw) > maxResponseBytes
	if oversized {
		raw = raw[:maxResponseBytes]
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
		}
		if !apiErr.NotFound() {
			c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("contest api request failed")
		}
		return apiErr
	}
	if oversized {
		return fmt.Errorf("%s %s: response exceeds %d bytes", method, path, maxResponseBytes)
	}

	return decodeBody(raw, out)
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// decodeBody accepts both the {success,data,message} envelope and bare payloads.
func decodeBody(raw []byte, out interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || out == nil {
		return nil
	}

	if trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Success != nil {
			trimmed = bytes.TrimSpace(env.Data)
			if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
				return nil
			}
		}
	}

	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err == nil && env.Message != "" {
		return env.Message
	}
	if len(trimmed) > maxErrorMessageBytes {
		cut := maxErrorMessageBytes
		for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
			cut--
		}
		trimmed = trimmed[:cut]
	}
	return string(trimmed)
}
