package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/arena-go/internal/dto"
	"github.com/noah-isme/arena-go/internal/observability"
)

// Judge runs code against a problem. TestCode never persists; SubmitCode
// replaces the competitor's stored submission for the problem.
type Judge interface {
	TestCode(ctx context.Context, req dto.SubmissionRequest) (dto.SubmissionResponse, error)
	SubmitCode(ctx context.Context, req dto.SubmissionRequest) (dto.SubmissionResponse, error)
}

// Request is what the dispatcher sends for a run.
type Request struct {
	ProblemID uint
	Code      string
	Language  Language
}

const caseDetailsSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["testCase", "status"],
    "properties": {
      "testCase": {"type": "integer", "minimum": 0},
      "status": {"type": "string", "enum": ["PASS", "FAIL", "RE", "TLE", "MLE"]},
      "hidden": {"type": "boolean"}
    }
  }
}`

// Dispatcher issues test and submit runs and normalises the verdict payload.
type Dispatcher struct {
	judge     Judge
	validator *validator.Validate
	schema    *jsonschema.Schema
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(judge Judge, validate *validator.Validate, logger zerolog.Logger) *Dispatcher {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}

	return &Dispatcher{
		judge:     judge,
		validator: validate,
		schema:    jsonschema.MustCompileString("arena://case-details.schema.json", caseDetailsSchema),
		logger:    logger.With().Str("component", "submission_dispatcher").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/arena-go/internal/session/dispatcher"),
	}
}

// Dispatch runs the request in the given mode unless liveness clamps it.
func (d *Dispatcher) Dispatch(ctx context.Context, mode Mode, liveness Liveness, req Request) (Verdict, error) {
	if err := Clamp(string(mode), liveness); err != nil {
		return Verdict{}, err
	}

	payload := dto.SubmissionRequest{
		ProblemID: req.ProblemID,
		Code:      req.Code,
		Language:  string(req.Language),
	}
	if err := d.validator.Struct(payload); err != nil {
		return Verdict{}, err
	}

	spanCtx, span := d.tracer.Start(ctx, "session.dispatch", trace.WithAttributes(
		attribute.String("dispatch.mode", string(mode)),
		attribute.Int64("dispatch.problem_id", int64(req.ProblemID)),
		attribute.String("dispatch.language", string(req.Language)),
	))
	defer span.End()

	var (
		response dto.SubmissionResponse
		err      error
	)
	switch mode {
	case ModeTest:
		response, err = d.judge.TestCode(spanCtx, payload)
	case ModeSubmit:
		response, err = d.judge.SubmitCode(spanCtx, payload)
	default:
		return Verdict{}, fmt.Errorf("unknown dispatch mode %q", mode)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.Dispatches().WithLabelValues(string(mode), "error").Inc()
		return Verdict{}, transient(string(mode), err)
	}

	verdict := d.Normalize(mode, response)
	observability.Dispatches().WithLabelValues(string(mode), string(verdict.Status)).Inc()
	span.SetAttributes(attribute.String("dispatch.status", string(verdict.Status)))

	return verdict, nil
}

// Normalize turns the wire verdict into a Verdict, decoding the embedded
// test case details.
func (d *Dispatcher) Normalize(mode Mode, response dto.SubmissionResponse) Verdict {
	verdict := Verdict{
		Mode:            mode,
		Status:          VerdictStatus(strings.ToUpper(strings.TrimSpace(response.Status))),
		TestCasesPassed: response.TestCasesPassed,
		TotalTestCases:  response.TotalTestCases,
		Score:           response.Score,
		TimeConsumedMs:  response.TimeConsumed,
	}
	if verdict.Status == "" {
		verdict.Status = StatusPending
	}

	if verdict.IsError() {
		verdict.ErrorMessage = response.ErrorMessage
		return verdict
	}

	cases, err := d.decodeCases(response.TestCaseDetails)
	if err != nil {
		d.logger.Warn().Err(err).Uint("problem_id", response.ProblemID).Msg("discarding malformed test case details")
		return verdict
	}
	verdict.Cases = cases

	return verdict
}

func (d *Dispatcher) decodeCases(raw string) ([]CaseOutcome, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}

	var generic interface{}
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, fmt.Errorf("decode test case details: %w", err)
	}
	if err := d.schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("validate test case details: %w", err)
	}

	var cases []CaseOutcome
	if err := json.Unmarshal([]byte(raw), &cases); err != nil {
		return nil, fmt.Errorf("decode test case details: %w", err)
	}
	return cases, nil
}

// Clamp refuses action when liveness says the contest is inactive or gone.
func Clamp(action string, liveness Liveness) error {
	if liveness.Allows() {
		return nil
	}

	reason := LockDeactivated
	if !liveness.Status.Exists {
		reason = LockDeleted
	}
	observability.ClampRefusals().WithLabelValues(action).Inc()

	return &ClampError{Action: action, Reason: reason, Redirect: ContestsRedirect}
}
