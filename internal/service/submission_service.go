package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/arena-go/internal/dto"
	"github.com/noah-isme/arena-go/internal/models"
	"github.com/noah-isme/arena-go/internal/repository"
	dockerexec "github.com/noah-isme/arena-go/pkg/docker"
)

// ErrSubmissionNotFound indicates the user has no stored submission for the problem.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrContestClosed indicates the problem's contest does not accept runs.
var ErrContestClosed = errors.New("contest is not active")

// SubmissionService judges code for competitors.
type SubmissionService interface {
	Test(ctx context.Context, userID uint, payload dto.SubmissionRequest) (dto.SubmissionResponse, error)
	Submit(ctx context.Context, userID uint, payload dto.SubmissionRequest) (dto.SubmissionResponse, error)
	Latest(ctx context.Context, userID, problemID uint) (dto.SubmissionResponse, error)
	History(ctx context.Context, userID uint) ([]dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	problems    repository.ProblemRepository
	contests    repository.ContestRepository
	judge       *judge
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs a submission service.
func NewSubmissionService(submissions repository.SubmissionRepository, problems repository.ProblemRepository, contests repository.ContestRepository, executor dockerexec.Executor, validate *validator.Validate, logger zerolog.Logger, cfg JudgeConfig) SubmissionService {
	return &submissionService{
		submissions: submissions,
		problems:    problems,
		contests:    contests,
		judge:       newJudge(executor, cfg, logger),
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/arena-go/internal/service/submission"),
		now:         time.Now,
	}
}

func (s *submissionService) Test(ctx context.Context, userID uint, payload dto.SubmissionRequest) (dto.SubmissionResponse, error) {
	submission, err := s.evaluate(ctx, userID, payload, "submissions.test")
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Submit(ctx context.Context, userID uint, payload dto.SubmissionRequest) (dto.SubmissionResponse, error) {
	submission, err := s.evaluate(ctx, userID, payload, "submissions.submit")
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if err := s.submissions.Upsert(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("store submission: %w", err)
	}

	s.logger.Info().
		Uint("user_id", userID).
		Uint("problem_id", submission.ProblemID).
		Str("status", submission.Status).
		Int("score", submission.Score).
		Msg("submission stored")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Latest(ctx context.Context, userID, problemID uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.Latest(ctx, userID, problemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}
	return dto.NewSubmissionResponse(submission), nil
}

// History lists the user's stored submissions across problems, newest first.
func (s *submissionService) History(ctx context.Context, userID uint) ([]dto.SubmissionResponse, error) {
	submissions, err := s.submissions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) evaluate(ctx context.Context, userID uint, payload dto.SubmissionRequest, spanName string) (models.Submission, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.Submission{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.Int64("submission.user_id", int64(userID)),
		attribute.Int64("submission.problem_id", int64(payload.ProblemID)),
		attribute.String("submission.language", payload.Language),
	))
	defer span.End()

	problem, err := s.problems.GetByID(spanCtx, payload.ProblemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrProblemNotFound
		}
		return models.Submission{}, err
	}

	if err := s.ensureContestOpen(spanCtx, problem); err != nil {
		return models.Submission{}, err
	}

	template := ""
	snippet, err := s.problems.Snippet(spanCtx, problem.ID, payload.Language)
	switch {
	case err == nil:
		template = snippet.SolutionTemplate
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return models.Submission{}, err
	}

	cases, err := s.problems.TestCases(spanCtx, problem.ID)
	if err != nil {
		return models.Submission{}, err
	}

	outcome, err := s.judge.run(spanCtx, problem, payload.Language, mergeTemplate(template, payload.Code), cases)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.Submission{}, err
	}
	span.SetAttributes(attribute.String("submission.status", outcome.Status))

	details, err := json.Marshal(outcome.Details)
	if err != nil {
		return models.Submission{}, fmt.Errorf("encode test case details: %w", err)
	}

	return models.Submission{
		UserID:          userID,
		ProblemID:       problem.ID,
		ContestID:       problemContestID(problem),
		Code:            payload.Code,
		Language:        payload.Language,
		Status:          outcome.Status,
		Score:           outcome.Score,
		TestCasesPassed: outcome.Passed,
		TotalTestCases:  outcome.Total,
		TimeConsumed:    outcome.TimeMs,
		ErrorMessage:    outcome.ErrorMessage,
		TestCaseDetails: datatypes.JSON(details),
		ProblemName:     problem.Title,
		SubmittedAt:     s.now().UTC(),
	}, nil
}

// ensureContestOpen refuses runs for problems whose contest is gone or inactive.
// Problems outside any contest are always open.
func (s *submissionService) ensureContestOpen(ctx context.Context, problem models.Problem) error {
	if problem.ContestID == nil {
		return nil
	}
	contest, err := s.contests.GetByID(ctx, *problem.ContestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrContestClosed
		}
		return err
	}
	if !contest.Active {
		return ErrContestClosed
	}
	return nil
}
