package session

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/arena-go/internal/dto"
)

// ProblemSource fetches problem metadata and snippets.
type ProblemSource interface {
	GetProblem(ctx context.Context, id uint) (dto.ProblemResponse, error)
	ListSnippets(ctx context.Context, problemID uint) ([]dto.SnippetResponse, error)
}

// SubmissionSource fetches the competitor's latest submission for a problem.
type SubmissionSource interface {
	LatestSubmission(ctx context.Context, problemID uint) (dto.SubmissionResponse, error)
}

// ProblemResolver loads the problem statement and its snippet set.
type ProblemResolver struct {
	source ProblemSource
	logger zerolog.Logger
}

// NewProblemResolver constructs a problem resolver.
func NewProblemResolver(source ProblemSource, logger zerolog.Logger) *ProblemResolver {
	return &ProblemResolver{
		source: source,
		logger: logger.With().Str("component", "problem_resolver").Logger(),
	}
}

// ResolveProblem fetches the problem. A not-found answer yields ErrProblemGone.
func (r *ProblemResolver) ResolveProblem(ctx context.Context, id uint) (Problem, error) {
	payload, err := r.source.GetProblem(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return Problem{}, ErrProblemGone
		}
		return Problem{}, transient("fetch problem", err)
	}
	if payload.ID == 0 {
		return Problem{}, ErrProblemGone
	}
	return problemFromPayload(payload), nil
}

// ResolveSnippets fetches the snippet set. Failures are logged and produce an
// empty set so the editor still loads.
func (r *ProblemResolver) ResolveSnippets(ctx context.Context, id uint) SnippetSet {
	set := SnippetSet{}

	payload, err := r.source.ListSnippets(ctx, id)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn().Err(err).Uint("problem_id", id).Msg("snippet fetch failed")
		}
		return set
	}

	for _, snippet := range payload {
		lang, err := ParseLanguage(snippet.Language)
		if err != nil {
			r.logger.Debug().Str("language", snippet.Language).Uint("problem_id", id).Msg("skipping snippet with unknown language")
			continue
		}
		set[lang] = Snippet{StarterCode: snippet.StarterCode, SolutionTemplate: snippet.SolutionTemplate}
	}

	return set
}

// Resolve fetches the problem and snippets concurrently.
func (r *ProblemResolver) Resolve(ctx context.Context, id uint) (Problem, SnippetSet, error) {
	var (
		problem  Problem
		snippets SnippetSet
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		problem, err = r.ResolveProblem(gctx, id)
		return err
	})
	g.Go(func() error {
		snippets = r.ResolveSnippets(gctx, id)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Problem{}, nil, err
	}
	return problem, snippets, nil
}

// SubmissionResolver loads the competitor's prior submission.
type SubmissionResolver struct {
	source SubmissionSource
	logger zerolog.Logger
}

// NewSubmissionResolver constructs a submission resolver.
func NewSubmissionResolver(source SubmissionSource, logger zerolog.Logger) *SubmissionResolver {
	return &SubmissionResolver{
		source: source,
		logger: logger.With().Str("component", "submission_resolver").Logger(),
	}
}

// Resolve returns the latest submission, or nil when there is none. Not-found is
// the expected outcome for a fresh problem and is not an error. Any other failure
// is logged and returned as a TransientError; callers treat it as "no submission".
func (r *SubmissionResolver) Resolve(ctx context.Context, problemID uint) (*Submission, error) {
	payload, err := r.source.LatestSubmission(ctx, problemID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		if ctx.Err() == nil {
			r.logger.Error().Err(err).Uint("problem_id", problemID).Msg("unexpected error fetching submission")
		}
		return nil, transient("fetch submission", err)
	}

	if payload.ID == 0 && payload.Code == "" {
		return nil, nil
	}

	lang, err := ParseLanguage(payload.Language)
	if err != nil {
		lang = DefaultLanguage
	}

	return &Submission{
		ID:              payload.ID,
		ProblemID:       problemID,
		Code:            payload.Code,
		Language:        lang,
		Status:          VerdictStatus(strings.ToUpper(payload.Status)),
		Score:           payload.Score,
		TestCasesPassed: payload.TestCasesPassed,
		TotalTestCases:  payload.TotalTestCases,
		SubmittedAt:     copyTime(payload.SubmittedAt),
	}, nil
}

func problemFromPayload(payload dto.ProblemResponse) Problem {
	examples := make([]string, 0, 3)
	for _, example := range []string{payload.Example1, payload.Example2, payload.Example3} {
		if strings.TrimSpace(example) != "" {
			examples = append(examples, example)
		}
	}

	return Problem{
		ID:           payload.ID,
		ContestID:    payload.ContestID,
		Title:        payload.Title,
		Description:  payload.Description,
		InputFormat:  payload.InputFormat,
		OutputFormat: payload.OutputFormat,
		Constraints:  payload.Constraints,
		Examples:     examples,
		Images:       splitImages(payload.Images),
		TimeLimit:    payload.TimeLimit,
		MemoryLimit:  payload.MemoryLimit,
		Active:       payload.Active,
	}
}

func splitImages(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
