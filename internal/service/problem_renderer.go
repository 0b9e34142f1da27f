package service

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arena-go/internal/dto"
	"github.com/noah-isme/arena-go/internal/session"
)

// ImageResolver turns a stored image reference into a deliverable URL.
type ImageResolver interface {
	ResolveImage(ref string) (string, error)
}

// ProblemRenderer prepares a problem statement for display: statement HTML is
// sanitised and image references are resolved to delivery URLs.
type ProblemRenderer struct {
	policy *bluemonday.Policy
	images ImageResolver
	logger zerolog.Logger
}

// NewProblemRenderer constructs a renderer. images may be nil, in which case
// image references are passed through unchanged.
func NewProblemRenderer(images ImageResolver, logger zerolog.Logger) *ProblemRenderer {
	return &ProblemRenderer{
		policy: bluemonday.UGCPolicy(),
		images: images,
		logger: logger.With().Str("component", "problem_renderer").Logger(),
	}
}

// Render maps a session problem; nil stays nil.
func (r *ProblemRenderer) Render(problem *session.Problem) *dto.SessionProblemResponse {
	if problem == nil {
		return nil
	}

	examples := make([]string, 0, len(problem.Examples))
	for _, example := range problem.Examples {
		examples = append(examples, r.policy.Sanitize(example))
	}

	return &dto.SessionProblemResponse{
		ID:           problem.ID,
		ContestID:    problem.ContestID,
		Title:        strings.TrimSpace(problem.Title),
		Description:  r.policy.Sanitize(problem.Description),
		InputFormat:  r.policy.Sanitize(problem.InputFormat),
		OutputFormat: r.policy.Sanitize(problem.OutputFormat),
		Constraints:  r.policy.Sanitize(problem.Constraints),
		Examples:     examples,
		Images:       r.resolveImages(problem.ID, problem.Images),
		TimeLimit:    problem.TimeLimit,
		MemoryLimit:  problem.MemoryLimit,
	}
}

func (r *ProblemRenderer) resolveImages(problemID uint, refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if r.images == nil {
			out = append(out, ref)
			continue
		}
		url, err := r.images.ResolveImage(ref)
		if err != nil {
			r.logger.Warn().Err(err).Uint("problem_id", problemID).Str("image", ref).Msg("failed to resolve problem image")
			out = append(out, ref)
			continue
		}
		out = append(out, url)
	}
	return out
}
