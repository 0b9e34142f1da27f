package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/arena-go/internal/dto"
	"github.com/noah-isme/arena-go/internal/repository"
)

// ContestQueryService serves contests and their rankings to competitors.
type ContestQueryService interface {
	List(ctx context.Context) ([]dto.ContestResponse, error)
	Get(ctx context.Context, id uint) (dto.ContestDetailResponse, error)
	Leaderboard(ctx context.Context, id uint) ([]dto.LeaderboardEntry, error)
}

type contestQueryService struct {
	contests    repository.ContestRepository
	problems    repository.ProblemRepository
	submissions repository.SubmissionRepository
	logger      zerolog.Logger
	now         func() time.Time
}

// NewContestQueryService constructs the competitor-facing contest service.
func NewContestQueryService(contests repository.ContestRepository, problems repository.ProblemRepository, submissions repository.SubmissionRepository, logger zerolog.Logger) ContestQueryService {
	return &contestQueryService{
		contests:    contests,
		problems:    problems,
		submissions: submissions,
		logger:      logger.With().Str("component", "contest_query_service").Logger(),
		now:         time.Now,
	}
}

func (s *contestQueryService) List(ctx context.Context) ([]dto.ContestResponse, error) {
	summaries, err := s.contests.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out := make([]dto.ContestResponse, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, dto.NewContestResponse(summary.Contest, summary.ProblemCount, now))
	}
	return out, nil
}

func (s *contestQueryService) Get(ctx context.Context, id uint) (dto.ContestDetailResponse, error) {
	contest, err := s.contests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ContestDetailResponse{}, ErrContestNotFound
		}
		return dto.ContestDetailResponse{}, err
	}

	problems, err := s.problems.ListByContest(ctx, id)
	if err != nil {
		return dto.ContestDetailResponse{}, err
	}

	return dto.ContestDetailResponse{
		ContestResponse: dto.NewContestResponse(contest, int64(len(problems)), s.now().UTC()),
		Problems:        dto.NewProblemResponseSlice(problems),
	}, nil
}

// Leaderboard ranks competitors by their summed stored scores. Competitors
// with the same score and accepted count share a rank and the next rank skips.
func (s *contestQueryService) Leaderboard(ctx context.Context, id uint) ([]dto.LeaderboardEntry, error) {
	if _, err := s.contests.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, err
	}

	standings, err := s.submissions.Standings(ctx, id)
	if err != nil {
		return nil, err
	}

	entries := make([]dto.LeaderboardEntry, 0, len(standings))
	for i, standing := range standings {
		rank := i + 1
		if i > 0 {
			prev := standings[i-1]
			if prev.TotalScore == standing.TotalScore && prev.Solved == standing.Solved {
				rank = entries[i-1].Rank
			}
		}
		entries = append(entries, dto.LeaderboardEntry{
			Rank:       rank,
			UserID:     standing.UserID,
			TotalScore: standing.TotalScore,
			Solved:     standing.Solved,
			Attempted:  standing.Attempted,
		})
	}

	s.logger.Debug().Uint("contest_id", id).Int("entries", len(entries)).Msg("leaderboard computed")
	return entries, nil
}
