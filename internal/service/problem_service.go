package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/arena-go/internal/dto"
	"github.com/noah-isme/arena-go/internal/models"
	"github.com/noah-isme/arena-go/internal/repository"
)

// ErrProblemNotFound indicates the problem cannot be located.
var ErrProblemNotFound = errors.New("problem not found")

// ProblemService serves problem metadata to competitors.
type ProblemService interface {
	Get(ctx context.Context, id uint) (dto.ProblemResponse, error)
	List(ctx context.Context) ([]dto.ProblemResponse, error)
	ListByContest(ctx context.Context, contestID uint) ([]dto.ProblemResponse, error)
	Snippets(ctx context.Context, problemID uint) ([]dto.SnippetResponse, error)
	ContestStatus(ctx context.Context, problemID uint) (dto.ContestStatusResponse, error)
}

type problemService struct {
	problems repository.ProblemRepository
	contests repository.ContestRepository
	logger   zerolog.Logger
}

// NewProblemService constructs a problem service.
func NewProblemService(problems repository.ProblemRepository, contests repository.ContestRepository, logger zerolog.Logger) ProblemService {
	return &problemService{
		problems: problems,
		contests: contests,
		logger:   logger.With().Str("component", "problem_service").Logger(),
	}
}

func (s *problemService) Get(ctx context.Context, id uint) (dto.ProblemResponse, error) {
	problem, err := s.problems.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProblemResponse{}, ErrProblemNotFound
		}
		return dto.ProblemResponse{}, err
	}
	return dto.NewProblemResponse(problem), nil
}

func (s *problemService) List(ctx context.Context) ([]dto.ProblemResponse, error) {
	problems, err := s.problems.List(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewProblemResponseSlice(problems), nil
}

// ListByContest returns the contest's problems in id order.
func (s *problemService) ListByContest(ctx context.Context, contestID uint) ([]dto.ProblemResponse, error) {
	if _, err := s.contests.GetByID(ctx, contestID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, err
	}

	problems, err := s.problems.ListByContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	return dto.NewProblemResponseSlice(problems), nil
}

func (s *problemService) Snippets(ctx context.Context, problemID uint) ([]dto.SnippetResponse, error) {
	snippets, err := s.problems.Snippets(ctx, problemID)
	if err != nil {
		return nil, err
	}
	return dto.NewSnippetResponseSlice(snippets), nil
}

// ContestStatus never reports a missing problem or contest as an error: both
// come back as {active:false, exists:false}.
func (s *problemService) ContestStatus(ctx context.Context, problemID uint) (dto.ContestStatusResponse, error) {
	problem, err := s.problems.GetByID(ctx, problemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NewContestStatusResponse(nil), nil
		}
		return dto.ContestStatusResponse{}, err
	}
	if problem.ContestID == nil {
		return dto.NewContestStatusResponse(nil), nil
	}

	contest, err := s.contests.GetByID(ctx, *problem.ContestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NewContestStatusResponse(nil), nil
		}
		return dto.ContestStatusResponse{}, err
	}

	return dto.NewContestStatusResponse(&contest), nil
}

func problemContestID(problem models.Problem) *uint {
	if problem.ContestID == nil {
		return nil
	}
	id := *problem.ContestID
	return &id
}
