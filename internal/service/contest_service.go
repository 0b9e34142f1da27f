package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/arena-go/internal/models"
	"github.com/noah-isme/arena-go/internal/repository"
)

// ErrContestNotFound indicates the contest cannot be located.
var ErrContestNotFound = errors.New("contest not found")

// DefaultSweepInterval is how often ended contests are switched off.
const DefaultSweepInterval = 5 * time.Minute

// ContestService administers contest activation.
type ContestService interface {
	Stats(ctx context.Context) (repository.ContestStats, error)
	Activate(ctx context.Context, id uint) (models.Contest, error)
	Deactivate(ctx context.Context, id uint) (models.Contest, error)
	Delete(ctx context.Context, id uint) error
	SweepEnded(ctx context.Context) (int, error)
	StartSweeper(ctx context.Context, interval time.Duration)
}

type contestService struct {
	repo   repository.ContestRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewContestService constructs a contest administration service.
func NewContestService(repo repository.ContestRepository, logger zerolog.Logger) ContestService {
	return &contestService{
		repo:   repo,
		logger: logger.With().Str("component", "contest_service").Logger(),
		now:    time.Now,
	}
}

func (s *contestService) Stats(ctx context.Context) (repository.ContestStats, error) {
	return s.repo.Stats(ctx)
}

func (s *contestService) Activate(ctx context.Context, id uint) (models.Contest, error) {
	return s.setActive(ctx, id, true)
}

func (s *contestService) Deactivate(ctx context.Context, id uint) (models.Contest, error) {
	return s.setActive(ctx, id, false)
}

func (s *contestService) setActive(ctx context.Context, id uint, active bool) (models.Contest, error) {
	contest, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Contest{}, ErrContestNotFound
		}
		return models.Contest{}, err
	}

	s.logger.Info().Uint("contest_id", id).Bool("active", active).Msg("contest activation changed")
	return contest, nil
}

func (s *contestService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrContestNotFound
		}
		return err
	}

	s.logger.Info().Uint("contest_id", id).Msg("contest deleted")
	return nil
}

// SweepEnded deactivates every active contest whose end time has passed.
func (s *contestService) SweepEnded(ctx context.Context) (int, error) {
	ended, err := s.repo.DeactivateEnded(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	for _, contest := range ended {
		s.logger.Info().Uint("contest_id", contest.ID).Str("contest", contest.Name).Msg("contest ended, deactivated")
	}
	return len(ended), nil
}

// StartSweeper runs SweepEnded on a ticker until ctx is done.
func (s *contestService) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepEnded(ctx); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Error().Err(err).Msg("contest sweep failed")
				}
			}
		}
	}()
}
