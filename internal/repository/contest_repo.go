package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/arena-go/internal/models"
)

// ContestStats summarises contests by activation state.
type ContestStats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
}

// ContestSummary is a contest with the number of problems it holds.
type ContestSummary struct {
	Contest      models.Contest
	ProblemCount int64
}

// ContestRepository exposes persistence helpers for contests.
type ContestRepository interface {
	Create(ctx context.Context, contest *models.Contest) error
	GetByID(ctx context.Context, id uint) (models.Contest, error)
	List(ctx context.Context) ([]ContestSummary, error)
	SetActive(ctx context.Context, id uint, active bool) (models.Contest, error)
	Delete(ctx context.Context, id uint) error
	Stats(ctx context.Context) (ContestStats, error)
	DeactivateEnded(ctx context.Context, now time.Time) ([]models.Contest, error)
}

// NewContestRepository constructs a contest repository.
func NewContestRepository(db *gorm.DB) ContestRepository {
	return &contestRepository{db: db}
}

type contestRepository struct {
	db *gorm.DB
}

func (r *contestRepository) Create(ctx context.Context, contest *models.Contest) error {
	return r.db.WithContext(ctx).Create(contest).Error
}

func (r *contestRepository) GetByID(ctx context.Context, id uint) (models.Contest, error) {
	var contest models.Contest
	if err := r.db.WithContext(ctx).First(&contest, id).Error; err != nil {
		return models.Contest{}, err
	}
	return contest, nil
}

// List returns every contest in id order with its problem count.
func (r *contestRepository) List(ctx context.Context) ([]ContestSummary, error) {
	var contests []models.Contest
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&contests).Error; err != nil {
		return nil, err
	}

	var counts []struct {
		ContestID uint
		Total     int64
	}
	err := r.db.WithContext(ctx).Model(&models.Problem{}).
		Select("contest_id, COUNT(*) AS total").
		Where("contest_id IS NOT NULL").
		Group("contest_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	byContest := make(map[uint]int64, len(counts))
	for _, row := range counts {
		byContest[row.ContestID] = row.Total
	}

	summaries := make([]ContestSummary, 0, len(contests))
	for _, contest := range contests {
		summaries = append(summaries, ContestSummary{Contest: contest, ProblemCount: byContest[contest.ID]})
	}
	return summaries, nil
}

func (r *contestRepository) SetActive(ctx context.Context, id uint, active bool) (models.Contest, error) {
	result := r.db.WithContext(ctx).Model(&models.Contest{}).Where("id = ?", id).Update("active", active)
	if result.Error != nil {
		return models.Contest{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Contest{}, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes the contest together with its problems, their snippets,
// test cases and stored submissions.
func (r *contestRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		problemIDs := tx.Model(&models.Problem{}).Select("id").Where("contest_id = ?", id)
		for _, dependent := range []any{&models.CodeSnippet{}, &models.TestCase{}, &models.Submission{}} {
			if err := tx.Where("problem_id IN (?)", problemIDs).Delete(dependent).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("contest_id = ?", id).Delete(&models.Problem{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Contest{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *contestRepository) Stats(ctx context.Context) (ContestStats, error) {
	var stats ContestStats
	db := r.db.WithContext(ctx).Model(&models.Contest{})
	if err := db.Count(&stats.Total).Error; err != nil {
		return ContestStats{}, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Contest{}).Where("active = ?", true).Count(&stats.Active).Error; err != nil {
		return ContestStats{}, err
	}
	stats.Inactive = stats.Total - stats.Active
	return stats, nil
}

// DeactivateEnded switches off active contests whose end time has passed and
// returns them.
func (r *contestRepository) DeactivateEnded(ctx context.Context, now time.Time) ([]models.Contest, error) {
	var ended []models.Contest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("active = ? AND end_time IS NOT NULL AND end_time < ?", true, now).Find(&ended).Error; err != nil {
			return err
		}
		if len(ended) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(ended))
		for i := range ended {
			ids = append(ids, ended[i].ID)
			ended[i].Active = false
		}
		return tx.Model(&models.Contest{}).Where("id IN ?", ids).Update("active", false).Error
	})
	if err != nil {
		return nil, err
	}
	return ended, nil
}
