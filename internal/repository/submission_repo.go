package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/arena-go/internal/models"
)

// Standing aggregates one competitor's stored submissions in a contest.
type Standing struct {
	UserID     uint
	TotalScore int64
	Solved     int64
	Attempted  int64
}

// SubmissionRepository exposes persistence helpers for stored submissions.
type SubmissionRepository interface {
	Upsert(ctx context.Context, submission *models.Submission) error
	Latest(ctx context.Context, userID, problemID uint) (models.Submission, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Submission, error)
	Standings(ctx context.Context, contestID uint) ([]Standing, error)
}

// NewSubmissionRepository constructs a submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

type submissionRepository struct {
	db *gorm.DB
}

// Upsert stores the submission, replacing any earlier one for the same user
// and problem. The stored row is loaded back into submission.
func (r *submissionRepository) Upsert(ctx context.Context, submission *models.Submission) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "problem_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"contest_id", "code", "language", "status", "score",
			"test_cases_passed", "total_test_cases", "time_consumed",
			"error_message", "test_case_details", "problem_name",
			"submitted_at", "updated_at",
		}),
	}).Create(submission).Error
	if err != nil {
		return err
	}

	stored, err := r.Latest(ctx, submission.UserID, submission.ProblemID)
	if err != nil {
		return err
	}
	*submission = stored
	return nil
}

func (r *submissionRepository) Latest(ctx context.Context, userID, problemID uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND problem_id = ?", userID, problemID).
		First(&submission).Error
	if err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

// ListByUser returns the user's stored submissions, newest first.
func (r *submissionRepository) ListByUser(ctx context.Context, userID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("submitted_at DESC, id DESC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

// Standings sums stored scores per competitor of a contest, best first. Ties
// on score fall back to accepted count, then user id.
func (r *submissionRepository) Standings(ctx context.Context, contestID uint) ([]Standing, error) {
	var standings []Standing
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Select("user_id, SUM(score) AS total_score, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS solved, COUNT(*) AS attempted", models.SubmissionStatusAccepted).
		Where("contest_id = ?", contestID).
		Group("user_id").
		Order("total_score DESC, solved DESC, user_id ASC").
		Scan(&standings).Error
	if err != nil {
		return nil, err
	}
	return standings, nil
}
