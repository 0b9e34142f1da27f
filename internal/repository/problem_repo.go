package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/arena-go/internal/models"
)

// ProblemRepository exposes persistence helpers for problems and their judge data.
type ProblemRepository interface {
	Create(ctx context.Context, problem *models.Problem) error
	GetByID(ctx context.Context, id uint) (models.Problem, error)
	List(ctx context.Context) ([]models.Problem, error)
	ListByContest(ctx context.Context, contestID uint) ([]models.Problem, error)
	Snippets(ctx context.Context, problemID uint) ([]models.CodeSnippet, error)
	Snippet(ctx context.Context, problemID uint, language string) (models.CodeSnippet, error)
	TestCases(ctx context.Context, problemID uint) ([]models.TestCase, error)
}

// NewProblemRepository constructs a problem repository.
func NewProblemRepository(db *gorm.DB) ProblemRepository {
	return &problemRepository{db: db}
}

type problemRepository struct {
	db *gorm.DB
}

func (r *problemRepository) Create(ctx context.Context, problem *models.Problem) error {
	return r.db.WithContext(ctx).Create(problem).Error
}

func (r *problemRepository) GetByID(ctx context.Context, id uint) (models.Problem, error) {
	var problem models.Problem
	if err := r.db.WithContext(ctx).First(&problem, id).Error; err != nil {
		return models.Problem{}, err
	}
	return problem, nil
}

func (r *problemRepository) List(ctx context.Context) ([]models.Problem, error) {
	var problems []models.Problem
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&problems).Error; err != nil {
		return nil, err
	}
	return problems, nil
}

func (r *problemRepository) ListByContest(ctx context.Context, contestID uint) ([]models.Problem, error) {
	var problems []models.Problem
	err := r.db.WithContext(ctx).
		Where("contest_id = ?", contestID).
		Order("id ASC").
		Find(&problems).Error
	if err != nil {
		return nil, err
	}
	return problems, nil
}

func (r *problemRepository) Snippets(ctx context.Context, problemID uint) ([]models.CodeSnippet, error) {
	var snippets []models.CodeSnippet
	err := r.db.WithContext(ctx).
		Where("problem_id = ?", problemID).
		Order("id ASC").
		Find(&snippets).Error
	if err != nil {
		return nil, err
	}
	return snippets, nil
}

func (r *problemRepository) Snippet(ctx context.Context, problemID uint, language string) (models.CodeSnippet, error) {
	var snippet models.CodeSnippet
	err := r.db.WithContext(ctx).
		Where("problem_id = ? AND language = ?", problemID, language).
		First(&snippet).Error
	if err != nil {
		return models.CodeSnippet{}, err
	}
	return snippet, nil
}

func (r *problemRepository) TestCases(ctx context.Context, problemID uint) ([]models.TestCase, error) {
	var cases []models.TestCase
	err := r.db.WithContext(ctx).
		Where("problem_id = ?", problemID).
		Order("id ASC").
		Find(&cases).Error
	if err != nil {
		return nil, err
	}
	return cases, nil
}
