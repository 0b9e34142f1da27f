package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/arena-go/internal/models"
)

func setupArenaTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Contest{}, &models.Problem{}, &models.CodeSnippet{}, &models.TestCase{}, &models.Submission{}))
	return db
}

func TestSubmissionRepositoryUpsertKeepsOneRowPerUserAndProblem(t *testing.T) {
	db := setupArenaTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	first := models.Submission{UserID: 7, ProblemID: 3, Code: "v1", Language: models.LanguageJava, Status: models.SubmissionStatusWrong, Score: 50, TestCaseDetails: datatypes.JSON(`[]`), SubmittedAt: time.Now()}
	require.NoError(t, repo.Upsert(ctx, &first))
	require.NotZero(t, first.ID)

	second := models.Submission{UserID: 7, ProblemID: 3, Code: "v2", Language: models.LanguagePython, Status: models.SubmissionStatusAccepted, Score: 100, TestCaseDetails: datatypes.JSON(`[]`), SubmittedAt: time.Now()}
	require.NoError(t, repo.Upsert(ctx, &second))
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Submission{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	latest, err := repo.Latest(ctx, 7, 3)
	require.NoError(t, err)
	require.Equal(t, "v2", latest.Code)
	require.Equal(t, models.LanguagePython, latest.Language)
	require.Equal(t, 100, latest.Score)

	other := models.Submission{UserID: 8, ProblemID: 3, Code: "x", Language: models.LanguageC, Status: models.SubmissionStatusCompile, SubmittedAt: time.Now()}
	require.NoError(t, repo.Upsert(ctx, &other))
	require.NotEqual(t, first.ID, other.ID)

	_, err = repo.Latest(ctx, 9, 3)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestProblemRepositoryListsInIDOrder(t *testing.T) {
	db := setupArenaTestDB(t)
	repo := NewProblemRepository(db)
	ctx := context.Background()

	for _, title := range []string{"A", "B", "C"} {
		problem := models.Problem{Title: title}
		require.NoError(t, repo.Create(ctx, &problem))
	}
	require.NoError(t, db.Create(&models.CodeSnippet{ProblemID: 1, Language: models.LanguageJava, StarterCode: "class Main {}"}).Error)
	require.NoError(t, db.Create(&models.TestCase{ProblemID: 1, Input: "1", ExpectedOutput: "1"}).Error)

	problems, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, problems, 3)
	require.Equal(t, "A", problems[0].Title)
	require.Equal(t, "C", problems[2].Title)

	snippet, err := repo.Snippet(ctx, 1, models.LanguageJava)
	require.NoError(t, err)
	require.Equal(t, "class Main {}", snippet.StarterCode)

	_, err = repo.Snippet(ctx, 1, models.LanguageCPP)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	cases, err := repo.TestCases(ctx, 1)
	require.NoError(t, err)
	require.Len(t, cases, 1)
}

func TestContestRepositoryLifecycle(t *testing.T) {
	db := setupArenaTestDB(t)
	contests := NewContestRepository(db)
	problems := NewProblemRepository(db)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	ended := models.Contest{Name: "Ended", Active: true, EndTime: &past}
	running := models.Contest{Name: "Running", Active: true, EndTime: &future}
	require.NoError(t, contests.Create(ctx, &ended))
	require.NoError(t, contests.Create(ctx, &running))

	problem := models.Problem{Title: "P", ContestID: &running.ID}
	require.NoError(t, problems.Create(ctx, &problem))

	swept, err := contests.DeactivateEnded(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, swept, 1)
	require.Equal(t, "Ended", swept[0].Name)

	stats, err := contests.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, ContestStats{Total: 2, Active: 1, Inactive: 1}, stats)

	updated, err := contests.SetActive(ctx, running.ID, false)
	require.NoError(t, err)
	require.False(t, updated.Active)

	_, err = contests.SetActive(ctx, 999, true)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	loose := models.Problem{Title: "Loose"}
	require.NoError(t, problems.Create(ctx, &loose))
	require.NoError(t, db.Create(&models.CodeSnippet{ProblemID: problem.ID, Language: models.LanguageJava}).Error)
	require.NoError(t, db.Create(&models.TestCase{ProblemID: problem.ID, Input: "1", ExpectedOutput: "1"}).Error)
	require.NoError(t, db.Create(&models.TestCase{ProblemID: loose.ID, Input: "2", ExpectedOutput: "2"}).Error)
	require.NoError(t, db.Create(&models.Submission{UserID: 1, ProblemID: problem.ID, ContestID: &running.ID, Language: models.LanguageJava, Status: models.SubmissionStatusAccepted}).Error)

	require.NoError(t, contests.Delete(ctx, running.ID))
	_, err = problems.GetByID(ctx, problem.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	remaining, err := problems.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, loose.ID, remaining[0].ID)

	for _, table := range []interface{}{&models.CodeSnippet{}, &models.Submission{}} {
		var count int64
		require.NoError(t, db.Model(table).Count(&count).Error)
		require.Zero(t, count)
	}
	cases, err := problems.TestCases(ctx, loose.ID)
	require.NoError(t, err)
	require.Len(t, cases, 1)

	require.ErrorIs(t, contests.Delete(ctx, running.ID), gorm.ErrRecordNotFound)
}

func TestContestAndSubmissionAggregates(t *testing.T) {
	db := setupArenaTestDB(t)
	contests := NewContestRepository(db)
	problems := NewProblemRepository(db)
	submissions := NewSubmissionRepository(db)
	ctx := context.Background()

	spring := models.Contest{Name: "Spring", Active: true}
	empty := models.Contest{Name: "Empty", Active: true}
	require.NoError(t, contests.Create(ctx, &spring))
	require.NoError(t, contests.Create(ctx, &empty))
	for _, title := range []string{"A", "B"} {
		require.NoError(t, problems.Create(ctx, &models.Problem{Title: title, ContestID: &spring.ID}))
	}
	require.NoError(t, problems.Create(ctx, &models.Problem{Title: "Free"}))

	summaries, err := contests.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "Spring", summaries[0].Contest.Name)
	require.Equal(t, int64(2), summaries[0].ProblemCount)
	require.Zero(t, summaries[1].ProblemCount)

	inSpring, err := problems.ListByContest(ctx, spring.ID)
	require.NoError(t, err)
	require.Len(t, inSpring, 2)
	require.Equal(t, "A", inSpring[0].Title)

	now := time.Now()
	rows := []models.Submission{
		{UserID: 1, ProblemID: inSpring[0].ID, ContestID: &spring.ID, Language: models.LanguageJava, Status: models.SubmissionStatusWrong, Score: 30, SubmittedAt: now.Add(-time.Hour)},
		{UserID: 2, ProblemID: inSpring[0].ID, ContestID: &spring.ID, Language: models.LanguageJava, Status: models.SubmissionStatusAccepted, Score: 100, SubmittedAt: now},
		{UserID: 1, ProblemID: inSpring[1].ID, ContestID: &spring.ID, Language: models.LanguageJava, Status: models.SubmissionStatusAccepted, Score: 100, SubmittedAt: now},
		{UserID: 3, ProblemID: 99, ContestID: &empty.ID, Language: models.LanguageC, Status: models.SubmissionStatusAccepted, Score: 100, SubmittedAt: now},
	}
	for i := range rows {
		require.NoError(t, submissions.Upsert(ctx, &rows[i]))
	}

	standings, err := submissions.Standings(ctx, spring.ID)
	require.NoError(t, err)
	require.Equal(t, []Standing{
		{UserID: 1, TotalScore: 130, Solved: 1, Attempted: 2},
		{UserID: 2, TotalScore: 100, Solved: 1, Attempted: 1},
	}, standings)

	history, err := submissions.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, inSpring[1].ID, history[0].ProblemID)
	require.Equal(t, inSpring[0].ID, history[1].ProblemID)
}
