package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/arena-go/internal/dto"
	"github.com/noah-isme/arena-go/internal/models"
	"github.com/noah-isme/arena-go/internal/repository"
	dockerexec "github.com/noah-isme/arena-go/pkg/docker"
)

type arenaFixture struct {
	db          *gorm.DB
	contest     models.Contest
	problem     models.Problem
	loose       models.Problem
	executor    *scriptedExecutor
	problems    ProblemService
	submissions SubmissionService
	contests    ContestService
}

func setupArenaFixture(t *testing.T) *arenaFixture {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Contest{}, &models.Problem{}, &models.CodeSnippet{}, &models.TestCase{}, &models.Submission{}))

	end := time.Now().Add(2 * time.Hour).UTC()
	contest := models.Contest{Name: "Spring Cup", Active: true, EndTime: &end}
	require.NoError(t, db.Create(&contest).Error)

	problem := models.Problem{ContestID: &contest.ID, Title: "Echo", TimeLimit: 1, MemoryLimit: 64, Active: true}
	require.NoError(t, db.Create(&problem).Error)
	require.NoError(t, db.Create(&models.CodeSnippet{ProblemID: problem.ID, Language: models.LanguagePython, StarterCode: "# write here", SolutionTemplate: "import sys\n# USER_CODE_PLACEHOLDER"}).Error)
	require.NoError(t, db.Create(&[]models.TestCase{
		{ProblemID: problem.ID, Input: "1", ExpectedOutput: "1"},
		{ProblemID: problem.ID, Input: "2", ExpectedOutput: "2", Hidden: true},
	}).Error)

	loose := models.Problem{Title: "Warmup", TimeLimit: 1, MemoryLimit: 64, Active: true}
	require.NoError(t, db.Create(&loose).Error)

	problemRepo := repository.NewProblemRepository(db)
	contestRepo := repository.NewContestRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	executor := &scriptedExecutor{}

	return &arenaFixture{
		db:          db,
		contest:     contest,
		problem:     problem,
		loose:       loose,
		executor:    executor,
		problems:    NewProblemService(problemRepo, contestRepo, zerolog.Nop()),
		submissions: NewSubmissionService(submissionRepo, problemRepo, contestRepo, executor, validator.New(), zerolog.Nop(), JudgeConfig{}),
		contests:    NewContestService(contestRepo, zerolog.Nop()),
	}
}

func TestSubmissionServiceTestDoesNotPersist(t *testing.T) {
	fx := setupArenaFixture(t)

	verdict, err := fx.submissions.Test(context.Background(), 7, dto.SubmissionRequest{ProblemID: fx.problem.ID, Code: "print(input())", Language: models.LanguagePython})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusAccepted, verdict.Status)
	require.Equal(t, 100, verdict.Score)
	require.Equal(t, 2, verdict.TestCasesPassed)
	require.Zero(t, verdict.ID)

	var details []models.CaseDetail
	require.NoError(t, json.Unmarshal([]byte(verdict.TestCaseDetails), &details))
	require.Len(t, details, 2)
	require.True(t, details[1].Hidden)

	require.Contains(t, fx.executor.sources[0], "import sys\nprint(input())")

	_, err = fx.submissions.Latest(context.Background(), 7, fx.problem.ID)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestSubmissionServiceSubmitReplacesPrevious(t *testing.T) {
	fx := setupArenaFixture(t)
	ctx := context.Background()

	first, err := fx.submissions.Submit(ctx, 7, dto.SubmissionRequest{ProblemID: fx.problem.ID, Code: "v1", Language: models.LanguagePython})
	require.NoError(t, err)
	require.NotZero(t, first.ID)
	require.Equal(t, "Echo", first.ProblemName)
	require.NotNil(t, first.SubmittedAt)

	fx.executor.byInput = map[string]dockerexec.ExecutionResult{"2": {Stdout: "nope"}}
	second, err := fx.submissions.Submit(ctx, 7, dto.SubmissionRequest{ProblemID: fx.problem.ID, Code: "v2", Language: models.LanguagePython})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, models.SubmissionStatusWrong, second.Status)
	require.Equal(t, 50, second.Score)

	latest, err := fx.submissions.Latest(ctx, 7, fx.problem.ID)
	require.NoError(t, err)
	require.Equal(t, "v2", latest.Code)

	var count int64
	require.NoError(t, fx.db.Model(&models.Submission{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	var stored models.Submission
	require.NoError(t, fx.db.First(&stored).Error)
	require.NotNil(t, stored.ContestID)
	require.Equal(t, fx.contest.ID, *stored.ContestID)
}

func TestSubmissionServiceRefusesClosedContest(t *testing.T) {
	fx := setupArenaFixture(t)
	ctx := context.Background()

	_, err := fx.contests.Deactivate(ctx, fx.contest.ID)
	require.NoError(t, err)

	_, err = fx.submissions.Submit(ctx, 7, dto.SubmissionRequest{ProblemID: fx.problem.ID, Code: "x", Language: models.LanguagePython})
	require.ErrorIs(t, err, ErrContestClosed)
	require.Empty(t, fx.executor.requests)

	verdict, err := fx.submissions.Test(ctx, 7, dto.SubmissionRequest{ProblemID: fx.loose.ID, Code: "x", Language: models.LanguageC})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusAccepted, verdict.Status)
	require.Equal(t, "[]", verdict.TestCaseDetails)
}

func TestSubmissionServiceValidation(t *testing.T) {
	fx := setupArenaFixture(t)

	_, err := fx.submissions.Test(context.Background(), 7, dto.SubmissionRequest{ProblemID: fx.problem.ID, Code: "x", Language: "RUST"})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)

	_, err = fx.submissions.Test(context.Background(), 7, dto.SubmissionRequest{ProblemID: 404, Code: "x", Language: models.LanguageC})
	require.ErrorIs(t, err, ErrProblemNotFound)
}

func TestProblemServiceContestStatus(t *testing.T) {
	fx := setupArenaFixture(t)
	ctx := context.Background()

	status, err := fx.problems.ContestStatus(ctx, fx.problem.ID)
	require.NoError(t, err)
	require.True(t, status.Exists)
	require.True(t, status.Active)
	require.Equal(t, "Spring Cup", status.ContestName)
	require.NotNil(t, status.EndTime)

	status, err = fx.problems.ContestStatus(ctx, fx.loose.ID)
	require.NoError(t, err)
	require.Equal(t, dto.ContestStatusResponse{}, status)

	status, err = fx.problems.ContestStatus(ctx, 999)
	require.NoError(t, err)
	require.False(t, status.Exists)

	require.NoError(t, fx.contests.Delete(ctx, fx.contest.ID))
	status, err = fx.problems.ContestStatus(ctx, fx.problem.ID)
	require.NoError(t, err)
	require.False(t, status.Exists)
	require.False(t, status.Active)

	require.ErrorIs(t, fx.contests.Delete(ctx, fx.contest.ID), ErrContestNotFound)
}

func TestProblemServiceListAndSnippets(t *testing.T) {
	fx := setupArenaFixture(t)
	ctx := context.Background()

	list, err := fx.problems.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, fx.problem.ID, list[0].ID)

	snippets, err := fx.problems.Snippets(ctx, fx.problem.ID)
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	require.Equal(t, "# write here", snippets[0].StarterCode)

	_, err = fx.problems.Get(ctx, 999)
	require.ErrorIs(t, err, ErrProblemNotFound)
}

func TestContestServiceSweepEnded(t *testing.T) {
	fx := setupArenaFixture(t)
	ctx := context.Background()

	svc := fx.contests.(*contestService)
	svc.now = func() time.Time { return time.Now().Add(3 * time.Hour) }

	swept, err := svc.SweepEnded(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, swept)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, repository.ContestStats{Total: 1, Active: 0, Inactive: 1}, stats)

	contest, err := svc.Activate(ctx, fx.contest.ID)
	require.NoError(t, err)
	require.True(t, contest.Active)

	_, err = svc.Deactivate(ctx, 42)
	require.ErrorIs(t, err, ErrContestNotFound)
}
