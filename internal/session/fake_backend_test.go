package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/arena-go/internal/dto"
)

var errBackendDown = errors.New("backend unavailable")

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

// fakeBackend implements every source the controller consumes.
type fakeBackend struct {
	mu sync.Mutex

	problems    map[uint]dto.ProblemResponse
	problemErr  error
	snippets    map[uint][]dto.SnippetResponse
	submissions map[uint]dto.SubmissionResponse
	status      map[uint]dto.ContestStatusResponse
	statusErr   error
	list        []dto.ProblemResponse
	listErr     error
	verdict     dto.SubmissionResponse
	judgeErr    error

	submissionGate chan struct{}
	snippetGate    chan struct{}
	statusGate     chan struct{}
	judgeGate      chan struct{}

	statusCalls int
	testCalls   int
	submitCalls int
}

func newFakeBackend() *fakeBackend {
	contestID := uint(1)
	return &fakeBackend{
		problems: map[uint]dto.ProblemResponse{
			1: {ID: 1, ContestID: &contestID, Title: "Two Sum", Example1: "1 2\n3", Images: "a.png, ,b.png", Active: true},
			2: {ID: 2, ContestID: &contestID, Title: "Three Sum", Active: true},
			3: {ID: 3, ContestID: &contestID, Title: "Four Sum", Active: true},
		},
		snippets: map[uint][]dto.SnippetResponse{
			1: {
				{ProblemID: 1, Language: "JAVA", StarterCode: "class Main {}"},
				{ProblemID: 1, Language: "PYTHON", StarterCode: "def solve(): pass"},
				{ProblemID: 1, Language: "COBOL", StarterCode: "IDENTIFICATION DIVISION."},
			},
			2: {{ProblemID: 2, Language: "JAVA", StarterCode: "// two"}},
			3: {{ProblemID: 3, Language: "JAVA", StarterCode: "// three"}},
		},
		submissions: map[uint]dto.SubmissionResponse{},
		status: map[uint]dto.ContestStatusResponse{
			1: {Active: true, Exists: true, ContestName: "Spring Cup"},
			2: {Active: true, Exists: true, ContestName: "Spring Cup"},
			3: {Active: true, Exists: true, ContestName: "Spring Cup"},
		},
		list: []dto.ProblemResponse{{ID: 1}, {ID: 2}, {ID: 3}},
		verdict: dto.SubmissionResponse{
			Status:          "WA",
			Score:           50,
			TestCasesPassed: 1,
			TotalTestCases:  2,
			TestCaseDetails: `[{"testCase":1,"status":"PASS","hidden":false},{"testCase":2,"status":"FAIL","hidden":true}]`,
		},
	}
}

func (b *fakeBackend) wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *fakeBackend) GetProblem(_ context.Context, id uint) (dto.ProblemResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.problemErr != nil {
		return dto.ProblemResponse{}, b.problemErr
	}
	problem, ok := b.problems[id]
	if !ok {
		return dto.ProblemResponse{}, notFound("problem")
	}
	return problem, nil
}

func (b *fakeBackend) ListSnippets(ctx context.Context, problemID uint) ([]dto.SnippetResponse, error) {
	b.mu.Lock()
	gate := b.snippetGate
	b.mu.Unlock()
	if err := b.wait(ctx, gate); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snippets[problemID], nil
}

func (b *fakeBackend) LatestSubmission(ctx context.Context, problemID uint) (dto.SubmissionResponse, error) {
	b.mu.Lock()
	gate := b.submissionGate
	b.mu.Unlock()
	if err := b.wait(ctx, gate); err != nil {
		return dto.SubmissionResponse{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	submission, ok := b.submissions[problemID]
	if !ok {
		return dto.SubmissionResponse{}, notFound("submission")
	}
	return submission, nil
}

func (b *fakeBackend) ContestStatus(ctx context.Context, problemID uint) (dto.ContestStatusResponse, error) {
	b.mu.Lock()
	gate := b.statusGate
	b.mu.Unlock()
	if err := b.wait(ctx, gate); err != nil {
		return dto.ContestStatusResponse{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusCalls++
	if b.statusErr != nil {
		return dto.ContestStatusResponse{}, b.statusErr
	}
	status, ok := b.status[problemID]
	if !ok {
		return dto.ContestStatusResponse{Active: false, Exists: false}, nil
	}
	return status, nil
}

func (b *fakeBackend) ListProblems(context.Context) ([]dto.ProblemResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]dto.ProblemResponse(nil), b.list...), nil
}

func (b *fakeBackend) TestCode(ctx context.Context, req dto.SubmissionRequest) (dto.SubmissionResponse, error) {
	return b.judge(ctx, req, false)
}

func (b *fakeBackend) SubmitCode(ctx context.Context, req dto.SubmissionRequest) (dto.SubmissionResponse, error) {
	return b.judge(ctx, req, true)
}

func (b *fakeBackend) judge(ctx context.Context, req dto.SubmissionRequest, persist bool) (dto.SubmissionResponse, error) {
	b.mu.Lock()
	gate := b.judgeGate
	if persist {
		b.submitCalls++
	} else {
		b.testCalls++
	}
	b.mu.Unlock()
	if err := b.wait(ctx, gate); err != nil {
		return dto.SubmissionResponse{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.judgeErr != nil {
		return dto.SubmissionResponse{}, b.judgeErr
	}

	verdict := b.verdict
	verdict.ProblemID = req.ProblemID
	verdict.Code = req.Code
	verdict.Language = req.Language
	if persist {
		verdict.ID = req.ProblemID + 100
		b.submissions[req.ProblemID] = verdict
	}
	return verdict, nil
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) calls() (status, test, submit int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusCalls, b.testCalls, b.submitCalls
}

func newTestController(t *testing.T, backend *fakeBackend) *Controller {
	t.Helper()
	c := NewController(Dependencies{
		Problems:    backend,
		Submissions: backend,
		Status:      backend,
		Lister:      backend,
		Judge:       backend,
	}, Config{
		PollInterval: 10 * time.Millisecond,
		TickInterval: 10 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, c *Controller, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return cond(c.Snapshot())
	}, 2*time.Second, 5*time.Millisecond)
	return c.Snapshot()
}

func isReady(s Snapshot) bool {
	return s.Phase == PhaseReady && s.Liveness.Known && s.Navigation.Total > 0
}
