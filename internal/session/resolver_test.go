package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/arena-go/internal/dto"
)

func TestResolveProblem(t *testing.T) {
	backend := newFakeBackend()
	resolver := NewProblemResolver(backend, zerolog.Nop())

	problem, snippets, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "Two Sum", problem.Title)
	require.Len(t, snippets, 2)
	starter, ok := snippets.Starter(LanguagePython)
	require.True(t, ok)
	require.Equal(t, "def solve(): pass", starter)

	_, err = resolver.ResolveProblem(context.Background(), 99)
	require.ErrorIs(t, err, ErrProblemGone)

	backend.set(func(b *fakeBackend) { b.problemErr = errBackendDown })
	_, err = resolver.ResolveProblem(context.Background(), 1)
	var transientErr *TransientError
	require.ErrorAs(t, err, &transientErr)
	require.ErrorIs(t, err, errBackendDown)
}

func TestResolveSnippetsForUnknownProblemIsEmpty(t *testing.T) {
	resolver := NewProblemResolver(newFakeBackend(), zerolog.Nop())
	snippets := resolver.ResolveSnippets(context.Background(), 77)
	require.Empty(t, snippets)
	require.Empty(t, snippets.Available())
}

func TestResolveSubmission(t *testing.T) {
	backend := newFakeBackend()
	submittedAt := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	backend.submissions[1] = dto.SubmissionResponse{ID: 5, Code: "int main(){}", Language: "cpp", Status: "wa", SubmittedAt: &submittedAt}
	backend.submissions[2] = dto.SubmissionResponse{ID: 6, Code: "??", Language: "BRAINFUCK", Status: "AC"}
	resolver := NewSubmissionResolver(backend, zerolog.Nop())

	submission, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, submission)
	require.Equal(t, LanguageCPP, submission.Language)
	require.Equal(t, StatusWrongAnswer, submission.Status)
	require.True(t, submission.SubmittedAt.Equal(submittedAt))

	fallback, err := resolver.Resolve(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, DefaultLanguage, fallback.Language)

	none, err := resolver.Resolve(context.Background(), 3)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestResolveSubmissionEmptyPayloadIsNone(t *testing.T) {
	backend := newFakeBackend()
	backend.submissions[1] = dto.SubmissionResponse{}
	resolver := NewSubmissionResolver(backend, zerolog.Nop())

	submission, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.Nil(t, submission)
}

func TestParseLanguage(t *testing.T) {
	lang, err := ParseLanguage(" javascript ")
	require.NoError(t, err)
	require.Equal(t, LanguageJavaScript, lang)

	_, err = ParseLanguage("rust")
	require.ErrorIs(t, err, ErrUnsupportedLanguage)

	require.Len(t, Languages(), 5)
}
