package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/arena-go/internal/dto"
	"github.com/noah-isme/arena-go/internal/session"
)

func TestWatchURL(t *testing.T) {
	got, err := watchURL("https://arena.example.com/", "abc-123", "tok en")
	require.NoError(t, err)
	require.Equal(t, "wss://arena.example.com/api/v1/sessions/abc-123/ws?access_token=tok+en", got)

	got, err = watchURL("http://localhost:8081", "s1", "t")
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8081/api/v1/sessions/s1/ws?access_token=t", got)

	_, err = watchURL("ftp://host", "s1", "t")
	require.Error(t, err)
}

func TestParseProblemID(t *testing.T) {
	id, err := parseProblemID(" 42 ")
	require.NoError(t, err)
	require.Equal(t, uint(42), id)

	for _, raw := range []string{"0", "-1", "abc", ""} {
		_, err := parseProblemID(raw)
		require.Error(t, err, raw)
	}
}

func TestExitCode(t *testing.T) {
	require.Equal(t, 2, exitCode(errRefused))
	require.Equal(t, 1, exitCode(errors.New("boom")))
}

func TestSettledStopsOnDeletedProblem(t *testing.T) {
	never := func(session.Snapshot) bool { return false }

	stop, err := settled(session.Snapshot{ProblemID: 9, Phase: session.PhaseLocked, LockReason: session.LockDeleted}, never)
	require.True(t, stop)
	require.ErrorIs(t, err, errProblemNotFound)
	require.EqualError(t, err, "problem not found")

	stop, err = settled(session.Snapshot{Phase: session.PhaseLocked, LockReason: session.LockDeactivated}, never)
	require.False(t, stop)
	require.NoError(t, err)

	stop, err = settled(session.Snapshot{LoadError: "upstream unavailable"}, never)
	require.True(t, stop)
	require.EqualError(t, err, "upstream unavailable")

	snap := session.Snapshot{ProblemID: 1, Problem: &session.Problem{ID: 1}, Liveness: session.Liveness{Known: true}}
	stop, err = settled(snap, loaded(1))
	require.True(t, stop)
	require.NoError(t, err)
}

func TestRefusalWrapsClamp(t *testing.T) {
	clamp := &session.ClampError{Action: "submit", Reason: session.LockDeleted, Redirect: session.ContestsRedirect}
	err := refusal(session.Snapshot{Banner: "This contest has been deleted"}, clamp)
	require.ErrorIs(t, err, errRefused)

	plain := errors.New("network down")
	require.Equal(t, plain, refusal(session.Snapshot{}, plain))
}

func TestPrintVerdictHidesHiddenCases(t *testing.T) {
	var buf bytes.Buffer
	printVerdict(&buf, session.Verdict{
		Mode:            session.ModeSubmit,
		Status:          session.StatusWrongAnswer,
		TestCasesPassed: 1,
		TotalTestCases:  2,
		Score:           50,
		Cases: []session.CaseOutcome{
			{Number: 1, Status: "PASS"},
			{Number: 2, Status: "FAIL", Hidden: true},
		},
	})

	out := buf.String()
	require.Contains(t, out, "WA  1/2 passed  score 50")
	require.Contains(t, out, "case 1")
	require.NotContains(t, out, "case 2")
	require.Contains(t, out, "1 hidden case(s)")
	require.Contains(t, out, "stored as your submission")
}

func TestPrintProblem(t *testing.T) {
	end := time.Now().Add(time.Hour)
	var buf bytes.Buffer
	printProblem(&buf, session.Snapshot{
		Problem:       &session.Problem{ID: 3, Title: "Echo", Description: "Print the input.", Examples: []string{"1 -> 1"}, TimeLimit: 1.5, MemoryLimit: 64},
		Languages:     []session.Language{session.LanguageJava, session.LanguagePython},
		Liveness:      session.Liveness{Known: true, Status: session.LivenessStatus{Exists: true, Active: true, ContestName: "Spring Cup", EndTime: &end}},
		TimeRemaining: "59m remaining",
		Navigation:    session.NavigationView{Index: 1, Total: 4},
	})

	out := buf.String()
	require.Contains(t, out, "#3 Echo")
	require.Contains(t, out, "time limit 1.5s")
	require.Contains(t, out, "contest: Spring Cup, 59m remaining")
	require.Contains(t, out, "problem 2 of 4")
	require.Contains(t, out, "Example 1\n1 -> 1")
	require.Contains(t, out, "languages: JAVA, PYTHON")
}

func TestPrintRemoteSnapshot(t *testing.T) {
	var buf bytes.Buffer
	printRemoteSnapshot(&buf, dto.SessionResponse{
		ID:            "s1",
		ProblemID:     3,
		Phase:         "locked",
		LockReason:    "deactivated",
		TimeRemaining: "ended",
		Banner:        "This contest is no longer active",
	})
	require.Equal(t, "[s1] problem 3 locked (deactivated), ended\nThis contest is no longer active\n", buf.String())
}
