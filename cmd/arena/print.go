package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/noah-isme/arena-go/internal/dto"
	"github.com/noah-isme/arena-go/internal/session"
)

func printProblem(w io.Writer, s session.Snapshot) {
	p := s.Problem
	fmt.Fprintf(w, "#%d %s\n", p.ID, p.Title)
	fmt.Fprintf(w, "time limit %gs, memory limit %d MB\n", p.TimeLimit, p.MemoryLimit)
	printContest(w, s.Liveness, s.TimeRemaining, s.Banner)
	fmt.Fprintf(w, "problem %d of %d\n\n", s.Navigation.Index+1, s.Navigation.Total)

	for _, section := range []struct{ title, body string }{
		{"Description", p.Description},
		{"Input", p.InputFormat},
		{"Output", p.OutputFormat},
		{"Constraints", p.Constraints},
	} {
		if strings.TrimSpace(section.body) == "" {
			continue
		}
		fmt.Fprintf(w, "%s\n%s\n\n", section.title, strings.TrimSpace(section.body))
	}
	for i, example := range p.Examples {
		fmt.Fprintf(w, "Example %d\n%s\n\n", i+1, example)
	}
	for _, image := range p.Images {
		fmt.Fprintln(w, "image:", image)
	}

	languages := make([]string, 0, len(s.Languages))
	for _, lang := range s.Languages {
		languages = append(languages, string(lang))
	}
	fmt.Fprintf(w, "languages: %s\n", strings.Join(languages, ", "))

	if sub := s.PriorSubmission; sub != nil {
		fmt.Fprintf(w, "last submission: %s %d/%d score %d (%s)", sub.Status, sub.TestCasesPassed, sub.TotalTestCases, sub.Score, sub.Language)
		if sub.SubmittedAt != nil {
			fmt.Fprintf(w, " at %s", sub.SubmittedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintln(w)
	}
}

func printContest(w io.Writer, l session.Liveness, remaining, banner string) {
	switch {
	case !l.Known:
		fmt.Fprintln(w, "contest: status unknown")
	case !l.Status.Exists:
		fmt.Fprintln(w, "contest: deleted")
	case !l.Status.Active:
		fmt.Fprintf(w, "contest: %s (inactive)\n", l.Status.ContestName)
	default:
		fmt.Fprintf(w, "contest: %s, %s\n", l.Status.ContestName, remaining)
	}
	if banner != "" {
		fmt.Fprintln(w, banner)
	}
}

func printVerdict(w io.Writer, v session.Verdict) {
	fmt.Fprintf(w, "%s  %d/%d passed  score %d  %.0f ms\n", v.Status, v.TestCasesPassed, v.TotalTestCases, v.Score, v.TimeConsumedMs)
	if v.IsError() {
		fmt.Fprintln(w, v.ErrorMessage)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range v.VisibleCases() {
		fmt.Fprintf(tw, "  case %d\t%s\n", c.Number, c.Status)
	}
	_ = tw.Flush()
	if hidden := v.HiddenCount(); hidden > 0 {
		fmt.Fprintf(w, "  %d hidden case(s)\n", hidden)
	}
	if v.Persisted() {
		fmt.Fprintln(w, "stored as your submission")
	}
}

func printRemoteSnapshot(w io.Writer, s dto.SessionResponse) {
	status := s.Phase
	if s.LockReason != "" {
		status += " (" + s.LockReason + ")"
	}
	fmt.Fprintf(w, "[%s] problem %d %s, %s", s.ID, s.ProblemID, status, s.TimeRemaining)
	switch {
	case s.Running || s.Submitting:
		fmt.Fprint(w, ", running")
	case s.Output.Verdict != nil:
		fmt.Fprintf(w, ", last %s %s %d/%d", s.Output.Verdict.Mode, s.Output.Verdict.Status, s.Output.Verdict.TestCasesPassed, s.Output.Verdict.TotalTestCases)
	case s.Output.Message != "":
		fmt.Fprintf(w, ", %s", s.Output.Message)
	}
	fmt.Fprintln(w)
	if s.Banner != "" {
		fmt.Fprintln(w, s.Banner)
	}
}
