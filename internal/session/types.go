package session

import (
	"fmt"
	"strings"
	"time"
)

// Language identifies a programming language supported by the judge.
type Language string

// Supported languages.
const (
	LanguageJava       Language = "JAVA"
	LanguageCPP        Language = "CPP"
	LanguagePython     Language = "PYTHON"
	LanguageJavaScript Language = "JAVASCRIPT"
	LanguageC          Language = "C"
)

// DefaultLanguage is selected when a session opens without a prior submission.
const DefaultLanguage = LanguageJava

var languages = []Language{LanguageJava, LanguageCPP, LanguagePython, LanguageJavaScript, LanguageC}

// Languages returns the supported languages in display order.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// ParseLanguage normalises a language code.
func ParseLanguage(raw string) (Language, error) {
	candidate := Language(strings.ToUpper(strings.TrimSpace(raw)))
	for _, lang := range languages {
		if lang == candidate {
			return lang, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, raw)
}

// Problem is the problem statement shown in the session.
type Problem struct {
	ID           uint
	ContestID    *uint
	Title        string
	Description  string
	InputFormat  string
	OutputFormat string
	Constraints  string
	Examples     []string
	Images       []string
	TimeLimit    float64
	MemoryLimit  int
	Active       bool
}

// Snippet holds the per-language starter code and the backend-only solution template.
type Snippet struct {
	StarterCode      string
	SolutionTemplate string
}

// SnippetSet maps languages to their snippets.
type SnippetSet map[Language]Snippet

// Starter returns the starter code for the language, if any.
func (s SnippetSet) Starter(lang Language) (string, bool) {
	snippet, ok := s[lang]
	if !ok {
		return "", false
	}
	return snippet.StarterCode, true
}

// Available lists the languages that carry a snippet, in display order.
func (s SnippetSet) Available() []Language {
	out := make([]Language, 0, len(s))
	for _, lang := range languages {
		if _, ok := s[lang]; ok {
			out = append(out, lang)
		}
	}
	return out
}

// Submission is the competitor's stored submission for a problem.
type Submission struct {
	ID              uint
	ProblemID       uint
	Code            string
	Language        Language
	Status          VerdictStatus
	Score           int
	TestCasesPassed int
	TotalTestCases  int
	SubmittedAt     *time.Time
}

// LivenessStatus is one sample of the owning contest's state.
type LivenessStatus struct {
	Exists      bool
	Active      bool
	ContestName string
	StartTime   *time.Time
	EndTime     *time.Time
}

// Liveness is either Unknown (no sample yet) or Known(status).
type Liveness struct {
	Known  bool
	Status LivenessStatus
}

// Allows reports whether actions may proceed. Unknown liveness does not clamp.
func (l Liveness) Allows() bool {
	if !l.Known {
		return true
	}
	return l.Status.Exists && l.Status.Active
}

// VerdictStatus is the judge outcome of a run.
type VerdictStatus string

// Verdict statuses.
const (
	StatusAccepted            VerdictStatus = "AC"
	StatusWrongAnswer         VerdictStatus = "WA"
	StatusTimeLimitExceeded   VerdictStatus = "TLE"
	StatusMemoryLimitExceeded VerdictStatus = "MLE"
	StatusRuntimeError        VerdictStatus = "RE"
	StatusCompilationError    VerdictStatus = "CE"
	StatusJudging             VerdictStatus = "JUDGING"
	StatusPending             VerdictStatus = "PENDING"
)

// Mode distinguishes ephemeral test runs from persisted submissions.
type Mode string

// Dispatch modes.
const (
	ModeTest   Mode = "test"
	ModeSubmit Mode = "submit"
)

// CaseOutcome is the result of one test case.
type CaseOutcome struct {
	Number int    `json:"testCase"`
	Status string `json:"status"`
	Hidden bool   `json:"hidden"`
}

// Passed reports whether the case passed.
func (c CaseOutcome) Passed() bool {
	return c.Status == "PASS"
}

// Verdict is the normalised outcome of a Test or Submit action.
type Verdict struct {
	Mode            Mode
	Status          VerdictStatus
	TestCasesPassed int
	TotalTestCases  int
	Score           int
	TimeConsumedMs  float64
	ErrorMessage    string
	Cases           []CaseOutcome
}

// IsError reports whether the verdict carries an error message instead of case detail.
func (v Verdict) IsError() bool {
	return v.Status == StatusCompilationError || v.Status == StatusRuntimeError
}

// Persisted reports whether the verdict belongs to a stored submission.
func (v Verdict) Persisted() bool {
	return v.Mode == ModeSubmit
}

// VisibleCases returns the outcomes the competitor is allowed to see.
func (v Verdict) VisibleCases() []CaseOutcome {
	visible := make([]CaseOutcome, 0, len(v.Cases))
	for _, c := range v.Cases {
		if !c.Hidden {
			visible = append(visible, c)
		}
	}
	return visible
}

// HiddenCount returns how many outcomes are hidden.
func (v Verdict) HiddenCount() int {
	return len(v.Cases) - len(v.VisibleCases())
}

// Phase is the controller state.
type Phase string

// Controller phases.
const (
	PhaseInitializing Phase = "initializing"
	PhaseReady        Phase = "ready"
	PhaseLocked       Phase = "locked"
)

// LockReason explains a locked phase.
type LockReason string

// Lock reasons.
const (
	LockNone        LockReason = ""
	LockDeactivated LockReason = "deactivated"
	LockDeleted     LockReason = "deleted"
)

// OutputKind describes what the verdict area currently shows.
type OutputKind string

// Output kinds.
const (
	OutputNone    OutputKind = ""
	OutputRunning OutputKind = "running"
	OutputVerdict OutputKind = "verdict"
	OutputFailure OutputKind = "failure"
	OutputNotice  OutputKind = "notice"
)

// Output is the verdict area content.
type Output struct {
	Kind    OutputKind
	Message string
	Verdict *Verdict
}

// NavigationView is the navigation slice of a snapshot.
type NavigationView struct {
	Index     int
	Total     int
	CanGoPrev bool
	CanGoNext bool
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	Generation         uint64
	ProblemID          uint
	Phase              Phase
	LockReason         LockReason
	Problem            *Problem
	Code               string
	Language           Language
	Languages          []Language
	HasPriorSubmission bool
	PriorSubmission    *Submission
	Output             Output
	Liveness           Liveness
	Banner             string
	Redirect           string
	TimeRemaining      string
	Navigation         NavigationView
	Running            bool
	Submitting         bool
	LoadError          string
	Closed             bool
}
