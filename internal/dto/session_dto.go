package dto

import "time"

// SessionOpenRequest opens a session on a problem.
type SessionOpenRequest struct {
	ProblemID uint `json:"problem_id" validate:"required,gt=0"`
}

// SessionCodeRequest replaces the editor buffer. An empty buffer is allowed.
type SessionCodeRequest struct {
	Code string `json:"code" validate:"max=65536"`
}

// SessionLanguageRequest switches the session language.
type SessionLanguageRequest struct {
	Language string `json:"language" validate:"required"`
}

// SessionProblemResponse is the problem statement as rendered for the session view.
type SessionProblemResponse struct {
	ID           uint     `json:"id"`
	ContestID    *uint    `json:"contest_id,omitempty"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	InputFormat  string   `json:"input_format"`
	OutputFormat string   `json:"output_format"`
	Constraints  string   `json:"constraints"`
	Examples     []string `json:"examples"`
	Images       []string `json:"images"`
	TimeLimit    float64  `json:"time_limit"`
	MemoryLimit  int      `json:"memory_limit"`
}

// SessionSubmissionResponse summarises the competitor's stored submission.
type SessionSubmissionResponse struct {
	ID              uint       `json:"id"`
	Language        string     `json:"language"`
	Status          string     `json:"status"`
	Score           int        `json:"score"`
	TestCasesPassed int        `json:"test_cases_passed"`
	TotalTestCases  int        `json:"total_test_cases"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
}

// SessionCaseResponse is one visible test case outcome.
type SessionCaseResponse struct {
	TestCase int    `json:"test_case"`
	Status   string `json:"status"`
}

// SessionVerdictResponse is a normalised run verdict.
type SessionVerdictResponse struct {
	Mode            string                `json:"mode"`
	Status          string                `json:"status"`
	Score           int                   `json:"score"`
	TestCasesPassed int                   `json:"test_cases_passed"`
	TotalTestCases  int                   `json:"total_test_cases"`
	TimeConsumedMs  float64               `json:"time_consumed_ms"`
	ErrorMessage    string                `json:"error_message,omitempty"`
	Cases           []SessionCaseResponse `json:"cases"`
	HiddenCases     int                   `json:"hidden_cases"`
	Persisted       bool                  `json:"persisted"`
}

// SessionOutputResponse is the verdict area of the session.
type SessionOutputResponse struct {
	Kind    string                  `json:"kind,omitempty"`
	Message string                  `json:"message,omitempty"`
	Verdict *SessionVerdictResponse `json:"verdict,omitempty"`
}

// SessionContestResponse is the last liveness sample of the owning contest.
type SessionContestResponse struct {
	Known     bool       `json:"known"`
	Exists    bool       `json:"exists"`
	Active    bool       `json:"active"`
	Name      string     `json:"name,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// SessionNavigationResponse is the position inside the problem list.
type SessionNavigationResponse struct {
	Index     int  `json:"index"`
	Total     int  `json:"total"`
	CanGoPrev bool `json:"can_go_prev"`
	CanGoNext bool `json:"can_go_next"`
}

// SessionResponse is a snapshot of a problem-solving session.
type SessionResponse struct {
	ID                 string                     `json:"id"`
	Generation         uint64                     `json:"generation"`
	ProblemID          uint                       `json:"problem_id"`
	Phase              string                     `json:"phase"`
	LockReason         string                     `json:"lock_reason,omitempty"`
	Problem            *SessionProblemResponse    `json:"problem,omitempty"`
	Code               string                     `json:"code"`
	Language           string                     `json:"language"`
	Languages          []string                   `json:"languages"`
	HasPriorSubmission bool                       `json:"has_prior_submission"`
	PriorSubmission    *SessionSubmissionResponse `json:"prior_submission,omitempty"`
	Output             SessionOutputResponse      `json:"output"`
	Contest            SessionContestResponse     `json:"contest"`
	Banner             string                     `json:"banner,omitempty"`
	Redirect           string                     `json:"redirect,omitempty"`
	TimeRemaining      string                     `json:"time_remaining"`
	Navigation         SessionNavigationResponse  `json:"navigation"`
	Running            bool                       `json:"running"`
	Submitting         bool                       `json:"submitting"`
	LoadError          string                     `json:"load_error,omitempty"`
	Closed             bool                       `json:"closed"`
}

// SessionRefusalDetails accompanies a 409 when a locked contest refuses an action.
type SessionRefusalDetails struct {
	Action   string          `json:"action"`
	Reason   string          `json:"reason"`
	Redirect string          `json:"redirect,omitempty"`
	Session  SessionResponse `json:"session"`
}

// SessionEventResponse is a session lifecycle event fanned out between gateway nodes.
type SessionEventResponse struct {
	SessionID  string    `json:"session_id"`
	UserID     uint      `json:"user_id"`
	Kind       string    `json:"kind"`
	ProblemID  uint      `json:"problem_id"`
	Phase      string    `json:"phase"`
	LockReason string    `json:"lock_reason,omitempty"`
	Status     string    `json:"status,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}
