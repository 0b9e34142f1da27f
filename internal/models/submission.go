package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission statuses.
const (
	SubmissionStatusPending  = "PENDING"
	SubmissionStatusJudging  = "JUDGING"
	SubmissionStatusAccepted = "AC"
	SubmissionStatusWrong    = "WA"
	SubmissionStatusTimeout  = "TLE"
	SubmissionStatusMemory   = "MLE"
	SubmissionStatusRuntime  = "RE"
	SubmissionStatusCompile  = "CE"
)

// Test case outcome labels stored in TestCaseDetails.
const (
	CaseStatusPass    = "PASS"
	CaseStatusFail    = "FAIL"
	CaseStatusRuntime = "RE"
	CaseStatusTimeout = "TLE"
	CaseStatusMemory  = "MLE"
)

// Submission is a competitor's stored attempt. There is at most one per user and problem.
type Submission struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UserID          uint           `gorm:"not null;uniqueIndex:idx_submission_user_problem" json:"user_id"`
	ProblemID       uint           `gorm:"not null;uniqueIndex:idx_submission_user_problem" json:"problem_id"`
	ContestID       *uint          `gorm:"index" json:"contest_id"`
	Code            string         `gorm:"type:text" json:"code"`
	Language        string         `gorm:"size:16;not null" json:"language"`
	Status          string         `gorm:"size:16;not null" json:"status"`
	Score           int            `gorm:"default:0" json:"score"`
	TestCasesPassed int            `gorm:"default:0" json:"test_cases_passed"`
	TotalTestCases  int            `gorm:"default:0" json:"total_test_cases"`
	TimeConsumed    float64        `gorm:"default:0" json:"time_consumed"`
	ErrorMessage    string         `gorm:"type:text" json:"error_message"`
	TestCaseDetails datatypes.JSON `json:"test_case_details"`
	ProblemName     string         `gorm:"size:255" json:"problem_name"`
	SubmittedAt     time.Time      `json:"submitted_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// CaseDetail is one entry of TestCaseDetails.
type CaseDetail struct {
	TestCase int    `json:"testCase"`
	Status   string `json:"status"`
	Hidden   bool   `json:"hidden"`
}

// IsFinal reports whether judging has completed.
func (s Submission) IsFinal() bool {
	return s.Status != SubmissionStatusPending && s.Status != SubmissionStatusJudging
}
