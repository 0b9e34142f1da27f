package dto

import (
	"time"

	"github.com/noah-isme/arena-go/internal/models"
)

// ProblemResponse is the problem payload of the contest API.
type ProblemResponse struct {
	ID           uint    `json:"id"`
	ContestID    *uint   `json:"contestId"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	InputFormat  string  `json:"inputFormat"`
	OutputFormat string  `json:"outputFormat"`
	Constraints  string  `json:"constraints"`
	Example1     string  `json:"example1"`
	Example2     string  `json:"example2"`
	Example3     string  `json:"example3"`
	Images       string  `json:"images"`
	TimeLimit    float64 `json:"timeLimit"`
	MemoryLimit  int     `json:"memoryLimit"`
	Active       bool    `json:"active"`
}

// SnippetResponse is one language snippet of a problem.
type SnippetResponse struct {
	ID               uint   `json:"id"`
	ProblemID        uint   `json:"problemId"`
	Language         string `json:"language"`
	StarterCode      string `json:"starterCode"`
	SolutionTemplate string `json:"solutionTemplate"`
}

// ContestStatusResponse reports whether the contest owning a problem exists and is active.
type ContestStatusResponse struct {
	Active      bool       `json:"active"`
	Exists      bool       `json:"exists"`
	ContestName string     `json:"contestName,omitempty"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
}

// SubmissionRequest is the body of both the test and the submit endpoints.
type SubmissionRequest struct {
	ProblemID uint   `json:"problemId" validate:"required,gt=0"`
	Code      string `json:"code" validate:"required"`
	Language  string `json:"language" validate:"required,oneof=JAVA CPP PYTHON JAVASCRIPT C"`
}

// SubmissionResponse is the verdict record returned by test and submit, and the
// stored submission returned by the latest-submission lookup.
type SubmissionResponse struct {
	ID              uint       `json:"id,omitempty"`
	ProblemID       uint       `json:"problemId"`
	UserID          uint       `json:"userId,omitempty"`
	Code            string     `json:"code"`
	Language        string     `json:"language"`
	Status          string     `json:"status"`
	Score           int        `json:"score"`
	TestCasesPassed int        `json:"testCasesPassed"`
	TotalTestCases  int        `json:"totalTestCases"`
	TimeConsumed    float64    `json:"timeConsumed"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	TestCaseDetails string     `json:"testCaseDetails"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	ProblemName     string     `json:"problemName,omitempty"`
}

// NewProblemResponse maps a problem model.
func NewProblemResponse(problem models.Problem) ProblemResponse {
	return ProblemResponse{
		ID:           problem.ID,
		ContestID:    problem.ContestID,
		Title:        problem.Title,
		Description:  problem.Description,
		InputFormat:  problem.InputFormat,
		OutputFormat: problem.OutputFormat,
		Constraints:  problem.Constraints,
		Example1:     problem.Example1,
		Example2:     problem.Example2,
		Example3:     problem.Example3,
		Images:       problem.Images,
		TimeLimit:    problem.TimeLimit,
		MemoryLimit:  problem.MemoryLimit,
		Active:       problem.Active,
	}
}

// NewProblemResponseSlice maps a list of problems preserving order.
func NewProblemResponseSlice(problems []models.Problem) []ProblemResponse {
	out := make([]ProblemResponse, 0, len(problems))
	for _, problem := range problems {
		out = append(out, NewProblemResponse(problem))
	}
	return out
}

// NewSnippetResponse maps a snippet model.
func NewSnippetResponse(snippet models.CodeSnippet) SnippetResponse {
	return SnippetResponse{
		ID:               snippet.ID,
		ProblemID:        snippet.ProblemID,
		Language:         snippet.Language,
		StarterCode:      snippet.StarterCode,
		SolutionTemplate: snippet.SolutionTemplate,
	}
}

// NewSnippetResponseSlice maps a list of snippets.
func NewSnippetResponseSlice(snippets []models.CodeSnippet) []SnippetResponse {
	out := make([]SnippetResponse, 0, len(snippets))
	for _, snippet := range snippets {
		out = append(out, NewSnippetResponse(snippet))
	}
	return out
}

// NewContestStatusResponse maps a contest lookup; nil means the contest is gone.
func NewContestStatusResponse(contest *models.Contest) ContestStatusResponse {
	if contest == nil {
		return ContestStatusResponse{Active: false, Exists: false}
	}
	return ContestStatusResponse{
		Active:      contest.Active,
		Exists:      true,
		ContestName: contest.Name,
		StartTime:   contest.StartTime,
		EndTime:     contest.EndTime,
	}
}

// NewSubmissionResponse maps a submission model.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	details := string(submission.TestCaseDetails)
	if details == "" || details == "null" {
		details = "[]"
	}

	var submittedAt *time.Time
	if !submission.SubmittedAt.IsZero() {
		at := submission.SubmittedAt
		submittedAt = &at
	}

	return SubmissionResponse{
		ID:              submission.ID,
		ProblemID:       submission.ProblemID,
		UserID:          submission.UserID,
		Code:            submission.Code,
		Language:        submission.Language,
		Status:          submission.Status,
		Score:           submission.Score,
		TestCasesPassed: submission.TestCasesPassed,
		TotalTestCases:  submission.TotalTestCases,
		TimeConsumed:    submission.TimeConsumed,
		ErrorMessage:    submission.ErrorMessage,
		TestCaseDetails: details,
		SubmittedAt:     submittedAt,
		ProblemName:     submission.ProblemName,
	}
}

// ContestResponse is a contest as listed to competitors.
type ContestResponse struct {
	ID           uint       `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Active       bool       `json:"active"`
	Running      bool       `json:"running"`
	StartTime    *time.Time `json:"startTime,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	ProblemCount int64      `json:"problemCount"`
}

// ContestDetailResponse is a contest with its problems in id order.
type ContestDetailResponse struct {
	ContestResponse
	Problems []ProblemResponse `json:"problems"`
}

// LeaderboardEntry is one ranked competitor. Equal scores share a rank.
type LeaderboardEntry struct {
	Rank       int   `json:"rank"`
	UserID     uint  `json:"userId"`
	TotalScore int64 `json:"totalScore"`
	Solved     int64 `json:"solved"`
	Attempted  int64 `json:"attempted"`
}

// NewContestResponse maps a contest model; now decides Running.
func NewContestResponse(contest models.Contest, problemCount int64, now time.Time) ContestResponse {
	return ContestResponse{
		ID:           contest.ID,
		Name:         contest.Name,
		Description:  contest.Description,
		Active:       contest.Active,
		Running:      contest.IsRunning(now),
		StartTime:    contest.StartTime,
		EndTime:      contest.EndTime,
		ProblemCount: problemCount,
	}
}

// NewSubmissionResponseSlice maps stored submissions preserving order.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	out := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		out = append(out, NewSubmissionResponse(submission))
	}
	return out
}
