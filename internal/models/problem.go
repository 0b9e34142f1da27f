package models

import "time"

// Snippet language codes accepted by the judge.
const (
	LanguageJava       = "JAVA"
	LanguageCPP        = "CPP"
	LanguagePython     = "PYTHON"
	LanguageJavaScript = "JAVASCRIPT"
	LanguageC          = "C"
)

// Problem is a contest problem.
type Problem struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	ContestID    *uint         `gorm:"index" json:"contest_id"`
	Title        string        `gorm:"size:255;not null" json:"title"`
	Description  string        `gorm:"type:text" json:"description"`
	InputFormat  string        `gorm:"type:text" json:"input_format"`
	OutputFormat string        `gorm:"type:text" json:"output_format"`
	Constraints  string        `gorm:"type:text" json:"constraints"`
	Example1     string        `gorm:"type:text" json:"example1"`
	Example2     string        `gorm:"type:text" json:"example2"`
	Example3     string        `gorm:"type:text" json:"example3"`
	Images       string        `gorm:"type:text" json:"images"`
	TimeLimit    float64       `gorm:"not null;default:1" json:"time_limit"`
	MemoryLimit  int           `gorm:"not null;default:256" json:"memory_limit"`
	Active       bool          `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Snippets     []CodeSnippet `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"snippets,omitempty"`
	TestCases    []TestCase    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"test_cases,omitempty"`
}

// CodeSnippet holds the starter code and judge template of a problem for one language.
type CodeSnippet struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ProblemID        uint      `gorm:"not null;uniqueIndex:idx_snippet_problem_language" json:"problem_id"`
	Language         string    `gorm:"size:16;not null;uniqueIndex:idx_snippet_problem_language" json:"language"`
	StarterCode      string    `gorm:"type:text" json:"starter_code"`
	SolutionTemplate string    `gorm:"type:text" json:"solution_template"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TestCase is one judged input/output pair.
type TestCase struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ProblemID      uint      `gorm:"not null;index" json:"problem_id"`
	Input          string    `gorm:"type:text" json:"input"`
	ExpectedOutput string    `gorm:"type:text" json:"expected_output"`
	Hidden         bool      `gorm:"not null;default:false" json:"hidden"`
	CreatedAt      time.Time `json:"created_at"`
}
