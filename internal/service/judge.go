package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/arena-go/internal/models"
	dockerexec "github.com/noah-isme/arena-go/pkg/docker"
)

const (
	compileTimeout   = 10 * time.Second
	userCodeMarker   = "USER_CODE_PLACEHOLDER"
	defaultTimeLimit = 2 * time.Second
)

// ErrUnsupportedLanguage indicates the requested language is not allowed.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// JudgeConfig describes execution configuration knobs.
type JudgeConfig struct {
	ExecutionTimeout time.Duration
	MemoryLimitMB    int
	CPUShares        int
	WorkspaceRoot    string
}

type languageConfig struct {
	Image    string
	FileName string
	Compile  []string
	Run      []string
}

var judgeLanguages = map[string]languageConfig{
	models.LanguageJava: {
		Image:    "eclipse-temurin:21-jdk-alpine",
		FileName: "Main.java",
		Compile:  []string{"javac", "Main.java"},
		Run:      []string{"java", "-cp", ".", "Main"},
	},
	models.LanguageCPP: {
		Image:    "gcc:13",
		FileName: "main.cpp",
		Compile:  []string{"g++", "-O2", "-o", "main", "main.cpp"},
		Run:      []string{"./main"},
	},
	models.LanguageC: {
		Image:    "gcc:13",
		FileName: "main.c",
		Compile:  []string{"gcc", "-O2", "-o", "main", "main.c"},
		Run:      []string{"./main"},
	},
	models.LanguagePython: {
		Image:    "python:3.11-alpine",
		FileName: "main.py",
		Run:      []string{"python", "main.py"},
	},
	models.LanguageJavaScript: {
		Image:    "node:20-alpine",
		FileName: "main.js",
		Run:      []string{"node", "main.js"},
	},
}

// judgeOutcome is the verdict of one judged run.
type judgeOutcome struct {
	Status       string
	Passed       int
	Total        int
	Score        int
	TimeMs       float64
	ErrorMessage string
	Details      []models.CaseDetail
}

type judge struct {
	executor dockerexec.Executor
	config   JudgeConfig
	logger   zerolog.Logger
}

func newJudge(executor dockerexec.Executor, cfg JudgeConfig, logger zerolog.Logger) *judge {
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}
	return &judge{
		executor: executor,
		config:   cfg,
		logger:   logger.With().Str("component", "judge").Logger(),
	}
}

// mergeTemplate splices code into the solution template. Without a template
// the code runs as written.
func mergeTemplate(template, code string) string {
	if strings.TrimSpace(template) == "" {
		return code
	}
	return strings.NewReplacer(
		"// "+userCodeMarker, code,
		"# "+userCodeMarker, code,
		"/* "+userCodeMarker+" */", code,
	).Replace(template)
}

// normalizeOutput drops trailing line breaks only; inner whitespace is significant.
func normalizeOutput(output string) string {
	return strings.TrimRight(output, "\r\n")
}

func (j *judge) run(ctx context.Context, problem models.Problem, language, source string, cases []models.TestCase) (judgeOutcome, error) {
	lang, ok := judgeLanguages[language]
	if !ok {
		return judgeOutcome{}, ErrUnsupportedLanguage
	}

	outcome := judgeOutcome{Total: len(cases), Details: []models.CaseDetail{}}
	if len(cases) == 0 {
		outcome.Status = models.SubmissionStatusAccepted
		return outcome, nil
	}

	workspace, err := os.MkdirTemp(j.config.WorkspaceRoot, "judge-")
	if err != nil {
		return judgeOutcome{}, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	if err := os.WriteFile(filepath.Join(workspace, lang.FileName), []byte(source), 0o644); err != nil {
		return judgeOutcome{}, fmt.Errorf("write source: %w", err)
	}

	if len(lang.Compile) > 0 {
		result, execErr := j.executor.Run(ctx, j.request(lang.Image, lang.Compile, workspace, compileTimeout, problem.MemoryLimit))
		if execErr != nil && !result.TimedOut {
			return judgeOutcome{}, fmt.Errorf("compile: %w", execErr)
		}
		if result.TimedOut || result.ExitCode != 0 {
			outcome.Status = models.SubmissionStatusCompile
			outcome.ErrorMessage = compileMessage(result)
			return outcome, nil
		}
	}

	limit := time.Duration(problem.TimeLimit * float64(time.Second))
	if limit <= 0 {
		limit = j.config.ExecutionTimeout
	}
	if limit <= 0 {
		limit = defaultTimeLimit
	}

	for i, tc := range cases {
		inputFile := fmt.Sprintf("input-%d.txt", i+1)
		if err := os.WriteFile(filepath.Join(workspace, inputFile), []byte(tc.Input), 0o644); err != nil {
			return judgeOutcome{}, fmt.Errorf("write input: %w", err)
		}

		req := j.request(lang.Image, lang.Run, workspace, limit, problem.MemoryLimit)
		req.StdinFile = inputFile

		result, execErr := j.executor.Run(ctx, req)
		if execErr != nil && !result.TimedOut {
			return judgeOutcome{}, fmt.Errorf("run test case %d: %w", i+1, execErr)
		}

		outcome.TimeMs = math.Max(outcome.TimeMs, float64(result.Duration.Milliseconds()))

		detail := models.CaseDetail{TestCase: i + 1, Hidden: tc.Hidden}
		switch {
		case result.TimedOut:
			detail.Status = models.CaseStatusTimeout
			outcome.fail(models.SubmissionStatusTimeout, "")
		case result.OOMKilled:
			detail.Status = models.CaseStatusMemory
			outcome.fail(models.SubmissionStatusMemory, "")
		case result.ExitCode != 0:
			detail.Status = models.CaseStatusRuntime
			outcome.fail(models.SubmissionStatusRuntime, runtimeMessage(result))
		case normalizeOutput(result.Stdout) != normalizeOutput(tc.ExpectedOutput):
			detail.Status = models.CaseStatusFail
			outcome.fail(models.SubmissionStatusWrong, "")
		default:
			detail.Status = models.CaseStatusPass
			outcome.Passed++
		}
		outcome.Details = append(outcome.Details, detail)
	}

	if outcome.Passed == outcome.Total {
		outcome.Status = models.SubmissionStatusAccepted
	} else if outcome.Status == "" {
		outcome.Status = models.SubmissionStatusWrong
	}
	outcome.Score = int(math.Round(float64(outcome.Passed) * 100 / float64(outcome.Total)))

	j.logger.Debug().
		Uint("problem_id", problem.ID).
		Str("language", language).
		Str("status", outcome.Status).
		Int("passed", outcome.Passed).
		Int("total", outcome.Total).
		Msg("judged run")

	return outcome, nil
}

// fail records a failing case; the first failure decides the status.
func (o *judgeOutcome) fail(status, message string) {
	if o.Status != "" {
		return
	}
	o.Status = status
	o.ErrorMessage = message
}

func (j *judge) request(image string, cmd []string, workspace string, timeout time.Duration, memoryMB int) dockerexec.ExecutionRequest {
	memory := int64(memoryMB)
	if memory <= 0 {
		memory = int64(j.config.MemoryLimitMB)
	}
	return dockerexec.ExecutionRequest{
		Image:           image,
		Cmd:             cmd,
		Timeout:         timeout,
		Workspace:       workspace,
		WorkingDir:      "/workspace",
		MemoryLimitMB:   memory,
		CPUShares:       int64(j.config.CPUShares),
		NetworkDisabled: true,
	}
}

func compileMessage(result dockerexec.ExecutionResult) string {
	if result.TimedOut {
		return "Compilation timeout"
	}
	if msg := strings.TrimSpace(result.Stderr); msg != "" {
		return msg
	}
	return strings.TrimSpace(result.Stdout)
}

func runtimeMessage(result dockerexec.ExecutionResult) string {
	if msg := strings.TrimSpace(result.Stderr); msg != "" {
		return msg
	}
	return fmt.Sprintf("process exited with code %d", result.ExitCode)
}
