package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/arena-go/internal/session"
)

var runOpts struct {
	file     string
	language string
}

var showCmd = &cobra.Command{
	Use:   "show PROBLEM_ID",
	Short: "Print a problem, its contest status and your last submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		problemID, err := parseProblemID(args[0])
		if err != nil {
			return err
		}

		controller, snapshot, err := openLocal(cmd.Context(), problemID, "")
		if err != nil {
			return err
		}
		defer controller.Close()

		printProblem(cmd.OutOrStdout(), snapshot)
		return nil
	},
}

var testCmd = &cobra.Command{
	Use:   "test PROBLEM_ID",
	Short: "Run code against the sample cases without storing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCode(cmd, args[0], session.ModeTest)
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit PROBLEM_ID",
	Short: "Submit code; it replaces your stored submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCode(cmd, args[0], session.ModeSubmit)
	},
}

var nextCmd = &cobra.Command{
	Use:   "next PROBLEM_ID",
	Short: "Show the problem after PROBLEM_ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return step(cmd, args[0], (*session.Controller).Next)
	},
}

var prevCmd = &cobra.Command{
	Use:   "prev PROBLEM_ID",
	Short: "Show the problem before PROBLEM_ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return step(cmd, args[0], (*session.Controller).Prev)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{testCmd, submitCmd} {
		cmd.Flags().StringVarP(&runOpts.file, "file", "f", "", "source file, - for stdin")
		cmd.Flags().StringVarP(&runOpts.language, "lang", "l", "", "language (JAVA, CPP, PYTHON, JAVASCRIPT, C)")
		_ = cmd.MarkFlagRequired("file")
	}

	rootCmd.AddCommand(showCmd, testCmd, submitCmd, nextCmd, prevCmd, watchCmd)
}

func parseProblemID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid problem id %q", raw)
	}
	return uint(id), nil
}

func readSource(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func runCode(cmd *cobra.Command, rawID string, mode session.Mode) error {
	problemID, err := parseProblemID(rawID)
	if err != nil {
		return err
	}
	source, err := readSource(runOpts.file)
	if err != nil {
		return err
	}

	controller, snapshot, err := openLocal(cmd.Context(), problemID, runOpts.language)
	if err != nil {
		return err
	}
	defer controller.Close()

	if runOpts.language != "" && session.Language(strings.ToUpper(runOpts.language)) != snapshot.Language {
		if err := controller.SelectLanguage(session.Language(runOpts.language)); err != nil {
			return err
		}
	}
	if err := controller.SetCode(source); err != nil {
		return err
	}

	run := controller.Test
	if mode == session.ModeSubmit {
		run = controller.Submit
	}
	verdict, err := run(cmd.Context())
	if err != nil {
		return refusal(controller.Snapshot(), err)
	}

	printVerdict(cmd.OutOrStdout(), verdict)
	return nil
}

func step(cmd *cobra.Command, rawID string, move func(*session.Controller) (uint, error)) error {
	problemID, err := parseProblemID(rawID)
	if err != nil {
		return err
	}

	controller, _, err := openLocal(cmd.Context(), problemID, "")
	if err != nil {
		return err
	}
	defer controller.Close()

	if err := waitNavigation(cmd, controller); err != nil {
		return err
	}

	snapshots, cancel := controller.Subscribe()
	defer cancel()

	target, err := move(controller)
	if err != nil {
		return refusal(controller.Snapshot(), err)
	}

	snapshot, err := waitFor(cmd.Context(), controller, snapshots, loaded(target))
	if err != nil {
		return err
	}

	printProblem(cmd.OutOrStdout(), snapshot)
	return nil
}

// waitNavigation waits for the problem list so a move is not refused just
// because the list is still loading.
func waitNavigation(cmd *cobra.Command, controller *session.Controller) error {
	snapshots, cancel := controller.Subscribe()
	defer cancel()

	_, err := waitFor(cmd.Context(), controller, snapshots, func(s session.Snapshot) bool {
		return s.Navigation.Total > 0
	})
	return err
}
