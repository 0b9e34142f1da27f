package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/arena-go/internal/session"
)

// errRefused marks an action the contest lock refused; it exits with status 2.
var errRefused = errors.New("refused")

var opts struct {
	apiURL     string
	gatewayURL string
	token      string
	timeout    time.Duration
	verbose    bool
}

var rootCmd = &cobra.Command{
	Use:           "arena",
	Short:         "Work on contest problems from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if opts.token == "" {
			opts.token = os.Getenv("ARENA_TOKEN")
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api", envOr("ARENA_API", "http://localhost:8080"), "contest API base URL")
	flags.StringVar(&opts.gatewayURL, "gateway", envOr("ARENA_GATEWAY", "http://localhost:8081"), "session gateway base URL")
	flags.StringVar(&opts.token, "token", "", "bearer token (defaults to $ARENA_TOKEN)")
	flags.DurationVar(&opts.timeout, "timeout", 20*time.Second, "how long to wait for the session to load")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log session activity to stderr")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func newLogger() zerolog.Logger {
	if !opts.verbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}

func exitCode(err error) int {
	if errors.Is(err, errRefused) {
		return 2
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	return 1
}

// refusal reports a clamp with the session banner and wraps errRefused.
func refusal(snapshot session.Snapshot, err error) error {
	var clamp *session.ClampError
	if !errors.As(err, &clamp) {
		return err
	}
	banner := snapshot.Banner
	if banner == "" {
		banner = clamp.Error()
	}
	fmt.Fprintln(os.Stderr, banner)
	if clamp.Redirect != "" {
		fmt.Fprintln(os.Stderr, "see", clamp.Redirect)
	}
	return fmt.Errorf("%s: %w", clamp.Action, errRefused)
}
