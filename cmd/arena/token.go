package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/arena-go/internal/middleware"
)

var tokenOpts struct {
	secret string
	role   string
	ttl    time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token USER_ID",
	Short: "Sign a development token for a local contest API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseProblemID(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		secret := tokenOpts.secret
		if secret == "" {
			secret = os.Getenv("ARENA_JWT_SECRET")
		}
		if secret == "" {
			return errors.New("no signing secret: pass --secret or set ARENA_JWT_SECRET")
		}

		token, err := middleware.IssueToken(secret, userID, tokenOpts.role, tokenOpts.ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOpts.secret, "secret", "", "HS256 secret (default $ARENA_JWT_SECRET)")
	tokenCmd.Flags().StringVar(&tokenOpts.role, "role", "student", "role claim")
	tokenCmd.Flags().DurationVar(&tokenOpts.ttl, "ttl", 12*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
