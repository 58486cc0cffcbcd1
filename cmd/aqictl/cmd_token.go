package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqicast/aqicast/internal/auth"
)

var tokenFlags struct {
	subject string
	ttl     time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an operator bearer token for /ops/status",
	Long:  `Sign an operator token with OPS_TOKEN_KEY. The token carries the ops:read scope.`,
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenFlags.subject, "subject", "", "operator identity recorded in the token")
	tokenCmd.Flags().DurationVar(&tokenFlags.ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	if cfg.OpsTokenKey == "" {
		return errors.New("OPS_TOKEN_KEY is not set")
	}

	svc := auth.NewJWTService(auth.JWTConfig{SigningKey: cfg.OpsTokenKey})
	token, expiresAt, err := svc.Issue(tokenFlags.subject, tokenFlags.ttl, auth.ScopeOps)
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"token":      token,
			"expires_at": expiresAt.UTC().Format(time.RFC3339),
		})
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
