package main

import (
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin token for the archive endpoint",
	Long: `Sign a JWT accepted by POST /api/archive. The secret is taken from
WEATHERLOG_JWT_SECRET or prompted for when unset.`,
	RunE: runToken,
}

var (
	tokenSubject string
	tokenTTL     time.Duration
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "subject recorded in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if tokenTTL <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	secret := cfg.JWTSecret
	if secret == "" {
		fmt.Print("JWT secret: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
		secret = strings.TrimSpace(string(raw))
	}

	token, expiresAt, err := GenerateJWT(secret, tokenSubject, tokenTTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}
