package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/grocery_shop/pkg/tokens"
)

var (
	tokenRole    string
	tokenSubject string
	tokenTTL     time.Duration
)

// tokenCmd mints access tokens for local testing. Sign-up and login live
// outside this service.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed access token for local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		loadEnv()

		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			return fmt.Errorf("JWT_SECRET is required")
		}

		subject := tokenSubject
		if subject == "" {
			subject = uuid.NewString()
		} else if _, err := uuid.Parse(subject); err != nil {
			return fmt.Errorf("--user must be a uuid: %w", err)
		}

		tok, err := tokens.NewAccessToken(tokenRole, subject, time.Now().Add(tokenTTL), []byte(secret))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", "user", `role claim, "admin" for the admin routes`)
	tokenCmd.Flags().StringVar(&tokenSubject, "user", "", "user id (random when empty)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
