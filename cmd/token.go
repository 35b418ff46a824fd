package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/paperforge/paperforge/internal/config"
	"github.com/paperforge/paperforge/internal/store"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage auth tokens",
	}
	cmd.AddCommand(tokenCreateCmd())
	return cmd
}

func tokenCreateCmd() *cobra.Command {
	var userID string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a new auth token for a user",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintln(os.Stderr, "load config:", err)
				os.Exit(1)
			}
			st, err := store.Open(cfg.DatabasePath())
			if err != nil {
				fmt.Fprintln(os.Stderr, "open store:", err)
				os.Exit(1)
			}
			defer st.Close()

			token := uuid.NewString()
			expires := time.Now().Add(ttl)
			if err := st.PutToken(token, userID, expires); err != nil {
				fmt.Fprintln(os.Stderr, "save token:", err)
				os.Exit(1)
			}
			fmt.Printf("token: %s\nuser: %s\nexpires: %s\n", token, userID, expires.Format(time.RFC3339))
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id the token authenticates")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	cmd.MarkFlagRequired("user")
	return cmd
}
