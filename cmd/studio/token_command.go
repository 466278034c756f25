package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/config"
	"github.com/phrazzld/scry-studio/internal/service/auth"
	"github.com/spf13/cobra"
)

func newTokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API bearer tokens",
	}

	var userFlag string
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token for a user with the server's secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := uuid.Parse(userFlag)
			if err != nil {
				return fmt.Errorf("invalid user ID %q: %w", userFlag, err)
			}
			cfg, err := config.LoadAuth()
			if err != nil {
				return err
			}
			jwtService, err := auth.NewJWTService(*cfg)
			if err != nil {
				return err
			}
			token, err := jwtService.GenerateToken(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issueCmd.Flags().StringVar(&userFlag, "user", "", "User ID the token authenticates")
	_ = issueCmd.MarkFlagRequired("user")
	tokenCmd.AddCommand(issueCmd)

	return tokenCmd
}
