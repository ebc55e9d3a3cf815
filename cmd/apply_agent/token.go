package main

import (
	"fmt"

	"github.com/jonathan/apply-agent/internal/config"
	"github.com/jonathan/apply-agent/internal/server"
	"github.com/spf13/cobra"
)

var tokenSubject string

var tokenCommand = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the run-control API",
	Long:  `Signs a JWT with JWT_SECRET for use as "Authorization: Bearer <token>".`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		jwtConfig, err := config.LoadJWTConfig()
		if err != nil {
			return err
		}
		if jwtConfig == nil {
			return fmt.Errorf("JWT_SECRET is not set; the API is running without authentication")
		}
		token, err := server.NewJWTService(jwtConfig).GenerateToken(tokenSubject)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCommand.Flags().StringVar(&tokenSubject, "subject", "operator", "Operator name recorded as the token subject")
	rootCmd.AddCommand(tokenCommand)
}
