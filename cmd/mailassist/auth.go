package main

import (
	"time"

	"github.com/daviddao/mailassist/internal/auth"
	"github.com/daviddao/mailassist/internal/display"
	"github.com/spf13/cobra"
)

var (
	authHost    string
	authTimeout time.Duration
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize Gmail access and store the OAuth token",
	Long: `Run the OAuth consent flow for the configured credentials.json.

A temporary server on a random loopback port receives the redirect; open the
printed URL in a browser and approve access. The token is written to the
configured token store (token.json by default).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := tokenStore(cfg.Gmail)
		if err != nil {
			return err
		}
		err = auth.Login(cmd.Context(), cfg.Gmail.Credentials, store, auth.LoginOptions{
			Host:    authHost,
			Timeout: authTimeout,
			Out:     cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg(cmd.OutOrStdout(), "Token saved (%s store)", cfg.Gmail.TokenStore)
		}
		return nil
	},
}

func init() {
	authCmd.Flags().StringVar(&authHost, "host", "localhost", "Host name used in the redirect URL")
	authCmd.Flags().DurationVar(&authTimeout, "timeout", 5*time.Minute, "How long to wait for the browser redirect")
	rootCmd.AddCommand(authCmd)
}
