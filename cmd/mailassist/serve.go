package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/daviddao/mailassist/internal/api"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the Gmail assistant HTTP API.

Every request authenticates with the stored OAuth token (run 'mailassist auth'
first), refreshing and persisting it when it has expired.`,
	Example: `  mailassist serve
  mailassist serve --listen 127.0.0.1:9000
  MAILASSIST_LOGGING_FORMAT=console mailassist serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveListen != "" {
			cfg.Server.Listen = serveListen
		}

		provider, err := newProvider()
		if err != nil {
			return err
		}
		asst, err := newAssistant()
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr: cfg.Server.Listen,
			Handler: api.NewServer(provider, asst, api.Options{
				CORSOrigins: cfg.Server.CORSOrigins,
			}),
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Info().
				Str("listen", cfg.Server.Listen).
				Str("model", cfg.OpenAI.Model).
				Strs("templates", asst.Templates().IDs()).
				Msg("starting mailassist")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info().Msg("received signal, initiating shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info().Msg("mailassist stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides server.listen)")
	rootCmd.AddCommand(serveCmd)
}
