package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/daviddao/mailassist/internal/assistant"
	"github.com/daviddao/mailassist/internal/auth"
	"github.com/daviddao/mailassist/internal/config"
	"github.com/daviddao/mailassist/internal/display"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	configPath string
	jsonOutput bool
	quietFlag  bool
	logLevel   string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "mailassist",
	Short:         "mailassist - Gmail assistant API and CLI",
	Long:          "mailassist: list, read, send and draft Gmail messages, and generate replies and summaries with an LLM.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "help", "version":
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		return setupLogger(cmd.ErrOrStderr(), cfg.Logging)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mailassist version %s\n", Version)
	},
}

// setupLogger configures the global zerolog logger.
func setupLogger(w io.Writer, lc config.LoggingConfig) error {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if lc.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

// tokenStore returns the configured token backend.
func tokenStore(gc config.GmailConfig) (auth.TokenStore, error) {
	if gc.TokenStore == config.TokenStoreKeyring {
		ring, err := auth.OpenKeyring(gc.KeyringDir)
		if err != nil {
			return nil, err
		}
		return auth.NewKeyringStore(ring), nil
	}
	return auth.NewFileStore(gc.Token), nil
}

func newProvider() (*auth.Provider, error) {
	store, err := tokenStore(cfg.Gmail)
	if err != nil {
		return nil, err
	}
	return auth.NewProvider(cfg.Gmail.Credentials, store), nil
}

func newAssistant() (*assistant.Assistant, error) {
	templates, err := assistant.LoadTemplates(cfg.Templates.Path)
	if err != nil {
		return nil, err
	}
	gen := assistant.NewOpenAI(assistant.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		BaseURL: cfg.OpenAI.BaseURL,
	})
	return assistant.New(gen, templates), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/mailassist.yaml", "Config file path (optional)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		display.ErrorMsg("%v", err)
		os.Exit(1)
	}
}
