package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"document-assistant/internal/config"
	"document-assistant/internal/models"
)

const defaultConfigPath = "./configs/config.yaml"

var (
	configPath string
	app        *App
)

var rootCmd = &cobra.Command{
	Use:           "document-assistant",
	Short:         "Ingest documents, ask questions about them and book interviews",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		setupLogger(cfg.Log)
		app = NewApp(cfg)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app == nil {
			return nil
		}
		return app.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to the config file")
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		if app != nil {
			app.Close()
		}
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.JSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

// describeError prefixes service errors with their kind and code.
func describeError(err error) string {
	var appErr *models.Error
	if !errors.As(err, &appErr) {
		return "error: " + err.Error()
	}
	msg := fmt.Sprintf("%s error [%s]", appErr.Kind, appErr.Code)
	if appErr.Stage != "" {
		msg += fmt.Sprintf(" at stage %s", appErr.Stage)
	}
	return msg + ": " + err.Error()
}
