package main

import (
	"os"
	"time"

	"github.com/LdDl/annotrack-go/config"
	"github.com/LdDl/annotrack-go/editor"
	"github.com/LdDl/annotrack-go/session"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type appContext struct {
	configDir  string
	configFile string
	logLevel   string
	settings   config.Settings
	logger     zerolog.Logger
}

func main() {
	if err := rootCommand(&appContext{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand(app *appContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "annotrack",
		Short:         "Video bounding box annotation tool",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize(app)
		},
	}
	rootCmd.PersistentFlags().StringVar(&app.configDir, "config-dir", ".", "Directory searched for annotrack.{yaml,json,toml}")
	rootCmd.PersistentFlags().StringVar(&app.configFile, "config", "", "Exact path of config file (overrides --config-dir)")
	rootCmd.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "Log level (overrides config)")

	rootCmd.AddCommand(
		statsCommand(app),
		exportCommand(app),
		interpolateCommand(app),
		fillGapsCommand(app),
	)
	return rootCmd
}

func initialize(app *appContext) error {
	var err error
	if app.configFile != "" {
		app.settings, err = config.LoadFile(app.configFile)
	} else {
		app.settings, err = config.Load(app.configDir)
	}
	if err != nil {
		return err
	}
	if app.logLevel != "" {
		app.settings.LogLevel = app.logLevel
		if err := app.settings.Validate(); err != nil {
			return err
		}
	}
	app.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(app.settings.Level()).
		With().Timestamp().Logger()
	return nil
}

// openSession creates session and imports annotation file into it
func openSession(app *appContext, path string) (*session.Session, error) {
	s := session.New(app.settings, editor.NewTransformDefault(0, 0), session.WithLogger(app.logger))
	if _, err := s.ImportFile(path); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
