// Package config loads settings from defaults, optional annotrack.{yaml,json,toml} file and
// ANNOTRACK_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/LdDl/annotrack-go/interpolation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. ANNOTRACK_HISTORY_MAXSIZE
const EnvPrefix = "ANNOTRACK"

// HistoryConfig holds undo/redo settings
type HistoryConfig struct {
	MaxSize int `mapstructure:"maxSize"`
}

// EditorConfig holds interactive box editor settings
type EditorConfig struct {
	HandleSize float64 `mapstructure:"handleSize"`
}

// ExportConfig holds export settings
type ExportConfig struct {
	ScoreThreshold float64 `mapstructure:"scoreThreshold"`
}

// KalmanConfig holds parameters of Kalman interpolation
type KalmanConfig struct {
	ProcessNoisePos       float64 `mapstructure:"processNoisePos"`
	ProcessNoiseVel       float64 `mapstructure:"processNoiseVel"`
	ObservationNoise      float64 `mapstructure:"observationNoise"`
	VelocityFactor        float64 `mapstructure:"velocityFactor"`
	InitialPosUncertainty float64 `mapstructure:"initialPosUncertainty"`
	InitialVelUncertainty float64 `mapstructure:"initialVelUncertainty"`
}

// TrackingConfig holds tracking run settings
type TrackingConfig struct {
	FrameCacheTTL time.Duration `mapstructure:"frameCacheTTL"`
	MotionGate    bool          `mapstructure:"motionGate"`
	GateKeep      int           `mapstructure:"gateKeep"`
	GateMinScore  float64       `mapstructure:"gateMinScore"`
}

// EventsConfig holds event bus settings
type EventsConfig struct {
	BufferSize int `mapstructure:"bufferSize"`
}

// Settings is the complete configuration
type Settings struct {
	LogLevel string         `mapstructure:"logLevel"`
	History  HistoryConfig  `mapstructure:"history"`
	Editor   EditorConfig   `mapstructure:"editor"`
	Export   ExportConfig   `mapstructure:"export"`
	Kalman   KalmanConfig   `mapstructure:"kalman"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Events   EventsConfig   `mapstructure:"events"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "info")

	v.SetDefault("history.maxSize", 100)
	v.SetDefault("editor.handleSize", 24.0)
	v.SetDefault("export.scoreThreshold", 0.2)

	defaults := interpolation.DefaultKalmanParams()
	v.SetDefault("kalman.processNoisePos", defaults.ProcessNoisePos)
	v.SetDefault("kalman.processNoiseVel", defaults.ProcessNoiseVel)
	v.SetDefault("kalman.observationNoise", defaults.ObservationNoise)
	v.SetDefault("kalman.velocityFactor", defaults.VelocityFactor)
	v.SetDefault("kalman.initialPosUncertainty", defaults.InitialPosUncertainty)
	v.SetDefault("kalman.initialVelUncertainty", defaults.InitialVelUncertainty)

	v.SetDefault("tracking.frameCacheTTL", "30s")
	v.SetDefault("tracking.motionGate", false)
	v.SetDefault("tracking.gateKeep", 1)
	v.SetDefault("tracking.gateMinScore", 0.0)

	v.SetDefault("events.bufferSize", 1024)
}

// Default returns settings built from defaults only
func Default() Settings {
	v := viper.New()
	setDefaults(v)
	settings := Settings{}
	// Defaults always decode
	_ = v.Unmarshal(&settings)
	return settings
}

// Load reads settings. configDir is the directory searched for annotrack.* file; missing file is not an error.
// Environment variables take precedence over the file.
func Load(configDir string) (Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("annotrack")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, errors.Wrap(err, "Can't read config file")
		}
	}
	return decode(v)
}

// LoadFile reads settings from exact file path. Format is taken from file extension.
func LoadFile(path string) (Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return Settings{}, errors.Wrapf(err, "Can't read config file '%s'", path)
	}
	return decode(v)
}

func decode(v *viper.Viper) (Settings, error) {
	settings := Settings{}
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, errors.Wrap(err, "Can't decode settings")
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Validate checks value ranges
func (settings Settings) Validate() error {
	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return errors.Wrapf(err, "Invalid log level '%s'", settings.LogLevel)
	}
	if settings.History.MaxSize <= 0 {
		return errors.Errorf("history.maxSize must be positive, got %d", settings.History.MaxSize)
	}
	if settings.Editor.HandleSize <= 0 {
		return errors.Errorf("editor.handleSize must be positive, got %f", settings.Editor.HandleSize)
	}
	if settings.Export.ScoreThreshold < 0 || settings.Export.ScoreThreshold > 1 {
		return errors.Errorf("export.scoreThreshold must be in [0, 1], got %f", settings.Export.ScoreThreshold)
	}
	if settings.Events.BufferSize <= 0 {
		return errors.Errorf("events.bufferSize must be positive, got %d", settings.Events.BufferSize)
	}
	if settings.Tracking.GateKeep <= 0 {
		return errors.Errorf("tracking.gateKeep must be positive, got %d", settings.Tracking.GateKeep)
	}
	if err := settings.KalmanParams().Validate(); err != nil {
		return errors.Wrap(err, "Invalid kalman settings")
	}
	return nil
}

// KalmanParams converts settings into interpolation parameters
func (settings Settings) KalmanParams() interpolation.KalmanParams {
	return interpolation.KalmanParams{
		ProcessNoisePos:       settings.Kalman.ProcessNoisePos,
		ProcessNoiseVel:       settings.Kalman.ProcessNoiseVel,
		ObservationNoise:      settings.Kalman.ObservationNoise,
		VelocityFactor:        settings.Kalman.VelocityFactor,
		InitialPosUncertainty: settings.Kalman.InitialPosUncertainty,
		InitialVelUncertainty: settings.Kalman.InitialVelUncertainty,
	}
}

// Level returns parsed log level
func (settings Settings) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
