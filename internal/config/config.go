package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// ModelLexiconPath points at the sentiment lexicon file. Empty selects the
	// built-in lexicon; a path that fails to load puts the engine in fallback
	// stub mode rather than failing startup.
	ModelLexiconPath string `env:"MODEL_LEXICON_PATH"`

	// TrainingDataDir holds the monthly misprediction ledger partitions.
	TrainingDataDir string `env:"TRAINING_DATA_DIR" default:"training_data"`

	MetricsWindow    time.Duration `env:"METRICS_WINDOW" default:"1h"`
	InferenceWorkers int           `env:"INFERENCE_WORKERS" default:"4"`

	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.MetricsWindow <= 0 {
		return fmt.Errorf("METRICS_WINDOW must be positive")
	}
	if cfg.InferenceWorkers < 1 {
		return fmt.Errorf("INFERENCE_WORKERS must be at least 1")
	}
	if cfg.MaxWebSocketConnections < 1 {
		return fmt.Errorf("MAX_WEBSOCKET_CONNECTIONS must be at least 1")
	}
	return nil
}
