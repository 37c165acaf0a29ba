package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/target/bgsms/config"
)

// InitLogger initializes the structured logger on stdout. Worker processes
// have stdout redirected to their role log file by the process controller.
func InitLogger() *slog.Logger {
	return InitLoggerTo(os.Stdout)
}

// InitLoggerTo initializes the structured logger on w and makes it the default.
func InitLoggerTo(w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// LoadWorkerConfig decodes the configuration blob handed to a worker process.
func LoadWorkerConfig(blob string) (config.AppConfig, error) {
	cfg, err := config.Decode(blob)
	if err != nil {
		return cfg, err
	}
	cfg.Sanitize()
	return cfg, nil
}
