package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/calclab/internal/logging"
	"github.com/copyleftdev/calclab/internal/task"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Engine struct {
		MaxIterations int     `env:"ENGINE_MAX_ITERATIONS" envDefault:"1000"`
		CurveSamples  int     `env:"ENGINE_CURVE_SAMPLES" envDefault:"401"`
		DiffSamples   int     `env:"ENGINE_DIFF_SAMPLES" envDefault:"201"`
		SweepSteps    int     `env:"ENGINE_SWEEP_STEPS" envDefault:"16"`
		SweepFactor   float64 `env:"ENGINE_SWEEP_FACTOR" envDefault:"0.5"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		} else {
			cfg.Logging.Level = "info"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		problems = append(problems, fmt.Sprintf("HTTP_PORT %d is out of range", c.HTTP.Port))
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		problems = append(problems, "HTTP_SHUTDOWN_TIMEOUT must be positive")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		problems = append(problems, "LOG_LEVEL: "+err.Error())
	}
	if c.Engine.MaxIterations < 1 {
		problems = append(problems, "ENGINE_MAX_ITERATIONS must be at least 1")
	}
	if c.Engine.CurveSamples < 2 {
		problems = append(problems, "ENGINE_CURVE_SAMPLES must be at least 2")
	}
	if c.Engine.DiffSamples < 2 {
		problems = append(problems, "ENGINE_DIFF_SAMPLES must be at least 2")
	}
	if c.Engine.SweepSteps < 1 {
		problems = append(problems, "ENGINE_SWEEP_STEPS must be at least 1")
	}
	if !(c.Engine.SweepFactor > 0 && c.Engine.SweepFactor < 1) {
		problems = append(problems, "ENGINE_SWEEP_FACTOR must be in (0, 1)")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TaskSettings returns the engine limits for task.NewRunner.
func (c *Config) TaskSettings() task.Settings {
	return task.Settings{
		MaxIterations: c.Engine.MaxIterations,
		CurveSamples:  c.Engine.CurveSamples,
		DiffSamples:   c.Engine.DiffSamples,
		SweepSteps:    c.Engine.SweepSteps,
		SweepFactor:   c.Engine.SweepFactor,
	}
}
