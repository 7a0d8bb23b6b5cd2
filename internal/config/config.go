package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
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
	Shake struct {
		// Iterations is the number of evaluator calls per timing run
		Iterations int `env:"SHAKE_ITERATIONS" envDefault:"10000"`
		// MaxLines rejects larger fragments; n lines cost n! candidates
		MaxLines int `env:"SHAKE_MAX_LINES" envDefault:"9"`
		// Equality is "loose" or "strict"
		Equality string `env:"SHAKE_EQUALITY" envDefault:"loose"`
		// CallTimeout interrupts a single evaluation; 0 disables it
		CallTimeout time.Duration `env:"SHAKE_CALL_TIMEOUT" envDefault:"0s"`
		// MaxJobs bounds concurrently running server jobs
		MaxJobs int `env:"SHAKE_MAX_JOBS" envDefault:"16"`
	}
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Verbose logs by default while developing
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

// Validate checks value ranges that env tags cannot express.
func (c *Config) Validate() error {
	switch {
	case c.Shake.Iterations < 1:
		return fmt.Errorf("SHAKE_ITERATIONS must be positive, got %d", c.Shake.Iterations)
	case c.Shake.MaxLines < 1 || c.Shake.MaxLines > 12:
		return fmt.Errorf("SHAKE_MAX_LINES must be in [1, 12], got %d", c.Shake.MaxLines)
	case c.Shake.Equality != "loose" && c.Shake.Equality != "strict":
		return fmt.Errorf("SHAKE_EQUALITY must be loose or strict, got %q", c.Shake.Equality)
	case c.Shake.CallTimeout < 0:
		return fmt.Errorf("SHAKE_CALL_TIMEOUT must not be negative, got %s", c.Shake.CallTimeout)
	case c.Shake.MaxJobs < 1:
		return fmt.Errorf("SHAKE_MAX_JOBS must be positive, got %d", c.Shake.MaxJobs)
	}
	return nil
}
