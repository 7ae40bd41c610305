// Package config loads runtime configuration from an optional YAML file
// with environment variable overrides. Secrets (API keys) come from the
// environment only.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	DBPath       string `yaml:"db_path" env:"STATECRAFT_DB_PATH"`
	SemStorePath string `yaml:"semstore_path" env:"STATECRAFT_SEMSTORE_PATH"`

	HTTPPort int    `yaml:"http_port" env:"STATECRAFT_HTTP_PORT"`
	AdminKey string `yaml:"-" env:"STATECRAFT_ADMIN_KEY"`

	// Provider selects the text model backend: "anthropic" or "gemini".
	Provider     string `yaml:"provider" env:"STATECRAFT_PROVIDER"`
	AnthropicKey string `yaml:"-" env:"ANTHROPIC_API_KEY"`
	GeminiKey    string `yaml:"-" env:"GEMINI_API_KEY"`

	Clock      Clock      `yaml:"clock"`
	Generation Generation `yaml:"generation"`
	Scheduler  Scheduler  `yaml:"scheduler"`
	Apply      Apply      `yaml:"apply"`
}

// Clock controls the game calendar.
type Clock struct {
	StartYear   int `yaml:"start_year" env:"STATECRAFT_START_YEAR"`
	YearsPerDay int `yaml:"years_per_day" env:"STATECRAFT_YEARS_PER_DAY"`
}

// Generation controls the text model calls.
type Generation struct {
	Model            string        `yaml:"model" env:"STATECRAFT_MODEL"`
	MaxTokens        int           `yaml:"max_tokens" env:"STATECRAFT_MAX_TOKENS"`
	Temperature      float64       `yaml:"temperature" env:"STATECRAFT_TEMPERATURE"`
	RetryTemperature float64       `yaml:"retry_temperature" env:"STATECRAFT_RETRY_TEMPERATURE"`
	Timeout          time.Duration `yaml:"timeout" env:"STATECRAFT_GEN_TIMEOUT"`
	MinInterval      time.Duration `yaml:"min_interval" env:"STATECRAFT_GEN_MIN_INTERVAL"`
}

// Scheduler controls the background job cadences.
type Scheduler struct {
	YearlyUpdateAt    string        `yaml:"yearly_update_at" env:"STATECRAFT_YEARLY_UPDATE_AT"`
	ProjectSweepEvery time.Duration `yaml:"project_sweep_every" env:"STATECRAFT_PROJECT_SWEEP_EVERY"`
	EventsPerDayMin   int           `yaml:"events_per_day_min" env:"STATECRAFT_EVENTS_PER_DAY_MIN"`
	EventsPerDayMax   int           `yaml:"events_per_day_max" env:"STATECRAFT_EVENTS_PER_DAY_MAX"`
	EventWindowStart  int           `yaml:"event_window_start" env:"STATECRAFT_EVENT_WINDOW_START"`
	EventWindowEnd    int           `yaml:"event_window_end" env:"STATECRAFT_EVENT_WINDOW_END"`
	Workers           int           `yaml:"workers" env:"STATECRAFT_WORKERS"`
}

// Apply controls the delta applier.
type Apply struct {
	PersistRetries int `yaml:"persist_retries" env:"STATECRAFT_PERSIST_RETRIES"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:       "statecraft.db",
		SemStorePath: "statecraft-sem.db",
		HTTPPort:     8080,
		Provider:     "anthropic",
		Clock: Clock{
			StartYear:   -3000,
			YearsPerDay: 1,
		},
		Generation: Generation{
			Model:            "claude-sonnet-4-20250514",
			MaxTokens:        1000,
			Temperature:      0.7,
			RetryTemperature: 0.3,
			Timeout:          90 * time.Second,
			MinInterval:      2 * time.Second,
		},
		Scheduler: Scheduler{
			YearlyUpdateAt:    "00:00",
			ProjectSweepEvery: 4 * time.Hour,
			EventsPerDayMin:   3,
			EventsPerDayMax:   7,
			EventWindowStart:  9,
			EventWindowEnd:    21,
			Workers:           3,
		},
		Apply: Apply{
			PersistRetries: 3,
		},
	}
}

// Load reads the config file at path (skipped when path is empty or the
// file does not exist), applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as runtime
// misbehavior deep inside the scheduler.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.Provider != "anthropic" && c.Provider != "gemini" {
		return fmt.Errorf("provider must be anthropic or gemini, got %q", c.Provider)
	}
	if c.Clock.YearsPerDay < 1 {
		return fmt.Errorf("years_per_day must be >= 1, got %d", c.Clock.YearsPerDay)
	}
	if c.Generation.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be >= 1, got %d", c.Generation.MaxTokens)
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("generation timeout must be positive, got %s", c.Generation.Timeout)
	}
	if _, err := time.Parse("15:04", c.Scheduler.YearlyUpdateAt); err != nil {
		return fmt.Errorf("yearly_update_at must be HH:MM, got %q", c.Scheduler.YearlyUpdateAt)
	}
	if c.Scheduler.ProjectSweepEvery <= 0 {
		return fmt.Errorf("project_sweep_every must be positive, got %s", c.Scheduler.ProjectSweepEvery)
	}
	if c.Scheduler.EventsPerDayMin < 0 || c.Scheduler.EventsPerDayMax < c.Scheduler.EventsPerDayMin {
		return fmt.Errorf("events_per_day range invalid: min %d max %d",
			c.Scheduler.EventsPerDayMin, c.Scheduler.EventsPerDayMax)
	}
	if c.Scheduler.EventWindowStart < 0 || c.Scheduler.EventWindowEnd > 24 ||
		c.Scheduler.EventWindowEnd <= c.Scheduler.EventWindowStart {
		return fmt.Errorf("event window invalid: %d-%d",
			c.Scheduler.EventWindowStart, c.Scheduler.EventWindowEnd)
	}
	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Scheduler.Workers)
	}
	if c.Apply.PersistRetries < 1 {
		return fmt.Errorf("persist_retries must be >= 1, got %d", c.Apply.PersistRetries)
	}
	return nil
}
