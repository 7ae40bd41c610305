package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Clock.StartYear != -3000 {
		t.Errorf("start year = %d, want -3000", cfg.Clock.StartYear)
	}
	if cfg.Scheduler.ProjectSweepEvery != 4*time.Hour {
		t.Errorf("sweep interval = %s, want 4h", cfg.Scheduler.ProjectSweepEvery)
	}
	if cfg.Scheduler.EventsPerDayMin != 3 || cfg.Scheduler.EventsPerDayMax != 7 {
		t.Errorf("events per day = %d-%d, want 3-7",
			cfg.Scheduler.EventsPerDayMin, cfg.Scheduler.EventsPerDayMax)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("port = %d, want 8080", cfg.HTTPPort)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "clock:\n  start_year: -2500\nscheduler:\n  workers: 5\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Clock.StartYear != -2500 {
		t.Errorf("start year = %d, want -2500", cfg.Clock.StartYear)
	}
	if cfg.Scheduler.Workers != 5 {
		t.Errorf("workers = %d, want 5", cfg.Scheduler.Workers)
	}
	// Untouched fields keep defaults.
	if cfg.Clock.YearsPerDay != 1 {
		t.Errorf("years per day = %d, want 1", cfg.Clock.YearsPerDay)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("STATECRAFT_WORKERS", "7")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.Workers != 7 {
		t.Errorf("workers = %d, want 7", cfg.Scheduler.Workers)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad provider", func(c *Config) { c.Provider = "openai" }},
		{"zero years per day", func(c *Config) { c.Clock.YearsPerDay = 0 }},
		{"bad update time", func(c *Config) { c.Scheduler.YearlyUpdateAt = "24:99" }},
		{"inverted event range", func(c *Config) { c.Scheduler.EventsPerDayMin = 5; c.Scheduler.EventsPerDayMax = 2 }},
		{"inverted event window", func(c *Config) { c.Scheduler.EventWindowStart = 21; c.Scheduler.EventWindowEnd = 9 }},
		{"zero workers", func(c *Config) { c.Scheduler.Workers = 0 }},
	}
	for _, c := range cases {
		cfg := Default()
		c.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted invalid config", c.name)
		}
	}
}
