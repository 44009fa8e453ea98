package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Env:                 "test",
		DiscordToken:        "token",
		DatabaseURL:         "postgres://localhost/pomora",
		RenderServiceURL:    "http://localhost:9000",
		HealthPort:          8080,
		FocusMinutes:        50,
		BreakMinutes:        10,
		InactivityThreshold: 4,
		RenameThrottle:      5 * time.Minute,
		VoiceReadyTimeout:   10 * time.Second,
		PlaybackTimeout:     10 * time.Second,
		ReportHour:          20,
		CommandPrefix:       "!",
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingRequiredField(t *testing.T) {
	cfg := validConfig()
	cfg.DiscordToken = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DISCORD_TOKEN") {
		t.Fatalf("expected DISCORD_TOKEN error, got %v", err)
	}
}

func TestValidate_RejectsNonPositiveDurations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"focus", func(c *Config) { c.FocusMinutes = 0 }},
		{"break", func(c *Config) { c.BreakMinutes = -1 }},
		{"threshold", func(c *Config) { c.InactivityThreshold = 0 }},
		{"rename", func(c *Config) { c.RenameThrottle = 0 }},
		{"ready", func(c *Config) { c.VoiceReadyTimeout = 0 }},
		{"playback", func(c *Config) { c.PlaybackTimeout = 0 }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestValidate_ReportHourRange(t *testing.T) {
	cfg := validConfig()
	cfg.ReportHour = 24
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for out-of-range report hour")
	}
	cfg.ReportHour = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("hour 0 should be valid, got %v", err)
	}
}

func TestStageSecondsDeriveFromMinutes(t *testing.T) {
	cfg := validConfig()
	if cfg.FocusSeconds() != 3000 {
		t.Fatalf("unexpected focus seconds: %d", cfg.FocusSeconds())
	}
	if cfg.BreakSeconds() != 600 {
		t.Fatalf("unexpected break seconds: %d", cfg.BreakSeconds())
	}
}
