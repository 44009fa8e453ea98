package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env                 string
	DiscordToken        string
	DatabaseURL         string
	RenderServiceURL    string
	HealthPort          int
	FocusMinutes        int
	BreakMinutes        int
	InactivityThreshold int
	RenameThrottle      time.Duration
	VoiceReadyTimeout   time.Duration
	PlaybackTimeout     time.Duration
	ReportHour          int
	CommandPrefix       string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.FocusMinutes <= 0 {
		return fmt.Errorf("FOCUS_TIME must be positive, got %d", c.FocusMinutes)
	}
	if c.BreakMinutes <= 0 {
		return fmt.Errorf("SHORT_BREAK must be positive, got %d", c.BreakMinutes)
	}
	if c.InactivityThreshold <= 0 {
		return fmt.Errorf("INACTIVITY_THRESHOLD must be positive, got %d", c.InactivityThreshold)
	}
	if c.RenameThrottle <= 0 {
		return fmt.Errorf("RENAME_THROTTLE must be positive, got %s", c.RenameThrottle)
	}
	if c.VoiceReadyTimeout <= 0 {
		return fmt.Errorf("VOICE_READY_TIMEOUT must be positive, got %s", c.VoiceReadyTimeout)
	}
	if c.PlaybackTimeout <= 0 {
		return fmt.Errorf("PLAYBACK_TIMEOUT must be positive, got %s", c.PlaybackTimeout)
	}
	if c.ReportHour < 0 || c.ReportHour > 23 {
		return fmt.Errorf("REPORT_HOUR must be between 0 and 23, got %d", c.ReportHour)
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("PORT must be a valid port number, got %d", c.HealthPort)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "RENDER_SERVICE_URL", value: c.RenderServiceURL},
		{name: "COMMAND_PREFIX", value: c.CommandPrefix},
	}
}

func (c *Config) FocusSeconds() int {
	return c.FocusMinutes * 60
}

func (c *Config) BreakSeconds() int {
	return c.BreakMinutes * 60
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
