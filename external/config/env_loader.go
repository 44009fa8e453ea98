package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/pomora/pomora/internal/config"
)

type envConfig struct {
	Env                 string        `env:"ENV" envDefault:"production"`
	DiscordToken        string        `env:"DISCORD_TOKEN,required"`
	DatabaseURL         string        `env:"DATABASE_URL,required"`
	RenderServiceURL    string        `env:"RENDER_SERVICE_URL,required"`
	HealthPort          int           `env:"PORT" envDefault:"8080"`
	FocusMinutes        int           `env:"FOCUS_TIME" envDefault:"50"`
	BreakMinutes        int           `env:"SHORT_BREAK" envDefault:"10"`
	InactivityThreshold int           `env:"INACTIVITY_THRESHOLD" envDefault:"4"`
	RenameThrottle      time.Duration `env:"RENAME_THROTTLE" envDefault:"5m"`
	VoiceReadyTimeout   time.Duration `env:"VOICE_READY_TIMEOUT" envDefault:"10s"`
	PlaybackTimeout     time.Duration `env:"PLAYBACK_TIMEOUT" envDefault:"10s"`
	ReportHour          int           `env:"REPORT_HOUR" envDefault:"20"`
	CommandPrefix       string        `env:"COMMAND_PREFIX" envDefault:"!"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                 raw.Env,
		DiscordToken:        raw.DiscordToken,
		DatabaseURL:         raw.DatabaseURL,
		RenderServiceURL:    raw.RenderServiceURL,
		HealthPort:          raw.HealthPort,
		FocusMinutes:        raw.FocusMinutes,
		BreakMinutes:        raw.BreakMinutes,
		InactivityThreshold: raw.InactivityThreshold,
		RenameThrottle:      raw.RenameThrottle,
		VoiceReadyTimeout:   raw.VoiceReadyTimeout,
		PlaybackTimeout:     raw.PlaybackTimeout,
		ReportHour:          raw.ReportHour,
		CommandPrefix:       raw.CommandPrefix,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
