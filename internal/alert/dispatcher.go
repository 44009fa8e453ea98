package alert

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pomora/pomora/internal/audio"
	"github.com/pomora/pomora/internal/config"
	"github.com/pomora/pomora/internal/discord"
	"github.com/pomora/pomora/internal/syncx"
	"github.com/pomora/pomora/internal/timer"
)

// Dispatcher plays the short stage-transition chime in a room's voice
// channel. Playback is serialized per guild because the bot holds at most
// one voice connection per guild at a time.
type Dispatcher struct {
	cfg     *config.Config
	timers  *timer.Service
	discord discord.Client
	cues    audio.CueSource
	locks   *syncx.KeyedMutex
}

func NewDispatcher(cfg *config.Config, timers *timer.Service, dc discord.Client, cues audio.CueSource) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		timers:  timers,
		discord: dc,
		cues:    cues,
		locks:   syncx.NewKeyedMutex(),
	}
}

// PlayAlert queues a chime for the given room. Calls for the same guild
// run strictly in order; the returned channel closes when this alert has
// finished (or was skipped). Failures are logged, never propagated, so a
// broken voice path cannot stall the timers.
func (d *Dispatcher) PlayAlert(guildID, channelID string, stage timer.Stage) <-chan struct{} {
	return d.locks.Enqueue(guildID, func() {
		d.play(guildID, channelID, stage)
	})
}

func (d *Dispatcher) play(guildID, channelID string, stage timer.Stage) {
	room, ok := d.timers.RoomSession(channelID)
	if !ok || !room.SoundEnabled {
		return
	}

	frames, err := d.cues.Frames(string(stage))
	if err != nil {
		if errors.Is(err, audio.ErrUnavailable) {
			slog.Debug("audio cues unavailable; skipping alert", "guild_id", guildID)
		} else {
			slog.Warn("failed to build alert cue", "error", err, "guild_id", guildID)
		}
		return
	}

	conn, err := d.discord.JoinVoiceChannel(guildID, channelID)
	if err != nil {
		slog.Warn("failed to join voice channel for alert", "error", err, "guild_id", guildID, "channel_id", channelID)
		return
	}
	defer func() {
		if err := conn.Disconnect(); err != nil {
			slog.Warn("failed to leave voice channel after alert", "error", err, "guild_id", guildID)
		}
	}()

	readyCtx, cancelReady := context.WithTimeout(context.Background(), d.cfg.VoiceReadyTimeout)
	defer cancelReady()
	if err := conn.WaitReady(readyCtx); err != nil {
		slog.Warn("voice connection never became ready", "error", err, "guild_id", guildID)
		return
	}

	playCtx, cancelPlay := context.WithTimeout(context.Background(), d.cfg.PlaybackTimeout)
	defer cancelPlay()
	if err := conn.Play(playCtx, frames); err != nil {
		slog.Warn("alert playback failed", "error", err, "guild_id", guildID, "channel_id", channelID)
	}
}
