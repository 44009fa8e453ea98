package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	readyPollInterval = 50 * time.Millisecond
	frameInterval     = 20 * time.Millisecond
)

type voiceConnectionImpl struct {
	vc *discordgo.VoiceConnection
}

func (v *voiceConnectionImpl) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		if v.vc.Ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Play pushes the opus frames onto the gateway at the voice frame rate.
// Sending faster than real time makes the gateway drop audio, so each
// frame waits for its slot.
func (v *voiceConnectionImpl) Play(ctx context.Context, frames [][]byte) error {
	if err := v.vc.Speaking(true); err != nil {
		return err
	}
	defer func() {
		_ = v.vc.Speaking(false)
	}()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for _, frame := range frames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v.vc.OpusSend <- frame:
		}
	}
	return nil
}

func (v *voiceConnectionImpl) Disconnect() error {
	return v.vc.Disconnect()
}
