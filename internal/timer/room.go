package timer

import (
	"fmt"
	"strings"
	"time"
)

type Stage string

const (
	StageFocus Stage = "focus"
	StageBreak Stage = "break"
)

// Next returns the stage the room flips to at a stage boundary.
func (s Stage) Next() Stage {
	if s == StageFocus {
		return StageBreak
	}
	return StageFocus
}

func (s Stage) Label() string {
	return strings.ToUpper(string(s))
}

type Participant struct {
	UserID       string
	Active       bool
	MissedStages int
	JoinedAt     time.Time
}

// MissedTick is published for every participant who crossed a stage
// boundary without confirming presence during that stage.
type MissedTick struct {
	UserID       string
	GuildID      string
	ChannelID    string
	MissedStages int
}

type room struct {
	channelID          string
	guildID            string
	stage              Stage
	durationSeconds    int
	remainingSeconds   int
	running            bool
	participants       map[string]*Participant
	sessionsCompleted  int
	customFocusSeconds int
	customBreakSeconds int
	soundEnabled       bool
	voiceEnabled       bool
	stop               chan struct{}
	stopped            bool
}

// Snapshot is an immutable copy of a room handed to event subscribers and
// query callers. Mutating it never affects the live room.
type Snapshot struct {
	ChannelID          string
	GuildID            string
	Stage              Stage
	DurationSeconds    int
	RemainingSeconds   int
	Running            bool
	Participants       []Participant
	SessionsCompleted  int
	CustomFocusSeconds int
	CustomBreakSeconds int
	SoundEnabled       bool
	VoiceEnabled       bool
}

func (r *room) snapshot() Snapshot {
	participants := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		participants = append(participants, *p)
	}
	return Snapshot{
		ChannelID:          r.channelID,
		GuildID:            r.guildID,
		Stage:              r.stage,
		DurationSeconds:    r.durationSeconds,
		RemainingSeconds:   r.remainingSeconds,
		Running:            r.running,
		Participants:       participants,
		SessionsCompleted:  r.sessionsCompleted,
		CustomFocusSeconds: r.customFocusSeconds,
		CustomBreakSeconds: r.customBreakSeconds,
		SoundEnabled:       r.soundEnabled,
		VoiceEnabled:       r.voiceEnabled,
	}
}

// stageSeconds returns the configured length of the given stage.
func (r *room) stageSeconds(stage Stage) int {
	if stage == StageFocus {
		return r.customFocusSeconds
	}
	return r.customBreakSeconds
}

// AtRisk returns the participants with at least one missed stage, used for
// the inactivity warning line.
func (s Snapshot) AtRisk() []Participant {
	var atRisk []Participant
	for _, p := range s.Participants {
		if p.MissedStages > 0 {
			atRisk = append(atRisk, p)
		}
	}
	return atRisk
}

func (s Snapshot) Participant(userID string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// FormatClock renders a second count as MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
