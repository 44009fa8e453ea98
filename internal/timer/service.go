package timer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pomora/pomora/internal/config"
)

// Service owns every tracked room and its one-second clock. All room
// mutations happen synchronously under a single mutex and never perform
// I/O, so no observer can see a half-transitioned room. Side effects are
// driven by the typed hooks, published after the lock is released.
type Service struct {
	cfg   *config.Config
	clock clockwork.Clock
	hooks Hooks

	mu    sync.Mutex
	rooms map[string]*room
}

func NewService(cfg *config.Config, clock clockwork.Clock) *Service {
	return &Service{
		cfg:   cfg,
		clock: clock,
		rooms: make(map[string]*room),
	}
}

func (s *Service) Events() *Hooks {
	return &s.hooks
}

// JoinRoom is idempotent: the first qualifying join creates the room in
// focus stage and starts its clock; any later join only ensures the
// participant exists, preserving their presence sub-state.
func (s *Service) JoinRoom(userID, guildID, channelID string) Snapshot {
	s.mu.Lock()
	r, exists := s.rooms[channelID]
	if !exists {
		r = &room{
			channelID:          channelID,
			guildID:            guildID,
			stage:              StageFocus,
			durationSeconds:    s.cfg.FocusSeconds(),
			remainingSeconds:   s.cfg.FocusSeconds(),
			running:            true,
			participants:       make(map[string]*Participant),
			customFocusSeconds: s.cfg.FocusSeconds(),
			customBreakSeconds: s.cfg.BreakSeconds(),
			soundEnabled:       true,
			voiceEnabled:       true,
			stop:               make(chan struct{}),
		}
		s.rooms[channelID] = r
		slog.Info("room created", "guild_id", guildID, "channel_id", channelID, "focus_seconds", r.durationSeconds)
	}
	if _, ok := r.participants[userID]; !ok {
		r.participants[userID] = &Participant{
			UserID:   userID,
			JoinedAt: s.clock.Now(),
		}
	}
	snap := r.snapshot()
	stop := r.stop
	s.mu.Unlock()

	if !exists {
		go s.runClock(channelID, stop)
	}
	return snap
}

// LeaveRoom removes the participant only. The clock keeps running even for
// an empty room: emptiness is acted on at the next stage boundary, so
// rejoiners resume the same room mid-stage.
func (s *Service) LeaveRoom(userID, channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[channelID]
	if !ok {
		return
	}
	delete(r.participants, userID)
}

// StopTimer removes the user from whichever room contains them.
func (s *Service) StopTimer(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if _, ok := r.participants[userID]; ok {
			delete(r.participants, userID)
			return
		}
	}
}

// ConfirmParticipation marks the user present for the current stage. A
// participant belongs to at most one room at a time.
func (s *Service) ConfirmParticipation(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if p, ok := r.participants[userID]; ok {
			p.Active = true
			p.MissedStages = 0
			return
		}
	}
}

// UpdateSettings applies custom stage durations and alert flags to the
// room, restarting the current stage at the new length.
func (s *Service) UpdateSettings(channelID string, focusSeconds, breakSeconds int, sound, voice bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[channelID]
	if !ok {
		return false
	}
	r.customFocusSeconds = focusSeconds
	r.customBreakSeconds = breakSeconds
	r.soundEnabled = sound
	r.voiceEnabled = voice
	r.durationSeconds = r.stageSeconds(r.stage)
	r.remainingSeconds = r.durationSeconds
	return true
}

// StopRoom cancels the room's clock and deletes it entirely. Safe to call
// twice; the second call is a no-op.
func (s *Service) StopRoom(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[channelID]
	if !ok {
		return
	}
	if !r.stopped {
		r.stopped = true
		close(r.stop)
	}
	delete(s.rooms, channelID)
	slog.Info("room stopped", "guild_id", r.guildID, "channel_id", channelID)
}

func (s *Service) RoomSession(channelID string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[channelID]
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

func (s *Service) UserSession(userID string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if _, ok := r.participants[userID]; ok {
			return r.snapshot(), true
		}
	}
	return Snapshot{}, false
}

func (s *Service) AllSessions() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]Snapshot, 0, len(s.rooms))
	for _, r := range s.rooms {
		sessions = append(sessions, r.snapshot())
	}
	return sessions
}

func (s *Service) runClock(channelID string, stop <-chan struct{}) {
	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if !s.tick(channelID) {
				return
			}
		}
	}
}

// tick advances the room by one second. The whole sequence, including the
// stage-completion steps, runs under the registry lock; events are
// published afterwards in order. Returns false once the room is gone so
// the clock goroutine can exit.
func (s *Service) tick(channelID string) (alive bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tick handler panicked", "channel_id", channelID, "panic", rec)
			alive = true
		}
	}()

	var (
		tickSnap  *Snapshot
		missed    []MissedTick
		stageSnap *Snapshot
	)

	s.mu.Lock()
	r, ok := s.rooms[channelID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if !r.running {
		s.mu.Unlock()
		return true
	}
	r.remainingSeconds--
	if r.remainingSeconds < 0 {
		r.remainingSeconds = 0
	}
	if r.remainingSeconds == 0 {
		missed, stageSnap = s.completeStageLocked(r)
	} else {
		snap := r.snapshot()
		tickSnap = &snap
	}
	s.mu.Unlock()

	if tickSnap != nil {
		s.hooks.publishTick(*tickSnap)
	}
	for _, m := range missed {
		s.hooks.publishMissedTick(m)
	}
	if stageSnap != nil {
		s.hooks.publishStageComplete(*stageSnap)
	}
	return true
}

// completeStageLocked performs the atomic stage transition. Callers hold
// the registry lock; the returned events are published after release.
func (s *Service) completeStageLocked(r *room) ([]MissedTick, *Snapshot) {
	r.running = false

	var missed []MissedTick
	for _, p := range r.participants {
		if !p.Active {
			p.MissedStages++
			missed = append(missed, MissedTick{
				UserID:       p.UserID,
				GuildID:      r.guildID,
				ChannelID:    r.channelID,
				MissedStages: p.MissedStages,
			})
		} else {
			p.MissedStages = 0
			p.Active = false
		}
	}

	if r.stage == StageFocus {
		r.sessionsCompleted++
	}
	r.stage = r.stage.Next()
	r.durationSeconds = r.stageSeconds(r.stage)
	r.remainingSeconds = r.durationSeconds

	r.running = true
	snap := r.snapshot()
	slog.Info("stage complete", "guild_id", r.guildID, "channel_id", r.channelID,
		"stage", r.stage, "sessions_completed", r.sessionsCompleted, "participants", len(r.participants))
	return missed, &snap
}
