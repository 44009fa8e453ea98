package status

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pomora/pomora/internal/config"
	"github.com/pomora/pomora/internal/discord"
	"github.com/pomora/pomora/internal/render"
	"github.com/pomora/pomora/internal/repository"
	"github.com/pomora/pomora/internal/syncx"
	"github.com/pomora/pomora/internal/timer"
)

// Status message button custom ids, shared with the interaction handler.
const (
	ButtonPresent = "present_all"
	ButtonOptions = "options"
	ButtonStop    = "stop_all"
	statusTitle   = "Pomora Study Session"
	fallbackRoom  = "Pomora Room"
	colorFocus    = 0xFF6B35
	colorBreak    = 0x43B581
)

type cachedImage struct {
	name string
	body []byte
}

// Manager owns the one status message per room. Every mutating operation
// against a room's channel is funneled through a per-room FIFO queue, so
// overlapping triggers (ticks, joins, button presses) can never race to
// edit or duplicate the same message.
type Manager struct {
	cfg      *config.Config
	timers   *timer.Service
	repo     repository.MessageRepository
	discord  discord.Client
	renderer render.Renderer
	clock    clockwork.Clock
	locks    *syncx.KeyedMutex

	mu          sync.Mutex
	messageIDs  map[string]string
	images      map[string]cachedImage
	lastRenamed map[string]time.Time
}

func NewManager(cfg *config.Config, timers *timer.Service, repo repository.MessageRepository, dc discord.Client, renderer render.Renderer, clock clockwork.Clock) *Manager {
	return &Manager{
		cfg:         cfg,
		timers:      timers,
		repo:        repo,
		discord:     dc,
		renderer:    renderer,
		clock:       clock,
		locks:       syncx.NewKeyedMutex(),
		messageIDs:  make(map[string]string),
		images:      make(map[string]cachedImage),
		lastRenamed: make(map[string]time.Time),
	}
}

func roomKey(guildID, channelID string) string {
	return guildID + ":" + channelID
}

// UpdateStatusMessage refreshes the room's status artifact. Calls for the
// same room execute strictly in call order; the returned channel closes
// when this call's work, including all its I/O, has finished. Errors are
// contained here and never reach the caller.
func (m *Manager) UpdateStatusMessage(guildID, channelID string, updateImage, forceNew bool) <-chan struct{} {
	return m.locks.Enqueue(roomKey(guildID, channelID), func() {
		m.update(guildID, channelID, updateImage, forceNew)
	})
}

// CleanupRoom tears down an empty room at a stage boundary: the active
// message is removed everywhere and the room's clock is cancelled. Shares
// the room's queue so it cannot interleave with a pending update.
func (m *Manager) CleanupRoom(guildID, channelID string) <-chan struct{} {
	return m.locks.Enqueue(roomKey(guildID, channelID), func() {
		ctx := context.Background()

		m.mu.Lock()
		lastID := m.messageIDs[channelID]
		delete(m.messageIDs, channelID)
		delete(m.images, channelID)
		delete(m.lastRenamed, channelID)
		m.mu.Unlock()

		if lastID == "" {
			id, err := m.repo.GetActiveMessage(ctx, channelID)
			if err != nil {
				slog.Warn("failed to look up active message for cleanup", "error", err, "channel_id", channelID)
			} else {
				lastID = id
			}
		}
		if lastID != "" {
			if err := m.discord.DeleteMessage(channelID, lastID); err != nil {
				slog.Warn("failed to delete status message on cleanup", "error", err, "channel_id", channelID, "message_id", lastID)
			}
			if err := m.repo.DeleteActiveMessage(ctx, channelID); err != nil {
				slog.Warn("failed to clear active message record", "error", err, "channel_id", channelID)
			}
		}

		m.timers.StopRoom(channelID)
	})
}

func (m *Manager) update(guildID, channelID string, updateImage, forceNew bool) {
	ctx := context.Background()

	room, ok := m.timers.RoomSession(channelID)
	if !ok {
		return
	}

	content := m.composeContent(room)
	image := m.resolveImage(ctx, room, updateImage)
	m.maybeRenameChannel(room)

	msg := discord.StatusMessage{
		Content:   content,
		Embed:     m.statusEmbed(room),
		ImageName: image.name,
		ImageBody: image.body,
		Buttons: []discord.Button{
			{CustomID: ButtonPresent, Label: "Present", Style: discord.ButtonSuccess},
			{CustomID: ButtonOptions, Label: "Options", Style: discord.ButtonSecondary},
			{CustomID: ButtonStop, Label: "Stop", Style: discord.ButtonDanger},
		},
	}

	m.mu.Lock()
	lastID := m.messageIDs[channelID]
	m.mu.Unlock()

	// Memory can be cold right after a restart; the persisted record
	// carries the message identity across processes.
	if lastID == "" {
		id, err := m.repo.GetActiveMessage(ctx, channelID)
		if err != nil {
			slog.Warn("failed to look up active message", "error", err, "channel_id", channelID)
		} else {
			lastID = id
		}
	}

	if lastID != "" && !forceNew {
		if err := m.discord.EditStatusMessage(channelID, lastID, msg); err == nil {
			m.mu.Lock()
			m.messageIDs[channelID] = lastID
			m.mu.Unlock()
			return
		} else {
			slog.Warn("status message edit failed; recreating", "error", err, "channel_id", channelID, "message_id", lastID)
		}
	}

	if lastID != "" {
		if err := m.discord.DeleteMessage(channelID, lastID); err != nil {
			slog.Debug("stale status message delete failed", "error", err, "channel_id", channelID, "message_id", lastID)
		}
		if err := m.repo.DeleteActiveMessage(ctx, channelID); err != nil {
			slog.Warn("failed to clear active message record", "error", err, "channel_id", channelID)
		}
		m.mu.Lock()
		delete(m.messageIDs, channelID)
		m.mu.Unlock()
	}

	newID, err := m.discord.SendStatusMessage(channelID, msg)
	if err != nil {
		slog.Error("failed to send status message", "error", err, "guild_id", guildID, "channel_id", channelID)
		return
	}
	m.mu.Lock()
	m.messageIDs[channelID] = newID
	m.mu.Unlock()
	if err := m.repo.SetActiveMessage(ctx, channelID, guildID, newID); err != nil {
		slog.Warn("failed to persist active message record", "error", err, "channel_id", channelID, "message_id", newID)
	}
}

func (m *Manager) composeContent(room timer.Snapshot) string {
	expiry := m.clock.Now().Unix() + int64(room.RemainingSeconds)
	stageLine := fmt.Sprintf("<#%s>: **%s** Mode Active\n**%s** begins <t:%d:R>",
		room.ChannelID, room.Stage.Label(), room.Stage.Next().Label(), expiry)

	atRisk := room.AtRisk()
	if len(atRisk) == 0 {
		return stageLine
	}
	mentions := make([]string, 0, len(atRisk))
	for _, p := range atRisk {
		mentions = append(mentions, fmt.Sprintf("<@%s>", p.UserID))
	}
	return stageLine + fmt.Sprintf("\n**Inactivity Warning:** %s, please confirm presence to stay.",
		strings.Join(mentions, ", "))
}

// resolveImage returns the cached card unless a fresh render was requested
// or nothing is cached yet. A failed render falls back to whatever is
// cached so the textual update still goes out.
func (m *Manager) resolveImage(ctx context.Context, room timer.Snapshot, updateImage bool) cachedImage {
	m.mu.Lock()
	cached, ok := m.images[room.ChannelID]
	m.mu.Unlock()
	if ok && !updateImage {
		return cached
	}

	body, err := m.renderer.StatusCard(ctx, m.statusCardInput(room))
	if err != nil {
		slog.Warn("status card render failed", "error", err, "channel_id", room.ChannelID)
		return cached
	}
	img := cachedImage{
		name: fmt.Sprintf("status-%d.png", m.clock.Now().UnixMilli()),
		body: body,
	}
	m.mu.Lock()
	m.images[room.ChannelID] = img
	m.mu.Unlock()
	return img
}

func (m *Manager) statusCardInput(room timer.Snapshot) render.StatusCardInput {
	channelName, err := m.discord.ChannelName(room.ChannelID)
	if err != nil || channelName == "" {
		channelName = fallbackRoom
	}

	now := m.clock.Now()
	participants := make([]render.ParticipantCard, 0, len(room.Participants))
	for _, p := range room.Participants {
		card := render.ParticipantCard{
			UserID:         p.UserID,
			DisplayName:    p.UserID,
			ElapsedMinutes: int(now.Sub(p.JoinedAt).Minutes()),
			Active:         p.Active,
			MissedStages:   p.MissedStages,
		}
		if member, err := m.discord.ResolveMember(room.GuildID, p.UserID); err == nil {
			card.DisplayName = member.DisplayName
			card.AvatarURL = member.AvatarURL
		}
		participants = append(participants, card)
	}

	return render.StatusCardInput{
		ChannelName:       channelName,
		Stage:             string(room.Stage),
		RemainingSeconds:  room.RemainingSeconds,
		DurationSeconds:   room.DurationSeconds,
		SessionsCompleted: room.SessionsCompleted,
		Participants:      participants,
	}
}

// maybeRenameChannel encodes remaining minutes and stage into the channel
// name, at most once per throttle window to stay clear of the platform's
// rename rate limit.
func (m *Manager) maybeRenameChannel(room timer.Snapshot) {
	now := m.clock.Now()
	m.mu.Lock()
	last := m.lastRenamed[room.ChannelID]
	m.mu.Unlock()
	if !last.IsZero() && now.Sub(last) <= m.cfg.RenameThrottle {
		return
	}

	current, err := m.discord.ChannelName(room.ChannelID)
	if err != nil || current == "" {
		return
	}
	base := strings.Split(current, " | ")[0]
	minsRemaining := (room.RemainingSeconds + 59) / 60
	newName := fmt.Sprintf("%s | %dm %s", base, minsRemaining, room.Stage.Label())
	if current == newName {
		return
	}
	if err := m.discord.RenameChannel(room.ChannelID, newName); err != nil {
		slog.Debug("channel rename failed", "error", err, "channel_id", room.ChannelID)
		return
	}
	m.mu.Lock()
	m.lastRenamed[room.ChannelID] = now
	m.mu.Unlock()
}

func (m *Manager) statusEmbed(room timer.Snapshot) discord.Embed {
	color := colorFocus
	if room.Stage == timer.StageBreak {
		color = colorBreak
	}
	return discord.Embed{
		Title:     statusTitle,
		Color:     color,
		Timestamp: true,
	}
}
