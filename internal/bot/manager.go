package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pomora/pomora/internal/alert"
	"github.com/pomora/pomora/internal/config"
	"github.com/pomora/pomora/internal/discord"
	"github.com/pomora/pomora/internal/report"
	"github.com/pomora/pomora/internal/repository"
	"github.com/pomora/pomora/internal/status"
	"github.com/pomora/pomora/internal/timer"
)

// Manager glues the platform events to the domain: voice presence drives
// room membership, timer events drive status updates, alerts and session
// logging, and the command surface answers users.
type Manager struct {
	cfg       *config.Config
	timers    *timer.Service
	status    *status.Manager
	alerts    *alert.Dispatcher
	repo      repository.Repository
	discord   discord.Client
	reporter  *report.Reporter
	botUserID string
}

func NewManager(cfg *config.Config, timers *timer.Service, statusManager *status.Manager, alerts *alert.Dispatcher, repo repository.Repository, dc discord.Client, reporter *report.Reporter) *Manager {
	return &Manager{
		cfg:      cfg,
		timers:   timers,
		status:   statusManager,
		alerts:   alerts,
		repo:     repo,
		discord:  dc,
		reporter: reporter,
	}
}

// Start wires every event source. Must be called after the gateway
// connection is up so the bot's own user id is known.
func (m *Manager) Start() error {
	botUserID, err := m.discord.GetBotUserID()
	if err != nil {
		return fmt.Errorf("failed to resolve bot user id: %w", err)
	}
	m.botUserID = botUserID

	events := m.timers.Events()
	events.OnTick(m.handleTick)
	events.OnStageComplete(m.handleStageComplete)
	events.OnMissedTick(m.handleMissedTick)

	m.discord.RegisterVoiceStateUpdateHandler(m.handleVoiceState)
	m.discord.RegisterButtonHandler(m.handleButton)
	m.discord.RegisterSettingsModalHandler(m.handleSettingsModal)
	m.discord.RegisterMessageHandler(m.handleMessage)
	m.discord.RegisterGuildJoinHandler(m.handleGuildJoin)
	return nil
}

// handleTick refreshes the status message on coarse boundaries only: a
// fresh image every five minutes, a text-only edit every minute. The very
// first tick of a stage is skipped because the transition already posted
// a full update.
func (m *Manager) handleTick(snap timer.Snapshot) {
	if snap.RemainingSeconds == snap.DurationSeconds {
		return
	}
	switch {
	case snap.RemainingSeconds%300 == 0 && snap.RemainingSeconds > 0:
		m.status.UpdateStatusMessage(snap.GuildID, snap.ChannelID, true, false)
	case snap.RemainingSeconds%60 == 0 && snap.RemainingSeconds > 0:
		m.status.UpdateStatusMessage(snap.GuildID, snap.ChannelID, false, false)
	}
}

// handleStageComplete receives the snapshot taken right after the stage
// flip. Each participant gets the finished stage credited, then the room
// either tears down (nobody left) or gets a fresh status message and the
// transition chime.
func (m *Manager) handleStageComplete(snap timer.Snapshot) {
	m.logSessions(snap)

	if len(snap.Participants) == 0 {
		m.status.CleanupRoom(snap.GuildID, snap.ChannelID)
		return
	}
	m.status.UpdateStatusMessage(snap.GuildID, snap.ChannelID, true, true)
	m.alerts.PlayAlert(snap.GuildID, snap.ChannelID, snap.Stage)
}

func (m *Manager) logSessions(snap timer.Snapshot) {
	if len(snap.Participants) == 0 {
		return
	}
	participants := snap.Participants
	go func() {
		ctx := context.Background()
		for _, p := range participants {
			err := m.repo.LogSession(ctx, repository.LogSessionInput{
				UserID:          p.UserID,
				GuildID:         snap.GuildID,
				DurationMinutes: snap.DurationSeconds / 60,
				SessionType:     string(snap.Stage),
			})
			if err != nil {
				slog.Error("failed to log session", "error", err, "user_id", p.UserID, "guild_id", snap.GuildID)
			}
		}
	}()
}

// handleMissedTick escalates a participant who ignored another stage
// boundary. At the threshold they are dropped from the session right away;
// the voice disconnect and channel notice run on their own goroutine, off
// the tick path, like logSessions.
func (m *Manager) handleMissedTick(mt timer.MissedTick) {
	if mt.MissedStages < m.cfg.InactivityThreshold {
		return
	}
	m.timers.StopTimer(mt.UserID)

	go func() {
		current, err := m.discord.GetUserVoiceChannelID(mt.GuildID, mt.UserID)
		if err == nil && current == mt.ChannelID {
			if err := m.discord.DisconnectMember(mt.GuildID, mt.UserID); err != nil {
				slog.Warn("failed to disconnect inactive member", "error", err, "user_id", mt.UserID, "guild_id", mt.GuildID)
			}
		}
		if err := m.discord.SendChannelMessage(mt.ChannelID, fmt.Sprintf("User <@%s> disconnected due to inactivity.", mt.UserID)); err != nil {
			slog.Warn("failed to send inactivity notice", "error", err, "channel_id", mt.ChannelID)
		}
		m.status.UpdateStatusMessage(mt.GuildID, mt.ChannelID, true, false)
	}()
}

// handleVoiceState tracks movement in and out of the guild's configured
// study channel. Guilds that never ran setup are ignored entirely.
func (m *Manager) handleVoiceState(e discord.VoiceStateEvent) {
	if e.UserIsBot {
		return
	}
	guildConfig, err := m.repo.GetGuildConfig(context.Background(), e.GuildID)
	if err != nil {
		slog.Error("failed to load guild config", "error", err, "guild_id", e.GuildID)
		return
	}
	if guildConfig == nil || guildConfig.StudyChannelID == "" {
		return
	}
	study := guildConfig.StudyChannelID

	if e.AfterChannelID == study && e.BeforeChannelID != study {
		m.timers.JoinRoom(e.UserID, e.GuildID, study)
		m.status.UpdateStatusMessage(e.GuildID, study, true, true)
		return
	}
	if e.BeforeChannelID == study && e.AfterChannelID != study {
		m.timers.LeaveRoom(e.UserID, study)
		if _, ok := m.timers.RoomSession(study); ok {
			m.status.UpdateStatusMessage(e.GuildID, study, true, true)
		}
	}
}

func (m *Manager) handleButton(e discord.ButtonEvent) {
	switch e.CustomID {
	case status.ButtonPresent:
		m.timers.ConfirmParticipation(e.UserID)
		m.respondEphemeral(e.RespondEphemeral, "Presence confirmed. Stay focused!")
		m.status.UpdateStatusMessage(e.GuildID, e.ChannelID, true, false)

	case status.ButtonStop:
		session, ok := m.timers.UserSession(e.UserID)
		if !ok {
			m.respondEphemeral(e.RespondEphemeral, "You are not in a study session.")
			return
		}
		m.timers.StopTimer(e.UserID)
		m.respondEphemeral(e.RespondEphemeral, "You left the session. See you next time!")
		m.status.UpdateStatusMessage(e.GuildID, session.ChannelID, true, false)

	case status.ButtonOptions:
		defaults := discord.SettingsDefaults{
			FocusMinutes: m.cfg.FocusMinutes,
			BreakMinutes: m.cfg.BreakMinutes,
			Sound:        true,
			Voice:        true,
		}
		if room, ok := m.timers.RoomSession(e.ChannelID); ok {
			if room.CustomFocusSeconds > 0 {
				defaults.FocusMinutes = room.CustomFocusSeconds / 60
			}
			if room.CustomBreakSeconds > 0 {
				defaults.BreakMinutes = room.CustomBreakSeconds / 60
			}
			defaults.Sound = room.SoundEnabled
			defaults.Voice = room.VoiceEnabled
		}
		if err := e.ShowSettingsModal(defaults); err != nil {
			slog.Warn("failed to open settings modal", "error", err, "user_id", e.UserID)
		}
	}
}

func (m *Manager) handleSettingsModal(e discord.SettingsModalEvent) {
	focusMinutes, errFocus := strconv.Atoi(strings.TrimSpace(e.FocusRaw))
	breakMinutes, errBreak := strconv.Atoi(strings.TrimSpace(e.BreakRaw))
	if errFocus != nil || errBreak != nil || focusMinutes < 1 || breakMinutes < 1 {
		m.respondEphemeral(e.RespondEphemeral, "Please enter valid numbers.")
		return
	}

	session, ok := m.timers.UserSession(e.UserID)
	if !ok {
		m.respondEphemeral(e.RespondEphemeral, "Join a voice channel to change settings.")
		return
	}

	sound := !strings.EqualFold(strings.TrimSpace(e.SoundRaw), "OFF")
	voice := !strings.EqualFold(strings.TrimSpace(e.VoiceRaw), "OFF")
	m.timers.UpdateSettings(session.ChannelID, focusMinutes*60, breakMinutes*60, sound, voice)
	m.respondEphemeral(e.RespondEphemeral, settingsSummary(focusMinutes, breakMinutes, sound, voice))
	m.status.UpdateStatusMessage(e.GuildID, session.ChannelID, true, true)
}

func (m *Manager) handleMessage(e discord.MessageEvent) {
	if e.UserID == m.botUserID || !strings.HasPrefix(e.Content, m.cfg.CommandPrefix) {
		return
	}
	args := strings.Fields(strings.TrimPrefix(e.Content, m.cfg.CommandPrefix))
	if len(args) == 0 {
		return
	}

	switch strings.ToLower(args[0]) {
	case "help":
		m.replyEmbed(e, helpEmbed(m.cfg.CommandPrefix))
	case "status":
		m.commandStatus(e)
	case "me", "stats":
		m.commandProfile(e)
	case "lb", "leaderboard":
		m.commandLeaderboard(e, args[1:])
	case "test-report":
		m.commandTestReport(e, args[1:])
	case "setup":
		m.commandSetup(e, args[1:])
	}
}

func (m *Manager) commandStatus(e discord.MessageEvent) {
	session, ok := m.timers.UserSession(e.UserID)
	if !ok {
		m.reply(e, "You are not in a study session. Join the study voice channel to start one.")
		return
	}
	m.replyEmbed(e, statusEmbed(session))
}

func (m *Manager) commandProfile(e discord.MessageEvent) {
	profile, err := m.repo.GetUserProfile(context.Background(), e.UserID)
	if err != nil {
		slog.Error("failed to load user profile", "error", err, "user_id", e.UserID)
		m.reply(e, "Could not load your stats right now.")
		return
	}
	m.replyEmbed(e, profileEmbed(e.Username, profile))
}

func (m *Manager) commandLeaderboard(e discord.MessageEvent, args []string) {
	timeframe := repository.TimeframeWeekly
	if len(args) > 0 {
		timeframe = repository.Timeframe(strings.ToLower(args[0]))
		if !timeframe.Valid() {
			m.reply(e, "Usage: "+m.cfg.CommandPrefix+"lb [daily|weekly|monthly|total]")
			return
		}
	}
	if err := m.reporter.SendGuildReport(context.Background(), e.GuildID, timeframe, e.ChannelID); err != nil {
		slog.Error("failed to send leaderboard", "error", err, "guild_id", e.GuildID)
		m.reply(e, "Could not build the leaderboard right now.")
	}
}

func (m *Manager) commandTestReport(e discord.MessageEvent, args []string) {
	if !e.UserIsAdmin {
		m.reply(e, "Only server admins can run reports.")
		return
	}
	timeframe := repository.TimeframeDaily
	if len(args) > 0 {
		timeframe = repository.Timeframe(strings.ToLower(args[0]))
		if !timeframe.Valid() {
			m.reply(e, "Usage: "+m.cfg.CommandPrefix+"test-report [daily|weekly|monthly|total]")
			return
		}
	}
	if err := m.reporter.SendGuildReport(context.Background(), e.GuildID, timeframe, e.ChannelID); err != nil {
		slog.Error("failed to send test report", "error", err, "guild_id", e.GuildID)
		m.reply(e, "Could not build the report right now.")
	}
}

func (m *Manager) commandSetup(e discord.MessageEvent, args []string) {
	if !e.UserIsAdmin {
		m.reply(e, "Only server admins can change the setup.")
		return
	}

	ctx := context.Background()
	if len(args) >= 2 {
		channelID := stripChannelMention(args[1])
		if channelID == "" {
			m.reply(e, "Please mention a channel, like #study.")
			return
		}
		switch strings.ToLower(args[0]) {
		case "reports":
			err := m.repo.UpdateGuildConfig(ctx, e.GuildID, repository.GuildConfigUpdate{ReportChannelID: &channelID})
			if err != nil {
				slog.Error("failed to save report channel", "error", err, "guild_id", e.GuildID)
				m.reply(e, "Could not save the report channel.")
				return
			}
			m.reply(e, fmt.Sprintf("Reports will be posted in <#%s>.", channelID))
			return

		case "vc":
			err := m.repo.UpdateGuildConfig(ctx, e.GuildID, repository.GuildConfigUpdate{StudyChannelID: &channelID})
			if err != nil {
				slog.Error("failed to save study channel", "error", err, "guild_id", e.GuildID)
				m.reply(e, "Could not save the study channel.")
				return
			}
			m.reply(e, fmt.Sprintf("<#%s> is now the study channel.", channelID))
			m.adoptCurrentOccupants(e.GuildID, channelID)
			return
		}
	}

	// Bare !setup (or an unrecognized subcommand) shows the current
	// configuration instead of a usage error.
	guildConfig, err := m.repo.GetGuildConfig(ctx, e.GuildID)
	if err != nil {
		slog.Error("failed to load guild config", "error", err, "guild_id", e.GuildID)
		m.reply(e, "Could not load the server configuration.")
		return
	}
	m.replyEmbed(e, setupEmbed(m.cfg.CommandPrefix, guildConfig))
}

// adoptCurrentOccupants starts a session for everyone already sitting in
// the voice channel when it becomes the study channel.
func (m *Manager) adoptCurrentOccupants(guildID, channelID string) {
	occupants, err := m.discord.ListVoiceChannelParticipants(guildID, channelID)
	if err != nil {
		slog.Warn("failed to list study channel occupants", "error", err, "guild_id", guildID, "channel_id", channelID)
		return
	}
	joined := false
	for _, occupant := range occupants {
		if occupant.IsBot {
			continue
		}
		m.timers.JoinRoom(occupant.UserID, guildID, channelID)
		joined = true
	}
	if joined {
		m.status.UpdateStatusMessage(guildID, channelID, true, true)
	}
}

func (m *Manager) handleGuildJoin(e discord.GuildJoinEvent) {
	channelID, err := m.discord.FallbackTextChannel(e.GuildID)
	if err != nil || channelID == "" {
		slog.Warn("no channel for welcome message", "error", err, "guild_id", e.GuildID)
		return
	}
	if err := m.discord.SendEmbedMessage(channelID, welcomeEmbed(m.cfg.CommandPrefix)); err != nil {
		slog.Warn("failed to send welcome message", "error", err, "guild_id", e.GuildID)
	}
}

func stripChannelMention(raw string) string {
	id := strings.TrimSuffix(strings.TrimPrefix(raw, "<#"), ">")
	if id == "" || strings.ContainsAny(id, "<>#@") {
		return ""
	}
	return id
}

func (m *Manager) reply(e discord.MessageEvent, content string) {
	if err := e.Reply(content); err != nil {
		slog.Warn("failed to reply", "error", err, "channel_id", e.ChannelID)
	}
}

func (m *Manager) replyEmbed(e discord.MessageEvent, embed discord.Embed) {
	if err := e.ReplyEmbed(embed); err != nil {
		slog.Warn("failed to reply with embed", "error", err, "channel_id", e.ChannelID)
	}
}

func (m *Manager) respondEphemeral(respond func(string) error, content string) {
	if respond == nil {
		return
	}
	if err := respond(content); err != nil {
		slog.Warn("failed to send ephemeral response", "error", err)
	}
}
