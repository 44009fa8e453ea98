package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pomora/pomora/internal/config"
	"github.com/pomora/pomora/internal/discord"
	"github.com/pomora/pomora/internal/render"
	"github.com/pomora/pomora/internal/repository"
)

const leaderboardLimit = 10

// Reporter posts leaderboard cards to guilds: daily at the configured
// hour, weekly on Fridays, monthly on the first of the month.
type Reporter struct {
	cfg      *config.Config
	stats    repository.StatsRepository
	configs  repository.ConfigRepository
	discord  discord.Client
	renderer render.Renderer
	clock    clockwork.Clock
}

func NewReporter(cfg *config.Config, stats repository.StatsRepository, configs repository.ConfigRepository, dc discord.Client, renderer render.Renderer, clock clockwork.Clock) *Reporter {
	return &Reporter{
		cfg:      cfg,
		stats:    stats,
		configs:  configs,
		discord:  dc,
		renderer: renderer,
		clock:    clock,
	}
}

// Run wakes up once an hour and fires the schedules that match the
// current wall clock. Blocks until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.runDue(ctx, r.clock.Now())
		}
	}
}

func (r *Reporter) runDue(ctx context.Context, now time.Time) {
	if now.Hour() != r.cfg.ReportHour {
		return
	}
	r.Broadcast(ctx, repository.TimeframeDaily)
	r.reset(ctx, repository.TimeframeDaily)
	if now.Weekday() == time.Friday {
		r.Broadcast(ctx, repository.TimeframeWeekly)
		r.reset(ctx, repository.TimeframeWeekly)
	}
	if now.Day() == 1 {
		r.Broadcast(ctx, repository.TimeframeMonthly)
		r.reset(ctx, repository.TimeframeMonthly)
	}
}

// reset closes the reporting window: the aggregate that was just reported
// starts counting from zero again.
func (r *Reporter) reset(ctx context.Context, timeframe repository.Timeframe) {
	if err := r.stats.ResetTimeframe(ctx, timeframe); err != nil {
		slog.Error("failed to reset timeframe aggregates", "error", err, "timeframe", timeframe)
	}
}

// Broadcast sends the timeframe's report to every guild the bot is in.
// Guilds without study data are skipped quietly.
func (r *Reporter) Broadcast(ctx context.Context, timeframe repository.Timeframe) {
	guildIDs, err := r.discord.ListGuildIDs()
	if err != nil {
		slog.Error("failed to list guilds for report broadcast", "error", err, "timeframe", timeframe)
		return
	}
	for _, guildID := range guildIDs {
		if err := r.SendGuildReport(ctx, guildID, timeframe, ""); err != nil {
			slog.Warn("failed to send scheduled report", "error", err, "guild_id", guildID, "timeframe", timeframe)
		}
	}
}

// SendGuildReport builds and posts one guild's leaderboard card. A
// non-empty targetChannelID marks a manual request: the report goes to
// that channel and an empty leaderboard produces a notice instead of
// silence.
func (r *Reporter) SendGuildReport(ctx context.Context, guildID string, timeframe repository.Timeframe, targetChannelID string) error {
	manual := targetChannelID != ""
	if !timeframe.Valid() {
		return fmt.Errorf("unknown timeframe %q", timeframe)
	}

	channelID := targetChannelID
	if channelID == "" {
		var err error
		channelID, err = r.resolveChannel(ctx, guildID)
		if err != nil {
			return err
		}
		if channelID == "" {
			return nil
		}
	}

	board, err := r.stats.GetGuildLeaderboard(ctx, guildID, timeframe, leaderboardLimit)
	if err != nil {
		return fmt.Errorf("failed to load leaderboard: %w", err)
	}
	if len(board) == 0 {
		if manual {
			return r.discord.SendChannelMessage(channelID, "No study data available for this timeframe yet.")
		}
		return nil
	}

	guildName, err := r.discord.GuildName(guildID)
	if err != nil || guildName == "" {
		guildName = "this server"
	}

	rows := make([]render.LeaderboardRow, 0, len(board))
	for i, entry := range board {
		row := render.LeaderboardRow{
			Rank:        i + 1,
			UserID:      entry.UserID,
			DisplayName: entry.UserID,
			Minutes:     minutesFor(entry, timeframe),
		}
		if member, err := r.discord.ResolveMember(guildID, entry.UserID); err == nil {
			row.DisplayName = member.DisplayName
		}
		rows = append(rows, row)
	}

	card, err := r.renderer.LeaderboardCard(ctx, render.LeaderboardCardInput{
		GuildName: guildName,
		Timeframe: string(timeframe),
		Rows:      rows,
	})
	if err != nil {
		return fmt.Errorf("failed to render leaderboard card: %w", err)
	}

	content := fmt.Sprintf("**%s REPORT** for **%s**", strings.ToUpper(string(timeframe)), guildName)
	return r.discord.SendChannelMessageWithFile(discord.FileMessage{
		ChannelID: channelID,
		Content:   content,
		Filename:  "leaderboard.png",
		FileBody:  card,
	})
}

func minutesFor(entry repository.GuildStats, timeframe repository.Timeframe) int {
	switch timeframe {
	case repository.TimeframeDaily:
		return entry.DailyMinutes
	case repository.TimeframeWeekly:
		return entry.WeeklyMinutes
	case repository.TimeframeMonthly:
		return entry.MonthlyMinutes
	default:
		return entry.TotalMinutes
	}
}

func (r *Reporter) resolveChannel(ctx context.Context, guildID string) (string, error) {
	guildConfig, err := r.configs.GetGuildConfig(ctx, guildID)
	if err != nil {
		return "", fmt.Errorf("failed to load guild config: %w", err)
	}
	if guildConfig != nil && guildConfig.ReportChannelID != "" {
		return guildConfig.ReportChannelID, nil
	}
	return r.discord.FallbackTextChannel(guildID)
}
