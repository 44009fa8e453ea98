package bot

import (
	"fmt"
	"strings"

	"github.com/pomora/pomora/internal/discord"
	"github.com/pomora/pomora/internal/repository"
	"github.com/pomora/pomora/internal/timer"
)

const embedColor = 0xFF6B35

func helpEmbed(prefix string) discord.Embed {
	return discord.Embed{
		Title: "Pomora Commands",
		Color: embedColor,
		Fields: []discord.EmbedField{
			{Name: prefix + "status", Value: "Show your current study session."},
			{Name: prefix + "me", Value: "Show your personal study stats."},
			{Name: prefix + "lb [daily|weekly|monthly|total]", Value: "Show the server leaderboard."},
			{Name: prefix + "setup reports #channel", Value: "Set the report channel (admin)."},
			{Name: prefix + "setup vc #channel", Value: "Set the study voice channel (admin)."},
		},
		FooterText: "Join the study voice channel to start a session.",
	}
}

func statusEmbed(session timer.Snapshot) discord.Embed {
	return discord.Embed{
		Title: "Your Study Session",
		Color: embedColor,
		Fields: []discord.EmbedField{
			{Name: "Stage", Value: session.Stage.Label(), Inline: true},
			{Name: "Remaining", Value: timer.FormatClock(session.RemainingSeconds), Inline: true},
			{Name: "Sessions Completed", Value: fmt.Sprintf("%d", session.SessionsCompleted), Inline: true},
			{Name: "Participants", Value: fmt.Sprintf("%d", len(session.Participants)), Inline: true},
		},
	}
}

func profileEmbed(username string, profile *repository.UserProfile) discord.Embed {
	return discord.Embed{
		Title: username + "'s Study Stats",
		Color: embedColor,
		Fields: []discord.EmbedField{
			{Name: "Today", Value: formatHours(profile.DailyMinutes), Inline: true},
			{Name: "This Week", Value: formatHours(profile.WeeklyMinutes), Inline: true},
			{Name: "This Month", Value: formatHours(profile.MonthlyMinutes), Inline: true},
			{Name: "All Time", Value: formatHours(profile.TotalMinutes), Inline: true},
		},
	}
}

func setupEmbed(prefix string, cfg *repository.GuildConfig) discord.Embed {
	reportValue := "`Not Set`"
	studyValue := "`Not Set (Required for tracking)`"
	if cfg != nil {
		if cfg.ReportChannelID != "" {
			reportValue = fmt.Sprintf("<#%s>", cfg.ReportChannelID)
		}
		if cfg.StudyChannelID != "" {
			studyValue = fmt.Sprintf("<#%s>", cfg.StudyChannelID)
		}
	}
	return discord.Embed{
		Title:       "Pomora Admin Configuration",
		Description: "Customize how Pomora operates in your server.",
		Color:       embedColor,
		Fields: []discord.EmbedField{
			{Name: "Report Channel", Value: reportValue, Inline: true},
			{Name: "Study Voice Channel", Value: studyValue, Inline: true},
			{Name: "Admin Commands", Value: fmt.Sprintf("`%ssetup reports <#channel>`\n`%ssetup vc <#voice-channel>`", prefix, prefix)},
		},
	}
}

func welcomeEmbed(prefix string) discord.Embed {
	return discord.Embed{
		Title: "Thanks for adding Pomora!",
		Description: strings.Join([]string{
			"Pomora runs group study sessions with focus and break stages.",
			fmt.Sprintf("An admin should run `%ssetup vc #channel` to pick the study voice channel.", prefix),
			fmt.Sprintf("See `%shelp` for all commands.", prefix),
		}, "\n"),
		Color: embedColor,
	}
}

func settingsSummary(focusMinutes, breakMinutes int, sound, voice bool) string {
	return fmt.Sprintf("Settings updated: %dm focus / %dm break, sound %s, voice %s.",
		focusMinutes, breakMinutes, onOff(sound), onOff(voice))
}

func formatHours(minutes int) string {
	return fmt.Sprintf("%.1fh", float64(minutes)/60)
}

func onOff(enabled bool) string {
	if enabled {
		return "ON"
	}
	return "OFF"
}
