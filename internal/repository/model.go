package repository

import "time"

type Timeframe string

const (
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
	TimeframeTotal   Timeframe = "total"
)

func (t Timeframe) Valid() bool {
	switch t {
	case TimeframeDaily, TimeframeWeekly, TimeframeMonthly, TimeframeTotal:
		return true
	}
	return false
}

// GuildStats is one user's accumulated study time within one guild, kept
// as rolling aggregates so leaderboard reads stay cheap.
type GuildStats struct {
	ID             string
	GuildID        string
	UserID         string
	DailyMinutes   int
	WeeklyMinutes  int
	MonthlyMinutes int
	TotalMinutes   int
	UpdatedAt      time.Time
}

// UserProfile is a user's study time summed across all guilds.
type UserProfile struct {
	DailyMinutes   int
	WeeklyMinutes  int
	MonthlyMinutes int
	TotalMinutes   int
}

type GuildConfig struct {
	GuildID         string
	ReportChannelID string
	StudyChannelID  string
	UpdatedAt       time.Time
}
