package repository

import "context"

type LogSessionInput struct {
	UserID          string
	GuildID         string
	DurationMinutes int
	SessionType     string
}

// GuildConfigUpdate carries only the fields being changed; nil means
// leave untouched.
type GuildConfigUpdate struct {
	ReportChannelID *string
	StudyChannelID  *string
}

type StatsRepository interface {
	LogSession(ctx context.Context, input LogSessionInput) error
	GetGuildLeaderboard(ctx context.Context, guildID string, timeframe Timeframe, limit int) ([]GuildStats, error)
	GetUserProfile(ctx context.Context, userID string) (*UserProfile, error)
	// ResetTimeframe zeroes one rolling aggregate column across all
	// guilds, called after the matching report window closes.
	ResetTimeframe(ctx context.Context, timeframe Timeframe) error
}

type ConfigRepository interface {
	GetGuildConfig(ctx context.Context, guildID string) (*GuildConfig, error)
	UpdateGuildConfig(ctx context.Context, guildID string, update GuildConfigUpdate) error
}

// MessageRepository persists the identity of the last-sent status message
// per channel so a restart can edit or delete it instead of orphaning it.
type MessageRepository interface {
	GetActiveMessage(ctx context.Context, channelID string) (string, error)
	SetActiveMessage(ctx context.Context, channelID, guildID, messageID string) error
	DeleteActiveMessage(ctx context.Context, channelID string) error
}

type Repository interface {
	StatsRepository
	ConfigRepository
	MessageRepository
}
