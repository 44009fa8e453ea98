package render

import "context"

type ParticipantCard struct {
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name"`
	AvatarURL      string `json:"avatar_url"`
	ElapsedMinutes int    `json:"elapsed_minutes"`
	Active         bool   `json:"active"`
	MissedStages   int    `json:"missed_stages"`
}

type StatusCardInput struct {
	ChannelName       string            `json:"channel_name"`
	Stage             string            `json:"stage"`
	RemainingSeconds  int               `json:"remaining_seconds"`
	DurationSeconds   int               `json:"duration_seconds"`
	SessionsCompleted int               `json:"sessions_completed"`
	Participants      []ParticipantCard `json:"participants"`
}

type LeaderboardRow struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Minutes     int    `json:"minutes"`
}

type LeaderboardCardInput struct {
	GuildName string           `json:"guild_name"`
	Timeframe string           `json:"timeframe"`
	Rows      []LeaderboardRow `json:"rows"`
}

// Renderer paints status and leaderboard cards. The returned bytes are an
// opaque image; composition is entirely the render service's concern.
type Renderer interface {
	StatusCard(ctx context.Context, input StatusCardInput) ([]byte, error)
	LeaderboardCard(ctx context.Context, input LeaderboardCardInput) ([]byte, error)
}
