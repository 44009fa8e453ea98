package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS session_logs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id TEXT NOT NULL,
		guild_id TEXT NOT NULL,
		duration INTEGER NOT NULL,
		session_type TEXT NOT NULL,
		is_web BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_logs_user ON session_logs (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS guild_stats (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		daily_minutes INTEGER NOT NULL DEFAULT 0,
		weekly_minutes INTEGER NOT NULL DEFAULT 0,
		monthly_minutes INTEGER NOT NULL DEFAULT 0,
		total_minutes INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(guild_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_guild_stats_guild ON guild_stats (guild_id)`,
	`CREATE TABLE IF NOT EXISTS guild_configs (
		guild_id TEXT PRIMARY KEY,
		report_channel_id TEXT NOT NULL DEFAULT '',
		study_channel_id TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS active_channel_messages (
		channel_id TEXT PRIMARY KEY,
		guild_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
