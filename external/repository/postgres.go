package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pomora/pomora/internal/repository"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

// LogSession appends the raw log row and folds the minutes into the
// guild's rolling aggregates in one transaction, so the leaderboard can
// never drift from the log.
func (r *PostgresRepository) LogSession(ctx context.Context, input repository.LogSessionInput) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO session_logs (user_id, guild_id, duration, session_type, is_web)
		 VALUES ($1, $2, $3, $4, FALSE)`,
		input.UserID, input.GuildID, input.DurationMinutes, input.SessionType)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO guild_stats (guild_id, user_id, daily_minutes, weekly_minutes, monthly_minutes, total_minutes, updated_at)
		 VALUES ($1, $2, $3, $3, $3, $3, NOW())
		 ON CONFLICT (guild_id, user_id) DO UPDATE SET
			daily_minutes = guild_stats.daily_minutes + EXCLUDED.daily_minutes,
			weekly_minutes = guild_stats.weekly_minutes + EXCLUDED.weekly_minutes,
			monthly_minutes = guild_stats.monthly_minutes + EXCLUDED.monthly_minutes,
			total_minutes = guild_stats.total_minutes + EXCLUDED.total_minutes,
			updated_at = NOW()`,
		input.GuildID, input.UserID, input.DurationMinutes)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) GetGuildLeaderboard(ctx context.Context, guildID string, timeframe repository.Timeframe, limit int) ([]repository.GuildStats, error) {
	column, err := timeframeColumn(timeframe)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, guild_id, user_id, daily_minutes, weekly_minutes, monthly_minutes, total_minutes, updated_at
		 FROM guild_stats WHERE guild_id = $1 AND %s > 0
		 ORDER BY %s DESC LIMIT $2`, column, column),
		guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []repository.GuildStats
	for rows.Next() {
		var s repository.GuildStats
		err := rows.Scan(&s.ID, &s.GuildID, &s.UserID, &s.DailyMinutes, &s.WeeklyMinutes, &s.MonthlyMinutes, &s.TotalMinutes, &s.UpdatedAt)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) GetUserProfile(ctx context.Context, userID string) (*repository.UserProfile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(daily_minutes), 0), COALESCE(SUM(weekly_minutes), 0),
		        COALESCE(SUM(monthly_minutes), 0), COALESCE(SUM(total_minutes), 0)
		 FROM guild_stats WHERE user_id = $1`,
		userID)
	var p repository.UserProfile
	if err := row.Scan(&p.DailyMinutes, &p.WeeklyMinutes, &p.MonthlyMinutes, &p.TotalMinutes); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) GetGuildConfig(ctx context.Context, guildID string) (*repository.GuildConfig, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT guild_id, report_channel_id, study_channel_id, updated_at
		 FROM guild_configs WHERE guild_id = $1`,
		guildID)
	var c repository.GuildConfig
	err := row.Scan(&c.GuildID, &c.ReportChannelID, &c.StudyChannelID, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) UpdateGuildConfig(ctx context.Context, guildID string, update repository.GuildConfigUpdate) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO guild_configs (guild_id, report_channel_id, study_channel_id, updated_at)
		 VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), NOW())
		 ON CONFLICT (guild_id) DO UPDATE SET
			report_channel_id = COALESCE($2, guild_configs.report_channel_id),
			study_channel_id = COALESCE($3, guild_configs.study_channel_id),
			updated_at = NOW()`,
		guildID, update.ReportChannelID, update.StudyChannelID)
	return err
}

func (r *PostgresRepository) GetActiveMessage(ctx context.Context, channelID string) (string, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT message_id FROM active_channel_messages WHERE channel_id = $1`,
		channelID)
	var messageID string
	if err := row.Scan(&messageID); err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return messageID, nil
}

func (r *PostgresRepository) SetActiveMessage(ctx context.Context, channelID, guildID, messageID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO active_channel_messages (channel_id, guild_id, message_id, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (channel_id) DO UPDATE SET
			guild_id = EXCLUDED.guild_id,
			message_id = EXCLUDED.message_id,
			updated_at = NOW()`,
		channelID, guildID, messageID)
	return err
}

func (r *PostgresRepository) DeleteActiveMessage(ctx context.Context, channelID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM active_channel_messages WHERE channel_id = $1`,
		channelID)
	return err
}

func (r *PostgresRepository) ResetTimeframe(ctx context.Context, timeframe repository.Timeframe) error {
	if timeframe == repository.TimeframeTotal {
		return fmt.Errorf("total minutes are never reset")
	}
	column, err := timeframeColumn(timeframe)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE guild_stats SET %s = 0, updated_at = NOW() WHERE %s <> 0`, column, column))
	return err
}

func timeframeColumn(timeframe repository.Timeframe) (string, error) {
	switch timeframe {
	case repository.TimeframeDaily:
		return "daily_minutes", nil
	case repository.TimeframeWeekly:
		return "weekly_minutes", nil
	case repository.TimeframeMonthly:
		return "monthly_minutes", nil
	case repository.TimeframeTotal:
		return "total_minutes", nil
	default:
		return "", fmt.Errorf("unknown timeframe %q", timeframe)
	}
}
