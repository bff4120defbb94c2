package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rafaello-cc/levelbot/internal/database/dbretry"
	"github.com/rafaello-cc/levelbot/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// bulkInsertBatchSize bounds the number of rows per bulk initialize insert.
const bulkInsertBatchSize = 1000

// leaderboardColumns whitelists the sortable leaderboard fields against
// their storage columns.
var leaderboardColumns = map[string]string{
	"level":    "level",
	"xp":       "xp",
	"messages": "message_count",
	"days":     "days_on_server",
}

// ProgressionModel handles database operations for member progression records.
type ProgressionModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewProgression creates a new progression model instance.
func NewProgression(db *bun.DB, logger *zap.Logger) *ProgressionModel {
	return &ProgressionModel{
		db:     db,
		logger: logger.Named("db_progression"),
	}
}

// GetOrCreate returns the progression record for a member, creating a
// fresh one at the level floor if none exists. Safe under concurrent
// callers racing to create the same record.
func (m *ProgressionModel) GetOrCreate(
	ctx context.Context, guildID, memberID uint64,
) (*types.MemberProgression, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.MemberProgression, error) {
		record := &types.MemberProgression{
			GuildID:   guildID,
			MemberID:  memberID,
			Level:     1,
			UpdatedAt: time.Now(),
		}

		_, err := m.db.NewInsert().
			Model(record).
			On("CONFLICT (guild_id, member_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to ensure progression record: %w", err)
		}

		var existing types.MemberProgression

		err = m.db.NewSelect().
			Model(&existing).
			Where("guild_id = ? AND member_id = ?", guildID, memberID).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load progression record: %w", err)
		}

		return &existing, nil
	})
}

// Get returns the progression record for a member, or types.ErrNotFound.
func (m *ProgressionModel) Get(
	ctx context.Context, guildID, memberID uint64,
) (*types.MemberProgression, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.MemberProgression, error) {
		var record types.MemberProgression

		err := m.db.NewSelect().
			Model(&record).
			Where("guild_id = ? AND member_id = ?", guildID, memberID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: progression %d/%d", types.ErrNotFound, guildID, memberID)
			}

			return nil, fmt.Errorf("failed to load progression record: %w", err)
		}

		return &record, nil
	})
}

// Update writes the provided counter fields, creating the record if it does
// not exist. Unset fields keep their stored values.
func (m *ProgressionModel) Update(
	ctx context.Context, guildID, memberID uint64, fields types.ProgressionFields,
) error {
	record := &types.MemberProgression{
		GuildID:   guildID,
		MemberID:  memberID,
		Level:     1,
		UpdatedAt: time.Now(),
	}

	assignments := []string{"updated_at = EXCLUDED.updated_at"}

	if fields.MessageCount != nil {
		record.MessageCount = *fields.MessageCount
		assignments = append(assignments, "message_count = EXCLUDED.message_count")
	}

	if fields.XP != nil {
		record.XP = *fields.XP
		assignments = append(assignments, "xp = EXCLUDED.xp")
	}

	if fields.DaysOnServer != nil {
		record.DaysOnServer = *fields.DaysOnServer
		assignments = append(assignments, "days_on_server = EXCLUDED.days_on_server")
	}

	if fields.Level != nil {
		record.Level = *fields.Level
		assignments = append(assignments, "level = EXCLUDED.level")
	}

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		query := m.db.NewInsert().
			Model(record).
			On("CONFLICT (guild_id, member_id) DO UPDATE")

		for _, assignment := range assignments {
			query = query.Set(assignment)
		}

		if _, err := query.Exec(ctx); err != nil {
			return fmt.Errorf("failed to update progression record: %w", err)
		}

		return nil
	})
}

// RaiseLevelIfHigher raises the stored level to the given value if it is
// higher than what is stored. The comparison happens inside the database so
// concurrent raises never lower a level.
func (m *ProgressionModel) RaiseLevelIfHigher(
	ctx context.Context, guildID, memberID uint64, level int,
) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().
			Model((*types.MemberProgression)(nil)).
			Set("level = GREATEST(level, ?)", level).
			Set("updated_at = ?", time.Now()).
			Where("guild_id = ? AND member_id = ?", guildID, memberID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to raise progression level: %w", err)
		}

		return nil
	})
}

// ListByGuild returns all progression records of one guild.
func (m *ProgressionModel) ListByGuild(
	ctx context.Context, guildID uint64,
) ([]*types.MemberProgression, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.MemberProgression, error) {
		var records []*types.MemberProgression

		err := m.db.NewSelect().
			Model(&records).
			Where("guild_id = ?", guildID).
			Order("member_id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list progression records: %w", err)
		}

		return records, nil
	})
}

// Leaderboard returns one page of a guild's progression records ordered by
// the given field. Unknown sort fields fall back to level.
func (m *ProgressionModel) Leaderboard(
	ctx context.Context, guildID uint64, sortBy string, limit, offset int,
) ([]*types.MemberProgression, error) {
	column, ok := leaderboardColumns[sortBy]
	if !ok {
		column = "level"
	}

	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.MemberProgression, error) {
		var records []*types.MemberProgression

		err := m.db.NewSelect().
			Model(&records).
			Where("guild_id = ?", guildID).
			OrderExpr("? DESC, member_id ASC", bun.Ident(column)).
			Limit(limit).
			Offset(offset).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load leaderboard page: %w", err)
		}

		return records, nil
	})
}

// CountByGuild returns the number of progression records in one guild.
func (m *ProgressionModel) CountByGuild(ctx context.Context, guildID uint64) (int, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		count, err := m.db.NewSelect().
			Model((*types.MemberProgression)(nil)).
			Where("guild_id = ?", guildID).
			Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count progression records: %w", err)
		}

		return count, nil
	})
}

// GuildIDs returns the distinct guild ids that have progression records.
// Scheduled jobs iterate these instead of the live guild list so members of
// guilds the bot has left keep accruing tenure.
func (m *ProgressionModel) GuildIDs(ctx context.Context) ([]uint64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]uint64, error) {
		var ids []uint64

		err := m.db.NewSelect().
			Model((*types.MemberProgression)(nil)).
			ColumnExpr("DISTINCT guild_id").
			Order("guild_id ASC").
			Scan(ctx, &ids)
		if err != nil {
			return nil, fmt.Errorf("failed to list guild ids: %w", err)
		}

		return ids, nil
	})
}

// BulkInitialize creates missing progression records for the given members
// in batches. Existing records are left untouched.
func (m *ProgressionModel) BulkInitialize(
	ctx context.Context, guildID uint64, memberIDs []uint64,
) error {
	if len(memberIDs) == 0 {
		return nil
	}

	now := time.Now()

	for start := 0; start < len(memberIDs); start += bulkInsertBatchSize {
		end := min(start+bulkInsertBatchSize, len(memberIDs))

		records := make([]*types.MemberProgression, 0, end-start)
		for _, memberID := range memberIDs[start:end] {
			records = append(records, &types.MemberProgression{
				GuildID:   guildID,
				MemberID:  memberID,
				Level:     1,
				UpdatedAt: now,
			})
		}

		err := dbretry.NoResult(ctx, func(ctx context.Context) error {
			_, err := m.db.NewInsert().
				Model(&records).
				On("CONFLICT (guild_id, member_id) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to bulk initialize progression records: %w", err)
			}

			return nil
		})
		if err != nil {
			return err
		}
	}

	m.logger.Debug("Bulk initialized progression records",
		zap.Uint64("guildID", guildID),
		zap.Int("members", len(memberIDs)))

	return nil
}
