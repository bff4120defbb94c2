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

// GuildConfigModel handles database operations for guild configurations.
type GuildConfigModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewGuildConfig creates a new guild configuration model instance.
func NewGuildConfig(db *bun.DB, logger *zap.Logger) *GuildConfigModel {
	return &GuildConfigModel{
		db:     db,
		logger: logger.Named("db_guild_config"),
	}
}

// Get returns a guild's configuration. A guild that was never configured
// gets an empty configuration, not an error, so callers can treat missing
// and unset the same way.
func (m *GuildConfigModel) Get(ctx context.Context, guildID uint64) (*types.GuildConfig, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.GuildConfig, error) {
		var config types.GuildConfig

		err := m.db.NewSelect().
			Model(&config).
			Where("guild_id = ?", guildID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &types.GuildConfig{GuildID: guildID}, nil
			}

			return nil, fmt.Errorf("failed to load guild config: %w", err)
		}

		return &config, nil
	})
}

// Upsert stores a guild's configuration, replacing any previous values.
func (m *GuildConfigModel) Upsert(ctx context.Context, config *types.GuildConfig) error {
	config.UpdatedAt = time.Now()

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(config).
			On("CONFLICT (guild_id) DO UPDATE").
			Set("welcome_channel_id = EXCLUDED.welcome_channel_id").
			Set("welcome_role_id = EXCLUDED.welcome_role_id").
			Set("level_channel_id = EXCLUDED.level_channel_id").
			Set("role_select_channel_id = EXCLUDED.role_select_channel_id").
			Set("selectable_role_ids = EXCLUDED.selectable_role_ids").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert guild config: %w", err)
		}

		m.logger.Debug("Updated guild config", zap.Uint64("guildID", config.GuildID))

		return nil
	})
}
