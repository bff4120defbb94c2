package migrations

import (
	"context"
	"fmt"

	"github.com/rafaello-cc/levelbot/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.MemberProgression)(nil),
			(*types.GuildConfig)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
		}

		// Leaderboard pages sort by level within a guild.
		_, err := db.NewCreateIndex().
			Model((*types.MemberProgression)(nil)).
			Index("idx_member_progressions_guild_level").
			IfNotExists().
			Column("guild_id").
			ColumnExpr("level DESC").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create leaderboard index: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for _, table := range []string{"member_progressions", "guild_configs"} {
			_, err := db.NewDropTable().
				Table(table).
				IfExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table %s: %w", table, err)
			}
		}

		return nil
	})
}
