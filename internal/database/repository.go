package database

import (
	"github.com/rafaello-cc/levelbot/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	progression *models.ProgressionModel
	guildConfig *models.GuildConfigModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		progression: models.NewProgression(db, logger),
		guildConfig: models.NewGuildConfig(db, logger),
	}
}

// Progression returns the member progression model repository.
func (r *Repository) Progression() *models.ProgressionModel {
	return r.progression
}

// GuildConfig returns the guild configuration model repository.
func (r *Repository) GuildConfig() *models.GuildConfigModel {
	return r.guildConfig
}
