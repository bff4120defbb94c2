// Package rest serves the dashboard API used to inspect guilds,
// leaderboards, and job health, and to manage per-guild configuration.
package rest

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rafaello-cc/levelbot/internal/database"
	"github.com/rafaello-cc/levelbot/internal/guildstate"
	"github.com/rafaello-cc/levelbot/internal/rest/handler"
	"github.com/rafaello-cc/levelbot/internal/worker/core"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// Server implements the dashboard API service.
type Server struct {
	guildHandler  *handler.GuildHandler
	memberHandler *handler.MemberHandler
	jobHandler    *handler.JobHandler
}

// NewServer creates the dashboard API handler.
func NewServer(
	db database.Client,
	cache *guildstate.Cache,
	monitor *core.Monitor,
	logger *zap.Logger,
) http.Handler {
	server := &Server{
		guildHandler:  handler.NewGuildHandler(db, cache, logger),
		memberHandler: handler.NewMemberHandler(db, cache, logger),
		jobHandler:    handler.NewJobHandler(monitor, logger),
	}

	router := bunrouter.New()

	router.WithGroup("/v1", func(g *bunrouter.Group) {
		g.GET("/guilds", server.guildHandler.ListGuilds)
		g.GET("/guilds/:id", server.guildHandler.GetGuild)
		g.GET("/guilds/:id/channels", server.guildHandler.GetChannels)
		g.GET("/guilds/:id/roles", server.guildHandler.GetRoles)
		g.GET("/guilds/:id/config", server.guildHandler.GetConfig)
		g.PUT("/guilds/:id/config", server.guildHandler.SetConfig)
		g.GET("/guilds/:id/members", server.memberHandler.ListMembers)
		g.GET("/guilds/:id/members/:memberId", server.memberHandler.GetMember)
		g.GET("/guilds/:id/levels", server.memberHandler.GetLevels)
		g.GET("/jobs", server.jobHandler.ListJobs)
	})

	// Add gzip compression
	return gzhttp.GzipHandler(router)
}
