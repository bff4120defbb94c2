// Package handler implements the dashboard REST endpoints.
package handler

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/rafaello-cc/levelbot/internal/database"
	"github.com/rafaello-cc/levelbot/internal/database/types"
	"github.com/rafaello-cc/levelbot/internal/guildstate"
	restTypes "github.com/rafaello-cc/levelbot/internal/rest/types"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

var errBadGuildID = errors.New("invalid guild id")

// GuildHandler answers guild-level dashboard queries from the state cache
// and the guild configuration store.
type GuildHandler struct {
	db     database.Client
	cache  *guildstate.Cache
	logger *zap.Logger
}

// NewGuildHandler creates a new guild handler.
func NewGuildHandler(db database.Client, cache *guildstate.Cache, logger *zap.Logger) *GuildHandler {
	return &GuildHandler{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// ListGuilds returns every guild the bot currently serves.
func (h *GuildHandler) ListGuilds(w http.ResponseWriter, _ bunrouter.Request) error {
	guilds := h.cache.Guilds()

	sort.Slice(guilds, func(i, j int) bool { return guilds[i].ID < guilds[j].ID })

	summaries := make([]restTypes.GuildSummary, 0, len(guilds))
	for _, guild := range guilds {
		summaries = append(summaries, restTypes.GuildSummary{
			GuildSnapshot: guild,
			MemberCount:   len(h.cache.Members(guild.ID)),
		})
	}

	return bunrouter.JSON(w, summaries)
}

// GetGuild returns one guild's full dashboard view.
func (h *GuildHandler) GetGuild(w http.ResponseWriter, req bunrouter.Request) error {
	guildID, err := guildIDParam(req)
	if err != nil {
		http.Error(w, "Invalid guild id", http.StatusBadRequest)
		return nil
	}

	data, ok := h.cache.Snapshot(guildID)
	if !ok {
		http.Error(w, "Guild not found", http.StatusNotFound)
		return nil
	}

	return bunrouter.JSON(w, restTypes.GuildDetailResponse{
		Guild:    data.Guild,
		Channels: data.Channels,
		Roles:    data.Roles,
		Members:  len(data.Members),
	})
}

// GetChannels returns one guild's channel list.
func (h *GuildHandler) GetChannels(w http.ResponseWriter, req bunrouter.Request) error {
	guildID, err := guildIDParam(req)
	if err != nil {
		http.Error(w, "Invalid guild id", http.StatusBadRequest)
		return nil
	}

	return bunrouter.JSON(w, h.cache.Channels(guildID))
}

// GetRoles returns one guild's role list.
func (h *GuildHandler) GetRoles(w http.ResponseWriter, req bunrouter.Request) error {
	guildID, err := guildIDParam(req)
	if err != nil {
		http.Error(w, "Invalid guild id", http.StatusBadRequest)
		return nil
	}

	return bunrouter.JSON(w, h.cache.Roles(guildID))
}

// GetConfig returns one guild's bot configuration.
func (h *GuildHandler) GetConfig(w http.ResponseWriter, req bunrouter.Request) error {
	guildID, err := guildIDParam(req)
	if err != nil {
		http.Error(w, "Invalid guild id", http.StatusBadRequest)
		return nil
	}

	config, err := h.db.Model().GuildConfig().Get(req.Context(), guildID)
	if err != nil {
		h.logger.Error("Failed to load guild config", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	return bunrouter.JSON(w, config)
}

// SetConfig replaces one guild's bot configuration.
func (h *GuildHandler) SetConfig(w http.ResponseWriter, req bunrouter.Request) error {
	guildID, err := guildIDParam(req)
	if err != nil {
		http.Error(w, "Invalid guild id", http.StatusBadRequest)
		return nil
	}

	var body restTypes.GuildConfigRequest
	if err := decodeJSON(req, &body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil
	}

	roleIDs := make([]int64, len(body.SelectableRoleIDs))
	for i, id := range body.SelectableRoleIDs {
		roleIDs[i] = int64(id)
	}

	config := &types.GuildConfig{
		GuildID:             guildID,
		WelcomeChannelID:    body.WelcomeChannelID,
		WelcomeRoleID:       body.WelcomeRoleID,
		LevelChannelID:      body.LevelChannelID,
		RoleSelectChannelID: body.RoleSelectChannelID,
		SelectableRoleIDs:   roleIDs,
	}

	if err := h.db.Model().GuildConfig().Upsert(req.Context(), config); err != nil {
		h.logger.Error("Failed to store guild config", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	return bunrouter.JSON(w, config)
}

func guildIDParam(req bunrouter.Request) (uint64, error) {
	guildID, err := strconv.ParseUint(req.Param("id"), 10, 64)
	if err != nil || guildID == 0 {
		return 0, errBadGuildID
	}

	return guildID, nil
}
