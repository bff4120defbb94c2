package events

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/rafaello-cc/levelbot/internal/guildstate"
	"go.uber.org/zap"
)

// GuildStore seeds progression records for guild rosters.
type GuildStore interface {
	BulkInitialize(ctx context.Context, guildID uint64, memberIDs []uint64) error
}

// GuildEventHandler keeps the guild state cache synchronized with the
// gateway and seeds progression records when guilds become available.
type GuildEventHandler struct {
	cache  *guildstate.Cache
	store  GuildStore
	logger *zap.Logger
}

// NewGuildEventHandler creates a new instance of the guild event handler.
func NewGuildEventHandler(cache *guildstate.Cache, store GuildStore, logger *zap.Logger) *GuildEventHandler {
	return &GuildEventHandler{
		cache:  cache,
		store:  store,
		logger: logger.Named("guild_events"),
	}
}

// OnGuildReady refreshes the cache for a guild once its gateway data has
// arrived and seeds progression records for its roster.
func (h *GuildEventHandler) OnGuildReady(event *events.GuildReady) {
	h.syncGuild(event.GenericEvent, event.Guild)
}

// OnGuildsReady logs that the initial guild synchronization is complete.
func (h *GuildEventHandler) OnGuildsReady(_ *events.GuildsReady) {
	h.logger.Info("All guilds ready", zap.Int("cached", len(h.cache.Guilds())))
}

// OnGuildJoin handles the event when the bot joins a new guild.
func (h *GuildEventHandler) OnGuildJoin(event *events.GuildJoin) {
	h.logger.Info("Bot joined a new guild",
		zap.String("guildID", event.Guild.ID.String()),
		zap.String("guildName", event.Guild.Name))

	h.syncGuild(event.GenericEvent, event.Guild)

	// Register commands for this specific guild
	if err := h.registerGuildCommands(event); err != nil {
		h.logger.Error("Failed to register guild commands",
			zap.String("guildID", event.Guild.ID.String()),
			zap.Error(err))
	}
}

// OnGuildLeave drops the guild from the cache. Progression records are
// kept in case the bot is re-invited.
func (h *GuildEventHandler) OnGuildLeave(event *events.GuildLeave) {
	h.cache.RemoveGuild(uint64(event.Guild.ID))
	h.logger.Info("Bot left guild", zap.String("guildID", event.Guild.ID.String()))
}

// syncGuild rebuilds one guild's cache entry from the client caches and
// seeds progression records for every eligible member.
func (h *GuildEventHandler) syncGuild(event *events.GenericEvent, guild discord.Guild) {
	caches := event.Client().Caches()
	guildID := uint64(guild.ID)

	snapshot := guildstate.GuildSnapshot{
		ID:   guildID,
		Name: guild.Name,
	}
	if iconURL := guild.IconURL(); iconURL != nil {
		snapshot.IconURL = *iconURL
	}

	var channels []guildstate.ChannelInfo

	caches.ChannelsForEach(func(channel discord.GuildChannel) {
		if channel.GuildID() != guild.ID {
			return
		}

		channels = append(channels, guildstate.ChannelInfo{
			ID:   uint64(channel.ID()),
			Name: channel.Name(),
			Type: int(channel.Type()),
		})
	})

	var roles []guildstate.RoleInfo

	caches.RolesForEach(guild.ID, func(role discord.Role) {
		roles = append(roles, guildstate.RoleInfo{
			ID:   uint64(role.ID),
			Name: role.Name,
		})
	})

	members := make(map[uint64]guildstate.MemberInfo)
	memberIDs := make([]uint64, 0)

	caches.MembersForEach(guild.ID, func(member discord.Member) {
		if member.User.Bot || guildstate.IsDeletedAccountName(member.User.Username) {
			return
		}

		memberID := uint64(member.User.ID)
		members[memberID] = guildstate.MemberInfo{
			Name:      member.User.Username,
			AvatarURL: member.User.EffectiveAvatarURL(),
		}
		memberIDs = append(memberIDs, memberID)
	})

	h.cache.UpsertGuild(snapshot, channels, roles, members)

	if err := h.store.BulkInitialize(context.Background(), guildID, memberIDs); err != nil {
		h.logger.Error("Failed to seed progression records",
			zap.Uint64("guildID", guildID),
			zap.Error(err))

		return
	}

	h.logger.Debug("Synchronized guild",
		zap.Uint64("guildID", guildID),
		zap.Int("members", len(memberIDs)))
}

// registerGuildCommands registers the bot's commands for a specific guild.
func (h *GuildEventHandler) registerGuildCommands(event *events.GuildJoin) error {
	_, err := event.Client().Rest().SetGuildCommands(event.Client().ApplicationID(), event.Guild.ID, Commands())
	if err != nil {
		return fmt.Errorf("failed to register guild commands: %w", err)
	}

	h.logger.Debug("Successfully registered guild commands",
		zap.String("guildID", event.Guild.ID.String()))

	return nil
}
