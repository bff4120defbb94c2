// Package guildstate holds an in-memory snapshot of guild, channel, role,
// and member metadata so the dashboard can answer queries without touching
// the Discord API. The gateway event handlers are the only writers; every
// other component reads copies.
package guildstate

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// deletedNamePrefix marks accounts Discord has deleted. Such placeholder
// members are excluded from rosters, counts, and leaderboards.
const deletedNamePrefix = "deleted_user"

// GuildSnapshot holds the display metadata of one guild.
type GuildSnapshot struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl,omitempty"`
}

// ChannelInfo holds the display metadata of one channel.
type ChannelInfo struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
	Type int    `json:"type"`
}

// RoleInfo holds the display metadata of one role.
type RoleInfo struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// MemberInfo resolves a member id to its display identity.
type MemberInfo struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Cache is the process-wide guild metadata cache. All state is guarded by a
// single mutex held only for the duration of a copy or replace, never across
// an external call, so a reader always observes a guild's channels, roles,
// and members from the same update.
type Cache struct {
	mu       sync.RWMutex
	guilds   map[uint64]GuildSnapshot
	channels map[uint64][]ChannelInfo
	roles    map[uint64][]RoleInfo
	members  map[uint64]map[uint64]MemberInfo
	logger   *zap.Logger
}

// NewCache creates an empty guild state cache.
func NewCache(logger *zap.Logger) *Cache {
	return &Cache{
		guilds:   make(map[uint64]GuildSnapshot),
		channels: make(map[uint64][]ChannelInfo),
		roles:    make(map[uint64][]RoleInfo),
		members:  make(map[uint64]map[uint64]MemberInfo),
		logger:   logger.Named("guild_cache"),
	}
}

// ReplaceAll atomically replaces the entire cache contents. Used after a
// full resynchronization when every guild is known again; on connector loss
// the caller simply does not invoke this, leaving the last-known-good
// snapshot in place.
func (c *Cache) ReplaceAll(
	guilds []GuildSnapshot,
	channels map[uint64][]ChannelInfo,
	roles map[uint64][]RoleInfo,
	members map[uint64]map[uint64]MemberInfo,
) {
	guildMap := make(map[uint64]GuildSnapshot, len(guilds))
	for _, guild := range guilds {
		guildMap[guild.ID] = guild
	}

	channelMap := make(map[uint64][]ChannelInfo, len(channels))
	for id, list := range channels {
		channelMap[id] = append([]ChannelInfo(nil), list...)
	}

	roleMap := make(map[uint64][]RoleInfo, len(roles))
	for id, list := range roles {
		roleMap[id] = append([]RoleInfo(nil), list...)
	}

	memberMap := make(map[uint64]map[uint64]MemberInfo, len(members))
	for id, guildMembers := range members {
		memberMap[id] = copyMembers(guildMembers)
	}

	c.mu.Lock()
	c.guilds = guildMap
	c.channels = channelMap
	c.roles = roleMap
	c.members = memberMap
	c.mu.Unlock()

	c.logger.Debug("Replaced guild cache", zap.Int("guilds", len(guildMap)))
}

// UpsertGuild atomically replaces all data for one guild, leaving every
// other guild untouched.
func (c *Cache) UpsertGuild(
	guild GuildSnapshot,
	channels []ChannelInfo,
	roles []RoleInfo,
	members map[uint64]MemberInfo,
) {
	channelCopy := append([]ChannelInfo(nil), channels...)
	roleCopy := append([]RoleInfo(nil), roles...)
	memberCopy := copyMembers(members)

	c.mu.Lock()
	c.guilds[guild.ID] = guild
	c.channels[guild.ID] = channelCopy
	c.roles[guild.ID] = roleCopy
	c.members[guild.ID] = memberCopy
	c.mu.Unlock()

	c.logger.Debug("Upserted guild in cache",
		zap.Uint64("guildID", guild.ID),
		zap.Int("members", len(memberCopy)))
}

// RemoveGuild atomically drops all data for one guild.
func (c *Cache) RemoveGuild(guildID uint64) {
	c.mu.Lock()
	delete(c.guilds, guildID)
	delete(c.channels, guildID)
	delete(c.roles, guildID)
	delete(c.members, guildID)
	c.mu.Unlock()

	c.logger.Debug("Removed guild from cache", zap.Uint64("guildID", guildID))
}

// SetMember records or refreshes one member's identity within a guild.
func (c *Cache) SetMember(guildID, memberID uint64, info MemberInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	guildMembers, ok := c.members[guildID]
	if !ok {
		guildMembers = make(map[uint64]MemberInfo)
		c.members[guildID] = guildMembers
	}

	guildMembers[memberID] = info
}

// RemoveMember drops one member from a guild's roster.
func (c *Cache) RemoveMember(guildID, memberID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if guildMembers, ok := c.members[guildID]; ok {
		delete(guildMembers, memberID)
	}
}

// Guilds returns a copy of all cached guild snapshots.
func (c *Cache) Guilds() []GuildSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	guilds := make([]GuildSnapshot, 0, len(c.guilds))
	for _, guild := range c.guilds {
		guilds = append(guilds, guild)
	}

	return guilds
}

// Guild returns one guild's snapshot if cached.
func (c *Cache) Guild(guildID uint64) (GuildSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	guild, ok := c.guilds[guildID]

	return guild, ok
}

// Channels returns a copy of one guild's channel list.
func (c *Cache) Channels(guildID uint64) []ChannelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]ChannelInfo(nil), c.channels[guildID]...)
}

// Roles returns a copy of one guild's role list.
func (c *Cache) Roles(guildID uint64) []RoleInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]RoleInfo(nil), c.roles[guildID]...)
}

// Members returns a copy of one guild's member roster.
func (c *Cache) Members(guildID uint64) map[uint64]MemberInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return copyMembers(c.members[guildID])
}

// GuildData bundles everything the cache knows about one guild, captured
// in a single critical section.
type GuildData struct {
	Guild    GuildSnapshot
	Channels []ChannelInfo
	Roles    []RoleInfo
	Members  map[uint64]MemberInfo
}

// Snapshot returns a consistent copy of all data for one guild. Unlike
// separate Channels/Roles/Members calls, the pieces are guaranteed to come
// from the same update.
func (c *Cache) Snapshot(guildID uint64) (GuildData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	guild, ok := c.guilds[guildID]
	if !ok {
		return GuildData{}, false
	}

	return GuildData{
		Guild:    guild,
		Channels: append([]ChannelInfo(nil), c.channels[guildID]...),
		Roles:    append([]RoleInfo(nil), c.roles[guildID]...),
		Members:  copyMembers(c.members[guildID]),
	}, true
}

// Member resolves one member's identity within a guild.
func (c *Cache) Member(guildID, memberID uint64) (MemberInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.members[guildID][memberID]

	return info, ok
}

// IsDeletedAccountName reports whether a display name denotes a
// platform-deleted placeholder account. The match is a case-insensitive
// prefix check so renamed variants like "Deleted_User_1234" are caught too.
func IsDeletedAccountName(name string) bool {
	if len(name) < len(deletedNamePrefix) {
		return false
	}

	return strings.EqualFold(name[:len(deletedNamePrefix)], deletedNamePrefix)
}

func copyMembers(members map[uint64]MemberInfo) map[uint64]MemberInfo {
	if members == nil {
		return map[uint64]MemberInfo{}
	}

	result := make(map[uint64]MemberInfo, len(members))
	for id, info := range members {
		result[id] = info
	}

	return result
}
