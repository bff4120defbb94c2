package types

import (
	"time"

	"github.com/uptrace/bun"
)

// GuildConfig holds the per-guild bot configuration set through the
// administrative dashboard. A zero channel or role id means "not
// configured" and the matching side effect is skipped.
type GuildConfig struct {
	bun.BaseModel `bun:"table:guild_configs"`

	GuildID             uint64    `bun:"guild_id,pk"                     json:"guildId"`
	WelcomeChannelID    uint64    `bun:"welcome_channel_id,nullzero"     json:"welcomeChannelId"`
	WelcomeRoleID       uint64    `bun:"welcome_role_id,nullzero"        json:"welcomeRoleId"`
	LevelChannelID      uint64    `bun:"level_channel_id,nullzero"       json:"levelChannelId"`
	RoleSelectChannelID uint64    `bun:"role_select_channel_id,nullzero" json:"roleSelectChannelId"`
	SelectableRoleIDs   []int64   `bun:"selectable_role_ids,array"       json:"selectableRoleIds"`
	UpdatedAt           time.Time `bun:"updated_at,notnull"              json:"updatedAt"`
}

// SelectableRoles returns the self-service role ids as unsigned snowflakes.
func (c *GuildConfig) SelectableRoles() []uint64 {
	roles := make([]uint64, len(c.SelectableRoleIDs))
	for i, id := range c.SelectableRoleIDs {
		roles[i] = uint64(id)
	}

	return roles
}
