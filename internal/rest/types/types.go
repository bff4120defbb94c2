// Package types defines the REST API request and response shapes.
package types

import (
	"github.com/rafaello-cc/levelbot/internal/guildstate"
)

// GuildSummary is one entry of the guild list.
type GuildSummary struct {
	guildstate.GuildSnapshot

	MemberCount int `json:"memberCount"`
}

// GuildDetailResponse is the full dashboard view of one guild.
type GuildDetailResponse struct {
	Guild    guildstate.GuildSnapshot `json:"guild"`
	Channels []guildstate.ChannelInfo `json:"channels"`
	Roles    []guildstate.RoleInfo    `json:"roles"`
	Members  int                      `json:"members"`
}

// MemberEntry resolves a roster member for the dashboard.
type MemberEntry struct {
	ID uint64 `json:"id"`

	guildstate.MemberInfo
}

// LevelEntry is one row of the leaderboard.
type LevelEntry struct {
	MemberID     uint64 `json:"memberId"`
	Name         string `json:"name,omitempty"`
	Level        int    `json:"level"`
	XP           int    `json:"xp"`
	MessageCount int    `json:"messageCount"`
	DaysOnServer int    `json:"daysOnServer"`
}

// LevelsResponse is one page of the leaderboard.
type LevelsResponse struct {
	Total   int          `json:"total"`
	Entries []LevelEntry `json:"entries"`
}

// GuildConfigRequest carries a configuration update.
type GuildConfigRequest struct {
	WelcomeChannelID    uint64   `json:"welcomeChannelId"`
	WelcomeRoleID       uint64   `json:"welcomeRoleId"`
	LevelChannelID      uint64   `json:"levelChannelId"`
	RoleSelectChannelID uint64   `json:"roleSelectChannelId"`
	SelectableRoleIDs   []uint64 `json:"selectableRoleIds"`
}
