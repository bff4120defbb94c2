package types

import (
	"time"

	"github.com/uptrace/bun"
)

// MemberProgression tracks one member's accumulated activity in one guild.
// The level is derived from the counters but stored alongside them so that
// notification logic can compare against the last announced value. Records
// are never deleted; a member who leaves keeps their history.
type MemberProgression struct {
	bun.BaseModel `bun:"table:member_progressions"`

	GuildID      uint64    `bun:"guild_id,pk"                      json:"guildId"`
	MemberID     uint64    `bun:"member_id,pk"                     json:"memberId"`
	MessageCount int       `bun:"message_count,notnull,default:0"  json:"messageCount"`
	XP           int       `bun:"xp,notnull,default:0"             json:"xp"`
	DaysOnServer int       `bun:"days_on_server,notnull,default:0" json:"daysOnServer"`
	Level        int       `bun:"level,notnull,default:1"          json:"level"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"               json:"updatedAt"`
}

// ProgressionFields is a partial update of a progression record. Only
// non-nil fields are written; everything else is left untouched.
type ProgressionFields struct {
	MessageCount *int
	XP           *int
	DaysOnServer *int
	Level        *int
}
