// Package progression implements the level math that maps accumulated
// activity counters to a member level.
//
// Progression has two regimes. Levels below 5 are earned by raw message
// count against a triangular threshold curve. Once a member's cumulative XP
// reaches the level-5 threshold they graduate to XP-based progression, where
// every level above 5 costs a flat amount of XP. The graduation check is on
// XP rather than message count so that tenure XP alone can carry a member
// past level 5.
package progression

const (
	// GraduationLevel is the level at which progression switches from
	// message-count thresholds to cumulative XP.
	GraduationLevel = 5

	// MaxLevel caps the XP-based level search.
	MaxLevel = 999

	// XPPerLevel is the flat XP cost of each level above GraduationLevel.
	XPPerLevel = 600

	// TenureXPPerTwoDays is the XP awarded for every two full days of
	// guild membership.
	TenureXPPerTwoDays = 15

	// MessageXP is the XP awarded per message once a member has graduated.
	MessageXP = 10
)

// TenureXPGain returns the XP earned by moving from oldDays to newDays of
// tenure. The award is computed on completed two-day blocks, so advancing a
// single day only pays out on every other day.
func TenureXPGain(oldDays, newDays int) int {
	return (newDays/2)*TenureXPPerTwoDays - (oldDays/2)*TenureXPPerTwoDays
}

// MessageThreshold returns the cumulative message count required to reach
// the given level. Level 1 and below require nothing; above that the
// requirement grows as a scaled triangular sequence (level 5 costs 50).
func MessageThreshold(level int) int {
	if level <= 1 {
		return 0
	}

	return 5 * (level - 1) * level / 2
}

// XPThreshold returns the cumulative XP required to reach the given level.
// Up to the graduation level it mirrors MessageThreshold; above it every
// level costs a flat XPPerLevel on top of the graduation threshold.
func XPThreshold(level int) int {
	if level <= GraduationLevel {
		return MessageThreshold(level)
	}

	return MessageThreshold(GraduationLevel) + (level-GraduationLevel)*XPPerLevel
}

// LevelFromXP returns the level implied by cumulative XP alone. It is the
// single source of truth for levels at and above the graduation level.
func LevelFromXP(xp int) int {
	for level := GraduationLevel; level < MaxLevel+1; level++ {
		if xp < XPThreshold(level) {
			return level - 1
		}
	}

	return MaxLevel
}

// Calculate maps raw activity counters to a level. It is pure and total:
// identical inputs always produce identical outputs and the result stays
// within [1, MaxLevel] for non-negative inputs.
//
// daysOnServer does not feed the calculation directly; tenure is rewarded
// as XP by the tenure job before this function ever sees it.
func Calculate(messageCount, xp, _ int) int {
	// Members whose XP already meets the graduation threshold are always
	// measured by XP, even if their message count is low. This prevents a
	// tenure-funded member from being knocked back into the message regime.
	if xp >= XPThreshold(GraduationLevel) {
		return LevelFromXP(xp)
	}

	if messageCount < MessageThreshold(GraduationLevel) {
		for level := 1; level <= GraduationLevel; level++ {
			if messageCount < MessageThreshold(level) {
				return level - 1
			}
		}

		return GraduationLevel - 1
	}

	// Message count has met the graduation threshold but XP has not caught
	// up yet, so the XP search floors at the graduation level itself.
	return max(GraduationLevel, LevelFromXP(xp))
}
