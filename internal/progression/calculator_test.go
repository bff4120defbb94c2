package progression_test

import (
	"testing"

	"github.com/rafaello-cc/levelbot/internal/progression"
	"github.com/stretchr/testify/assert"
)

func TestMessageThreshold(t *testing.T) {
	t.Parallel()

	t.Run("fixed points", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, 0, progression.MessageThreshold(0))
		assert.Equal(t, 0, progression.MessageThreshold(1))
		assert.Equal(t, 5, progression.MessageThreshold(2))
		assert.Equal(t, 15, progression.MessageThreshold(3))
		assert.Equal(t, 30, progression.MessageThreshold(4))
		assert.Equal(t, 50, progression.MessageThreshold(5))
	})

	t.Run("strictly increasing", func(t *testing.T) {
		t.Parallel()

		for level := 2; level <= 100; level++ {
			assert.Greater(t, progression.MessageThreshold(level), progression.MessageThreshold(level-1),
				"threshold must grow at level %d", level)
		}
	})
}

func TestXPThreshold(t *testing.T) {
	t.Parallel()

	t.Run("mirrors message thresholds below graduation", func(t *testing.T) {
		t.Parallel()

		for level := 0; level <= 5; level++ {
			assert.Equal(t, progression.MessageThreshold(level), progression.XPThreshold(level))
		}
	})

	t.Run("flat cost above graduation", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, 650, progression.XPThreshold(6))
		assert.Equal(t, progression.XPThreshold(5)+600, progression.XPThreshold(6))
		assert.Equal(t, 1250, progression.XPThreshold(7))
	})
}

func TestCalculate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		messageCount int
		xp           int
		days         int
		expected     int
	}{
		{
			name:     "zero activity floors at level 1",
			expected: 1,
		},
		{
			name:         "message regime below first threshold",
			messageCount: 4,
			expected:     1,
		},
		{
			name:         "message regime at second threshold",
			messageCount: 5,
			expected:     2,
		},
		{
			name:         "message regime just below graduation",
			messageCount: 49,
			expected:     4,
		},
		{
			name:         "exactly at graduation message threshold",
			messageCount: 50,
			expected:     5,
		},
		{
			name:         "many messages but no XP stays at graduation",
			messageCount: 5000,
			expected:     5,
		},
		{
			name:     "xp graduation with zero messages",
			xp:       650,
			expected: 6,
		},
		{
			name:     "xp just below level six",
			xp:       649,
			expected: 5,
		},
		{
			name:         "xp regime overrides low message count",
			messageCount: 3,
			xp:           1250,
			expected:     7,
		},
		{
			name:     "days alone never change the level",
			days:     10000,
			expected: 1,
		},
		{
			name:     "xp far beyond search bound caps at max level",
			xp:       progression.XPThreshold(progression.MaxLevel) + 1,
			expected: progression.MaxLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, progression.Calculate(tt.messageCount, tt.xp, tt.days))
		})
	}
}

func TestTenureXPGain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		oldDays  int
		newDays  int
		expected int
	}{
		{name: "no days pass", oldDays: 4, newDays: 4, expected: 0},
		{name: "odd to even completes a block", oldDays: 5, newDays: 6, expected: progression.TenureXPPerTwoDays},
		{name: "even to odd pays nothing", oldDays: 4, newDays: 5, expected: 0},
		{name: "two full blocks", oldDays: 0, newDays: 4, expected: 2 * progression.TenureXPPerTwoDays},
		{name: "first day on server", oldDays: 0, newDays: 1, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, progression.TenureXPGain(tt.oldDays, tt.newDays))
		})
	}
}

func TestCalculateDeterministic(t *testing.T) {
	t.Parallel()

	for i := range 100 {
		first := progression.Calculate(i*7, i*13, i)
		second := progression.Calculate(i*7, i*13, i)
		assert.Equal(t, first, second)
	}
}
