package events_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	botevents "github.com/rafaello-cc/levelbot/internal/bot/events"
	"github.com/rafaello-cc/levelbot/internal/database/types"
	"github.com/rafaello-cc/levelbot/internal/guildstate"
	"github.com/rafaello-cc/levelbot/internal/progression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]*types.MemberProgression
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*types.MemberProgression)}
}

func key(guildID, memberID uint64) string {
	return fmt.Sprintf("%d/%d", guildID, memberID)
}

func (s *fakeStore) put(record *types.MemberProgression) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key(record.GuildID, record.MemberID)] = record
}

func (s *fakeStore) get(guildID, memberID uint64) *types.MemberProgression {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key(guildID, memberID)]
	if !ok {
		return nil
	}

	copied := *record

	return &copied
}

func (s *fakeStore) GetOrCreate(_ context.Context, guildID, memberID uint64) (*types.MemberProgression, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key(guildID, memberID)]
	if !ok {
		record = &types.MemberProgression{GuildID: guildID, MemberID: memberID, Level: 1}
		s.records[key(guildID, memberID)] = record
	}

	copied := *record

	return &copied, nil
}

func (s *fakeStore) Update(
	_ context.Context, guildID, memberID uint64, fields types.ProgressionFields,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key(guildID, memberID)]
	if !ok {
		record = &types.MemberProgression{GuildID: guildID, MemberID: memberID, Level: 1}
		s.records[key(guildID, memberID)] = record
	}

	if fields.MessageCount != nil {
		record.MessageCount = *fields.MessageCount
	}

	if fields.XP != nil {
		record.XP = *fields.XP
	}

	if fields.DaysOnServer != nil {
		record.DaysOnServer = *fields.DaysOnServer
	}

	if fields.Level != nil {
		record.Level = *fields.Level
	}

	return nil
}

func (s *fakeStore) RaiseLevelIfHigher(_ context.Context, guildID, memberID uint64, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key(guildID, memberID)]
	if ok && level > record.Level {
		record.Level = level
	}

	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	levelUps []int
	welcomes []uint64
	roles    []uint64
}

func (n *fakeNotifier) NotifyLevelUp(_ context.Context, _, _ uint64, level int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.levelUps = append(n.levelUps, level)

	return nil
}

func (n *fakeNotifier) SendWelcome(_ context.Context, _, memberID uint64, _, _ string, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.welcomes = append(n.welcomes, memberID)

	return nil
}

func (n *fakeNotifier) GrantWelcomeRole(_ context.Context, _, memberID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.roles = append(n.roles, memberID)

	return nil
}

func newTestHandler(t *testing.T, store *fakeStore, notifier *fakeNotifier) (*botevents.ActivityHandler, *guildstate.Cache) {
	t.Helper()

	cache := guildstate.NewCache(zap.NewNop())
	handler := botevents.NewActivityHandler(store, notifier, cache, progression.NewRecordLock(), zap.NewNop())

	return handler, cache
}

func TestMessageIncrementsCountOnly(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	handler, _ := newTestHandler(t, store, notifier)

	require.NoError(t, handler.RecordMessage(context.Background(), 1, 10))

	record := store.get(1, 10)
	require.NotNil(t, record)
	assert.Equal(t, 1, record.MessageCount)
	// Message XP only accrues at the graduation level and above.
	assert.Equal(t, 0, record.XP)
	assert.Equal(t, 1, record.Level)
}

func TestMessageAddsXPAfterGraduation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.put(&types.MemberProgression{
		GuildID: 1, MemberID: 10,
		MessageCount: 60, XP: 100, Level: 5,
	})

	notifier := &fakeNotifier{}
	handler, _ := newTestHandler(t, store, notifier)

	require.NoError(t, handler.RecordMessage(context.Background(), 1, 10))

	record := store.get(1, 10)
	assert.Equal(t, 61, record.MessageCount)
	assert.Equal(t, 100+progression.MessageXP, record.XP)
}

func TestMessageLevelUpCrossingThreshold(t *testing.T) {
	t.Parallel()

	// One message of XP short of level 6.
	store := newFakeStore()
	store.put(&types.MemberProgression{
		GuildID: 1, MemberID: 10,
		MessageCount: 100, XP: progression.XPThreshold(6) - progression.MessageXP, Level: 5,
	})

	notifier := &fakeNotifier{}
	handler, _ := newTestHandler(t, store, notifier)

	require.NoError(t, handler.RecordMessage(context.Background(), 1, 10))

	record := store.get(1, 10)
	assert.Equal(t, 6, record.Level)
	assert.Equal(t, []int{6}, notifier.levelUps)
}

func TestMessageLevelUpBelowGraduationIsSilent(t *testing.T) {
	t.Parallel()

	// The 5th message crosses the level 2 threshold.
	store := newFakeStore()
	store.put(&types.MemberProgression{
		GuildID: 1, MemberID: 10,
		MessageCount: 4, Level: 1,
	})

	notifier := &fakeNotifier{}
	handler, _ := newTestHandler(t, store, notifier)

	require.NoError(t, handler.RecordMessage(context.Background(), 1, 10))

	record := store.get(1, 10)
	assert.Equal(t, 2, record.Level)
	assert.Empty(t, notifier.levelUps)
}

func TestMessageSkipRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		author discord.User
	}{
		{name: "bot author", author: discord.User{ID: snowflake.ID(10), Username: "helper", Bot: true}},
		{name: "system author", author: discord.User{ID: snowflake.ID(10), Username: "discord", System: true}},
		{name: "deleted account", author: discord.User{ID: snowflake.ID(10), Username: "Deleted_User_9f2c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			notifier := &fakeNotifier{}
			handler, _ := newTestHandler(t, store, notifier)

			handler.HandleMessage(context.Background(), 1, tt.author)

			assert.Nil(t, store.get(1, 10), "no record should be created")
		})
	}
}

// TestConcurrentMessagesBothCount drives two goroutines through the same
// record and asserts neither increment is lost.
func TestConcurrentMessagesBothCount(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	handler, _ := newTestHandler(t, store, notifier)

	const messages = 50

	var wg sync.WaitGroup

	for range messages {
		wg.Add(1)

		go func() {
			defer wg.Done()

			assert.NoError(t, handler.RecordMessage(context.Background(), 1, 10))
		}()
	}

	wg.Wait()

	record := store.get(1, 10)
	require.NotNil(t, record)
	assert.Equal(t, messages, record.MessageCount)
}

func TestMemberJoinCreatesRecordAndWelcomes(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	handler, cache := newTestHandler(t, store, notifier)

	user := discord.User{ID: snowflake.ID(10), Username: "alice"}
	handler.HandleMemberJoin(context.Background(), 1, user)

	record := store.get(1, 10)
	require.NotNil(t, record)
	assert.Equal(t, 1, record.Level)

	info, ok := cache.Member(1, 10)
	require.True(t, ok)
	assert.Equal(t, "alice", info.Name)

	assert.Equal(t, []uint64{10}, notifier.welcomes)
	assert.Equal(t, []uint64{10}, notifier.roles)
}

func TestMemberJoinKeepsExistingRecord(t *testing.T) {
	t.Parallel()

	// A rejoining member keeps their accumulated progress.
	store := newFakeStore()
	store.put(&types.MemberProgression{
		GuildID: 1, MemberID: 10,
		MessageCount: 120, XP: 700, Level: 6,
	})

	notifier := &fakeNotifier{}
	handler, _ := newTestHandler(t, store, notifier)

	handler.HandleMemberJoin(context.Background(), 1, discord.User{ID: snowflake.ID(10), Username: "alice"})

	record := store.get(1, 10)
	assert.Equal(t, 120, record.MessageCount)
	assert.Equal(t, 6, record.Level)
}

func TestMemberJoinSkipsBotsAndDeleted(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	handler, cache := newTestHandler(t, store, notifier)

	handler.HandleMemberJoin(context.Background(), 1, discord.User{ID: snowflake.ID(10), Username: "helper", Bot: true})
	handler.HandleMemberJoin(context.Background(), 1, discord.User{ID: snowflake.ID(11), Username: "deleted_user_42"})

	assert.Nil(t, store.get(1, 10))
	assert.Nil(t, store.get(1, 11))
	assert.Empty(t, notifier.welcomes)

	_, ok := cache.Member(1, 10)
	assert.False(t, ok)
}
