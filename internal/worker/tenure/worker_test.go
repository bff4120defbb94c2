package tenure_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rafaello-cc/levelbot/internal/database/types"
	"github.com/rafaello-cc/levelbot/internal/progression"
	"github.com/rafaello-cc/levelbot/internal/worker/core"
	"github.com/rafaello-cc/levelbot/internal/worker/tenure"
	"github.com/redis/rueidis"
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

func (s *fakeStore) GuildIDs(_ context.Context) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uint64]struct{})

	var ids []uint64

	for _, record := range s.records {
		if _, ok := seen[record.GuildID]; !ok {
			seen[record.GuildID] = struct{}{}
			ids = append(ids, record.GuildID)
		}
	}

	return ids, nil
}

func (s *fakeStore) ListByGuild(_ context.Context, guildID uint64) ([]*types.MemberProgression, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []*types.MemberProgression

	for _, record := range s.records {
		if record.GuildID == guildID {
			copied := *record
			records = append(records, &copied)
		}
	}

	return records, nil
}

func (s *fakeStore) Get(_ context.Context, guildID, memberID uint64) (*types.MemberProgression, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key(guildID, memberID)]
	if !ok {
		return nil, types.ErrNotFound
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

type notification struct {
	guildID  uint64
	memberID uint64
	level    int
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) NotifyLevelUp(_ context.Context, guildID, memberID uint64, level int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, notification{guildID: guildID, memberID: memberID, level: level})

	return nil
}

func (n *fakeNotifier) notifications() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]notification(nil), n.sent...)
}

func newTestWorker(t *testing.T, store *fakeStore, notifier *fakeNotifier) *tenure.Worker {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	reporter := core.NewStatusReporter(client, "tenure", zap.NewNop())

	return tenure.New(store, notifier, progression.NewRecordLock(), reporter, time.Hour, zap.NewNop())
}

func TestPassAdvancesDays(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.put(&types.MemberProgression{GuildID: 1, MemberID: 10, DaysOnServer: 4, XP: 30, Level: 1})

	notifier := &fakeNotifier{}
	worker := newTestWorker(t, store, notifier)

	require.NoError(t, worker.RunPass(context.Background()))

	record, err := store.Get(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, record.DaysOnServer)
	// Day 4 to 5 does not complete a two-day block, so no XP is paid out.
	assert.Equal(t, 30, record.XP)
}

func TestPassPaysTenureXPOnEvenDays(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.put(&types.MemberProgression{GuildID: 1, MemberID: 10, DaysOnServer: 5, XP: 30, Level: 1})

	notifier := &fakeNotifier{}
	worker := newTestWorker(t, store, notifier)

	require.NoError(t, worker.RunPass(context.Background()))

	record, err := store.Get(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 6, record.DaysOnServer)
	assert.Equal(t, 30+progression.TenureXPPerTwoDays, record.XP)
}

func TestPassRaisesLevelAndNotifiesPastGraduation(t *testing.T) {
	t.Parallel()

	// One XP short of level 6; the next two-day block pushes it over.
	xp := progression.XPThreshold(6) - 1

	store := newFakeStore()
	store.put(&types.MemberProgression{GuildID: 1, MemberID: 10, DaysOnServer: 85, XP: xp, Level: 5})

	notifier := &fakeNotifier{}
	worker := newTestWorker(t, store, notifier)

	require.NoError(t, worker.RunPass(context.Background()))

	record, err := store.Get(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 6, record.Level)

	sent := notifier.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, notification{guildID: 1, memberID: 10, level: 6}, sent[0])
}

func TestPassNeverLowersLevel(t *testing.T) {
	t.Parallel()

	// Stored level is far above what the counters justify.
	store := newFakeStore()
	store.put(&types.MemberProgression{GuildID: 1, MemberID: 10, DaysOnServer: 1, XP: 0, Level: 9})

	notifier := &fakeNotifier{}
	worker := newTestWorker(t, store, notifier)

	require.NoError(t, worker.RunPass(context.Background()))

	record, err := store.Get(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 9, record.Level)
	assert.Empty(t, notifier.notifications())
}

func TestPassSilentBelowGraduation(t *testing.T) {
	t.Parallel()

	// Enough tenure XP to move within the message regime mirror, but the
	// resulting level never clears the graduation bar.
	store := newFakeStore()
	store.put(&types.MemberProgression{GuildID: 1, MemberID: 10, DaysOnServer: 1, XP: 14, Level: 1})

	notifier := &fakeNotifier{}
	worker := newTestWorker(t, store, notifier)

	require.NoError(t, worker.RunPass(context.Background()))

	record, err := store.Get(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, record.Level, 1)
	assert.LessOrEqual(t, record.Level, progression.GraduationLevel)
	assert.Empty(t, notifier.notifications())
}

func TestPassCoversMultipleGuilds(t *testing.T) {
	t.Parallel()

	store := newFakeStore()

	for guildID := uint64(1); guildID <= 8; guildID++ {
		store.put(&types.MemberProgression{GuildID: guildID, MemberID: 10, DaysOnServer: 0, Level: 1})
	}

	notifier := &fakeNotifier{}
	worker := newTestWorker(t, store, notifier)

	require.NoError(t, worker.RunPass(context.Background()))

	for guildID := uint64(1); guildID <= 8; guildID++ {
		record, err := store.Get(context.Background(), guildID, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, record.DaysOnServer)
	}
}
