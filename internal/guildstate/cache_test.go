package guildstate_test

import (
	"sync"
	"testing"

	"github.com/rafaello-cc/levelbot/internal/guildstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) *guildstate.Cache {
	t.Helper()

	return guildstate.NewCache(zap.NewNop())
}

func testGuildData(id uint64, suffix string) (guildstate.GuildSnapshot, []guildstate.ChannelInfo, []guildstate.RoleInfo, map[uint64]guildstate.MemberInfo) {
	guild := guildstate.GuildSnapshot{ID: id, Name: "guild-" + suffix}
	channels := []guildstate.ChannelInfo{{ID: id*10 + 1, Name: "general-" + suffix}}
	roles := []guildstate.RoleInfo{{ID: id*10 + 2, Name: "role-" + suffix}}
	members := map[uint64]guildstate.MemberInfo{
		id*10 + 3: {Name: "member-" + suffix},
	}

	return guild, channels, roles, members
}

func TestUpsertAndReadGuild(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)
	guild, channels, roles, members := testGuildData(1, "a")
	cache.UpsertGuild(guild, channels, roles, members)

	got, ok := cache.Guild(1)
	require.True(t, ok)
	assert.Equal(t, "guild-a", got.Name)
	assert.Equal(t, channels, cache.Channels(1))
	assert.Equal(t, roles, cache.Roles(1))
	assert.Equal(t, members, cache.Members(1))

	info, ok := cache.Member(1, 13)
	require.True(t, ok)
	assert.Equal(t, "member-a", info.Name)
}

func TestReadsReturnCopies(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)
	guild, channels, roles, members := testGuildData(1, "a")
	cache.UpsertGuild(guild, channels, roles, members)

	// Mutating returned values must not leak back into the cache.
	gotChannels := cache.Channels(1)
	gotChannels[0].Name = "corrupted"

	gotMembers := cache.Members(1)
	gotMembers[13] = guildstate.MemberInfo{Name: "corrupted"}

	assert.Equal(t, "general-a", cache.Channels(1)[0].Name)
	info, _ := cache.Member(1, 13)
	assert.Equal(t, "member-a", info.Name)
}

func TestReplaceAll(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)
	guildA, channelsA, rolesA, membersA := testGuildData(1, "a")
	cache.UpsertGuild(guildA, channelsA, rolesA, membersA)

	guildB, channelsB, rolesB, membersB := testGuildData(2, "b")
	cache.ReplaceAll(
		[]guildstate.GuildSnapshot{guildB},
		map[uint64][]guildstate.ChannelInfo{2: channelsB},
		map[uint64][]guildstate.RoleInfo{2: rolesB},
		map[uint64]map[uint64]guildstate.MemberInfo{2: membersB},
	)

	_, ok := cache.Guild(1)
	assert.False(t, ok, "replaced guild must be gone")

	got, ok := cache.Guild(2)
	require.True(t, ok)
	assert.Equal(t, "guild-b", got.Name)
	assert.Empty(t, cache.Channels(1))
}

func TestRemoveGuild(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)
	guild, channels, roles, members := testGuildData(1, "a")
	cache.UpsertGuild(guild, channels, roles, members)
	cache.RemoveGuild(1)

	_, ok := cache.Guild(1)
	assert.False(t, ok)
	assert.Empty(t, cache.Channels(1))
	assert.Empty(t, cache.Roles(1))
	assert.Empty(t, cache.Members(1))
}

func TestMemberUpdates(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)
	guild, channels, roles, members := testGuildData(1, "a")
	cache.UpsertGuild(guild, channels, roles, members)

	cache.SetMember(1, 99, guildstate.MemberInfo{Name: "newcomer"})
	info, ok := cache.Member(1, 99)
	require.True(t, ok)
	assert.Equal(t, "newcomer", info.Name)

	cache.RemoveMember(1, 99)
	_, ok = cache.Member(1, 99)
	assert.False(t, ok)

	// Setting a member for an unknown guild creates the roster lazily.
	cache.SetMember(7, 1, guildstate.MemberInfo{Name: "drifter"})
	info, ok = cache.Member(7, 1)
	require.True(t, ok)
	assert.Equal(t, "drifter", info.Name)
}

func TestIsDeletedAccountName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "deleted placeholder", input: "deleted_user_1234", expected: true},
		{name: "mixed case placeholder", input: "Deleted_User_9f2c", expected: true},
		{name: "exact prefix only", input: "deleted_user", expected: true},
		{name: "regular name", input: "Alice", expected: false},
		{name: "prefix in the middle", input: "not_deleted_user", expected: false},
		{name: "empty name", input: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, guildstate.IsDeletedAccountName(tt.input))
		})
	}
}

// TestConcurrentUpsertConsistency drives readers against a writer flipping
// guild 1 between two full snapshots. Every read must observe matching
// channel and role generations, never a mix.
func TestConcurrentUpsertConsistency(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)

	oldGuild, oldChannels, oldRoles, oldMembers := testGuildData(1, "old")
	newGuild, newChannels, newRoles, newMembers := testGuildData(1, "new")
	cache.UpsertGuild(oldGuild, oldChannels, oldRoles, oldMembers)

	var wg sync.WaitGroup

	stop := make(chan struct{})

	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := range 500 {
			if i%2 == 0 {
				cache.UpsertGuild(newGuild, newChannels, newRoles, newMembers)
			} else {
				cache.UpsertGuild(oldGuild, oldChannels, oldRoles, oldMembers)
			}
		}
		close(stop)
	}()

	for range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for {
				select {
				case <-stop:
					return
				default:
				}

				data, ok := cache.Snapshot(1)
				if !assert.True(t, ok) {
					return
				}

				if assert.Len(t, data.Channels, 1) && assert.Len(t, data.Roles, 1) {
					// All pieces must come from the same generation.
					guildGen := data.Guild.Name[len("guild-"):]
					channelGen := data.Channels[0].Name[len("general-"):]
					roleGen := data.Roles[0].Name[len("role-"):]
					assert.Equal(t, channelGen, roleGen, "mixed snapshot observed")
					assert.Equal(t, guildGen, channelGen, "mixed snapshot observed")
				}
			}
		}()
	}

	wg.Wait()
}
