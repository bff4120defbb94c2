package progression

import "sync"

// recordLockShards is a power of two so the shard index reduces to a mask.
const recordLockShards = 64

// RecordLock serializes updates to a single progression record. Counter
// updates are read-modify-write sequences that span a database round trip,
// so two events for the same (guild, member) pair must not interleave or
// one increment is lost. Locking is sharded by a hash of the key pair to
// keep unrelated members from contending on a single mutex.
type RecordLock struct {
	shards [recordLockShards]sync.Mutex
}

// NewRecordLock creates a new record lock.
func NewRecordLock() *RecordLock {
	return &RecordLock{}
}

// Lock acquires the shard guarding the given record and returns the
// matching unlock function.
func (l *RecordLock) Lock(guildID, memberID uint64) func() {
	shard := &l.shards[shardIndex(guildID, memberID)]
	shard.Lock()

	return shard.Unlock
}

// shardIndex mixes both ids so that members of the same guild spread
// across shards.
func shardIndex(guildID, memberID uint64) uint64 {
	h := guildID*0x9e3779b97f4a7c15 ^ memberID
	h ^= h >> 33

	return h & (recordLockShards - 1)
}
