package shard

import (
	"sync/atomic"

	"github.com/dreamware/kvcluster/internal/storage"
)

// Role distinguishes the two key sets a server holds.
type Role string

const (
	// RolePrimary holds the keys this server owns: owner(key) == self.
	RolePrimary Role = "primary"
	// RoleSecondary holds the backup of the predecessor shard's primary
	// set: owner(key) == primary_of(self).
	RoleSecondary Role = "secondary"
)

// Stats are monotonically increasing, lock-free operation counters.
type Stats struct {
	Gets    uint64
	Puts    uint64
	Deletes uint64
}

// Set is one of a server's two key sets (primary or secondary), backed by
// an in-memory Store plus per-key locks.
type Set struct {
	store storage.Store
	locks *storage.KeyLocker
	stats Stats

	// ShardID is the shard id this set is keyed by: self for the primary
	// set, primary_of(self) for the secondary set.
	ShardID int
	Role    Role
}

// NewSet creates an empty replica set for shardID in the given role.
func NewSet(shardID int, role Role) *Set {
	return &Set{
		store:   storage.NewMemoryStore(),
		locks:   storage.NewKeyLocker(),
		ShardID: shardID,
		Role:    role,
	}
}

// Get retrieves a value, counting the attempt regardless of outcome.
func (s *Set) Get(key string) ([]byte, error) {
	atomic.AddUint64(&s.stats.Gets, 1)
	return s.store.Get(key)
}

// Put inserts or overwrites a value, counting the operation.
func (s *Set) Put(key string, value []byte) error {
	atomic.AddUint64(&s.stats.Puts, 1)
	return s.store.Put(key, value)
}

// Delete removes a key if present; idempotent.
func (s *Set) Delete(key string) error {
	atomic.AddUint64(&s.stats.Deletes, 1)
	return s.store.Delete(key)
}

// ForEach iterates every (key, value) pair currently in the set, used by
// the recovery streaming path.
func (s *Set) ForEach(fn func(key string, value []byte) error) error {
	return s.store.ForEach(fn)
}

// Lock acquires key's per-key lock. The primary PUT path holds this across
// the synchronous forward to the secondary; nothing else should hold a Set
// lock across a suspension point that awaits a remote reply.
func (s *Set) Lock(key string) { s.locks.Lock(key) }

// Unlock releases key's per-key lock.
func (s *Set) Unlock(key string) { s.locks.Unlock(key) }

// Snapshot returns the current operation counters.
func (s *Set) Snapshot() Stats {
	return Stats{
		Gets:    atomic.LoadUint64(&s.stats.Gets),
		Puts:    atomic.LoadUint64(&s.stats.Puts),
		Deletes: atomic.LoadUint64(&s.stats.Deletes),
	}
}

// KeyCount reports how many keys the set currently holds.
func (s *Set) KeyCount() int {
	return s.store.Stats().Keys
}
