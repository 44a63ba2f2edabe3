package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPutGet(t *testing.T) {
	s := NewSet(0, RolePrimary)
	require.NoError(t, s.Put("k", []byte("v")))

	value, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
}

func TestSetDeleteIsIdempotent(t *testing.T) {
	s := NewSet(0, RoleSecondary)
	require.NoError(t, s.Put("k", []byte("v")))
	require.NoError(t, s.Delete("k"))
	require.NoError(t, s.Delete("k"))

	_, err := s.Get("k")
	assert.Error(t, err)
}

func TestSetForEachVisitsEveryKey(t *testing.T) {
	s := NewSet(1, RolePrimary)
	want := map[string]string{"a": "1", "b": "2"}
	for k, v := range want {
		require.NoError(t, s.Put(k, []byte(v)))
	}

	seen := make(map[string]string)
	require.NoError(t, s.ForEach(func(key string, value []byte) error {
		seen[key] = string(value)
		return nil
	}))
	assert.Equal(t, want, seen)
}

func TestSetSnapshotCountsOperations(t *testing.T) {
	s := NewSet(0, RolePrimary)
	require.NoError(t, s.Put("a", []byte("1")))
	require.NoError(t, s.Put("b", []byte("2")))
	_, _ = s.Get("a")
	_, _ = s.Get("missing")
	require.NoError(t, s.Delete("a"))

	stats := s.Snapshot()
	assert.Equal(t, uint64(2), stats.Puts)
	assert.Equal(t, uint64(2), stats.Gets)
	assert.Equal(t, uint64(1), stats.Deletes)
}

func TestSetKeyCountReflectsLiveKeys(t *testing.T) {
	s := NewSet(0, RolePrimary)
	require.NoError(t, s.Put("a", []byte("1")))
	require.NoError(t, s.Put("b", []byte("2")))
	assert.Equal(t, 2, s.KeyCount())

	require.NoError(t, s.Delete("a"))
	assert.Equal(t, 1, s.KeyCount())
}

func TestSetLockSerializesSameKey(t *testing.T) {
	s := NewSet(0, RolePrimary)
	s.Lock("hot")
	defer s.Unlock("hot")

	done := make(chan struct{})
	go func() {
		s.Lock("hot")
		defer s.Unlock("hot")
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second locker acquired the key lock while the first still held it")
	default:
	}
}
