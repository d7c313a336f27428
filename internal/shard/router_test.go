package shard

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sirclappington/enq/internal/store"
	"github.com/sirclappington/enq/internal/store/memstore"
)

func TestRouterIsStableAcrossLookups(t *testing.T) {
	r, err := NewRouter(map[string]store.Store{
		"shard-a": memstore.New(),
		"shard-b": memstore.New(),
		"shard-c": memstore.New(),
	})
	require.NoError(t, err)

	_, first := r.Store("orders")
	for i := 0; i < 10; i++ {
		_, name := r.Store("orders")
		require.Equal(t, first, name, "the same queue name must always route to the same shard")
	}
}

func TestRouterDistributesAcrossShards(t *testing.T) {
	stores := map[string]store.Store{
		"shard-a": memstore.New(),
		"shard-b": memstore.New(),
		"shard-c": memstore.New(),
	}
	r, err := NewRouter(stores)
	require.NoError(t, err)

	seen := map[string]int{}
	for i := 0; i < 300; i++ {
		_, name := r.Store(fmt.Sprintf("queue-%d", i))
		seen[name]++
	}
	require.Len(t, seen, 3, "with enough distinct queue names every shard should receive at least one")
}

func TestAddShardOnlyRemapsAMinority(t *testing.T) {
	r, err := NewRouter(map[string]store.Store{
		"shard-a": memstore.New(),
		"shard-b": memstore.New(),
	})
	require.NoError(t, err)

	before := map[string]string{}
	for i := 0; i < 200; i++ {
		name := fmt.Sprintf("queue-%d", i)
		_, shard := r.Store(name)
		before[name] = shard
	}

	require.NoError(t, r.AddShard("shard-c", memstore.New()))

	moved := 0
	for name, prevShard := range before {
		_, shard := r.Store(name)
		if shard != prevShard {
			moved++
		}
	}
	// Rendezvous hashing's guarantee: adding the Nth shard remaps
	// roughly 1/N of keys, never all of them.
	require.Less(t, moved, len(before)/2)
}

func TestRemoveShardUnknownErrors(t *testing.T) {
	r, err := NewRouter(map[string]store.Store{"shard-a": memstore.New()})
	require.NoError(t, err)
	require.Error(t, r.RemoveShard("shard-missing"))
}

func TestAddShardDuplicateErrors(t *testing.T) {
	r, err := NewRouter(map[string]store.Store{"shard-a": memstore.New()})
	require.NoError(t, err)
	require.Error(t, r.AddShard("shard-a", memstore.New()))
}

func TestNewRouterRequiresAtLeastOneShard(t *testing.T) {
	_, err := NewRouter(map[string]store.Store{})
	require.Error(t, err)
}
