package schedule

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"

	"github.com/go-git/gopack/pack/delta"
	"github.com/go-git/gopack/pack/object"
)

type fakeDB struct {
	data map[plumbing.Hash][]byte
}

func (d *fakeDB) ReadHeader(id plumbing.Hash) (plumbing.ObjectType, int64, error) {
	b, ok := d.data[id]
	if !ok {
		return plumbing.InvalidObject, 0, fmt.Errorf("missing %s", id)
	}
	return plumbing.BlobObject, int64(len(b)), nil
}

func (d *fakeDB) ReadObject(id plumbing.Hash) (plumbing.ObjectType, []byte, error) {
	b, ok := d.data[id]
	if !ok {
		return plumbing.InvalidObject, nil, fmt.Errorf("missing %s", id)
	}
	return plumbing.BlobObject, b, nil
}

// buildFamily returns n entries that are all near-duplicates of a base
// blob with a small per-revision suffix, the way successive commits of
// the same file would look.
func buildFamily(db *fakeDB, n int) []*object.Entry {
	base := bytes.Repeat([]byte("line of repeated content used to pad this blob out. "), 30)
	entries := make([]*object.Entry, 0, n)
	for i := 0; i < n; i++ {
		data := append(append([]byte{}, base...), []byte(fmt.Sprintf("revision marker %d", i))...)
		id := plumbing.ComputeHash(plumbing.BlobObject, data)
		db.data[id] = data
		entries = append(entries, &object.Entry{
			ID:       id,
			Type:     plumbing.BlobObject,
			Size:     int64(len(data)),
			NameHash: 42,
		})
	}
	return entries
}

func TestRunFindsDeltasWithinWindow(t *testing.T) {
	db := &fakeDB{data: map[plumbing.Hash][]byte{}}
	entries := buildFamily(db, 6)

	cache := delta.NewCache(1<<20, 1000, 1<<20)
	win := NewWindow(8)
	require.NoError(t, Run(db, entries, win, 10, cache, 0))

	deltified := 0
	for _, e := range entries {
		if e.HasDelta() {
			deltified++
		}
	}
	require.Greater(t, deltified, 0)
}

func TestRunParallelFindsDeltas(t *testing.T) {
	db := &fakeDB{data: map[plumbing.Hash][]byte{}}
	entries := buildFamily(db, 40)

	cache := delta.NewCache(1<<20, 1000, 1<<20)
	opts := ParallelOptions{Threads: 4, Window: 8, MaxDepth: 10}
	require.NoError(t, RunParallel(db, entries, opts, cache))

	deltified := 0
	for _, e := range entries {
		if e.HasDelta() {
			deltified++
		}
	}
	require.Greater(t, deltified, 0)
}

// TestRunOneCarriesMemUsageAcrossCalls drives runOne the way runWorker
// does: one entry per call against a persistent memUsage accumulator.
// window_memory_limit (spec.md §5 scenario S4) only holds if load from
// every still-resident slot is visible to the eviction check on every
// call, not just load read within the current call.
func TestRunOneCarriesMemUsageAcrossCalls(t *testing.T) {
	db := &fakeDB{data: map[plumbing.Hash][]byte{}}
	entries := buildFamily(db, 20)

	cache := delta.NewCache(1<<20, 1000, 1<<20)
	win := NewWindow(16)

	var memUsage int64
	memLimit := entries[0].Size * 2

	for _, e := range entries {
		require.NoError(t, runOne(db, e, win, 10, &memUsage, cache, memLimit))
	}

	require.LessOrEqual(t, memUsage, memLimit)

	var resident int64
	for i := range win.slots {
		resident += int64(len(win.slots[i].Data))
	}
	require.LessOrEqual(t, resident, memLimit+entries[0].Size,
		"eviction must see load accumulated across every runOne call, not just the current one")
}

func TestRunParallelSingleThreadFallsBackToRun(t *testing.T) {
	db := &fakeDB{data: map[plumbing.Hash][]byte{}}
	entries := buildFamily(db, 5)

	cache := delta.NewCache(1<<20, 1000, 1<<20)
	opts := ParallelOptions{Threads: 1, Window: 8, MaxDepth: 10}
	require.NoError(t, RunParallel(db, entries, opts, cache))

	deltified := 0
	for _, e := range entries {
		if e.HasDelta() {
			deltified++
		}
	}
	require.Greater(t, deltified, 0)
}
