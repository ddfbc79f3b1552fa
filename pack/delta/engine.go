package delta

import (
	"sync"

	"github.com/go-git/gopack/pack/object"
	"github.com/go-git/gopack/pack/odb"
	"github.com/go-git/gopack/pack/perr"
)

// Unpacked is a window slot: a candidate object's inflated payload plus
// its lazily-built delta index (spec.md §4.2 "per-engine transient
// state").
type Unpacked struct {
	Entry *object.Entry
	Data  []byte
	Index *Index
	Depth int
}

// Free releases a slot's payload and index, returning the number of
// bytes reclaimed so the caller can keep mem_usage in sync.
func (u *Unpacked) Free() int64 {
	if u.Entry == nil {
		return 0
	}
	var freed int64
	if u.Index != nil {
		freed += int64(u.Index.Size())
		u.Index = nil
	}
	if u.Data != nil {
		freed += int64(len(u.Data))
		u.Data = nil
	}
	u.Entry = nil
	u.Depth = 0
	return freed
}

// Cache tracks the global cached-delta-byte budget (spec.md §4.2
// delta_cacheable, §5 cache_mutex). One Cache is owned per Session
// (SPEC_FULL.md Open Question 2): sharing it across sessions would
// reintroduce the global-mutex design the spec flags as a wart.
type Cache struct {
	mu               sync.Mutex
	size             uint64
	maxSize          uint64
	maxSmallDelta    uint64
	bigFileThreshold uint64
}

// NewCache builds a Cache from the resolved pack.* configuration.
func NewCache(maxSize, maxSmallDelta, bigFileThreshold uint64) *Cache {
	return &Cache{maxSize: maxSize, maxSmallDelta: maxSmallDelta, bigFileThreshold: bigFileThreshold}
}

// Size returns the current cached-delta byte total.
func (c *Cache) Size() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// adjust adds delta (which may be negative) to the cache size under
// lock, used when acceptDelta drops a target's old cached bytes and
// when it caches the new ones.
func (c *Cache) adjust(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if delta < 0 && uint64(-delta) > c.size {
		c.size = 0
		return
	}
	c.size = uint64(int64(c.size) + delta)
}

// cacheable implements delta_cacheable (spec.md §4.2): true iff the
// cache-size budget admits deltaSize, and either deltaSize is small
// enough to always cache, or the base/target objects are large enough
// relative to the delta to be worth a cache slot.
func (c *Cache) cacheable(srcSize, trgSize, deltaSize int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize != 0 && c.size+uint64(deltaSize) > c.maxSize {
		return false
	}
	if uint64(deltaSize) < c.maxSmallDelta {
		return true
	}
	return (srcSize>>20)+(trgSize>>21) > (deltaSize >> 10)
}

// TryDelta attempts to encode trg as a delta against src, mutating trg's
// entry in place on acceptance. Returns:
//
//	ret > 0: a delta was accepted (trg.Entry now reflects it)
//	ret == 0: no delta was found or it wasn't profitable (not an error)
//	ret < 0: the pair has mismatched types; the caller should stop
//	         searching further sources for this target (spec.md §4.3)
//
// Ported function-for-function from libgit2's try_delta.
func TryDelta(db odb.Database, trg, src *Unpacked, maxDepth int, memUsage *int64, cache *Cache) (ret int, err error) {
	trgEntry, srcEntry := trg.Entry, src.Entry

	if trgEntry.Type != srcEntry.Type {
		return -1, nil
	}

	if src.Depth >= maxDepth {
		return 0, nil
	}

	var maxSize, refDepth int64
	if !trgEntry.HasDelta() {
		maxSize = trgEntry.Size/2 - 20
		refDepth = 1
	} else {
		maxSize = trgEntry.DeltaSize
		refDepth = int64(trg.Depth)
	}

	maxSize = maxSize * int64(maxDepth-src.Depth) / (int64(maxDepth) - refDepth + 1)
	if maxSize <= 0 {
		return 0, nil
	}

	srcSize, trgSize := srcEntry.Size, trgEntry.Size
	sizediff := int64(0)
	if trgSize > srcSize {
		sizediff = trgSize - srcSize
	}
	if sizediff >= maxSize {
		return 0, nil
	}
	if trgSize < srcSize/32 {
		return 0, nil
	}

	if trg.Data == nil {
		typ, data, rerr := db.ReadObject(trgEntry.ID)
		if rerr != nil {
			return 0, perr.Wrap(perr.InvalidObject, rerr).AddDetails("reading target %s", trgEntry.ID)
		}
		if int64(len(data)) != trgEntry.Size {
			return 0, perr.New(perr.InvalidObject, "inconsistent target object length").
				AddDetails("%s: want %d have %d", trgEntry.ID, trgEntry.Size, len(data))
		}
		_ = typ
		trg.Data = data
		*memUsage += int64(len(data))
	}
	if src.Data == nil {
		typ, data, rerr := db.ReadObject(srcEntry.ID)
		if rerr != nil {
			return 0, perr.Wrap(perr.InvalidObject, rerr).AddDetails("reading source %s", srcEntry.ID)
		}
		if int64(len(data)) != srcEntry.Size {
			return 0, perr.New(perr.InvalidObject, "inconsistent source object length").
				AddDetails("%s: want %d have %d", srcEntry.ID, srcEntry.Size, len(data))
		}
		_ = typ
		src.Data = data
		*memUsage += int64(len(data))
	}
	if src.Index == nil {
		src.Index = NewIndex(src.Data)
		*memUsage += int64(src.Index.Size())
	}

	deltaBuf, encErr := Encode(src.Index, src.Data, trg.Data, int(maxSize))
	if encErr != nil {
		// Over budget or no usable match: a heuristic miss, not an error.
		return 0, nil
	}
	deltaSize := int64(len(deltaBuf))

	if trgEntry.HasDelta() {
		// Prefer only strictly shallower same-sized deltas.
		if deltaSize == trgEntry.DeltaSize && src.Depth+1 >= trg.Depth {
			return 0, nil
		}
	}

	acceptDelta(trg, src, deltaBuf, deltaSize, cache)
	return 1, nil
}

// acceptDelta records the winning delta on trg's entry, advances trg's
// window-slot depth, and decides whether the encoded bytes are worth
// caching (spec.md §4.2 delta_cacheable) so the writer can reuse them
// instead of re-encoding at write time. The delta-forest
// DeltaChild/DeltaSibling links are rebuilt wholesale by the
// write-order planner from DeltaBase, not maintained incrementally
// here; chain depth itself is pure window bookkeeping and is not
// persisted on the entry at all.
func acceptDelta(trg, src *Unpacked, deltaBuf []byte, deltaSize int64, cache *Cache) {
	trgEntry, srcEntry := trg.Entry, src.Entry

	if old := trgEntry.DropCachedDelta(); old > 0 && cache != nil {
		cache.adjust(-old)
	}

	trgEntry.DeltaBase = srcEntry
	trgEntry.DeltaSize = deltaSize
	trg.Depth = src.Depth + 1

	if cache != nil && cache.cacheable(srcEntry.Size, trgEntry.Size, deltaSize) {
		trgEntry.DeltaBytes = deltaBuf
		cache.adjust(deltaSize)
	}
}
