package store

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// dirtyState tracks what needs flushing for a single document.
type dirtyState struct {
	flushedDeltas int   // number of deltas already in the backing store
	created       bool  // doc created locally but not yet in backing store
	inactive      []int // base versions to mark inactive in the backing store
}

func (ds *dirtyState) clean() bool {
	return !ds.created && len(ds.inactive) == 0
}

// CachedStore wraps a backing DocumentStore with an in-memory cache.
// All reads and writes are served from the cache. Dirty documents are
// flushed to the backing store periodically in the background.
type CachedStore struct {
	cache         *MemoryStore
	backing       DocumentStore
	logger        *slog.Logger
	mu            sync.Mutex
	dirty         map[string]*dirtyState
	flushInterval time.Duration
	stop          chan struct{}
	done          chan struct{}
}

// NewCachedStore creates a CachedStore that caches in memory and flushes
// dirty documents to the backing store every flushInterval.
func NewCachedStore(backing DocumentStore, flushInterval time.Duration) *CachedStore {
	cs := &CachedStore{
		cache:         NewMemoryStore(),
		backing:       backing,
		logger:        slog.Default().With("component", "cached-store"),
		dirty:         make(map[string]*dirtyState),
		flushInterval: flushInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go cs.flushLoop()
	return cs
}

func (cs *CachedStore) Create(ctx context.Context, id, content string) error {
	if err := cs.cache.Create(ctx, id, content); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.dirty[id] = &dirtyState{created: true}
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) Get(ctx context.Context, id string) (*DocumentInfo, error) {
	info, err := cs.cache.Get(ctx, id)
	if err == nil {
		return info, nil
	}
	// Cache miss: load from backing store.
	if err := cs.loadFromBacking(ctx, id); err != nil {
		return nil, err
	}
	return cs.cache.Get(ctx, id)
}

func (cs *CachedStore) List(ctx context.Context) ([]DocumentInfo, error) {
	return cs.backing.List(ctx)
}

func (cs *CachedStore) AppendDelta(ctx context.Context, id string, rec DeltaRecord) error {
	// Ensure doc is in cache.
	if _, err := cs.Get(ctx, id); err != nil {
		return err
	}

	// Snapshot the log length before append so we know how many deltas were
	// already flushed if this doc was previously clean (removed from dirty map).
	prevLen := cs.cachedLen(id)

	if err := cs.cache.AppendDelta(ctx, id, rec); err != nil {
		return err
	}
	cs.mu.Lock()
	if cs.dirty[id] == nil {
		cs.dirty[id] = &dirtyState{flushedDeltas: prevLen}
	}
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) GetDeltas(ctx context.Context, id string, fromVersion int) ([]DeltaRecord, error) {
	if _, err := cs.Get(ctx, id); err != nil {
		return nil, err
	}
	return cs.cache.GetDeltas(ctx, id, fromVersion)
}

// MarkInactive marks the deltas in the cache and queues the marks for the
// backing store. Marks for deltas that are not flushed yet are applied once
// the delta itself has been flushed.
func (cs *CachedStore) MarkInactive(ctx context.Context, id string, baseVersions ...int) error {
	if _, err := cs.Get(ctx, id); err != nil {
		return err
	}
	prevLen := cs.cachedLen(id)
	if err := cs.cache.MarkInactive(ctx, id, baseVersions...); err != nil {
		return err
	}
	cs.mu.Lock()
	ds := cs.dirty[id]
	if ds == nil {
		ds = &dirtyState{flushedDeltas: prevLen}
		cs.dirty[id] = ds
	}
	ds.inactive = append(ds.inactive, baseVersions...)
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) cachedLen(id string) int {
	cs.cache.mu.RLock()
	defer cs.cache.mu.RUnlock()
	if rec, ok := cs.cache.docs[id]; ok {
		return len(rec.deltas)
	}
	return 0
}

// loadFromBacking loads a document and its deltas from the backing store
// into the cache. It sets flushedDeltas so that already-persisted deltas are
// not re-flushed.
func (cs *CachedStore) loadFromBacking(ctx context.Context, id string) error {
	info, err := cs.backing.Get(ctx, id)
	if err != nil {
		return err
	}
	recs, err := cs.backing.GetDeltas(ctx, id, 0)
	if err != nil {
		return err
	}

	// Write directly into cache's internal map.
	cs.cache.mu.Lock()
	if _, exists := cs.cache.docs[id]; !exists {
		cs.cache.docs[id] = &docRecord{
			info:   *info,
			deltas: recs,
		}
	}
	cs.cache.mu.Unlock()

	cs.mu.Lock()
	if cs.dirty[id] == nil {
		cs.dirty[id] = &dirtyState{flushedDeltas: len(recs)}
	}
	cs.mu.Unlock()

	return nil
}

func (cs *CachedStore) flushLoop() {
	ticker := time.NewTicker(cs.flushInterval)
	defer ticker.Stop()
	defer close(cs.done)

	for {
		select {
		case <-ticker.C:
			cs.flush()
		case <-cs.stop:
			cs.flush()
			return
		}
	}
}

// flush writes all dirty documents to the backing store.
func (cs *CachedStore) flush() {
	cs.mu.Lock()
	// Snapshot the dirty map and work on a copy.
	snapshot := make(map[string]*dirtyState, len(cs.dirty))
	for id, ds := range cs.dirty {
		cp := *ds
		cp.inactive = slices.Clone(ds.inactive)
		snapshot[id] = &cp
	}
	cs.mu.Unlock()

	ctx := context.Background()

	for id, ds := range snapshot {
		cs.cache.mu.RLock()
		rec, ok := cs.cache.docs[id]
		if !ok {
			cs.cache.mu.RUnlock()
			continue
		}
		info := rec.info
		total := len(rec.deltas)
		var pending []DeltaRecord
		if ds.flushedDeltas < total {
			pending = make([]DeltaRecord, total-ds.flushedDeltas)
			copy(pending, rec.deltas[ds.flushedDeltas:])
		}
		cs.cache.mu.RUnlock()

		// 1. Create doc in backing store if needed.
		if ds.created {
			if err := cs.backing.Create(ctx, id, info.Content); err != nil {
				cs.logger.Error("create in backing store", "doc", id, "err", err)
				continue
			}
			ds.created = false
		}

		// 2. Flush new deltas in order.
		for _, rec := range pending {
			if err := cs.backing.AppendDelta(ctx, id, rec); err != nil {
				cs.logger.Error("flush delta", "doc", id, "version", rec.Delta.BaseVersion, "err", err)
				// Stop flushing this doc; retried next cycle.
				break
			}
			ds.flushedDeltas++
		}

		// 3. Flush inactive marks for deltas the backing store has.
		var marks, later []int
		flushedUpTo := -1
		if ds.flushedDeltas > 0 {
			cs.cache.mu.RLock()
			flushedUpTo = cs.cache.docs[id].deltas[ds.flushedDeltas-1].Delta.BaseVersion
			cs.cache.mu.RUnlock()
		}
		for _, v := range ds.inactive {
			if v <= flushedUpTo {
				marks = append(marks, v)
			} else {
				later = append(later, v)
			}
		}
		sent := len(ds.inactive)
		if len(marks) > 0 {
			if err := cs.backing.MarkInactive(ctx, id, marks...); err != nil {
				cs.logger.Error("flush inactive marks", "doc", id, "err", err)
				sent = 0
			}
		}

		// Update the authoritative dirty state.
		cs.mu.Lock()
		cur := cs.dirty[id]
		if cur != nil {
			cur.flushedDeltas = ds.flushedDeltas
			cur.created = ds.created
			if sent > 0 {
				// Keep marks queued after the snapshot plus those whose
				// delta is not flushed yet.
				cur.inactive = append(later, cur.inactive[sent:]...)
			}
			if cur.clean() {
				// Re-check the log length; new deltas may have arrived.
				if cs.cachedLen(id) <= cur.flushedDeltas {
					delete(cs.dirty, id)
				}
			}
		}
		cs.mu.Unlock()
	}
}

// Close signals the flush loop to perform a final flush and waits for it
// to complete.
func (cs *CachedStore) Close() {
	close(cs.stop)
	<-cs.done
}
