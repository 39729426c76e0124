package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"talky/internal/analytics"
	"talky/internal/core"
)

// Snapshot is one user's records and the report computed from them.
type Snapshot struct {
	Records  []core.ExpenseRecord
	Report   analytics.Report
	LoadedAt time.Time
}

// Loader fetches the user's full record set.
type Loader func(ctx context.Context, userID string) ([]core.ExpenseRecord, error)

// SnapshotCache memoizes snapshots per user. Concurrent misses for the same
// user share a single load.
type SnapshotCache struct {
	lru    *LRUCache[*Snapshot]
	group  singleflight.Group
	load   Loader
	engine *analytics.Engine
}

func NewSnapshotCache(size int, ttl time.Duration, engine *analytics.Engine, load Loader) *SnapshotCache {
	return &SnapshotCache{
		lru:    NewLRUCache[*Snapshot](size, ttl),
		load:   load,
		engine: engine,
	}
}

// loadTimeout bounds a shared load, which no longer follows any one caller.
const loadTimeout = 30 * time.Second

// Get returns the cached snapshot or loads and aggregates a fresh one. The
// load is shared by concurrent callers and survives the cancellation of the
// caller that started it; a cancelled caller returns its own context error.
func (s *SnapshotCache) Get(ctx context.Context, userID string) (*Snapshot, error) {
	if snap, ok := s.lru.Get(userID); ok {
		return snap, nil
	}
	ch := s.group.DoChan(userID, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		recs, err := s.load(loadCtx, userID)
		if err != nil {
			return nil, err
		}
		snap := &Snapshot{Records: recs, Report: s.engine.Report(recs), LoadedAt: time.Now()}
		s.lru.Set(userID, snap)
		return snap, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("load snapshot: %w", res.Err)
		}
		return res.Val.(*Snapshot), nil
	}
}

// Invalidate drops the user's snapshot, e.g. after new records arrive.
func (s *SnapshotCache) Invalidate(userID string) { s.lru.Delete(userID) }

func (s *SnapshotCache) CleanExpired() int { return s.lru.CleanExpired() }

func (s *SnapshotCache) Size() int { return s.lru.Size() }
