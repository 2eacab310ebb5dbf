// Package index owns the vector index over the catalog: building it against
// a snapshot fingerprint, persisting it for reuse across restarts, and
// swapping it atomically so readers never see a partial rebuild.
package index

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"bikeshop-agent/internal/catalog"
	agenterrors "bikeshop-agent/internal/common/errors"
	"bikeshop-agent/internal/common/logger"
	"bikeshop-agent/internal/common/metrics"
)

// Embedder is the embedding collaborator. The same implementation must serve
// index builds and query embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Entry pairs an item with its vector. ItemFingerprint lets an unchanged
// item keep its vector across rebuilds instead of re-embedding.
type Entry struct {
	ItemID          string    `json:"itemId"`
	ItemFingerprint string    `json:"itemFingerprint"`
	Vector          []float32 `json:"vector"`
}

// VectorIndex is an immutable build artifact. Entries follow catalog order.
type VectorIndex struct {
	Fingerprint string    `json:"fingerprint"`
	Model       string    `json:"model"`
	Dim         int       `json:"dim"`
	Entries     []Entry   `json:"entries"`
	BuiltAt     time.Time `json:"builtAt"`
}

// State is the atomically-swapped view served to readers.
type State struct {
	Index    *VectorIndex
	Snapshot *catalog.Snapshot
	// Fresh is false when the served index predates a known catalog
	// change (degraded mode).
	Fresh bool
}

// CatalogIndex coordinates rebuilds. It is the only component that mutates
// the persisted cache.
type CatalogIndex struct {
	mu       sync.Mutex // serializes rebuilds; readers go through current
	current  atomic.Pointer[State]
	embedder Embedder
	cache    *Cache
	logger   logger.Logger
}

func NewCatalogIndex(embedder Embedder, cacheDir string, log logger.Logger) *CatalogIndex {
	return &CatalogIndex{
		embedder: embedder,
		cache:    NewCache(cacheDir),
		logger:   log.WithFields(map[string]interface{}{"component": "catalog-index"}),
	}
}

// Current returns the last built state, if any. Callers must treat
// State.Fresh=false as degraded and warn the customer.
func (ci *CatalogIndex) Current() (*State, bool) {
	st := ci.current.Load()
	if st == nil {
		return nil, false
	}
	return st, true
}

// EnsureFresh returns an index matching the snapshot fingerprint. A matching
// fingerprint is a pure cache hit: no embedding work, no cache I/O. On a
// mismatch it rebuilds (reusing vectors of unchanged items), persists the
// artifact, and swaps it in with a single pointer update. If embedding is
// unavailable the previous index keeps serving in degraded mode and the
// error is surfaced to the caller.
func (ci *CatalogIndex) EnsureFresh(ctx context.Context, snap *catalog.Snapshot) (*VectorIndex, error) {
	if st := ci.current.Load(); st != nil && st.Index.Fingerprint == snap.Fingerprint && st.Index.Model == ci.embedder.Model() {
		return st.Index, nil
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()

	// Another rebuild may have finished while we waited for the lock.
	if st := ci.current.Load(); st != nil && st.Index.Fingerprint == snap.Fingerprint && st.Index.Model == ci.embedder.Model() {
		return st.Index, nil
	}

	if cached, err := ci.cache.Load(); err == nil && cached != nil &&
		cached.Fingerprint == snap.Fingerprint && cached.Model == ci.embedder.Model() {
		ci.swap(cached, snap)
		ci.logger.Info("vector index loaded from cache", map[string]interface{}{
			"items":       len(cached.Entries),
			"fingerprint": cached.Fingerprint,
		})
		return cached, nil
	}

	built, err := ci.build(ctx, snap)
	if err != nil {
		ci.markDegraded()
		return nil, err
	}

	if err := ci.cache.Save(built); err != nil {
		ci.logger.Warn("failed to persist index cache", map[string]interface{}{
			"error": err.Error(),
		})
	}

	ci.swap(built, snap)
	metrics.IndexRebuilds.Inc()
	metrics.CatalogItemsSkipped.Set(float64(snap.Skipped))

	ci.logger.Info("vector index rebuilt", map[string]interface{}{
		"items":        len(built.Entries),
		"skippedItems": snap.Skipped,
		"fingerprint":  built.Fingerprint,
	})

	return built, nil
}

func (ci *CatalogIndex) build(ctx context.Context, snap *catalog.Snapshot) (*VectorIndex, error) {
	reusable := make(map[string][]float32)
	if st := ci.current.Load(); st != nil && st.Index.Model == ci.embedder.Model() {
		for _, e := range st.Index.Entries {
			reusable[e.ItemFingerprint] = e.Vector
		}
	}

	idx := &VectorIndex{
		Fingerprint: snap.Fingerprint,
		Model:       ci.embedder.Model(),
		Entries:     make([]Entry, 0, len(snap.Items)),
		BuiltAt:     time.Now().UTC(),
	}

	for _, item := range snap.Items {
		fp := item.Fingerprint()

		vec, ok := reusable[fp]
		if !ok {
			var err error
			vec, err = ci.embedder.Embed(ctx, item.SearchText())
			if err != nil {
				return nil, agenterrors.NewRetrievalUnavailableError(err)
			}
		}

		if idx.Dim == 0 {
			idx.Dim = len(vec)
		}

		idx.Entries = append(idx.Entries, Entry{
			ItemID:          item.ID,
			ItemFingerprint: fp,
			Vector:          vec,
		})
	}

	return idx, nil
}

func (ci *CatalogIndex) swap(idx *VectorIndex, snap *catalog.Snapshot) {
	ci.current.Store(&State{Index: idx, Snapshot: snap, Fresh: true})
}

func (ci *CatalogIndex) markDegraded() {
	st := ci.current.Load()
	if st == nil || !st.Fresh {
		return
	}
	ci.current.Store(&State{Index: st.Index, Snapshot: st.Snapshot, Fresh: false})
}
