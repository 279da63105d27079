// Package vectorstore is an in-memory inner-product index over search index
// entry embeddings, persisted to disk as an index file plus an id mapping.
//
// Positions are append-only; removing an entry rebuilds the whole index from
// the entry table, which is O(N) per delete. This is fine for catalogs of a few
// tens of thousands of records and is the first thing to replace beyond that.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lgoty/benefitsearch/internal/domain"
	"github.com/lgoty/benefitsearch/internal/domain/entry"
	"github.com/lgoty/benefitsearch/internal/domain/query"
)

// entrySource is the consumer interface over the search index entry table (ISP).
type entrySource interface {
	ListIndexable(ctx context.Context) ([]entry.Entry, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]entry.Entry, error)
}

// Config controls index shape, persistence and candidate retrieval.
type Config struct {
	// Dir holds the two persisted artifacts. Empty disables persistence.
	Dir string
	// Dimension of every vector.
	Dimension int
	// OversampleRatio multiplies top_k for the first candidate window.
	OversampleRatio int
	// Widen doubles the candidate window until top_k hits survive filtering
	// or the index is exhausted. When false only the first window is scanned.
	Widen bool
}

// Metrics are optional collectors; nil fields are skipped.
type Metrics struct {
	Vectors  prometheus.Gauge
	State    *prometheus.GaugeVec
	Rebuilds *prometheus.CounterVec
	Rounds   prometheus.Histogram
}

// Hit is one search result.
type Hit struct {
	EntryID int64
	Score   float32
}

// Store is safe for concurrent use. The index and the id mapping are always
// mutated together under mu.
type Store struct {
	cfg     Config
	src     entrySource
	metrics Metrics
	logger  *zap.Logger

	state  atomic.Int32
	initMu sync.Mutex // serializes initialization and rebuilds

	mu      sync.RWMutex
	vectors []float32 // len(ids) * dim, row-major
	ids     []int64

	persistMu sync.Mutex
}

// New creates a store in StateEmpty. It performs no I/O.
func New(cfg Config, src entrySource, m Metrics, logger *zap.Logger) *Store {
	if cfg.OversampleRatio <= 0 {
		cfg.OversampleRatio = domain.DefaultVectorConfig().OversampleRatio
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = domain.DefaultVectorConfig().Dimensions
	}
	s := &Store{cfg: cfg, src: src, metrics: m, logger: logger}
	s.setState(StateEmpty)
	return s
}

// State returns the current lifecycle state.
func (s *Store) State() State { return State(s.state.Load()) }

// StateName returns the current state as a string.
func (s *Store) StateName() string { return s.State().String() }

// Degraded reports whether the entry table was unreachable at the last initialization or rebuild.
func (s *Store) Degraded() bool { return s.State() == StateDegraded }

// Size returns the number of positions in the index.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// IDs returns a copy of the position to entry id mapping.
func (s *Store) IDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int64(nil), s.ids...)
}

// EnsureInitialized loads the index on first use: from disk if both artifacts
// are present and consistent, else by rebuilding from the entry table, else
// it degrades to an empty index. It never returns an error.
func (s *Store) EnsureInitialized(ctx context.Context) {
	if st := s.State(); st == StateReady || st == StateDegraded {
		return
	}
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if st := s.State(); st == StateReady || st == StateDegraded {
		return
	}

	s.setState(StateLoading)
	// An aborted load leaves the store retryable instead of stuck in Loading.
	defer func() {
		if s.State() == StateLoading {
			s.setState(StateEmpty)
		}
	}()
	if s.loadFromDisk() {
		s.setState(StateReady)
		return
	}
	if _, err := s.rebuildLocked(ctx); err != nil {
		s.logger.Warn("Vector store initialized empty", zap.Error(err))
	}
}

func (s *Store) loadFromDisk() bool {
	if s.cfg.Dir == "" {
		return false
	}
	snap, err := readSnapshot(s.cfg.Dir, s.cfg.Dimension)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Discarding persisted vector index", zap.String("dir", s.cfg.Dir), zap.Error(err))
		}
		return false
	}
	s.mu.Lock()
	s.vectors, s.ids = snap.vectors, snap.ids
	s.mu.Unlock()
	s.observeSize(len(snap.ids))
	s.logger.Info("Vector index loaded from disk", zap.Int("vectors", len(snap.ids)))
	return true
}

// Rebuild replaces the index with every active entry that has an embedding
// and persists both artifacts. On a backing store failure the index is
// emptied, the state becomes Degraded and the error is returned.
func (s *Store) Rebuild(ctx context.Context) (int, error) {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	return s.rebuildLocked(ctx)
}

func (s *Store) rebuildLocked(ctx context.Context) (int, error) {
	entries, err := s.src.ListIndexable(ctx)
	if err != nil {
		s.mu.Lock()
		s.vectors, s.ids = nil, nil
		s.mu.Unlock()
		s.observeSize(0)
		s.setState(StateDegraded)
		s.incRebuild("error")
		return 0, fmt.Errorf("rebuild vector index: %w", err)
	}

	dim := s.cfg.Dimension
	vectors := make([]float32, 0, len(entries)*dim)
	ids := make([]int64, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if len(e.Embedding()) != dim {
			s.logger.Warn("Skipping entry with wrong embedding dimension",
				zap.Int64("entry_id", e.ID()), zap.Int("got", len(e.Embedding())), zap.Int("want", dim))
			continue
		}
		vectors = append(vectors, e.Embedding()...)
		ids = append(ids, e.ID())
	}

	s.mu.Lock()
	s.vectors, s.ids = vectors, ids
	s.mu.Unlock()
	s.observeSize(len(ids))
	s.setState(StateReady)
	s.incRebuild("ok")
	s.persist()

	s.logger.Info("Vector index rebuilt", zap.Int("vectors", len(ids)))
	return len(ids), nil
}

// AddItem appends a position for entryID and persists the index.
// Earlier positions of the same id are left in place and collapsed at search time.
func (s *Store) AddItem(ctx context.Context, entryID int64, vec []float32) error {
	if len(vec) != s.cfg.Dimension {
		return fmt.Errorf("add entry %d: %w: got %d, want %d", entryID, domain.ErrDimensionMismatch, len(vec), s.cfg.Dimension)
	}
	s.EnsureInitialized(ctx)

	// Held so an append cannot be lost to a concurrent rebuild swapping the slices.
	s.initMu.Lock()
	if s.State() == StateDegraded {
		// The entry table answered the caller, so a rebuild picks this entry up.
		if _, err := s.rebuildLocked(ctx); err == nil {
			s.initMu.Unlock()
			return nil
		}
	}
	s.mu.Lock()
	s.vectors = append(s.vectors, vec...)
	s.ids = append(s.ids, entryID)
	n := len(s.ids)
	s.mu.Unlock()
	s.initMu.Unlock()

	s.observeSize(n)
	s.persist()
	return nil
}

// RemoveDocument drops an entry by rebuilding the index from the entry table.
func (s *Store) RemoveDocument(ctx context.Context, entryID int64) error {
	n, err := s.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("remove entry %d: %w", entryID, err)
	}
	s.logger.Debug("Vector index rebuilt after removal", zap.Int64("entry_id", entryID), zap.Int("vectors", n))
	return nil
}

// Search returns up to topK entry hits ordered by descending inner product.
// Candidates are re-validated against the live entry table and filters, so
// stale positions and superseded duplicates never leak into results. Under
// strict filters fewer than topK hits may be returned.
func (s *Store) Search(ctx context.Context, q []float32, filters query.Filters, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	if len(q) != s.cfg.Dimension {
		return nil, fmt.Errorf("search: %w: got %d, want %d", domain.ErrDimensionMismatch, len(q), s.cfg.Dimension)
	}
	s.EnsureInitialized(ctx)

	if s.Size() == 0 {
		if _, err := s.Rebuild(ctx); err != nil {
			s.logger.Warn("Rebuild of empty vector index failed", zap.Error(err))
			return nil, nil
		}
	}

	ranked := s.rank(q)
	if len(ranked) == 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, topK)
	seen := make(map[int64]struct{}, topK)
	start, window, rounds := 0, topK*s.cfg.OversampleRatio, 0
	for start < len(ranked) && len(hits) < topK {
		rounds++
		end := min(window, len(ranked))
		var err error
		hits, err = s.collect(ctx, ranked[start:end], filters, topK, seen, hits)
		if err != nil {
			s.logger.Warn("Vector search candidate lookup failed", zap.Error(err))
			break
		}
		if !s.cfg.Widen {
			break
		}
		start, window = end, window*2
	}
	if s.metrics.Rounds != nil {
		s.metrics.Rounds.Observe(float64(rounds))
	}
	return hits, nil
}

// rank scores every position and returns them best first.
func (s *Store) rank(q []float32) []Hit {
	s.mu.RLock()
	dim := s.cfg.Dimension
	ranked := make([]Hit, len(s.ids))
	for i, id := range s.ids {
		ranked[i] = Hit{EntryID: id, Score: domain.Dot(q, s.vectors[i*dim:(i+1)*dim])}
	}
	s.mu.RUnlock()

	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].Score > ranked[b].Score })
	return ranked
}

// collect validates one window of candidates, appending survivors to hits.
// The first (best) position of each id wins; later ones are skipped via seen.
func (s *Store) collect(
	ctx context.Context, window []Hit, filters query.Filters, topK int, seen map[int64]struct{}, hits []Hit,
) ([]Hit, error) {
	var candidates []Hit
	ids := make([]int64, 0, len(window))
	for _, h := range window {
		if _, dup := seen[h.EntryID]; dup {
			continue
		}
		seen[h.EntryID] = struct{}{}
		candidates = append(candidates, h)
		ids = append(ids, h.EntryID)
	}
	if len(ids) == 0 {
		return hits, nil
	}

	entries, err := s.src.GetMany(ctx, ids)
	if err != nil {
		return hits, fmt.Errorf("load candidate entries: %w", err)
	}
	for _, h := range candidates {
		e, ok := entries[h.EntryID]
		if !ok || !filters.Matches(&e) {
			continue
		}
		hits = append(hits, h)
		if len(hits) == topK {
			break
		}
	}
	return hits, nil
}

func (s *Store) persist() {
	if s.cfg.Dir == "" {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	snap := snapshot{
		generation: uint64(time.Now().UnixNano()),
		dim:        s.cfg.Dimension,
		vectors:    append([]float32(nil), s.vectors...),
		ids:        append([]int64(nil), s.ids...),
	}
	s.mu.RUnlock()

	if err := writeSnapshot(s.cfg.Dir, snap); err != nil {
		s.logger.Warn("Failed to persist vector index", zap.String("dir", s.cfg.Dir), zap.Error(err))
	}
}

func (s *Store) setState(st State) {
	s.state.Store(int32(st))
	if s.metrics.State == nil {
		return
	}
	for _, x := range States() {
		v := 0.0
		if x == st {
			v = 1
		}
		s.metrics.State.WithLabelValues(x.String()).Set(v)
	}
}

func (s *Store) observeSize(n int) {
	if s.metrics.Vectors != nil {
		s.metrics.Vectors.Set(float64(n))
	}
}

func (s *Store) incRebuild(result string) {
	if s.metrics.Rebuilds != nil {
		s.metrics.Rebuilds.WithLabelValues(result).Inc()
	}
}
