// Package indexing keeps search index entries and the vector store in step with catalog mutations.
package indexing

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/lgoty/benefitsearch/internal/domain"
	"github.com/lgoty/benefitsearch/internal/domain/catalog"
	"github.com/lgoty/benefitsearch/internal/domain/entry"
	"github.com/lgoty/benefitsearch/internal/metrics"
)

const (
	actionUpsert = "upsert"
	actionRemove = "remove"

	resultOK    = "ok"
	resultNoop  = "noop"
	resultError = "error"
)

// Synchronizer reacts to catalog mutations. Failures are logged and counted,
// never returned: a catalog write must succeed even when indexing lags.
type Synchronizer struct {
	entries EntryStore
	index   VectorIndex
	embed   RecordEmbedder
	logger  *zap.Logger
}

// New creates a synchronizer.
func New(entries EntryStore, index VectorIndex, embed RecordEmbedder, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{entries: entries, index: index, embed: embed, logger: logger}
}

// OnBenefitSaved handles a created or updated benefit.
func (s *Synchronizer) OnBenefitSaved(ctx context.Context, b *catalog.Benefit) { s.OnSaved(ctx, b) }

// OnOfferSaved handles a created or updated offer.
func (s *Synchronizer) OnOfferSaved(ctx context.Context, o *catalog.Offer) { s.OnSaved(ctx, o) }

// OnSaved upserts the entry of a non-expired record and appends its vector.
// An expired record is handled like a deletion.
func (s *Synchronizer) OnSaved(ctx context.Context, rec catalog.Record) {
	ref := rec.Ref()
	if rec.Facets().Status.IsExpired() {
		s.OnDeleted(ctx, ref)
		return
	}

	vec := s.embed.GenerateForRecord(ctx, rec)
	saved, err := s.entries.Upsert(ctx, entry.FromRecord(rec, vec))
	if err != nil {
		s.fail(ref, actionUpsert, "Upsert index entry failed", err)
		return
	}

	if !saved.Active() {
		// Inactive entries are filtered at search time; the next rebuild drops their positions.
		s.done(ref, actionUpsert, resultNoop)
		return
	}

	if err := s.index.AddItem(ctx, saved.ID(), saved.Embedding()); err != nil {
		s.fail(ref, actionUpsert, "Add vector failed", err)
		return
	}

	s.logger.Debug("Index entry saved",
		zap.Stringer("ref", ref),
		zap.Int64("entry_id", saved.ID()),
		zap.Bool("zero_vector", domain.IsZeroVector(vec)),
	)
	s.done(ref, actionUpsert, resultOK)
}

// OnDeleted removes the entry of a deleted or expired record and rebuilds the vector store.
func (s *Synchronizer) OnDeleted(ctx context.Context, ref catalog.Ref) {
	id, err := s.entries.DeleteByRef(ctx, ref)
	if err != nil {
		s.fail(ref, actionRemove, "Delete index entry failed", err)
		return
	}
	if id == 0 {
		s.done(ref, actionRemove, resultNoop)
		return
	}

	if err := s.index.RemoveDocument(ctx, id); err != nil {
		s.fail(ref, actionRemove, "Remove vector failed", err)
		return
	}

	s.logger.Debug("Index entry removed", zap.Stringer("ref", ref), zap.Int64("entry_id", id))
	s.done(ref, actionRemove, resultOK)
}

func (s *Synchronizer) done(ref catalog.Ref, action, result string) {
	metrics.IndexSyncEventsTotal.WithLabelValues(string(ref.Kind()), action, result).Inc()
}

func (s *Synchronizer) fail(ref catalog.Ref, action, msg string, err error) {
	fields := []zap.Field{zap.Stringer("ref", ref), zap.String("action", action), zap.Error(err)}
	if errors.Is(err, domain.ErrStoreNotReady) {
		s.logger.Warn(msg+", store not ready", fields...)
	} else {
		s.logger.Error(msg, fields...)
	}
	s.done(ref, action, resultError)
}
