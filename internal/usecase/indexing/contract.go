package indexing

import (
	"context"

	"github.com/lgoty/benefitsearch/internal/domain/catalog"
	"github.com/lgoty/benefitsearch/internal/domain/entry"
)

// EntryStore persists search index entries keyed by record reference.
type EntryStore interface {
	Upsert(ctx context.Context, e entry.Entry) (entry.Entry, error)
	DeleteByRef(ctx context.Context, ref catalog.Ref) (int64, error)
}

// VectorIndex is the in-memory nearest-neighbor index.
type VectorIndex interface {
	AddItem(ctx context.Context, entryID int64, vec []float32) error
	RemoveDocument(ctx context.Context, entryID int64) error
}

// RecordEmbedder embeds the canonical text of a catalog record. It never fails.
type RecordEmbedder interface {
	GenerateForRecord(ctx context.Context, rec catalog.Record) []float32
}
