package search

import (
	"context"

	domcat "github.com/lgoty/benefitsearch/internal/domain/catalog"
	"github.com/lgoty/benefitsearch/internal/domain/entry"
	"github.com/lgoty/benefitsearch/internal/domain/query"
	"github.com/lgoty/benefitsearch/internal/vectorstore"
)

// Parser turns free text into a structured query. It never fails.
type Parser interface {
	Parse(ctx context.Context, text, userRegion string) query.Parsed
}

// QueryEmbedder embeds a search query. It never fails.
type QueryEmbedder interface {
	GenerateQuery(ctx context.Context, text string) []float32
}

// VectorIndex retrieves filtered nearest-neighbor entry ids.
type VectorIndex interface {
	Search(ctx context.Context, q []float32, filters query.Filters, topK int) ([]vectorstore.Hit, error)
}

// EntryReader resolves search index entries by id.
type EntryReader interface {
	GetMany(ctx context.Context, ids []int64) (map[int64]entry.Entry, error)
}

// RecordReader resolves active, non-deleted catalog records, scoped by kind.
type RecordReader interface {
	ActiveBenefits(ctx context.Context, ids []int64) (map[int64]*domcat.Benefit, error)
	ActiveOffers(ctx context.Context, ids []int64) (map[int64]*domcat.Offer, error)
}

// History is the per-user recent-search log.
type History interface {
	Append(ctx context.Context, userID string, item query.Recent) error
	List(ctx context.Context, userID string) ([]query.Recent, error)
}
