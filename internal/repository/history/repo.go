// Package history keeps a bounded per-user list of recent searches in Redis.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lgoty/benefitsearch/internal/domain"
	"github.com/lgoty/benefitsearch/internal/domain/query"
)

var keyPrefix = domain.KeyPrefix + "recent:"

// DefaultLimit is the number of searches kept per user.
const DefaultLimit = 20

// store is the consumer interface for list operations (ISP).
type store interface {
	PushCapped(ctx context.Context, key string, value []byte, limit int) error
	Range(ctx context.Context, key string, start, stop int64) ([][]byte, error)
}

type itemDTO struct {
	Query  string `json:"query"`
	Intent string `json:"intent"`
	At     int64  `json:"at"`
}

// Repo stores recent searches newest first.
type Repo struct {
	store store
	limit int
}

// New creates a history repository. limit <= 0 falls back to DefaultLimit.
func New(s store, limit int) *Repo {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Repo{store: s, limit: limit}
}

// Append records a search and drops the oldest entries beyond the limit.
func (r *Repo) Append(ctx context.Context, userID string, item query.Recent) error {
	if userID == "" {
		return fmt.Errorf("append recent search: %w", domain.ErrInvalidRequest)
	}
	data, err := json.Marshal(itemDTO{
		Query:  item.Query,
		Intent: string(item.Intent),
		At:     item.At.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal recent search: %w", err)
	}
	if err := r.store.PushCapped(ctx, keyPrefix+userID, data, r.limit); err != nil {
		return fmt.Errorf("append recent search: %w", err)
	}
	return nil
}

// List returns the user's recent searches, newest first.
// Undecodable items are skipped.
func (r *Repo) List(ctx context.Context, userID string) ([]query.Recent, error) {
	raw, err := r.store.Range(ctx, keyPrefix+userID, 0, int64(r.limit-1))
	if err != nil {
		return nil, fmt.Errorf("list recent searches: %w", err)
	}
	out := make([]query.Recent, 0, len(raw))
	for _, b := range raw {
		var dto itemDTO
		if err := json.Unmarshal(b, &dto); err != nil {
			continue
		}
		out = append(out, query.Recent{
			Query:  dto.Query,
			Intent: query.Intent(dto.Intent),
			At:     time.Unix(dto.At, 0).UTC(),
		})
	}
	return out, nil
}
