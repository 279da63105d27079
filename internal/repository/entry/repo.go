// Package entry stores search index entries in Postgres.
package entry

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/lgoty/benefitsearch/internal/db/postgres"
	"github.com/lgoty/benefitsearch/internal/domain"
	"github.com/lgoty/benefitsearch/internal/domain/catalog"
	domentry "github.com/lgoty/benefitsearch/internal/domain/entry"
)

// querier is the consumer interface over *sql.DB (ISP).
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Repo implements the entry repositories of the indexing and search use cases.
type Repo struct {
	db querier
}

// New creates an entry repository.
func New(db querier) *Repo {
	return &Repo{db: db}
}

const selectColumns = `id, record_kind, record_id, title, target_groups, regions, is_active, embedding`

// Upsert fully replaces the entry keyed by (record_kind, record_id) and returns it with its id.
func (r *Repo) Upsert(ctx context.Context, e domentry.Entry) (domentry.Entry, error) {
	const q = `
INSERT INTO search_index (record_kind, record_id, title, target_groups, regions, is_active, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (record_kind, record_id) DO UPDATE SET
    title = EXCLUDED.title,
    target_groups = EXCLUDED.target_groups,
    regions = EXCLUDED.regions,
    is_active = EXCLUDED.is_active,
    embedding = EXCLUDED.embedding,
    updated_at = now()
RETURNING id`

	var emb []byte
	if e.Embedding() != nil {
		emb = domain.EncodeVector(e.Embedding())
	}
	var id int64
	err := r.db.QueryRowContext(ctx, q,
		string(e.Kind()), e.Ref().ID(), e.Title(),
		pq.Array(nonNil(e.TargetGroups())), pq.Array(nonNil(e.Regions())),
		e.Active(), emb,
	).Scan(&id)
	if err != nil {
		return domentry.Entry{}, postgres.Error("upsert search entry "+e.Ref().String(), err)
	}
	return e.WithID(id), nil
}

// DeleteByRef removes the entry for ref. Returns the removed id, or 0 if none existed.
func (r *Repo) DeleteByRef(ctx context.Context, ref catalog.Ref) (int64, error) {
	const q = `DELETE FROM search_index WHERE record_kind = $1 AND record_id = $2 RETURNING id`
	var id int64
	err := r.db.QueryRowContext(ctx, q, string(ref.Kind()), ref.ID()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, postgres.Error("delete search entry "+ref.String(), err)
	}
	return id, nil
}

// GetMany returns entries by id. Missing ids are absent from the map.
func (r *Repo) GetMany(ctx context.Context, ids []int64) (map[int64]domentry.Entry, error) {
	out := make(map[int64]domentry.Entry, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := `SELECT ` + selectColumns + ` FROM search_index WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, q, pq.Array(ids))
	if err != nil {
		return nil, postgres.Error("get search entries", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, postgres.Error("scan search entry", err)
		}
		out[e.ID()] = e
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.Error("iterate search entries", err)
	}
	return out, nil
}

// ListIndexable returns every active entry with an embedding, ordered by id.
func (r *Repo) ListIndexable(ctx context.Context) ([]domentry.Entry, error) {
	q := `SELECT ` + selectColumns + ` FROM search_index WHERE is_active AND embedding IS NOT NULL ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, postgres.Error("list indexable entries", err)
	}
	defer rows.Close()

	var out []domentry.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, postgres.Error("scan search entry", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.Error("iterate search entries", err)
	}
	return out, nil
}

// CountIndexable returns the number of active entries with an embedding,
// the size a freshly rebuilt vector index would have.
func (r *Repo) CountIndexable(ctx context.Context) (int, error) {
	const q = `SELECT count(*) FROM search_index WHERE is_active AND embedding IS NOT NULL`
	var n int
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, postgres.Error("count indexable entries", err)
	}
	return n, nil
}
