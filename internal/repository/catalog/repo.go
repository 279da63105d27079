// Package catalog stores benefits, offers and their dictionaries in Postgres.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/lgoty/benefitsearch/internal/db/postgres"
	"github.com/lgoty/benefitsearch/internal/domain"
	domcat "github.com/lgoty/benefitsearch/internal/domain/catalog"
)

// querier is the consumer interface over *sql.DB (ISP).
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Repo implements the catalog repositories of the use cases.
type Repo struct {
	db querier
}

// New creates a catalog repository.
func New(db querier) *Repo {
	return &Repo{db: db}
}

// activeStatuses are the statuses that search may show.
var activeStatuses = pq.Array([]string{string(domcat.StatusActive), string(domcat.StatusExpiringSoon)})

// --- dictionaries ---

// UpsertRegions inserts or renames regions.
func (r *Repo) UpsertRegions(ctx context.Context, regions []domcat.Region) error {
	const q = `INSERT INTO regions (code, name) VALUES ($1, $2)
ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name`
	for _, reg := range regions {
		if _, err := r.db.ExecContext(ctx, q, reg.Code, reg.Name); err != nil {
			return postgres.Error("upsert region "+reg.Code, err)
		}
	}
	return nil
}

// ListRegions returns all regions ordered by code.
func (r *Repo) ListRegions(ctx context.Context) ([]domcat.Region, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code, name FROM regions ORDER BY code`)
	if err != nil {
		return nil, postgres.Error("list regions", err)
	}
	defer rows.Close()

	var out []domcat.Region
	for rows.Next() {
		var reg domcat.Region
		if err := rows.Scan(&reg.Code, &reg.Name); err != nil {
			return nil, postgres.Error("scan region", err)
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.Error("iterate regions", err)
	}
	return out, nil
}

// UpsertCategories inserts or renames categories.
func (r *Repo) UpsertCategories(ctx context.Context, categories []domcat.Category) error {
	const q = `INSERT INTO categories (slug, name) VALUES ($1, $2)
ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name`
	for _, c := range categories {
		if _, err := r.db.ExecContext(ctx, q, c.Slug, c.Name); err != nil {
			return postgres.Error("upsert category "+c.Slug, err)
		}
	}
	return nil
}

// dictionaries resolves region codes and category slugs to display names.
type dictionaries struct {
	regions    map[string]string
	categories map[string]string
}

func (r *Repo) loadDictionaries(ctx context.Context, regionCodes, categorySlugs []string) (dictionaries, error) {
	d := dictionaries{regions: map[string]string{}, categories: map[string]string{}}
	if len(regionCodes) > 0 {
		if err := r.loadPairs(ctx, `SELECT code, name FROM regions WHERE code = ANY($1)`, regionCodes, d.regions); err != nil {
			return d, err
		}
	}
	if len(categorySlugs) > 0 {
		if err := r.loadPairs(ctx, `SELECT slug, name FROM categories WHERE slug = ANY($1)`, categorySlugs, d.categories); err != nil {
			return d, err
		}
	}
	return d, nil
}

func (r *Repo) loadPairs(ctx context.Context, q string, keys []string, into map[string]string) error {
	rows, err := r.db.QueryContext(ctx, q, pq.Array(keys))
	if err != nil {
		return postgres.Error("load dictionary", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return postgres.Error("scan dictionary", err)
		}
		into[k] = v
	}
	if err := rows.Err(); err != nil {
		return postgres.Error("iterate dictionary", err)
	}
	return nil
}

func (d dictionaries) resolveRegions(codes []string) []domcat.Region {
	out := make([]domcat.Region, 0, len(codes))
	for _, c := range codes {
		name, ok := d.regions[c]
		if !ok {
			name = c
		}
		out = append(out, domcat.Region{Code: c, Name: name})
	}
	return out
}

func (d dictionaries) resolveCategories(slugs []string) []domcat.Category {
	out := make([]domcat.Category, 0, len(slugs))
	for _, s := range slugs {
		name, ok := d.categories[s]
		if !ok {
			name = s
		}
		out = append(out, domcat.Category{Slug: s, Name: name})
	}
	return out
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return postgres.Error(op, err)
}

func requireAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return postgres.Error(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}
