package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	domcat "github.com/lgoty/benefitsearch/internal/domain/catalog"
)

const benefitColumns = `id, benefit_id, title, description, benefit_type, target_groups, region_codes,
applies_to_all_regions, status, requirements, how_to_get, documents_needed, source_url, category_slugs`

type benefitRow struct {
	b          domcat.Benefit
	regions    pq.StringArray
	categories pq.StringArray
}

func scanBenefit(s interface{ Scan(...any) error }) (benefitRow, error) {
	var (
		row    benefitRow
		btype  string
		status string
		groups pq.StringArray
		docs   pq.StringArray
	)
	err := s.Scan(&row.b.ID, &row.b.BenefitID, &row.b.Title, &row.b.Description, &btype, &groups,
		&row.regions, &row.b.AppliesToAllRegions, &status, &row.b.Requirements, &row.b.HowToGet,
		&docs, &row.b.SourceURL, &row.categories)
	if err != nil {
		return row, err //nolint:wrapcheck // caller classifies
	}
	row.b.Type = domcat.BenefitType(btype)
	row.b.Status = domcat.Status(status)
	row.b.TargetGroups = []string(groups)
	row.b.DocumentsNeeded = []string(docs)
	return row, nil
}

// SaveBenefit inserts a new benefit (ID 0, upserted by external benefit id)
// or replaces an existing one, and returns the stored record.
func (r *Repo) SaveBenefit(ctx context.Context, b *domcat.Benefit) (*domcat.Benefit, error) {
	args := []any{
		b.BenefitID, b.Title, b.Description, string(b.Type), pq.Array(strs(b.TargetGroups)),
		pq.Array(regionCodes(b.Regions)), b.AppliesToAllRegions, string(b.Status), b.Requirements,
		b.HowToGet, pq.Array(strs(b.DocumentsNeeded)), b.SourceURL, pq.Array(categorySlugs(b.Categories)),
	}

	var id int64
	if b.ID == 0 {
		const q = `
INSERT INTO benefits (benefit_id, title, description, benefit_type, target_groups, region_codes,
    applies_to_all_regions, status, requirements, how_to_get, documents_needed, source_url, category_slugs)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (benefit_id) DO UPDATE SET
    title = EXCLUDED.title, description = EXCLUDED.description, benefit_type = EXCLUDED.benefit_type,
    target_groups = EXCLUDED.target_groups, region_codes = EXCLUDED.region_codes,
    applies_to_all_regions = EXCLUDED.applies_to_all_regions, status = EXCLUDED.status,
    requirements = EXCLUDED.requirements, how_to_get = EXCLUDED.how_to_get,
    documents_needed = EXCLUDED.documents_needed, source_url = EXCLUDED.source_url,
    category_slugs = EXCLUDED.category_slugs, deleted_at = NULL, updated_at = now()
RETURNING id`
		if err := r.db.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
			return nil, notFoundOr("insert benefit "+b.BenefitID, err)
		}
	} else {
		const q = `
UPDATE benefits SET benefit_id = $2, title = $3, description = $4, benefit_type = $5, target_groups = $6,
    region_codes = $7, applies_to_all_regions = $8, status = $9, requirements = $10, how_to_get = $11,
    documents_needed = $12, source_url = $13, category_slugs = $14, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL`
		res, err := r.db.ExecContext(ctx, q, append([]any{b.ID}, args...)...)
		if err != nil {
			return nil, notFoundOr("update benefit "+strconv.FormatInt(b.ID, 10), err)
		}
		if err := requireAffected("update benefit "+strconv.FormatInt(b.ID, 10), res); err != nil {
			return nil, err
		}
		id = b.ID
	}
	return r.GetBenefit(ctx, id)
}

// DeleteBenefit soft-deletes a benefit.
func (r *Repo) DeleteBenefit(ctx context.Context, id int64) error {
	op := "delete benefit " + strconv.FormatInt(id, 10)
	res, err := r.db.ExecContext(ctx,
		`UPDATE benefits SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return notFoundOr(op, err)
	}
	return requireAffected(op, res)
}

// GetBenefit returns a non-deleted benefit in any status.
func (r *Repo) GetBenefit(ctx context.Context, id int64) (*domcat.Benefit, error) {
	q := `SELECT ` + benefitColumns + ` FROM benefits WHERE id = $1 AND deleted_at IS NULL`
	row, err := scanBenefit(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFoundOr("get benefit "+strconv.FormatInt(id, 10), err)
	}
	out, err := r.resolveBenefits(ctx, []benefitRow{row})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// ActiveBenefits returns the non-deleted, active or expiring benefits among ids.
func (r *Repo) ActiveBenefits(ctx context.Context, ids []int64) (map[int64]*domcat.Benefit, error) {
	out := make(map[int64]*domcat.Benefit, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := `SELECT ` + benefitColumns + ` FROM benefits
WHERE id = ANY($1) AND deleted_at IS NULL AND status = ANY($2)`
	list, err := r.queryBenefits(ctx, q, pq.Array(ids), activeStatuses)
	if err != nil {
		return nil, err
	}
	for _, b := range list {
		out[b.ID] = b
	}
	return out, nil
}

// ListBenefits returns every non-deleted benefit ordered by id.
func (r *Repo) ListBenefits(ctx context.Context) ([]*domcat.Benefit, error) {
	return r.queryBenefits(ctx, `SELECT `+benefitColumns+` FROM benefits WHERE deleted_at IS NULL ORDER BY id`)
}

func (r *Repo) queryBenefits(ctx context.Context, q string, args ...any) ([]*domcat.Benefit, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, notFoundOr("query benefits", err)
	}
	defer rows.Close()

	var list []benefitRow
	for rows.Next() {
		row, err := scanBenefit(rows)
		if err != nil {
			return nil, notFoundOr("scan benefit", err)
		}
		list = append(list, row)
	}
	if err := rows.Err(); err != nil {
		return nil, notFoundOr("iterate benefits", err)
	}
	return r.resolveBenefits(ctx, list)
}

func (r *Repo) resolveBenefits(ctx context.Context, rows []benefitRow) ([]*domcat.Benefit, error) {
	var codes, slugs []string
	for _, row := range rows {
		codes = append(codes, row.regions...)
		slugs = append(slugs, row.categories...)
	}
	dict, err := r.loadDictionaries(ctx, codes, slugs)
	if err != nil {
		return nil, fmt.Errorf("resolve benefits: %w", err)
	}
	out := make([]*domcat.Benefit, len(rows))
	for i := range rows {
		b := rows[i].b
		b.Regions = dict.resolveRegions(rows[i].regions)
		b.Categories = dict.resolveCategories(rows[i].categories)
		out[i] = &b
	}
	return out, nil
}

func strs(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func regionCodes(regions []domcat.Region) []string {
	out := make([]string, len(regions))
	for i, r := range regions {
		out[i] = r.Code
	}
	return out
}

func categorySlugs(categories []domcat.Category) []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = c.Slug
	}
	return out
}
