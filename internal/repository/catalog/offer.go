package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	domcat "github.com/lgoty/benefitsearch/internal/domain/catalog"
)

const offerColumns = `id, offer_id, title, description, discount_description, partner_name, partner_website,
partner_category, target_groups, region_codes, applies_to_all_regions, status, how_to_use, promo_code, category_slugs`

type offerRow struct {
	o          domcat.Offer
	regions    pq.StringArray
	categories pq.StringArray
}

func scanOffer(s interface{ Scan(...any) error }) (offerRow, error) {
	var (
		row    offerRow
		status string
		groups pq.StringArray
	)
	err := s.Scan(&row.o.ID, &row.o.OfferID, &row.o.Title, &row.o.Description, &row.o.DiscountDescription,
		&row.o.PartnerName, &row.o.PartnerWebsite, &row.o.PartnerCategory, &groups, &row.regions,
		&row.o.AppliesToAllRegions, &status, &row.o.HowToUse, &row.o.PromoCode, &row.categories)
	if err != nil {
		return row, err //nolint:wrapcheck // caller classifies
	}
	row.o.Status = domcat.Status(status)
	row.o.TargetGroups = []string(groups)
	return row, nil
}

// SaveOffer inserts a new offer (ID 0, upserted by external offer id)
// or replaces an existing one, and returns the stored record.
func (r *Repo) SaveOffer(ctx context.Context, o *domcat.Offer) (*domcat.Offer, error) {
	args := []any{
		o.OfferID, o.Title, o.Description, o.DiscountDescription, o.PartnerName, o.PartnerWebsite,
		o.PartnerCategory, pq.Array(strs(o.TargetGroups)), pq.Array(regionCodes(o.Regions)),
		o.AppliesToAllRegions, string(o.Status), o.HowToUse, o.PromoCode, pq.Array(categorySlugs(o.Categories)),
	}

	var id int64
	if o.ID == 0 {
		const q = `
INSERT INTO offers (offer_id, title, description, discount_description, partner_name, partner_website,
    partner_category, target_groups, region_codes, applies_to_all_regions, status, how_to_use, promo_code,
    category_slugs)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (offer_id) DO UPDATE SET
    title = EXCLUDED.title, description = EXCLUDED.description,
    discount_description = EXCLUDED.discount_description, partner_name = EXCLUDED.partner_name,
    partner_website = EXCLUDED.partner_website, partner_category = EXCLUDED.partner_category,
    target_groups = EXCLUDED.target_groups, region_codes = EXCLUDED.region_codes,
    applies_to_all_regions = EXCLUDED.applies_to_all_regions, status = EXCLUDED.status,
    how_to_use = EXCLUDED.how_to_use, promo_code = EXCLUDED.promo_code,
    category_slugs = EXCLUDED.category_slugs, deleted_at = NULL, updated_at = now()
RETURNING id`
		if err := r.db.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
			return nil, notFoundOr("insert offer "+o.OfferID, err)
		}
	} else {
		const q = `
UPDATE offers SET offer_id = $2, title = $3, description = $4, discount_description = $5,
    partner_name = $6, partner_website = $7, partner_category = $8, target_groups = $9, region_codes = $10,
    applies_to_all_regions = $11, status = $12, how_to_use = $13, promo_code = $14, category_slugs = $15,
    updated_at = now()
WHERE id = $1 AND deleted_at IS NULL`
		op := "update offer " + strconv.FormatInt(o.ID, 10)
		res, err := r.db.ExecContext(ctx, q, append([]any{o.ID}, args...)...)
		if err != nil {
			return nil, notFoundOr(op, err)
		}
		if err := requireAffected(op, res); err != nil {
			return nil, err
		}
		id = o.ID
	}
	return r.GetOffer(ctx, id)
}

// DeleteOffer soft-deletes an offer.
func (r *Repo) DeleteOffer(ctx context.Context, id int64) error {
	op := "delete offer " + strconv.FormatInt(id, 10)
	res, err := r.db.ExecContext(ctx,
		`UPDATE offers SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return notFoundOr(op, err)
	}
	return requireAffected(op, res)
}

// GetOffer returns a non-deleted offer in any status.
func (r *Repo) GetOffer(ctx context.Context, id int64) (*domcat.Offer, error) {
	q := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1 AND deleted_at IS NULL`
	row, err := scanOffer(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFoundOr("get offer "+strconv.FormatInt(id, 10), err)
	}
	out, err := r.resolveOffers(ctx, []offerRow{row})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// ActiveOffers returns the non-deleted, active or expiring offers among ids.
func (r *Repo) ActiveOffers(ctx context.Context, ids []int64) (map[int64]*domcat.Offer, error) {
	out := make(map[int64]*domcat.Offer, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := `SELECT ` + offerColumns + ` FROM offers
WHERE id = ANY($1) AND deleted_at IS NULL AND status = ANY($2)`
	list, err := r.queryOffers(ctx, q, pq.Array(ids), activeStatuses)
	if err != nil {
		return nil, err
	}
	for _, o := range list {
		out[o.ID] = o
	}
	return out, nil
}

// ListOffers returns every non-deleted offer ordered by id.
func (r *Repo) ListOffers(ctx context.Context) ([]*domcat.Offer, error) {
	return r.queryOffers(ctx, `SELECT `+offerColumns+` FROM offers WHERE deleted_at IS NULL ORDER BY id`)
}

func (r *Repo) queryOffers(ctx context.Context, q string, args ...any) ([]*domcat.Offer, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, notFoundOr("query offers", err)
	}
	defer rows.Close()

	var list []offerRow
	for rows.Next() {
		row, err := scanOffer(rows)
		if err != nil {
			return nil, notFoundOr("scan offer", err)
		}
		list = append(list, row)
	}
	if err := rows.Err(); err != nil {
		return nil, notFoundOr("iterate offers", err)
	}
	return r.resolveOffers(ctx, list)
}

func (r *Repo) resolveOffers(ctx context.Context, rows []offerRow) ([]*domcat.Offer, error) {
	var codes, slugs []string
	for _, row := range rows {
		codes = append(codes, row.regions...)
		slugs = append(slugs, row.categories...)
	}
	dict, err := r.loadDictionaries(ctx, codes, slugs)
	if err != nil {
		return nil, fmt.Errorf("resolve offers: %w", err)
	}
	out := make([]*domcat.Offer, len(rows))
	for i := range rows {
		o := rows[i].o
		o.Regions = dict.resolveRegions(rows[i].regions)
		o.Categories = dict.resolveCategories(rows[i].categories)
		out[i] = &o
	}
	return out, nil
}
