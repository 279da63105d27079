package chi

import (
	"time"

	domcat "github.com/lgoty/benefitsearch/internal/domain/catalog"
	"github.com/lgoty/benefitsearch/internal/domain/query"
	searchuc "github.com/lgoty/benefitsearch/internal/usecase/search"
)

type errorCode string

const (
	codeBadRequest             errorCode = "bad_request"
	codeUnauthorized           errorCode = "unauthorized"
	codeValidationFailed       errorCode = "validation_failed"
	codeEmptyQuery             errorCode = "empty_query"
	codeNotFound               errorCode = "not_found"
	codeEmbeddingProviderError errorCode = "embedding_provider_error"
	codeParserProviderError    errorCode = "parser_provider_error"
	codeStoreNotReady          errorCode = "store_not_ready"
	codeInternalError          errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type detailsItem struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

type detailsRequest struct {
	Items []detailsItem `json:"items"`
}

type assistantContextRequest struct {
	Message string `json:"message"`
	Limit   *int   `json:"limit,omitempty"`
}

type extractSearchRequest struct {
	Response string `json:"response"`
}

type filtersResponse struct {
	ContentType   []string `json:"content_type"`
	TargetGroups  []string `json:"target_groups"`
	Regions       []string `json:"regions"`
	CategorySlugs []string `json:"category_slugs"`
}

type parsedQueryResponse struct {
	Intent   string          `json:"intent"`
	Keywords []string        `json:"keywords"`
	Filters  filtersResponse `json:"filters"`
}

type regionResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type categoryResponse struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// recordResponse is the wire shape of both benefits and offers. Kind-specific
// fields are omitted when empty.
type recordResponse struct {
	Type                string             `json:"type"`
	ID                  int64              `json:"id"`
	ExternalID          string             `json:"external_id,omitempty"`
	Title               string             `json:"title"`
	Description         string             `json:"description"`
	BenefitType         string             `json:"benefit_type,omitempty"`
	TargetGroups        []string           `json:"target_groups"`
	Regions             []regionResponse   `json:"regions"`
	AppliesToAllRegions bool               `json:"applies_to_all_regions"`
	Status              string             `json:"status"`
	Requirements        string             `json:"requirements,omitempty"`
	HowToGet            string             `json:"how_to_get,omitempty"`
	DocumentsNeeded     []string           `json:"documents_needed,omitempty"`
	SourceURL           string             `json:"source_url,omitempty"`
	DiscountDescription string             `json:"discount_description,omitempty"`
	PartnerName         string             `json:"partner_name,omitempty"`
	PartnerWebsite      string             `json:"partner_website,omitempty"`
	PartnerCategory     string             `json:"partner_category,omitempty"`
	HowToUse            string             `json:"how_to_use,omitempty"`
	PromoCode           string             `json:"promo_code,omitempty"`
	Categories          []categoryResponse `json:"categories"`
	Score               *float32           `json:"score,omitempty"`
}

type searchResponse struct {
	Query         parsedQueryResponse `json:"query"`
	Benefits      []recordResponse    `json:"benefits"`
	Offers        []recordResponse    `json:"offers"`
	TotalBenefits int                 `json:"total_benefits"`
	TotalOffers   int                 `json:"total_offers"`
}

type recentItem struct {
	Query  string    `json:"query"`
	Intent string    `json:"intent"`
	At     time.Time `json:"at"`
}

type recentResponse struct {
	Items []recentItem `json:"items"`
}

type assistantContextResponse struct {
	Snippets []string `json:"snippets"`
	Context  string   `json:"context"`
}

type extractSearchResponse struct {
	Response    string  `json:"response"`
	SearchQuery *string `json:"search_query,omitempty"`
}

type healthResponse struct {
	Status         string            `json:"status"`
	Checks         map[string]string `json:"checks"`
	VectorStore    string            `json:"vector_store,omitempty"`
	Vectors        int               `json:"vectors"`
	IndexedEntries int               `json:"indexed_entries"`
}

func searchResultToResponse(res searchuc.Result) searchResponse {
	resp := searchResponse{
		Query:         parsedToResponse(res.Query),
		Benefits:      make([]recordResponse, 0, len(res.Benefits)),
		Offers:        make([]recordResponse, 0, len(res.Offers)),
		TotalBenefits: res.TotalBenefits,
		TotalOffers:   res.TotalOffers,
	}
	for _, h := range res.Benefits {
		score := h.Score
		resp.Benefits = append(resp.Benefits, recordToResponse(h.Benefit, &score))
	}
	for _, h := range res.Offers {
		score := h.Score
		resp.Offers = append(resp.Offers, recordToResponse(h.Offer, &score))
	}
	return resp
}

func parsedToResponse(p query.Parsed) parsedQueryResponse {
	kinds := make([]string, len(p.Filters.ContentTypes))
	for i, k := range p.Filters.ContentTypes {
		kinds[i] = string(k)
	}
	return parsedQueryResponse{
		Intent:   string(p.Intent),
		Keywords: nonNil(p.Keywords),
		Filters: filtersResponse{
			ContentType:   kinds,
			TargetGroups:  nonNil(p.Filters.TargetGroups),
			Regions:       nonNil(p.Filters.Regions),
			CategorySlugs: nonNil(p.Filters.CategorySlugs),
		},
	}
}

func recordToResponse(rec domcat.Record, score *float32) recordResponse {
	var out recordResponse
	switch v := rec.(type) {
	case *domcat.Benefit:
		out = recordResponse{
			ExternalID:      v.BenefitID,
			Description:     v.Description,
			BenefitType:     string(v.Type),
			Requirements:    v.Requirements,
			HowToGet:        v.HowToGet,
			DocumentsNeeded: v.DocumentsNeeded,
			SourceURL:       v.SourceURL,
			Categories:      categoriesToResponse(v.Categories),
		}
	case *domcat.Offer:
		out = recordResponse{
			ExternalID:          v.OfferID,
			Description:         v.Description,
			DiscountDescription: v.DiscountDescription,
			PartnerName:         v.PartnerName,
			PartnerWebsite:      v.PartnerWebsite,
			PartnerCategory:     v.PartnerCategory,
			HowToUse:            v.HowToUse,
			PromoCode:           v.PromoCode,
			Categories:          categoriesToResponse(v.Categories),
		}
	}

	ref := rec.Ref()
	f := rec.Facets()
	out.Type = string(ref.Kind())
	out.ID = ref.ID()
	out.Title = f.Title
	out.TargetGroups = nonNil(f.TargetGroups)
	out.Regions = make([]regionResponse, len(f.Regions))
	for i, r := range f.Regions {
		out.Regions[i] = regionResponse{Code: r.Code, Name: r.Name}
	}
	out.AppliesToAllRegions = f.AppliesToAllRegions
	out.Status = string(f.Status)
	out.Score = score
	return out
}

func categoriesToResponse(cats []domcat.Category) []categoryResponse {
	out := make([]categoryResponse, len(cats))
	for i, c := range cats {
		out[i] = categoryResponse{Slug: c.Slug, Name: c.Name}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
