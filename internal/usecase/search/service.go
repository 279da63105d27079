// Package search is the request-time search pipeline: parse, embed, retrieve, resolve, rank.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lgoty/benefitsearch/internal/domain"
	domcat "github.com/lgoty/benefitsearch/internal/domain/catalog"
	"github.com/lgoty/benefitsearch/internal/domain/query"
	"github.com/lgoty/benefitsearch/internal/vectorstore"
)

// Config holds result sizing.
type Config struct {
	TopK        int
	MaxBenefits int
	MaxOffers   int
}

// DefaultConfig returns the portal's result sizing.
func DefaultConfig() Config {
	return Config{TopK: 20, MaxBenefits: 10, MaxOffers: 10}
}

// Request is one search call. UserID and UserRegion are optional.
type Request struct {
	Query      string
	UserID     string
	UserRegion string
}

// BenefitHit is a benefit with its similarity to the query.
type BenefitHit struct {
	Benefit *domcat.Benefit
	Score   float32
}

// OfferHit is an offer with its similarity to the query.
type OfferHit struct {
	Offer *domcat.Offer
	Score float32
}

// Result is the ranked response. Totals count hits before truncation.
type Result struct {
	Query         query.Parsed
	Benefits      []BenefitHit
	Offers        []OfferHit
	TotalBenefits int
	TotalOffers   int
}

// Service runs the search pipeline.
type Service struct {
	cfg     Config
	parser  Parser
	embed   QueryEmbedder
	index   VectorIndex
	entries EntryReader
	records RecordReader
	history History
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a search service. history can be nil.
func New(
	cfg Config, parser Parser, embed QueryEmbedder, index VectorIndex,
	entries EntryReader, records RecordReader, history History, logger *zap.Logger,
) *Service {
	def := DefaultConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.MaxBenefits <= 0 {
		cfg.MaxBenefits = def.MaxBenefits
	}
	if cfg.MaxOffers <= 0 {
		cfg.MaxOffers = def.MaxOffers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg: cfg, parser: parser, embed: embed, index: index,
		entries: entries, records: records, history: history,
		logger: logger, now: time.Now,
	}
}

// Search parses and embeds the query, retrieves candidates and resolves them to catalog records.
func (s *Service) Search(ctx context.Context, req Request) (Result, error) {
	text := strings.TrimSpace(req.Query)
	if text == "" {
		return Result{}, domain.ErrEmptyQuery
	}

	parsed := s.parser.Parse(ctx, text, req.UserRegion)
	vec := s.embed.GenerateQuery(ctx, text)

	hits, err := s.index.Search(ctx, vec, parsed.Filters, s.cfg.TopK)
	if err != nil {
		return Result{}, fmt.Errorf("vector search: %w", err)
	}

	benefits, offers, err := s.resolve(ctx, hits)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Query:         parsed,
		Benefits:      benefits,
		Offers:        offers,
		TotalBenefits: len(benefits),
		TotalOffers:   len(offers),
	}
	if len(res.Benefits) > s.cfg.MaxBenefits {
		res.Benefits = res.Benefits[:s.cfg.MaxBenefits]
	}
	if len(res.Offers) > s.cfg.MaxOffers {
		res.Offers = res.Offers[:s.cfg.MaxOffers]
	}

	s.remember(ctx, req.UserID, text, parsed.Intent)
	return res, nil
}

// resolve maps hits to entries, then to records, scoped by kind. Scores are
// joined by entry id. Hits whose entry or record is gone are skipped.
func (s *Service) resolve(ctx context.Context, hits []vectorstore.Hit) ([]BenefitHit, []OfferHit, error) {
	if len(hits) == 0 {
		return nil, nil, nil
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.EntryID
	}
	entries, err := s.entries.GetMany(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve entries: %w", err)
	}

	var benefitIDs, offerIDs []int64
	for _, h := range hits {
		e, ok := entries[h.EntryID]
		if !ok {
			continue
		}
		switch e.Kind() {
		case domcat.KindBenefit:
			benefitIDs = append(benefitIDs, e.Ref().ID())
		case domcat.KindCommercial:
			offerIDs = append(offerIDs, e.Ref().ID())
		}
	}

	benefits, err := s.records.ActiveBenefits(ctx, benefitIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve benefits: %w", err)
	}
	offers, err := s.records.ActiveOffers(ctx, offerIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve offers: %w", err)
	}

	var bh []BenefitHit
	var oh []OfferHit
	stale := 0
	for _, h := range hits {
		e, ok := entries[h.EntryID]
		if !ok {
			stale++
			continue
		}
		ref := e.Ref()
		switch ref.Kind() {
		case domcat.KindBenefit:
			if b, ok := benefits[ref.ID()]; ok {
				bh = append(bh, BenefitHit{Benefit: b, Score: h.Score})
				continue
			}
		case domcat.KindCommercial:
			if o, ok := offers[ref.ID()]; ok {
				oh = append(oh, OfferHit{Offer: o, Score: h.Score})
				continue
			}
		}
		stale++
	}
	if stale > 0 {
		s.logger.Warn("Skipped stale search hits", zap.Int("stale", stale), zap.Int("hits", len(hits)))
	}
	return bh, oh, nil
}

func (s *Service) remember(ctx context.Context, userID, text string, intent query.Intent) {
	if s.history == nil || userID == "" {
		return
	}
	item := query.Recent{Query: text, Intent: intent, At: s.now()}
	if err := s.history.Append(ctx, userID, item); err != nil {
		s.logger.Warn("Append recent search failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Details returns the active records for refs in request order. Unresolvable refs are omitted.
func (s *Service) Details(ctx context.Context, refs []domcat.Ref) ([]domcat.Record, error) {
	var benefitIDs, offerIDs []int64
	for _, r := range refs {
		switch r.Kind() {
		case domcat.KindBenefit:
			benefitIDs = append(benefitIDs, r.ID())
		case domcat.KindCommercial:
			offerIDs = append(offerIDs, r.ID())
		}
	}

	benefits, err := s.records.ActiveBenefits(ctx, benefitIDs)
	if err != nil {
		return nil, fmt.Errorf("get benefits: %w", err)
	}
	offers, err := s.records.ActiveOffers(ctx, offerIDs)
	if err != nil {
		return nil, fmt.Errorf("get offers: %w", err)
	}

	out := make([]domcat.Record, 0, len(refs))
	seen := make(map[domcat.Ref]struct{}, len(refs))
	for _, r := range refs {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		switch r.Kind() {
		case domcat.KindBenefit:
			if b, ok := benefits[r.ID()]; ok {
				out = append(out, b)
			}
		case domcat.KindCommercial:
			if o, ok := offers[r.ID()]; ok {
				out = append(out, o)
			}
		}
	}
	return out, nil
}

// Recent returns the user's recent searches, newest first.
func (s *Service) Recent(ctx context.Context, userID string) ([]query.Recent, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}
	if s.history == nil {
		return nil, nil
	}
	items, err := s.history.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recent searches: %w", err)
	}
	return items, nil
}
