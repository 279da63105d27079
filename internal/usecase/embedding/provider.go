package embedding

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lgoty/benefitsearch/internal/domain"
	"github.com/lgoty/benefitsearch/internal/domain/catalog"
	"github.com/lgoty/benefitsearch/internal/metrics"
)

// maxListed caps how many region and category names enter a record's text.
const maxListed = 3

// Provider turns text and catalog records into fixed-dimension unit vectors.
// It never fails: any error yields the zero vector, which callers may detect with domain.IsZeroVector.
type Provider struct {
	raw     domain.Embedder
	query   domain.Embedder
	passage domain.Embedder
	dim     int
	model   string
	logger  *zap.Logger
}

// NewProvider wraps an embedder with prefixes, normalization and the zero-vector fallback.
func NewProvider(inner domain.Embedder, cfg domain.VectorConfig, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		raw:     inner,
		query:   domain.NewInstructionEmbedder(inner, cfg.QueryPrefix),
		passage: domain.NewInstructionEmbedder(inner, cfg.PassagePrefix),
		dim:     cfg.Dimensions,
		model:   cfg.Model,
		logger:  logger,
	}
}

// Dimension returns the vector length every Generate call produces.
func (p *Provider) Dimension() int { return p.dim }

// HealthCheck forwards to the underlying embedder when it supports health checks.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if hc, ok := p.raw.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// Generate embeds text as is.
func (p *Provider) Generate(ctx context.Context, text string) []float32 {
	return p.generate(ctx, p.raw, text)
}

// GenerateQuery embeds a search query with the query prefix.
func (p *Provider) GenerateQuery(ctx context.Context, text string) []float32 {
	return p.generate(ctx, p.query, text)
}

// GenerateForBenefit embeds the canonical text of a benefit with the passage prefix.
func (p *Provider) GenerateForBenefit(ctx context.Context, b *catalog.Benefit) []float32 {
	return p.generate(ctx, p.passage, BenefitText(b))
}

// GenerateForOffer embeds the canonical text of an offer with the passage prefix.
func (p *Provider) GenerateForOffer(ctx context.Context, o *catalog.Offer) []float32 {
	return p.generate(ctx, p.passage, OfferText(o))
}

// GenerateForRecord dispatches on the record variant.
func (p *Provider) GenerateForRecord(ctx context.Context, rec catalog.Record) []float32 {
	switch r := rec.(type) {
	case *catalog.Benefit:
		return p.GenerateForBenefit(ctx, r)
	case *catalog.Offer:
		return p.GenerateForOffer(ctx, r)
	default:
		p.logger.Warn("Unknown record type, using zero vector", zap.Stringer("ref", rec.Ref()))
		return domain.ZeroVector(p.dim)
	}
}

func (p *Provider) generate(ctx context.Context, e domain.Embedder, text string) []float32 {
	if strings.TrimSpace(text) == "" {
		return domain.ZeroVector(p.dim)
	}

	start := time.Now()
	result, err := e.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		return p.fallback("embed failed", duration, zap.Error(err))
	}
	if len(result.Embedding) != p.dim {
		return p.fallback("unexpected dimension", duration,
			zap.Int("got", len(result.Embedding)), zap.Int("want", p.dim))
	}

	vec := make([]float32, p.dim)
	copy(vec, result.Embedding)
	domain.Normalize(vec)

	p.logger.Debug("Embedding completed",
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return vec
}

func (p *Provider) fallback(reason string, duration time.Duration, fields ...zap.Field) []float32 {
	metrics.EmbeddingFallbacksTotal.Inc()
	fields = append(fields,
		zap.String("reason", reason),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
	)
	p.logger.Warn("Embedding unavailable, using zero vector", fields...)
	return domain.ZeroVector(p.dim)
}

// BenefitText composes the canonical text embedded for a benefit.
func BenefitText(b *catalog.Benefit) string {
	parts := []string{b.Title, b.Description, b.Requirements, b.HowToGet}
	parts = append(parts, listLine("Регионы", regionScope(b.Regions, b.AppliesToAllRegions)))
	parts = append(parts, listLine("Категории", catalog.CategoryNames(b.Categories, maxListed)))
	return joinNonEmpty(parts)
}

// OfferText composes the canonical text embedded for an offer.
func OfferText(o *catalog.Offer) string {
	parts := []string{o.Title, o.Description, o.DiscountDescription, o.HowToUse}
	if o.PartnerName != "" {
		parts = append(parts, "Партнёр: "+o.PartnerName)
	}
	parts = append(parts, listLine("Регионы", regionScope(o.Regions, o.AppliesToAllRegions)))
	parts = append(parts, listLine("Категории", catalog.CategoryNames(o.Categories, maxListed)))
	return joinNonEmpty(parts)
}

func regionScope(regions []catalog.Region, all bool) []string {
	if len(regions) == 0 && all {
		return []string{"все регионы"}
	}
	return catalog.RegionNames(regions, maxListed)
}

func listLine(label string, values []string) string {
	if len(values) == 0 {
		return ""
	}
	return label + ": " + strings.Join(values, ", ")
}

func joinNonEmpty(parts []string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
