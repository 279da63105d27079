// Package assistant grounds a conversational assistant in catalog search.
package assistant

import (
	"context"
	"strings"

	"go.uber.org/zap"

	domcat "github.com/lgoty/benefitsearch/internal/domain/catalog"
	"github.com/lgoty/benefitsearch/internal/domain/query"
)

// DefaultSnippets is the number of records used as context when n <= 0.
const DefaultSnippets = 3

const (
	tagOpen       = "[SEARCH:"
	tagClose      = "]"
	contextHeader = "НАЙДЕННАЯ ИНФОРМАЦИЯ ИЗ БАЗЫ ДАННЫХ:"
	snippetSep    = "\n---\n"
)

// Service builds context snippets for assistant prompts.
type Service struct {
	embed   QueryEmbedder
	index   VectorIndex
	entries EntryReader
	records RecordReader
	logger  *zap.Logger
}

// New creates an assistant helper.
func New(embed QueryEmbedder, index VectorIndex, entries EntryReader, records RecordReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embed: embed, index: index, entries: entries, records: records, logger: logger}
}

// Context returns up to n snippets of the records most similar to text, best first.
// Any failure yields no snippets.
func (s *Service) Context(ctx context.Context, text string, n int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if n <= 0 {
		n = DefaultSnippets
	}

	hits, err := s.index.Search(ctx, s.embed.GenerateQuery(ctx, text), query.Filters{}, n)
	if err != nil {
		s.logger.Warn("Assistant context search failed", zap.Error(err))
		return nil
	}
	if len(hits) == 0 {
		return nil
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.EntryID
	}
	entries, err := s.entries.GetMany(ctx, ids)
	if err != nil {
		s.logger.Warn("Assistant context entries failed", zap.Error(err))
		return nil
	}

	var benefitIDs, offerIDs []int64
	for _, id := range ids {
		e, ok := entries[id]
		if !ok {
			continue
		}
		if e.Kind() == domcat.KindBenefit {
			benefitIDs = append(benefitIDs, e.Ref().ID())
		} else {
			offerIDs = append(offerIDs, e.Ref().ID())
		}
	}

	benefits, err := s.records.ActiveBenefits(ctx, benefitIDs)
	if err != nil {
		s.logger.Warn("Assistant context benefits failed", zap.Error(err))
		return nil
	}
	offers, err := s.records.ActiveOffers(ctx, offerIDs)
	if err != nil {
		s.logger.Warn("Assistant context offers failed", zap.Error(err))
		return nil
	}

	snippets := make([]string, 0, len(ids))
	for _, id := range ids {
		e, ok := entries[id]
		if !ok {
			continue
		}
		ref := e.Ref()
		switch ref.Kind() {
		case domcat.KindBenefit:
			if b, ok := benefits[ref.ID()]; ok {
				snippets = append(snippets, BenefitSnippet(b))
			}
		case domcat.KindCommercial:
			if o, ok := offers[ref.ID()]; ok {
				snippets = append(snippets, OfferSnippet(o))
			}
		}
	}
	return snippets
}

// BenefitSnippet renders a benefit for an assistant prompt.
func BenefitSnippet(b *domcat.Benefit) string {
	return "Льгота: " + b.Title + "\nОписание: " + b.Description + "\nКто может получить: " + b.Requirements
}

// OfferSnippet renders an offer for an assistant prompt.
func OfferSnippet(o *domcat.Offer) string {
	return "Предложение: " + o.Title + "\nПартнер: " + o.PartnerName + "\nСкидка: " + o.DiscountDescription
}

// RenderContext joins snippets into a prompt block, or "" when there are none.
func RenderContext(snippets []string) string {
	if len(snippets) == 0 {
		return ""
	}
	return contextHeader + "\n" + strings.Join(snippets, snippetSep)
}

// ExtractSearchTag finds the first "[SEARCH: query]" marker in an assistant
// response. It returns the response without the marker and the trimmed query.
// Without a complete marker the response is returned unchanged and ok is false.
func ExtractSearchTag(response string) (cleaned, searchQuery string, ok bool) {
	start := strings.Index(response, tagOpen)
	if start < 0 {
		return response, "", false
	}
	end := strings.Index(response[start:], tagClose)
	if end < 0 {
		return response, "", false
	}
	tag := response[start : start+end+len(tagClose)]
	searchQuery = strings.TrimSpace(tag[len(tagOpen) : len(tag)-len(tagClose)])
	cleaned = strings.TrimSpace(strings.ReplaceAll(response, tag, ""))
	return cleaned, searchQuery, true
}
