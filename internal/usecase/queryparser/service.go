package queryparser

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/lgoty/benefitsearch/internal/domain/beneficiary"
	"github.com/lgoty/benefitsearch/internal/domain/catalog"
	"github.com/lgoty/benefitsearch/internal/domain/query"
	"github.com/lgoty/benefitsearch/internal/metrics"
)

const (
	methodSemantic = "semantic"
	methodFallback = "fallback"
)

// localWords ask for results near the user.
var localWords = []string{"рядом", "поблизости", "неподалеку", "неподалёку"}

// possessives combined with "регион..." ask for the user's own region.
var possessives = []string{"мой", "моем", "моём", "моего", "моему", "свой", "своем", "своём", "своего", "наш", "нашем"}

// Service parses free-text queries. It never fails: when the semantic step is
// missing or errors, a deterministic keyword parse is returned.
type Service struct {
	semantic SemanticParser
	vocab    *beneficiary.Vocabulary
	regions  *query.RegionIndex
	logger   *zap.Logger
}

// New creates a query parser. semantic can be nil.
func New(semantic SemanticParser, vocab *beneficiary.Vocabulary, regions *query.RegionIndex, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{semantic: semantic, vocab: vocab, regions: regions, logger: logger}
}

// Parse turns text into intent, keywords and filters. userRegion is a code or
// name hint and only constrains results when the query asks for local results.
func (s *Service) Parse(ctx context.Context, text, userRegion string) query.Parsed {
	text = strings.TrimSpace(text)
	if text == "" || s.semantic == nil {
		return s.record(methodFallback, s.Fallback(text, userRegion))
	}

	raw, err := s.semantic.Parse(ctx, text, userRegion)
	if err != nil {
		s.logger.Warn("Semantic parse failed, using keyword fallback", zap.Error(err))
		return s.record(methodFallback, s.Fallback(text, userRegion))
	}

	return s.record(methodSemantic, s.sanitize(raw, text, userRegion))
}

// Fallback builds a parse from tokens and vocabulary matching only.
func (s *Service) Fallback(text, userRegion string) query.Parsed {
	return query.Parsed{
		Intent:   query.IntentMixed,
		Keywords: splitKeywords(text),
		Filters: query.Filters{
			ContentTypes: catalog.Kinds(),
			TargetGroups: s.vocab.Match(text),
			Regions:      s.regionCodes(nil, text, userRegion),
		},
	}
}

func (s *Service) record(method string, p query.Parsed) query.Parsed {
	metrics.QueryParserTotal.WithLabelValues(method).Inc()
	return p
}

func (s *Service) sanitize(raw query.Parsed, text, userRegion string) query.Parsed {
	intent := raw.Intent
	if !intent.IsValid() {
		intent = query.IntentMixed
	}

	kws := make([]string, 0, len(raw.Keywords))
	for _, k := range raw.Keywords {
		kws = append(kws, strings.ToLower(strings.TrimSpace(k)))
	}
	kws = keywords(kws)
	if len(kws) == 0 {
		kws = splitKeywords(text)
	}

	groups := s.vocab.Normalize(raw.Filters.TargetGroups)
	if len(groups) == 0 {
		groups = s.vocab.Match(text)
	}

	return query.Parsed{
		Intent:   intent,
		Keywords: kws,
		Filters: query.Filters{
			ContentTypes:  contentTypes(raw.Filters.ContentTypes, intent),
			TargetGroups:  groups,
			Regions:       s.regionCodes(raw.Filters.Regions, text, userRegion),
			CategorySlugs: slugs(raw.Filters.CategorySlugs),
		},
	}
}

// regionCodes resolves proposed regions plus those named in text. The user's
// region is added only on request and removed when nothing asked for it.
func (s *Service) regionCodes(proposed []string, text, userRegion string) []string {
	named := make(map[string]struct{})
	var codes []string
	add := func(code string) {
		if slices.Contains(codes, code) {
			return
		}
		codes = append(codes, code)
	}

	for _, r := range s.regions.Match(text) {
		named[r.Code] = struct{}{}
		add(r.Code)
	}
	for _, p := range proposed {
		if r, ok := s.regions.Lookup(p); ok {
			add(r.Code)
		}
	}

	home, hasHome := s.regions.Lookup(userRegion)
	if !hasHome {
		return codes
	}
	if wantsLocal(text) {
		add(home.Code)
		return codes
	}
	if _, ok := named[home.Code]; ok {
		return codes
	}
	return slices.DeleteFunc(codes, func(c string) bool { return c == home.Code })
}

func wantsLocal(text string) bool {
	tokens := beneficiary.Tokenize(text)
	for i, t := range tokens {
		if slices.Contains(localWords, t) {
			return true
		}
		if i > 0 && strings.HasPrefix(t, "регион") && slices.Contains(possessives, tokens[i-1]) {
			return true
		}
	}
	return false
}

// splitKeywords returns the first whitespace-separated lowercase tokens of text
// as typed. Repeats and punctuation are kept.
func splitKeywords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	return fields[:min(len(fields), query.MaxKeywords)]
}

// keywords cleans keywords proposed by the semantic parser.
func keywords(tokens []string) []string {
	out := make([]string, 0, min(len(tokens), query.MaxKeywords))
	for _, t := range tokens {
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
		if len(out) == query.MaxKeywords {
			break
		}
	}
	return out
}

func contentTypes(proposed []catalog.Kind, intent query.Intent) []catalog.Kind {
	var out []catalog.Kind
	for _, k := range proposed {
		if k.IsValid() && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	if len(out) > 0 {
		return out
	}
	switch intent {
	case query.IntentFindBenefits:
		return []catalog.Kind{catalog.KindBenefit}
	case query.IntentFindCommercial:
		return []catalog.Kind{catalog.KindCommercial}
	default:
		return catalog.Kinds()
	}
}

func slugs(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
