package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/lgoty/benefitsearch/internal/domain"
	domcat "github.com/lgoty/benefitsearch/internal/domain/catalog"
	"github.com/lgoty/benefitsearch/internal/domain/query"
	healthuc "github.com/lgoty/benefitsearch/internal/usecase/health"
	searchuc "github.com/lgoty/benefitsearch/internal/usecase/search"
)

type fakeSearcher struct {
	result  searchuc.Result
	err     error
	gotReq  searchuc.Request
	gotRefs []domcat.Ref
	records []domcat.Record
	recent  []query.Recent
	panics  bool
}

func (f *fakeSearcher) Search(_ context.Context, req searchuc.Request) (searchuc.Result, error) {
	if f.panics {
		panic("boom")
	}
	f.gotReq = req
	if f.err != nil {
		return searchuc.Result{}, f.err
	}
	res := f.result
	res.Query.Intent = query.IntentMixed
	return res, nil
}

func (f *fakeSearcher) Details(_ context.Context, refs []domcat.Ref) ([]domcat.Record, error) {
	f.gotRefs = refs
	return f.records, f.err
}

func (f *fakeSearcher) Recent(_ context.Context, _ string) ([]query.Recent, error) {
	return f.recent, f.err
}

type fakeAssistant struct {
	gotText string
	gotN    int
	out     []string
}

func (f *fakeAssistant) Context(_ context.Context, text string, n int) []string {
	f.gotText, f.gotN = text, n
	return f.out
}

type fakeHealth struct{ report healthuc.Report }

func (f fakeHealth) Check(context.Context) healthuc.Report { return f.report }

func newTestRouter(s *fakeSearcher, a *fakeAssistant, h fakeHealth) http.Handler {
	return NewRouter(NewServer(s, a, h, nil), nil, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return e
}

func TestSearch_OK(t *testing.T) {
	s := &fakeSearcher{result: searchuc.Result{
		Benefits: []searchuc.BenefitHit{{
			Benefit: &domcat.Benefit{
				ID: 7, Title: "Бесплатный проезд", Type: domcat.BenefitRegional,
				TargetGroups: []string{"pensioners"},
				Regions:      []domcat.Region{{Code: "77", Name: "Москва"}},
				Status:       domcat.StatusActive,
			},
			Score: 0.9,
		}},
		Offers: []searchuc.OfferHit{{
			Offer: &domcat.Offer{ID: 7, Title: "Скидка в аптеке", PartnerName: "Аптека", AppliesToAllRegions: true,
				Status: domcat.StatusActive},
			Score: 0.5,
		}},
		TotalBenefits: 3,
		TotalOffers:   1,
	}}
	h := newTestRouter(s, &fakeAssistant{}, fakeHealth{})

	rr := do(t, h, http.MethodPost, "/search", `{"query":"льготы пенсионерам"}`, map[string]string{
		HeaderUserID: "u1", HeaderUserRegion: "77",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if s.gotReq.UserID != "u1" || s.gotReq.UserRegion != "77" || s.gotReq.Query != "льготы пенсионерам" {
		t.Errorf("request not propagated: %+v", s.gotReq)
	}

	var resp searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Query.Intent != "mixed" {
		t.Errorf("intent: got %q", resp.Query.Intent)
	}
	if resp.TotalBenefits != 3 || resp.TotalOffers != 1 {
		t.Errorf("totals: got %d/%d", resp.TotalBenefits, resp.TotalOffers)
	}
	if len(resp.Benefits) != 1 || resp.Benefits[0].Type != "benefit" || resp.Benefits[0].ID != 7 {
		t.Fatalf("benefits: %+v", resp.Benefits)
	}
	if resp.Benefits[0].Score == nil || *resp.Benefits[0].Score != 0.9 {
		t.Errorf("benefit score missing")
	}
	if resp.Benefits[0].BenefitType != "regional" || resp.Benefits[0].Regions[0].Code != "77" {
		t.Errorf("benefit fields: %+v", resp.Benefits[0])
	}
	if len(resp.Offers) != 1 || resp.Offers[0].Type != "commercial" || resp.Offers[0].PartnerName != "Аптека" {
		t.Errorf("offers: %+v", resp.Offers)
	}
	if resp.Query.Filters.Regions == nil || resp.Query.Keywords == nil {
		t.Error("empty lists must encode as []")
	}
}

func TestSearch_EmptyBodyResultEncodesArrays(t *testing.T) {
	h := newTestRouter(&fakeSearcher{}, &fakeAssistant{}, fakeHealth{})
	rr := do(t, h, http.MethodPost, "/search", `{"query":"x"}`, nil)
	if !strings.Contains(rr.Body.String(), `"benefits":[]`) || !strings.Contains(rr.Body.String(), `"offers":[]`) {
		t.Errorf("want empty arrays, got %s", rr.Body.String())
	}
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  errorCode
	}{
		{"malformed body", `{`, nil, http.StatusBadRequest, codeBadRequest},
		{"empty query", `{"query":""}`, domain.ErrEmptyQuery, http.StatusBadRequest, codeEmptyQuery},
		{"embedding down", `{"query":"x"}`,
			fmt.Errorf("embed: %w", domain.ErrEmbeddingProviderError), http.StatusBadGateway, codeEmbeddingProviderError},
		{"tables missing", `{"query":"x"}`,
			fmt.Errorf("load: %w", domain.ErrStoreNotReady), http.StatusServiceUnavailable, codeStoreNotReady},
		{"unknown failure", `{"query":"x"}`, errors.New("secret dsn"), http.StatusInternalServerError, codeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&fakeSearcher{err: tt.err}, &fakeAssistant{}, fakeHealth{})
			rr := do(t, h, http.MethodPost, "/search", tt.body, nil)
			if rr.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.wantCode)
			}
			e := decodeError(t, rr)
			if e.Code != tt.wantErr {
				t.Errorf("code: got %s, want %s", e.Code, tt.wantErr)
			}
			if strings.Contains(e.Message, "secret") {
				t.Errorf("internal error leaked: %q", e.Message)
			}
		})
	}
}

func TestSearch_PanicRecovered(t *testing.T) {
	h := newTestRouter(&fakeSearcher{panics: true}, &fakeAssistant{}, fakeHealth{})
	rr := do(t, h, http.MethodPost, "/search", `{"query":"x"}`, nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != codeInternalError {
		t.Errorf("code: got %s", e.Code)
	}
}

func TestSearch_RequestIDHeader(t *testing.T) {
	h := newTestRouter(&fakeSearcher{}, &fakeAssistant{}, fakeHealth{})
	rr := do(t, h, http.MethodPost, "/search", `{"query":"x"}`, nil)
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestDetails(t *testing.T) {
	s := &fakeSearcher{records: []domcat.Record{
		&domcat.Offer{ID: 2, Title: "Скидка", PromoCode: "SALE"},
		&domcat.Benefit{ID: 2, Title: "Льгота", DocumentsNeeded: []string{"паспорт"}},
	}}
	h := newTestRouter(s, &fakeAssistant{}, fakeHealth{})

	rr := do(t, h, http.MethodPost, "/search/details",
		`{"items":[{"type":"commercial","id":2},{"type":"benefit","id":2}]}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if len(s.gotRefs) != 2 || s.gotRefs[0] != domcat.OfferRef(2) || s.gotRefs[1] != domcat.BenefitRef(2) {
		t.Errorf("refs: %v", s.gotRefs)
	}

	var items []recordResponse
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items: %d", len(items))
	}
	if items[0].PromoCode != "SALE" || items[0].Score != nil {
		t.Errorf("offer item: %+v", items[0])
	}
	if items[1].DocumentsNeeded[0] != "паспорт" {
		t.Errorf("benefit item: %+v", items[1])
	}
}

func TestDetails_SkipsInvalidItems(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []domcat.Ref
	}{
		{"unknown type", `{"items":[{"type":"coupon","id":1},{"type":"benefit","id":2}]}`,
			[]domcat.Ref{domcat.BenefitRef(2)}},
		{"non-positive id", `{"items":[{"type":"benefit","id":0},{"type":"commercial","id":5}]}`,
			[]domcat.Ref{domcat.OfferRef(5)}},
		{"all invalid", `{"items":[{"type":"coupon","id":1},{"type":"benefit","id":-3}]}`,
			[]domcat.Ref{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSearcher{}
			h := newTestRouter(s, &fakeAssistant{}, fakeHealth{})
			rr := do(t, h, http.MethodPost, "/search/details", tt.body, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
			}
			if !slices.Equal(s.gotRefs, tt.want) {
				t.Errorf("refs: got %v, want %v", s.gotRefs, tt.want)
			}
			if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
				t.Errorf("body: got %s, want []", body)
			}
		})
	}
}

func TestRecent(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := &fakeSearcher{recent: []query.Recent{{Query: "проезд", Intent: query.IntentFindBenefits, At: at}}}
	h := newTestRouter(s, &fakeAssistant{}, fakeHealth{})

	rr := do(t, h, http.MethodGet, "/search/recent", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing user id: got %d", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/search/recent", "", map[string]string{HeaderUserID: "u1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var resp recentResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Query != "проезд" || !resp.Items[0].At.Equal(at) {
		t.Errorf("items: %+v", resp.Items)
	}
}

func TestAssistantContext(t *testing.T) {
	a := &fakeAssistant{out: []string{"Льгота: A", "Льгота: B"}}
	h := newTestRouter(&fakeSearcher{}, a, fakeHealth{})

	rr := do(t, h, http.MethodPost, "/assistant/context", `{"message":"что положено пенсионерам"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if a.gotN != 3 {
		t.Errorf("default limit: got %d", a.gotN)
	}
	var resp assistantContextResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Snippets) != 2 || !strings.Contains(resp.Context, "Льгота: A\n---\nЛьгота: B") {
		t.Errorf("response: %+v", resp)
	}
}

func TestAssistantContext_Validation(t *testing.T) {
	h := newTestRouter(&fakeSearcher{}, &fakeAssistant{}, fakeHealth{})
	for _, body := range []string{`{"message":"  "}`, `{"message":"x","limit":0}`, `{"message":"x","limit":11}`} {
		rr := do(t, h, http.MethodPost, "/assistant/context", body, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d", body, rr.Code)
		}
	}
}

func TestAssistantContext_NoSnippets(t *testing.T) {
	h := newTestRouter(&fakeSearcher{}, &fakeAssistant{}, fakeHealth{})
	rr := do(t, h, http.MethodPost, "/assistant/context", `{"message":"x","limit":5}`, nil)
	if !strings.Contains(rr.Body.String(), `"snippets":[]`) {
		t.Errorf("want empty snippets, got %s", rr.Body.String())
	}
}

func TestExtractSearch(t *testing.T) {
	h := newTestRouter(&fakeSearcher{}, &fakeAssistant{}, fakeHealth{})

	rr := do(t, h, http.MethodPost, "/assistant/extract-search",
		`{"response":"Сейчас поищу. [SEARCH: скидки на лекарства]"}`, nil)
	var resp extractSearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SearchQuery == nil || *resp.SearchQuery != "скидки на лекарства" {
		t.Errorf("search query: %v", resp.SearchQuery)
	}
	if resp.Response != "Сейчас поищу." {
		t.Errorf("cleaned: %q", resp.Response)
	}

	rr = do(t, h, http.MethodPost, "/assistant/extract-search", `{"response":"Просто ответ"}`, nil)
	if strings.Contains(rr.Body.String(), "search_query") {
		t.Errorf("unexpected search_query: %s", rr.Body.String())
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		report healthuc.Report
		want   int
	}{
		{"healthy", healthuc.Report{Status: healthuc.Healthy, VectorState: "ready", Vectors: 4, IndexedEntries: 4,
			Checks: map[string]healthuc.CheckResult{"postgres": healthuc.CheckOK}}, http.StatusOK},
		{"degraded", healthuc.Report{Status: healthuc.Degraded, VectorState: "degraded",
			Checks: map[string]healthuc.CheckResult{"vector_store": healthuc.CheckError}}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&fakeSearcher{}, &fakeAssistant{}, fakeHealth{report: tt.report})
			rr := do(t, h, http.MethodGet, "/health", "", nil)
			if rr.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.want)
			}
			var resp healthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != string(tt.report.Status) || resp.VectorStore != tt.report.VectorState ||
				resp.Vectors != tt.report.Vectors || resp.IndexedEntries != tt.report.IndexedEntries {
				t.Errorf("response: %+v", resp)
			}
		})
	}
}

func TestRouter_AuthAndUnknownRoute(t *testing.T) {
	h := NewRouter(NewServer(&fakeSearcher{}, &fakeAssistant{}, fakeHealth{
		report: healthuc.Report{Status: healthuc.Healthy},
	}, nil), []string{"secret"}, nil)

	if rr := do(t, h, http.MethodPost, "/search", `{"query":"x"}`, nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated search: got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/health", "", nil); rr.Code != http.StatusOK {
		t.Errorf("health must be exempt: got %d", rr.Code)
	}
	rr := do(t, h, http.MethodGet, "/nope", "", map[string]string{"Authorization": "Bearer secret"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown route: got %d", rr.Code)
	}
}
