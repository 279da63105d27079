package indexing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"testing"

	"go.uber.org/zap"

	"github.com/lgoty/benefitsearch/internal/domain"
	"github.com/lgoty/benefitsearch/internal/domain/catalog"
	"github.com/lgoty/benefitsearch/internal/domain/entry"
	"github.com/lgoty/benefitsearch/internal/domain/query"
	"github.com/lgoty/benefitsearch/internal/metrics"
	"github.com/lgoty/benefitsearch/internal/vectorstore"
)

func TestMain(m *testing.M) {
	metrics.RegisterSearchMetrics()
	os.Exit(m.Run())
}

// memEntries is an in-memory entry table. It also serves as the vector store source.
type memEntries struct {
	nextID  int64
	byRef   map[catalog.Ref]entry.Entry
	failErr error
}

func newMemEntries() *memEntries {
	return &memEntries{byRef: make(map[catalog.Ref]entry.Entry)}
}

func (m *memEntries) Upsert(_ context.Context, e entry.Entry) (entry.Entry, error) {
	if m.failErr != nil {
		return entry.Entry{}, m.failErr
	}
	id := int64(0)
	if old, ok := m.byRef[e.Ref()]; ok {
		id = old.ID()
	} else {
		m.nextID++
		id = m.nextID
	}
	saved := e.WithID(id)
	m.byRef[e.Ref()] = saved
	return saved, nil
}

func (m *memEntries) DeleteByRef(_ context.Context, ref catalog.Ref) (int64, error) {
	if m.failErr != nil {
		return 0, m.failErr
	}
	old, ok := m.byRef[ref]
	if !ok {
		return 0, nil
	}
	delete(m.byRef, ref)
	return old.ID(), nil
}

func (m *memEntries) ListIndexable(_ context.Context) ([]entry.Entry, error) {
	var out []entry.Entry
	for _, e := range m.byRef {
		if e.Active() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (m *memEntries) GetMany(_ context.Context, ids []int64) (map[int64]entry.Entry, error) {
	out := make(map[int64]entry.Entry)
	for _, e := range m.byRef {
		for _, id := range ids {
			if e.ID() == id {
				out[id] = e
			}
		}
	}
	return out, nil
}

type fakeIndex struct {
	added   []int64
	removed []int64
	addErr  error
}

func (f *fakeIndex) AddItem(_ context.Context, id int64, _ []float32) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, id)
	return nil
}

func (f *fakeIndex) RemoveDocument(_ context.Context, id int64) error {
	f.removed = append(f.removed, id)
	return nil
}

// titleEmbedder maps titles to fixed unit vectors.
type titleEmbedder struct {
	dim     int
	vectors map[string][]float32
}

func (e *titleEmbedder) GenerateForRecord(_ context.Context, rec catalog.Record) []float32 {
	if v, ok := e.vectors[rec.Facets().Title]; ok {
		return v
	}
	return domain.ZeroVector(e.dim)
}

func benefit(id int64, title string, status catalog.Status, groups ...string) *catalog.Benefit {
	return &catalog.Benefit{
		ID: id, Title: title, Status: status,
		TargetGroups: groups, AppliesToAllRegions: true,
	}
}

func TestSynchronizer_SaveUpsertsAndAdds(t *testing.T) {
	entries, index := newMemEntries(), &fakeIndex{}
	s := New(entries, index, &titleEmbedder{dim: 2}, zap.NewNop())

	s.OnBenefitSaved(context.Background(), benefit(7, "Проезд", catalog.StatusActive, "pensioner"))

	e, ok := entries.byRef[catalog.BenefitRef(7)]
	if !ok {
		t.Fatal("entry not created")
	}
	if len(index.added) != 1 || index.added[0] != e.ID() {
		t.Errorf("added = %v, want [%d]", index.added, e.ID())
	}
	if got := e.Regions(); len(got) != 1 || got[0] != entry.AllRegions {
		t.Errorf("regions = %v", got)
	}
}

func TestSynchronizer_UpdateReplacesFields(t *testing.T) {
	entries, index := newMemEntries(), &fakeIndex{}
	s := New(entries, index, &titleEmbedder{dim: 2}, zap.NewNop())

	s.OnBenefitSaved(context.Background(), benefit(1, "Старое", catalog.StatusActive, "pensioner", "veteran"))
	s.OnBenefitSaved(context.Background(), benefit(1, "Новое", catalog.StatusExpiringSoon, "veteran"))

	if len(entries.byRef) != 1 {
		t.Fatalf("expected one entry per ref, got %d", len(entries.byRef))
	}
	e := entries.byRef[catalog.BenefitRef(1)]
	if e.Title() != "Новое" || len(e.TargetGroups()) != 1 || !e.Active() {
		t.Errorf("entry = title %q groups %v active %v", e.Title(), e.TargetGroups(), e.Active())
	}
}

func TestSynchronizer_KindsDoNotCollide(t *testing.T) {
	entries := newMemEntries()
	s := New(entries, &fakeIndex{}, &titleEmbedder{dim: 2}, zap.NewNop())

	s.OnBenefitSaved(context.Background(), benefit(3, "Льгота", catalog.StatusActive))
	s.OnOfferSaved(context.Background(), &catalog.Offer{ID: 3, Title: "Скидка", Status: catalog.StatusActive})
	s.OnDeleted(context.Background(), catalog.OfferRef(3))

	if _, ok := entries.byRef[catalog.BenefitRef(3)]; !ok {
		t.Error("benefit entry removed by offer delete")
	}
	if _, ok := entries.byRef[catalog.OfferRef(3)]; ok {
		t.Error("offer entry not removed")
	}
}

func TestSynchronizer_ExpiredRemoves(t *testing.T) {
	entries, index := newMemEntries(), &fakeIndex{}
	s := New(entries, index, &titleEmbedder{dim: 2}, zap.NewNop())

	s.OnBenefitSaved(context.Background(), benefit(2, "Льгота", catalog.StatusActive))
	stored := entries.byRef[catalog.BenefitRef(2)]
	id := stored.ID()
	s.OnBenefitSaved(context.Background(), benefit(2, "Льгота", catalog.StatusExpired))

	if _, ok := entries.byRef[catalog.BenefitRef(2)]; ok {
		t.Error("entry for expired record still exists")
	}
	if len(index.removed) != 1 || index.removed[0] != id {
		t.Errorf("removed = %v, want [%d]", index.removed, id)
	}
}

func TestSynchronizer_DeleteUnknownIsNoop(t *testing.T) {
	index := &fakeIndex{}
	s := New(newMemEntries(), index, &titleEmbedder{dim: 2}, zap.NewNop())

	s.OnDeleted(context.Background(), catalog.BenefitRef(99))

	if len(index.removed) != 0 {
		t.Errorf("removed = %v, want none", index.removed)
	}
}

func TestSynchronizer_InactiveNotAdded(t *testing.T) {
	entries, index := newMemEntries(), &fakeIndex{}
	s := New(entries, index, &titleEmbedder{dim: 2}, zap.NewNop())

	s.OnBenefitSaved(context.Background(), benefit(4, "Проверка", catalog.StatusRequiresVerification))

	if _, ok := entries.byRef[catalog.BenefitRef(4)]; !ok {
		t.Error("non-expired record must have an entry")
	}
	if len(index.added) != 0 {
		t.Errorf("added = %v, want none", index.added)
	}
}

func TestSynchronizer_ErrorsAreSwallowed(t *testing.T) {
	entries := newMemEntries()
	entries.failErr = fmt.Errorf("upsert entry: %w", domain.ErrStoreNotReady)
	index := &fakeIndex{}
	s := New(entries, index, &titleEmbedder{dim: 2}, zap.NewNop())

	s.OnBenefitSaved(context.Background(), benefit(1, "Льгота", catalog.StatusActive))
	s.OnDeleted(context.Background(), catalog.BenefitRef(1))

	if len(index.added) != 0 || len(index.removed) != 0 {
		t.Errorf("index touched after store failure: %+v", index)
	}

	entries.failErr = nil
	index.addErr = errors.New("disk full")
	s.OnBenefitSaved(context.Background(), benefit(1, "Льгота", catalog.StatusActive))
	if _, ok := entries.byRef[catalog.BenefitRef(1)]; !ok {
		t.Error("entry must be saved even when the vector append fails")
	}
}

func TestSynchronizer_ZeroVectorStillIndexed(t *testing.T) {
	entries, index := newMemEntries(), &fakeIndex{}
	s := New(entries, index, &titleEmbedder{dim: 4}, zap.NewNop())

	s.OnBenefitSaved(context.Background(), benefit(5, "Без эмбеддинга", catalog.StatusActive))

	e := entries.byRef[catalog.BenefitRef(5)]
	if len(e.Embedding()) != 4 || !domain.IsZeroVector(e.Embedding()) {
		t.Errorf("embedding = %v", e.Embedding())
	}
	if len(index.added) != 1 {
		t.Errorf("added = %v", index.added)
	}
}

func TestSynchronizer_ExpiryHidesFromSearch(t *testing.T) {
	ctx := context.Background()
	entries := newMemEntries()
	emb := &titleEmbedder{dim: 2, vectors: map[string][]float32{
		"one":   {1, 0},
		"two":   {0.8, 0.6},
		"three": {0.6, 0.8},
	}}
	store := vectorstore.New(vectorstore.Config{Dimension: 2, Widen: true}, entries, vectorstore.Metrics{}, zap.NewNop())
	s := New(entries, store, emb, zap.NewNop())

	s.OnBenefitSaved(ctx, benefit(1, "one", catalog.StatusActive, "pensioner"))
	s.OnBenefitSaved(ctx, benefit(2, "two", catalog.StatusActive, "veteran"))
	s.OnBenefitSaved(ctx, benefit(3, "three", catalog.StatusActive, "pensioner", "veteran"))
	stored2 := entries.byRef[catalog.BenefitRef(2)]
	id2 := stored2.ID()

	s.OnBenefitSaved(ctx, benefit(2, "two", catalog.StatusExpired, "veteran"))

	hits, err := store.Search(ctx, []float32{0.8, 0.6}, query.Filters{}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %+v, want 2", hits)
	}
	for _, h := range hits {
		if h.EntryID == id2 {
			t.Errorf("expired entry %d returned", id2)
		}
	}
	if _, ok := entries.byRef[catalog.BenefitRef(2)]; ok {
		t.Error("entry for expired record still exists")
	}
}
