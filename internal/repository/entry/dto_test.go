package entry

import (
	"testing"

	"github.com/lgoty/benefitsearch/internal/domain"
	"github.com/lgoty/benefitsearch/internal/domain/catalog"
)

func TestToDomain(t *testing.T) {
	emb := domain.EncodeVector([]float32{0.5, 0.5})
	e, err := toDomain(9, "commercial", 4, "Скидка", nil, []string{"all"}, true, emb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID() != 9 || e.Ref() != catalog.OfferRef(4) {
		t.Errorf("unexpected identity %d %v", e.ID(), e.Ref())
	}
	if e.TargetGroups() == nil {
		t.Error("target groups must be non-nil")
	}
	if len(e.Embedding()) != 2 || e.Embedding()[0] != 0.5 {
		t.Errorf("embedding = %v", e.Embedding())
	}
}

func TestToDomain_NullEmbedding(t *testing.T) {
	e, err := toDomain(1, "benefit", 1, "t", nil, nil, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Embedding() != nil {
		t.Errorf("expected nil embedding, got %v", e.Embedding())
	}
}

func TestToDomain_Invalid(t *testing.T) {
	if _, err := toDomain(1, "coupon", 1, "t", nil, nil, true, nil); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := toDomain(1, "benefit", 1, "t", nil, nil, true, []byte{1}); err == nil {
		t.Error("expected error for corrupt embedding")
	}
}
