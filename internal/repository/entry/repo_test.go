package entry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lgoty/benefitsearch/internal/db/postgres/pgtest"
	"github.com/lgoty/benefitsearch/internal/domain"
	"github.com/lgoty/benefitsearch/internal/domain/catalog"
	domentry "github.com/lgoty/benefitsearch/internal/domain/entry"
	"github.com/lgoty/benefitsearch/internal/repository/entry"
)

func newEntry(ref catalog.Ref, title string, groups []string, active bool, emb []float32) domentry.Entry {
	return domentry.Reconstruct(0, ref, title, groups, []string{domentry.AllRegions}, active, emb)
}

func TestRepo_UpsertReplacesByRef(t *testing.T) {
	repo := entry.New(pgtest.Start(t).DB())
	ctx := context.Background()

	first, err := repo.Upsert(ctx, newEntry(catalog.BenefitRef(1), "old", []string{"pensioner"}, true, []float32{1, 0}))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := repo.Upsert(ctx, newEntry(catalog.BenefitRef(1), "new", []string{"veteran"}, true, []float32{0, 1}))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.ID() == 0 || first.ID() != second.ID() {
		t.Fatalf("upsert must keep the id: %d vs %d", first.ID(), second.ID())
	}

	got, err := repo.GetMany(ctx, []int64{second.ID()})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	e := got[second.ID()]
	if e.Title() != "new" || len(e.TargetGroups()) != 1 || e.TargetGroups()[0] != "veteran" {
		t.Errorf("stale fields survived: %q %v", e.Title(), e.TargetGroups())
	}
	if n, _ := repo.CountIndexable(ctx); n != 1 {
		t.Errorf("expected exactly one entry, got %d", n)
	}
}

func TestRepo_KindsDoNotCollide(t *testing.T) {
	repo := entry.New(pgtest.Start(t).DB())
	ctx := context.Background()

	b, _ := repo.Upsert(ctx, newEntry(catalog.BenefitRef(5), "benefit", nil, true, []float32{1}))
	o, _ := repo.Upsert(ctx, newEntry(catalog.OfferRef(5), "offer", nil, true, []float32{1}))
	if b.ID() == o.ID() {
		t.Fatal("benefit and offer with the same record id must get different entries")
	}

	if _, err := repo.DeleteByRef(ctx, catalog.OfferRef(5)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := repo.GetMany(ctx, []int64{b.ID(), o.ID()})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := got[b.ID()]; !ok {
		t.Error("benefit entry must survive offer delete")
	}
	if _, ok := got[o.ID()]; ok {
		t.Error("offer entry must be gone")
	}
}

func TestRepo_ListIndexableSkipsInactiveAndUnembedded(t *testing.T) {
	repo := entry.New(pgtest.Start(t).DB())
	ctx := context.Background()

	keep, _ := repo.Upsert(ctx, newEntry(catalog.BenefitRef(1), "a", nil, true, []float32{1}))
	_, _ = repo.Upsert(ctx, newEntry(catalog.BenefitRef(2), "b", nil, false, []float32{1}))
	_, _ = repo.Upsert(ctx, newEntry(catalog.BenefitRef(3), "c", nil, true, nil))

	list, err := repo.ListIndexable(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID() != keep.ID() {
		t.Fatalf("unexpected list: %v", list)
	}
	if n, err := repo.CountIndexable(ctx); err != nil || n != 1 {
		t.Errorf("CountIndexable = %d, %v", n, err)
	}

	many, err := repo.GetMany(ctx, []int64{keep.ID(), 9999})
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	if len(many) != 1 {
		t.Errorf("expected 1 entry, got %d", len(many))
	}
}

func TestRepo_DeleteMissingIsNoop(t *testing.T) {
	repo := entry.New(pgtest.Start(t).DB())
	id, err := repo.DeleteByRef(context.Background(), catalog.BenefitRef(404))
	if err != nil || id != 0 {
		t.Fatalf("DeleteByRef = %d, %v", id, err)
	}
}

func TestRepo_NotMigratedIsStoreNotReady(t *testing.T) {
	repo := entry.New(pgtest.StartEmpty(t).DB())
	_, err := repo.ListIndexable(context.Background())
	if !errors.Is(err, domain.ErrStoreNotReady) {
		t.Fatalf("expected ErrStoreNotReady, got %v", err)
	}
}
