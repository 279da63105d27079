package query

import (
	"testing"

	"github.com/lgoty/benefitsearch/internal/domain/catalog"
	"github.com/lgoty/benefitsearch/internal/domain/entry"
)

func newEntry(ref catalog.Ref, groups, regions []string, active bool) *entry.Entry {
	e := entry.Reconstruct(1, ref, "t", groups, regions, active, nil)
	return &e
}

func TestFilters_Matches(t *testing.T) {
	pensionerMoscow := newEntry(catalog.BenefitRef(1), []string{"pensioner"}, []string{"77"}, true)
	veteranEverywhere := newEntry(catalog.OfferRef(2), []string{"veteran"}, []string{entry.AllRegions}, true)
	inactive := newEntry(catalog.BenefitRef(3), []string{"pensioner"}, []string{entry.AllRegions}, false)

	tests := []struct {
		name    string
		filters Filters
		e       *entry.Entry
		want    bool
	}{
		{"empty accepts active", Filters{}, pensionerMoscow, true},
		{"empty rejects inactive", Filters{}, inactive, false},
		{"kind mismatch", Filters{ContentTypes: []catalog.Kind{catalog.KindBenefit}}, veteranEverywhere, false},
		{"kind match", Filters{ContentTypes: []catalog.Kind{catalog.KindBenefit, catalog.KindCommercial}}, veteranEverywhere, true},
		{"group overlap", Filters{TargetGroups: []string{"veteran", "pensioner"}}, pensionerMoscow, true},
		{"group disjoint", Filters{TargetGroups: []string{"veteran"}}, pensionerMoscow, false},
		{"region match", Filters{Regions: []string{"77"}}, pensionerMoscow, true},
		{"region mismatch", Filters{Regions: []string{"78"}}, pensionerMoscow, false},
		{"all regions matches any region", Filters{Regions: []string{"78"}}, veteranEverywhere, true},
		{"category slugs ignored", Filters{CategorySlugs: []string{"housing"}}, pensionerMoscow, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filters.Matches(tc.e); got != tc.want {
				t.Errorf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilters_IsEmpty(t *testing.T) {
	if !(Filters{}).IsEmpty() {
		t.Error("zero filters must be empty")
	}
	if (Filters{Regions: []string{"77"}}).IsEmpty() {
		t.Error("filters with regions must not be empty")
	}
}

func TestIntent_IsValid(t *testing.T) {
	for _, i := range []Intent{IntentFindBenefits, IntentFindCommercial, IntentMixed} {
		if !i.IsValid() {
			t.Errorf("%q must be valid", i)
		}
	}
	if Intent("shopping").IsValid() {
		t.Error("unknown intent must be invalid")
	}
}
