package entry

import (
	"reflect"
	"testing"

	"github.com/lgoty/benefitsearch/internal/domain/catalog"
)

func TestFromRecord(t *testing.T) {
	b := &catalog.Benefit{
		ID:           12,
		Title:        "Бесплатный проезд",
		TargetGroups: []string{"pensioner"},
		Regions:      []catalog.Region{{Code: "77", Name: "Москва"}},
		Status:       catalog.StatusExpiringSoon,
	}
	e := FromRecord(b, []float32{1, 0})

	if e.ID() != 0 {
		t.Errorf("new entry must have no id, got %d", e.ID())
	}
	if e.Ref() != catalog.BenefitRef(12) || e.Kind() != catalog.KindBenefit {
		t.Errorf("unexpected ref %v", e.Ref())
	}
	if !e.Active() {
		t.Error("expiring_soon record must be active")
	}
	if !reflect.DeepEqual(e.Regions(), []string{"77"}) {
		t.Errorf("regions = %v", e.Regions())
	}

	b.TargetGroups[0] = "veteran"
	if e.TargetGroups()[0] != "pensioner" {
		t.Error("entry must not alias record target groups")
	}
}

func TestFromRecord_RequiresVerificationIsInactive(t *testing.T) {
	e := FromRecord(&catalog.Offer{ID: 1, Status: catalog.StatusRequiresVerification}, nil)
	if e.Active() {
		t.Error("requires_verification must not be active")
	}
}

func TestRegionCodes(t *testing.T) {
	many := []catalog.Region{{Code: "01"}, {Code: "02"}, {Code: "03"}, {Code: "04"}, {Code: "05"}, {Code: "06"}, {Code: "07"}}
	tests := []struct {
		name    string
		regions []catalog.Region
		all     bool
		want    []string
	}{
		{"all regions sentinel", nil, true, []string{AllRegions}},
		{"no scope", nil, false, []string{}},
		{"capped to five", many, false, []string{"01", "02", "03", "04", "05"}},
		{"explicit wins over all flag", many[:2], true, []string{"01", "02"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := RegionCodes(tc.regions, tc.all); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("RegionCodes = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWithID(t *testing.T) {
	e := Reconstruct(0, catalog.OfferRef(3), "x", nil, []string{AllRegions}, true, nil)
	saved := e.WithID(42)
	if saved.ID() != 42 || e.ID() != 0 {
		t.Errorf("WithID must copy: saved=%d orig=%d", saved.ID(), e.ID())
	}
	if !saved.AppliesToAllRegions() {
		t.Error("expected all regions")
	}
}
