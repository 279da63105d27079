// Package catalog holds the read model of benefits and partner offers that the search core indexes.
package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags a catalog record as a government benefit or a commercial partner offer.
type Kind string

const (
	// KindBenefit is a government benefit.
	KindBenefit Kind = "benefit"
	// KindCommercial is a commercial partner offer.
	KindCommercial Kind = "commercial"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool { return k == KindBenefit || k == KindCommercial }

// ParseKind converts a wire value into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSpace(strings.ToLower(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("unknown record kind %q", s)
	}
	return k, nil
}

// Kinds returns every kind in a stable order.
func Kinds() []Kind { return []Kind{KindBenefit, KindCommercial} }

// Status is the lifecycle state of a catalog record.
type Status string

// Lifecycle states.
const (
	StatusActive               Status = "active"
	StatusExpiringSoon         Status = "expiring_soon"
	StatusExpired              Status = "expired"
	StatusRequiresVerification Status = "requires_verification"
)

// IsActive reports whether a record in this status is shown in search results.
func (s Status) IsActive() bool { return s == StatusActive || s == StatusExpiringSoon }

// IsExpired reports whether the record must be dropped from the index.
func (s Status) IsExpired() bool { return s == StatusExpired }

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusExpiringSoon, StatusExpired, StatusRequiresVerification:
		return true
	}
	return false
}

// Ref identifies a catalog record. Numeric ids are only unique within a kind,
// so a Ref is the only valid lookup key.
type Ref struct {
	kind Kind
	id   int64
}

// BenefitRef references a benefit.
func BenefitRef(id int64) Ref { return Ref{kind: KindBenefit, id: id} }

// OfferRef references a commercial offer.
func OfferRef(id int64) Ref { return Ref{kind: KindCommercial, id: id} }

// NewRef validates and creates a Ref.
func NewRef(kind Kind, id int64) (Ref, error) {
	if !kind.IsValid() {
		return Ref{}, fmt.Errorf("unknown record kind %q", kind)
	}
	if id <= 0 {
		return Ref{}, fmt.Errorf("record id must be positive, got %d", id)
	}
	return Ref{kind: kind, id: id}, nil
}

// Kind returns the record kind.
func (r Ref) Kind() Kind { return r.kind }

// ID returns the kind-scoped numeric id.
func (r Ref) ID() int64 { return r.id }

// IsZero reports whether r is the zero value.
func (r Ref) IsZero() bool { return r.kind == "" && r.id == 0 }

func (r Ref) String() string { return string(r.kind) + ":" + strconv.FormatInt(r.id, 10) }

// Region is a federal subject of Russia.
type Region struct {
	Code string
	Name string
}

// Category groups records by topic (housing, transport, ...).
type Category struct {
	Slug string
	Name string
}

// Facets are the fields of a record that the search index denormalizes.
type Facets struct {
	Title               string
	TargetGroups        []string
	Regions             []Region
	AppliesToAllRegions bool
	Status              Status
}

// Record is the common view over benefits and offers.
type Record interface {
	Ref() Ref
	Facets() Facets
}

// BenefitType is the government level that grants a benefit.
type BenefitType string

// Benefit levels.
const (
	BenefitFederal   BenefitType = "federal"
	BenefitRegional  BenefitType = "regional"
	BenefitMunicipal BenefitType = "municipal"
)

// IsValid reports whether t is a known level.
func (t BenefitType) IsValid() bool {
	return t == BenefitFederal || t == BenefitRegional || t == BenefitMunicipal
}

// Benefit is a government benefit or entitlement.
type Benefit struct {
	ID                  int64
	BenefitID           string
	Title               string
	Description         string
	Type                BenefitType
	TargetGroups        []string
	Regions             []Region
	AppliesToAllRegions bool
	Status              Status
	Requirements        string
	HowToGet            string
	DocumentsNeeded     []string
	SourceURL           string
	Categories          []Category
}

// Ref returns the benefit reference.
func (b *Benefit) Ref() Ref { return BenefitRef(b.ID) }

// Facets returns the indexable fields.
func (b *Benefit) Facets() Facets {
	return Facets{
		Title:               b.Title,
		TargetGroups:        b.TargetGroups,
		Regions:             b.Regions,
		AppliesToAllRegions: b.AppliesToAllRegions,
		Status:              b.Status,
	}
}

// Offer is a commercial discount from a partner.
type Offer struct {
	ID                  int64
	OfferID             string
	Title               string
	Description         string
	DiscountDescription string
	PartnerName         string
	PartnerWebsite      string
	PartnerCategory     string
	TargetGroups        []string
	Regions             []Region
	AppliesToAllRegions bool
	Status              Status
	HowToUse            string
	PromoCode           string
	Categories          []Category
}

// Ref returns the offer reference.
func (o *Offer) Ref() Ref { return OfferRef(o.ID) }

// Facets returns the indexable fields.
func (o *Offer) Facets() Facets {
	return Facets{
		Title:               o.Title,
		TargetGroups:        o.TargetGroups,
		Regions:             o.Regions,
		AppliesToAllRegions: o.AppliesToAllRegions,
		Status:              o.Status,
	}
}

// RegionNames returns up to limit region names; limit <= 0 means all.
func RegionNames(regions []Region, limit int) []string {
	n := len(regions)
	if limit > 0 && n > limit {
		n = limit
	}
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = regions[i].Name
	}
	return names
}

// CategoryNames returns up to limit category names; limit <= 0 means all.
func CategoryNames(categories []Category, limit int) []string {
	n := len(categories)
	if limit > 0 && n > limit {
		n = limit
	}
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = categories[i].Name
	}
	return names
}
