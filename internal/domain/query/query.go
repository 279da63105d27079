// Package query defines the structured form of a free-text search request.
package query

import (
	"time"

	"github.com/lgoty/benefitsearch/internal/domain/catalog"
	"github.com/lgoty/benefitsearch/internal/domain/entry"
)

// Intent is what the user is looking for.
type Intent string

// Known intents.
const (
	IntentFindBenefits   Intent = "find_benefits"
	IntentFindCommercial Intent = "find_commercial"
	IntentMixed          Intent = "mixed"
)

// IsValid reports whether i is a known intent.
func (i Intent) IsValid() bool {
	return i == IntentFindBenefits || i == IntentFindCommercial || i == IntentMixed
}

// MaxKeywords caps the keyword list.
const MaxKeywords = 10

// Filters narrow vector search candidates. Empty slices accept everything.
type Filters struct {
	ContentTypes  []catalog.Kind
	TargetGroups  []string
	Regions       []string
	CategorySlugs []string
}

// Parsed is the result of parsing one query.
type Parsed struct {
	Intent   Intent
	Keywords []string
	Filters  Filters
}

// Matches reports whether an entry survives the filters. Inactive entries never do.
// Category slugs are not denormalized into entries and are not checked here.
func (f Filters) Matches(e *entry.Entry) bool {
	if !e.Active() {
		return false
	}
	if len(f.ContentTypes) > 0 && !containsKind(f.ContentTypes, e.Kind()) {
		return false
	}
	if len(f.TargetGroups) > 0 && !overlaps(f.TargetGroups, e.TargetGroups()) {
		return false
	}
	if len(f.Regions) > 0 && !e.AppliesToAllRegions() && !overlaps(f.Regions, e.Regions()) {
		return false
	}
	return true
}

// IsEmpty reports whether no filter is set.
func (f Filters) IsEmpty() bool {
	return len(f.ContentTypes) == 0 && len(f.TargetGroups) == 0 && len(f.Regions) == 0 && len(f.CategorySlugs) == 0
}

func containsKind(kinds []catalog.Kind, k catalog.Kind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// Recent is one entry of a user's recent-search history.
type Recent struct {
	Query  string
	Intent Intent
	At     time.Time
}
