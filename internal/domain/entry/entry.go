// Package entry defines the search index entry: the denormalized, filterable
// projection of one catalog record together with its embedding.
package entry

import (
	"github.com/lgoty/benefitsearch/internal/domain/catalog"
)

// AllRegions is the region sentinel for records that apply everywhere.
const AllRegions = "all"

// MaxRegions caps the explicit region codes copied into an entry.
const MaxRegions = 5

// Entry is one search index row. It is keyed by the record reference;
// the numeric id is assigned by storage and addresses vector store positions.
type Entry struct {
	id           int64
	ref          catalog.Ref
	title        string
	targetGroups []string
	regions      []string
	active       bool
	embedding    []float32
}

// FromRecord projects a catalog record into a new, unsaved entry.
func FromRecord(rec catalog.Record, embedding []float32) Entry {
	f := rec.Facets()
	return Entry{
		ref:          rec.Ref(),
		title:        f.Title,
		targetGroups: append([]string(nil), f.TargetGroups...),
		regions:      RegionCodes(f.Regions, f.AppliesToAllRegions),
		active:       f.Status.IsActive(),
		embedding:    embedding,
	}
}

// Reconstruct rebuilds an entry from storage.
func Reconstruct(id int64, ref catalog.Ref, title string, targetGroups, regions []string, active bool, embedding []float32) Entry {
	return Entry{
		id:           id,
		ref:          ref,
		title:        title,
		targetGroups: targetGroups,
		regions:      regions,
		active:       active,
		embedding:    embedding,
	}
}

// RegionCodes returns the explicit region codes capped to MaxRegions, or
// the AllRegions sentinel when the record applies everywhere and lists none.
func RegionCodes(regions []catalog.Region, appliesToAll bool) []string {
	if len(regions) == 0 {
		if appliesToAll {
			return []string{AllRegions}
		}
		return []string{}
	}
	n := min(len(regions), MaxRegions)
	codes := make([]string, n)
	for i := 0; i < n; i++ {
		codes[i] = regions[i].Code
	}
	return codes
}

// WithID returns a copy with the storage id set.
func (e Entry) WithID(id int64) Entry {
	e.id = id
	return e
}

// ID returns the storage id (0 for unsaved entries).
func (e *Entry) ID() int64 { return e.id }

// Ref returns the catalog record reference.
func (e *Entry) Ref() catalog.Ref { return e.ref }

// Kind returns the record kind.
func (e *Entry) Kind() catalog.Kind { return e.ref.Kind() }

// Title returns the denormalized record title.
func (e *Entry) Title() string { return e.title }

// TargetGroups returns the beneficiary group codes.
func (e *Entry) TargetGroups() []string { return e.targetGroups }

// Regions returns region codes or the AllRegions sentinel.
func (e *Entry) Regions() []string { return e.regions }

// Active reports whether the backing record is active or expiring soon.
func (e *Entry) Active() bool { return e.active }

// Embedding returns the stored vector, possibly nil.
func (e *Entry) Embedding() []float32 { return e.embedding }

// AppliesToAllRegions reports whether the entry carries the AllRegions sentinel.
func (e *Entry) AppliesToAllRegions() bool {
	for _, r := range e.regions {
		if r == AllRegions {
			return true
		}
	}
	return false
}
