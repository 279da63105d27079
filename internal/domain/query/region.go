package query

import (
	"strings"

	"github.com/lgoty/benefitsearch/internal/domain/beneficiary"
	"github.com/lgoty/benefitsearch/internal/domain/catalog"
)

// regionGenericWords do not identify a region on their own.
var regionGenericWords = map[string]struct{}{
	"край": {}, "область": {}, "республика": {}, "автономный": {}, "округ": {}, "город": {}, "ао": {},
}

type regionStems struct {
	region catalog.Region
	stems  []string
}

// RegionIndex resolves region codes and Russian region names, including
// inflected forms ("в Москве", "Краснодарском крае").
type RegionIndex struct {
	byCode map[string]catalog.Region
	stems  []regionStems
}

// NewRegionIndex builds an index over regions.
func NewRegionIndex(regions []catalog.Region) *RegionIndex {
	idx := &RegionIndex{byCode: make(map[string]catalog.Region, len(regions))}
	for _, r := range regions {
		idx.byCode[r.Code] = r
		var stems []string
		for _, tok := range beneficiary.Tokenize(r.Name) {
			if _, generic := regionGenericWords[tok]; generic {
				continue
			}
			stems = append(stems, stem(tok))
		}
		if len(stems) > 0 {
			idx.stems = append(idx.stems, regionStems{region: r, stems: stems})
		}
	}
	return idx
}

// Lookup resolves a code or a region name.
func (idx *RegionIndex) Lookup(value string) (catalog.Region, bool) {
	value = strings.TrimSpace(value)
	if r, ok := idx.byCode[value]; ok {
		return r, true
	}
	matched := idx.Match(value)
	if len(matched) == 1 {
		return matched[0], true
	}
	return catalog.Region{}, false
}

// Match returns the regions named in text, in index order.
func (idx *RegionIndex) Match(text string) []catalog.Region {
	tokens := beneficiary.Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	var out []catalog.Region
	for _, rs := range idx.stems {
		if allStemsPresent(tokens, rs.stems) {
			out = append(out, rs.region)
		}
	}
	return out
}

func allStemsPresent(tokens, stems []string) bool {
	for _, s := range stems {
		found := false
		for _, t := range tokens {
			if strings.HasPrefix(t, s) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// stem drops up to two trailing vowels or soft signs, keeping at least four letters.
func stem(word string) string {
	r := []rune(word)
	for i := 0; i < 2 && len(r) > 4; i++ {
		if !strings.ContainsRune("аеёиоуыэюяйь", r[len(r)-1]) {
			break
		}
		r = r[:len(r)-1]
	}
	return string(r)
}

// DefaultRegions is the region list used when the catalog provides none.
func DefaultRegions() []catalog.Region {
	return []catalog.Region{
		{Code: "77", Name: "Москва"},
		{Code: "78", Name: "Санкт-Петербург"},
		{Code: "50", Name: "Московская область"},
		{Code: "47", Name: "Ленинградская область"},
		{Code: "16", Name: "Республика Татарстан"},
		{Code: "02", Name: "Республика Башкортостан"},
		{Code: "23", Name: "Краснодарский край"},
		{Code: "24", Name: "Красноярский край"},
		{Code: "54", Name: "Новосибирская область"},
		{Code: "66", Name: "Свердловская область"},
		{Code: "52", Name: "Нижегородская область"},
		{Code: "61", Name: "Ростовская область"},
		{Code: "63", Name: "Самарская область"},
		{Code: "74", Name: "Челябинская область"},
		{Code: "55", Name: "Омская область"},
		{Code: "59", Name: "Пермский край"},
		{Code: "34", Name: "Волгоградская область"},
		{Code: "36", Name: "Воронежская область"},
		{Code: "25", Name: "Приморский край"},
		{Code: "39", Name: "Калининградская область"},
	}
}
