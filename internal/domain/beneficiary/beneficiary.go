// Package beneficiary defines the fixed vocabulary of beneficiary groups and
// matches free Russian text against it.
package beneficiary

import (
	"strings"
	"unicode"
)

// Beneficiary group codes.
const (
	Pensioner      = "pensioner"
	Disability1    = "disability_1"
	Disability2    = "disability_2"
	Disability3    = "disability_3"
	LargeFamily    = "large_family"
	Veteran        = "veteran"
	LowIncome      = "low_income"
	SVOParticipant = "svo_participant"
	SVOFamily      = "svo_family"
)

// Family codes expand to every code of the family.
const (
	FamilyDisability = "disabled"
	FamilySVO        = "svo"
)

// rule is one way a group is mentioned in text: every stem in all must prefix
// some token, and no stem in none may. A stem starting with "=" must equal a token.
type rule struct {
	all  []string
	none []string
}

// Group is one entry of the vocabulary.
type Group struct {
	Code    string
	Label   string
	Family  string
	Ordinal int

	rules []rule
}

// Vocabulary is the code to label table used for parsing and display.
type Vocabulary struct {
	groups []Group
	byCode map[string]int
}

// Default returns the portal's beneficiary vocabulary.
func Default() *Vocabulary {
	return NewVocabulary([]Group{
		{Code: Pensioner, Label: "Пенсионер", rules: []rule{
			{all: []string{"пенсионер"}}, {all: []string{"пожил"}}, {all: []string{"пенсионн", "возраст"}},
		}},
		{Code: Disability1, Label: "Инвалидность 1 группы", Family: FamilyDisability, Ordinal: 1, rules: []rule{{all: []string{"инвалид"}}}},
		{Code: Disability2, Label: "Инвалидность 2 группы", Family: FamilyDisability, Ordinal: 2, rules: []rule{{all: []string{"инвалид"}}}},
		{Code: Disability3, Label: "Инвалидность 3 группы", Family: FamilyDisability, Ordinal: 3, rules: []rule{{all: []string{"инвалид"}}}},
		{Code: LargeFamily, Label: "Многодетная семья", rules: []rule{{all: []string{"многодетн"}}}},
		{Code: Veteran, Label: "Ветеран", rules: []rule{{all: []string{"ветеран"}}}},
		{Code: LowIncome, Label: "Малоимущий", rules: []rule{
			{all: []string{"малоимущ"}}, {all: []string{"малообеспеч"}}, {all: []string{"низк", "доход"}},
		}},
		{Code: SVOParticipant, Label: "Участник СВО", Family: FamilySVO, rules: []rule{
			{all: []string{"участник", "=сво"}, none: []string{"сем", "родствен", "вдов"}},
			{all: []string{"мобилизован"}},
			{all: []string{"=сво"}, none: []string{"сем", "родствен", "вдов"}},
		}},
		{Code: SVOFamily, Label: "Семья участника СВО", Family: FamilySVO, rules: []rule{
			{all: []string{"=сво", "сем"}}, {all: []string{"=сво", "родствен"}}, {all: []string{"=сво", "вдов"}},
		}},
	})
}

// NewVocabulary builds a vocabulary from groups in display order.
func NewVocabulary(groups []Group) *Vocabulary {
	v := &Vocabulary{groups: groups, byCode: make(map[string]int, len(groups))}
	for i, g := range groups {
		v.byCode[g.Code] = i
	}
	return v
}

// Groups returns the vocabulary in display order.
func (v *Vocabulary) Groups() []Group { return v.groups }

// Codes returns all codes in display order.
func (v *Vocabulary) Codes() []string {
	codes := make([]string, len(v.groups))
	for i, g := range v.groups {
		codes[i] = g.Code
	}
	return codes
}

// IsCode reports whether code is a known group code.
func (v *Vocabulary) IsCode(code string) bool {
	_, ok := v.byCode[code]
	return ok
}

// Label returns the human readable label, or the code itself if unknown.
func (v *Vocabulary) Label(code string) string {
	if i, ok := v.byCode[code]; ok {
		return v.groups[i].Label
	}
	return code
}

// Expand resolves a code, family name or label to group codes.
// Unknown values resolve to nil.
func (v *Vocabulary) Expand(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if v.IsCode(value) {
		return []string{value}
	}
	lower := strings.ToLower(value)
	var out []string
	for _, g := range v.groups {
		if g.Family != "" && g.Family == lower {
			out = append(out, g.Code)
		}
	}
	if len(out) > 0 {
		return out
	}
	// "disability" and "disabled" are both used by clients.
	if lower == "disability" {
		return v.Expand(FamilyDisability)
	}
	for _, g := range v.groups {
		if strings.ToLower(g.Label) == lower {
			return []string{g.Code}
		}
	}
	return nil
}

// Normalize expands every value and drops unknown ones, keeping first-seen order.
func (v *Vocabulary) Normalize(values []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, val := range values {
		for _, code := range v.Expand(val) {
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			out = append(out, code)
		}
	}
	return out
}

// Match finds the groups mentioned in text. A family mention without a
// specific member (e.g. "инвалид" without a group number) yields the whole family.
func (v *Vocabulary) Match(text string) []string {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	ordinals := groupOrdinals(tokens)

	var out []string
	for _, g := range v.groups {
		if !g.matches(tokens) {
			continue
		}
		if g.Ordinal > 0 && len(ordinals) > 0 {
			if _, ok := ordinals[g.Ordinal]; !ok {
				continue
			}
		}
		out = append(out, g.Code)
	}
	return out
}

func (g Group) matches(tokens []string) bool {
	for _, r := range g.rules {
		if hasAll(tokens, r.all) && !hasAny(tokens, r.none) {
			return true
		}
	}
	return false
}

// Tokenize lowercases text and splits it on anything that is not a letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hasAll(tokens, stems []string) bool {
	for _, s := range stems {
		if !hasPrefix(tokens, s) {
			return false
		}
	}
	return len(stems) > 0
}

func hasAny(tokens, stems []string) bool {
	for _, s := range stems {
		if hasPrefix(tokens, s) {
			return true
		}
	}
	return false
}

func hasPrefix(tokens []string, stem string) bool {
	word, exact := strings.CutPrefix(stem, "=")
	for _, t := range tokens {
		if exact && t == word || !exact && strings.HasPrefix(t, word) {
			return true
		}
	}
	return false
}

// groupOrdinals collects disability group numbers written around "группа":
// "1 группы", "группа II", "второй и третьей группы".
func groupOrdinals(tokens []string) map[int]struct{} {
	out := make(map[int]struct{})
	for i, t := range tokens {
		if !strings.HasPrefix(t, "групп") {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if tokens[j] == "и" || tokens[j] == "или" {
				continue
			}
			n := ordinal(tokens[j])
			if n == 0 {
				break
			}
			out[n] = struct{}{}
		}
		if i+1 < len(tokens) {
			if n := ordinal(tokens[i+1]); n > 0 {
				out[n] = struct{}{}
			}
		}
	}
	return out
}

func ordinal(t string) int {
	switch {
	case t == "1" || t == "i" || strings.HasPrefix(t, "перв"):
		return 1
	case t == "2" || t == "ii" || strings.HasPrefix(t, "втор"):
		return 2
	case t == "3" || t == "iii" || strings.HasPrefix(t, "трет"):
		return 3
	}
	return 0
}
