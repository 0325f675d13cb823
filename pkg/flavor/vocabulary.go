// Package flavor cleans raw consumer comments and extracts flavor keywords.
package flavor

import (
	"regexp"
	"sort"
	"strings"
)

// Entry is a canonical flavor name and the aliases that resolve to it.
type Entry struct {
	Name    string   `yaml:"name" json:"name"`
	Aliases []string `yaml:"aliases" json:"aliases,omitempty"`
}

// DefaultEntries is the base flavor vocabulary.
var DefaultEntries = []Entry{
	{Name: "chocolate"},
	{Name: "vanilla"},
	{Name: "strawberry"},
	{Name: "mango"},
	{Name: "banana"},
	{Name: "cookies and cream", Aliases: []string{"cookies n cream", "cookie n cream", "cookies & cream"}},
	{Name: "coffee"},
	{Name: "mocha"},
	{Name: "kesar"},
	{Name: "paan"},
	{Name: "kulfi"},
	{Name: "rasmalai"},
	{Name: "butterscotch"},
	{Name: "blueberry"},
	{Name: "mint"},
	{Name: "peanut butter"},
	{Name: "salted caramel"},
	{Name: "caramel"},
	{Name: "oreo"},
	{Name: "biscuit"},
	{Name: "thandai"},
	{Name: "rose"},
	{Name: "lychee"},
	{Name: "orange"},
	{Name: "lemon"},
	{Name: "pineapple"},
}

// Vocabulary matches flavor names and aliases as whole words, case-insensitively.
type Vocabulary struct {
	pattern   *regexp.Regexp
	canonical map[string]string // lowercase term -> canonical name
}

// NewVocabulary builds a vocabulary from the default entries plus extras.
// Extra entries with a known name extend that name's aliases.
func NewVocabulary(extra ...Entry) *Vocabulary {
	entries := make([]Entry, 0, len(DefaultEntries)+len(extra))
	entries = append(entries, DefaultEntries...)
	entries = append(entries, extra...)
	return Build(entries)
}

// Build creates a vocabulary from exactly the given entries. A canonical
// name always resolves to itself; aliases that collide with one are ignored.
func Build(entries []Entry) *Vocabulary {
	canonical := make(map[string]string)
	for _, e := range entries {
		if name := normalizeTerm(e.Name); name != "" {
			canonical[name] = name
		}
	}
	for _, e := range entries {
		name := normalizeTerm(e.Name)
		if name == "" {
			continue
		}
		for _, alias := range e.Aliases {
			a := normalizeTerm(alias)
			if a == "" || canonical[a] == a {
				continue
			}
			canonical[a] = name
		}
	}

	terms := make([]string, 0, len(canonical))
	for term := range canonical {
		terms = append(terms, term)
	}
	// Longest first so "salted caramel" wins over "caramel" at the same offset.
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})

	v := &Vocabulary{canonical: canonical}
	if len(terms) == 0 {
		return v
	}

	alts := make([]string, len(terms))
	for i, term := range terms {
		alts[i] = strings.ReplaceAll(regexp.QuoteMeta(term), " ", `\s+`)
	}
	v.pattern = regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
	return v
}

// Extract returns every flavor mention in text, in order of appearance,
// resolved to its canonical name. Repeated mentions are kept.
func (v *Vocabulary) Extract(text string) []string {
	if v.pattern == nil {
		return []string{}
	}
	matches := v.pattern.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		term := normalizeTerm(m)
		if name, ok := v.canonical[term]; ok {
			out = append(out, name)
		} else {
			out = append(out, term)
		}
	}
	return out
}

// Names returns the canonical flavor names, sorted.
func (v *Vocabulary) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, name := range v.canonical {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func normalizeTerm(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
