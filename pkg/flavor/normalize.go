package flavor

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/elonfeng/flavorscout/pkg/source"
)

const minBodyLen = 10

var placeholders = map[string]bool{
	"[deleted]": true,
	"[removed]": true,
}

// CleanedComment is a RawComment that passed the spam filter, annotated with
// the flavor keywords found in its body. Flavors may be empty.
type CleanedComment struct {
	source.RawComment
	Flavors []string `json:"flavors"`
}

// Normalizer deduplicates, spam-filters, and annotates raw comments.
type Normalizer struct {
	vocab *Vocabulary
}

// NewNormalizer creates a normalizer over vocab. A nil vocab uses the defaults.
func NewNormalizer(vocab *Vocabulary) *Normalizer {
	if vocab == nil {
		vocab = NewVocabulary()
	}
	return &Normalizer{vocab: vocab}
}

// Normalize drops records without an id, repeats of an already seen id, and
// low-signal bodies. Survivors keep their input order.
func (n *Normalizer) Normalize(records []source.RawComment) []CleanedComment {
	seen := make(map[string]bool, len(records))
	cleaned := make([]CleanedComment, 0, len(records))

	for _, rec := range records {
		if rec.ID == "" || seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true

		if IsSpam(rec.Body) {
			continue
		}

		cleaned = append(cleaned, CleanedComment{
			RawComment: rec,
			Flavors:    n.vocab.Extract(rec.Body),
		})
	}

	return cleaned
}

// Raw strips the annotations, for re-normalizing a cleaned batch.
func Raw(cleaned []CleanedComment) []source.RawComment {
	out := make([]source.RawComment, len(cleaned))
	for i, c := range cleaned {
		out[i] = c.RawComment
	}
	return out
}

// IsSpam reports whether text is too short or a deletion placeholder.
func IsSpam(text string) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minBodyLen {
		return true
	}
	return placeholders[strings.ToLower(text)]
}

// Count is a flavor and how many keyword hits it received.
type Count struct {
	Flavor string `json:"flavor"`
	Count  int    `json:"count"`
}

// Summarize tallies keyword hits across cleaned comments, highest first.
// Ties keep first-appearance order.
func Summarize(cleaned []CleanedComment) []Count {
	index := make(map[string]int)
	var counts []Count
	for _, c := range cleaned {
		for _, fl := range c.Flavors {
			i, ok := index[fl]
			if !ok {
				i = len(counts)
				index[fl] = i
				counts = append(counts, Count{Flavor: fl})
			}
			counts[i].Count++
		}
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}
