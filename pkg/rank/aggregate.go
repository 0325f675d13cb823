// Package rank turns per-comment judgments into ranked flavor recommendations.
package rank

import (
	"strings"

	"github.com/elonfeng/flavorscout/pkg/judge"
)

// MaxSamples bounds the supporting comments kept per flavor.
const MaxSamples = 5

// Mention is one judgment's contribution to a flavor.
type Mention struct {
	CommentID  string  `json:"comment_id"`
	CreatedAt  string  `json:"created_at"`
	CreatedUTC float64 `json:"created_utc"`
	Sentiment  string  `json:"sentiment"`
}

// BrandTally counts brand-fit votes and remembers first-seen order.
type BrandTally struct {
	order  []string
	counts map[string]int
}

func newBrandTally() BrandTally {
	return BrandTally{counts: make(map[string]int)}
}

func (t *BrandTally) add(brand string) {
	if _, ok := t.counts[brand]; !ok {
		t.order = append(t.order, brand)
	}
	t.counts[brand]++
}

// Total is the sum of all brand votes.
func (t BrandTally) Total() int {
	total := 0
	for _, n := range t.counts {
		total += n
	}
	return total
}

// Best returns the brand with the most votes; ties go to the brand seen first.
// It returns NoBrand when the tally is empty.
func (t BrandTally) Best() string {
	best, bestN := judge.NoBrand, 0
	for _, b := range t.order {
		if n := t.counts[b]; n > bestN {
			best, bestN = b, n
		}
	}
	return best
}

// Map returns a copy of the counts.
func (t BrandTally) Map() map[string]int {
	m := make(map[string]int, len(t.counts))
	for b, n := range t.counts {
		m[b] = n
	}
	return m
}

// FlavorAggregate accumulates every relevant mention of one flavor.
type FlavorAggregate struct {
	Flavor         string
	Mentions       []Mention
	PositiveCount  int
	NegativeCount  int
	NeutralCount   int
	BrandFit       BrandTally
	SampleComments []string
}

func newFlavorAggregate(name string) *FlavorAggregate {
	return &FlavorAggregate{
		Flavor:         name,
		Mentions:       []Mention{},
		BrandFit:       newBrandTally(),
		SampleComments: []string{},
	}
}

// MentionCount is the number of mentions recorded.
func (a *FlavorAggregate) MentionCount() int { return len(a.Mentions) }

func (a *FlavorAggregate) add(j judge.Judgment, sentiment, brand, text string) {
	a.Mentions = append(a.Mentions, Mention{
		CommentID:  j.CommentID,
		CreatedAt:  j.CreatedAt,
		CreatedUTC: j.CreatedUTC,
		Sentiment:  sentiment,
	})

	switch sentiment {
	case judge.Positive:
		a.PositiveCount++
	case judge.Negative:
		a.NegativeCount++
	default:
		a.NeutralCount++
	}

	if brand != "" {
		a.BrandFit.add(brand)
	}
	if text != "" && len(a.SampleComments) < MaxSamples {
		a.SampleComments = append(a.SampleComments, text)
	}
}

// Aggregates maps canonical flavor names to their aggregate, in creation order.
// A fresh value is built per batch; Add only ever appends.
type Aggregates struct {
	order    []string
	byFlavor map[string]*FlavorAggregate
}

// NewAggregates returns an empty mapping.
func NewAggregates() *Aggregates {
	return &Aggregates{byFlavor: make(map[string]*FlavorAggregate)}
}

// Aggregate groups relevant judgments by flavor.
func Aggregate(judgments []judge.Judgment) *Aggregates {
	a := NewAggregates()
	a.Add(judgments)
	return a
}

// Add folds judgments into the mapping. Irrelevant judgments and judgments
// without flavors contribute nothing.
func (a *Aggregates) Add(judgments []judge.Judgment) {
	for _, j := range judgments {
		if !j.IsRelevant || len(j.FlavorsMentioned) == 0 {
			continue
		}

		sentiment := judge.NormalizeSentiment(j.Sentiment)
		brand := strings.TrimSpace(j.BrandFit)
		if strings.EqualFold(brand, judge.NoBrand) {
			brand = ""
		}
		text := judge.Truncate(j.CommentText, judge.MaxCommentText)

		for _, fl := range j.FlavorsMentioned {
			name := strings.ToLower(strings.TrimSpace(fl))
			if name == "" {
				continue
			}
			a.lookup(name).add(j, sentiment, brand, text)
		}
	}
}

func (a *Aggregates) lookup(name string) *FlavorAggregate {
	agg, ok := a.byFlavor[name]
	if !ok {
		agg = newFlavorAggregate(name)
		a.byFlavor[name] = agg
		a.order = append(a.order, name)
	}
	return agg
}

// Len is the number of distinct flavors.
func (a *Aggregates) Len() int { return len(a.order) }

// Get returns the aggregate for a canonical flavor name.
func (a *Aggregates) Get(flavor string) (*FlavorAggregate, bool) {
	agg, ok := a.byFlavor[flavor]
	return agg, ok
}

// All returns the aggregates in first-seen order.
func (a *Aggregates) All() []*FlavorAggregate {
	out := make([]*FlavorAggregate, len(a.order))
	for i, name := range a.order {
		out[i] = a.byFlavor[name]
	}
	return out
}

// MaxMentions is the largest mention count, or 1 when there are no flavors.
func (a *Aggregates) MaxMentions() int {
	if len(a.order) == 0 {
		return 1
	}
	max := 0
	for _, agg := range a.byFlavor {
		if n := agg.MentionCount(); n > max {
			max = n
		}
	}
	return max
}
