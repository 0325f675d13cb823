package rank

import (
	"math"
	"sort"
	"time"
)

const (
	// DefaultDaysLookback is the recency window in days.
	DefaultDaysLookback = 90
	// DefaultRejectThreshold separates viable flavors from the rejected tail.
	DefaultRejectThreshold = 30.0
	// MaxScoredSamples bounds the sample comments carried by a ScoredFlavor.
	MaxScoredSamples = 3
)

// Weights blend the four signals. They are re-normalized to sum to one, so
// only their ratios matter.
type Weights struct {
	Frequency float64 `yaml:"frequency" json:"frequency"`
	Sentiment float64 `yaml:"sentiment" json:"sentiment"`
	Recency   float64 `yaml:"recency" json:"recency"`
	BrandFit  float64 `yaml:"brand_fit" json:"brand_fit"`
}

// DefaultWeights returns 0.30 / 0.30 / 0.20 / 0.20.
func DefaultWeights() Weights {
	return Weights{Frequency: 0.30, Sentiment: 0.30, Recency: 0.20, BrandFit: 0.20}
}

// Total is the sum of all weights.
func (w Weights) Total() float64 {
	return w.Frequency + w.Sentiment + w.Recency + w.BrandFit
}

func (w Weights) blend(freq, sent, rec, brand float64) float64 {
	total := w.Total()
	if total == 0 {
		return 0
	}
	return freq*w.Frequency/total +
		sent*w.Sentiment/total +
		rec*w.Recency/total +
		brand*w.BrandFit/total
}

// Options tunes Compose. Zero values fall back to the defaults.
type Options struct {
	Weights      *Weights // nil uses DefaultWeights
	DaysLookback int
	Now          time.Time // reference instant for recency
}

func (o Options) withDefaults() Options {
	if o.Weights == nil {
		w := DefaultWeights()
		o.Weights = &w
	}
	if o.DaysLookback <= 0 {
		o.DaysLookback = DefaultDaysLookback
	}
	if o.Now.IsZero() {
		o.Now = time.Now().UTC()
	}
	return o
}

// ScoredFlavor is a flavor with its signals and blended score, all rounded to
// two decimals.
type ScoredFlavor struct {
	Rank              int            `json:"rank"`
	Flavor            string         `json:"flavor"`
	FinalScore        float64        `json:"final_score"`
	FrequencyScore    float64        `json:"frequency_score"`
	SentimentScore    float64        `json:"sentiment_score"`
	RecencyScore      float64        `json:"recency_score"`
	BrandFitScore     float64        `json:"brand_fit_score"`
	MentionCount      int            `json:"mention_count"`
	PositiveCount     int            `json:"positive_count"`
	NegativeCount     int            `json:"negative_count"`
	NeutralCount      int            `json:"neutral_count"`
	RecommendedBrand  string         `json:"recommended_brand"`
	BrandFitBreakdown map[string]int `json:"brand_fit_breakdown"`
	SampleComments    []string       `json:"sample_comments"`
}

// Score computes the signals for one aggregate. maxMentions is shared across
// the batch.
func Score(agg *FlavorAggregate, maxMentions int, opts Options) ScoredFlavor {
	opts = opts.withDefaults()

	brand := agg.BrandFit.Best()
	breakdown := agg.BrandFit.Map()

	freq := FrequencyScore(agg.MentionCount(), maxMentions)
	sent := SentimentScore(agg.PositiveCount, agg.NegativeCount, agg.NeutralCount)
	rec := RecencyScore(agg.Mentions, opts.DaysLookback, opts.Now)
	fit := BrandFitScore(brand, breakdown)

	samples := make([]string, min(len(agg.SampleComments), MaxScoredSamples))
	copy(samples, agg.SampleComments)

	return ScoredFlavor{
		Flavor:            agg.Flavor,
		FinalScore:        round2(opts.Weights.blend(freq, sent, rec, fit)),
		FrequencyScore:    round2(freq),
		SentimentScore:    round2(sent),
		RecencyScore:      round2(rec),
		BrandFitScore:     round2(fit),
		MentionCount:      agg.MentionCount(),
		PositiveCount:     agg.PositiveCount,
		NegativeCount:     agg.NegativeCount,
		NeutralCount:      agg.NeutralCount,
		RecommendedBrand:  brand,
		BrandFitBreakdown: breakdown,
		SampleComments:    samples,
	}
}

// Compose scores every aggregate and returns them highest first, numbered
// from 1. Equal scores keep first-seen order.
func Compose(aggs *Aggregates, opts Options) []ScoredFlavor {
	if aggs == nil || aggs.Len() == 0 {
		return []ScoredFlavor{}
	}
	opts = opts.withDefaults()
	maxMentions := aggs.MaxMentions()

	all := aggs.All()
	scored := make([]ScoredFlavor, len(all))
	for i, agg := range all {
		scored[i] = Score(agg, maxMentions, opts)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored
}

// GoldenCandidate returns the top-ranked flavor, or nil for an empty list.
func GoldenCandidate(ranked []ScoredFlavor) *ScoredFlavor {
	if len(ranked) == 0 {
		return nil
	}
	golden := ranked[0]
	golden.Rank = 1
	return &golden
}

// Rejected returns flavors scoring strictly below threshold, lowest first.
// The golden candidate is never rejected, whatever its score.
func Rejected(ranked []ScoredFlavor, threshold float64) []ScoredFlavor {
	out := []ScoredFlavor{}
	for i, sf := range ranked {
		if i > 0 && sf.FinalScore < threshold {
			out = append(out, sf)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinalScore < out[j].FinalScore
	})
	return out
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
