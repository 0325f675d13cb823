package rank

import (
	"math"
	"strings"
	"time"
)

// Each signal is a score in [0, 100].

// FrequencyScore favours flavors mentioned often, on a log curve so the
// leader does not flatten everyone else. Any mentioned flavor scores at least 50.
func FrequencyScore(mentionCount, maxMentions int) float64 {
	if maxMentions <= 0 {
		return 0
	}
	n := float64(mentionCount) / float64(maxMentions)
	n = math.Max(0, math.Min(1, n))
	return math.Min(100, 50+50*math.Log1p(9*n)/math.Ln10)
}

// SentimentScore maps net positivity onto [0, 100]; neutral mentions dilute it.
func SentimentScore(positive, negative, neutral int) float64 {
	total := positive + negative + neutral
	if total == 0 {
		return 50
	}
	return 50 + 50*float64(positive-negative)/float64(total)
}

// RecencyScore is the mean linear-decay weight of mentions inside the
// lookback window. Mentions outside the window or without a usable timestamp
// weigh zero but still count toward the mean.
func RecencyScore(mentions []Mention, lookbackDays int, now time.Time) float64 {
	if len(mentions) == 0 || lookbackDays <= 0 {
		return 0
	}

	lookback := time.Duration(lookbackDays) * 24 * time.Hour
	cutoff := now.Add(-lookback)

	sum := 0.0
	for _, m := range mentions {
		ts, ok := m.Timestamp()
		if !ok || ts.Before(cutoff) {
			continue
		}
		daysAgo := math.Max(0, now.Sub(ts).Hours()/24)
		sum += math.Max(0, 1-daysAgo/float64(lookbackDays))
	}
	return math.Min(100, sum/float64(len(mentions))*100)
}

// BrandFitScore is the share of brand votes that went to brand.
func BrandFitScore(brand string, counts map[string]int) float64 {
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return 0
	}
	return float64(counts[brand]) / float64(total) * 100
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp prefers the epoch field and falls back to parsing CreatedAt.
// Zone-less strings are read as UTC.
func (m Mention) Timestamp() (time.Time, bool) {
	if m.CreatedUTC != 0 {
		sec, frac := math.Modf(m.CreatedUTC)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	}
	s := strings.TrimSpace(m.CreatedAt)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
