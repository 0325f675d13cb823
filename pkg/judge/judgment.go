// Package judge asks an LLM for per-comment flavor judgments.
package judge

import (
	"strings"
	"unicode/utf8"
)

// Sentiment labels.
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

// NoBrand is the brand_fit sentinel for "no brand applies".
const NoBrand = "none"

// MaxCommentText bounds the comment_text stored on a judgment.
const MaxCommentText = 200

// Judgment is the structured opinion about one comment.
type Judgment struct {
	CommentID        string   `json:"comment_id" db:"comment_id"`
	CommentText      string   `json:"comment_text" db:"comment_text"`
	FlavorsMentioned []string `json:"flavors_mentioned" db:"-"`
	IsRelevant       bool     `json:"is_relevant" db:"is_relevant"`
	Sentiment        string   `json:"sentiment" db:"sentiment"`
	BrandFit         string   `json:"brand_fit" db:"brand_fit"`
	Reasoning        string   `json:"reasoning,omitempty" db:"reasoning"`
	CreatedAt        string   `json:"created_at,omitempty" db:"created_at"`
	CreatedUTC       float64  `json:"created_utc,omitempty" db:"created_utc"`
	Subreddit        string   `json:"subreddit,omitempty" db:"subreddit"`
	Score            int      `json:"score,omitempty" db:"score"`
	FlavorsJSON      string   `json:"-" db:"flavors_mentioned"`
}

// Sanitize applies the documented defaults for missing or invalid fields.
func (j *Judgment) Sanitize() {
	j.Sentiment = NormalizeSentiment(j.Sentiment)
	j.BrandFit = strings.TrimSpace(j.BrandFit)
	if j.BrandFit == "" || strings.EqualFold(j.BrandFit, NoBrand) {
		j.BrandFit = NoBrand
	}
	j.CommentText = Truncate(j.CommentText, MaxCommentText)
	if j.FlavorsMentioned == nil {
		j.FlavorsMentioned = []string{}
	}
}

// NormalizeSentiment maps any value outside positive/negative to neutral.
func NormalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case Positive:
		return Positive
	case Negative:
		return Negative
	default:
		return Neutral
	}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
