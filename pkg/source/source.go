package source

import (
	"context"
	"time"
)

// SourceType identifies which platform a comment came from.
type SourceType string

const (
	SourceReddit SourceType = "reddit"
	SourceRSS    SourceType = "rss"
	SourceAmazon SourceType = "amazon"
)

// RawComment is the source-neutral unit of consumer text.
// Subreddit doubles as the generic source tag for non-Reddit platforms.
type RawComment struct {
	ID         string     `json:"id" db:"id"`
	Type       string     `json:"type,omitempty" db:"type"`
	Source     SourceType `json:"source,omitempty" db:"source"`
	Subreddit  string     `json:"subreddit" db:"subreddit"`
	Title      string     `json:"title,omitempty" db:"title"`
	Body       string     `json:"body" db:"body"`
	Score      int        `json:"score" db:"score"`
	CreatedUTC float64    `json:"created_utc,omitempty" db:"created_utc"`
	CreatedAt  string     `json:"created_at,omitempty" db:"created_at"`
	URL        string     `json:"url,omitempty" db:"url"`
}

// Source is the interface every collector must implement.
type Source interface {
	Name() SourceType
	Collect(ctx context.Context) ([]RawComment, error)
}

// AllSourceTypes returns all known source types.
func AllSourceTypes() []SourceType {
	return []SourceType{SourceReddit, SourceRSS, SourceAmazon}
}

// stamp fills both timestamp representations from t.
func stamp(c *RawComment, t time.Time) {
	t = t.UTC()
	c.CreatedUTC = float64(t.Unix())
	c.CreatedAt = t.Format(time.RFC3339)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
