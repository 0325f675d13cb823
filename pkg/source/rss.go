package source

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
)

// RSSFeed is a named RSS/Atom feed URL, e.g. a subreddit comment feed or a review feed.
type RSSFeed struct {
	Name string
	URL  string
}

// RSS collects comments from RSS/Atom feeds.
type RSS struct {
	client    *resty.Client
	parser    *gofeed.Parser
	feeds     []RSSFeed
	sinceDays int
}

// NewRSS creates a new RSS collector.
func NewRSS(feeds []RSSFeed, sinceDays int) *RSS {
	if sinceDays <= 0 {
		sinceDays = 90
	}
	return &RSS{
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", redditUA),
		parser:    gofeed.NewParser(),
		feeds:     feeds,
		sinceDays: sinceDays,
	}
}

func (r *RSS) Name() SourceType { return SourceRSS }

func (r *RSS) Collect(ctx context.Context) ([]RawComment, error) {
	var all []RawComment

	for _, feed := range r.feeds {
		comments, err := r.collectFeed(ctx, feed)
		if err != nil {
			logrus.WithField("feed", feed.Name).Errorf("rss feed failed: %v", err)
			continue
		}
		all = append(all, comments...)
	}

	return all, nil
}

func (r *RSS) collectFeed(ctx context.Context, feed RSSFeed) ([]RawComment, error) {
	resp, err := r.client.R().SetContext(ctx).Get(feed.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", feed.Name, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("rss %s status %d", feed.Name, resp.StatusCode())
	}

	parsed, err := r.parser.ParseString(resp.String())
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", feed.Name, err)
	}

	cutoff := time.Now().Add(-time.Duration(r.sinceDays) * 24 * time.Hour)
	var comments []RawComment

	for _, entry := range parsed.Items {
		published := time.Now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}
		if published.Before(cutoff) {
			continue
		}

		guid := entry.GUID
		if guid == "" {
			guid = entry.Link
		}
		if guid == "" {
			continue
		}

		body := entry.Content
		if body == "" {
			body = entry.Description
		}

		c := RawComment{
			ID:        "rss_" + guid,
			Type:      "feed_entry",
			Source:    SourceRSS,
			Subreddit: feed.Name,
			Title:     entry.Title,
			Body:      truncate(stripHTML(body), 4000),
			URL:       entry.Link,
		}
		stamp(&c, published)
		comments = append(comments, c)
	}

	return comments, nil
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

func stripHTML(s string) string {
	s = htmlTag.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
