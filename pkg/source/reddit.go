package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	redditAuthURL  = "https://www.reddit.com/api/v1/access_token"
	redditAPIURL   = "https://oauth.reddit.com"
	redditUA       = "flavorscout/1.0"
	redditPageSize = 100
)

// DefaultSubreddits are searched when none are configured.
var DefaultSubreddits = []string{"Fitness", "Supplements", "nutrition", "gainit"}

// DefaultQueries are the search terms run against every subreddit.
var DefaultQueries = []string{
	"protein flavor",
	"whey flavor",
	"supplement taste",
	"protein powder taste",
}

// RedditOptions configures the Reddit collector.
type RedditOptions struct {
	ClientID        string
	ClientSecret    string
	Subreddits      []string
	Queries         []string
	Limit           int // results per query
	SinceDays       int
	IncludeComments bool
}

// Reddit collects flavor discussion posts and their comment trees.
type Reddit struct {
	client      *resty.Client
	opts        RedditOptions
	authURL     string
	apiURL      string
	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewReddit creates a new Reddit collector.
func NewReddit(opts RedditOptions) *Reddit {
	if len(opts.Subreddits) == 0 {
		opts.Subreddits = DefaultSubreddits
	}
	if len(opts.Queries) == 0 {
		opts.Queries = DefaultQueries
	}
	if opts.Limit <= 0 || opts.Limit > redditPageSize {
		opts.Limit = redditPageSize
	}
	if opts.SinceDays <= 0 {
		opts.SinceDays = 90
	}
	return &Reddit{
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", redditUA),
		opts:    opts,
		authURL: redditAuthURL,
		apiURL:  redditAPIURL,
	}
}

func (r *Reddit) Name() SourceType { return SourceReddit }

func (r *Reddit) Collect(ctx context.Context) ([]RawComment, error) {
	if err := r.authenticate(ctx); err != nil {
		return nil, fmt.Errorf("reddit auth: %w", err)
	}

	cutoff := time.Now().Add(-time.Duration(r.opts.SinceDays) * 24 * time.Hour)
	seen := make(map[string]bool)
	var all []RawComment

	add := func(c RawComment) {
		if seen[c.ID] {
			return
		}
		seen[c.ID] = true
		all = append(all, c)
	}

	for _, sub := range r.opts.Subreddits {
		for _, query := range r.opts.Queries {
			posts, err := r.search(ctx, sub, query)
			if err != nil {
				logrus.WithFields(logrus.Fields{"subreddit": sub, "query": query}).
					Errorf("reddit search failed: %v", err)
				continue
			}

			for _, post := range posts {
				created := time.Unix(int64(post.CreatedUTC), 0)
				if created.Before(cutoff) {
					continue
				}
				add(post.toComment())

				if !r.opts.IncludeComments || seen["comments:"+post.ID] {
					continue
				}
				seen["comments:"+post.ID] = true

				comments, err := r.fetchComments(ctx, post)
				if err != nil {
					logrus.WithField("post", post.ID).Warnf("reddit comments failed: %v", err)
					continue
				}
				for _, c := range comments {
					if time.Unix(int64(c.CreatedUTC), 0).Before(cutoff) {
						continue
					}
					add(c)
				}
			}
		}
	}

	return all, nil
}

func (r *Reddit) authenticate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token != "" && time.Now().Before(r.tokenExpiry) {
		return nil
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	resp, err := r.client.R().
		SetContext(ctx).
		SetBasicAuth(r.opts.ClientID, r.opts.ClientSecret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&tokenResp).
		Post(r.authURL)
	if err != nil {
		return fmt.Errorf("reddit token request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("reddit auth status %d", resp.StatusCode())
	}
	if tokenResp.AccessToken == "" {
		return fmt.Errorf("reddit auth: empty access token")
	}

	r.token = tokenResp.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	return nil
}

func (r *Reddit) search(ctx context.Context, subreddit, query string) ([]redditPost, error) {
	var listing redditListing
	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(r.token).
		SetQueryParams(map[string]string{
			"q":           query,
			"restrict_sr": "1",
			"sort":        "new",
			"t":           "year",
			"limit":       fmt.Sprint(r.opts.Limit),
		}).
		SetResult(&listing).
		Get(fmt.Sprintf("%s/r/%s/search.json", r.apiURL, subreddit))
	if err != nil {
		return nil, fmt.Errorf("search r/%s: %w", subreddit, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("reddit r/%s status %d", subreddit, resp.StatusCode())
	}

	posts := make([]redditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		var post redditPost
		if err := json.Unmarshal(child.Data, &post); err != nil {
			continue
		}
		if post.Stickied {
			continue
		}
		if post.Subreddit == "" {
			post.Subreddit = subreddit
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// fetchComments flattens the full comment tree of a post.
func (r *Reddit) fetchComments(ctx context.Context, post redditPost) ([]RawComment, error) {
	var listings []redditListing
	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(r.token).
		SetQueryParam("limit", "500").
		SetResult(&listings).
		Get(fmt.Sprintf("%s/comments/%s.json", r.apiURL, post.ID))
	if err != nil {
		return nil, fmt.Errorf("fetch comments %s: %w", post.ID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("reddit comments %s status %d", post.ID, resp.StatusCode())
	}
	if len(listings) < 2 {
		return nil, nil
	}

	var out []RawComment
	flattenComments(listings[1], post, &out)
	return out, nil
}

func flattenComments(listing redditListing, post redditPost, out *[]RawComment) {
	for _, child := range listing.Data.Children {
		if child.Kind != "t1" {
			continue
		}
		var c redditComment
		if err := json.Unmarshal(child.Data, &c); err != nil || c.Body == "" {
			continue
		}

		rc := RawComment{
			ID:        "comment_" + c.ID,
			Type:      "comment",
			Source:    SourceReddit,
			Subreddit: post.Subreddit,
			Title:     post.Title,
			Body:      c.Body,
			Score:     c.Score,
			URL:       "https://www.reddit.com" + c.Permalink,
		}
		stamp(&rc, time.Unix(int64(c.CreatedUTC), 0))
		*out = append(*out, rc)

		// replies is "" when empty, a listing otherwise
		var replies redditListing
		if len(c.Replies) > 0 && c.Replies[0] == '{' && json.Unmarshal(c.Replies, &replies) == nil {
			flattenComments(replies, post, out)
		}
	}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID         string  `json:"id"`
	Subreddit  string  `json:"subreddit"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	URL        string  `json:"url"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
}

func (p redditPost) toComment() RawComment {
	rc := RawComment{
		ID:        "post_" + p.ID,
		Type:      "post",
		Source:    SourceReddit,
		Subreddit: p.Subreddit,
		Title:     p.Title,
		Body:      p.Selftext,
		Score:     p.Score,
		URL:       p.URL,
	}
	stamp(&rc, time.Unix(int64(p.CreatedUTC), 0))
	return rc
}

type redditComment struct {
	ID         string          `json:"id"`
	Body       string          `json:"body"`
	Permalink  string          `json:"permalink"`
	Score      int             `json:"score"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"`
}
