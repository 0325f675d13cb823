package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listing(kind string, items ...map[string]any) map[string]any {
	children := make([]map[string]any, len(items))
	for i, it := range items {
		children[i] = map[string]any{"kind": kind, "data": it}
	}
	return map[string]any{"data": map[string]any{"children": children}}
}

func TestReddit_Collect(t *testing.T) {
	now := float64(time.Now().Unix())
	old := float64(time.Now().AddDate(0, 0, -200).Unix())

	var searches int
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/r/Supplements/search.json", func(w http.ResponseWriter, r *http.Request) {
		searches++
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "whey flavor", r.URL.Query().Get("q"))
		json.NewEncoder(w).Encode(listing("t3",
			map[string]any{"id": "p1", "title": "Best whey flavor?", "selftext": "mango or kesar", "score": 12, "created_utc": now},
			map[string]any{"id": "p2", "title": "Weekly thread", "stickied": true, "created_utc": now},
			map[string]any{"id": "p3", "title": "ancient", "created_utc": old},
		))
	})
	mux.HandleFunc("/comments/p1.json", func(w http.ResponseWriter, r *http.Request) {
		reply := listing("t1", map[string]any{
			"id": "c2", "body": "kesar pista please", "score": 3, "created_utc": now, "replies": "",
		})
		json.NewEncoder(w).Encode([]any{
			listing("t3", map[string]any{"id": "p1"}),
			map[string]any{"data": map[string]any{"children": []map[string]any{
				{"kind": "t1", "data": map[string]any{
					"id": "c1", "body": "mango is the best", "score": 5, "created_utc": now,
					"permalink": "/r/Supplements/comments/p1/_/c1/", "replies": reply,
				}},
				{"kind": "more", "data": map[string]any{"id": "m1"}},
			}}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := NewReddit(RedditOptions{
		ClientID:        "id",
		ClientSecret:    "secret",
		Subreddits:      []string{"Supplements"},
		Queries:         []string{"whey flavor"},
		IncludeComments: true,
	})
	r.authURL = srv.URL + "/token"
	r.apiURL = srv.URL

	got, err := r.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1, searches)

	assert.Equal(t, "post_p1", got[0].ID)
	assert.Equal(t, "post", got[0].Type)
	assert.Equal(t, "Supplements", got[0].Subreddit)
	assert.Equal(t, "mango or kesar", got[0].Body)

	assert.Equal(t, "comment_c1", got[1].ID)
	assert.Equal(t, "Best whey flavor?", got[1].Title)
	assert.Equal(t, "https://www.reddit.com/r/Supplements/comments/p1/_/c1/", got[1].URL)
	assert.Equal(t, "comment_c2", got[2].ID)
	assert.NotEmpty(t, got[2].CreatedAt)
}

func TestReddit_AuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := NewReddit(RedditOptions{ClientID: "id", ClientSecret: "bad"})
	r.authURL = srv.URL

	_, err := r.Collect(context.Background())
	assert.ErrorContains(t, err, "reddit auth")
}

func TestRSS_Collect(t *testing.T) {
	recent := time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC1123Z)
	stale := time.Now().AddDate(0, 0, -120).UTC().Format(time.RFC1123Z)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>reviews</title>
<item><guid>g1</guid><title>Tried the new flavor</title><link>https://example.com/1</link>
<description>&lt;p&gt;Rose &amp;amp; cardamom was   &lt;b&gt;great&lt;/b&gt;&lt;/p&gt;</description><pubDate>%s</pubDate></item>
<item><guid>g2</guid><title>Old news</title><description>vanilla</description><pubDate>%s</pubDate></item>
<item><title>no id</title><description>chocolate</description><pubDate>%s</pubDate></item>
</channel></rss>`, recent, stale, recent)
	}))
	defer srv.Close()

	r := NewRSS([]RSSFeed{{Name: "blog", URL: srv.URL}}, 30)
	got, err := r.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "rss_g1", got[0].ID)
	assert.Equal(t, SourceRSS, got[0].Source)
	assert.Equal(t, "blog", got[0].Subreddit)
	assert.Equal(t, "Rose & cardamom was great", got[0].Body)
}

func TestRSS_FeedErrorIsSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	got, err := NewRSS([]RSSFeed{{Name: "down", URL: srv.URL}}, 0).Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAmazon_Collect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/product/reviews", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-RapidAPI-Key"))
		asin := r.URL.Query().Get("asin")
		json.NewEncoder(w).Encode(map[string]any{
			"reviews": []map[string]any{
				{"id": "", "title": "Tasty", "review": "Chocolate hazelnut is addictive", "rating": "5.0",
					"date": map[string]string{"date": "March 3, 2026"}},
				{"id": asin + "-r2", "title": "Meh", "review": "too sweet", "rating": "2.0"},
			},
		})
	}))
	defer srv.Close()

	a := NewAmazon("key", []string{"B01", "B02"}, 1)
	a.baseURL = srv.URL
	a.delay = 0

	got, err := a.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "review_B01_0", got[0].ID)
	assert.Equal(t, 5, got[0].Score)
	assert.Equal(t, "2026-03-03T00:00:00Z", got[0].CreatedAt)
	assert.Equal(t, "https://www.amazon.in/dp/B02", got[1].URL)
}

func TestAmazon_RequiresKey(t *testing.T) {
	_, err := NewAmazon("", []string{"B01"}, 0).Collect(context.Background())
	assert.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "a b & c", stripHTML("<p>a</p>\n<br/>b &amp; c"))
}
