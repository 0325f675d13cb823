package source

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	amazonBaseURL = "https://amazon-product-reviews-keywords.p.rapidapi.com"
	amazonHost    = "amazon-product-reviews-keywords.p.rapidapi.com"
)

// Amazon collects product reviews through the RapidAPI reviews endpoint.
type Amazon struct {
	client     *resty.Client
	baseURL    string
	apiKey     string
	productIDs []string
	maxReviews int
	delay      time.Duration
}

// NewAmazon creates a new Amazon review collector for the given ASINs.
func NewAmazon(apiKey string, productIDs []string, maxReviews int) *Amazon {
	if maxReviews <= 0 {
		maxReviews = 100
	}
	return &Amazon{
		client: resty.New().
			SetTimeout(10 * time.Second).
			SetHeader("X-RapidAPI-Key", apiKey).
			SetHeader("X-RapidAPI-Host", amazonHost),
		baseURL:    amazonBaseURL,
		apiKey:     apiKey,
		productIDs: productIDs,
		maxReviews: maxReviews,
		delay:      time.Second,
	}
}

func (a *Amazon) Name() SourceType { return SourceAmazon }

func (a *Amazon) Collect(ctx context.Context) ([]RawComment, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("amazon: rapidapi key not configured")
	}

	var all []RawComment
	for i, asin := range a.productIDs {
		if i > 0 && a.delay > 0 {
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(a.delay):
			}
		}

		reviews, err := a.fetchProduct(ctx, asin)
		if err != nil {
			logrus.WithField("asin", asin).Errorf("amazon reviews failed: %v", err)
			continue
		}
		all = append(all, reviews...)
	}
	return all, nil
}

func (a *Amazon) fetchProduct(ctx context.Context, asin string) ([]RawComment, error) {
	var result amazonResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"asin": asin, "country": "IN"}).
		SetResult(&result).
		Get(a.baseURL + "/product/reviews")
	if err != nil {
		return nil, fmt.Errorf("fetch reviews %s: %w", asin, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("amazon %s status %d", asin, resp.StatusCode())
	}

	var out []RawComment
	for i, rv := range result.Reviews {
		if i >= a.maxReviews {
			break
		}
		id := rv.ID
		if id == "" {
			id = fmt.Sprintf("%s_%d", asin, i)
		}

		rating, _ := strconv.ParseFloat(rv.Rating, 64)
		c := RawComment{
			ID:        "review_" + id,
			Type:      "review",
			Source:    SourceAmazon,
			Subreddit: "amazon",
			Title:     rv.Title,
			Body:      rv.Review,
			Score:     int(rating),
			URL:       fmt.Sprintf("https://www.amazon.in/dp/%s", asin),
		}

		created := time.Now().UTC()
		if t, err := time.Parse("January 2, 2006", rv.Date.Date); err == nil {
			created = t
		}
		stamp(&c, created)
		out = append(out, c)
	}
	return out, nil
}

type amazonResponse struct {
	Reviews []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Review string `json:"review"`
		Rating string `json:"rating"`
		Date   struct {
			Date string `json:"date"`
		} `json:"date"`
	} `json:"reviews"`
}
