package judge

import (
	"context"
	"encoding/json"
	"fmt"
)

const pitchPrompt = `Based on the following flavor analysis data, explain why this flavor is the #1 "Golden Candidate" recommendation:

%s

Consider mention frequency, sentiment, recency, brand fit alignment, and market opportunity.

Return a JSON object:
{
  "flavor_name": "string",
  "target_brand": "string",
  "why_this_works": "2-3 sentence business explanation",
  "target_product_line": "Suggested product line (e.g. 'Whey Protein', 'Mass Gainer')"
}`

// PitchInput is the scored data the pitch is written from.
type PitchInput struct {
	Flavor           string         `json:"flavor"`
	FinalScore       float64        `json:"final_score"`
	MentionCount     int            `json:"mention_count"`
	PositiveCount    int            `json:"positive_count"`
	NegativeCount    int            `json:"negative_count"`
	NeutralCount     int            `json:"neutral_count"`
	RecommendedBrand string         `json:"recommended_brand"`
	BrandBreakdown   map[string]int `json:"brand_fit_breakdown"`
	SampleComments   []string       `json:"sample_comments"`
}

// Pitch is the model's business explanation for the golden candidate.
type Pitch struct {
	FlavorName        string `json:"flavor_name"`
	TargetBrand       string `json:"target_brand"`
	WhyThisWorks      string `json:"why_this_works"`
	TargetProductLine string `json:"target_product_line"`
}

// Pitch asks the model to explain the top recommendation.
func (c *Client) Pitch(ctx context.Context, in PitchInput) (Pitch, error) {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return Pitch{}, fmt.Errorf("marshal pitch input: %w", err)
	}

	raw, err := c.complete(ctx, c.system(), fmt.Sprintf(pitchPrompt, data))
	if err != nil {
		return Pitch{}, err
	}

	text := extractJSON(raw)
	if text == "" || text[0] != '{' {
		return Pitch{}, fmt.Errorf("no json object in pitch response: %s", truncateStr(raw, 200))
	}

	var p Pitch
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return Pitch{}, fmt.Errorf("parse pitch: %w", err)
	}
	if p.FlavorName == "" {
		p.FlavorName = in.Flavor
	}
	return p, nil
}
