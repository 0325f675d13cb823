package judge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elonfeng/flavorscout/pkg/flavor"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// DefaultBatchSize is how many comments go into one model call.
const DefaultBatchSize = 20

const maxPromptBody = 500

// ErrNoAPIKey is returned when the client is built without credentials.
var ErrNoAPIKey = errors.New("judge: api key not configured")

const systemPrompt = `You are an expert product analyst specializing in health and fitness supplements.
Your task is to analyze social media comments about supplement flavors and extract actionable insights for product innovation.

You must:
1. Extract flavor preferences, complaints, or suggestions from comments
2. Identify if a comment is relevant to flavor innovation (ignore off-topic content)
3. Assess sentiment (positive, negative, or neutral)
4. Determine which brand would best fit each flavor:
%s
5. Provide business-friendly explanations (avoid technical jargon)

Always base your analysis on the actual text provided. Do not invent flavors that aren't mentioned.
Return structured JSON responses.`

const batchPrompt = `Analyze the following comments about supplement flavors:

%s

For each comment, extract:
1. "flavors_mentioned": any specific flavors mentioned (e.g. "chocolate", "kesar", "mango", "salted caramel")
2. "is_relevant": is this comment relevant to flavor innovation? (true/false)
3. "sentiment": positive, negative, or neutral
4. "brand_fit": which brand best fits this flavor? (%s, or "none" if not applicable)
5. "reasoning": a brief business-friendly explanation (1-2 sentences)

Respond with a JSON array. Each element must have: "comment_id", "comment_text" (first 200 chars),
"flavors_mentioned", "is_relevant", "sentiment", "brand_fit", "reasoning".
If no flavors are mentioned or the comment is irrelevant, set is_relevant to false.

Return ONLY the JSON array, no other text.`

// Brand is a product line the model can assign a flavor to.
type Brand struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// DefaultBrands are used when none are configured.
var DefaultBrands = []Brand{
	{Name: "MuscleBlaze", Description: "Performance-focused, hardcore gym enthusiasts, athletes, bodybuilders"},
	{Name: "HK Vitals", Description: "Everyday wellness, broader audience, value-conscious consumers"},
	{Name: "TrueBasics", Description: "Premium positioning, natural/holistic ingredients, health-conscious consumers"},
}

// Options configures a Client.
type Options struct {
	Provider  string // "openai" or "anthropic"
	Model     string
	APIKey    string
	BaseURL   string // custom endpoint (optional)
	BatchSize int
	Brands    []Brand
}

// Client judges comments in batches through an LLM provider.
type Client struct {
	http      *resty.Client
	provider  string
	model     string
	apiKey    string
	baseURL   string
	batchSize int
	brands    []Brand
}

// Result is what came back from a judging pass. Failed batches are counted,
// not fatal.
type Result struct {
	Judgments     []Judgment
	Batches       int
	FailedBatches int
}

// New creates a new judge client.
func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	provider := strings.ToLower(opts.Provider)
	if provider == "" {
		provider = "openai"
	}
	model := opts.Model
	if model == "" {
		switch provider {
		case "anthropic":
			model = "claude-sonnet-4-20250514"
		default:
			model = "gpt-4o-mini"
		}
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		switch provider {
		case "anthropic":
			baseURL = "https://api.anthropic.com"
		default:
			baseURL = "https://api.openai.com"
		}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if len(opts.Brands) == 0 {
		opts.Brands = DefaultBrands
	}
	return &Client{
		http:      resty.New().SetTimeout(90 * time.Second),
		provider:  provider,
		model:     model,
		apiKey:    opts.APIKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		batchSize: opts.BatchSize,
		brands:    opts.Brands,
	}, nil
}

// Judge sends comments to the model in batches. A batch that fails is logged
// and skipped; only context cancellation stops the pass early.
func (c *Client) Judge(ctx context.Context, comments []flavor.CleanedComment) (Result, error) {
	var res Result

	for start := 0; start < len(comments); start += c.batchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		end := min(start+c.batchSize, len(comments))
		batch := comments[start:end]
		res.Batches++

		judgments, err := c.judgeBatch(ctx, batch)
		if err != nil {
			res.FailedBatches++
			logrus.WithFields(logrus.Fields{
				"batch": res.Batches,
				"size":  len(batch),
			}).Warnf("judge batch failed: %v", err)
			continue
		}
		res.Judgments = append(res.Judgments, judgments...)
	}

	return res, nil
}

func (c *Client) judgeBatch(ctx context.Context, batch []flavor.CleanedComment) ([]Judgment, error) {
	prompt := fmt.Sprintf(batchPrompt, formatComments(batch), c.brandNames())

	raw, err := c.complete(ctx, c.system(), prompt)
	if err != nil {
		return nil, err
	}

	judgments, err := parseJudgments(raw)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]flavor.CleanedComment, len(batch))
	for _, cm := range batch {
		byID[cm.ID] = cm
	}

	for i := range judgments {
		j := &judgments[i]
		if orig, ok := byID[j.CommentID]; ok {
			j.CreatedAt = orig.CreatedAt
			j.CreatedUTC = orig.CreatedUTC
			j.Subreddit = orig.Subreddit
			j.Score = orig.Score
			if j.CommentText == "" {
				j.CommentText = orig.Body
			}
		}
		j.Sanitize()
	}
	return judgments, nil
}

func (c *Client) system() string {
	lines := make([]string, len(c.brands))
	for i, b := range c.brands {
		lines[i] = fmt.Sprintf("   - **%s**: %s", b.Name, b.Description)
	}
	return fmt.Sprintf(systemPrompt, strings.Join(lines, "\n"))
}

func (c *Client) brandNames() string {
	names := make([]string, len(c.brands))
	for i, b := range c.brands {
		names[i] = b.Name
	}
	return strings.Join(names, ", ")
}

func formatComments(batch []flavor.CleanedComment) string {
	var sb strings.Builder
	for i, cm := range batch {
		body := Truncate(strings.TrimSpace(cm.Body), maxPromptBody)
		fmt.Fprintf(&sb, "[%d] ID: %s\nSubreddit: r/%s\nTitle: %s\nText: %s\n\n",
			i+1, cm.ID, cm.Subreddit, cm.Title, body)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// parseJudgments extracts a JSON array (or a lone object) from model output,
// tolerating markdown fences and surrounding prose.
func parseJudgments(raw string) ([]Judgment, error) {
	text := extractJSON(raw)
	if text == "" {
		return nil, fmt.Errorf("no json in model response: %s", truncateStr(raw, 200))
	}

	if text[0] == '{' {
		one, err := decodeJudgment(text)
		if err != nil {
			return nil, fmt.Errorf("parse judgment: %w\nraw: %s", err, truncateStr(raw, 500))
		}
		return []Judgment{one}, nil
	}

	many, err := decodeJudgments(text)
	if err != nil {
		return nil, fmt.Errorf("parse judgments: %w\nraw: %s", err, truncateStr(raw, 500))
	}
	return many, nil
}

func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		if end := strings.LastIndex(text, "```"); end >= 0 {
			text = text[:end]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return ""
	}
	closer := byte(']')
	if text[start] == '{' {
		closer = '}'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return ""
	}
	return text[start : end+1]
}

func (c *Client) complete(ctx context.Context, system, prompt string) (string, error) {
	switch c.provider {
	case "anthropic":
		return c.callAnthropic(ctx, system, prompt)
	default:
		return c.callOpenAI(ctx, system, prompt)
	}
}

func (c *Client) callOpenAI(ctx context.Context, system, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.3,
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(payload).
		SetResult(&result).
		Post(c.baseURL + "/v1/chat/completions")
	if err != nil {
		return "", fmt.Errorf("call openai: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("openai status %d: %s", resp.StatusCode(), truncateStr(resp.String(), 300))
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *Client) callAnthropic(ctx context.Context, system, prompt string) (string, error) {
	payload := map[string]any{
		"model":      c.model,
		"max_tokens": 4096,
		"system":     system,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetBody(payload).
		SetResult(&result).
		Post(c.baseURL + "/v1/messages")
	if err != nil {
		return "", fmt.Errorf("call anthropic: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("anthropic status %d: %s", resp.StatusCode(), truncateStr(resp.String(), 300))
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic: no content returned")
	}
	return result.Content[0].Text, nil
}

func truncateStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
