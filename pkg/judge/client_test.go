package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/elonfeng/flavorscout/pkg/flavor"
	"github.com/elonfeng/flavorscout/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func comment(id, body string, createdUTC float64) flavor.CleanedComment {
	return flavor.CleanedComment{
		RawComment: source.RawComment{
			ID:         id,
			Body:       body,
			Subreddit:  "Supplements",
			Score:      7,
			CreatedUTC: createdUTC,
			CreatedAt:  "2026-10-01T00:00:00Z",
		},
	}
}

func openAIReply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Options{Provider: "openai"})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestJudge_OpenAIMergesMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		openAIReply(w, "```json\n"+`[
			{"comment_id":"c1","comment_text":"mango is great","flavors_mentioned":["Mango"],"is_relevant":true,"sentiment":"POSITIVE","brand_fit":"MuscleBlaze"},
			{"comment_id":"c2","flavors_mentioned":[],"is_relevant":false,"sentiment":"meh"}
		]`+"\n```")
	}))
	defer srv.Close()

	client, err := New(Options{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	res, err := client.Judge(context.Background(), []flavor.CleanedComment{
		comment("c1", "mango is great in whey", 1790000000),
		comment("c2", "shipping was slow this time", 1790000100),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Batches)
	assert.Equal(t, 0, res.FailedBatches)
	require.Len(t, res.Judgments, 2)

	first := res.Judgments[0]
	assert.Equal(t, "c1", first.CommentID)
	assert.Equal(t, Positive, first.Sentiment)
	assert.Equal(t, "MuscleBlaze", first.BrandFit)
	assert.Equal(t, float64(1790000000), first.CreatedUTC)
	assert.Equal(t, "2026-10-01T00:00:00Z", first.CreatedAt)
	assert.Equal(t, "Supplements", first.Subreddit)
	assert.Equal(t, 7, first.Score)

	second := res.Judgments[1]
	assert.Equal(t, Neutral, second.Sentiment)
	assert.Equal(t, NoBrand, second.BrandFit)
	assert.Equal(t, "shipping was slow this time", second.CommentText)
}

func TestJudge_FailedBatchIsSkipped(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
			return
		}
		openAIReply(w, `[{"comment_id":"c3","flavors_mentioned":["kesar"],"is_relevant":true,"sentiment":"positive","brand_fit":"HK Vitals"}]`)
	}))
	defer srv.Close()

	client, err := New(Options{APIKey: "k", BaseURL: srv.URL, BatchSize: 2})
	require.NoError(t, err)

	res, err := client.Judge(context.Background(), []flavor.CleanedComment{
		comment("c1", "chocolate is too sweet honestly", 0),
		comment("c2", "vanilla is boring but fine", 0),
		comment("c3", "kesar flavor would be a hit", 0),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 1, res.FailedBatches)
	require.Len(t, res.Judgments, 1)
	assert.Equal(t, "c3", res.Judgments[0].CommentID)
}

func TestJudge_Anthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "a-key", r.Header.Get("x-api-key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["system"], "TrueBasics")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{
				{"text": `Here you go: {"comment_id":"c1","flavors_mentioned":["rose"],"is_relevant":true,"sentiment":"negative","brand_fit":"TrueBasics"}`},
			},
		})
	}))
	defer srv.Close()

	client, err := New(Options{Provider: "anthropic", APIKey: "a-key", BaseURL: srv.URL})
	require.NoError(t, err)

	res, err := client.Judge(context.Background(), []flavor.CleanedComment{
		comment("c1", "rose flavor tastes like soap", 0),
	})
	require.NoError(t, err)
	require.Len(t, res.Judgments, 1)
	assert.Equal(t, Negative, res.Judgments[0].Sentiment)
	assert.Equal(t, []string{"rose"}, res.Judgments[0].FlavorsMentioned)
}

func TestJudge_CancelledContext(t *testing.T) {
	client, err := New(Options{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Judge(ctx, []flavor.CleanedComment{comment("c1", "mango mango mango", 0)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPitch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		openAIReply(w, `{"target_brand":"MuscleBlaze","why_this_works":"Strong demand.","target_product_line":"Whey Protein"}`)
	}))
	defer srv.Close()

	client, err := New(Options{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	p, err := client.Pitch(context.Background(), PitchInput{Flavor: "mango", FinalScore: 81.5})
	require.NoError(t, err)
	assert.Equal(t, "mango", p.FlavorName)
	assert.Equal(t, "Whey Protein", p.TargetProductLine)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{name: "plain array", raw: `[{"a":1}]`, expected: `[{"a":1}]`},
		{name: "fenced", raw: "```json\n[{\"a\":1}]\n```", expected: `[{"a":1}]`},
		{name: "prose around object", raw: `Sure! {"a":1} hope it helps`, expected: `{"a":1}`},
		{name: "array before object", raw: `result: [{"a":1},{"b":2}]`, expected: `[{"a":1},{"b":2}]`},
		{name: "no json", raw: "sorry, cannot help", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJSON(tt.raw))
		})
	}
}

func TestSanitize(t *testing.T) {
	j := Judgment{
		CommentText: strings.Repeat("é", 250),
		Sentiment:   " Negative ",
		BrandFit:    "None",
	}
	j.Sanitize()

	assert.Equal(t, Negative, j.Sentiment)
	assert.Equal(t, NoBrand, j.BrandFit)
	assert.Equal(t, MaxCommentText, len([]rune(j.CommentText)))
	assert.NotNil(t, j.FlavorsMentioned)
}

func TestParseJudgments_LooseTypes(t *testing.T) {
	raw := `[
		{"comment_id":"c1","flavors_mentioned":["mango"],"is_relevant":"true","sentiment":"positive"},
		{"comment_id":42,"flavors_mentioned":"kesar","is_relevant":1,"brand_fit":null},
		"not an object",
		{"comment_id":"c3","flavors_mentioned":["rose", 7],"is_relevant":"no"}
	]`

	got, err := parseJudgments(raw)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.True(t, got[0].IsRelevant)
	assert.Equal(t, []string{"mango"}, got[0].FlavorsMentioned)

	assert.Equal(t, "42", got[1].CommentID)
	assert.True(t, got[1].IsRelevant)
	assert.Equal(t, []string{"kesar"}, got[1].FlavorsMentioned)
	assert.Empty(t, got[1].BrandFit)

	assert.False(t, got[2].IsRelevant)
	assert.Equal(t, []string{"rose", "7"}, got[2].FlavorsMentioned)
}

func TestLooseBool(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`"TRUE"`, true},
		{`"yes"`, true},
		{`"false"`, false},
		{`0`, false},
		{`1`, true},
		{`null`, false},
		{`{}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, looseBool(json.RawMessage(tt.raw)))
		})
	}
}
