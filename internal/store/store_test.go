package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/elonfeng/flavorscout/pkg/flavor"
	"github.com/elonfeng/flavorscout/pkg/judge"
	"github.com/elonfeng/flavorscout/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func cleaned(id string, src source.SourceType, flavors ...string) flavor.CleanedComment {
	if flavors == nil {
		flavors = []string{}
	}
	return flavor.CleanedComment{
		RawComment: source.RawComment{
			ID:         id,
			Source:     src,
			Subreddit:  "Fitness",
			Body:       "body of " + id + " with some words",
			Score:      3,
			CreatedUTC: 1790000000,
			CreatedAt:  "2026-09-21T12:00:00Z",
		},
		Flavors: flavors,
	}
}

func TestComments_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertComments(ctx, []flavor.CleanedComment{
		cleaned("post_1", source.SourceReddit, "mango"),
		cleaned("review_1", source.SourceAmazon),
	}))

	updated := cleaned("post_1", source.SourceReddit, "mango", "kesar")
	updated.Score = 40
	require.NoError(t, s.UpsertComments(ctx, []flavor.CleanedComment{updated}))

	all, err := s.ListComments(ctx, ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "post_1", all[0].ID)
	assert.Equal(t, 40, all[0].Score)
	assert.Equal(t, []string{"mango", "kesar"}, all[0].Flavors)
	assert.Equal(t, []string{}, all[1].Flavors)

	amazon, err := s.ListComments(ctx, ListOpts{Source: source.SourceAmazon})
	require.NoError(t, err)
	require.Len(t, amazon, 1)
	assert.Equal(t, "review_1", amazon[0].ID)

	counts, err := s.CountCommentsBySource(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[source.SourceReddit])
	assert.Equal(t, 1, counts[source.SourceAmazon])
}

func TestJudgments_UnjudgedAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertComments(ctx, []flavor.CleanedComment{
		cleaned("c1", source.SourceReddit, "mango"),
		cleaned("c2", source.SourceReddit, "rose"),
	}))

	require.NoError(t, s.SaveJudgments(ctx, []judge.Judgment{{
		CommentID:        "c1",
		CommentText:      "mango please",
		FlavorsMentioned: []string{"mango"},
		IsRelevant:       true,
		Sentiment:        judge.Positive,
		BrandFit:         "MuscleBlaze",
		CreatedUTC:       1790000000,
	}}))

	pending, err := s.ListUnjudged(ctx, ListOpts{})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c2", pending[0].ID)

	judgments, err := s.ListJudgments(ctx, JudgmentListOpts{Since: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, judgments, 1)
	assert.True(t, judgments[0].IsRelevant)
	assert.Equal(t, []string{"mango"}, judgments[0].FlavorsMentioned)
	assert.Equal(t, float64(1790000000), judgments[0].CreatedUTC)

	none, err := s.ListJudgments(ctx, JudgmentListOpts{Since: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRuns_SaveAndRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	start := time.Now().UTC().Add(-time.Minute)
	run := &Run{
		ID:           "run-1",
		StartedAt:    start,
		FinishedAt:   start.Add(30 * time.Second),
		FlavorCount:  2,
		GoldenFlavor: "mango",
		GoldenScore:  81.5,
		Threshold:    30,
		DaysLookback: 90,
		Pitch:        &judge.Pitch{FlavorName: "mango", TargetBrand: "MuscleBlaze"},
	}
	recs := []Recommendation{
		{Rank: 1, Flavor: "mango", FinalScore: 81.5, RecommendedBrand: "MuscleBlaze",
			BrandFitBreakdown: map[string]int{"MuscleBlaze": 3}, SampleComments: []string{"love mango"}},
		{Rank: 2, Flavor: "rose", FinalScore: 12.25, RecommendedBrand: judge.NoBrand},
	}
	require.NoError(t, s.SaveRun(ctx, run, recs))

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest.ID)
	assert.Equal(t, "mango", latest.GoldenFlavor)
	require.NotNil(t, latest.Pitch)
	assert.Equal(t, "MuscleBlaze", latest.Pitch.TargetBrand)
	assert.False(t, latest.Alerted)

	got, err := s.ListRecommendations(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "mango", got[0].Flavor)
	assert.Equal(t, map[string]int{"MuscleBlaze": 3}, got[0].BrandFitBreakdown)
	assert.Equal(t, []string{"love mango"}, got[0].SampleComments)
	assert.Equal(t, map[string]int{}, got[1].BrandFitBreakdown)

	require.NoError(t, s.MarkAlerted(ctx, "run-1"))
	runs, err := s.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Alerted)

	assert.ErrorIs(t, s.MarkAlerted(ctx, "missing"), ErrNotFound)
}

func TestJSONFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "comments.json")
	in := []source.RawComment{{ID: "post_1", Body: "mango whey is great", CreatedUTC: 1790000000}}

	require.NoError(t, SaveJSON(path, in))

	var out []source.RawComment
	require.NoError(t, LoadJSON(path, &out))
	assert.Equal(t, in, out)

	assert.Error(t, LoadJSON(filepath.Join(t.TempDir(), "missing.json"), &out))
}
