package main

import (
	"context"
	"testing"

	"github.com/elonfeng/flavorscout/internal/config"
	"github.com/elonfeng/flavorscout/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedSource source.SourceType

func (n namedSource) Name() source.SourceType { return source.SourceType(n) }

func (n namedSource) Collect(context.Context) ([]source.RawComment, error) { return nil, nil }

func TestSelectSources(t *testing.T) {
	all := []source.Source{namedSource("reddit"), namedSource("rss"), namedSource("amazon")}

	tests := []struct {
		name    string
		names   []string
		want    []source.SourceType
		wantErr bool
	}{
		{name: "none selects all", want: []source.SourceType{"reddit", "rss", "amazon"}},
		{name: "case and space insensitive", names: []string{" Amazon ", "REDDIT"}, want: []source.SourceType{"reddit", "amazon"}},
		{name: "unknown only", names: []string{"twitter"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectSources(all, tt.names)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			names := make([]source.SourceType, len(got))
			for i, s := range got {
				names[i] = s.Name()
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestBuildSources(t *testing.T) {
	cfg := config.Default()
	cfg.Sources.RSS.Enabled = true
	cfg.Sources.RSS.Feeds = []config.FeedItem{{Name: "supps", URL: "https://www.reddit.com/r/Supplements/comments/.rss"}}

	got := buildSources(cfg)
	require.Len(t, got, 2)
	assert.Equal(t, source.SourceReddit, got[0].Name())
	assert.Equal(t, source.SourceRSS, got[1].Name())
}

func TestBuildJudge_NoKey(t *testing.T) {
	cfg := config.Default()
	cfg.Judge.APIKey = ""
	assert.Nil(t, buildJudge(cfg))
}

func TestBuildVocabulary_Extra(t *testing.T) {
	cfg := config.Default()
	cfg.Flavors.Extra = []config.FlavorEntry{{Name: "thandai", Aliases: []string{"thandaai"}}}

	vocab := buildVocabulary(cfg)
	assert.Equal(t, []string{"thandai"}, vocab.Extract("Thandaai whey for holi"))
}
