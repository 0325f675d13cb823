package alert

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Slack sends notifications via Slack incoming webhook.
type Slack struct {
	client     *resty.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		client:     resty.New().SetTimeout(10 * time.Second),
		webhookURL: webhookURL,
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	// Block Kit message.
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": fmt.Sprintf("🏆 %s", n.Title),
			},
		},
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Score:* %.1f | *Brand:* %s | *Mentions:* %d\n%s", n.Score, n.Brand, n.Mentions, n.Body),
			},
		},
	}

	if len(n.RunnersUp) > 0 {
		var parts []string
		for _, e := range n.RunnersUp {
			parts = append(parts, fmt.Sprintf("%s (%.1f)", e.Flavor, e.Score))
		}
		blocks = append(blocks, map[string]any{
			"type": "context",
			"elements": []map[string]any{{
				"type": "mrkdwn",
				"text": "Runners-up: " + strings.Join(parts, ", "),
			}},
		})
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"blocks": blocks}).
		Post(s.webhookURL)
	if err != nil {
		return fmt.Errorf("send slack webhook: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("slack webhook status %d", resp.StatusCode())
	}
	return nil
}
