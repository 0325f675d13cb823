package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *resty.Client
	webhookURL string
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     resty.New().SetTimeout(10 * time.Second),
		webhookURL: webhookURL,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	var quotes []string
	for i, s := range n.Samples {
		if i == 3 {
			break
		}
		quotes = append(quotes, "> "+s)
	}

	embed := map[string]any{
		"title":       fmt.Sprintf("🏆 %s", n.Title),
		"description": fmt.Sprintf("**Score:** %.1f | **Brand:** %s | **Mentions:** %d\n\n%s\n\n%s", n.Score, n.Brand, n.Mentions, n.Body, strings.Join(quotes, "\n")),
		"color":       0xFFB000,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"embeds": []map[string]any{embed}}).
		Post(d.webhookURL)
	if err != nil {
		return fmt.Errorf("send discord webhook: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("discord webhook status %d", resp.StatusCode())
	}
	return nil
}
