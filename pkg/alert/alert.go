// Package alert announces golden candidates to chat and webhook destinations.
package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/elonfeng/flavorscout/pkg/rank"
)

// Notification is the data sent to alert destinations.
type Notification struct {
	RunID     string   `json:"run_id"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Flavor    string   `json:"flavor"`
	Score     float64  `json:"score"`
	Brand     string   `json:"brand"`
	Mentions  int      `json:"mentions"`
	Samples   []string `json:"samples"`
	RunnersUp []Entry  `json:"runners_up"`
}

// Entry is a flavor and its score.
type Entry struct {
	Flavor string  `json:"flavor"`
	Score  float64 `json:"score"`
}

const maxRunnersUp = 3

// FromReport builds the golden-candidate notification for a report, or nil
// if the report has no candidate.
func FromReport(r *rank.Report) *Notification {
	g := r.GoldenCandidate
	if g == nil {
		return nil
	}

	n := &Notification{
		RunID:    r.RunID,
		Title:    fmt.Sprintf("Golden candidate: %s", titleCase(g.Flavor)),
		Flavor:   g.Flavor,
		Score:    g.FinalScore,
		Brand:    g.RecommendedBrand,
		Mentions: g.MentionCount,
		Samples:  g.SampleComments,
	}
	if r.Pitch != nil {
		n.Body = r.Pitch.WhyThisWorks
		if r.Pitch.TargetProductLine != "" {
			n.Body += fmt.Sprintf("\nSuggested line: %s", r.Pitch.TargetProductLine)
		}
	} else {
		n.Body = fmt.Sprintf("%d mentions, %d positive / %d negative. Best fit: %s.",
			g.MentionCount, g.PositiveCount, g.NegativeCount, g.RecommendedBrand)
	}

	for _, sf := range r.Ranked {
		if sf.Rank == 1 {
			continue
		}
		if len(n.RunnersUp) == maxRunnersUp {
			break
		}
		n.RunnersUp = append(n.RunnersUp, Entry{Flavor: sf.Flavor, Score: sf.FinalScore})
	}
	return n
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
