package scheduler

import (
	"context"
	"fmt"

	"github.com/elonfeng/flavorscout/internal/store"
	"github.com/elonfeng/flavorscout/pkg/alert"
	"github.com/elonfeng/flavorscout/pkg/rank"
	"github.com/elonfeng/flavorscout/pkg/source"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSpec runs the pipeline four times a day.
const DefaultSpec = "@every 6h"

// Scheduler runs collection, analysis, and alerting on a cron schedule.
type Scheduler struct {
	store    store.Store
	sources  []source.Source
	engine   *rank.Engine
	alertMgr *alert.Manager
	spec     string
	minScore float64
}

// New creates a new scheduler. spec is a standard cron expression or a
// descriptor such as "@every 6h".
func New(
	s store.Store,
	sources []source.Source,
	engine *rank.Engine,
	alertMgr *alert.Manager,
	spec string,
	minScore float64,
) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	if alertMgr == nil {
		alertMgr = alert.NewManager(nil)
	}
	return &Scheduler{
		store:    s,
		sources:  sources,
		engine:   engine,
		alertMgr: alertMgr,
		spec:     spec,
		minScore: minScore,
	}, nil
}

// Run executes one pass immediately, then on every schedule tick until ctx is
// cancelled. Overlapping ticks are skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule pipeline: %w", err)
	}

	logrus.Info("scheduler: initial pass")
	s.tick(ctx)

	c.Start()
	logrus.WithField("schedule", s.spec).Info("scheduler: running")

	<-ctx.Done()
	<-c.Stop().Done()
	logrus.Info("scheduler: stopped")
	return ctx.Err()
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		logrus.Errorf("scheduler: %v", err)
	}
}

// RunOnce collects, analyzes, and alerts on the golden candidate when it
// clears the alert score.
func (s *Scheduler) RunOnce(ctx context.Context) (*rank.Report, error) {
	if _, err := s.engine.Collect(ctx, s.sources); err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}

	report, err := s.engine.Analyze(ctx)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	if g := report.GoldenCandidate; g != nil {
		logrus.WithFields(logrus.Fields{
			"run":    report.RunID,
			"flavor": g.Flavor,
			"score":  g.FinalScore,
		}).Info("golden candidate")
	}

	s.alert(ctx, report)
	return report, nil
}

func (s *Scheduler) alert(ctx context.Context, report *rank.Report) {
	if !s.alertMgr.HasNotifiers() {
		return
	}
	g := report.GoldenCandidate
	if g == nil || g.FinalScore < s.minScore {
		return
	}

	if err := s.alertMgr.Broadcast(ctx, alert.FromReport(report)); err != nil {
		logrus.WithField("flavor", g.Flavor).Errorf("alert failed: %v", err)
		return
	}
	if err := s.store.MarkAlerted(ctx, report.RunID); err != nil {
		logrus.WithField("run", report.RunID).Warnf("mark alerted: %v", err)
		return
	}
	logrus.Infof("alerted: %s (score: %.1f)", g.Flavor, g.FinalScore)
}
