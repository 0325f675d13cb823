package rank

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/elonfeng/flavorscout/internal/store"
	"github.com/elonfeng/flavorscout/pkg/flavor"
	"github.com/elonfeng/flavorscout/pkg/judge"
	"github.com/elonfeng/flavorscout/pkg/source"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Judge labels comments and writes the golden-candidate pitch.
type Judge interface {
	Judge(ctx context.Context, comments []flavor.CleanedComment) (judge.Result, error)
	Pitch(ctx context.Context, in judge.PitchInput) (judge.Pitch, error)
}

// EngineConfig tunes an Engine. Zero values fall back to the defaults.
type EngineConfig struct {
	Weights      *Weights
	DaysLookback int
	// RejectThreshold is the score below which flavors are rejected. nil
	// uses DefaultRejectThreshold; 0 rejects nothing.
	RejectThreshold *float64
	Normalizer      *flavor.Normalizer
}

// Engine runs collection and analysis against the store. Passes are
// serialized; one finishes before the next begins.
type Engine struct {
	mu         sync.Mutex
	store      store.Store
	judge      Judge // optional, nil = score stored judgments only
	normalizer *flavor.Normalizer
	opts       Options
	threshold  float64
	now        func() time.Time
}

// NewEngine creates a new analysis engine.
func NewEngine(s store.Store, j Judge, cfg EngineConfig) *Engine {
	if cfg.Normalizer == nil {
		cfg.Normalizer = flavor.NewNormalizer(nil)
	}
	threshold := DefaultRejectThreshold
	if cfg.RejectThreshold != nil && *cfg.RejectThreshold >= 0 {
		threshold = *cfg.RejectThreshold
	}
	return &Engine{
		store:      s,
		judge:      j,
		normalizer: cfg.Normalizer,
		opts:       Options{Weights: cfg.Weights, DaysLookback: cfg.DaysLookback}.withDefaults(),
		threshold:  threshold,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Threshold is the reject threshold in use.
func (e *Engine) Threshold() float64 { return e.threshold }

// CollectStat summarizes one source's contribution to a collection pass.
type CollectStat struct {
	Source source.SourceType `json:"source"`
	Raw    int               `json:"raw"`
	Kept   int               `json:"kept"`
	Error  string            `json:"error,omitempty"`
}

// Collect pulls from every source, normalizes, and stores the survivors.
// A failing source is logged and recorded; it does not stop the others.
func (e *Engine) Collect(ctx context.Context, sources []source.Source) ([]CollectStat, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := make([]CollectStat, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stat := CollectStat{Source: src.Name()}
		raw, err := src.Collect(ctx)
		if err != nil {
			logrus.WithField("source", src.Name()).Errorf("collect failed: %v", err)
			stat.Error = err.Error()
		}
		stat.Raw = len(raw)

		cleaned := e.normalizer.Normalize(raw)
		if err := e.store.UpsertComments(ctx, cleaned); err != nil {
			return stats, fmt.Errorf("store %s comments: %w", src.Name(), err)
		}
		stat.Kept = len(cleaned)

		logrus.WithFields(logrus.Fields{
			"source": src.Name(),
			"raw":    stat.Raw,
			"kept":   stat.Kept,
		}).Info("collected")
		stats = append(stats, stat)
	}
	return stats, nil
}

// Report is the outcome of one ranking pass.
type Report struct {
	RunID           string         `json:"run_id"`
	GeneratedAt     time.Time      `json:"generated_at"`
	CommentsJudged  int            `json:"comments_judged"`
	JudgmentCount   int            `json:"judgment_count"`
	FailedBatches   int            `json:"failed_batches"`
	Threshold       float64        `json:"threshold"`
	Ranked          []ScoredFlavor `json:"ranked"`
	GoldenCandidate *ScoredFlavor  `json:"golden_candidate"`
	Rejected        []ScoredFlavor `json:"rejected"`
	Pitch           *judge.Pitch   `json:"pitch,omitempty"`
}

// Rank aggregates and scores judgments without touching the store.
func (e *Engine) Rank(judgments []judge.Judgment) *Report {
	opts := e.opts
	opts.Now = e.now()

	ranked := Compose(Aggregate(judgments), opts)
	return &Report{
		RunID:           uuid.NewString(),
		GeneratedAt:     opts.Now,
		JudgmentCount:   len(judgments),
		Threshold:       e.threshold,
		Ranked:          ranked,
		GoldenCandidate: GoldenCandidate(ranked),
		Rejected:        Rejected(ranked, e.threshold),
	}
}

// Analyze judges comments that have none yet, ranks every judgment inside
// the lookback window, and records the run.
func (e *Engine) Analyze(ctx context.Context) (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	started := e.now()
	since := started.Add(-time.Duration(e.opts.DaysLookback) * 24 * time.Hour)

	var judged, failed int
	if e.judge != nil {
		pending, err := e.store.ListUnjudged(ctx, store.ListOpts{Since: since, Limit: 5000})
		if err != nil {
			return nil, fmt.Errorf("list unjudged comments: %w", err)
		}

		if len(pending) > 0 {
			res, err := e.judge.Judge(ctx, pending)
			if err != nil {
				return nil, fmt.Errorf("judge comments: %w", err)
			}
			if err := e.store.SaveJudgments(ctx, res.Judgments); err != nil {
				return nil, fmt.Errorf("save judgments: %w", err)
			}
			judged, failed = len(pending), res.FailedBatches
			logrus.WithFields(logrus.Fields{
				"comments":  len(pending),
				"judgments": len(res.Judgments),
				"failed":    res.FailedBatches,
			}).Info("judged comments")
		}
	}

	judgments, err := e.store.ListJudgments(ctx, store.JudgmentListOpts{Since: since})
	if err != nil {
		return nil, fmt.Errorf("list judgments: %w", err)
	}

	report := e.Rank(judgments)
	report.CommentsJudged = judged
	report.FailedBatches = failed

	if report.GoldenCandidate != nil && e.judge != nil {
		pitch, err := e.judge.Pitch(ctx, PitchInputFor(*report.GoldenCandidate))
		if err != nil {
			logrus.WithField("flavor", report.GoldenCandidate.Flavor).Warnf("pitch failed: %v", err)
		} else {
			report.Pitch = &pitch
		}
	}

	run := &store.Run{
		ID:            report.RunID,
		StartedAt:     started,
		FinishedAt:    e.now(),
		CommentCount:  judged,
		JudgmentCount: len(judgments),
		FailedBatches: failed,
		FlavorCount:   len(report.Ranked),
		Threshold:     e.threshold,
		DaysLookback:  e.opts.DaysLookback,
		Pitch:         report.Pitch,
	}
	if g := report.GoldenCandidate; g != nil {
		run.GoldenFlavor, run.GoldenScore = g.Flavor, g.FinalScore
	}
	if err := e.store.SaveRun(ctx, run, ToRecommendations(report.Ranked)); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}

	return report, nil
}

// LatestReport rebuilds the report of the most recent run. A negative
// threshold uses the engine's own.
func (e *Engine) LatestReport(ctx context.Context, threshold float64) (*Report, error) {
	if threshold < 0 {
		threshold = e.threshold
	}
	run, err := e.store.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := e.store.ListRecommendations(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	ranked := FromRecommendations(recs)
	return &Report{
		RunID:           run.ID,
		GeneratedAt:     run.FinishedAt,
		CommentsJudged:  run.CommentCount,
		JudgmentCount:   run.JudgmentCount,
		FailedBatches:   run.FailedBatches,
		Threshold:       threshold,
		Ranked:          ranked,
		GoldenCandidate: GoldenCandidate(ranked),
		Rejected:        Rejected(ranked, threshold),
		Pitch:           run.Pitch,
	}, nil
}

// IsNoRun reports whether err means no analysis has been recorded yet.
func IsNoRun(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// PitchInputFor builds the pitch request for a scored flavor.
func PitchInputFor(sf ScoredFlavor) judge.PitchInput {
	return judge.PitchInput{
		Flavor:           sf.Flavor,
		FinalScore:       sf.FinalScore,
		MentionCount:     sf.MentionCount,
		PositiveCount:    sf.PositiveCount,
		NegativeCount:    sf.NegativeCount,
		NeutralCount:     sf.NeutralCount,
		RecommendedBrand: sf.RecommendedBrand,
		BrandBreakdown:   sf.BrandFitBreakdown,
		SampleComments:   sf.SampleComments,
	}
}

// ToRecommendations converts ranked flavors to their stored form.
func ToRecommendations(ranked []ScoredFlavor) []store.Recommendation {
	recs := make([]store.Recommendation, len(ranked))
	for i, sf := range ranked {
		recs[i] = store.Recommendation{
			Rank:              sf.Rank,
			Flavor:            sf.Flavor,
			FinalScore:        sf.FinalScore,
			FrequencyScore:    sf.FrequencyScore,
			SentimentScore:    sf.SentimentScore,
			RecencyScore:      sf.RecencyScore,
			BrandFitScore:     sf.BrandFitScore,
			MentionCount:      sf.MentionCount,
			PositiveCount:     sf.PositiveCount,
			NegativeCount:     sf.NegativeCount,
			NeutralCount:      sf.NeutralCount,
			RecommendedBrand:  sf.RecommendedBrand,
			BrandFitBreakdown: sf.BrandFitBreakdown,
			SampleComments:    sf.SampleComments,
		}
	}
	return recs
}

// FromRecommendations converts stored recommendations back, in rank order.
func FromRecommendations(recs []store.Recommendation) []ScoredFlavor {
	ranked := make([]ScoredFlavor, len(recs))
	for i, r := range recs {
		ranked[i] = ScoredFlavor{
			Rank:              r.Rank,
			Flavor:            r.Flavor,
			FinalScore:        r.FinalScore,
			FrequencyScore:    r.FrequencyScore,
			SentimentScore:    r.SentimentScore,
			RecencyScore:      r.RecencyScore,
			BrandFitScore:     r.BrandFitScore,
			MentionCount:      r.MentionCount,
			PositiveCount:     r.PositiveCount,
			NegativeCount:     r.NegativeCount,
			NeutralCount:      r.NeutralCount,
			RecommendedBrand:  r.RecommendedBrand,
			BrandFitBreakdown: r.BrandFitBreakdown,
			SampleComments:    r.SampleComments,
		}
	}
	return ranked
}
