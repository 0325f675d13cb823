package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/elonfeng/flavorscout/internal/config"
	"github.com/elonfeng/flavorscout/internal/scheduler"
	"github.com/elonfeng/flavorscout/internal/store"
	"github.com/elonfeng/flavorscout/pkg/alert"
	"github.com/elonfeng/flavorscout/pkg/flavor"
	"github.com/elonfeng/flavorscout/pkg/judge"
	"github.com/elonfeng/flavorscout/pkg/rank"
	"github.com/elonfeng/flavorscout/pkg/server"
	"github.com/elonfeng/flavorscout/pkg/source"
	"github.com/sirupsen/logrus"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.Log)
	return cfg, nil
}

func setupLogging(lc config.LogConfig) {
	logrus.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(lc.Level); err == nil {
		logrus.SetLevel(lvl)
	}
	if lc.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func buildVocabulary(cfg *config.Config) *flavor.Vocabulary {
	extra := make([]flavor.Entry, len(cfg.Flavors.Extra))
	for i, e := range cfg.Flavors.Extra {
		extra[i] = flavor.Entry{Name: e.Name, Aliases: e.Aliases}
	}
	return flavor.NewVocabulary(extra...)
}

// buildJudge returns nil when no API key is configured; analysis then ranks
// stored judgments only.
func buildJudge(cfg *config.Config) rank.Judge {
	brands := make([]judge.Brand, len(cfg.Judge.Brands))
	for i, b := range cfg.Judge.Brands {
		brands[i] = judge.Brand{Name: b.Name, Description: b.Description}
	}

	client, err := judge.New(judge.Options{
		Provider:  cfg.Judge.Provider,
		Model:     cfg.Judge.Model,
		APIKey:    cfg.Judge.APIKey,
		BaseURL:   cfg.Judge.BaseURL,
		BatchSize: cfg.Judge.BatchSize,
		Brands:    brands,
	})
	if errors.Is(err, judge.ErrNoAPIKey) {
		logrus.Warn("judge: no api key configured, new comments will not be judged")
		return nil
	}
	if err != nil {
		logrus.Warnf("judge: %v", err)
		return nil
	}
	logrus.WithFields(logrus.Fields{
		"provider": cfg.Judge.Provider,
		"model":    cfg.Judge.Model,
	}).Info("judge enabled")
	return client
}

func buildEngine(cfg *config.Config, db store.Store, j rank.Judge) *rank.Engine {
	w := rank.Weights(cfg.Scoring.Weights)
	threshold := cfg.Scoring.RejectThreshold
	return rank.NewEngine(db, j, rank.EngineConfig{
		Weights:         &w,
		DaysLookback:    cfg.Scoring.DaysLookback,
		RejectThreshold: &threshold,
		Normalizer:      flavor.NewNormalizer(buildVocabulary(cfg)),
	})
}

func buildSources(cfg *config.Config) []source.Source {
	var sources []source.Source

	if rc := cfg.Sources.Reddit; rc.Enabled {
		sources = append(sources, source.NewReddit(source.RedditOptions{
			ClientID:        rc.ClientID,
			ClientSecret:    rc.ClientSecret,
			Subreddits:      rc.Subreddits,
			Queries:         rc.Queries,
			Limit:           rc.Limit,
			SinceDays:       rc.SinceDays,
			IncludeComments: rc.IncludeComments,
		}))
	}
	if cfg.Sources.RSS.Enabled {
		feeds := make([]source.RSSFeed, len(cfg.Sources.RSS.Feeds))
		for i, f := range cfg.Sources.RSS.Feeds {
			feeds[i] = source.RSSFeed{Name: f.Name, URL: f.URL}
		}
		sources = append(sources, source.NewRSS(feeds, cfg.Scoring.DaysLookback))
	}
	if ac := cfg.Sources.Amazon; ac.Enabled {
		sources = append(sources, source.NewAmazon(ac.APIKey, ac.ProductIDs, ac.MaxReviews))
	}

	return sources
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

// selectSources keeps only the named sources; no names keeps all.
func selectSources(all []source.Source, names []string) ([]source.Source, error) {
	if len(names) == 0 {
		return all, nil
	}
	wanted := make(map[string]bool)
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}
	var out []source.Source
	for _, s := range all {
		if wanted[string(s.Name())] {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no matching enabled sources for: %s", strings.Join(names, ", "))
	}
	return out, nil
}

func runCollect(ctx context.Context, names []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sources, err := selectSources(buildSources(cfg), names)
	if err != nil {
		return err
	}

	stats, err := buildEngine(cfg, db, nil).Collect(ctx, sources)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tRAW\tKEPT\tERROR")
	total := 0
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", s.Source, s.Raw, s.Kept, s.Error)
		total += s.Kept
	}
	fmt.Fprintf(w, "total\t\t%d\t\n", total)
	return w.Flush()
}

func runNormalize(in, out string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var raw []source.RawComment
	if err := store.LoadJSON(in, &raw); err != nil {
		return err
	}

	cleaned := flavor.NewNormalizer(buildVocabulary(cfg)).Normalize(raw)
	logrus.WithFields(logrus.Fields{"in": len(raw), "kept": len(cleaned)}).Info("normalized")

	if out == "" {
		return printJSON(cleaned)
	}
	if err := store.SaveJSON(out, cleaned); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FLAVOR\tHITS")
	for _, c := range flavor.Summarize(cleaned) {
		fmt.Fprintf(w, "%s\t%d\n", c.Flavor, c.Count)
	}
	return w.Flush()
}

func runScore(in, out string, threshold float64, days int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if threshold >= 0 {
		cfg.Scoring.RejectThreshold = threshold
	}
	if days > 0 {
		cfg.Scoring.DaysLookback = days
	}

	var judgments []judge.Judgment
	if err := store.LoadJSON(in, &judgments); err != nil {
		return err
	}

	report := buildEngine(cfg, nil, nil).Rank(judgments)
	if out != "" {
		if err := store.SaveJSON(out, report); err != nil {
			return err
		}
	}
	return printReport(report, 0)
}

func runAnalyze(ctx context.Context, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	report, err := buildEngine(cfg, db, buildJudge(cfg)).Analyze(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(report)
	}
	return printReport(report, 0)
}

func runRecommend(ctx context.Context, jsonOutput bool, limit int, threshold float64) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	report, err := buildEngine(cfg, db, nil).LatestReport(ctx, threshold)
	if rank.IsNoRun(err) {
		fmt.Println("no recommendations yet (try: flavorscout collect && flavorscout analyze)")
		return nil
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(report)
	}
	return printReport(report, limit)
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine := buildEngine(cfg, db, buildJudge(cfg))
	return server.New(db, engine, buildSources(cfg), port).ListenAndServe(ctx)
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine := buildEngine(cfg, db, buildJudge(cfg))
	sources := buildSources(cfg)

	sched, err := scheduler.New(db, sources, engine, buildAlertManager(cfg),
		cfg.Schedule.Cron, cfg.Scoring.AlertMinScore)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			logrus.Errorf("scheduler error: %v", err)
		}
	}()

	err = server.New(db, engine, sources, port).ListenAndServe(ctx)
	logrus.Info("shutting down")
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(r *rank.Report, limit int) error {
	if len(r.Ranked) == 0 {
		fmt.Println("no flavors ranked (no relevant judgments in the lookback window)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tFLAVOR\tSCORE\tFREQ\tSENT\tREC\tFIT\tMENTIONS\tBRAND")
	for i, sf := range r.Ranked {
		if limit > 0 && i == limit {
			break
		}
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%.1f\t%.1f\t%.1f\t%.1f\t%d\t%s\n",
			sf.Rank, sf.Flavor, sf.FinalScore, sf.FrequencyScore, sf.SentimentScore,
			sf.RecencyScore, sf.BrandFitScore, sf.MentionCount, sf.RecommendedBrand)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if g := r.GoldenCandidate; g != nil {
		fmt.Printf("\ngolden candidate: %s (%.2f, %s)\n", g.Flavor, g.FinalScore, g.RecommendedBrand)
		if r.Pitch != nil {
			fmt.Printf("  %s\n", r.Pitch.WhyThisWorks)
		}
	}
	if len(r.Rejected) > 0 {
		names := make([]string, len(r.Rejected))
		for i, sf := range r.Rejected {
			names[i] = fmt.Sprintf("%s (%.1f)", sf.Flavor, sf.FinalScore)
		}
		fmt.Printf("rejected below %.1f: %s\n", r.Threshold, strings.Join(names, ", "))
	}
	return nil
}
