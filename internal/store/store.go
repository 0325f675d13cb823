package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elonfeng/flavorscout/pkg/flavor"
	"github.com/elonfeng/flavorscout/pkg/judge"
	"github.com/elonfeng/flavorscout/pkg/source"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Run records one analysis pass.
type Run struct {
	ID            string       `db:"id" json:"id"`
	StartedAt     time.Time    `db:"started_at" json:"started_at"`
	FinishedAt    time.Time    `db:"finished_at" json:"finished_at"`
	CommentCount  int          `db:"comment_count" json:"comment_count"`
	JudgmentCount int          `db:"judgment_count" json:"judgment_count"`
	FailedBatches int          `db:"failed_batches" json:"failed_batches"`
	FlavorCount   int          `db:"flavor_count" json:"flavor_count"`
	GoldenFlavor  string       `db:"golden_flavor" json:"golden_flavor"`
	GoldenScore   float64      `db:"golden_score" json:"golden_score"`
	Threshold     float64      `db:"threshold" json:"threshold"`
	DaysLookback  int          `db:"days_lookback" json:"days_lookback"`
	PitchJSON     string       `db:"pitch" json:"-"`
	Pitch         *judge.Pitch `db:"-" json:"pitch,omitempty"`
	Alerted       bool         `db:"alerted" json:"alerted"`
}

// Recommendation is one ranked flavor persisted under a run.
type Recommendation struct {
	RunID             string         `db:"run_id" json:"run_id"`
	Rank              int            `db:"rank" json:"rank"`
	Flavor            string         `db:"flavor" json:"flavor"`
	FinalScore        float64        `db:"final_score" json:"final_score"`
	FrequencyScore    float64        `db:"frequency_score" json:"frequency_score"`
	SentimentScore    float64        `db:"sentiment_score" json:"sentiment_score"`
	RecencyScore      float64        `db:"recency_score" json:"recency_score"`
	BrandFitScore     float64        `db:"brand_fit_score" json:"brand_fit_score"`
	MentionCount      int            `db:"mention_count" json:"mention_count"`
	PositiveCount     int            `db:"positive_count" json:"positive_count"`
	NegativeCount     int            `db:"negative_count" json:"negative_count"`
	NeutralCount      int            `db:"neutral_count" json:"neutral_count"`
	RecommendedBrand  string         `db:"recommended_brand" json:"recommended_brand"`
	BreakdownJSON     string         `db:"brand_fit_breakdown" json:"-"`
	BrandFitBreakdown map[string]int `db:"-" json:"brand_fit_breakdown"`
	SamplesJSON       string         `db:"sample_comments" json:"-"`
	SampleComments    []string       `db:"-" json:"sample_comments"`
}

// ListOpts controls comment listing.
type ListOpts struct {
	Source source.SourceType
	Since  time.Time
	Limit  int
}

// JudgmentListOpts controls judgment listing.
type JudgmentListOpts struct {
	Since time.Time
	Limit int
}

// Store is the persistence interface.
type Store interface {
	UpsertComments(ctx context.Context, comments []flavor.CleanedComment) error
	ListComments(ctx context.Context, opts ListOpts) ([]flavor.CleanedComment, error)
	ListUnjudged(ctx context.Context, opts ListOpts) ([]flavor.CleanedComment, error)
	CountCommentsBySource(ctx context.Context) (map[source.SourceType]int, error)

	SaveJudgments(ctx context.Context, judgments []judge.Judgment) error
	ListJudgments(ctx context.Context, opts JudgmentListOpts) ([]judge.Judgment, error)

	SaveRun(ctx context.Context, run *Run, recs []Recommendation) error
	LatestRun(ctx context.Context) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListRecommendations(ctx context.Context, runID string) ([]Recommendation, error)
	MarkAlerted(ctx context.Context, runID string) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const commentColumns = "c.id, c.type, c.source, c.subreddit, c.title, c.body, c.score, c.created_utc, c.created_at, c.url, c.flavors"

type commentRow struct {
	source.RawComment
	FlavorsJSON string `db:"flavors"`
}

func (r commentRow) cleaned() flavor.CleanedComment {
	c := flavor.CleanedComment{RawComment: r.RawComment}
	json.Unmarshal([]byte(r.FlavorsJSON), &c.Flavors)
	if c.Flavors == nil {
		c.Flavors = []string{}
	}
	return c
}

// UpsertComments inserts new comments and refreshes the score and flavors of
// known ones. The first collection time is kept.
func (s *SQLiteStore) UpsertComments(ctx context.Context, comments []flavor.CleanedComment) error {
	now := time.Now().UTC()
	for _, c := range comments {
		flavorsJSON, _ := json.Marshal(c.Flavors)
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO comments (id, type, source, subreddit, title, body, score, created_utc, created_at, url, flavors, collected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				score = excluded.score,
				flavors = excluded.flavors
		`, c.ID, c.Type, c.Source, c.Subreddit, c.Title, c.Body, c.Score,
			c.CreatedUTC, c.CreatedAt, c.URL, string(flavorsJSON), now)
		if err != nil {
			return fmt.Errorf("upsert comment %s: %w", c.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListComments(ctx context.Context, opts ListOpts) ([]flavor.CleanedComment, error) {
	query := "SELECT " + commentColumns + " FROM comments c WHERE 1=1"
	query, args := commentFilter(query, opts, 100)
	return s.selectComments(ctx, query, args...)
}

// ListUnjudged returns comments that have no stored judgment, oldest first.
func (s *SQLiteStore) ListUnjudged(ctx context.Context, opts ListOpts) ([]flavor.CleanedComment, error) {
	query := "SELECT " + commentColumns + ` FROM comments c
		LEFT JOIN judgments j ON j.comment_id = c.id
		WHERE j.comment_id IS NULL`
	query, args := commentFilter(query, opts, 1000)
	return s.selectComments(ctx, query, args...)
}

func commentFilter(query string, opts ListOpts, defaultLimit int) (string, []any) {
	var args []any
	if opts.Source != "" {
		query += " AND c.source = ?"
		args = append(args, opts.Source)
	}
	if !opts.Since.IsZero() {
		query += " AND c.collected_at >= ?"
		args = append(args, opts.Since.UTC())
	}

	query += " ORDER BY c.collected_at, c.rowid"

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	query += " LIMIT ?"
	args = append(args, limit)
	return query, args
}

func (s *SQLiteStore) selectComments(ctx context.Context, query string, args ...any) ([]flavor.CleanedComment, error) {
	var rows []commentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	out := make([]flavor.CleanedComment, len(rows))
	for i, r := range rows {
		out[i] = r.cleaned()
	}
	return out, nil
}

func (s *SQLiteStore) CountCommentsBySource(ctx context.Context) (map[source.SourceType]int, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT source, COUNT(*) as cnt FROM comments GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("count comments by source: %w", err)
	}
	defer rows.Close()

	counts := make(map[source.SourceType]int)
	for rows.Next() {
		var src string
		var cnt int
		if err := rows.Scan(&src, &cnt); err != nil {
			return nil, err
		}
		counts[source.SourceType(src)] = cnt
	}
	return counts, rows.Err()
}

// SaveJudgments stores judgments keyed by comment id; a re-judged comment
// replaces its previous judgment.
func (s *SQLiteStore) SaveJudgments(ctx context.Context, judgments []judge.Judgment) error {
	now := time.Now().UTC()
	for _, j := range judgments {
		flavorsJSON, _ := json.Marshal(j.FlavorsMentioned)
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO judgments (comment_id, comment_text, flavors_mentioned, is_relevant, sentiment, brand_fit, reasoning, created_at, created_utc, subreddit, score, judged_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(comment_id) DO UPDATE SET
				comment_text = excluded.comment_text,
				flavors_mentioned = excluded.flavors_mentioned,
				is_relevant = excluded.is_relevant,
				sentiment = excluded.sentiment,
				brand_fit = excluded.brand_fit,
				reasoning = excluded.reasoning,
				judged_at = excluded.judged_at
		`, j.CommentID, j.CommentText, string(flavorsJSON), j.IsRelevant, j.Sentiment, j.BrandFit,
			j.Reasoning, j.CreatedAt, j.CreatedUTC, j.Subreddit, j.Score, now)
		if err != nil {
			return fmt.Errorf("save judgment %s: %w", j.CommentID, err)
		}
	}
	return nil
}

// ListJudgments returns judgments in the order they were first stored.
func (s *SQLiteStore) ListJudgments(ctx context.Context, opts JudgmentListOpts) ([]judge.Judgment, error) {
	query := `SELECT comment_id, comment_text, flavors_mentioned, is_relevant, sentiment, brand_fit,
		reasoning, created_at, created_utc, subreddit, score FROM judgments WHERE 1=1`
	var args []any

	if !opts.Since.IsZero() {
		query += " AND judged_at >= ?"
		args = append(args, opts.Since.UTC())
	}
	query += " ORDER BY rowid"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var judgments []judge.Judgment
	if err := s.db.SelectContext(ctx, &judgments, query, args...); err != nil {
		return nil, fmt.Errorf("list judgments: %w", err)
	}
	for i := range judgments {
		json.Unmarshal([]byte(judgments[i].FlavorsJSON), &judgments[i].FlavorsMentioned)
		if judgments[i].FlavorsMentioned == nil {
			judgments[i].FlavorsMentioned = []string{}
		}
	}
	return judgments, nil
}

// SaveRun writes a run and its recommendations in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, recs []Recommendation) error {
	if run.Pitch != nil {
		data, _ := json.Marshal(run.Pitch)
		run.PitchJSON = string(data)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", run.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, comment_count, judgment_count, failed_batches, flavor_count, golden_flavor, golden_score, threshold, days_lookback, pitch, alerted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.CommentCount, run.JudgmentCount,
		run.FailedBatches, run.FlavorCount, run.GoldenFlavor, run.GoldenScore, run.Threshold,
		run.DaysLookback, run.PitchJSON, run.Alerted)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for i := range recs {
		r := &recs[i]
		r.RunID = run.ID
		if r.BrandFitBreakdown == nil {
			r.BrandFitBreakdown = map[string]int{}
		}
		if r.SampleComments == nil {
			r.SampleComments = []string{}
		}
		breakdownJSON, _ := json.Marshal(r.BrandFitBreakdown)
		samplesJSON, _ := json.Marshal(r.SampleComments)
		r.BreakdownJSON, r.SamplesJSON = string(breakdownJSON), string(samplesJSON)

		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO recommendations (run_id, rank, flavor, final_score, frequency_score, sentiment_score, recency_score, brand_fit_score, mention_count, positive_count, negative_count, neutral_count, recommended_brand, brand_fit_breakdown, sample_comments)
			VALUES (:run_id, :rank, :flavor, :final_score, :frequency_score, :sentiment_score, :recency_score, :brand_fit_score, :mention_count, :positive_count, :negative_count, :neutral_count, :recommended_brand, :brand_fit_breakdown, :sample_comments)
		`, r)
		if err != nil {
			return fmt.Errorf("insert recommendation %s/%s: %w", run.ID, r.Flavor, err)
		}
	}

	return tx.Commit()
}

// LatestRun returns the most recently finished run, or ErrNotFound.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, "SELECT * FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	decodeRun(&run)
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	if err := s.db.SelectContext(ctx, &runs,
		"SELECT * FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	for i := range runs {
		decodeRun(&runs[i])
	}
	return runs, nil
}

func decodeRun(run *Run) {
	if run.PitchJSON == "" {
		return
	}
	var p judge.Pitch
	if json.Unmarshal([]byte(run.PitchJSON), &p) == nil {
		run.Pitch = &p
	}
}

// ListRecommendations returns a run's recommendations by rank.
func (s *SQLiteStore) ListRecommendations(ctx context.Context, runID string) ([]Recommendation, error) {
	var recs []Recommendation
	if err := s.db.SelectContext(ctx, &recs,
		"SELECT * FROM recommendations WHERE run_id = ? ORDER BY rank", runID); err != nil {
		return nil, fmt.Errorf("list recommendations %s: %w", runID, err)
	}
	for i := range recs {
		recs[i].BrandFitBreakdown = map[string]int{}
		recs[i].SampleComments = []string{}
		json.Unmarshal([]byte(recs[i].BreakdownJSON), &recs[i].BrandFitBreakdown)
		json.Unmarshal([]byte(recs[i].SamplesJSON), &recs[i].SampleComments)
	}
	return recs, nil
}

func (s *SQLiteStore) MarkAlerted(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE runs SET alerted = 1 WHERE id = ?", runID)
	if err != nil {
		return fmt.Errorf("mark alerted %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
