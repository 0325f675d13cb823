package store

const schema = `
CREATE TABLE IF NOT EXISTS comments (
    id           TEXT PRIMARY KEY,
    type         TEXT NOT NULL DEFAULT '',
    source       TEXT NOT NULL DEFAULT '',
    subreddit    TEXT NOT NULL DEFAULT '',
    title        TEXT NOT NULL DEFAULT '',
    body         TEXT NOT NULL,
    score        INTEGER NOT NULL DEFAULT 0,
    created_utc  REAL NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL DEFAULT '',
    url          TEXT NOT NULL DEFAULT '',
    flavors      TEXT NOT NULL DEFAULT '[]',
    collected_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_comments_source ON comments(source);
CREATE INDEX IF NOT EXISTS idx_comments_collected_at ON comments(collected_at);

CREATE TABLE IF NOT EXISTS judgments (
    comment_id        TEXT PRIMARY KEY,
    comment_text      TEXT NOT NULL DEFAULT '',
    flavors_mentioned TEXT NOT NULL DEFAULT '[]',
    is_relevant       BOOLEAN NOT NULL DEFAULT 0,
    sentiment         TEXT NOT NULL DEFAULT 'neutral',
    brand_fit         TEXT NOT NULL DEFAULT 'none',
    reasoning         TEXT NOT NULL DEFAULT '',
    created_at        TEXT NOT NULL DEFAULT '',
    created_utc       REAL NOT NULL DEFAULT 0,
    subreddit         TEXT NOT NULL DEFAULT '',
    score             INTEGER NOT NULL DEFAULT 0,
    judged_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_judgments_judged_at ON judgments(judged_at);

CREATE TABLE IF NOT EXISTS runs (
    id             TEXT PRIMARY KEY,
    started_at     DATETIME NOT NULL,
    finished_at    DATETIME NOT NULL,
    comment_count  INTEGER NOT NULL DEFAULT 0,
    judgment_count INTEGER NOT NULL DEFAULT 0,
    failed_batches INTEGER NOT NULL DEFAULT 0,
    flavor_count   INTEGER NOT NULL DEFAULT 0,
    golden_flavor  TEXT NOT NULL DEFAULT '',
    golden_score   REAL NOT NULL DEFAULT 0,
    threshold      REAL NOT NULL DEFAULT 0,
    days_lookback  INTEGER NOT NULL DEFAULT 0,
    pitch          TEXT NOT NULL DEFAULT '',
    alerted        BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);

CREATE TABLE IF NOT EXISTS recommendations (
    run_id              TEXT NOT NULL REFERENCES runs(id),
    rank                INTEGER NOT NULL,
    flavor              TEXT NOT NULL,
    final_score         REAL NOT NULL DEFAULT 0,
    frequency_score     REAL NOT NULL DEFAULT 0,
    sentiment_score     REAL NOT NULL DEFAULT 0,
    recency_score       REAL NOT NULL DEFAULT 0,
    brand_fit_score     REAL NOT NULL DEFAULT 0,
    mention_count       INTEGER NOT NULL DEFAULT 0,
    positive_count      INTEGER NOT NULL DEFAULT 0,
    negative_count      INTEGER NOT NULL DEFAULT 0,
    neutral_count       INTEGER NOT NULL DEFAULT 0,
    recommended_brand   TEXT NOT NULL DEFAULT 'none',
    brand_fit_breakdown TEXT NOT NULL DEFAULT '{}',
    sample_comments     TEXT NOT NULL DEFAULT '[]',
    PRIMARY KEY (run_id, rank)
);
`
