package store

const schema = `
CREATE TABLE IF NOT EXISTS creators (
    id          TEXT PRIMARY KEY,
    handle      TEXT NOT NULL,
    followers   INTEGER NOT NULL DEFAULT 0,
    avatar_url  TEXT NOT NULL DEFAULT '',
    source      TEXT NOT NULL DEFAULT '',
    updated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_creators_source ON creators(source);

CREATE TABLE IF NOT EXISTS posts (
    creator_id  TEXT NOT NULL REFERENCES creators(id),
    id          TEXT NOT NULL,
    position    INTEGER NOT NULL,
    text        TEXT NOT NULL DEFAULT '',
    is_retweet  BOOLEAN NOT NULL DEFAULT 0,
    likes       INTEGER NOT NULL DEFAULT 0,
    replies     INTEGER NOT NULL DEFAULT 0,
    retweets    INTEGER NOT NULL DEFAULT 0,
    quotes      INTEGER NOT NULL DEFAULT 0,
    views       INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL DEFAULT '',
    media       TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (creator_id, id)
);

CREATE INDEX IF NOT EXISTS idx_posts_creator_position ON posts(creator_id, position);

CREATE TABLE IF NOT EXISTS leaderboard_runs (
    id              TEXT PRIMARY KEY,
    created_at      DATETIME NOT NULL,
    config_version  TEXT NOT NULL,
    entry_count     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON leaderboard_runs(created_at);

CREATE TABLE IF NOT EXISTS leaderboard_entries (
    run_id       TEXT NOT NULL REFERENCES leaderboard_runs(id),
    rank         INTEGER NOT NULL,
    creator_id   TEXT NOT NULL,
    handle       TEXT NOT NULL,
    total_score  REAL NOT NULL,
    breakdown    TEXT NOT NULL,
    PRIMARY KEY (run_id, rank)
);
`
