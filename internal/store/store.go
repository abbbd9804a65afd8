package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/creatorboard/pkg/score"
	"github.com/elonfeng/creatorboard/pkg/source"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Run describes one persisted leaderboard.
type Run struct {
	ID            string    `db:"id" json:"id"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	ConfigVersion string    `db:"config_version" json:"keywordConfigVersion"`
	EntryCount    int       `db:"entry_count" json:"entryCount"`
}

// ListOpts controls creator listing.
type ListOpts struct {
	Source source.SourceType
	Limit  int
}

// Store is the persistence interface.
type Store interface {
	UpsertCreators(ctx context.Context, creators []source.Creator) error
	ListCreators(ctx context.Context, opts ListOpts) ([]source.Creator, error)
	GetCreator(ctx context.Context, id string) (*source.Creator, error)

	SaveLeaderboard(ctx context.Context, lb *score.Leaderboard) (Run, error)
	LatestLeaderboard(ctx context.Context) (Run, *score.Leaderboard, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations. ":memory:" opens a
// private in-memory database.
func New(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = path
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own database
		db.SetMaxOpenConns(1)
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

type creatorRow struct {
	ID        string    `db:"id"`
	Handle    string    `db:"handle"`
	Followers int       `db:"followers"`
	AvatarURL string    `db:"avatar_url"`
	Source    string    `db:"source"`
	UpdatedAt time.Time `db:"updated_at"`
}

type postRow struct {
	CreatorID string `db:"creator_id"`
	ID        string `db:"id"`
	Position  int    `db:"position"`
	Text      string `db:"text"`
	IsRetweet bool   `db:"is_retweet"`
	Likes     int    `db:"likes"`
	Replies   int    `db:"replies"`
	Retweets  int    `db:"retweets"`
	Quotes    int    `db:"quotes"`
	Views     int    `db:"views"`
	CreatedAt string `db:"created_at"`
	Media     string `db:"media"`
}

func (r postRow) post() (source.Post, error) {
	p := source.Post{
		ID:        r.ID,
		AuthorID:  r.CreatorID,
		Text:      r.Text,
		IsRetweet: r.IsRetweet,
		Likes:     r.Likes,
		Replies:   r.Replies,
		Retweets:  r.Retweets,
		Quotes:    r.Quotes,
		Views:     r.Views,
	}
	if r.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
		if err != nil {
			return p, fmt.Errorf("post %s created_at: %w", r.ID, err)
		}
		p.CreatedAt = t
	}
	if r.Media != "" {
		var m source.MediaInsights
		if err := json.Unmarshal([]byte(r.Media), &m); err != nil {
			return p, fmt.Errorf("post %s media: %w", r.ID, err)
		}
		p.Media = &m
	}
	return p, nil
}

// UpsertCreators stores creators and their posts. Known posts keep their
// position and get fresh counts; new posts are appended after the
// creator's existing ones. Positions may have gaps. A zero follower count
// or empty avatar never overwrites a known value.
func (s *SQLiteStore) UpsertCreators(ctx context.Context, creators []source.Creator) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, c := range creators {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO creators (id, handle, followers, avatar_url, source, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				handle = excluded.handle,
				followers = CASE WHEN excluded.followers > 0 THEN excluded.followers ELSE creators.followers END,
				avatar_url = CASE WHEN excluded.avatar_url != '' THEN excluded.avatar_url ELSE creators.avatar_url END,
				source = excluded.source,
				updated_at = excluded.updated_at
		`, c.ID, c.Handle, c.Followers, c.AvatarURL, string(c.Source), now)
		if err != nil {
			return fmt.Errorf("upsert creator %s: %w", c.ID, err)
		}

		var next int
		if err := tx.GetContext(ctx, &next, "SELECT COALESCE(MAX(position) + 1, 0) FROM posts WHERE creator_id = ?", c.ID); err != nil {
			return fmt.Errorf("next position %s: %w", c.ID, err)
		}

		for _, p := range c.Posts {
			var media string
			if p.Media != nil {
				b, err := json.Marshal(p.Media)
				if err != nil {
					return fmt.Errorf("marshal media %s: %w", p.ID, err)
				}
				media = string(b)
			}
			var created string
			if !p.CreatedAt.IsZero() {
				created = p.CreatedAt.UTC().Format(time.RFC3339Nano)
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO posts (creator_id, id, position, text, is_retweet, likes, replies, retweets, quotes, views, created_at, media)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(creator_id, id) DO UPDATE SET
					text = excluded.text,
					is_retweet = excluded.is_retweet,
					likes = excluded.likes,
					replies = excluded.replies,
					retweets = excluded.retweets,
					quotes = excluded.quotes,
					views = excluded.views,
					created_at = CASE WHEN excluded.created_at != '' THEN excluded.created_at ELSE posts.created_at END,
					media = CASE WHEN excluded.media != '' THEN excluded.media ELSE posts.media END
			`, c.ID, p.ID, next, p.Text, p.IsRetweet, p.Likes, p.Replies, p.Retweets, p.Quotes, p.Views, created, media)
			if err != nil {
				return fmt.Errorf("upsert post %s/%s: %w", c.ID, p.ID, err)
			}
			next++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListCreators(ctx context.Context, opts ListOpts) ([]source.Creator, error) {
	query := "SELECT * FROM creators WHERE 1=1"
	var args []any

	if opts.Source != "" {
		query += " AND source = ?"
		args = append(args, string(opts.Source))
	}

	query += " ORDER BY rowid"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var rows []creatorRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list creators: %w", err)
	}

	creators := make([]source.Creator, 0, len(rows))
	for _, r := range rows {
		c, err := s.loadPosts(ctx, r)
		if err != nil {
			return nil, err
		}
		creators = append(creators, c)
	}
	return creators, nil
}

func (s *SQLiteStore) GetCreator(ctx context.Context, id string) (*source.Creator, error) {
	var r creatorRow
	err := s.db.GetContext(ctx, &r, "SELECT * FROM creators WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("creator %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get creator %s: %w", id, err)
	}
	c, err := s.loadPosts(ctx, r)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) loadPosts(ctx context.Context, r creatorRow) (source.Creator, error) {
	c := source.Creator{
		ID:        r.ID,
		Handle:    r.Handle,
		Followers: r.Followers,
		AvatarURL: r.AvatarURL,
		Source:    source.SourceType(r.Source),
		Posts:     []source.Post{},
	}

	var rows []postRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM posts WHERE creator_id = ? ORDER BY position", r.ID); err != nil {
		return c, fmt.Errorf("list posts %s: %w", r.ID, err)
	}
	for _, pr := range rows {
		p, err := pr.post()
		if err != nil {
			return c, err
		}
		c.Posts = append(c.Posts, p)
	}
	return c, nil
}

// SaveLeaderboard persists a scored leaderboard under a new run id.
func (s *SQLiteStore) SaveLeaderboard(ctx context.Context, lb *score.Leaderboard) (Run, error) {
	run := Run{
		ID:            uuid.NewString(),
		CreatedAt:     lb.UpdatedAt.UTC(),
		ConfigVersion: lb.ConfigVersion,
		EntryCount:    len(lb.Entries),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("begin save leaderboard: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO leaderboard_runs (id, created_at, config_version, entry_count)
		VALUES (:id, :created_at, :config_version, :entry_count)
	`, run)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	for i, e := range lb.Entries {
		breakdown, err := json.Marshal(e)
		if err != nil {
			return Run{}, fmt.Errorf("marshal entry %s: %w", e.CreatorID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO leaderboard_entries (run_id, rank, creator_id, handle, total_score, breakdown)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, i+1, e.CreatorID, e.Handle, e.TotalScore, string(breakdown))
		if err != nil {
			return Run{}, fmt.Errorf("insert entry %s: %w", e.CreatorID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("commit leaderboard: %w", err)
	}
	return run, nil
}

// LatestLeaderboard returns the most recent run and its entries in rank
// order. It returns ErrNotFound when nothing was saved yet.
func (s *SQLiteStore) LatestLeaderboard(ctx context.Context) (Run, *score.Leaderboard, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, "SELECT * FROM leaderboard_runs ORDER BY created_at DESC, rowid DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, nil, fmt.Errorf("latest leaderboard: %w", ErrNotFound)
	}
	if err != nil {
		return Run{}, nil, fmt.Errorf("latest leaderboard: %w", err)
	}

	var raw []string
	if err := s.db.SelectContext(ctx, &raw, "SELECT breakdown FROM leaderboard_entries WHERE run_id = ? ORDER BY rank", run.ID); err != nil {
		return Run{}, nil, fmt.Errorf("list entries %s: %w", run.ID, err)
	}

	lb := &score.Leaderboard{
		UpdatedAt:     run.CreatedAt,
		ConfigVersion: run.ConfigVersion,
		Entries:       make([]score.CreatorScoreBreakdown, 0, len(raw)),
	}
	for _, b := range raw {
		var e score.CreatorScoreBreakdown
		if err := json.Unmarshal([]byte(b), &e); err != nil {
			return Run{}, nil, fmt.Errorf("decode entry in run %s: %w", run.ID, err)
		}
		lb.Entries = append(lb.Entries, e)
	}
	return run, lb, nil
}

// ListRuns returns the newest runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	if err := s.db.SelectContext(ctx, &runs, "SELECT * FROM leaderboard_runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
