package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/creatorboard/pkg/score"
	"github.com/elonfeng/creatorboard/pkg/source"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertCreatorsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	usd := 1500.0
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	in := []source.Creator{{
		ID:        "u1",
		Handle:    "@alpha",
		Followers: 1200,
		AvatarURL: "https://pbs/alpha.png",
		Source:    source.SourceX,
		Posts: []source.Post{
			{ID: "b", Text: "Minara thesis", Likes: 10, Views: 900, CreatedAt: created,
				Media: &source.MediaInsights{HasMedia: true, ImageCount: 1, PnLUSD: &usd, PnLBucket: source.PnLOver1000, PnLScore: 100, Tags: []string{"chart"}}},
			{ID: "a", Text: "RT @x: Minara", IsRetweet: true},
		},
	}}
	require.NoError(t, s.UpsertCreators(ctx, in))

	got, err := s.GetCreator(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "@alpha", got.Handle)
	assert.Equal(t, 1200, got.Followers)
	assert.Equal(t, source.SourceX, got.Source)
	require.Len(t, got.Posts, 2)

	assert.Equal(t, "b", got.Posts[0].ID, "posts keep supplied order")
	assert.Equal(t, "u1", got.Posts[0].AuthorID)
	assert.True(t, created.Equal(got.Posts[0].CreatedAt))
	require.NotNil(t, got.Posts[0].Media)
	assert.Equal(t, source.PnLOver1000, got.Posts[0].Media.PnLBucket)
	assert.Equal(t, 1500.0, *got.Posts[0].Media.PnLUSD)
	assert.Equal(t, []string{"chart"}, got.Posts[0].Media.Tags)

	assert.True(t, got.Posts[1].IsRetweet)
	assert.True(t, got.Posts[1].CreatedAt.IsZero())
	assert.Nil(t, got.Posts[1].Media)
}

func TestUpsertCreatorsKeepsPositionsAndKnownValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertCreators(ctx, []source.Creator{{
		ID: "u1", Handle: "@alpha", Followers: 500, AvatarURL: "https://pbs/a.png",
		Posts: []source.Post{{ID: "1", Likes: 1}, {ID: "2", Likes: 2}},
	}}))

	require.NoError(t, s.UpsertCreators(ctx, []source.Creator{{
		ID: "u1", Handle: "@alpha_new", Source: source.SourceNitter,
		Posts: []source.Post{{ID: "3"}, {ID: "1", Likes: 40}},
	}}))

	got, err := s.GetCreator(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "@alpha_new", got.Handle)
	assert.Equal(t, 500, got.Followers, "zero followers do not overwrite")
	assert.Equal(t, "https://pbs/a.png", got.AvatarURL)

	require.Len(t, got.Posts, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{got.Posts[0].ID, got.Posts[1].ID, got.Posts[2].ID})
	assert.Equal(t, 40, got.Posts[0].Likes)
}

func TestListCreators(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertCreators(ctx, source.DemoCreators()))
	require.NoError(t, s.UpsertCreators(ctx, []source.Creator{{ID: "f1", Handle: "@file", Source: source.SourceFile}}))

	all, err := s.ListCreators(ctx, ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, source.DemoCreators()[0].ID, all[0].ID)
	assert.NotEmpty(t, all[0].Posts)

	files, err := s.ListCreators(ctx, ListOpts{Source: source.SourceFile})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Empty(t, files[0].Posts)

	limited, err := s.ListCreators(ctx, ListOpts{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGetCreatorNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCreator(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLeaderboardRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.LatestLeaderboard(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	first := &score.Leaderboard{
		UpdatedAt:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		ConfigVersion: "v1",
		Entries: []score.CreatorScoreBreakdown{
			{CreatorID: "a", Handle: "@a", TotalScore: 50},
		},
	}
	second := &score.Leaderboard{
		UpdatedAt:     time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		ConfigVersion: "v2",
		Entries: []score.CreatorScoreBreakdown{
			{CreatorID: "b", Handle: "@b", TotalScore: 70, ContentScore: 65.5},
			{CreatorID: "a", Handle: "@a", TotalScore: 40},
		},
	}

	r1, err := s.SaveLeaderboard(ctx, first)
	require.NoError(t, err)
	r2, err := s.SaveLeaderboard(ctx, second)
	require.NoError(t, err)
	assert.NotEqual(t, r1.ID, r2.ID)
	assert.Equal(t, 2, r2.EntryCount)

	run, lb, err := s.LatestLeaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, r2.ID, run.ID)
	assert.Equal(t, "v2", lb.ConfigVersion)
	require.Len(t, lb.Entries, 2)
	assert.Equal(t, "b", lb.Entries[0].CreatorID)
	assert.Equal(t, 65.5, lb.Entries[0].ContentScore)
	assert.True(t, second.UpdatedAt.Equal(lb.UpdatedAt))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, r2.ID, runs[0].ID)
	assert.Equal(t, r1.ID, runs[1].ID)
}
