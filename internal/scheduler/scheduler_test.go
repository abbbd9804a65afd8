package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/creatorboard/internal/logging"
	"github.com/elonfeng/creatorboard/internal/store"
	"github.com/elonfeng/creatorboard/pkg/alert"
	"github.com/elonfeng/creatorboard/pkg/media"
	"github.com/elonfeng/creatorboard/pkg/score"
	"github.com/elonfeng/creatorboard/pkg/source"
)

type failingSource struct{}

func (failingSource) Name() source.SourceType { return source.SourceX }

func (failingSource) Collect(context.Context) ([]source.Creator, error) {
	return nil, errors.New("rate limited")
}

type recorder struct {
	mu   sync.Mutex
	sent []*alert.Notification
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Send(_ context.Context, n *alert.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func newTestScheduler(t *testing.T, sources ...source.Source) (*Scheduler, *store.SQLiteStore, *recorder) {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	engine, err := score.New(score.DefaultConfig())
	require.NoError(t, err)

	rec := &recorder{}
	log := logging.Discard()
	s := New(st, sources, media.NewAnalyzer(nil, 0, 0, log), engine,
		alert.NewManager([]alert.Notifier{rec}), Options{TopN: 5}, log)
	return s, st, rec
}

func TestCollectStoresAndReportsErrors(t *testing.T) {
	s, st, _ := newTestScheduler(t, source.Demo{}, failingSource{})

	counts, err := s.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x: rate limited")
	assert.Equal(t, 2, counts[source.SourceDemo])

	creators, err := st.ListCreators(context.Background(), store.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, creators, 2)
}

func TestScoreSavesRunsAndAlertsOnChange(t *testing.T) {
	s, st, rec := newTestScheduler(t, source.Demo{})
	ctx := context.Background()

	_, err := s.Collect(ctx)
	require.NoError(t, err)

	run, lb, err := s.Score(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, run.EntryCount)
	assert.Equal(t, "@alpha_minara", lb.Entries[0].Handle)

	require.Len(t, rec.sent, 1)
	assert.Equal(t, "New leader: @alpha_minara", rec.sent[0].Title)
	assert.Equal(t, run.ID, rec.sent[0].RunID)

	_, _, err = s.Score(ctx)
	require.NoError(t, err)
	assert.Len(t, rec.sent, 1, "unchanged board does not alert")

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _, _ := newTestScheduler(t, source.Demo{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
