package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/creatorboard/internal/metrics"
	"github.com/elonfeng/creatorboard/internal/store"
	"github.com/elonfeng/creatorboard/pkg/alert"
	"github.com/elonfeng/creatorboard/pkg/media"
	"github.com/elonfeng/creatorboard/pkg/score"
	"github.com/elonfeng/creatorboard/pkg/source"
)

// Options tunes the scheduler loop.
type Options struct {
	CollectInterval time.Duration
	ScoreInterval   time.Duration
	// TopN is the leaderboard head watched for new entrants.
	TopN int
}

// Scheduler runs periodic collection, scoring and leaderboard alerts.
type Scheduler struct {
	store      store.Store
	sources    []source.Source
	analyzer   *media.Analyzer
	engine     *score.Engine
	alertMgr   *alert.Manager
	collectInt time.Duration
	scoreInt   time.Duration
	topN       int
	log        *logrus.Logger
}

// New creates a new scheduler. analyzer and alertMgr may be nil.
func New(
	s store.Store,
	sources []source.Source,
	analyzer *media.Analyzer,
	engine *score.Engine,
	alertMgr *alert.Manager,
	opts Options,
	log *logrus.Logger,
) *Scheduler {
	if opts.CollectInterval == 0 {
		opts.CollectInterval = 30 * time.Minute
	}
	if opts.ScoreInterval == 0 {
		opts.ScoreInterval = 10 * time.Minute
	}
	if opts.TopN == 0 {
		opts.TopN = 10
	}
	if alertMgr == nil {
		alertMgr = alert.NewManager(nil)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		store:      s,
		sources:    sources,
		analyzer:   analyzer,
		engine:     engine,
		alertMgr:   alertMgr,
		collectInt: opts.CollectInterval,
		scoreInt:   opts.ScoreInterval,
		topN:       opts.TopN,
		log:        log,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	collectTicker := time.NewTicker(s.collectInt)
	scoreTicker := time.NewTicker(s.scoreInt)
	defer collectTicker.Stop()
	defer scoreTicker.Stop()

	// Run immediately on start.
	s.collectAndLog(ctx)
	s.scoreAndLog(ctx)

	s.log.WithFields(logrus.Fields{
		"collect_every": s.collectInt.String(),
		"score_every":   s.scoreInt.String(),
	}).Info("scheduler running")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-collectTicker.C:
			s.collectAndLog(ctx)
		case <-scoreTicker.C:
			s.scoreAndLog(ctx)
		}
	}
}

func (s *Scheduler) collectAndLog(ctx context.Context) {
	counts, err := s.Collect(ctx)
	if err != nil {
		s.log.WithError(err).Warn("collection finished with errors")
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	s.log.WithField("creators", total).Info("collection done")
}

func (s *Scheduler) scoreAndLog(ctx context.Context) {
	run, _, err := s.Score(ctx)
	if err != nil {
		s.log.WithError(err).Error("scoring failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"run_id":  run.ID,
		"entries": run.EntryCount,
	}).Info("leaderboard saved")
}

// Collect pulls every source, annotates media and stores the merged
// creators. A failing source is counted and skipped; partial results of a
// source that returned both creators and an error are kept.
func (s *Scheduler) Collect(ctx context.Context) (map[source.SourceType]int, error) {
	counts := make(map[source.SourceType]int, len(s.sources))
	var groups [][]source.Creator
	var errs []error

	for _, src := range s.sources {
		creators, err := src.Collect(ctx)
		if err != nil {
			metrics.IncCollectError(string(src.Name()))
			s.log.WithError(err).WithField("source", src.Name()).Warn("collect failed")
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		}
		if len(creators) == 0 {
			continue
		}
		counts[src.Name()] = len(creators)
		groups = append(groups, creators)
	}

	merged := source.MergeCreators(groups...)
	if s.analyzer != nil {
		s.analyzer.Annotate(ctx, merged)
	}
	if err := s.store.UpsertCreators(ctx, merged); err != nil {
		errs = append(errs, fmt.Errorf("store creators: %w", err))
	}

	return counts, errors.Join(errs...)
}

// Score rebuilds the leaderboard from every stored creator, saves it and
// alerts when the head of the board changed.
func (s *Scheduler) Score(ctx context.Context) (store.Run, *score.Leaderboard, error) {
	creators, err := s.store.ListCreators(ctx, store.ListOpts{})
	if err != nil {
		return store.Run{}, nil, err
	}

	start := time.Now()
	lb, err := s.engine.BuildLeaderboard(ctx, creators)
	if err != nil {
		return store.Run{}, nil, err
	}
	metrics.ObserveScoring(start, len(creators))

	_, prev, err := s.store.LatestLeaderboard(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.WithError(err).Warn("load previous leaderboard")
	}

	run, err := s.store.SaveLeaderboard(ctx, lb)
	if err != nil {
		return store.Run{}, nil, err
	}

	s.notify(ctx, run, prev, lb)
	return run, lb, nil
}

func (s *Scheduler) notify(ctx context.Context, run store.Run, prev, curr *score.Leaderboard) {
	if !s.alertMgr.HasNotifiers() {
		return
	}
	n := alert.Changes(prev, curr, s.topN)
	if n == nil {
		return
	}
	n.RunID = run.ID

	if err := s.alertMgr.Broadcast(ctx, n); err != nil {
		s.log.WithError(err).WithField("run_id", run.ID).Warn("alert failed")
		return
	}
	s.log.WithFields(logrus.Fields{"run_id": run.ID, "title": n.Title}).Info("alerted")
}
