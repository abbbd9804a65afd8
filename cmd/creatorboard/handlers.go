package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/creatorboard/internal/config"
	"github.com/elonfeng/creatorboard/internal/logging"
	"github.com/elonfeng/creatorboard/internal/metrics"
	"github.com/elonfeng/creatorboard/internal/scheduler"
	"github.com/elonfeng/creatorboard/internal/store"
	"github.com/elonfeng/creatorboard/pkg/alert"
	"github.com/elonfeng/creatorboard/pkg/media"
	"github.com/elonfeng/creatorboard/pkg/score"
	"github.com/elonfeng/creatorboard/pkg/server"
	"github.com/elonfeng/creatorboard/pkg/source"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// app bundles everything the commands share.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	engine   *score.Engine
	analyzer *media.Analyzer
	x        *source.XAPI
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.Log.Level)

	engine, err := score.New(cfg.Scoring)
	if err != nil {
		return nil, fmt.Errorf("scoring config: %w", err)
	}

	return &app{
		cfg:      cfg,
		log:      log,
		engine:   engine,
		analyzer: buildAnalyzer(cfg, log),
		x:        buildXAPI(cfg, log),
	}, nil
}

func buildAnalyzer(cfg *config.Config, log *logrus.Logger) *media.Analyzer {
	o := cfg.Media.OCR
	var ocr media.OCR
	if o.Enabled && o.URL != "" {
		ocr = media.NewCachedOCR(media.NewHTTPOCR(o.URL, o.Lang), o.ParseTimeout())
		log.WithFields(logrus.Fields{"url": o.URL, "lang": o.Lang}).Info("image OCR enabled")
	}
	return media.NewAnalyzer(ocr, o.MaxImagesPerPost, o.BudgetPerRequest, log)
}

// buildXAPI returns nil when no bearer token is configured.
func buildXAPI(cfg *config.Config, log *logrus.Logger) *source.XAPI {
	x := cfg.Sources.X
	if x.BearerToken == "" {
		return nil
	}
	return source.NewXAPI(source.XConfig{
		BaseURL:     x.BaseURL,
		BearerToken: x.BearerToken,
		Accounts:    x.Accounts,
		MaxResults:  x.MaxResults,
		RPS:         x.RPS,
		Burst:       x.Burst,
		MaxAttempts: x.MaxAttempts,
		BaseBackoff: x.ParseBaseBackoff(),
	}, log)
}

func (a *app) sources() []source.Source {
	var sources []source.Source
	s := a.cfg.Sources

	if s.X.Enabled && a.x != nil && len(s.X.Accounts) > 0 {
		sources = append(sources, a.x)
	}
	if s.Nitter.Enabled && len(s.Nitter.Accounts) > 0 {
		sources = append(sources, source.NewNitter(s.Nitter.NitterURL, s.Nitter.Accounts, s.Nitter.ParseMaxAge(), a.log))
	}
	if s.File.Enabled && s.File.Path != "" {
		sources = append(sources, source.NewFile(s.File.Path))
	}
	if s.Demo.Enabled {
		sources = append(sources, source.Demo{})
	}

	return sources
}

func (a *app) alertManager() *alert.Manager {
	var notifiers []alert.Notifier
	al := a.cfg.Alerts

	if al.Slack.Enabled && al.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(al.Slack.WebhookURL))
	}
	if al.Discord.Enabled && al.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(al.Discord.WebhookURL))
	}
	if al.Webhook.Enabled && al.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(al.Webhook.URL, al.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func (a *app) scheduler(db store.Store, sources []source.Source) *scheduler.Scheduler {
	return scheduler.New(db, sources, a.analyzer, a.engine, a.alertManager(), scheduler.Options{
		CollectInterval: a.cfg.Schedule.ParseCollectInterval(),
		ScoreInterval:   a.cfg.Schedule.ParseScoreInterval(),
		TopN:            a.cfg.Alerts.TopN,
	}, a.log)
}

func (a *app) serverDeps(db store.Store, collector server.Collector) server.Deps {
	deps := server.Deps{
		Store:     db,
		Engine:    a.engine,
		Analyzer:  a.analyzer,
		Collector: collector,
		Log:       a.log,
	}
	if a.x != nil {
		deps.Lookup = a.x
	}
	return deps
}

func runScore(ctx context.Context, input string, jsonOutput, details bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	var creators []source.Creator
	if input != "" {
		creators, err = source.NewFile(input).Collect(ctx)
	} else {
		creators, err = source.Demo{}.Collect(ctx)
	}
	if err != nil {
		return err
	}
	a.analyzer.Annotate(ctx, creators)

	lb, err := a.engine.BuildLeaderboard(ctx, creators)
	if err != nil {
		return err
	}

	if jsonOutput {
		out := map[string]any{"leaderboard": lb}
		if details {
			out["creatorTweetDetails"] = explainAll(a.engine, creators)
		}
		return writeJSON(os.Stdout, out)
	}

	if err := printLeaderboard(os.Stdout, lb, 0); err != nil {
		return err
	}
	if details {
		return printDetails(os.Stdout, a.engine, creators)
	}
	return nil
}

func runLeaderboard(ctx context.Context, jsonOutput bool, limit int) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	db, err := store.New(a.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	run, lb, err := db.LatestLeaderboard(ctx)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Println("no leaderboard yet (try: creatorboard collect --score)")
		return nil
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(os.Stdout, map[string]any{"run": run, "data": lb})
	}

	fmt.Printf("run %s at %s (config %s)\n\n", run.ID, run.CreatedAt.Format(time.RFC3339), run.ConfigVersion)
	return printLeaderboard(os.Stdout, lb, limit)
}

func runCollect(ctx context.Context, filterSources []string, rescore bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	db, err := store.New(a.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sources, err := selectSources(a.sources(), filterSources)
	if err != nil {
		return err
	}

	sched := a.scheduler(db, sources)
	counts, err := sched.Collect(ctx)
	if err != nil {
		a.log.WithError(err).Warn("collection finished with errors")
	}

	total := 0
	for _, src := range sources {
		n := counts[src.Name()]
		fmt.Fprintf(os.Stderr, "  %s: %d creators\n", src.Name(), n)
		total += n
	}
	fmt.Fprintf(os.Stderr, "\ntotal: %d creators from %d sources\n", total, len(sources))

	if !rescore {
		return nil
	}
	run, lb, err := sched.Score(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("saved run %s\n\n", run.ID)
	return printLeaderboard(os.Stdout, lb, 0)
}

func runAnalyze(ctx context.Context, links []string, jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if a.x == nil {
		return errors.New("X API is not configured (set X_BEARER_TOKEN)")
	}

	analysis, err := server.Analyze(ctx, links, a.x, a.analyzer, a.engine)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(os.Stdout, analysis)
	}

	m := analysis.Meta
	fmt.Printf("links: %d submitted, %d unique tweets, %d fetched, %d unresolved, %d creators\n\n",
		m.TotalSubmittedLinks, m.UniqueTweetIDs, m.FetchedTweets, m.UnresolvedLinks, m.GroupedCreators)
	return printLeaderboard(os.Stdout, analysis.Leaderboard, 0)
}

func runServe(port int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if port == 0 {
		port = a.cfg.Server.Port
	}

	db, err := store.New(a.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := metrics.StartServer(ctx, a.cfg.Server.MetricsAddr, a.log); err != nil {
		return err
	}

	sched := a.scheduler(db, a.sources())
	srv := server.New(a.serverDeps(db, sched), port)
	return srv.ListenAndServe(ctx)
}

func runDaemon(port int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if port == 0 {
		port = a.cfg.Server.Port
	}

	db, err := store.New(a.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := metrics.StartServer(ctx, a.cfg.Server.MetricsAddr, a.log); err != nil {
		return err
	}

	sched := a.scheduler(db, a.sources())

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.WithError(err).Error("scheduler error")
		}
	}()

	srv := server.New(a.serverDeps(db, sched), port)
	err = srv.ListenAndServe(ctx)
	a.log.Info("shutting down")
	return err
}

func selectSources(all []source.Source, names []string) ([]source.Source, error) {
	if len(names) == 0 {
		if len(all) == 0 {
			return nil, errors.New("no sources enabled")
		}
		return all, nil
	}

	wanted := make(map[string]bool)
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}
	var sources []source.Source
	for _, s := range all {
		if wanted[string(s.Name())] {
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		known := make([]string, 0, len(source.AllSourceTypes()))
		for _, st := range source.AllSourceTypes() {
			known = append(known, string(st))
		}
		return nil, fmt.Errorf("no matching sources for: %s (known: %s)", strings.Join(names, ", "), strings.Join(known, ", "))
	}
	return sources, nil
}

func explainAll(engine *score.Engine, creators []source.Creator) map[string][]score.PostDetail {
	out := make(map[string][]score.PostDetail, len(creators))
	for _, c := range creators {
		out[c.ID] = engine.ExplainPosts(c)
	}
	return out
}

func printLeaderboard(out io.Writer, lb *score.Leaderboard, limit int) error {
	if len(lb.Entries) == 0 {
		fmt.Fprintln(out, "no creators scored")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tHANDLE\tTOTAL\tCONTENT\tDERIVATIVE\tRELEVANCE\tTWEETS")
	for i, e := range lb.Entries {
		if limit > 0 && i == limit {
			break
		}
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%d\n",
			i+1, e.Handle, e.TotalScore, e.ContentScore, e.DerivativeScore, e.TopicalRelevance, e.TweetsCount)
	}
	return w.Flush()
}

func printDetails(out io.Writer, engine *score.Engine, creators []source.Creator) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range creators {
		fmt.Fprintf(w, "\n%s\n", c.Handle)
		fmt.Fprintln(w, "TWEET\tTOPICAL\tENGAGEMENT\tSPAM\tDEPTH\tSIGNALS")
		for _, d := range engine.ExplainPosts(c) {
			fmt.Fprintf(w, "%s\t%t\t%.2f\t%.2f\t%.2f\t%s\n",
				d.PostID, d.Topical, d.NormalizedEngagement, d.Spam.SpamScore, d.DepthScore, strings.Join(d.DepthSignals, ","))
		}
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
