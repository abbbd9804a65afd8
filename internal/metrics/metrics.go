package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	ScoringRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "creatorboard_scoring_runs_total",
		Help: "Total leaderboard scoring runs",
	})
	CreatorsScored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "creatorboard_creators_scored_total",
		Help: "Total creators scored across all runs",
	})
	ScoringDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "creatorboard_scoring_duration_seconds",
		Help:    "Leaderboard scoring duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	CollectErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "creatorboard_collect_errors_total",
		Help: "Total collection errors per source",
	}, []string{"source"})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "creatorboard_api_retries_total",
		Help: "Total X API retry attempts",
	}, []string{"endpoint"})
	OCRRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "creatorboard_ocr_requests_total",
		Help: "OCR lookups by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(ScoringRuns, CreatorsScored, ScoringDuration, CollectErrors, APIRetries, OCRRequests)
}

// Handler serves the registered collectors.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer serves /metrics on a dedicated address until ctx is done. An
// empty addr disables it. Bind errors are returned; errors after that are
// logged.
func StartServer(ctx context.Context, addr string, log *logrus.Logger) error {
	if addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	go serve(ctx, ln, log)
	return nil
}

func serve(ctx context.Context, ln net.Listener, log *logrus.Logger) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", ln.Addr().String()).Info("metrics server listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).WithField("addr", ln.Addr().String()).Error("metrics server stopped")
	}
}

// ObserveScoring records one scoring run over n creators.
func ObserveScoring(start time.Time, n int) {
	ScoringRuns.Inc()
	CreatorsScored.Add(float64(n))
	ScoringDuration.Observe(time.Since(start).Seconds())
}

// IncCollectError increments the error counter for a source.
func IncCollectError(source string) { CollectErrors.WithLabelValues(source).Inc() }

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }

// IncOCR counts an OCR lookup: "hit", "ok" or "error".
func IncOCR(outcome string) { OCRRequests.WithLabelValues(outcome).Inc() }
