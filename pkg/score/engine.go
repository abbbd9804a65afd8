package score

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/creatorboard/pkg/source"
)

const (
	pnlBaseWeight     = 0.06
	pnlCoverageWeight = 0.06
	pnlMaxWeight      = 0.12
)

// Engine scores creators. It holds only immutable configuration, so one
// Engine may score many creators concurrently.
type Engine struct {
	cfg *compiledConfig
	now func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock sets the clock used for time decay.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates a scoring engine from cfg.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cc, err := compile(cfg)
	if err != nil {
		return nil, err
	}
	e := &Engine{cfg: cc, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg.Config
}

// CreatorScoreBreakdown is one leaderboard row.
type CreatorScoreBreakdown struct {
	CreatorID        string                `json:"creatorId"`
	Handle           string                `json:"handle"`
	Followers        int                   `json:"followers"`
	AvatarURL        string                `json:"profileImageUrl,omitempty"`
	TweetsCount      int                   `json:"tweetsCount"`
	ContentScore     float64               `json:"contentScore"`
	ContentBreakdown ContentScoreBreakdown `json:"contentBreakdown"`
	DerivativeScore  float64               `json:"derivativeScore"`
	TopicalRelevance float64               `json:"topicalRelevance"`
	TotalScore       float64               `json:"totalScore"`
}

// Leaderboard is the ranked output of one scoring run.
type Leaderboard struct {
	UpdatedAt     time.Time               `json:"updatedAt"`
	ConfigVersion string                  `json:"keywordConfigVersion"`
	Entries       []CreatorScoreBreakdown `json:"entries"`
}

// ScoreCreator runs the full pipeline for one creator.
func (e *Engine) ScoreCreator(c source.Creator) CreatorScoreBreakdown {
	c = c.Clone()
	metas := e.BuildTweetMeta(c)
	content := e.ScoreContent(c, metas)
	derivative := e.ScoreDerivative(c, metas)

	return CreatorScoreBreakdown{
		CreatorID:        c.ID,
		Handle:           c.Handle,
		Followers:        c.Followers,
		AvatarURL:        c.AvatarURL,
		TweetsCount:      len(c.Posts),
		ContentScore:     content.TotalContentScore,
		ContentBreakdown: content,
		DerivativeScore:  derivative,
		TopicalRelevance: content.TopicalCoverage,
		TotalScore:       e.TotalScore(content, derivative),
	}
}

// TotalScore combines content and derivative scores. A creator whose
// originals never mention the subject scores 0; otherwise the blend is
// scaled by the topical coverage ratio.
func (e *Engine) TotalScore(content ContentScoreBreakdown, derivative float64) float64 {
	relevance := content.TopicalCoverage
	if relevance <= 0 {
		return 0
	}

	w := e.cfg.Weights
	base := content.TotalContentScore*w.Content + derivative*w.Derivative
	if content.PnLEvidenceCoverage > 0 {
		pw := math.Min(pnlMaxWeight, pnlBaseWeight+pnlCoverageWeight*content.PnLEvidenceCoverage)
		base = base*(1-pw) + content.PnLEvidenceScore*pw
	}
	return round(base*relevance, 2)
}

// BuildLeaderboard scores every creator and sorts the rows by total score,
// descending. Ties keep input order.
func (e *Engine) BuildLeaderboard(ctx context.Context, creators []source.Creator) (*Leaderboard, error) {
	rows := make([]CreatorScoreBreakdown, len(creators))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range creators {
		c := creators[i].Clone()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = e.ScoreCreator(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score creators: %w", err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalScore > rows[j].TotalScore
	})

	return &Leaderboard{
		UpdatedAt:     e.now().UTC(),
		ConfigVersion: e.cfg.Version,
		Entries:       rows,
	}, nil
}
