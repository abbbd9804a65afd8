package score

import (
	"math"
	"strings"
	"time"

	"github.com/elonfeng/creatorboard/pkg/source"
)

const (
	minSpamWeight = 0.05
	minTimeWeight = 0.2
)

// TweetMeta holds the per-post signals derived for one scoring run.
type TweetMeta struct {
	Post       source.Post
	Tokens     []string
	Spam       SpamSignals
	SpamWeight float64
	TimeWeight float64
	// Topical is true when the text or media annotations mention the subject.
	Topical bool
	// BaseWeight = max(0.05, SpamWeight) * max(0.2, TimeWeight). Never zero.
	BaseWeight float64
}

// Gated reports whether the post takes part in weighted sums: an original
// post that mentions the tracked subject.
func (m TweetMeta) Gated() bool {
	return !m.Post.IsRetweet && m.Topical
}

// BuildTweetMeta derives a TweetMeta for every post of the creator, in order.
func (e *Engine) BuildTweetMeta(c source.Creator) []TweetMeta {
	now := e.now()
	metas := make([]TweetMeta, len(c.Posts))
	for i, p := range c.Posts {
		spam := e.DetectSpamSignals(p.Text)
		spamWeight := 1 - spam.SpamScore
		timeWeight := e.timeWeight(p.CreatedAt, now)
		metas[i] = TweetMeta{
			Post:       p,
			Tokens:     Tokenize(p.Text),
			Spam:       spam,
			SpamWeight: spamWeight,
			TimeWeight: timeWeight,
			Topical:    e.MentionsSubject(p),
			BaseWeight: math.Max(minSpamWeight, spamWeight) * math.Max(minTimeWeight, timeWeight),
		}
	}
	return metas
}

// timeWeight halves every HalfLifeDays. Missing or future timestamps are
// not penalised.
func (e *Engine) timeWeight(created, now time.Time) float64 {
	if created.IsZero() {
		return 1
	}
	ageDays := now.Sub(created).Hours() / 24
	if ageDays <= 0 || math.IsNaN(ageDays) {
		return 1
	}
	return math.Exp(-math.Ln2 / e.cfg.HalfLifeDays * ageDays)
}

// MentionsSubject reports whether the post text or its media-derived text
// mentions the tracked subject.
func (e *Engine) MentionsSubject(p source.Post) bool {
	if e.matchesSubject(p.Text) {
		return true
	}
	if p.Media != nil {
		return e.matchesSubject(p.Media.Text())
	}
	return false
}

func (e *Engine) matchesSubject(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range e.cfg.subjectLower {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, v := range e.cfg.Subject.NativeVariants {
		if v != "" && strings.Contains(text, v) {
			return true
		}
	}
	return false
}

func gated(metas []TweetMeta) []TweetMeta {
	var out []TweetMeta
	for _, m := range metas {
		if m.Gated() {
			out = append(out, m)
		}
	}
	return out
}

func countOriginals(metas []TweetMeta) int {
	n := 0
	for _, m := range metas {
		if !m.Post.IsRetweet {
			n++
		}
	}
	return n
}

func rawEngagement(p source.Post) float64 {
	return float64(p.Likes) + 2*float64(p.Replies) + 3*float64(p.Retweets) + 2.5*float64(p.Quotes)
}
