package score

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/elonfeng/creatorboard/pkg/source"
)

const (
	depthLengthPivot = 220

	engagementPivot     = 300
	engagementViewPivot = 12000
	engagementViewShare = 0.08

	reachPivot         = 800
	conversationPivot  = 120
	resharePivot       = 180
	penetrationPivot   = 30
	influenceViewPivot = 50000

	influenceNeutral = 0.25
	confidencePrior  = 2
	sampleFullAt     = 5
)

// ContentScoreBreakdown explains a creator's content score.
type ContentScoreBreakdown struct {
	OriginalityScore       float64 `json:"originalityScore"`
	InsightScore           float64 `json:"insightScore"`
	EngagementQualityScore float64 `json:"engagementQualityScore"`
	TopicalInfluenceScore  float64 `json:"topicalInfluenceScore"`
	TotalContentScore      float64 `json:"totalContentScore"`

	SpamPenalty     float64 `json:"spamPenalty"`
	Credibility     float64 `json:"credibility"`
	BurstPenalty    float64 `json:"burstPenalty"`
	FinalMultiplier float64 `json:"finalMultiplier"`

	// TopicalCoverage is qualifying originals / all originals.
	TopicalCoverage    float64 `json:"topicalCoverage"`
	NonRetweetCoverage float64 `json:"nonRetweetCoverage"`
	// SampleFactor is reported for display only and never scales the score.
	SampleFactor             float64 `json:"sampleFactor"`
	TimeDecayAvg             float64 `json:"timeDecayAvg"`
	EngagementCredibilityAvg float64 `json:"engagementCredibilityAvg"`
	PnLEvidenceScore         float64 `json:"pnlEvidenceScore"`
	PnLEvidenceCoverage      float64 `json:"pnlEvidenceCoverage"`
	EffectiveTweetCount      int     `json:"effectiveTweetCount"`
}

func (b ContentScoreBreakdown) rounded() ContentScoreBreakdown {
	b.OriginalityScore = round(b.OriginalityScore, 2)
	b.InsightScore = round(b.InsightScore, 2)
	b.EngagementQualityScore = round(b.EngagementQualityScore, 2)
	b.TopicalInfluenceScore = round(b.TopicalInfluenceScore, 2)
	b.TotalContentScore = round(b.TotalContentScore, 2)
	b.SpamPenalty = round(b.SpamPenalty, 4)
	b.Credibility = round(b.Credibility, 4)
	b.BurstPenalty = round(b.BurstPenalty, 4)
	b.FinalMultiplier = round(b.FinalMultiplier, 4)
	b.TopicalCoverage = round(b.TopicalCoverage, 4)
	b.NonRetweetCoverage = round(b.NonRetweetCoverage, 4)
	b.SampleFactor = round(b.SampleFactor, 4)
	b.TimeDecayAvg = round(b.TimeDecayAvg, 4)
	b.EngagementCredibilityAvg = round(b.EngagementCredibilityAvg, 4)
	b.PnLEvidenceScore = round(b.PnLEvidenceScore, 2)
	b.PnLEvidenceCoverage = round(b.PnLEvidenceCoverage, 4)
	return b
}

// depthSignal is the per-post breakdown of the insight score.
type depthSignal struct {
	length     float64
	families   []string
	family     float64
	uniqueness float64
	density    float64
	media      float64
}

func (d depthSignal) score() float64 {
	v := 0.30*d.length + 0.30*d.family + 0.15*d.uniqueness + 0.10*d.density + 0.15*d.media
	return clamp(v*100, 0, 100)
}

// InfluenceSignals is the per-post breakdown of topical influence.
type InfluenceSignals struct {
	Reach        float64 `json:"reach"`
	Conversation float64 `json:"conversation"`
	Reshare      float64 `json:"reshare"`
	Penetration  float64 `json:"penetration"`
	Views        float64 `json:"views"`
	Media        float64 `json:"media"`
}

// Score blends the signals into [0,1].
func (s InfluenceSignals) Score() float64 {
	v := 0.25*s.Reach + 0.20*s.Conversation + 0.20*s.Reshare + 0.15*s.Penetration + 0.05*s.Views + 0.15*s.Media
	return clamp(v, 0, 1)
}

// ScoreContent aggregates the content sub-scores of a creator. Only gated
// posts enter weighted sums; the spam penalty looks at every post.
func (e *Engine) ScoreContent(c source.Creator, metas []TweetMeta) ContentScoreBreakdown {
	timestamps := make([]time.Time, 0, len(metas))
	for _, m := range metas {
		timestamps = append(timestamps, m.Post.CreatedAt)
	}

	out := ContentScoreBreakdown{
		SpamPenalty:              spamPenalty(metas),
		Credibility:              FollowerCredibility(c.Followers),
		BurstPenalty:             BurstPenalty(timestamps, e.burstWindow(), e.cfg.BurstLimit),
		TimeDecayAvg:             1,
		EngagementCredibilityAvg: 1,
	}
	out.FinalMultiplier = out.SpamPenalty * out.Credibility * out.BurstPenalty

	originals := countOriginals(metas)
	set := gated(metas)
	if len(metas) > 0 {
		out.NonRetweetCoverage = float64(originals) / float64(len(metas))
	}
	if originals > 0 {
		out.TopicalCoverage = float64(len(set)) / float64(originals)
	}
	out.EffectiveTweetCount = len(set)
	if len(set) == 0 {
		return out.rounded()
	}

	totalWeight := 0.0
	tokens := make([][]string, len(set))
	for i, m := range set {
		totalWeight += m.BaseWeight
		tokens[i] = m.Tokens
	}
	accepted := dedupe(tokens, e.cfg.DuplicateThreshold)

	var originalWeight, insightSum, engagementSum, influenceSum float64
	var timeSum, credSum, pnlWeight, pnlSum float64
	pnlPosts := 0
	for i, m := range set {
		w := m.BaseWeight
		if accepted[i] {
			originalWeight += w
		}
		insightSum += w * e.depth(m).score()

		eq, cred := EngagementQuality(m.Post, c.Followers)
		engagementSum += w * eq
		credSum += cred
		influenceSum += w * Influence(m.Post, c.Followers).Score()
		timeSum += m.TimeWeight

		if media := m.Post.MediaOrEmpty(); media.HasPnLEvidence() {
			pnlPosts++
			pnlWeight += w
			pnlSum += w * media.PnLScore
		}
	}

	n := float64(len(set))
	out.OriginalityScore = clamp(originalWeight/totalWeight*100, 0, 100)
	out.InsightScore = clamp(insightSum/totalWeight, 0, 100)
	out.EngagementQualityScore = clamp(engagementSum/totalWeight*100, 0, 100)

	confidence := n / (n + confidencePrior)
	rawInfluence := influenceSum / totalWeight
	out.TopicalInfluenceScore = clamp((rawInfluence*confidence+influenceNeutral*(1-confidence))*100, 0, 100)

	out.TimeDecayAvg = timeSum / n
	out.EngagementCredibilityAvg = credSum / n
	out.SampleFactor = math.Min(1, n/sampleFullAt)
	if pnlPosts > 0 {
		out.PnLEvidenceScore = pnlSum / pnlWeight
		out.PnLEvidenceCoverage = float64(pnlPosts) / n
	}

	wt := e.cfg.Weights
	raw := out.OriginalityScore*wt.Originality +
		out.InsightScore*wt.Insight +
		out.EngagementQualityScore*wt.Engagement +
		out.TopicalInfluenceScore*wt.Influence
	out.TotalContentScore = raw * out.FinalMultiplier
	return out.rounded()
}

func (e *Engine) burstWindow() time.Duration {
	return time.Duration(e.cfg.BurstWindowMinutes) * time.Minute
}

func (e *Engine) depth(m TweetMeta) depthSignal {
	text := m.Post.Text
	d := depthSignal{
		length: SoftNormalize(float64(utf8.RuneCountInString(text)), depthLengthPivot),
		media:  clamp(m.Post.MediaOrEmpty().DepthBoost, 0, 1),
	}

	lower := strings.ToLower(text)
	families := []struct {
		name     string
		keywords []string
		weight   float64
	}{
		{"thesis", e.cfg.Depth.Thesis, 0.30},
		{"narrative", e.cfg.Depth.Narrative, 0.25},
		{"logic", e.cfg.Depth.Logic, 0.25},
		{"thread", e.cfg.Depth.Thread, 0.20},
	}
	for _, f := range families {
		if containsAny(lower, f.keywords) {
			d.families = append(d.families, f.name)
			d.family += f.weight
		}
	}

	if len(m.Tokens) > 0 {
		d.uniqueness = float64(len(tokenSet(m.Tokens))) / float64(len(m.Tokens))
		d.density = clamp(float64(len(d.families))/math.Sqrt(float64(len(m.Tokens))), 0, 1)
	}
	return d
}

// EngagementQuality returns the credibility-adjusted engagement of a post
// in [0,1] together with the anomaly credibility applied to it.
func EngagementQuality(p source.Post, followers int) (float64, float64) {
	raw := rawEngagement(p)
	normalized := SoftNormalize(raw, engagementPivot)
	if p.Views > 0 {
		normalized = normalized*(1-engagementViewShare) + SoftNormalize(float64(p.Views), engagementViewPivot)*engagementViewShare
	}
	cred := AnomalyCredibility(raw, followers)
	return clamp(normalized, 0, 1) * cred, cred
}

// Influence computes the topical-influence signals of a post.
func Influence(p source.Post, followers int) InfluenceSignals {
	raw := rawEngagement(p)
	perFollower := 0.0
	if followers > 0 {
		perFollower = raw / float64(followers) * 1000
	}
	return InfluenceSignals{
		Reach:        SoftNormalize(raw, reachPivot),
		Conversation: SoftNormalize(float64(p.Replies)+1.5*float64(p.Quotes), conversationPivot),
		Reshare:      SoftNormalize(float64(p.Retweets+p.Quotes), resharePivot),
		Penetration:  SoftNormalize(perFollower, penetrationPivot),
		Views:        SoftNormalize(float64(p.Views), influenceViewPivot),
		Media:        clamp(p.MediaOrEmpty().InfluenceBoost, 0, 1),
	}
}
