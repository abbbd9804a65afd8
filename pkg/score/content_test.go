package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/creatorboard/pkg/source"
)

func singlePostCreator(followers int, p source.Post) source.Creator {
	return source.Creator{ID: "c", Handle: "@c", Followers: followers, Posts: []source.Post{p}}
}

func TestEngagementQualityBlendsViews(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name  string
		likes int
		views int
		want  float64
	}{
		{
			name:  "no views uses likes only",
			likes: 10,
			want:  SoftNormalize(10, 300),
		},
		{
			name:  "views lift a modest post",
			likes: 10,
			views: 5000,
			want:  SoftNormalize(10, 300)*0.92 + SoftNormalize(5000, 12000)*0.08,
		},
		{
			name:  "few views pull a saturated post below one",
			likes: 300,
			views: 1,
			want:  0.92 + SoftNormalize(1, 12000)*0.08,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := source.Post{ID: "1", Text: "Minara research notes on funding rates today", Likes: tt.likes, Views: tt.views}

			eq, cred := EngagementQuality(p, 10000)
			assert.Equal(t, 1.0, cred, "engagement under the follower baseline is credible")
			assert.InDelta(t, tt.want, eq, 1e-9)

			b := e.ScoreCreator(singlePostCreator(10000, p)).ContentBreakdown
			assert.InDelta(t, round(tt.want*100, 2), b.EngagementQualityScore, 1e-9)
		})
	}
}

func TestTopicalInfluenceConfidence(t *testing.T) {
	e := newTestEngine(t)

	quiet := func(id, text string, media *source.MediaInsights) source.Post {
		return source.Post{ID: id, Text: text, Media: media}
	}
	boost := &source.MediaInsights{HasMedia: true, ImageCount: 1, InfluenceBoost: 0.65}

	tests := []struct {
		name  string
		posts []source.Post
		want  float64
	}{
		{
			// c = 1/3, raw 0: 0.25 * 2/3
			name:  "one silent post leans on the neutral prior",
			posts: []source.Post{quiet("1", "Minara research notes on funding rates today", nil)},
			want:  16.67,
		},
		{
			// c = 1/2, raw 0: 0.25 * 1/2
			name: "two silent posts",
			posts: []source.Post{
				quiet("1", "Minara research notes on funding rates today", nil),
				quiet("2", "Minara vault comparison against other execution layers", nil),
			},
			want: 12.5,
		},
		{
			// raw = 0.15 * 0.65 = 0.0975; 0.0975/3 + 0.25*2/3
			name:  "media influence boost feeds the raw signal",
			posts: []source.Post{quiet("1", "Minara research notes on funding rates today", boost)},
			want:  19.92,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := source.Creator{ID: "c", Followers: 1000, Posts: tt.posts}
			b := e.ScoreCreator(c).ContentBreakdown
			assert.InDelta(t, tt.want, b.TopicalInfluenceScore, 1e-9)
		})
	}
}

func TestTopicalInfluenceMatchesSignals(t *testing.T) {
	e := newTestEngine(t)

	p := source.Post{
		ID: "1", Text: "Minara research notes on funding rates today",
		Likes: 120, Replies: 14, Retweets: 9, Quotes: 3, Views: 20000,
		Media: &source.MediaInsights{HasMedia: true, InfluenceBoost: 0.4},
	}
	sig := Influence(p, 4000)
	assert.InDelta(t, SoftNormalize(120+28+27+7.5, 800), sig.Reach, 1e-9)
	assert.InDelta(t, SoftNormalize(14+4.5, 120), sig.Conversation, 1e-9)
	assert.InDelta(t, SoftNormalize(12, 180), sig.Reshare, 1e-9)
	assert.InDelta(t, SoftNormalize(182.5/4000*1000, 30), sig.Penetration, 1e-9)
	assert.InDelta(t, SoftNormalize(20000, 50000), sig.Views, 1e-9)
	assert.Equal(t, 0.4, sig.Media)

	c := 1.0 / 3
	want := round((sig.Score()*c+0.25*(1-c))*100, 2)
	b := e.ScoreCreator(singlePostCreator(4000, p)).ContentBreakdown
	assert.InDelta(t, want, b.TopicalInfluenceScore, 1e-9)
}

func TestMediaDepthBoostFeedsInsight(t *testing.T) {
	e := newTestEngine(t)

	text := "Minara research notes on funding rates today"
	plain := e.ScoreCreator(singlePostCreator(1000, source.Post{ID: "1", Text: text})).ContentBreakdown
	boosted := e.ScoreCreator(singlePostCreator(1000, source.Post{
		ID: "1", Text: text,
		Media: &source.MediaInsights{HasMedia: true, ImageCount: 1, DepthBoost: 0.6},
	})).ContentBreakdown

	require.Less(t, boosted.InsightScore, 100.0)
	// 0.15 * 0.6 * 100
	assert.InDelta(t, 9.0, boosted.InsightScore-plain.InsightScore, 0.011)
	assert.Equal(t, plain.TopicalInfluenceScore, boosted.TopicalInfluenceScore)
	assert.Equal(t, plain.EngagementQualityScore, boosted.EngagementQualityScore)
}

func TestPnLEvidenceAggregation(t *testing.T) {
	e := newTestEngine(t)

	c := source.Creator{
		ID:        "c",
		Followers: 3000,
		Posts: []source.Post{
			{ID: "1", Text: "Minara pnl recap for the week, closed the ETH long", Likes: 30, Replies: 4,
				Media: &source.MediaInsights{HasMedia: true, PnLBucket: source.PnLOver1000, PnLScore: 100}},
			// repetition costs 0.10 of spam weight
			{ID: "2", Text: "Minara pnl recap, sooooo clean this week", Likes: 12,
				Media: &source.MediaInsights{HasMedia: true, PnLBucket: source.PnL100To500, PnLScore: 50}},
			{ID: "3", Text: "Minara research notes on funding rates today", Likes: 8},
			{ID: "4", Text: "RT @x: Minara pnl screenshot", IsRetweet: true,
				Media: &source.MediaInsights{HasMedia: true, PnLBucket: source.PnLOver1000, PnLScore: 100}},
		},
	}

	metas := e.BuildTweetMeta(c)
	require.InDelta(t, 1.0, metas[0].BaseWeight, 1e-9)
	require.InDelta(t, 0.9, metas[1].BaseWeight, 1e-9)

	row := e.ScoreCreator(c)
	b := row.ContentBreakdown

	// (1*100 + 0.9*50) / 1.9; the retweet never counts
	assert.InDelta(t, 76.32, b.PnLEvidenceScore, 1e-9)
	assert.InDelta(t, 0.6667, b.PnLEvidenceCoverage, 1e-9)
	assert.Equal(t, 1.0, b.TopicalCoverage)

	pw := 0.06 + 0.06*b.PnLEvidenceCoverage
	base := b.TotalContentScore*0.6 + row.DerivativeScore*0.4
	want := round((base*(1-pw)+b.PnLEvidenceScore*pw)*b.TopicalCoverage, 2)
	assert.InDelta(t, want, row.TotalScore, 1e-9)
	assert.InDelta(t, want, e.TotalScore(b, row.DerivativeScore), 1e-9)

	without := b
	without.PnLEvidenceScore, without.PnLEvidenceCoverage = 0, 0
	assert.InDelta(t, round(base*b.TopicalCoverage, 2), e.TotalScore(without, row.DerivativeScore), 1e-9)
}

func TestOriginalityWeightsDuplicatesBySpam(t *testing.T) {
	e := newTestEngine(t)

	loud := "MINARA RESEARCH NOTES ON FUNDING RATES TODAY"
	calm := "Minara research notes on funding rates today"
	other := "Spent the weekend comparing Minara vaults with other execution layers"

	tests := []struct {
		name  string
		texts []string
		want  float64
	}{
		{
			// 0.85 accepted of 1.85
			name:  "spammy original first",
			texts: []string{loud, calm},
			want:  45.95,
		},
		{
			// 1 accepted of 1.85
			name:  "clean original first",
			texts: []string{calm, loud},
			want:  54.05,
		},
		{
			// 1.85 accepted of 2.85
			name:  "distinct post joins the accepted weight",
			texts: []string{loud, calm, other},
			want:  64.91,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := source.Creator{ID: "c", Followers: 1000}
			for i, text := range tt.texts {
				c.Posts = append(c.Posts, source.Post{ID: string(rune('a' + i)), Text: text})
			}

			metas := e.BuildTweetMeta(c)
			for _, m := range metas {
				if m.Post.Text == loud {
					require.True(t, m.Spam.AllCaps)
					require.InDelta(t, 0.85, m.BaseWeight, 1e-9)
				}
			}

			b := e.ScoreContent(c, metas)
			assert.InDelta(t, tt.want, b.OriginalityScore, 1e-9)
		})
	}
}
