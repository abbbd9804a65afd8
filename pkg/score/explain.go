package score

import (
	"sort"
	"time"

	"github.com/elonfeng/creatorboard/pkg/source"
)

// timeLayout is fixed width in UTC, so formatted values sort lexically.
const timeLayout = time.RFC3339

// PostDetail explains how one post fed into its creator's score.
type PostDetail struct {
	PostID               string                `json:"tweetId"`
	Text                 string                `json:"text"`
	CreatedAt            string                `json:"createdAt,omitempty"`
	IsRetweet            bool                  `json:"isRetweet"`
	Topical              bool                  `json:"topicalHit"`
	Likes                int                   `json:"likes"`
	Replies              int                   `json:"replies"`
	Retweets             int                   `json:"retweets"`
	Quotes               int                   `json:"quotes"`
	Views                int                   `json:"views"`
	RawEngagement        float64               `json:"rawEngagement"`
	NormalizedEngagement float64               `json:"normalizedEngagement"`
	EngagementCred       float64               `json:"engagementCredibility"`
	Influence            InfluenceSignals      `json:"influenceSignals"`
	InfluenceScore       float64               `json:"influenceScore"`
	ViewSignal           float64               `json:"viewSignal"`
	Spam                 SpamSignals           `json:"spam"`
	TokenDiversity       float64               `json:"tokenDiversity"`
	Sentiment            int                   `json:"sentiment"`
	DepthScore           float64               `json:"depthScore"`
	DepthSignals         []string              `json:"depthSignals"`
	SpamWeight           float64               `json:"spamWeight"`
	TimeWeight           float64               `json:"timeWeight"`
	BaseWeight           float64               `json:"baseWeight"`
	Media                *source.MediaInsights `json:"mediaInsights,omitempty"`
}

// ExplainPosts returns a PostDetail for every post of c, newest first.
// Posts without a timestamp sort last and keep their relative order.
func (e *Engine) ExplainPosts(c source.Creator) []PostDetail {
	c = c.Clone()
	metas := e.BuildTweetMeta(c)
	details := make([]PostDetail, len(metas))
	for i, m := range metas {
		details[i] = e.explain(m, c.Followers)
	}

	sort.SliceStable(details, func(i, j int) bool {
		return details[i].CreatedAt > details[j].CreatedAt
	})
	return details
}

func (e *Engine) explain(m TweetMeta, followers int) PostDetail {
	p := m.Post
	eq, cred := EngagementQuality(p, followers)
	influence := Influence(p, followers)
	depth := e.depth(m)

	d := PostDetail{
		PostID:               p.ID,
		Text:                 p.Text,
		IsRetweet:            p.IsRetweet,
		Topical:              m.Topical,
		Likes:                p.Likes,
		Replies:              p.Replies,
		Retweets:             p.Retweets,
		Quotes:               p.Quotes,
		Views:                p.Views,
		RawEngagement:        rawEngagement(p),
		NormalizedEngagement: round(eq, 4),
		EngagementCred:       round(cred, 4),
		Influence:            influence,
		InfluenceScore:       round(influence.Score(), 4),
		ViewSignal:           round(SoftNormalize(float64(p.Views), engagementViewPivot), 4),
		Spam:                 m.Spam,
		Sentiment:            e.EstimateSentiment(p.Text),
		DepthScore:           round(depth.score(), 2),
		DepthSignals:         depth.families,
		SpamWeight:           round(m.SpamWeight, 4),
		TimeWeight:           round(m.TimeWeight, 4),
		BaseWeight:           round(m.BaseWeight, 4),
		Media:                p.Media,
	}
	if !p.CreatedAt.IsZero() {
		d.CreatedAt = p.CreatedAt.UTC().Format(timeLayout)
	}
	if len(m.Tokens) > 0 {
		d.TokenDiversity = round(float64(len(tokenSet(m.Tokens)))/float64(len(m.Tokens)), 4)
	}
	if d.DepthSignals == nil {
		d.DepthSignals = []string{}
	}
	return d
}
