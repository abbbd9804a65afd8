package score

import "github.com/elonfeng/creatorboard/pkg/source"

const (
	retweetRatePivot = 120
	replyRatePivot   = 60
	quoteRatePivot   = 40
)

// ScoreDerivative measures how far a creator's qualifying originals spread:
// retweets, replies and quotes per 1000 followers, blended 50/30/20 and
// scaled to [0,100]. Zero followers or zero qualifying posts give 0.
func (e *Engine) ScoreDerivative(c source.Creator, metas []TweetMeta) float64 {
	if c.Followers <= 0 {
		return 0
	}
	set := gated(metas)
	if len(set) == 0 {
		return 0
	}

	var retweets, replies, quotes int
	for _, m := range set {
		retweets += m.Post.Retweets
		replies += m.Post.Replies
		quotes += m.Post.Quotes
	}

	perK := func(n int) float64 {
		return float64(n) / float64(c.Followers) * 1000
	}
	score := 0.5*SoftNormalize(perK(retweets), retweetRatePivot) +
		0.3*SoftNormalize(perK(replies), replyRatePivot) +
		0.2*SoftNormalize(perK(quotes), quoteRatePivot)
	return round(clamp(score*100, 0, 100), 2)
}
