package source

import "context"

// Demo serves a fixed pair of creators: one writing original analysis
// and one posting hype.
type Demo struct{}

func (Demo) Name() SourceType { return SourceDemo }

func (Demo) Collect(ctx context.Context) ([]Creator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return DemoCreators(), nil
}

// DemoCreators returns a fresh copy of the demo data.
func DemoCreators() []Creator {
	return []Creator{
		{
			ID:        "creator_high_quality",
			Handle:    "@alpha_minara",
			Followers: 12800,
			Source:    SourceDemo,
			Posts: []Post{
				{ID: "t1", AuthorID: "creator_high_quality", Text: "Why Minara is building a real execution layer for AI agents", Likes: 320, Replies: 48, Retweets: 96},
				{ID: "t2", AuthorID: "creator_high_quality", Text: "Thread: the narrative gap between Copilot-style AI and real autonomous agents", Likes: 210, Replies: 31, Retweets: 74},
				{ID: "t3", AuthorID: "creator_high_quality", Text: "Minara isn't another bot, it's an execution primitive.", Likes: 180, Replies: 20, Retweets: 52},
			},
		},
		{
			ID:        "creator_low_quality",
			Handle:    "@spam_minara",
			Followers: 230,
			Source:    SourceDemo,
			Posts: []Post{
				{ID: "t4", AuthorID: "creator_low_quality", Text: "MINARA to the moon 🚀", Likes: 12, Replies: 1},
				{ID: "t5", AuthorID: "creator_low_quality", Text: "Minara soon", Likes: 5, Retweets: 1},
				{ID: "t6", AuthorID: "creator_low_quality", Text: "retweet pls", Likes: 2},
			},
		},
	}
}
