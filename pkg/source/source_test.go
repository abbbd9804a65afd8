package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsDeep(t *testing.T) {
	c := Creator{ID: "c", Posts: []Post{{ID: "1", Media: &MediaInsights{Tags: []string{"chart"}}}}}
	cp := c.Clone()

	cp.Posts[0].Text = "changed"
	cp.Posts[0].Media.Tags[0] = "fanart"
	assert.Equal(t, "", c.Posts[0].Text)
	assert.Equal(t, "chart", c.Posts[0].Media.Tags[0])
}

func TestCloneCopiesPnLAmount(t *testing.T) {
	usd := 1500.0
	c := Creator{ID: "c", Posts: []Post{{ID: "1", Media: &MediaInsights{PnLUSD: &usd, PnLBucket: PnLOver1000}}, {ID: "2"}}}
	cp := c.Clone()

	require.NotNil(t, cp.Posts[0].Media.PnLUSD)
	assert.NotSame(t, c.Posts[0].Media.PnLUSD, cp.Posts[0].Media.PnLUSD)
	*cp.Posts[0].Media.PnLUSD = 1
	assert.Equal(t, 1500.0, *c.Posts[0].Media.PnLUSD)
	assert.Nil(t, cp.Posts[1].Media)
}

func TestMergeCreators(t *testing.T) {
	a := []Creator{{ID: "1", Followers: 10, Posts: []Post{{ID: "p1"}}}, {ID: "2"}}
	b := []Creator{{ID: "1", Followers: 20, AvatarURL: "img", Posts: []Post{{ID: "p1"}, {ID: "p2"}}}, {ID: "3"}}

	merged := MergeCreators(a, b)
	require.Len(t, merged, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{merged[0].ID, merged[1].ID, merged[2].ID})
	assert.Equal(t, 20, merged[0].Followers)
	assert.Equal(t, "img", merged[0].AvatarURL)
	assert.Len(t, merged[0].Posts, 2)
	assert.Len(t, a[0].Posts, 1, "inputs are not modified")
}

func TestPnLBucketScore(t *testing.T) {
	assert.Equal(t, 0.0, PnLNone.Score())
	assert.Equal(t, 25.0, PnLUnder100.Score())
	assert.Equal(t, 50.0, PnL100To500.Score())
	assert.Equal(t, 75.0, PnL500To1000.Score())
	assert.Equal(t, 100.0, PnLOver1000.Score())

	assert.False(t, Post{}.MediaOrEmpty().HasPnLEvidence())
}

func TestDemoCreators(t *testing.T) {
	creators, err := Demo{}.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, creators, 2)
	assert.Equal(t, "@alpha_minara", creators[0].Handle)

	creators[0].Posts[0].Text = "mutated"
	assert.NotEqual(t, "mutated", DemoCreators()[0].Posts[0].Text)
}
