package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJaccardSimilarity(t *testing.T) {
	x := []string{"minara", "funding", "rates"}

	assert.Equal(t, 1.0, JaccardSimilarity(x, x))
	assert.Equal(t, 1.0, JaccardSimilarity(nil, []string{}))
	assert.Equal(t, 0.0, JaccardSimilarity(nil, x))
	assert.InDelta(t, 1.0/3, JaccardSimilarity([]string{"a1", "b1"}, []string{"b1", "c1"}), 1e-9)

	// duplicates inside one list count once
	assert.Equal(t, 1.0, JaccardSimilarity([]string{"aa", "aa", "bb"}, []string{"bb", "aa"}))

	a := []string{"one", "two", "three", "four"}
	b := []string{"three", "four", "five"}
	assert.Equal(t, JaccardSimilarity(a, b), JaccardSimilarity(b, a))
}

func TestDedupeIsGreedyInOrder(t *testing.T) {
	tokens := [][]string{
		{"aa", "bb", "cc", "dd"},
		{"aa", "bb", "cc", "dd"},
		{"xx", "yy"},
		{"aa", "bb", "cc", "dd", "ee"},
	}
	assert.Equal(t, []bool{true, false, true, true}, dedupe(tokens, 0.9))
	assert.Equal(t, []bool{true, false, true, false}, dedupe(tokens, 0.7))
}

func TestSoftNormalize(t *testing.T) {
	assert.Equal(t, 0.0, SoftNormalize(0, 300))
	assert.Equal(t, 0.0, SoftNormalize(-4, 300))
	assert.InDelta(t, 1.0, SoftNormalize(300, 300), 1e-12)
	assert.Equal(t, 1.0, SoftNormalize(1e6, 300))
	assert.Less(t, SoftNormalize(10, 300), SoftNormalize(20, 300))
}

func TestFollowerCredibility(t *testing.T) {
	assert.Equal(t, 0.3, FollowerCredibility(0))
	assert.Equal(t, 0.3, FollowerCredibility(-10))
	assert.InDelta(t, 1.0, FollowerCredibility(5000), 1e-9)
	assert.InDelta(t, 1.0, FollowerCredibility(2_000_000), 1e-9)
	assert.Less(t, FollowerCredibility(50), FollowerCredibility(500))
}

func TestAnomalyCredibility(t *testing.T) {
	// baseline for 100 followers is max(20, 10*6) = 60
	assert.Equal(t, 1.0, AnomalyCredibility(10, 100))
	assert.Equal(t, 1.0, AnomalyCredibility(60, 100))
	assert.InDelta(t, 0.5, AnomalyCredibility(240, 100), 1e-9)
	assert.Equal(t, 0.25, AnomalyCredibility(6000, 100))

	// zero followers fall back to the floor baseline of 20
	assert.InDelta(t, 0.5, AnomalyCredibility(80, 0), 1e-9)
}

func TestBurstPenalty(t *testing.T) {
	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	spread := func(n int, step time.Duration) []time.Time {
		out := make([]time.Time, n)
		for i := range out {
			out[i] = base.Add(time.Duration(i) * step)
		}
		return out
	}

	window := 30 * time.Minute

	assert.Equal(t, 1.0, BurstPenalty(spread(10, time.Hour), window, 5))
	assert.Equal(t, 1.0, BurstPenalty(spread(5, time.Minute), window, 5))
	assert.InDelta(t, 0.5, BurstPenalty(spread(10, time.Minute), window, 5), 1e-9)
	assert.Equal(t, 0.35, BurstPenalty(spread(20, time.Minute), window, 5))

	assert.Equal(t, 1.0, BurstPenalty(nil, window, 5))
	assert.Equal(t, 1.0, BurstPenalty(make([]time.Time, 12), window, 5), "zero timestamps are ignored")

	assert.Equal(t, 4, MaxBurst(append(spread(3, time.Hour), base.Add(10*time.Minute), base.Add(20*time.Minute), base.Add(25*time.Minute)), window))
}

func TestSpamPenalty(t *testing.T) {
	metas := func(weights ...float64) []TweetMeta {
		out := make([]TweetMeta, len(weights))
		for i, w := range weights {
			out[i] = TweetMeta{SpamWeight: w}
		}
		return out
	}

	assert.Equal(t, 1.0, spamPenalty(nil))
	assert.InDelta(t, 1.0, spamPenalty(metas(1, 1)), 1e-9)
	assert.InDelta(t, 0.3, spamPenalty(metas(0, 0)), 1e-9)

	// 1 of 4 posts flagged: 1 - 0.7*0.25
	assert.InDelta(t, 1-0.7*0.25, spamPenalty(metas(1, 1, 1, 0)), 1e-9)
	// continuous weights: 0.3 + 0.7*0.8
	assert.InDelta(t, 0.86, spamPenalty(metas(0.9, 0.7)), 1e-9)
}
