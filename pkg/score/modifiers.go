package score

import (
	"math"
	"sort"
	"time"
)

const (
	credibilityFloor         = 0.3
	credibilityFollowerPivot = 5000
	anomalyBaselineFloor     = 20
	anomalyBaselinePerRoot   = 6
	anomalyFloor             = 0.25
	burstPenaltyFloor        = 0.35
)

// SoftNormalize maps a non-negative count into [0,1] with diminishing
// returns: min(1, log1p(x)/log1p(pivot)).
func SoftNormalize(value, pivot float64) float64 {
	if value <= 0 || pivot <= 0 {
		return 0
	}
	return clamp(math.Log1p(value)/math.Log1p(pivot), 0, 1)
}

// FollowerCredibility is 0.3 for empty accounts and approaches 1.0 as the
// follower count reaches 5000.
func FollowerCredibility(followers int) float64 {
	if followers <= 0 {
		return credibilityFloor
	}
	ratio := math.Min(1, math.Log1p(float64(followers))/math.Log1p(credibilityFollowerPivot))
	return credibilityFloor + (1-credibilityFloor)*ratio
}

// AnomalyCredibility discounts engagement that is implausibly large for the
// audience size. Engagement at or below the follower baseline is trusted.
func AnomalyCredibility(rawEngagement float64, followers int) float64 {
	baseline := math.Max(anomalyBaselineFloor, math.Sqrt(math.Max(0, float64(followers)))*anomalyBaselinePerRoot)
	ratio := rawEngagement / baseline
	if ratio <= 1 {
		return 1
	}
	return math.Max(anomalyFloor, 1/math.Sqrt(ratio))
}

// MaxBurst returns the largest number of timestamps inside any window of
// the given width. Zero timestamps are ignored.
func MaxBurst(timestamps []time.Time, window time.Duration) int {
	var ts []time.Time
	for _, t := range timestamps {
		if !t.IsZero() {
			ts = append(ts, t)
		}
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })

	best, start := 0, 0
	for end := range ts {
		for ts[end].Sub(ts[start]) > window {
			start++
		}
		if n := end - start + 1; n > best {
			best = n
		}
	}
	return best
}

// BurstPenalty is 1 while no window holds more than limit posts and
// max(0.35, limit/maxBurst) otherwise.
func BurstPenalty(timestamps []time.Time, window time.Duration, limit int) float64 {
	burst := MaxBurst(timestamps, window)
	if burst <= limit {
		return 1
	}
	return math.Max(burstPenaltyFloor, float64(limit)/float64(burst))
}

// spamPenalty maps the mean spam weight of all posts onto [0.3,1].
func spamPenalty(metas []TweetMeta) float64 {
	if len(metas) == 0 {
		return 1
	}
	sum := 0.0
	for _, m := range metas {
		sum += m.SpamWeight
	}
	avg := sum / float64(len(metas))
	return 0.3 + 0.7*avg
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
