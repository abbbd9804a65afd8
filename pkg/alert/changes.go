package alert

import (
	"fmt"
	"strings"

	"github.com/elonfeng/creatorboard/pkg/score"
)

// Changes compares two leaderboards and returns a notification when the
// leader changed or creators entered the top n. Only rows with a positive
// total count as ranked. It returns nil when nothing worth reporting
// happened; prev may be nil for the first run.
func Changes(prev, curr *score.Leaderboard, topN int) *Notification {
	if curr == nil {
		return nil
	}
	if topN <= 0 {
		topN = 10
	}

	top := ranked(curr, topN)
	if len(top) == 0 {
		return nil
	}
	before := ranked(prev, topN)

	seen := make(map[string]bool, len(before))
	for _, e := range before {
		seen[e.CreatorID] = true
	}
	var entrants []Entry
	for _, e := range top {
		if !seen[e.CreatorID] {
			entrants = append(entrants, e)
		}
	}

	newLeader := len(before) == 0 || before[0].CreatorID != top[0].CreatorID
	if !newLeader && len(entrants) == 0 {
		return nil
	}

	n := &Notification{
		ConfigVersion: curr.ConfigVersion,
		UpdatedAt:     curr.UpdatedAt,
		Entrants:      entrants,
		Entries:       top,
	}

	if newLeader {
		leader := top[0]
		n.Leader = &leader
		n.Title = fmt.Sprintf("New leader: %s", leader.Handle)
	} else {
		n.Title = fmt.Sprintf("%d new in top %d", len(entrants), topN)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Leader %s with %.2f", top[0].Handle, top[0].TotalScore)
	if len(before) > 0 && newLeader {
		fmt.Fprintf(&b, " (was %s)", before[0].Handle)
	}
	if len(entrants) > 0 {
		handles := make([]string, len(entrants))
		for i, e := range entrants {
			handles[i] = fmt.Sprintf("%s #%d", e.Handle, e.Rank)
		}
		fmt.Fprintf(&b, ". New in top %d: %s", topN, strings.Join(handles, ", "))
	}
	n.Body = b.String()

	return n
}

func ranked(lb *score.Leaderboard, topN int) []Entry {
	if lb == nil {
		return nil
	}
	var out []Entry
	for i, row := range lb.Entries {
		if len(out) == topN {
			break
		}
		if row.TotalScore <= 0 {
			continue
		}
		out = append(out, Entry{
			Rank:       i + 1,
			CreatorID:  row.CreatorID,
			Handle:     row.Handle,
			TotalScore: row.TotalScore,
		})
	}
	return out
}
