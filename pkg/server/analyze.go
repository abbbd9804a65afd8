package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/elonfeng/creatorboard/pkg/media"
	"github.com/elonfeng/creatorboard/pkg/score"
	"github.com/elonfeng/creatorboard/pkg/source"
)

// ErrNoValidLinks is returned when none of the submitted links is a
// status link.
var ErrNoValidLinks = errors.New("no valid status links (expected https://x.com/<handle>/status/<id>)")

// Analysis is the leaderboard of the creators behind a set of status
// links, with per-post details.
type Analysis struct {
	*score.Leaderboard
	Meta    AnalysisMeta                  `json:"analysisMeta"`
	Details map[string][]score.PostDetail `json:"creatorTweetDetails"`
}

// AnalysisMeta summarises how the submitted links resolved.
type AnalysisMeta struct {
	TotalSubmittedLinks int               `json:"totalSubmittedLinks"`
	UniqueTweetIDs      int               `json:"uniqueTweetIds"`
	FetchedTweets       int               `json:"fetchedTweets"`
	UnresolvedLinks     int               `json:"unresolvedLinks"`
	GroupedCreators     int               `json:"groupedCreators"`
	ConfigVersion       string            `json:"keywordConfigVersion"`
	CreatorCoverage     []CreatorCoverage `json:"creatorCoverage"`
}

// CreatorCoverage compares submitted and fetched posts for one creator.
type CreatorCoverage struct {
	CreatorID      string  `json:"creatorId"`
	Handle         string  `json:"handle"`
	SubmittedLinks int     `json:"submittedLinks"`
	FetchedTweets  int     `json:"fetchedTweets"`
	Coverage       float64 `json:"coverage"`
}

// Analyze resolves status links through lookup, annotates media when an
// analyzer is given and scores the resulting creators.
func Analyze(ctx context.Context, links []string, lookup TweetLookup, analyzer *media.Analyzer, engine *score.Engine) (*Analysis, error) {
	links = normalizeLinks(links)
	parsed, ids := source.ParseStatusLinks(links)
	if len(ids) == 0 {
		return nil, ErrNoValidLinks
	}

	res, err := lookup.LookupTweets(ctx, ids)
	if err != nil {
		return nil, err
	}
	if analyzer != nil {
		analyzer.Annotate(ctx, res.Creators)
	}

	lb, err := engine.BuildLeaderboard(ctx, res.Creators)
	if err != nil {
		return nil, err
	}

	details := make(map[string][]score.PostDetail, len(res.Creators))
	for _, c := range res.Creators {
		details[c.ID] = engine.ExplainPosts(c)
	}

	return &Analysis{
		Leaderboard: lb,
		Meta:        analysisMeta(links, parsed, ids, res, lb.ConfigVersion),
		Details:     details,
	}, nil
}

func normalizeLinks(links []string) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// analysisMeta counts submitted links per handle. A creator whose handle
// was never submitted (the link used another alias) falls back to its
// fetched post count.
func analysisMeta(links []string, parsed []source.StatusLink, ids []string, res *source.Lookup, version string) AnalysisMeta {
	byHandle := make(map[string]int)
	unresolved := 0
	for _, l := range parsed {
		byHandle[l.Handle]++
		if !res.Fetched[l.TweetID] {
			unresolved++
		}
	}

	coverage := make([]CreatorCoverage, 0, len(res.Creators))
	for _, c := range res.Creators {
		fetched := len(c.Posts)
		submitted, ok := byHandle[strings.ToLower(strings.TrimPrefix(c.Handle, "@"))]
		if !ok {
			submitted = fetched
		}
		ratio := 1.0
		if submitted > 0 {
			ratio = min(1, float64(fetched)/float64(submitted))
		}
		coverage = append(coverage, CreatorCoverage{
			CreatorID:      c.ID,
			Handle:         c.Handle,
			SubmittedLinks: submitted,
			FetchedTweets:  fetched,
			Coverage:       float64(int(ratio*10000+0.5)) / 10000,
		})
	}
	sort.SliceStable(coverage, func(i, j int) bool {
		return coverage[i].SubmittedLinks > coverage[j].SubmittedLinks
	})

	return AnalysisMeta{
		TotalSubmittedLinks: len(links),
		UniqueTweetIDs:      len(ids),
		FetchedTweets:       len(res.Fetched),
		UnresolvedLinks:     unresolved,
		GroupedCreators:     len(res.Creators),
		ConfigVersion:       version,
		CreatorCoverage:     coverage,
	}
}

type analyzeRequest struct {
	Links []string `json:"links"`
}

func (s *Server) handleAnalyzeLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	var req analyzeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if _, ids := source.ParseStatusLinks(req.Links); len(ids) == 0 {
		writeError(w, http.StatusBadRequest, ErrNoValidLinks.Error())
		return
	}
	if s.lookup == nil {
		writeError(w, http.StatusServiceUnavailable, "X API is not configured (set X_BEARER_TOKEN)")
		return
	}

	analysis, err := Analyze(r.Context(), req.Links, s.lookup, s.analyzer, s.engine)
	if err != nil {
		s.log.WithError(err).Warn("analyze links failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "failed to fetch tweets",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}
