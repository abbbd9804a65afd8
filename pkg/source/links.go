package source

import (
	"regexp"
	"strings"
)

var statusLinkRe = regexp.MustCompile(`(?i)^https?://(?:x\.com|twitter\.com)/([^/\s]+)/status/(\d+)(?:\?.*)?$`)

// StatusLink is a parsed x.com or twitter.com post URL.
type StatusLink struct {
	// Handle is lower-cased and has no leading @.
	Handle  string
	TweetID string
}

// ParseStatusLink parses https://x.com/<handle>/status/<id> links. Query
// strings are allowed; anything else after the id is rejected.
func ParseStatusLink(link string) (StatusLink, bool) {
	m := statusLinkRe.FindStringSubmatch(strings.TrimSpace(link))
	if m == nil {
		return StatusLink{}, false
	}
	return StatusLink{Handle: strings.ToLower(m[1]), TweetID: m[2]}, true
}

// ParseStatusLinks parses every link and returns the valid ones in input
// order together with the de-duplicated tweet ids.
func ParseStatusLinks(links []string) ([]StatusLink, []string) {
	var parsed []StatusLink
	var ids []string
	seen := make(map[string]bool)
	for _, l := range links {
		sl, ok := ParseStatusLink(l)
		if !ok {
			continue
		}
		parsed = append(parsed, sl)
		if !seen[sl.TweetID] {
			seen[sl.TweetID] = true
			ids = append(ids, sl.TweetID)
		}
	}
	return parsed, ids
}
