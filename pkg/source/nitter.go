package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
)

// Nitter collects recent posts via Nitter RSS feeds. Feeds carry neither
// follower counts nor engagement, so those stay zero.
type Nitter struct {
	client    *http.Client
	parser    *gofeed.Parser
	nitterURL string
	accounts  []string
	maxAge    time.Duration
	log       *logrus.Logger
}

// NewNitter creates a Nitter RSS collector. A zero maxAge keeps every entry.
func NewNitter(nitterURL string, accounts []string, maxAge time.Duration, log *logrus.Logger) *Nitter {
	if nitterURL == "" {
		nitterURL = "https://nitter.net"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Nitter{
		client:    &http.Client{Timeout: 30 * time.Second},
		parser:    gofeed.NewParser(),
		nitterURL: strings.TrimRight(nitterURL, "/"),
		accounts:  accounts,
		maxAge:    maxAge,
		log:       log,
	}
}

func (n *Nitter) Name() SourceType { return SourceNitter }

func (n *Nitter) Collect(ctx context.Context) ([]Creator, error) {
	var creators []Creator
	var errs []error

	for _, account := range n.accounts {
		account = strings.TrimPrefix(strings.TrimSpace(account), "@")
		c, err := n.collectAccount(ctx, account)
		if err != nil {
			n.log.WithError(err).WithField("account", account).Warn("nitter collect failed")
			errs = append(errs, err)
			continue
		}
		creators = append(creators, c)
	}

	return creators, errors.Join(errs...)
}

func (n *Nitter) collectAccount(ctx context.Context, account string) (Creator, error) {
	feedURL := fmt.Sprintf("%s/%s/rss", n.nitterURL, account)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return Creator{}, fmt.Errorf("create nitter request @%s: %w", account, err)
	}
	req.Header.Set("User-Agent", "creatorboard/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		return Creator{}, fmt.Errorf("fetch nitter @%s: %w", account, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Creator{}, fmt.Errorf("nitter @%s status %d", account, resp.StatusCode)
	}

	feed, err := n.parser.Parse(resp.Body)
	if err != nil {
		return Creator{}, fmt.Errorf("parse nitter @%s: %w", account, err)
	}

	c := Creator{
		ID:     "nitter:" + strings.ToLower(account),
		Handle: "@" + account,
		Source: SourceNitter,
		Posts:  []Post{},
	}
	if feed.Image != nil {
		c.AvatarURL = feed.Image.URL
	}

	var cutoff time.Time
	if n.maxAge > 0 {
		cutoff = time.Now().Add(-n.maxAge)
	}

	for _, entry := range feed.Items {
		var published time.Time
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		}
		if !cutoff.IsZero() && !published.IsZero() && published.Before(cutoff) {
			continue
		}

		text := strings.TrimSpace(entry.Title)
		id := statusID(entry.Link)
		if id == "" {
			id = entry.GUID
		}

		c.Posts = append(c.Posts, Post{
			ID:        id,
			AuthorID:  c.ID,
			Text:      text,
			IsRetweet: retweetPrefix.MatchString(text) || isNitterRetweet(entry, account),
			CreatedAt: published,
		})
	}

	return c, nil
}

// isNitterRetweet detects entries whose author differs from the feed owner.
func isNitterRetweet(entry *gofeed.Item, account string) bool {
	if entry.DublinCoreExt == nil || len(entry.DublinCoreExt.Creator) == 0 {
		return false
	}
	creator := strings.TrimPrefix(entry.DublinCoreExt.Creator[0], "@")
	return creator != "" && !strings.EqualFold(creator, account)
}

// statusID extracts the numeric id from a .../status/<id>#m link.
func statusID(link string) string {
	i := strings.Index(link, "/status/")
	if i < 0 {
		return ""
	}
	id := link[i+len("/status/"):]
	if j := strings.IndexAny(id, "#?/"); j >= 0 {
		id = id[:j]
	}
	return id
}
