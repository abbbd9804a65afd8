package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/elonfeng/creatorboard/internal/metrics"
)

const (
	xLookupBatch = 100

	xTweetFields = "id,text,author_id,created_at,attachments,public_metrics"
	xUserFields  = "id,username,public_metrics,profile_image_url"
	xMediaFields = "media_key,type,url,preview_image_url,alt_text,width,height"
	xExpansions  = "author_id,attachments.media_keys"
)

var retweetPrefix = regexp.MustCompile(`(?i)^RT\s@`)

// XConfig configures the X API v2 client.
type XConfig struct {
	BaseURL     string
	BearerToken string
	Accounts    []string
	MaxResults  int
	RPS         float64
	Burst       int
	MaxAttempts int
	BaseBackoff time.Duration
}

// StatusError is returned when the X API answers with a non-retryable
// error status, or keeps failing after all retries.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("x api %s status %d: %s", e.Endpoint, e.Code, e.Body)
}

// XAPI collects creators and posts from the X API v2 with a bearer token.
type XAPI struct {
	baseURL     string
	bearerToken string
	accounts    []string
	maxResults  int
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
	log         *logrus.Logger
}

// NewXAPI creates an X API client.
func NewXAPI(cfg XConfig, log *logrus.Logger) *XAPI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twitter.com/2"
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 500 * time.Millisecond
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 50
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &XAPI{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		bearerToken: cfg.BearerToken,
		accounts:    cfg.Accounts,
		maxResults:  clampInt(cfg.MaxResults, 5, 100),
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
		log:         log,
	}
}

func (x *XAPI) Name() SourceType { return SourceX }

// Collect fetches every configured account. Failing accounts are logged
// and skipped; their errors are joined into the returned error.
func (x *XAPI) Collect(ctx context.Context) ([]Creator, error) {
	var creators []Creator
	var errs []error
	for _, account := range x.accounts {
		c, err := x.CollectUser(ctx, account)
		if err != nil {
			x.log.WithError(err).WithField("account", account).Warn("x collect failed")
			errs = append(errs, err)
			continue
		}
		creators = append(creators, c)
	}
	return creators, errors.Join(errs...)
}

// Lookup is the result of resolving a set of tweet IDs.
type Lookup struct {
	Creators []Creator
	// Fetched holds the IDs the API returned.
	Fetched map[string]bool
}

// LookupTweets resolves tweet IDs in batches of 100 and groups the tweets
// by author in first-seen order. Tweets whose author is missing from the
// expansions are dropped.
func (x *XAPI) LookupTweets(ctx context.Context, ids []string) (*Lookup, error) {
	var resp xTweetsResponse
	for start := 0; start < len(ids); start += xLookupBatch {
		end := min(start+xLookupBatch, len(ids))
		q := url.Values{}
		q.Set("ids", strings.Join(ids[start:end], ","))
		q.Set("expansions", xExpansions)
		q.Set("tweet.fields", xTweetFields)
		q.Set("user.fields", xUserFields)
		q.Set("media.fields", xMediaFields)

		var batch xTweetsResponse
		if err := x.get(ctx, "/tweets", q, &batch); err != nil {
			return nil, fmt.Errorf("lookup tweets: %w", err)
		}
		resp.Data = append(resp.Data, batch.Data...)
		resp.Includes.Users = append(resp.Includes.Users, batch.Includes.Users...)
		resp.Includes.Media = append(resp.Includes.Media, batch.Includes.Media...)
	}

	out := &Lookup{Fetched: make(map[string]bool, len(resp.Data))}
	for _, t := range resp.Data {
		out.Fetched[t.ID] = true
	}
	out.Creators = resp.creators()
	return out, nil
}

// CollectUser fetches a user profile and their recent tweets.
func (x *XAPI) CollectUser(ctx context.Context, username string) (Creator, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return Creator{}, errors.New("empty username")
	}

	var user struct {
		Data xUser `json:"data"`
	}
	q := url.Values{}
	q.Set("user.fields", xUserFields)
	if err := x.get(ctx, "/users/by/username/"+url.PathEscape(username), q, &user); err != nil {
		return Creator{}, fmt.Errorf("get user @%s: %w", username, err)
	}
	if user.Data.ID == "" {
		return Creator{}, fmt.Errorf("user @%s not found", username)
	}

	q = url.Values{}
	q.Set("max_results", strconv.Itoa(x.maxResults))
	q.Set("expansions", "attachments.media_keys")
	q.Set("tweet.fields", xTweetFields)
	q.Set("media.fields", xMediaFields)
	var tweets xTweetsResponse
	if err := x.get(ctx, "/users/"+url.PathEscape(user.Data.ID)+"/tweets", q, &tweets); err != nil {
		return Creator{}, fmt.Errorf("get tweets @%s: %w", username, err)
	}

	tweets.Includes.Users = append(tweets.Includes.Users, user.Data)
	for i := range tweets.Data {
		if tweets.Data[i].AuthorID == "" {
			tweets.Data[i].AuthorID = user.Data.ID
		}
	}
	creators := tweets.creators()
	if len(creators) == 0 {
		return user.Data.creator(), nil
	}
	return creators[0], nil
}

func (x *XAPI) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	u := x.baseURL + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if x.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+x.bearerToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := x.doWithRetry(ctx, endpoint, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

// doWithRetry retries 429 and 5xx answers and transport errors with
// exponential backoff, honoring Retry-After when present. Every attempt
// takes a limiter token.
func (x *XAPI) doWithRetry(ctx context.Context, endpoint string, req *http.Request) (*http.Response, error) {
	backoff := x.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= x.maxAttempts; attempt++ {
		if err := x.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		if attempt > 1 {
			metrics.IncAPIRetry(endpointLabel(endpoint))
		}
		resp, err := x.httpClient.Do(req.Clone(ctx))
		if err == nil {
			if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
				return resp, nil
			}
			lastErr = &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: http.StatusText(resp.StatusCode)}
			wait := retryAfter(resp.Header.Get("Retry-After"), backoff)
			_ = resp.Body.Close()
			if attempt == x.maxAttempts {
				break
			}
			if err := sleep(ctx, jitter(wait)); err != nil {
				return nil, err
			}
			backoff *= 2
			continue
		}
		lastErr = err
		if attempt == x.maxAttempts {
			break
		}
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", x.maxAttempts, lastErr)
}

func retryAfter(header string, fallback time.Duration) time.Duration {
	if header == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return fallback
}

// jitter spreads wait by +/-20%.
func jitter(wait time.Duration) time.Duration {
	j := time.Duration(float64(wait) * 0.2)
	if j <= 0 {
		return wait
	}
	return wait - j + time.Duration(rand.Int64N(int64(2*j)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// endpointLabel drops path parameters so metric labels stay bounded.
func endpointLabel(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "/users/by/username/"):
		return "/users/by/username"
	case strings.HasPrefix(endpoint, "/users/"):
		return "/users/tweets"
	}
	return endpoint
}

type xTweetsResponse struct {
	Data     []xTweet `json:"data"`
	Includes struct {
		Users []xUser  `json:"users"`
		Media []xMedia `json:"media"`
	} `json:"includes"`
}

type xTweet struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	AuthorID    string    `json:"author_id"`
	CreatedAt   time.Time `json:"created_at"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
	PublicMetrics struct {
		LikeCount       int `json:"like_count"`
		ImpressionCount int `json:"impression_count"`
		ReplyCount      int `json:"reply_count"`
		RetweetCount    int `json:"retweet_count"`
		QuoteCount      int `json:"quote_count"`
	} `json:"public_metrics"`
}

type xUser struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
	PublicMetrics   struct {
		FollowersCount int `json:"followers_count"`
	} `json:"public_metrics"`
}

type xMedia struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	PreviewImageURL string `json:"preview_image_url"`
	AltText         string `json:"alt_text"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
}

func (u xUser) creator() Creator {
	return Creator{
		ID:        u.ID,
		Handle:    "@" + u.Username,
		Followers: u.PublicMetrics.FollowersCount,
		AvatarURL: u.ProfileImageURL,
		Source:    SourceX,
		Posts:     []Post{},
	}
}

func (r xTweetsResponse) creators() []Creator {
	users := make(map[string]xUser, len(r.Includes.Users))
	for _, u := range r.Includes.Users {
		users[u.ID] = u
	}
	media := make(map[string]xMedia, len(r.Includes.Media))
	for _, m := range r.Includes.Media {
		media[m.MediaKey] = m
	}

	var out []Creator
	index := make(map[string]int)
	for _, t := range r.Data {
		author, ok := users[t.AuthorID]
		if !ok {
			continue
		}
		i, seen := index[author.ID]
		if !seen {
			i = len(out)
			index[author.ID] = i
			out = append(out, author.creator())
		}
		out[i].Posts = append(out[i].Posts, t.post(media))
	}
	return out
}

func (t xTweet) post(media map[string]xMedia) Post {
	p := Post{
		ID:        t.ID,
		AuthorID:  t.AuthorID,
		Text:      t.Text,
		IsRetweet: retweetPrefix.MatchString(t.Text),
		Likes:     t.PublicMetrics.LikeCount,
		Replies:   t.PublicMetrics.ReplyCount,
		Retweets:  t.PublicMetrics.RetweetCount,
		Quotes:    t.PublicMetrics.QuoteCount,
		Views:     t.PublicMetrics.ImpressionCount,
		CreatedAt: t.CreatedAt,
	}

	var items []MediaItem
	for _, key := range t.Attachments.MediaKeys {
		m, ok := media[key]
		if !ok {
			continue
		}
		u := m.URL
		if u == "" {
			u = m.PreviewImageURL
		}
		items = append(items, MediaItem{
			MediaKey: m.MediaKey,
			Type:     m.Type,
			URL:      u,
			AltText:  m.AltText,
			Width:    m.Width,
			Height:   m.Height,
		})
	}
	if len(items) > 0 {
		p.Media = rawMedia(items)
	}
	return p
}

// rawMedia describes attachments before any media analysis ran.
func rawMedia(items []MediaItem) *MediaInsights {
	m := &MediaInsights{
		HasMedia:   true,
		MediaCount: len(items),
		Tags:       []string{},
		PnLBucket:  PnLNone,
		Items:      items,
	}
	var alts []string
	for _, it := range items {
		if it.Type == "photo" {
			m.ImageCount++
		} else {
			m.VideoCount++
		}
		if s := strings.TrimSpace(it.AltText); s != "" {
			alts = append(alts, s)
		}
	}
	m.AltTextSummary = strings.Join(alts, " | ")
	return m
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
