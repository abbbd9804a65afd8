package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestXAPI(baseURL string) *XAPI {
	return NewXAPI(XConfig{
		BaseURL:     baseURL,
		BearerToken: "test",
		RPS:         1000,
		Burst:       100,
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
	}, nil)
}

const lookupBody = `{
  "data": [
    {"id": "11", "text": "Why Minara works", "author_id": "u1", "created_at": "2026-02-01T10:00:00Z",
     "attachments": {"media_keys": ["m1", "m2"]},
     "public_metrics": {"like_count": 10, "reply_count": 2, "retweet_count": 3, "quote_count": 1, "impression_count": 900}},
    {"id": "12", "text": "RT @other: Minara thread", "author_id": "u2",
     "public_metrics": {"like_count": 0}},
    {"id": "13", "text": "Second post", "author_id": "u1"},
    {"id": "14", "text": "orphan", "author_id": "u9"}
  ],
  "includes": {
    "users": [
      {"id": "u1", "username": "alpha", "profile_image_url": "https://pbs/alpha.png", "public_metrics": {"followers_count": 1200}},
      {"id": "u2", "username": "beta", "public_metrics": {"followers_count": 50}}
    ],
    "media": [
      {"media_key": "m1", "type": "photo", "url": "https://pbs/1.jpg", "alt_text": "pnl chart"},
      {"media_key": "m2", "type": "video", "preview_image_url": "https://pbs/2.jpg"}
    ]
  }
}`

func TestLookupTweetsMapsAndGroups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tweets", r.URL.Path)
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		assert.Equal(t, xExpansions, r.URL.Query().Get("expansions"))
		_, _ = w.Write([]byte(lookupBody))
	}))
	defer srv.Close()

	lookup, err := newTestXAPI(srv.URL).LookupTweets(context.Background(), []string{"11", "12", "13", "14", "15"})
	require.NoError(t, err)

	assert.Len(t, lookup.Fetched, 4)
	assert.False(t, lookup.Fetched["15"])
	require.Len(t, lookup.Creators, 2)

	alpha := lookup.Creators[0]
	assert.Equal(t, "u1", alpha.ID)
	assert.Equal(t, "@alpha", alpha.Handle)
	assert.Equal(t, 1200, alpha.Followers)
	assert.Equal(t, "https://pbs/alpha.png", alpha.AvatarURL)
	require.Len(t, alpha.Posts, 2)

	p := alpha.Posts[0]
	assert.Equal(t, 900, p.Views)
	assert.Equal(t, 1, p.Quotes)
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), p.CreatedAt)
	require.NotNil(t, p.Media)
	assert.Equal(t, 1, p.Media.ImageCount)
	assert.Equal(t, 1, p.Media.VideoCount)
	assert.Equal(t, "pnl chart", p.Media.AltTextSummary)
	assert.Equal(t, "https://pbs/2.jpg", p.Media.Items[1].URL)
	assert.Nil(t, alpha.Posts[1].Media)

	assert.True(t, lookup.Creators[1].Posts[0].IsRetweet)
	assert.False(t, p.IsRetweet)
}

func TestLookupTweetsBatches(t *testing.T) {
	var batches []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batches = append(batches, len(strings.Split(r.URL.Query().Get("ids"), ",")))
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	ids := make([]string, 250)
	for i := range ids {
		ids[i] = fmt.Sprint(i + 1)
	}
	lookup, err := newTestXAPI(srv.URL).LookupTweets(context.Background(), ids)
	require.NoError(t, err)
	assert.Empty(t, lookup.Creators)
	assert.Equal(t, []int{100, 100, 50}, batches)
}

func TestXAPIRetriesRateLimit(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	_, err := newTestXAPI(srv.URL).LookupTweets(context.Background(), []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestXAPIRetriesWaitOnLimiter(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	x := NewXAPI(XConfig{
		BaseURL:     srv.URL,
		RPS:         0.001,
		Burst:       2,
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := x.LookupTweets(ctx, []string{"1"})
	require.Error(t, err)
	assert.Equal(t, int32(2), attempts.Load(), "third attempt has no token left")
}

func TestXAPIStatusErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		if r.URL.Query().Get("ids") == "500" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"title":"Unauthorized"}`))
	}))
	defer srv.Close()

	x := newTestXAPI(srv.URL)

	_, err := x.LookupTweets(context.Background(), []string{"1"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Contains(t, se.Body, "Unauthorized")
	assert.Equal(t, int32(1), attempts.Load(), "4xx is not retried")

	attempts.Store(0)
	_, err = x.LookupTweets(context.Background(), []string{"500"})
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestCollectUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/by/username/alpha":
			_, _ = w.Write([]byte(`{"data": {"id": "u1", "username": "alpha", "public_metrics": {"followers_count": 777}}}`))
		case "/users/u1/tweets":
			assert.Equal(t, "50", r.URL.Query().Get("max_results"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{"id": "1", "text": "Minara notes"},
					{"id": "2", "text": "more Minara notes"},
				},
			})
		case "/users/by/username/ghost":
			_, _ = w.Write([]byte(`{"errors": [{"title": "Not Found Error"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	x := newTestXAPI(srv.URL)
	x.accounts = []string{"@alpha", "ghost"}

	c, err := x.CollectUser(context.Background(), "@alpha")
	require.NoError(t, err)
	assert.Equal(t, "@alpha", c.Handle)
	assert.Equal(t, 777, c.Followers)
	require.Len(t, c.Posts, 2)
	assert.Equal(t, "u1", c.Posts[0].AuthorID)

	creators, err := x.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
	require.Len(t, creators, 1)
	assert.Equal(t, SourceX, creators[0].Source)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryAfter("2", time.Millisecond))
	assert.Equal(t, time.Millisecond, retryAfter("", time.Millisecond))
	assert.Equal(t, time.Millisecond, retryAfter("soon", time.Millisecond))
}
