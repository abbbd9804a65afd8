package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nitterFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>alpha / @alpha</title>
    <link>https://nitter.example/alpha</link>
    <image><url>https://nitter.example/pic/alpha.jpg</url><title>alpha</title></image>
    <item>
      <title>Why Minara is building an execution layer</title>
      <dc:creator>@alpha</dc:creator>
      <link>https://nitter.example/alpha/status/1001#m</link>
      <guid>https://nitter.example/alpha/status/1001#m</guid>
      <pubDate>Sun, 01 Feb 2026 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>RT by @alpha: Minara thread from a friend</title>
      <dc:creator>@friend</dc:creator>
      <link>https://nitter.example/friend/status/1002#m</link>
      <guid>https://nitter.example/friend/status/1002#m</guid>
      <pubDate>Sat, 31 Jan 2026 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestNitterCollect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/alpha/rss" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(nitterFeed))
	}))
	defer srv.Close()

	n := NewNitter(srv.URL, []string{"@alpha", "missing"}, 0, nil)
	creators, err := n.Collect(context.Background())
	require.Error(t, err, "missing account is reported")
	require.Len(t, creators, 1)

	c := creators[0]
	assert.Equal(t, "nitter:alpha", c.ID)
	assert.Equal(t, "@alpha", c.Handle)
	assert.Equal(t, "https://nitter.example/pic/alpha.jpg", c.AvatarURL)
	assert.Equal(t, SourceNitter, c.Source)
	require.Len(t, c.Posts, 2)

	assert.Equal(t, "1001", c.Posts[0].ID)
	assert.False(t, c.Posts[0].IsRetweet)
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), c.Posts[0].CreatedAt)
	assert.Equal(t, "1002", c.Posts[1].ID)
	assert.True(t, c.Posts[1].IsRetweet)
}

func TestStatusID(t *testing.T) {
	assert.Equal(t, "1001", statusID("https://nitter.net/a/status/1001#m"))
	assert.Equal(t, "42", statusID("https://x.com/a/status/42?s=20"))
	assert.Equal(t, "", statusID("https://nitter.net/a"))
}
