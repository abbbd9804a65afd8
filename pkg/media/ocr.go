package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/elonfeng/creatorboard/internal/metrics"
)

const (
	DefaultOCRTimeout = 8 * time.Second
	maxOCRTextRunes   = 500
)

// Result is the recognised text of one image.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// OCR recognises text in the image at imageURL.
type OCR interface {
	Recognize(ctx context.Context, imageURL string) (Result, error)
}

// HTTPOCR calls an external OCR service. The service receives
// {"url": ..., "lang": ...} and answers {"text": ..., "confidence": ...}.
type HTTPOCR struct {
	endpoint string
	lang     string
	client   *http.Client
}

// NewHTTPOCR creates an OCR client for the service at endpoint.
func NewHTTPOCR(endpoint, lang string) *HTTPOCR {
	if lang == "" {
		lang = "eng"
	}
	return &HTTPOCR{
		endpoint: endpoint,
		lang:     lang,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (o *HTTPOCR) Recognize(ctx context.Context, imageURL string) (Result, error) {
	body, err := json.Marshal(map[string]string{"url": imageURL, "lang": o.lang})
	if err != nil {
		return Result{}, fmt.Errorf("marshal ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("ocr returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("decode ocr response: %w", err)
	}
	res.Text = normalizeText(res.Text)
	res.Confidence = math.Round(res.Confidence*100) / 100
	return res, nil
}

func normalizeText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxOCRTextRunes {
		s = string(r[:maxOCRTextRunes])
	}
	return s
}

// CachedOCR memoises successful recognitions by image URL. Concurrent
// requests for one URL share a single upstream call, and every upstream
// call is bounded by the timeout.
type CachedOCR struct {
	next    OCR
	timeout time.Duration

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]Result
}

// NewCachedOCR wraps next with a cache and per-call timeout.
func NewCachedOCR(next OCR, timeout time.Duration) *CachedOCR {
	if timeout <= 0 {
		timeout = DefaultOCRTimeout
	}
	return &CachedOCR{next: next, timeout: timeout, cache: make(map[string]Result)}
}

// Lookup returns the cached result for imageURL, if any.
func (c *CachedOCR) Lookup(imageURL string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.cache[imageURL]
	return res, ok
}

func (c *CachedOCR) Recognize(ctx context.Context, imageURL string) (Result, error) {
	if res, ok := c.Lookup(imageURL); ok {
		metrics.IncOCR("hit")
		return res, nil
	}

	v, err, _ := c.group.Do(imageURL, func() (any, error) {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		res, err := c.next.Recognize(cctx, imageURL)
		if err != nil {
			if cctx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("ocr timed out after %s", c.timeout)
			}
			return nil, err
		}
		c.mu.Lock()
		c.cache[imageURL] = res
		c.mu.Unlock()
		return res, nil
	})
	if err != nil {
		metrics.IncOCR("error")
		return Result{}, err
	}
	metrics.IncOCR("ok")
	return v.(Result), nil
}
