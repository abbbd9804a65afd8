// Package media derives MediaInsights from the attachments of a post.
package media

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/creatorboard/pkg/source"
)

// Media tags.
const (
	TagDataSnapshot = "data_snapshot"
	TagFanart       = "fanart"
	TagChart        = "chart"
)

const (
	DefaultMaxImagesPerPost = 2
	DefaultOCRBudget        = 3
)

var (
	dataSnapshotRe = regexp.MustCompile(`(?i)(profit|pnl|roi|return|收益|盈利|净值|回报|赚|win rate|胜率|strategy|entry|exit|\+\d+%|\+\$)`)
	fanartRe       = regexp.MustCompile(`(?i)(fan ?art|fanart|二创|同人|插画|illustration|artwork)`)
	chartRe        = regexp.MustCompile(`(?i)(chart|k线|candlestick|走势|交易记录|backtest)`)

	pnlSeparators = regexp.MustCompile(`[,，\s]+`)
	pnlRe         = regexp.MustCompile(`(?i)(?:pnl|profit|收益|盈利|净值|回报|赚)[^0-9\-+]{0,12}([+\-]?\$?\d+(?:\.\d+)?)(k|m)?`)
)

// DetectTags classifies media-derived text.
func DetectTags(text string) []string {
	tags := []string{}
	if dataSnapshotRe.MatchString(text) {
		tags = append(tags, TagDataSnapshot)
	}
	if fanartRe.MatchString(text) {
		tags = append(tags, TagFanart)
	}
	if chartRe.MatchString(text) {
		tags = append(tags, TagChart)
	}
	return tags
}

// DepthBoost rewards data snapshots, charts and OCR text volume. Max 0.6.
func DepthBoost(tags []string, ocrSummary string) float64 {
	v := 0.0
	if hasTag(tags, TagDataSnapshot) {
		v += 0.25
	}
	if hasTag(tags, TagChart) {
		v += 0.2
	}
	v += math.Min(0.25, float64(utf8.RuneCountInString(ocrSummary))/240*0.25)
	return math.Min(0.6, v)
}

// InfluenceBoost rewards fan art, data snapshots and media richness. Max 0.65.
func InfluenceBoost(tags []string, images, videos int) float64 {
	v := 0.0
	if hasTag(tags, TagFanart) {
		v += 0.3
	}
	if hasTag(tags, TagDataSnapshot) {
		v += 0.18
	}
	v += math.Min(0.2, float64(images)*0.08+float64(videos)*0.05)
	return math.Min(0.65, v)
}

// PnL is a profit figure read from media text.
type PnL struct {
	USD    *float64
	Bucket source.PnLBucket
	Score  float64
}

// ExtractPnL finds the largest positive amount that follows a profit
// keyword. k and m suffixes scale by thousand and million.
func ExtractPnL(text string) PnL {
	normalized := pnlSeparators.ReplaceAllString(text, " ")
	best := 0.0
	for _, m := range pnlRe.FindAllStringSubmatch(normalized, -1) {
		v, ok := parseMoney(m[1], m[2])
		if ok && v > best {
			best = v
		}
	}
	if best <= 0 {
		return PnL{Bucket: source.PnLNone}
	}

	usd := math.Round(best*100) / 100
	var bucket source.PnLBucket
	switch {
	case best < 100:
		bucket = source.PnLUnder100
	case best < 500:
		bucket = source.PnL100To500
	case best < 1000:
		bucket = source.PnL500To1000
	default:
		bucket = source.PnLOver1000
	}
	return PnL{USD: &usd, Bucket: bucket, Score: bucket.Score()}
}

func parseMoney(raw, unit string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, "$", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(unit) {
	case "k":
		v *= 1000
	case "m":
		v *= 1_000_000
	}
	return v, true
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Budget caps the number of OCR calls made while serving one request.
// It is not safe for concurrent use.
type Budget struct {
	remaining int
}

// NewBudget returns a budget allowing n OCR calls.
func NewBudget(n int) *Budget {
	return &Budget{remaining: n}
}

func (b *Budget) take() bool {
	if b == nil || b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

func (b *Budget) exhausted() bool {
	return b == nil || b.remaining <= 0
}

// Analyzer turns raw media items into MediaInsights, running OCR on images
// when an OCR backend is configured.
type Analyzer struct {
	ocr              OCR
	maxImagesPerPost int
	budget           int
	log              *logrus.Logger
}

// NewAnalyzer creates an analyzer. A nil ocr disables OCR.
func NewAnalyzer(ocr OCR, maxImagesPerPost, budget int, log *logrus.Logger) *Analyzer {
	if maxImagesPerPost <= 0 {
		maxImagesPerPost = DefaultMaxImagesPerPost
	}
	if budget <= 0 {
		budget = DefaultOCRBudget
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Analyzer{ocr: ocr, maxImagesPerPost: maxImagesPerPost, budget: budget, log: log}
}

// Annotate rebuilds the MediaInsights of every post that carries media
// items. All posts share one OCR budget.
func (a *Analyzer) Annotate(ctx context.Context, creators []source.Creator) {
	budget := NewBudget(a.budget)
	for ci := range creators {
		posts := creators[ci].Posts
		for pi := range posts {
			if posts[pi].Media == nil || len(posts[pi].Media.Items) == 0 {
				continue
			}
			insights := a.Build(ctx, posts[pi].Media.Items, budget)
			posts[pi].Media = &insights
		}
	}
}

// Build derives insights from the media items of one post. OCR problems
// are recorded as item notes and never fail the build.
func (a *Analyzer) Build(ctx context.Context, items []source.MediaItem, budget *Budget) source.MediaInsights {
	if len(items) == 0 {
		return Empty()
	}

	out := source.MediaInsights{HasMedia: true, MediaCount: len(items)}
	annotated := make([]source.MediaItem, 0, len(items))
	photos := 0
	for _, item := range items {
		item.OCRText, item.OCRConfidence, item.Note = "", 0, ""
		if item.Type != "photo" {
			out.VideoCount++
			item.Note = "non-image media, metadata only"
			annotated = append(annotated, item)
			continue
		}
		out.ImageCount++
		photos++
		a.recognize(ctx, &item, photos, budget)
		annotated = append(annotated, item)
	}
	out.Items = annotated

	var alts, ocrs []string
	for _, item := range annotated {
		if s := strings.TrimSpace(item.AltText); s != "" {
			alts = append(alts, s)
		}
		if s := strings.TrimSpace(item.OCRText); s != "" {
			ocrs = append(ocrs, s)
		}
	}
	out.AltTextSummary = strings.Join(alts, " | ")
	out.OCRSummary = strings.Join(ocrs, " | ")

	semantic := strings.ToLower(out.AltTextSummary + " " + out.OCRSummary)
	out.Tags = DetectTags(semantic)
	pnl := ExtractPnL(semantic)
	out.PnLUSD, out.PnLBucket, out.PnLScore = pnl.USD, pnl.Bucket, pnl.Score
	out.DepthBoost = round4(DepthBoost(out.Tags, out.OCRSummary))
	out.InfluenceBoost = round4(InfluenceBoost(out.Tags, out.ImageCount, out.VideoCount))
	return out
}

func (a *Analyzer) recognize(ctx context.Context, item *source.MediaItem, nth int, budget *Budget) {
	switch {
	case a.ocr == nil:
		item.Note = "OCR disabled"
		return
	case nth > a.maxImagesPerPost:
		item.Note = "per-post OCR image limit reached"
		return
	case item.URL == "":
		item.Note = "image URL missing"
		return
	case budget.exhausted():
		item.Note = "OCR budget exhausted"
		return
	}

	if c, ok := a.ocr.(*CachedOCR); ok {
		if res, hit := c.Lookup(item.URL); hit {
			item.OCRText, item.OCRConfidence = res.Text, res.Confidence
			item.Note = "OCR cache hit"
			return
		}
	}

	budget.take()
	res, err := a.ocr.Recognize(ctx, item.URL)
	if err != nil {
		a.log.WithError(err).WithField("url", item.URL).Debug("ocr failed")
		item.Note = "OCR failed: " + err.Error()
		return
	}
	item.OCRText, item.OCRConfidence = res.Text, res.Confidence
}

// Empty is the insight record of a post without media.
func Empty() source.MediaInsights {
	return source.MediaInsights{Tags: []string{}, PnLBucket: source.PnLNone}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
