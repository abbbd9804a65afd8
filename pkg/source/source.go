package source

import (
	"context"
	"time"
)

// SourceType identifies which collector produced a creator snapshot.
type SourceType string

const (
	SourceX      SourceType = "x"
	SourceNitter SourceType = "nitter"
	SourceFile   SourceType = "file"
	SourceDemo   SourceType = "demo"
)

// PnLBucket is the coarse size class of a profit figure read from media.
type PnLBucket string

const (
	PnLNone      PnLBucket = "none"
	PnLUnder100  PnLBucket = "lt100"
	PnL100To500  PnLBucket = "100_500"
	PnL500To1000 PnLBucket = "500_1000"
	PnLOver1000  PnLBucket = "gte1000"
)

// Score returns the evidence score attached to a bucket.
func (b PnLBucket) Score() float64 {
	switch b {
	case PnLUnder100:
		return 25
	case PnL100To500:
		return 50
	case PnL500To1000:
		return 75
	case PnLOver1000:
		return 100
	}
	return 0
}

// MediaItem is one attachment of a post as reported by the platform,
// optionally annotated with OCR output.
type MediaItem struct {
	MediaKey      string  `json:"mediaKey"`
	Type          string  `json:"type"`
	URL           string  `json:"url"`
	AltText       string  `json:"altText,omitempty"`
	OCRText       string  `json:"ocrText,omitempty"`
	OCRConfidence float64 `json:"ocrConfidence,omitempty"`
	Width         int     `json:"width,omitempty"`
	Height        int     `json:"height,omitempty"`
	Note          string  `json:"note,omitempty"`
}

// MediaInsights is the annotation an external media-analysis step attaches
// to a post. The zero value means "no media".
type MediaInsights struct {
	HasMedia       bool        `json:"hasMedia"`
	MediaCount     int         `json:"mediaCount"`
	ImageCount     int         `json:"imageCount"`
	VideoCount     int         `json:"videoCount"`
	AltTextSummary string      `json:"altTextSummary"`
	OCRSummary     string      `json:"ocrSummary"`
	DepthBoost     float64     `json:"mediaDepthBoost"`
	InfluenceBoost float64     `json:"mediaInfluenceBoost"`
	Tags           []string    `json:"mediaTags"`
	PnLUSD         *float64    `json:"pnlUSD,omitempty"`
	PnLBucket      PnLBucket   `json:"pnlBucket"`
	PnLScore       float64     `json:"pnlEvidenceScore"`
	Items          []MediaItem `json:"items,omitempty"`
}

// HasPnLEvidence reports whether the media carried a positive profit figure.
func (m MediaInsights) HasPnLEvidence() bool {
	return m.PnLBucket != "" && m.PnLBucket != PnLNone && m.PnLScore > 0
}

// Text returns the media-derived text used for topical matching.
func (m MediaInsights) Text() string {
	text := m.AltTextSummary + " " + m.OCRSummary
	for _, tag := range m.Tags {
		text += " " + tag
	}
	return text
}

// Post is a single post in a creator's history.
type Post struct {
	ID        string         `json:"id"`
	AuthorID  string         `json:"authorId,omitempty"`
	Text      string         `json:"text"`
	IsRetweet bool           `json:"isRetweet"`
	Likes     int            `json:"likes"`
	Replies   int            `json:"replies"`
	Retweets  int            `json:"retweets"`
	Quotes    int            `json:"quotes"`
	Views     int            `json:"views,omitempty"`
	CreatedAt time.Time      `json:"createdAt,omitzero"`
	Media     *MediaInsights `json:"mediaInsights,omitempty"`
}

// MediaOrEmpty returns the post's media insights or the empty record.
func (p Post) MediaOrEmpty() MediaInsights {
	if p.Media == nil {
		return MediaInsights{PnLBucket: PnLNone}
	}
	return *p.Media
}

// Creator is an account together with its ordered post history.
type Creator struct {
	ID        string     `json:"id"`
	Handle    string     `json:"handle"`
	Followers int        `json:"followers"`
	AvatarURL string     `json:"profileImageUrl,omitempty"`
	Source    SourceType `json:"source,omitempty"`
	Posts     []Post     `json:"tweets"`
}

// Clone returns a deep copy so scoring never observes later mutation.
func (c Creator) Clone() Creator {
	out := c
	out.Posts = make([]Post, len(c.Posts))
	for i, p := range c.Posts {
		if p.Media != nil {
			m := *p.Media
			m.Tags = append([]string(nil), p.Media.Tags...)
			m.Items = append([]MediaItem(nil), p.Media.Items...)
			if p.Media.PnLUSD != nil {
				usd := *p.Media.PnLUSD
				m.PnLUSD = &usd
			}
			p.Media = &m
		}
		out.Posts[i] = p
	}
	return out
}

// Source is the interface every collector must implement.
type Source interface {
	Name() SourceType
	Collect(ctx context.Context) ([]Creator, error)
}

// AllSourceTypes returns all known source types.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceX,
		SourceNitter,
		SourceFile,
		SourceDemo,
	}
}

// MergeCreators groups creators by ID, appending posts of later snapshots
// and keeping the latest follower count. Input order is preserved.
func MergeCreators(groups ...[]Creator) []Creator {
	var out []Creator
	index := make(map[string]int)
	for _, group := range groups {
		for _, c := range group {
			i, ok := index[c.ID]
			if !ok {
				index[c.ID] = len(out)
				out = append(out, c.Clone())
				continue
			}
			seen := make(map[string]bool, len(out[i].Posts))
			for _, p := range out[i].Posts {
				seen[p.ID] = true
			}
			for _, p := range c.Clone().Posts {
				if !seen[p.ID] {
					out[i].Posts = append(out[i].Posts, p)
				}
			}
			if c.Followers > 0 {
				out[i].Followers = c.Followers
			}
			if c.AvatarURL != "" {
				out[i].AvatarURL = c.AvatarURL
			}
		}
	}
	return out
}
