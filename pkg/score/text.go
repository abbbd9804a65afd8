package score

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Spam flag increments. The sum is clamped to [0,1].
const (
	ultraShortWeight  = 0.30
	emojiHeavyWeight  = 0.20
	allCapsWeight     = 0.15
	lowEffortWeight   = 0.25
	repetitionWeight  = 0.10
	ultraShortRunes   = 15
	allCapsMinLetters = 6
	repetitionRun     = 5
)

var nonTokenChars = regexp.MustCompile(`[^\w\x{4e00}-\x{9fff}\s]`)

// SpamSignals is the result of the spam heuristics for one text.
type SpamSignals struct {
	SpamScore           float64 `json:"spamScore"`
	UltraShort          bool    `json:"ultraShort"`
	EmojiHeavy          bool    `json:"emojiHeavy"`
	AllCaps             bool    `json:"allCaps"`
	LowEffort           bool    `json:"lowEffort"`
	ExcessiveRepetition bool    `json:"excessiveRepetition"`
}

// Tokenize lower-cases text, blanks out everything but word characters,
// CJK ideographs and whitespace, and drops single-rune tokens.
func Tokenize(text string) []string {
	cleaned := nonTokenChars.ReplaceAllString(strings.ToLower(text), " ")
	var tokens []string
	for _, f := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// EstimateSentiment scores text in [-3,3]: +1 per positive keyword present,
// -1 per negative keyword present.
func (e *Engine) EstimateSentiment(text string) int {
	return estimateSentiment(text, e.cfg.Sentiment)
}

// EstimateSentiment uses the default keyword sets.
func EstimateSentiment(text string) int {
	return estimateSentiment(text, DefaultConfig().Sentiment)
}

func estimateSentiment(text string, kw SentimentConfig) int {
	lower := strings.ToLower(text)
	score := 0
	for _, w := range kw.Positive {
		if strings.Contains(lower, strings.ToLower(w)) {
			score++
		}
	}
	for _, w := range kw.Negative {
		if strings.Contains(lower, strings.ToLower(w)) {
			score--
		}
	}
	return clampInt(score, -3, 3)
}

// DetectSpamSignals runs the five spam heuristics against text.
func (e *Engine) DetectSpamSignals(text string) SpamSignals {
	trimmed := strings.TrimSpace(text)
	s := SpamSignals{
		UltraShort:          utf8.RuneCountInString(trimmed) < ultraShortRunes,
		EmojiHeavy:          isEmojiHeavy(trimmed),
		AllCaps:             isAllCaps(trimmed),
		LowEffort:           e.isLowEffort(trimmed),
		ExcessiveRepetition: hasRepetition(trimmed, repetitionRun),
	}
	if s.UltraShort {
		s.SpamScore += ultraShortWeight
	}
	if s.EmojiHeavy {
		s.SpamScore += emojiHeavyWeight
	}
	if s.AllCaps {
		s.SpamScore += allCapsWeight
	}
	if s.LowEffort {
		s.SpamScore += lowEffortWeight
	}
	if s.ExcessiveRepetition {
		s.SpamScore += repetitionWeight
	}
	s.SpamScore = clamp(s.SpamScore, 0, 1)
	return s
}

func (e *Engine) isLowEffort(trimmed string) bool {
	lower := strings.ToLower(trimmed)
	for _, re := range e.cfg.lowEffort {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// isEmojiHeavy is true when more than half of the non-space runes are
// neither ASCII alphanumerics nor CJK ideographs. Blank text is not.
func isEmojiHeavy(trimmed string) bool {
	total, content := 0, 0
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isASCIIAlnum(r) || isCJK(r) {
			content++
		}
	}
	if total == 0 {
		return false
	}
	return 1-float64(content)/float64(total) > 0.5
}

func isAllCaps(trimmed string) bool {
	letters := 0
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= 'A' && r <= 'Z':
			letters++
		}
	}
	return letters >= allCapsMinLetters
}

func hasRepetition(text string, run int) bool {
	var prev rune
	count := 0
	for _, r := range text {
		if r == prev && count > 0 {
			count++
		} else {
			prev, count = r, 1
		}
		if count >= run {
			return true
		}
	}
	return false
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isCJK(r rune) bool {
	return r >= 0x4e00 && r <= 0x9fff
}

// containsAny reports whether lower contains any keyword, case-insensitively.
func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
