package score

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultConfigVersion tags the built-in keyword set.
const DefaultConfigVersion = "2026-02-v1"

// Config holds every keyword list and tunable the engine reads.
// It is passed to New and never mutated afterwards.
type Config struct {
	Version string `yaml:"version" json:"version"`

	// Subject is the tracked topic. Keywords match as case-insensitive
	// substrings, NativeVariants (non-Latin spellings) match exactly.
	Subject SubjectConfig `yaml:"subject" json:"subject"`

	Depth     DepthKeywords   `yaml:"depth" json:"depth"`
	Sentiment SentimentConfig `yaml:"sentiment" json:"sentiment"`

	// LowEffortPatterns are regular expressions evaluated against the
	// trimmed, lower-cased post text.
	LowEffortPatterns []string `yaml:"low_effort_patterns" json:"lowEffortPatterns"`

	HalfLifeDays       float64 `yaml:"half_life_days" json:"halfLifeDays"`
	DuplicateThreshold float64 `yaml:"duplicate_threshold" json:"duplicateThreshold"`
	BurstWindowMinutes int     `yaml:"burst_window_minutes" json:"burstWindowMinutes"`
	BurstLimit         int     `yaml:"burst_limit" json:"burstLimit"`

	Weights Weights `yaml:"weights" json:"weights"`
}

// SubjectConfig describes the tracked subject.
type SubjectConfig struct {
	Keywords       []string `yaml:"keywords" json:"keywords"`
	NativeVariants []string `yaml:"native_variants" json:"nativeVariants"`
}

// DepthKeywords are the four keyword families of the depth signal.
type DepthKeywords struct {
	Thesis    []string `yaml:"thesis" json:"thesis"`
	Narrative []string `yaml:"narrative" json:"narrative"`
	Logic     []string `yaml:"logic" json:"logic"`
	Thread    []string `yaml:"thread" json:"thread"`
}

// SentimentConfig lists the excitement and loss/fear keywords.
type SentimentConfig struct {
	Positive []string `yaml:"positive" json:"positive"`
	Negative []string `yaml:"negative" json:"negative"`
}

// Weights are the blend factors of the content and total scores.
type Weights struct {
	Originality float64 `yaml:"originality" json:"originality"`
	Insight     float64 `yaml:"insight" json:"insight"`
	Engagement  float64 `yaml:"engagement" json:"engagement"`
	Influence   float64 `yaml:"influence" json:"influence"`
	Content     float64 `yaml:"content" json:"content"`
	Derivative  float64 `yaml:"derivative" json:"derivative"`
}

// DefaultConfig returns the built-in keyword set and tunables.
func DefaultConfig() Config {
	return Config{
		Version: DefaultConfigVersion,
		Subject: SubjectConfig{
			Keywords:       []string{"minara"},
			NativeVariants: []string{"米娜拉"},
		},
		Depth: DepthKeywords{
			Thesis:    []string{"为什么", "thesis", "framework", "methodology"},
			Narrative: []string{"narrative", "世界观", "叙事"},
			Logic:     []string{"逻辑", "analysis", "causal", "因果", "推导"},
			Thread:    []string{"thread", "🧵", "长文", "展开聊"},
		},
		Sentiment: SentimentConfig{
			Positive: []string{"🚀", "moon", "win", "赚", "爽", "机会", "稳", "happy", "nice", "cool", "lol"},
			Negative: []string{"跌", "亏", "risk", "怕", "崩", "爆仓", "loss", "rip"},
		},
		LowEffortPatterns: []string{
			`^(gm|gn|gmgm|wagmi|lfg|ngmi)[\s!.~]*$`,
			`^(gm|gn)\s+\S+[\s!.~]*$`,
			`\bwagmi\b`,
			`\bto the moon\b`,
			`^\S*\s*moon[\s!🚀]*$`,
			`\bretweet (please|pls|plz)\b`,
			`^(rt|like) (please|pls|plz)[\s!]*$`,
			`^[\p{So}\p{Sk}\x{FE0F}\x{200D}\s!?.]+$`,
			`再冲一波`,
			`冲{2,}`,
			`起飞`,
			`梭哈`,
			`^(冲|冲冲冲|上车|发财)[！!\s]*$`,
		},
		HalfLifeDays:       30,
		DuplicateThreshold: 0.7,
		BurstWindowMinutes: 30,
		BurstLimit:         5,
		Weights: Weights{
			Originality: 0.25,
			Insight:     0.35,
			Engagement:  0.25,
			Influence:   0.15,
			Content:     0.6,
			Derivative:  0.4,
		},
	}
}

// compiledConfig is Config with lower-cased keywords and compiled patterns.
type compiledConfig struct {
	Config
	subjectLower []string
	lowEffort    []*regexp.Regexp
}

func compile(cfg Config) (*compiledConfig, error) {
	def := DefaultConfig()
	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	if cfg.HalfLifeDays <= 0 {
		cfg.HalfLifeDays = def.HalfLifeDays
	}
	if cfg.DuplicateThreshold <= 0 || cfg.DuplicateThreshold > 1 {
		cfg.DuplicateThreshold = def.DuplicateThreshold
	}
	if cfg.BurstWindowMinutes <= 0 {
		cfg.BurstWindowMinutes = def.BurstWindowMinutes
	}
	if cfg.BurstLimit <= 0 {
		cfg.BurstLimit = def.BurstLimit
	}
	w := cfg.Weights
	if w.Originality+w.Insight+w.Engagement+w.Influence == 0 {
		w.Originality, w.Insight, w.Engagement, w.Influence =
			def.Weights.Originality, def.Weights.Insight, def.Weights.Engagement, def.Weights.Influence
	}
	if w.Content+w.Derivative == 0 {
		w.Content, w.Derivative = def.Weights.Content, def.Weights.Derivative
	}
	cfg.Weights = w

	if len(cfg.Subject.Keywords) == 0 && len(cfg.Subject.NativeVariants) == 0 {
		return nil, fmt.Errorf("config %s: no subject keywords", cfg.Version)
	}

	cc := &compiledConfig{Config: cfg}
	for _, kw := range cfg.Subject.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			cc.subjectLower = append(cc.subjectLower, strings.ToLower(kw))
		}
	}
	for _, p := range cfg.LowEffortPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile low-effort pattern %q: %w", p, err)
		}
		cc.lowEffort = append(cc.lowEffort, re)
	}
	return cc, nil
}
