package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultConfig(), WithClock(fixedNow))
	require.NoError(t, err)
	return e
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Minara is GREAT! a b 米娜拉, ok?")
	assert.Equal(t, []string{"minara", "is", "great", "米娜拉", "ok"}, tokens)

	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("!!! ?? a"))
}

func TestDetectSpamSignals(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name  string
		text  string
		score float64
		check func(t *testing.T, s SpamSignals)
	}{
		{
			name:  "clean long text",
			text:  "Minara helps me compare funding rates across venues",
			score: 0,
		},
		{
			name:  "gm is short and low effort",
			text:  "gm",
			score: 0.55,
			check: func(t *testing.T, s SpamSignals) {
				assert.True(t, s.UltraShort)
				assert.True(t, s.LowEffort)
			},
		},
		{
			name:  "all caps",
			text:  "THIS IS A VERY LOUD MESSAGE ABOUT MINARA",
			score: 0.15,
			check: func(t *testing.T, s SpamSignals) {
				assert.True(t, s.AllCaps)
			},
		},
		{
			name:  "repetition",
			text:  "Minara is sooooo good for research",
			score: 0.10,
			check: func(t *testing.T, s SpamSignals) {
				assert.True(t, s.ExcessiveRepetition)
			},
		},
		{
			name:  "emoji heavy",
			text:  "🚀🌕🔥💎🙌🎉🚀🌕🔥💎🙌🎉🚀🌕 ok",
			score: 0.20,
			check: func(t *testing.T, s SpamSignals) {
				assert.True(t, s.EmojiHeavy)
				assert.False(t, s.UltraShort)
				assert.False(t, s.ExcessiveRepetition)
				assert.False(t, s.LowEffort)
			},
		},
		{
			name:  "repeated emoji also trips repetition",
			text:  "🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀 ok",
			score: 0.30,
			check: func(t *testing.T, s SpamSignals) {
				assert.True(t, s.EmojiHeavy)
				assert.True(t, s.ExcessiveRepetition)
				assert.False(t, s.UltraShort)
			},
		},
		{
			name:  "empty text is only short",
			text:  "   ",
			score: 0.30,
			check: func(t *testing.T, s SpamSignals) {
				assert.False(t, s.EmojiHeavy)
				assert.False(t, s.LowEffort)
			},
		},
		{
			name:  "chinese hype",
			text:  "米娜拉 冲冲冲 今天继续冲冲冲 大家一起上车吧",
			score: 0.25,
			check: func(t *testing.T, s SpamSignals) {
				assert.True(t, s.LowEffort)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := e.DetectSpamSignals(tt.text)
			assert.InDelta(t, tt.score, s.SpamScore, 1e-9)
			if tt.check != nil {
				tt.check(t, s)
			}
		})
	}
}

func TestEstimateSentiment(t *testing.T) {
	assert.Equal(t, 0, EstimateSentiment("to the moon 🚀 but risk of loss"))
	assert.Equal(t, 1, EstimateSentiment("moon moon moon 🚀 rip"))
	assert.Equal(t, 3, EstimateSentiment("moon win nice cool lol happy"))
	assert.Equal(t, -3, EstimateSentiment("rip loss risk 爆仓 亏"))
	assert.Equal(t, 0, EstimateSentiment(""))
}
