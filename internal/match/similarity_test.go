package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	assert.Equal(t, 100.0, Score("physics", "physics"))
	assert.Zero(t, Score("", "physics"))
	assert.Zero(t, Score("physics", ""))

	// one edit in eleven runes
	assert.InDelta(t, 100*(1-1.0/11), Score("mathematcs", "mathematics"), 0.5)

	// token order is mostly ignored
	assert.InDelta(t, 95.0, Score("science computer", "computer science"), 0.01)

	// a short term inside a long input scores through the partial ratio
	assert.InDelta(t, 90.0, Score("pune city west", "pune"), 0.01)

	assert.Less(t, Score("carpentry", "physics"), 50.0)
}

func TestScore_Symmetric(t *testing.T) {
	pairs := [][2]string{{"gunter", "guntur"}, {"pune city", "pune"}, {"a b c", "c b a"}}
	for _, p := range pairs {
		assert.InDelta(t, Score(p[0], p[1]), Score(p[1], p[0]), 1e-9)
	}
}

func TestBestOf_TiesKeepEarliest(t *testing.T) {
	idx, score := bestOf("abc", []string{"abd", "abe", "xyz"})
	assert.Equal(t, 0, idx)
	assert.Greater(t, score, 60.0)

	idx, _ = bestOf("abc", nil)
	assert.Equal(t, -1, idx)
}
