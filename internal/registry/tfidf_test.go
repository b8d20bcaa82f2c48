package registry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorizer_SmoothedIDF(t *testing.T) {
	v := FitVectorizer([]string{"Computer Science", "Social Science", "Physics"})
	assert.Equal(t, 4, v.dim())

	// "science" appears in 2 of 3 documents, "computer" in 1.
	assert.InDelta(t, math.Log(4.0/3.0)+1, v.idf[v.vocab["science"]], 1e-9)
	assert.InDelta(t, math.Log(4.0/2.0)+1, v.idf[v.vocab["computer"]], 1e-9)
}

func TestVectorizer_TransformIsUnitLength(t *testing.T) {
	v := FitVectorizer([]string{"Computer Science", "Social Science", "Physics"})
	vec := v.Transform("computer science teacher")

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.InDelta(t, 1.0, cosine(vec, v.Transform("Computer-Science")), 1e-6)
}

func TestVectorizer_UnknownTokensGiveZeroVector(t *testing.T) {
	v := FitVectorizer([]string{"Physics"})
	assert.True(t, IsZero(v.Transform("chemistry")))
	assert.True(t, IsZero(v.Transform("")))
	assert.False(t, IsZero(v.Transform("PHYSICS")))
}

func TestVectorizer_SingleRuneTokensIgnored(t *testing.T) {
	v := FitVectorizer([]string{"a b Physics"})
	assert.Equal(t, 1, v.dim())
}
