package registry

import (
	"math"
	"sort"

	"github.com/sells-group/candidate-cli/internal/textnorm"
)

// Vectorizer is a term-frequency / inverse-document-frequency model fit once
// over a category vocabulary. IDF is smoothed (ln((1+n)/(1+df))+1) and
// vectors are L2-normalized, so the dot product of two vectors is their
// cosine similarity.
type Vectorizer struct {
	vocab map[string]int
	idf   []float64
}

// FitVectorizer builds a vectorizer from the documents. Tokens are runs of
// two or more word characters after preprocessing.
func FitVectorizer(docs []string) *Vectorizer {
	df := make(map[string]int)
	for _, d := range docs {
		seen := make(map[string]bool)
		for _, tok := range textnorm.Tokens(textnorm.String(d)) {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	v := &Vectorizer{vocab: make(map[string]int, len(terms)), idf: make([]float64, len(terms))}
	n := float64(len(docs))
	for i, t := range terms {
		v.vocab[t] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return v
}

// dim returns the vector dimension.
func (v *Vectorizer) dim() int {
	return len(v.idf)
}

// Transform vectorizes text. Tokens outside the fitted vocabulary are
// ignored; text with no known tokens yields a zero vector.
func (v *Vectorizer) Transform(text string) []float32 {
	vec := make([]float64, len(v.idf))
	for _, tok := range textnorm.Tokens(textnorm.String(text)) {
		if i, ok := v.vocab[tok]; ok {
			vec[i]++
		}
	}
	var norm float64
	for i := range vec {
		vec[i] *= v.idf[i]
		norm += vec[i] * vec[i]
	}
	out := make([]float32, len(vec))
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		out[i] = float32(vec[i] / norm)
	}
	return out
}

// IsZero reports whether every component of vec is zero.
func IsZero(vec []float32) bool {
	for _, x := range vec {
		if x != 0 {
			return false
		}
	}
	return true
}

// cosine returns the cosine similarity of two L2-normalized vectors.
func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		if i < len(b) {
			dot += float64(a[i]) * float64(b[i])
		}
	}
	return dot
}
