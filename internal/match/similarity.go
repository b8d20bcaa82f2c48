package match

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Score returns a 0-100 similarity between two preprocessed strings. It is
// the best of the plain edit-distance ratio, a token-order-insensitive ratio
// and, when one string is much longer, the best ratio of the shorter string
// against every same-length window of the longer one.
func Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	best := ratio(a, b)

	if ts := ratio(sortTokens(a), sortTokens(b)) * 0.95; ts > best {
		best = ts
	}

	ra, rb := []rune(a), []rune(b)
	short, long := ra, rb
	if len(short) > len(long) {
		short, long = long, short
	}
	lenRatio := float64(len(long)) / float64(len(short))
	if lenRatio >= 1.5 {
		scale := 0.9
		if lenRatio >= 8 {
			scale = 0.6
		}
		if p := partialRatio(short, long) * scale; p > best {
			best = p
		}
	}
	return best
}

func ratio(a, b string) float64 {
	return 100 * levenshtein.Similarity(a, b, nil)
}

func partialRatio(short, long []rune) float64 {
	s := string(short)
	var best float64
	for i := 0; i+len(short) <= len(long); i++ {
		r := ratio(s, string(long[i:i+len(short)]))
		if r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

func sortTokens(s string) string {
	f := strings.Fields(s)
	sort.Strings(f)
	return strings.Join(f, " ")
}

// bestOf scores text against each candidate and returns the index of the
// highest scorer. Ties keep the earliest candidate. Returns -1 when
// candidates is empty.
func bestOf(text string, candidates []string) (int, float64) {
	idx, best := -1, -1.0
	for i, c := range candidates {
		if s := Score(text, c); s > best {
			idx, best = i, s
		}
	}
	return idx, best
}
