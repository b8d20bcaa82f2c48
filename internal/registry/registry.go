// Package registry builds the immutable taxonomy snapshot shared by every
// matcher: ordered canonical vocabularies, ordered pattern rules, the
// city-by-state relation and the precomputed semantic index.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/model"
	"github.com/sells-group/candidate-cli/internal/textnorm"
)

// Registry is a read-only taxonomy snapshot. It is safe for concurrent use
// and is never mutated after Build returns.
type Registry struct {
	version     string
	digest      string
	terms       map[model.Category][]string
	prepared    map[model.Category][]string
	rules       map[model.Category][]model.Rule
	abbrevs     []model.Rule
	cities      []model.City
	byState     map[string][]string
	prepByState map[string][]string
	semantic    *semanticIndex
}

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	cities CitySource
}

// WithCitySource replaces the document's cities with those read from src.
func WithCitySource(src CitySource) Option {
	return func(o *buildOptions) {
		o.cities = src
	}
}

// Build validates doc and assembles a Registry.
func Build(ctx context.Context, doc *Document, opts ...Option) (*Registry, error) {
	if doc == nil {
		return nil, eris.New("registry: nil document")
	}
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	cities := doc.Cities
	if o.cities != nil {
		c, err := o.cities.Cities(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "registry: load cities")
		}
		cities = c
	}

	r := &Registry{
		version:     doc.Version,
		terms:       make(map[model.Category][]string),
		prepared:    make(map[model.Category][]string),
		rules:       make(map[model.Category][]model.Rule),
		byState:     make(map[string][]string),
		prepByState: make(map[string][]string),
	}

	lists := map[model.Category][]string{
		model.CategoryRole:  doc.Roles,
		model.CategoryLevel: doc.Levels,
		model.CategorySkill: doc.Skills,
	}
	for cat, names := range lists {
		if len(names) == 0 {
			return nil, eris.Errorf("registry: %s vocabulary is empty", cat)
		}
		if err := r.addTerms(cat, names); err != nil {
			return nil, err
		}
	}

	var cityNames []string
	seenCity := make(map[string]bool)
	for _, c := range cities {
		if c.Name == "" {
			return nil, eris.New("registry: city with empty name")
		}
		r.cities = append(r.cities, c)
		if c.State != "" {
			r.byState[c.State] = append(r.byState[c.State], c.Name)
			r.prepByState[c.State] = append(r.prepByState[c.State], textnorm.String(c.Name))
		}
		if !seenCity[c.Name] {
			seenCity[c.Name] = true
			cityNames = append(cityNames, c.Name)
		}
	}
	r.terms[model.CategoryCity] = cityNames
	for _, n := range cityNames {
		r.prepared[model.CategoryCity] = append(r.prepared[model.CategoryCity], textnorm.String(n))
	}

	for cat, specs := range doc.Rules {
		if _, ok := lists[cat]; !ok {
			return nil, eris.Errorf("registry: rules for unsupported category %q", cat)
		}
		for _, spec := range specs {
			rule := model.Rule{Category: cat, Pattern: spec.Pattern, Canonical: spec.Canonical}
			if err := rule.Compile(); err != nil {
				return nil, eris.Wrap(err, "registry: compile rule")
			}
			if !r.Has(cat, spec.Canonical) {
				return nil, eris.Errorf("registry: %s rule %q maps to unknown term %q", cat, spec.Pattern, spec.Canonical)
			}
			r.rules[cat] = append(r.rules[cat], rule)
		}
	}

	for _, a := range doc.LevelAbbreviations {
		if !r.Has(model.CategoryLevel, a.Canonical) {
			return nil, eris.Errorf("registry: abbreviation %q maps to unknown level %q", a.Token, a.Canonical)
		}
		rule := model.Rule{
			Category:  model.CategoryLevel,
			Pattern:   `\b` + regexp.QuoteMeta(textnorm.String(a.Token)) + `\b`,
			Canonical: a.Canonical,
		}
		if err := rule.Compile(); err != nil {
			return nil, err
		}
		r.abbrevs = append(r.abbrevs, rule)
	}

	semantic, err := buildSemanticIndex(ctx, r.terms)
	if err != nil {
		return nil, err
	}
	r.semantic = semantic

	sum, err := json.Marshal(struct {
		D *Document
		C []model.City
	}{doc, cities})
	if err != nil {
		return nil, eris.Wrap(err, "registry: digest")
	}
	h := sha256.Sum256(sum)
	r.digest = hex.EncodeToString(h[:])[:12]

	zap.L().Debug("registry: built",
		zap.String("version", r.Version()),
		zap.Int("roles", len(r.terms[model.CategoryRole])),
		zap.Int("levels", len(r.terms[model.CategoryLevel])),
		zap.Int("skills", len(r.terms[model.CategorySkill])),
		zap.Int("cities", len(r.cities)),
	)

	return r, nil
}

func (r *Registry) addTerms(cat model.Category, names []string) error {
	seen := make(map[string]string, len(names))
	for _, n := range names {
		p := textnorm.String(n)
		if p == "" {
			return eris.Errorf("registry: empty %s term %q", cat, n)
		}
		if prev, dup := seen[p]; dup {
			return eris.Errorf("registry: duplicate %s term %q (collides with %q)", cat, n, prev)
		}
		seen[p] = n
		r.terms[cat] = append(r.terms[cat], n)
		r.prepared[cat] = append(r.prepared[cat], p)
	}
	return nil
}

// Default builds the registry from the embedded taxonomy.
func Default(ctx context.Context, opts ...Option) (*Registry, error) {
	return Build(ctx, Builtin(), opts...)
}

// Version identifies the snapshot: the authored version plus a content digest.
func (r *Registry) Version() string {
	if r.version == "" {
		return r.digest
	}
	return r.version + "+" + r.digest
}

// Terms returns the canonical names of cat in authoring order.
// The slice is shared and must not be modified.
func (r *Registry) Terms(cat model.Category) []string {
	return r.terms[cat]
}

// Prepared returns the preprocessed forms of Terms(cat), index-aligned.
// The slice is shared and must not be modified.
func (r *Registry) Prepared(cat model.Category) []string {
	return r.prepared[cat]
}

// Has reports whether name is a canonical term of cat.
func (r *Registry) Has(cat model.Category, name string) bool {
	for _, t := range r.terms[cat] {
		if t == name {
			return true
		}
	}
	return false
}

// Rules returns the ordered pattern rules of cat. The first matching rule
// wins. The slice is shared and must not be modified.
func (r *Registry) Rules(cat model.Category) []model.Rule {
	return r.rules[cat]
}

// Abbreviations returns the word-bounded level abbreviation rules.
func (r *Registry) Abbreviations() []model.Rule {
	return r.abbrevs
}

// Cities returns every city with its state.
func (r *Registry) Cities() []model.City {
	return r.cities
}

// CityNames returns the city names within state, or every city name when
// state is empty. An unknown state yields nil.
func (r *Registry) CityNames(state string) []string {
	if state == "" {
		return r.terms[model.CategoryCity]
	}
	return r.byState[state]
}

// PreparedCityNames returns the preprocessed forms of CityNames(state),
// index-aligned.
func (r *Registry) PreparedCityNames(state string) []string {
	if state == "" {
		return r.prepared[model.CategoryCity]
	}
	return r.prepByState[state]
}

// States returns the number of distinct states.
func (r *Registry) States() int {
	return len(r.byState)
}

// Nearest returns the canonical term of cat with the highest cosine
// similarity to text under the category's TF-IDF model, with its score.
// Text sharing no token with the vocabulary yields "".
func (r *Registry) Nearest(ctx context.Context, cat model.Category, text string) (string, float64, error) {
	return r.semantic.nearest(ctx, cat, text)
}
