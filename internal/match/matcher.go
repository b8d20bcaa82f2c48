// Package match resolves free text onto canonical taxonomy terms with a
// cascade of increasingly expensive stages: direct, pattern, approximate
// and semantic.
package match

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/model"
	"github.com/sells-group/candidate-cli/internal/registry"
	"github.com/sells-group/candidate-cli/internal/textnorm"
)

// Strategy selects which stages Match runs.
type Strategy string

// Strategies. Progressive runs every stage in cost order and stops at the
// first hit; the others run exactly one stage.
const (
	StrategyDirect      Strategy = "direct"
	StrategyPattern     Strategy = "pattern"
	StrategyApproximate Strategy = "approximate"
	StrategySemantic    Strategy = "semantic"
	StrategyProgressive Strategy = "progressive"
)

// ErrUnknownStrategy is returned by ParseStrategy for unrecognized names.
var ErrUnknownStrategy = eris.New("match: unknown strategy")

var strategyAliases = map[string]Strategy{
	"direct":      StrategyDirect,
	"pattern":     StrategyPattern,
	"regex":       StrategyPattern,
	"approximate": StrategyApproximate,
	"fuzzy":       StrategyApproximate,
	"semantic":    StrategySemantic,
	"vector":      StrategySemantic,
	"progressive": StrategyProgressive,
}

// ParseStrategy maps a strategy name (or its legacy alias) to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	st, ok := strategyAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", eris.Wrapf(ErrUnknownStrategy, "%q", s)
	}
	return st, nil
}

// Stage names one step of the cascade.
type Stage string

// Stages in cost order. StageAbbreviation is only used for levels.
const (
	StageNone         Stage = ""
	StageDirect       Stage = "direct"
	StagePattern      Stage = "pattern"
	StageAbbreviation Stage = "abbreviation"
	StageApproximate  Stage = "approximate"
	StageSemantic     Stage = "semantic"
)

// Observer is notified of every stage invocation.
type Observer interface {
	Observe(cat model.Category, stage Stage, hit bool)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(cat model.Category, stage Stage, hit bool)

// Observe calls f.
func (f ObserverFunc) Observe(cat model.Category, stage Stage, hit bool) { f(cat, stage, hit) }

// Result describes how a text was resolved.
type Result struct {
	Canonical string  `json:"canonical"`
	Stage     Stage   `json:"stage"`
	Score     float64 `json:"score,omitempty"`
}

// OK reports whether a term was resolved.
func (r Result) OK() bool { return r.Canonical != "" }

// Default thresholds.
const (
	DefaultApproximateThreshold = 75.0
	DefaultCityThreshold        = 70.0
	DefaultSemanticThreshold    = 0.30
	// MinApproximateLength applies to the approximate and semantic stages.
	MinApproximateLength = 3
)

// CityStateExemption is the one state for which city matching ignores the
// supplied state and searches every city.
// NOTE: this looks like a data workaround rather than a rule; it is kept
// as-is until someone confirms what it was for.
const CityStateExemption = "Andhra Pradesh"

// Matcher resolves text against an immutable registry. It holds no mutable
// state and is safe for concurrent use.
type Matcher struct {
	reg               *registry.Registry
	thresholds        map[model.Category]float64
	semanticThreshold float64
	observer          Observer
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithObserver installs a stage observer.
func WithObserver(o Observer) Option {
	return func(m *Matcher) {
		m.observer = o
	}
}

// WithThreshold overrides the approximate-stage threshold for cat.
func WithThreshold(cat model.Category, score float64) Option {
	return func(m *Matcher) {
		m.thresholds[cat] = score
	}
}

// WithSemanticThreshold overrides the minimum cosine similarity.
func WithSemanticThreshold(v float64) Option {
	return func(m *Matcher) {
		m.semanticThreshold = v
	}
}

// New creates a Matcher over reg.
func New(reg *registry.Registry, opts ...Option) *Matcher {
	m := &Matcher{
		reg: reg,
		thresholds: map[model.Category]float64{
			model.CategoryRole:  DefaultApproximateThreshold,
			model.CategoryLevel: DefaultApproximateThreshold,
			model.CategorySkill: DefaultApproximateThreshold,
			model.CategoryCity:  DefaultCityThreshold,
		},
		semanticThreshold: DefaultSemanticThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the registry the matcher reads.
func (m *Matcher) Registry() *registry.Registry {
	return m.reg
}

// Match resolves text to a canonical term of cat.
func (m *Matcher) Match(ctx context.Context, cat model.Category, text string, s Strategy) (string, bool) {
	r := m.Resolve(ctx, cat, text, s)
	return r.Canonical, r.OK()
}

// Resolve is Match with the deciding stage and score.
func (m *Matcher) Resolve(ctx context.Context, cat model.Category, text string, s Strategy) Result {
	p := textnorm.String(text)
	if p == "" {
		return Result{}
	}

	switch s {
	case StrategyDirect:
		return m.direct(cat, p)
	case StrategyPattern:
		return m.pattern(cat, p)
	case StrategyApproximate:
		return m.approximate(cat, p, m.reg.Terms(cat), m.reg.Prepared(cat))
	case StrategySemantic:
		return m.semantic(ctx, cat, p)
	case StrategyProgressive:
		if r := m.direct(cat, p); r.OK() {
			return r
		}
		if r := m.pattern(cat, p); r.OK() {
			return r
		}
		if r := m.approximate(cat, p, m.reg.Terms(cat), m.reg.Prepared(cat)); r.OK() {
			return r
		}
		return m.semantic(ctx, cat, p)
	default:
		zap.L().Warn("match: unknown strategy", zap.String("strategy", string(s)))
		return Result{}
	}
}

// MatchLevel resolves a level: pattern rules first, then the bare
// abbreviations, then the approximate stage for the approximate and
// progressive strategies.
func (m *Matcher) MatchLevel(ctx context.Context, text string, s Strategy) (string, bool) {
	r := m.ResolveLevel(ctx, text, s)
	return r.Canonical, r.OK()
}

// ResolveLevel is MatchLevel with the deciding stage.
func (m *Matcher) ResolveLevel(_ context.Context, text string, s Strategy) Result {
	p := textnorm.String(text)
	if p == "" {
		return Result{}
	}
	if r := m.pattern(model.CategoryLevel, p); r.OK() {
		return r
	}

	var hit Result
	for _, rule := range m.reg.Abbreviations() {
		if rule.Matches(p) {
			hit = Result{Canonical: rule.Canonical, Stage: StageAbbreviation}
			break
		}
	}
	m.observe(model.CategoryLevel, StageAbbreviation, hit.OK())
	if hit.OK() {
		return hit
	}

	if s == StrategyApproximate || s == StrategyProgressive {
		return m.approximate(model.CategoryLevel, p, m.reg.Terms(model.CategoryLevel), m.reg.Prepared(model.CategoryLevel))
	}
	return Result{}
}

// MatchCity resolves a city name. A non-empty state restricts the pool to
// that state's cities, except for CityStateExemption.
func (m *Matcher) MatchCity(text, state string) (string, bool) {
	r := m.ResolveCity(text, state)
	return r.Canonical, r.OK()
}

// ResolveCity is MatchCity with the score.
func (m *Matcher) ResolveCity(text, state string) Result {
	p := textnorm.String(text)
	if len([]rune(p)) < MinApproximateLength {
		return Result{}
	}
	state = strings.TrimSpace(state)
	if state == CityStateExemption {
		state = ""
	}
	return m.approximate(model.CategoryCity, p, m.reg.CityNames(state), m.reg.PreparedCityNames(state))
}

func (m *Matcher) direct(cat model.Category, p string) Result {
	terms, prepared := m.reg.Terms(cat), m.reg.Prepared(cat)
	res := Result{}
	for i, t := range prepared {
		if t == p {
			res = Result{Canonical: terms[i], Stage: StageDirect, Score: 100}
			break
		}
	}
	if !res.OK() {
		for i, t := range prepared {
			if strings.Contains(p, t) {
				res = Result{Canonical: terms[i], Stage: StageDirect}
				break
			}
		}
	}
	m.observe(cat, StageDirect, res.OK())
	return res
}

func (m *Matcher) pattern(cat model.Category, p string) Result {
	res := Result{}
	for _, rule := range m.reg.Rules(cat) {
		if rule.Matches(p) {
			res = Result{Canonical: rule.Canonical, Stage: StagePattern}
			break
		}
	}
	m.observe(cat, StagePattern, res.OK())
	return res
}

func (m *Matcher) approximate(cat model.Category, p string, pool, prepared []string) Result {
	res := Result{}
	if len([]rune(p)) >= MinApproximateLength && len(pool) > 0 {
		idx, score := bestOf(p, prepared)
		if idx >= 0 && score >= m.thresholds[cat] {
			res = Result{Canonical: pool[idx], Stage: StageApproximate, Score: score}
		}
	}
	m.observe(cat, StageApproximate, res.OK())
	return res
}

func (m *Matcher) semantic(ctx context.Context, cat model.Category, p string) Result {
	res := Result{}
	if len([]rune(p)) < MinApproximateLength {
		m.observe(cat, StageSemantic, false)
		return res
	}
	name, score, err := m.reg.Nearest(ctx, cat, p)
	if err != nil {
		zap.L().Warn("match: semantic stage failed", zap.String("category", string(cat)), zap.Error(err))
	} else if name != "" && score > m.semanticThreshold {
		res = Result{Canonical: name, Stage: StageSemantic, Score: score}
	}
	m.observe(cat, StageSemantic, res.OK())
	return res
}

func (m *Matcher) observe(cat model.Category, stage Stage, hit bool) {
	if m.observer != nil {
		m.observer.Observe(cat, stage, hit)
	}
}
