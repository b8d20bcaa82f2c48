package match

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/candidate-cli/internal/model"
	"github.com/sells-group/candidate-cli/internal/registry"
)

type stageCounter struct {
	mu    sync.Mutex
	calls map[Stage]int
	hits  map[Stage]int
}

func newStageCounter() *stageCounter {
	return &stageCounter{calls: map[Stage]int{}, hits: map[Stage]int{}}
}

func (c *stageCounter) Observe(_ model.Category, stage Stage, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[stage]++
	if hit {
		c.hits[stage]++
	}
}

func (c *stageCounter) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = map[Stage]int{}
	c.hits = map[Stage]int{}
}

func builtin(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.Default(context.Background())
	require.NoError(t, err)
	return r
}

func small(t *testing.T, mutate func(d *registry.Document)) *registry.Registry {
	t.Helper()
	d := &registry.Document{
		Roles:  []string{"Teacher", "Principal"},
		Levels: []string{"Primary (PRT)", "PGT (Post Grad Teacher)", "NA"},
		Skills: []string{"Physics", "Mathematics", "Computer Science"},
		Rules:  map[model.Category][]registry.RuleSpec{},
		Cities: []model.City{
			{Name: "Pune", State: "Maharashtra"},
			{Name: "Mumbai", State: "Maharashtra"},
			{Name: "Guntur", State: "Andhra Pradesh"},
			{Name: "Vijayawada", State: "Andhra Pradesh"},
		},
	}
	if mutate != nil {
		mutate(d)
	}
	r, err := registry.Build(context.Background(), d)
	require.NoError(t, err)
	return r
}

func TestMatch_CanonicalTermsResolveDirectly(t *testing.T) {
	ctx := context.Background()
	reg := builtin(t)
	counter := newStageCounter()
	m := New(reg, WithObserver(counter))

	for _, cat := range model.Categories {
		for _, term := range reg.Terms(cat) {
			counter.reset()
			got, ok := m.Match(ctx, cat, term, StrategyProgressive)
			require.True(t, ok, "%s %q", cat, term)
			assert.Equal(t, term, got, "%s %q", cat, term)
			assert.Equal(t, map[Stage]int{StageDirect: 1}, counter.calls, "%s %q reached a later stage", cat, term)
		}
	}
}

func TestMatch_PatternOrderBeatsScore(t *testing.T) {
	reg := small(t, func(d *registry.Document) {
		d.Skills = []string{"Alpha", "Math Tutor"}
		d.Rules[model.CategorySkill] = []registry.RuleSpec{
			{Pattern: `\bmath`, Canonical: "Alpha"},
			{Pattern: `\bmath\s*tutor`, Canonical: "Math Tutor"},
		}
	})
	m := New(reg)

	input := "math tutoring"
	// The later rule's canonical is the far closer string.
	require.Greater(t, Score(input, "math tutor"), Score(input, "alpha"))

	got, ok := m.Match(context.Background(), model.CategorySkill, input, StrategyPattern)
	require.True(t, ok)
	assert.Equal(t, "Alpha", got)
}

func TestMatch_PGTPhysicsTeacher(t *testing.T) {
	ctx := context.Background()
	m := New(builtin(t))
	text := "PGT Physics Teacher"

	role, ok := m.Match(ctx, model.CategoryRole, text, StrategyProgressive)
	require.True(t, ok)
	assert.Equal(t, "Teacher", role)

	level, ok := m.MatchLevel(ctx, text, StrategyProgressive)
	require.True(t, ok)
	assert.Equal(t, "PGT (Post Grad Teacher)", level)

	skill, ok := m.Match(ctx, model.CategorySkill, text, StrategyProgressive)
	require.True(t, ok)
	assert.Equal(t, "Physics", skill)
}

func TestMatch_ProgressiveStopsAtFirstHit(t *testing.T) {
	counter := newStageCounter()
	m := New(small(t, nil), WithObserver(counter))

	r := m.Resolve(context.Background(), model.CategorySkill, "Mathematcs", StrategyProgressive)
	assert.Equal(t, "Mathematics", r.Canonical)
	assert.Equal(t, StageApproximate, r.Stage)
	assert.Greater(t, r.Score, 85.0)
	assert.Equal(t, map[Stage]int{StageDirect: 1, StagePattern: 1, StageApproximate: 1}, counter.calls)
}

func TestMatch_SingleStageStrategies(t *testing.T) {
	ctx := context.Background()
	counter := newStageCounter()
	m := New(small(t, nil), WithObserver(counter))

	_, ok := m.Match(ctx, model.CategorySkill, "Mathematcs", StrategyDirect)
	assert.False(t, ok)
	assert.Equal(t, map[Stage]int{StageDirect: 1}, counter.calls)

	counter.reset()
	got, ok := m.Match(ctx, model.CategorySkill, "science of computers", StrategySemantic)
	require.True(t, ok)
	assert.Equal(t, "Computer Science", got)
	assert.Equal(t, map[Stage]int{StageSemantic: 1}, counter.calls)
}

func TestMatch_DirectSubstringTakesFirstListed(t *testing.T) {
	m := New(small(t, nil))
	got, ok := m.Match(context.Background(), model.CategorySkill, "teaches physics and mathematics", StrategyDirect)
	require.True(t, ok)
	assert.Equal(t, "Physics", got)
}

func TestMatch_ApproximateThresholdAndLength(t *testing.T) {
	ctx := context.Background()
	m := New(small(t, nil))

	_, ok := m.Match(ctx, model.CategorySkill, "ph", StrategyApproximate)
	assert.False(t, ok, "inputs shorter than three runes never match")

	_, ok = m.Match(ctx, model.CategorySkill, "carpentry", StrategyApproximate)
	assert.False(t, ok)

	strict := New(small(t, nil), WithThreshold(model.CategorySkill, 95))
	_, ok = strict.Match(ctx, model.CategorySkill, "Mathematcs", StrategyApproximate)
	assert.False(t, ok)
}

func TestMatch_SemanticThreshold(t *testing.T) {
	ctx := context.Background()
	m := New(small(t, nil), WithSemanticThreshold(0.99))
	_, ok := m.Match(ctx, model.CategorySkill, "science of computers", StrategySemantic)
	assert.False(t, ok)

	_, ok = New(small(t, nil)).Match(ctx, model.CategorySkill, "woodwork", StrategySemantic)
	assert.False(t, ok)
}

func TestMatch_SemanticRejectsShortInput(t *testing.T) {
	ctx := context.Background()
	counter := newStageCounter()
	m := New(builtin(t), WithObserver(counter))

	for _, in := range []string{"hr", "it"} {
		for _, s := range []Strategy{StrategySemantic, StrategyProgressive} {
			counter.reset()
			r := m.Resolve(ctx, model.CategoryRole, in, s)
			assert.False(t, r.OK(), "%s via %s", in, s)
			assert.Equal(t, 1, counter.calls[StageSemantic], "%s via %s", in, s)
			assert.Zero(t, counter.hits[StageSemantic], "%s via %s", in, s)
		}
	}

	got, ok := New(small(t, nil)).Match(ctx, model.CategorySkill, "science of computers", StrategySemantic)
	require.True(t, ok)
	assert.Equal(t, "Computer Science", got)
}

func TestMatch_EmptyAndUnknownStrategy(t *testing.T) {
	ctx := context.Background()
	counter := newStageCounter()
	m := New(small(t, nil), WithObserver(counter))

	_, ok := m.Match(ctx, model.CategoryRole, "  ", StrategyProgressive)
	assert.False(t, ok)
	_, ok = m.Match(ctx, model.CategoryRole, "Teacher", Strategy("magic"))
	assert.False(t, ok)
	assert.Empty(t, counter.calls)
}

func TestMatchLevel(t *testing.T) {
	ctx := context.Background()
	reg := small(t, func(d *registry.Document) {
		d.LevelAbbreviations = []registry.Abbreviation{
			{Token: "prt", Canonical: "Primary (PRT)"},
			{Token: "pgt", Canonical: "PGT (Post Grad Teacher)"},
		}
		d.Rules[model.CategoryLevel] = []registry.RuleSpec{
			{Pattern: `\bsenior\s*secondary\b`, Canonical: "PGT (Post Grad Teacher)"},
		}
	})
	counter := newStageCounter()
	m := New(reg, WithObserver(counter))

	r := m.ResolveLevel(ctx, "Senior Secondary English", StrategyPattern)
	assert.Equal(t, "PGT (Post Grad Teacher)", r.Canonical)
	assert.Equal(t, StagePattern, r.Stage)

	r = m.ResolveLevel(ctx, "PRT maths", StrategyPattern)
	assert.Equal(t, "Primary (PRT)", r.Canonical)
	assert.Equal(t, StageAbbreviation, r.Stage)

	counter.reset()
	_, ok := m.MatchLevel(ctx, "Primari", StrategyPattern)
	assert.False(t, ok, "approximate fallback needs the approximate or progressive strategy")
	assert.Zero(t, counter.calls[StageApproximate])

	got, ok := m.MatchLevel(ctx, "Primari", StrategyApproximate)
	require.True(t, ok)
	assert.Equal(t, "Primary (PRT)", got)

	got, ok = m.MatchLevel(ctx, "primary prt", StrategyProgressive)
	require.True(t, ok)
	assert.Equal(t, "Primary (PRT)", got)
}

func TestMatchCity(t *testing.T) {
	m := New(small(t, nil))

	got, ok := m.MatchCity("Gunter", "")
	require.True(t, ok)
	assert.Equal(t, "Guntur", got)

	_, ok = m.MatchCity("Gunter", "Maharashtra")
	assert.False(t, ok, "state restricts the pool")

	got, ok = m.MatchCity("Pune City", "Maharashtra")
	require.True(t, ok)
	assert.Equal(t, "Pune", got)

	got, ok = m.MatchCity("Mumbai", "Andhra Pradesh")
	require.True(t, ok, "the exempt state searches every city")
	assert.Equal(t, "Mumbai", got)

	_, ok = m.MatchCity("Pune", "Atlantis")
	assert.False(t, ok)

	_, ok = m.MatchCity("Pu", "")
	assert.False(t, ok)
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{
		"direct": StrategyDirect, "Regex": StrategyPattern, "fuzzy": StrategyApproximate,
		"vector": StrategySemantic, " progressive ": StrategyProgressive, "semantic": StrategySemantic,
	} {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseStrategy("psychic")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestMatcher_ConcurrentUse(t *testing.T) {
	m := New(builtin(t))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, _ := m.Match(context.Background(), model.CategorySkill, "maths teacher", StrategyProgressive)
			assert.Equal(t, "Mathematics", got)
		}()
	}
	wg.Wait()
}
