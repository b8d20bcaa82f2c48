// Package normalize turns raw candidate rows into canonical values, runs
// that over whole tables in parallel and labels each record's status.
package normalize

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/candidate-cli/internal/match"
	"github.com/sells-group/candidate-cli/internal/model"
	"github.com/sells-group/candidate-cli/internal/sanitize"
)

// ErrRowFailed is returned when a row could not be normalized at all.
var ErrRowFailed = eris.New("normalize: row failed")

// Valid records which contact fields were sanitized successfully.
type Valid struct {
	Mobile   bool `json:"mobile"`
	WhatsApp bool `json:"whatsapp"`
	Email    bool `json:"email"`
}

// Result holds the normalized fields of one row. Empty means unresolved.
type Result struct {
	Skill    string `json:"skill"`
	Role     string `json:"role"`
	Level    string `json:"level"`
	City     string `json:"city"`
	Mobile   string `json:"mobile"`
	WhatsApp string `json:"whatsapp"`
	Email    string `json:"email"`
	Valid    Valid  `json:"valid"`
}

// Apply writes the result into the normalized columns of rec.
func (r Result) Apply(rec *model.Record) {
	rec.Set(model.ColumnSkill, r.Skill)
	rec.Set(model.ColumnRole, r.Role)
	rec.Set(model.ColumnLevel, r.Level)
	rec.Set(model.ColumnCity, r.City)
	rec.Set(model.ColumnMobile, r.Mobile)
	rec.Set(model.ColumnWhatsApp, r.WhatsApp)
	rec.Set(model.ColumnEmail, r.Email)
}

// Normalizer resolves the free-text fields of a record.
type Normalizer struct {
	matcher     *match.Matcher
	skillColumn string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithSkillColumn sets the column holding the primary job title text.
func WithSkillColumn(column string) Option {
	return func(n *Normalizer) {
		if column != "" {
			n.skillColumn = column
		}
	}
}

// New creates a Normalizer backed by m.
func New(m *match.Matcher, opts ...Option) *Normalizer {
	n := &Normalizer{matcher: m, skillColumn: model.ColumnOldSkills}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SkillColumn returns the column read as the primary text.
func (n *Normalizer) SkillColumn() string {
	return n.skillColumn
}

// Normalize resolves one record. Contacts are sanitized and the city
// matched even when the primary text is blank. A panic inside the matcher
// is recovered and reported as ErrRowFailed with an empty result.
func (n *Normalizer) Normalize(ctx context.Context, rec *model.Record, s match.Strategy) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{}
			err = eris.Wrapf(ErrRowFailed, "row %d: %v", rec.Index, p)
		}
	}()

	res.Mobile, res.Valid.Mobile = sanitize.Phone(rec.Get(model.ColumnOldMobile))
	res.WhatsApp, res.Valid.WhatsApp = sanitize.Phone(rec.Get(model.ColumnOldWhatsApp))
	res.Email, res.Valid.Email = sanitize.Email(rec.Get(model.ColumnOldEmail))

	if city := rec.Get(model.ColumnOldCity); strings.TrimSpace(city) != "" {
		res.City, _ = n.matcher.MatchCity(city, rec.Get(model.ColumnState))
	}

	text := rec.Get(n.skillColumn)
	if strings.TrimSpace(text) == "" {
		return res, nil
	}

	res.Level, _ = n.matcher.MatchLevel(ctx, text, s)
	res.Role, _ = n.matcher.Match(ctx, model.CategoryRole, text, s)
	res.Skill, _ = n.matcher.Match(ctx, model.CategorySkill, text, s)
	return res, nil
}
