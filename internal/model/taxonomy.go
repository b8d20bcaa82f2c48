package model

import (
	"regexp"

	"github.com/rotisserie/eris"
)

// Category identifies one controlled vocabulary.
type Category string

// Known categories.
const (
	CategoryRole  Category = "role"
	CategoryLevel Category = "level"
	CategorySkill Category = "skill"
	CategoryCity  Category = "city"
)

// Categories lists every category in registry order.
var Categories = []Category{CategoryRole, CategoryLevel, CategorySkill, CategoryCity}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", eris.Errorf("model: unknown category %q", s)
}

// Term is a canonical vocabulary entry.
type Term struct {
	Category Category `json:"category" yaml:"category"`
	Name     string   `json:"name" yaml:"name"`
}

// Rule maps a case-insensitive, unanchored pattern onto a canonical name.
// Rules are evaluated in authoring order and the first match wins, so the
// position of a rule inside its slice is part of its meaning.
type Rule struct {
	Category  Category       `json:"category" yaml:"category"`
	Pattern   string         `json:"pattern" yaml:"pattern"`
	Canonical string         `json:"canonical" yaml:"canonical"`
	Regexp    *regexp.Regexp `json:"-" yaml:"-"` // compiled at registry build
}

// Compile compiles the rule pattern with case-insensitive matching.
func (r *Rule) Compile() error {
	re, err := regexp.Compile("(?i)" + r.Pattern)
	if err != nil {
		return eris.Wrapf(err, "model: compile %s rule %q", r.Category, r.Pattern)
	}
	r.Regexp = re
	return nil
}

// Matches reports whether the compiled rule matches text.
func (r *Rule) Matches(text string) bool {
	return r.Regexp != nil && r.Regexp.MatchString(text)
}

// City is a canonical city name with its state.
type City struct {
	ID    int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Name  string `json:"name" yaml:"name"`
	State string `json:"state" yaml:"state"`
}
