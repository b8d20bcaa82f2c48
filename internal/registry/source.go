package registry

import (
	"context"
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/candidate-cli/internal/model"
)

//go:embed builtin.yaml
var builtinYAML []byte

// RuleSpec is one authored pattern rule.
type RuleSpec struct {
	Pattern   string `yaml:"pattern" json:"pattern"`
	Canonical string `yaml:"canonical" json:"canonical"`
}

// Abbreviation maps a bare token onto a level.
type Abbreviation struct {
	Token     string `yaml:"token" json:"token"`
	Canonical string `yaml:"canonical" json:"canonical"`
}

// Document is the serialized form of a taxonomy. Every list is ordered and
// the order of Rules within a category decides which rule wins.
type Document struct {
	Version            string                        `yaml:"version" json:"version"`
	Roles              []string                      `yaml:"roles" json:"roles"`
	Levels             []string                      `yaml:"levels" json:"levels"`
	Skills             []string                      `yaml:"skills" json:"skills"`
	LevelAbbreviations []Abbreviation                `yaml:"level_abbreviations" json:"level_abbreviations"`
	Rules              map[model.Category][]RuleSpec `yaml:"rules" json:"rules"`
	Cities             []model.City                  `yaml:"cities" json:"cities"`
}

// CitySource supplies the city-by-state relation from an external store.
type CitySource interface {
	Cities(ctx context.Context) ([]model.City, error)
}

// Parse decodes a YAML taxonomy document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal taxonomy")
	}
	return &doc, nil
}

// LoadFile reads a YAML taxonomy document from path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read taxonomy file")
	}
	return Parse(data)
}

// Builtin returns the embedded default taxonomy document.
func Builtin() *Document {
	doc, err := Parse(builtinYAML)
	if err != nil {
		// The embedded file is covered by tests.
		panic(err)
	}
	return doc
}

// Marshal encodes a document back to YAML.
func (d *Document) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, eris.Wrap(err, "registry: marshal taxonomy")
	}
	return out, nil
}
