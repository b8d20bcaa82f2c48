package normalize

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/candidate-cli/internal/model"
)

// Report list sizes.
const (
	topRoles  = 10
	topLevels = 5
	topSkills = 10
)

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Count is one row of a distribution.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary holds the headline numbers of a report.
type Summary struct {
	TotalRecords     int     `json:"total_records"`
	IdentifiedSkills int     `json:"identified_skills"`
	IdentifiedRoles  int     `json:"identified_roles"`
	SkillRate        float64 `json:"identification_rate_skills"`
	RoleRate         float64 `json:"identification_rate_roles"`
}

// Report describes how well a normalized table was matched.
type Report struct {
	Summary   Summary `json:"summary"`
	TopRoles  []Count `json:"top_roles"`
	TopLevels []Count `json:"top_levels"`
	TopSkills []Count `json:"top_skills"`
}

// BuildReport summarizes the normalized columns of tbl.
func BuildReport(tbl *model.Table) (Report, error) {
	if tbl == nil || tbl.Len() == 0 {
		return Report{}, eris.Wrap(model.ErrEmptyTable, "normalize: build report")
	}

	roles := map[string]int{}
	levels := map[string]int{}
	skills := map[string]int{}
	for _, rec := range tbl.Records {
		if v := rec.Get(model.ColumnRole); v != "" {
			roles[v]++
		}
		if v := rec.Get(model.ColumnLevel); v != "" {
			levels[v]++
		}
		if v := rec.Get(model.ColumnSkill); v != "" {
			skills[v]++
		}
	}

	total := tbl.Len()
	identifiedSkills, identifiedRoles := sum(skills), sum(roles)
	return Report{
		Summary: Summary{
			TotalRecords:     total,
			IdentifiedSkills: identifiedSkills,
			IdentifiedRoles:  identifiedRoles,
			SkillRate:        100 * float64(identifiedSkills) / float64(total),
			RoleRate:         100 * float64(identifiedRoles) / float64(total),
		},
		TopRoles:  top(roles, topRoles),
		TopLevels: top(levels, topLevels),
		TopSkills: top(skills, topSkills),
	}, nil
}

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// top returns the n largest counts, descending, ties by name.
func top(m map[string]int, n int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Name: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// WriteReport renders r to w in the given format.
func WriteReport(w io.Writer, r Report, format string) error {
	switch format {
	case "", FormatText:
		return writeText(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return eris.Wrap(err, "normalize: encode report")
		}
		return nil
	default:
		return eris.Errorf("normalize: unknown report format %q", format)
	}
}

func writeText(w io.Writer, r Report) error {
	ew := &errWriter{w: w}
	ew.printf("===== MATCHING REPORT =====\n\n")
	ew.printf("Total records: %d\n", r.Summary.TotalRecords)
	ew.printf("Identified skills: %d\n", r.Summary.IdentifiedSkills)
	ew.printf("Identified roles: %d\n", r.Summary.IdentifiedRoles)
	ew.printf("Skill identification rate: %.2f%%\n", r.Summary.SkillRate)
	ew.printf("Role identification rate: %.2f%%\n\n", r.Summary.RoleRate)

	sections := []struct {
		title  string
		counts []Count
	}{
		{"TOP ROLES", r.TopRoles},
		{"TOP LEVELS", r.TopLevels},
		{"TOP SKILLS", r.TopSkills},
	}
	for i, s := range sections {
		ew.printf("==== %s ====\n", s.title)
		for _, c := range s.counts {
			ew.printf("%s: %d\n", c.Name, c.Count)
		}
		if i < len(sections)-1 {
			ew.printf("\n")
		}
	}
	if ew.err != nil {
		return eris.Wrap(ew.err, "normalize: write report")
	}
	return nil
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

// SaveReport writes r to path, creating parent directories. The format is
// JSON when the path ends in .json, text otherwise.
func SaveReport(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "normalize: create report dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "normalize: create report")
	}
	defer f.Close() //nolint:errcheck

	format := FormatText
	if filepath.Ext(path) == ".json" {
		format = FormatJSON
	}
	if err := WriteReport(f, r, format); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "normalize: close report")
	}
	return nil
}
