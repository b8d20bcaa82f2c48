package table

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/model"
)

// legacyColumns maps the column names of the exported candidate sheets to
// the names the pipeline reads.
var legacyColumns = map[string]string{
	"Id":            model.ColumnID,
	"FirstName":     "first_name",
	"LastName":      "last_name",
	"MobileNo":      model.ColumnOldMobile,
	"WhatsAppNo":    model.ColumnOldWhatsApp,
	"Email":         model.ColumnOldEmail,
	"DOB":           "date_of_birth",
	"CountryId":     "country_id",
	"Country":       "country",
	"StateId":       "state_id",
	"State":         model.ColumnState,
	"City":          model.ColumnOldCity,
	"Address":       "address",
	"Pin":           "pin_code",
	"Primary Skill": model.ColumnOldSkills,
	"Skill":         "primary_skill",
	"Role":          "old_role",
	"Level":         "old_level",
	"Resume":        model.ColumnResume,
}

// defaultColumn is a column added when missing, with its fill value.
type defaultColumn struct {
	name  string
	value string
}

var defaultColumns = []defaultColumn{
	{"prefix", ""},
	{"gender", ""},
	{"alternative_mobile", ""},
	{"alternative_email", ""},
	{"industry", "Education"},
	{"secondary_skill", ""},
	{"tertiary_skill", ""},
	{"career_start_date", ""},
	{"education", ""},
	{"experiences", ""},
}

// Prepare renames legacy columns, checks that the primary text column
// exists and adds the default columns. It modifies tbl in place.
func Prepare(tbl *model.Table, skillColumn string) error {
	if skillColumn == "" {
		skillColumn = model.ColumnOldSkills
	}

	renamed := 0
	for i, c := range tbl.Columns {
		to, ok := legacyColumns[c]
		if !ok || tbl.HasColumn(to) {
			continue
		}
		tbl.Columns[i] = to
		for _, r := range tbl.Records {
			if v, ok := r.Values[c]; ok {
				r.Values[to] = v
				delete(r.Values, c)
			}
		}
		renamed++
	}

	if !tbl.HasColumn(skillColumn) {
		return eris.Wrapf(model.ErrValidation, "table: %s is missing the %q column", tbl.Name, skillColumn)
	}

	var added []string
	for _, d := range defaultColumns {
		if tbl.HasColumn(d.name) {
			continue
		}
		tbl.Columns = append(tbl.Columns, d.name)
		for _, r := range tbl.Records {
			r.Set(d.name, d.value)
		}
		added = append(added, d.name)
	}

	zap.L().Debug("table: prepared",
		zap.String("table", tbl.Name),
		zap.Int("renamed", renamed),
		zap.Strings("added", added),
	)
	return nil
}
