package importer

import (
	"regexp"
	"strings"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/team"
)

// Roster fields read from an import sheet.
const (
	FieldBatch   = "batch"
	FieldProject = "project"
	FieldGuide   = "guide"
	FieldRollNo  = "roll_no"
	FieldName    = "name"
)

// fieldPatterns are matched in order; each header key is given to the first field it matches.
// Specific words come first so that "Project Guide" is a guide and "Team Members" a name.
var fieldPatterns = []struct {
	field string
	re    *regexp.Regexp
}{
	{FieldGuide, regexp.MustCompile(`(?i)guide|mentor|supervisor`)},
	{FieldRollNo, regexp.MustCompile(`(?i)roll|reg(istration)?\s*(no|number)|usn|enrol`)},
	{FieldName, regexp.MustCompile(`(?i)member|student`)},
	{FieldBatch, regexp.MustCompile(`(?i)batch|team|group`)},
	{FieldProject, regexp.MustCompile(`(?i)project|title|topic`)},
	{FieldName, regexp.MustCompile(`(?i)name`)},
}

var batchPrefixRegex = regexp.MustCompile(`(?i)^batch\s+`)

// MapFields assigns header keys to roster fields. Placeholder keys are never mapped.
func MapFields(keys []string) map[string]string {
	fields := make(map[string]string, len(fieldPatterns))
	for _, k := range keys {
		if IsPlaceholder(k) {
			continue
		}
		for _, fp := range fieldPatterns {
			if fp.re.MatchString(k) {
				if _, taken := fields[fp.field]; !taken {
					fields[fp.field] = k
				}
				break
			}
		}
	}
	return fields
}

// BatchName normalizes a batch cell to a team name: "A1" -> "Batch A1", "batch a1" -> "Batch a1".
func BatchName(cell string) string {
	cell = core.CleanString(cell)
	if cell == "" {
		return ""
	}
	return "Batch " + core.CleanString(batchPrefixRegex.ReplaceAllString(cell, ""))
}

// Row is one roster line after carry-forward.
type Row struct {
	Batch   string
	Project string
	Guide   string
	Name    string
	RollNo  string
}

// CarryForward resolves each record's roster fields. A blank batch, project or guide cell
// inherits the last non-blank value seen above it, as merged cells read back blank.
func CarryForward(records []map[string]string, fields map[string]string) []Row {
	get := func(rec map[string]string, field string) string {
		key, ok := fields[field]
		if !ok {
			return ""
		}
		return core.CleanString(rec[key])
	}

	rows := make([]Row, 0, len(records))
	var last Row
	for _, rec := range records {
		r := Row{
			Batch:   get(rec, FieldBatch),
			Project: get(rec, FieldProject),
			Guide:   get(rec, FieldGuide),
			Name:    get(rec, FieldName),
			RollNo:  get(rec, FieldRollNo),
		}
		if r.Batch == "" {
			r.Batch = last.Batch
		}
		if r.Project == "" {
			r.Project = last.Project
		}
		if r.Guide == "" {
			r.Guide = last.Guide
		}
		last = r
		rows = append(rows, r)
	}
	return rows
}

// Group collects rows into teams, in order of first appearance.
// Rows without a batch or a member name contribute no member.
func Group(rows []Row) []team.NewTeam {
	var (
		teams   []team.NewTeam
		members [][]string
		index   = make(map[string]int)
	)
	for _, r := range rows {
		name := BatchName(r.Batch)
		if name == "" {
			continue
		}
		i, ok := index[name]
		if !ok {
			i = len(teams)
			index[name] = i
			teams = append(teams, team.NewTeam{Name: name})
			members = append(members, nil)
		}
		if teams[i].ProjectTitle == "" {
			teams[i].ProjectTitle = r.Project
		}
		if teams[i].Guide == "" {
			teams[i].Guide = r.Guide
		}
		if r.Name != "" {
			members[i] = append(members[i], team.FormatMember(r.Name, r.RollNo))
		}
	}
	for i := range teams {
		teams[i].Members = team.JoinMembers(members[i])
	}
	return teams
}

// Parse runs the whole import pipeline on raw sheet rows.
func Parse(rows [][]string) (int, []team.NewTeam, error) {
	headerIdx, keys, err := DetectHeader(rows)
	if err != nil {
		return -1, nil, err
	}
	fields := MapFields(keys)
	var missing []string
	for _, f := range []string{FieldBatch, FieldName} {
		if _, ok := fields[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return headerIdx, nil, core.NewValidationError(nil, core.FieldError{
			Field: "file",
			Error: "missing columns: " + strings.Join(missing, ", "),
		})
	}
	return headerIdx, Group(CarryForward(Records(rows, headerIdx, keys), fields)), nil
}
