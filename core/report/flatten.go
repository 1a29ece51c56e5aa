package report

import (
	"sort"
	"strings"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/rubric"
	"github.com/trezcool/reviewdesk/core/scoring"
	"github.com/trezcool/reviewdesk/core/submission"
	"github.com/trezcool/reviewdesk/core/team"
)

// Report kinds
const (
	KindScore       = "score"
	KindAttendance  = "attendance"
	KindSubmissions = "submissions"
)

const uploadDateLayout = "2006-01-02 15:04"

var Kinds = []string{KindScore, KindAttendance, KindSubmissions}

// Sheet is a flattened report: one header row and data rows of the same width.
type Sheet struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Filter narrows a report to one team (exact name) or one section.
type Filter struct {
	Team    string `query:"team"`
	Section string `query:"section"`
}

func (f *Filter) Clean() {
	f.Team = core.CleanString(f.Team)
	f.Section = strings.ToUpper(core.CleanString(f.Section))
}

func (f Filter) matchName(name string) bool {
	if f.Team != "" && name != f.Team {
		return false
	}
	if f.Section != "" && core.Section(name) != f.Section {
		return false
	}
	return true
}

// Input is everything a report is flattened from.
type Input struct {
	CycleID      string
	Teams        []team.Team
	Columns      []rubric.Column // sorted by order
	Submissions  []submission.Submission
	Requirements []submission.Requirement
}

// Build flattens the input into the rows of the requested kind.
func Build(kind string, in Input, f Filter) (Sheet, error) {
	switch kind {
	case "", KindScore:
		return scoreSheet(in, f), nil
	case KindAttendance:
		return attendanceSheet(in, f), nil
	case KindSubmissions:
		return submissionsSheet(in, f), nil
	default:
		return Sheet{}, core.NewValidationError(nil, core.FieldError{
			Field: "kind",
			Error: "kind must be one of: " + strings.Join(Kinds, ", "),
		})
	}
}

func filteredTeams(teams []team.Team, f Filter) []team.Team {
	out := make([]team.Team, 0, len(teams))
	for _, t := range teams {
		if f.matchName(t.Name) {
			out = append(out, t)
		}
	}
	team.SortByName(out)
	return out
}

// ScoreHeader is the score report header for the given columns.
func ScoreHeader(cols []rubric.Column) []string {
	header := make([]string, 0, len(cols)+6)
	header = append(header, "Team/Member", "Roll No", "Project Title", "Guide")
	for _, c := range cols {
		header = append(header, c.Name)
	}
	return append(header, "Total", "Reviewers")
}

// TeamCell is the value shown for a team column on the team row.
func TeamCell(col rubric.Column, rec team.Record) string {
	if col.IsIndividual() {
		return ""
	}
	return col.DisplayValue(rec.TeamValue(col.Name))
}

// MemberCell is the value shown for an individual column on a member row.
func MemberCell(col rubric.Column, rec team.Record, member string) string {
	if !col.IsIndividual() {
		return ""
	}
	if rec.IsAbsent(member) {
		return scoring.Absent
	}
	return col.DisplayValue(rec.MemberValue(col.Name, member))
}

func scoreSheet(in Input, f Filter) Sheet {
	header := ScoreHeader(in.Columns)
	rows := make([][]string, 0)
	for _, t := range filteredTeams(in.Teams, f) {
		rec, _ := t.Record(in.CycleID)

		teamRow := []string{t.Name, "", t.ProjectTitle, t.Guide}
		for _, col := range in.Columns {
			teamRow = append(teamRow, TeamCell(col, rec))
		}
		teamRow = append(teamRow, "", rec.SubmittedBy)
		rows = append(rows, teamRow)

		for _, m := range t.Members() {
			row := []string{m.Name, m.RollNo, "", ""}
			for _, col := range in.Columns {
				row = append(row, MemberCell(col, rec, m.Key))
			}
			row = append(row, scoring.MemberTotal(in.Columns, rec, m.Key), "")
			rows = append(rows, row)
		}

		rows = append(rows, make([]string, len(header)))
	}
	return Sheet{Name: "Scores", Header: header, Rows: rows}
}

func attendanceSheet(in Input, f Filter) Sheet {
	rows := make([][]string, 0)
	for _, t := range filteredTeams(in.Teams, f) {
		rec, _ := t.Record(in.CycleID)
		rows = append(rows, []string{t.Name, "", ""})
		for _, m := range t.Members() {
			status := "Present"
			if rec.IsAbsent(m.Key) {
				status = "Absent"
			}
			rows = append(rows, []string{"", m.Key, status})
		}
	}
	return Sheet{Name: "Attendance", Header: []string{"Team", "Member", "Status"}, Rows: rows}
}

func submissionsSheet(in Input, f Filter) Sheet {
	titles := make(map[string]string, len(in.Requirements))
	for _, r := range in.Requirements {
		titles[r.ID] = r.Title
	}
	title := func(id string) string {
		if t, ok := titles[id]; ok {
			return t
		}
		return id
	}

	subs := make([]submission.Submission, 0, len(in.Submissions))
	for _, s := range in.Submissions {
		if f.matchName(s.BatchName) {
			subs = append(subs, s)
		}
	}
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].BatchName != subs[j].BatchName {
			return core.NaturalLess(subs[i].BatchName, subs[j].BatchName)
		}
		return title(subs[i].RequirementID) < title(subs[j].RequirementID)
	})

	rows := make([][]string, 0, len(subs))
	for _, s := range subs {
		rows = append(rows, []string{
			s.BatchName,
			title(s.RequirementID),
			s.FileName,
			s.UploadedAt.UTC().Format(uploadDateLayout),
		})
	}
	return Sheet{Name: "Submissions", Header: []string{"Team", "Requirement", "File", "Upload Date"}, Rows: rows}
}
