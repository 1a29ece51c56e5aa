package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/rubric"
	"github.com/trezcool/reviewdesk/core/submission"
	"github.com/trezcool/reviewdesk/core/team"
)

const cycleID = "c1"

func scoreInput() Input {
	cols := []rubric.Column{
		{Name: "Status", Scope: core.ScopeTeam, InputKind: core.InputOptions, Options: []string{"Pending", "Done"}, Order: 0},
		{Name: "Presentation", Scope: core.ScopeIndividual, InputKind: core.InputNumber, Order: 1},
		{Name: "Viva", Scope: core.ScopeIndividual, InputKind: core.InputNumber, Order: 2},
		{Name: "Remarks", Scope: core.ScopeTeam, InputKind: core.InputText, Order: 3},
	}

	rec := team.NewRecord()
	rec.Scores["Presentation"] = team.Composite(map[string]string{"Ann (21A1)": "7", "Ben (21A2)": "9"})
	rec.Scores["Viva"] = team.Composite(map[string]string{"Ann (21A1)": "2.5"})
	rec.Scores["Remarks"] = team.Scalar("good")
	rec.Absent["Ben (21A2)"] = true
	rec.SubmittedBy = "rev1"

	return Input{
		CycleID: cycleID,
		Columns: cols,
		Teams: []team.Team{
			{
				Name:       "Batch A10",
				MembersRaw: "Cat",
				ReviewData: map[string]team.Record{},
			},
			{
				Name:         "Batch A2",
				MembersRaw:   "Ann (21A1), Ben (21A2)",
				ProjectTitle: "Irrigation",
				Guide:        "Dr. Rao",
				ReviewData:   map[string]team.Record{cycleID: rec, "old": team.NewRecord()},
			},
			{
				Name:       "Batch B1",
				MembersRaw: "Dan (21B1)",
			},
		},
	}
}

func TestBuild_Score(t *testing.T) {
	s, err := Build("", scoreInput(), Filter{Section: "A"})
	require.NoError(t, err)

	assert.Equal(t, "Scores", s.Name)
	assert.Equal(t, []string{"Team/Member", "Roll No", "Project Title", "Guide", "Status", "Presentation", "Viva", "Remarks", "Total", "Reviewers"}, s.Header)

	blank := make([]string, len(s.Header))
	want := [][]string{
		{"Batch A2", "", "Irrigation", "Dr. Rao", "Pending", "", "", "good", "", "rev1"},
		{"Ann", "21A1", "", "", "", "7", "2.5", "", "9.5", ""},
		{"Ben", "21A2", "", "", "", "Absent", "Absent", "", "Absent", ""},
		blank,
		{"Batch A10", "", "", "", "Pending", "", "", "", "", ""},
		{"Cat", "", "", "", "", "", "", "", "0", ""},
		blank,
	}
	assert.Equal(t, want, s.Rows)

	for _, row := range s.Rows {
		assert.Len(t, row, len(s.Header))
	}
}

func TestBuild_Attendance(t *testing.T) {
	s, err := Build(KindAttendance, scoreInput(), Filter{Team: "Batch A2"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Team", "Member", "Status"}, s.Header)
	assert.Equal(t, [][]string{
		{"Batch A2", "", ""},
		{"", "Ann (21A1)", "Present"},
		{"", "Ben (21A2)", "Absent"},
	}, s.Rows)
}

func TestBuild_Submissions(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 5, 0, 0, time.FixedZone("IST", 5*3600+1800))
	in := Input{
		Requirements: []submission.Requirement{
			{ID: "r1", Title: "Synopsis"},
			{ID: "r2", Title: "Abstract"},
		},
		Submissions: []submission.Submission{
			{RequirementID: "r1", BatchName: "Batch A10", FileName: "syn.pdf", UploadedAt: at},
			{RequirementID: "r1", BatchName: "Batch A2", FileName: "syn2.pdf", UploadedAt: at},
			{RequirementID: "r2", BatchName: "Batch A2", FileName: "abs.docx", UploadedAt: at},
			{RequirementID: "gone", BatchName: "Batch B1", FileName: "x.pdf", UploadedAt: at},
		},
	}

	s, err := Build(KindSubmissions, in, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Team", "Requirement", "File", "Upload Date"}, s.Header)
	assert.Equal(t, [][]string{
		{"Batch A2", "Abstract", "abs.docx", "2026-03-01 03:35"},
		{"Batch A2", "Synopsis", "syn2.pdf", "2026-03-01 03:35"},
		{"Batch A10", "Synopsis", "syn.pdf", "2026-03-01 03:35"},
		{"Batch B1", "gone", "x.pdf", "2026-03-01 03:35"},
	}, s.Rows)

	s, err = Build(KindSubmissions, in, Filter{Section: "B"})
	require.NoError(t, err)
	assert.Len(t, s.Rows, 1)
}

func TestBuild_UnknownKind(t *testing.T) {
	_, err := Build("grades", scoreInput(), Filter{})
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "kind", verr.Fields[0].Field)
}

func TestMemberCell(t *testing.T) {
	num := rubric.Column{Name: "Viva", Scope: core.ScopeIndividual, InputKind: core.InputNumber}
	opts := rubric.Column{Name: "Grade", Scope: core.ScopeIndividual, InputKind: core.InputOptions, Options: []string{"C", "B", "A"}}
	teamCol := rubric.Column{Name: "Report", Scope: core.ScopeTeam, InputKind: core.InputNumber}

	rec := team.NewRecord()
	rec.Scores["Viva"] = team.Composite(map[string]string{"Ann": "4"})
	rec.Scores["Report"] = team.Scalar("30")
	rec.Absent["Ben"] = true

	assert.Equal(t, "4", MemberCell(num, rec, "Ann"))
	assert.Equal(t, "", MemberCell(num, rec, "Cat"))
	assert.Equal(t, "C", MemberCell(opts, rec, "Ann"))
	assert.Equal(t, "Absent", MemberCell(opts, rec, "Ben"))
	assert.Equal(t, "", MemberCell(teamCol, rec, "Ann"))
	assert.Equal(t, "30", TeamCell(teamCol, rec))
	assert.Equal(t, "", TeamCell(num, rec))
}
