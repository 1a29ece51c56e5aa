package spreadsheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/importer"
	"github.com/trezcool/reviewdesk/core/report"
	"github.com/trezcool/reviewdesk/core/rubric"
	"github.com/trezcool/reviewdesk/core/team"
)

// trim drops the trailing blank cells of every row and the trailing blank rows.
func trim(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	last := -1
	for i, row := range rows {
		n := len(row)
		for n > 0 && row[n-1] == "" {
			n--
		}
		out = append(out, append([]string{}, row[:n]...))
		if n > 0 {
			last = i
		}
	}
	return out[:last+1]
}

func TestXLSX_ScoreReportRoundTrip(t *testing.T) {
	cols := []rubric.Column{
		{Name: "Status", Scope: core.ScopeTeam, InputKind: core.InputOptions, Options: []string{"Pending", "Done"}},
		{Name: "Viva", Scope: core.ScopeIndividual, InputKind: core.InputNumber},
	}
	rec := team.NewRecord()
	rec.Scores["Viva"] = team.Composite(map[string]string{"Ann (1)": "7.5"})
	rec.Absent["Ben (2)"] = true
	teams := []team.Team{
		{Name: "Batch A1", MembersRaw: "Ann (1), Ben (2)", ReviewData: map[string]team.Record{"c1": rec}},
		{Name: "Batch A2", MembersRaw: "Cat (3)"},
	}

	sheet, err := report.Build(report.KindScore, report.Input{CycleID: "c1", Teams: teams, Columns: cols}, report.Filter{})
	require.NoError(t, err)

	codec := XLSX{}
	data, err := codec.Encode(sheet)
	require.NoError(t, err)
	assert.Equal(t, "xlsx", codec.Extension())

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"Scores"}, f.GetSheetList())
	_ = f.Close()

	rows, err := codec.ReadRows(bytes.NewReader(data))
	require.NoError(t, err)
	want := append([][]string{sheet.Header}, sheet.Rows...)
	assert.Equal(t, trim(want), trim(rows))

	// cells read back exactly as the flattener rendered them
	assert.Equal(t, report.TeamCell(cols[0], rec), rows[1][4])
	assert.Equal(t, report.MemberCell(cols[1], rec, "Ann (1)"), rows[2][5])
	assert.Equal(t, report.MemberCell(cols[1], rec, "Ben (2)"), rows[3][5])
}

func TestXLSX_ImportRows(t *testing.T) {
	codec := XLSX{}
	data, err := codec.Encode(report.Sheet{
		Header: []string{"", "Final Year Projects"},
		Rows: [][]string{
			{},
			{"Batch", "Project", "Guide", "Roll No", "Name"},
			{"A1", "Irrigation", "Dr. Rao", "1", "Ann"},
			{"", "", "", "2", "Ben"},
		},
	})
	require.NoError(t, err)

	rows, err := codec.ReadRows(bytes.NewReader(data))
	require.NoError(t, err)

	_, keys, err := importer.DetectHeader(rows[2:])
	require.NoError(t, err)
	assert.Equal(t, []string{"Batch", "Project", "Guide", "Roll No", "Name"}, keys)

	idx, teams, err := importer.Parse(append([][]string{{}, {}}, rows[2:]...))
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	require.Len(t, teams, 1)
	assert.Equal(t, "Batch A1", teams[0].Name)
	assert.Equal(t, "Ann (1), Ben (2)", teams[0].Members)
}

func TestXLSX_ReadRowsInvalid(t *testing.T) {
	_, err := XLSX{}.ReadRows(bytes.NewReader([]byte("not a workbook")))
	assert.Error(t, err)
}
