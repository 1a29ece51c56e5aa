package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/scoring"
	"github.com/trezcool/reviewdesk/core/user"
	"github.com/trezcool/reviewdesk/testutil"
)

func Test_scoringApi(t *testing.T) {
	app := setup(t)
	adminToken := app.token(t, app.createUser(t, "admin", user.RoleAdmin))
	reviewerToken := app.token(t, app.createUser(t, "reviewer", user.RoleReviewer))
	otherToken := app.token(t, app.createUser(t, "other", user.RoleReviewer))
	outsider := app.createUser(t, "outsider", user.RoleReviewer)
	outsider.Sections = []string{"B"}
	outsider, err := app.users.UpdateUser(ctxBg(), outsider)
	require.NoError(t, err)
	outsiderToken := app.token(t, outsider)

	tm := testutil.CreateTeam(t, app.teams, "Batch A1", "Ann (1)", "Bob (2)")
	path := "/v1/teams/" + tm.ID + "/record"

	app.run(t, []httpTest{
		{
			name: "no active cycle", path: path, token: reviewerToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "no active review cycle"}),
		},
	})

	c := testutil.CreateActiveCycle(t, app.cycles, "Review 1")
	testutil.CreateColumn(t, app.columns, c.ID, "Guide Marks", core.ScopeIndividual, core.InputNumber, 10)
	testutil.CreateColumn(t, app.columns, c.ID, "Remarks", core.ScopeTeam, core.InputText, -1)
	testutil.CreateColumn(t, app.columns, c.ID, "Status", core.ScopeTeam, core.InputOptions, -1, "Pending", "Done")

	sheetOf := func(t *testing.T, method, p, token string, body []byte) scoring.Sheet {
		t.Helper()
		rec := app.serve(newAuthRequest(method, p, token, body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sheet scoring.Sheet
		decode(t, rec, &sheet)
		return sheet
	}

	t.Run("empty sheet", func(t *testing.T) {
		sheet := sheetOf(t, http.MethodGet, path, reviewerToken, nil)
		assert.Equal(t, c.ID, sheet.Cycle.ID)
		assert.Len(t, sheet.Columns, 3)
		assert.False(t, sheet.Record.Locked)
		assert.Equal(t, map[string]string{"Ann (1)": "0", "Bob (2)": "0"}, sheet.Totals)
	})

	app.run(t, []httpTest{
		{name: "other section", path: path, token: outsiderToken, wantCode: http.StatusNotFound},
		{
			name: "unknown column", method: http.MethodPost, path: path, token: reviewerToken,
			body:     []byte(`{"Nope": "x"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"Nope": "unknown column"}`),
		},
		{
			name: "unknown member", method: http.MethodPost, path: path, token: reviewerToken,
			body:     []byte(`{"Guide Marks": {"Zed (9)": "4"}}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"Guide Marks[Zed (9)]": "unknown member"}`),
		},
		{
			name: "team value on individual column", method: http.MethodPost, path: path, token: reviewerToken,
			body:     []byte(`{"Guide Marks": "4"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"Guide Marks": "expected values keyed by member"}`),
		},
		{
			name: "above max score", method: http.MethodPost, path: path, token: reviewerToken,
			body:     []byte(`{"Guide Marks": {"Ann (1)": 11, "Bob (2)": 5}, "Remarks": "ok"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"Guide Marks[Ann (1)]": "must be less than or equal to 10"}`),
		},
		{
			name: "option not listed", method: http.MethodPost, path: path, token: reviewerToken,
			body:     []byte(`{"Status": "Lost"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"Status": "must be one of: Pending, Done"}`),
		},
		{
			name: "incomplete", method: http.MethodPost, path: path, token: reviewerToken,
			body:     []byte(`{"Guide Marks": {"Ann (1)": "8"}}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"Guide Marks[Bob (2)]": "a value is required for Bob (2)",
				"Remarks": "a value is required for Batch A1"
			}`),
		},
		{
			name: "bad absence map", method: http.MethodPost, path: path, token: reviewerToken,
			body:     []byte(`{"_absentMembers": ["Bob (2)"]}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"_absentMembers": "must map members to true or false"}`),
		},
		{name: "reviewers cannot lock", method: http.MethodPost, path: path + "/lock", token: reviewerToken, wantCode: http.StatusForbidden},
	})

	t.Run("preview does not save", func(t *testing.T) {
		sheet := sheetOf(t, http.MethodPost, path+"/preview", reviewerToken, []byte(`{"Guide Marks": {"Ann (1)": "9"}}`))
		assert.Equal(t, "9", sheet.Totals["Ann (1)"])
		assert.Empty(t, sheet.Record.MemberValue("Guide Marks", "Ann (1)"))

		got, err := app.teams.GetTeam(ctxBg(), tm.ID)
		require.NoError(t, err)
		_, ok := got.Record(c.ID)
		assert.False(t, ok)
	})

	t.Run("first reviewer submission locks", func(t *testing.T) {
		sheet := sheetOf(t, http.MethodPost, path, reviewerToken,
			[]byte(`{"Guide Marks": {"Ann (1)": 7.5}, "Remarks": " good ", "_absentMembers": {"Bob (2)": true}}`))
		assert.True(t, sheet.Record.Locked)
		assert.Equal(t, "reviewer", sheet.Record.SubmittedBy)
		assert.False(t, sheet.Record.SubmittedAt.IsZero())
		assert.Equal(t, map[string]string{"Ann (1)": "7.5", "Bob (2)": scoring.Absent}, sheet.Totals)
		assert.Equal(t, []string{"Bob (2)"}, sheet.Record.AbsentMembers())
	})

	app.run(t, []httpTest{
		{
			name: "second reviewer submission is rejected", method: http.MethodPost, path: path, token: otherToken,
			body:     []byte(`{"Remarks": "changed"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "scoring is locked for this team"}),
		},
	})

	t.Run("admin edits keep the lock", func(t *testing.T) {
		sheet := sheetOf(t, http.MethodPost, path, adminToken, []byte(`{"Remarks": "fixed by admin"}`))
		assert.True(t, sheet.Record.Locked)
		assert.Equal(t, "admin", sheet.Record.SubmittedBy)
		assert.Equal(t, "fixed by admin", sheet.Record.TeamValue("Remarks"))
		assert.Equal(t, "7.5", sheet.Record.MemberValue("Guide Marks", "Ann (1)"))
	})

	t.Run("unlock then resubmit", func(t *testing.T) {
		sheet := sheetOf(t, http.MethodPost, path+"/unlock", adminToken, nil)
		assert.False(t, sheet.Record.Locked)

		sheet = sheetOf(t, http.MethodPost, path, otherToken,
			[]byte(`{"Guide Marks": {"Bob (2)": "6"}, "_absentMembers": {}}`))
		assert.True(t, sheet.Record.Locked)
		assert.Equal(t, "other", sheet.Record.SubmittedBy)
		assert.Equal(t, map[string]string{"Ann (1)": "7.5", "Bob (2)": "6"}, sheet.Totals)
	})

	t.Run("admin lock", func(t *testing.T) {
		sheetOf(t, http.MethodPost, path+"/unlock", adminToken, nil)
		sheet := sheetOf(t, http.MethodPost, path+"/lock", adminToken, nil)
		assert.True(t, sheet.Record.Locked)
	})
}
