package team_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/team"
	memorydb "github.com/trezcool/reviewdesk/storage/database/memory"
	"github.com/trezcool/reviewdesk/testutil"
)

func newService() (*team.Service, team.Repository) {
	repo := memorydb.NewTeamRepository(memorydb.Open())
	return team.NewService(repo), repo
}

func teamNames(teams []team.Team) []string {
	names := make([]string, 0, len(teams))
	for _, t := range teams {
		names = append(names, t.Name)
	}
	return names
}

func TestService_CreateMany(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	created, err := svc.CreateMany(ctx,
		team.NewTeam{Name: "Batch A1", Members: "Ann (1), Ben (2)"},
		team.NewTeam{Name: "Batch B1"},
	)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.NotEmpty(t, created[0].ID)
	assert.NotNil(t, created[0].ReviewData)

	_, err = svc.Create(ctx, team.NewTeam{Name: "Batch A1"})
	assert.True(t, core.IsDuplicate(err))

	_, err = svc.CreateMany(ctx, team.NewTeam{Name: "Batch C1"}, team.NewTeam{Name: "Batch C1"})
	assert.True(t, core.IsDuplicate(err))
	_, err = svc.GetByName(ctx, "Batch C1")
	assert.True(t, core.IsNotFound(err), "a failed batch must not insert anything")
}

func TestService_ListAndSections(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService()
	for _, name := range []string{"Batch A10", "Batch B1", "Batch A2", "Batch A1"} {
		testutil.CreateTeam(t, repo, name)
	}

	teams, err := svc.List(ctx, team.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Batch A1", "Batch A2", "Batch A10", "Batch B1"}, teamNames(teams))

	teams, err = svc.List(ctx, team.QueryFilter{Section: "A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Batch A1", "Batch A2", "Batch A10"}, teamNames(teams))

	teams, err = svc.List(ctx, team.QueryFilter{Name: "Batch Z9"})
	require.NoError(t, err)
	assert.NotNil(t, teams)
	assert.Empty(t, teams)

	sections, err := svc.Sections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, sections)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService()
	a1 := testutil.CreateTeam(t, repo, "Batch A1", "Ann (1)")
	testutil.CreateTeam(t, repo, "Batch A2")

	rec := team.NewRecord()
	rec.Scores["Report"] = team.Scalar("30")
	_, err := repo.SaveRecord(ctx, a1.ID, "c1", rec)
	require.NoError(t, err)

	taken := "Batch A2"
	_, err = svc.Update(ctx, a1.ID, team.UpdateTeam{Name: &taken})
	assert.True(t, core.IsDuplicate(err))

	guide := "Dr. Rao"
	members := "Ann (1), Ben (2)"
	updated, err := svc.Update(ctx, a1.ID, team.UpdateTeam{Guide: &guide, Members: &members})
	require.NoError(t, err)
	assert.Equal(t, "Batch A1", updated.Name)
	assert.Equal(t, "Dr. Rao", updated.Guide)
	assert.Equal(t, []string{"Ann (1)", "Ben (2)"}, updated.MemberKeys())

	got, ok := updated.Record("c1")
	require.True(t, ok, "review data survives a roster update")
	assert.Equal(t, "30", got.TeamValue("Report"))

	_, err = svc.Update(ctx, "missing", team.UpdateTeam{Guide: &guide})
	assert.True(t, core.IsNotFound(err))
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService()
	a1 := testutil.CreateTeam(t, repo, "Batch A1")
	a2 := testutil.CreateTeam(t, repo, "Batch A2")
	testutil.CreateTeam(t, repo, "Batch A3")

	n, err := svc.Delete(ctx, a1.ID, a2.ID, "missing")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	teams, err := svc.List(ctx, team.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Batch A3"}, teamNames(teams))
}

func TestTeam_RenameKey(t *testing.T) {
	tm := team.Team{Name: "Batch A1", MembersRaw: "Ann (1), Ben (2)"}

	tests := []struct {
		name    string
		rm      team.RenameMember
		want    []string
		changed bool
		check   func(error) bool
	}{
		{name: "renames", rm: team.RenameMember{From: "Ann (1)", To: "Anne (1)"}, want: []string{"Anne (1)", "Ben (2)"}, changed: true},
		{name: "same name", rm: team.RenameMember{From: "Ben (2)", To: "Ben (2)"}, want: []string{"Ann (1)", "Ben (2)"}},
		{name: "unknown member", rm: team.RenameMember{From: "Zed (9)", To: "Zee (9)"}, check: core.IsNotFound},
		{name: "target taken", rm: team.RenameMember{From: "Ben (2)", To: "Ann (1)"}, check: core.IsDuplicate},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, changed, err := tm.RenameKey(tc.rm)
			if tc.check != nil {
				assert.True(t, tc.check(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.changed, changed)
			assert.Equal(t, tc.want, got.MemberKeys())
		})
	}
	assert.Equal(t, "Ann (1), Ben (2)", tm.MembersRaw)
}

func TestRenameInRecord(t *testing.T) {
	rec := team.NewRecord()
	rec.Scores["Viva"] = team.Composite(map[string]string{"Ann (1)": "7", "Ben (2)": "8"})
	rec.Scores["Report"] = team.Scalar("30")
	rec.Absent["Ann (1)"] = true

	got, changed := team.RenameInRecord(rec, "Ann (1)", "Anne (1)")
	assert.True(t, changed)
	assert.Equal(t, "7", got.MemberValue("Viva", "Anne (1)"))
	assert.Equal(t, "", got.MemberValue("Viva", "Ann (1)"))
	assert.Equal(t, "8", got.MemberValue("Viva", "Ben (2)"))
	assert.Equal(t, "30", got.TeamValue("Report"))
	assert.Equal(t, []string{"Anne (1)"}, got.AbsentMembers())
	assert.Equal(t, "7", rec.MemberValue("Viva", "Ann (1)"), "source record is not modified")

	_, changed = team.RenameInRecord(rec, "Zed (9)", "Zee (9)")
	assert.False(t, changed)
}

func TestNewTeam_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	nt := team.NewTeam{Name: " Batch A1 ", Members: " Ann (1) ,, Ben (2)", Guide: " Dr. Rao "}
	require.NoError(t, nt.Validate(validate))
	assert.Equal(t, "Batch A1", nt.Name)
	assert.Equal(t, "Ann (1), Ben (2)", nt.Members)
	assert.Equal(t, "Dr. Rao", nt.Guide)

	nt = team.NewTeam{Name: "  "}
	assert.Equal(t, []string{"name"}, testutil.FieldErrors(nt.Validate(validate)))

	rm := team.RenameMember{From: "Ann (1)", To: "Ann, Ben"}
	assert.Equal(t, []string{"to"}, testutil.FieldErrors(rm.Validate(validate)))
}
