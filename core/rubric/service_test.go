package rubric_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/rubric"
	"github.com/trezcool/reviewdesk/core/team"
	memorydb "github.com/trezcool/reviewdesk/storage/database/memory"
	"github.com/trezcool/reviewdesk/testutil"
)

type fixture struct {
	svc     *rubric.Service
	db      *memorydb.DB
	cycleID string
}

func setup(t *testing.T, purge bool) fixture {
	t.Helper()
	db := memorydb.Open()
	conf := core.NewTestConfig()
	conf.Scoring.PurgeOnColumnDelete = purge
	c := testutil.CreateActiveCycle(t, memorydb.NewCycleRepository(db), "Review 1")
	svc := rubric.NewService(
		memorydb.NewColumnRepository(db),
		memorydb.NewCycleRepository(db),
		memorydb.NewTeamRepository(db),
		conf,
		&testutil.NopLogger{},
	)
	return fixture{svc: svc, db: db, cycleID: c.ID}
}

func names(cols []rubric.Column) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, c.Name)
	}
	return out
}

func TestService_NoActiveCycle(t *testing.T) {
	ctx := context.Background()
	db := memorydb.Open()
	svc := rubric.NewService(
		memorydb.NewColumnRepository(db),
		memorydb.NewCycleRepository(db),
		memorydb.NewTeamRepository(db),
		core.NewTestConfig(),
		&testutil.NopLogger{},
	)

	cols, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, cols)
	assert.NotNil(t, cols)

	_, err = svc.Create(ctx, rubric.NewColumn{Name: "Viva", Scope: core.ScopeTeam, InputKind: core.InputText})
	assert.Equal(t, core.ErrNoActiveCycle, errors.Cause(err))

	_, err = svc.Reorder(ctx, []string{"Viva"})
	assert.Equal(t, core.ErrNoActiveCycle, errors.Cause(err))
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)

	col, err := f.svc.Create(ctx, rubric.NewColumn{Name: "Viva", Scope: core.ScopeIndividual, InputKind: core.InputNumber})
	require.NoError(t, err)
	assert.Equal(t, f.cycleID, col.CycleID)
	assert.Equal(t, 0, col.Order)
	assert.NotEmpty(t, col.ID)

	_, err = f.svc.Create(ctx, rubric.NewColumn{Name: "Viva", Scope: core.ScopeTeam, InputKind: core.InputText})
	assert.True(t, core.IsDuplicate(err))

	// a new cycle starts with an empty rubric
	testutil.CreateActiveCycle(t, memorydb.NewCycleRepository(f.db), "Review 2")
	cols, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, cols)

	_, err = f.svc.Create(ctx, rubric.NewColumn{Name: "Viva", Scope: core.ScopeTeam, InputKind: core.InputText})
	assert.NoError(t, err)
}

func TestService_Create_defaultOrder(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)

	for _, name := range []string{"C", "A", "B"} {
		col, err := f.svc.Create(ctx, rubric.NewColumn{Name: name, Scope: core.ScopeTeam, InputKind: core.InputText})
		require.NoError(t, err)
		assert.Equal(t, 0, col.Order, name)
	}
	first := 0
	last := 5
	_, err := f.svc.Create(ctx, rubric.NewColumn{Name: "Z", Scope: core.ScopeTeam, InputKind: core.InputText, Order: &first})
	require.NoError(t, err)
	col, err := f.svc.Create(ctx, rubric.NewColumn{Name: "D", Scope: core.ScopeTeam, InputKind: core.InputText, Order: &last})
	require.NoError(t, err)
	assert.Equal(t, 5, col.Order)

	cols, err := f.svc.List(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"A", "B", "C", "Z", "D"}, names)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)
	cols := memorydb.NewColumnRepository(f.db)
	testutil.CreateColumn(t, cols, f.cycleID, "Viva", core.ScopeTeam, core.InputNumber, 10)
	testutil.CreateColumn(t, cols, f.cycleID, "Report", core.ScopeTeam, core.InputText, -1)

	t.Run("rename collision", func(t *testing.T) {
		orig, err := f.svc.Get(ctx, "Viva")
		require.NoError(t, err)
		name := "Report"
		_, err = f.svc.Update(ctx, "Viva", rubric.UpdateColumn{Name: &name}.Merge(orig))
		assert.True(t, core.IsDuplicate(err))
	})

	t.Run("partial update", func(t *testing.T) {
		orig, err := f.svc.Get(ctx, "Viva")
		require.NoError(t, err)
		name := "Final Viva"
		col, err := f.svc.Update(ctx, "Viva", rubric.UpdateColumn{Name: &name}.Merge(orig))
		require.NoError(t, err)
		assert.Equal(t, orig.ID, col.ID)
		assert.Equal(t, "Final Viva", col.Name)
		require.NotNil(t, col.MaxScore)
		assert.Equal(t, 10.0, *col.MaxScore)
		assert.Equal(t, orig.Order, col.Order)

		_, err = f.svc.Get(ctx, "Viva")
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("clear max score", func(t *testing.T) {
		orig, err := f.svc.Get(ctx, "Final Viva")
		require.NoError(t, err)
		col, err := f.svc.Update(ctx, "Final Viva", rubric.UpdateColumn{ClearMaxScore: true}.Merge(orig))
		require.NoError(t, err)
		assert.Nil(t, col.MaxScore)
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := f.svc.Update(ctx, "Nope", rubric.NewColumn{Name: "Nope"})
		assert.True(t, core.IsNotFound(err))
	})
}

func TestService_Delete(t *testing.T) {
	tests := []struct {
		name      string
		purge     bool
		wantScore string
	}{
		{name: "orphans scores by default", purge: false, wantScore: "7"},
		{name: "purges scores when configured", purge: true, wantScore: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := setup(t, tt.purge)
			teams := memorydb.NewTeamRepository(f.db)
			testutil.CreateColumn(t, memorydb.NewColumnRepository(f.db), f.cycleID, "Viva", core.ScopeTeam, core.InputNumber, -1)
			tm := testutil.CreateTeam(t, teams, "Batch A1", "Ann (1)")
			rec := team.NewRecord()
			rec.Scores["Viva"] = team.Scalar("7")
			_, err := teams.SaveRecord(ctx, tm.ID, f.cycleID, rec)
			require.NoError(t, err)

			require.NoError(t, f.svc.Delete(ctx, "Viva"))

			_, err = f.svc.Get(ctx, "Viva")
			assert.True(t, core.IsNotFound(err))

			tm, err = teams.GetTeam(ctx, tm.ID)
			require.NoError(t, err)
			got, _ := tm.Record(f.cycleID)
			assert.Equal(t, tt.wantScore, got.TeamValue("Viva"))

			assert.True(t, core.IsNotFound(f.svc.Delete(ctx, "Viva")))
		})
	}
}

func TestService_Reorder(t *testing.T) {
	ctx := context.Background()
	f := setup(t, false)
	repo := memorydb.NewColumnRepository(f.db)
	for _, n := range []string{"A", "B", "C", "D"} {
		testutil.CreateColumn(t, repo, f.cycleID, n, core.ScopeTeam, core.InputText, -1)
	}

	cols, err := f.svc.Reorder(ctx, []string{"C", "A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B", "D"}, names(cols))
	for i, c := range cols {
		assert.Equal(t, i, c.Order)
	}

	_, err = f.svc.Reorder(ctx, []string{"D", "Z"})
	assert.True(t, core.IsNotFound(err))

	cols, err = f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B", "D"}, names(cols), "failed reorder must not write anything")
}

func TestNewColumn_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()
	maxScore := 10.0
	negative := -1.0

	tests := []struct {
		name       string
		nc         rubric.NewColumn
		wantFields []string
	}{
		{
			name: "valid number column",
			nc:   rubric.NewColumn{Name: "Viva", Scope: "Individual", InputKind: "NUMBER", MaxScore: &maxScore},
		},
		{
			name: "input kind defaults to text",
			nc:   rubric.NewColumn{Name: "Remarks", Scope: core.ScopeTeam},
		},
		{
			name: "valid options column",
			nc:   rubric.NewColumn{Name: "Status", Scope: core.ScopeTeam, InputKind: core.InputOptions, Options: []string{"Pending", "Done"}},
		},
		{
			name:       "blank name",
			nc:         rubric.NewColumn{Name: "  ", Scope: core.ScopeTeam, InputKind: core.InputText},
			wantFields: []string{"name"},
		},
		{
			name:       "unknown scope",
			nc:         rubric.NewColumn{Name: "Viva", Scope: "group", InputKind: core.InputText},
			wantFields: []string{"scope"},
		},
		{
			name:       "unknown input kind",
			nc:         rubric.NewColumn{Name: "Viva", Scope: core.ScopeTeam, InputKind: "date"},
			wantFields: []string{"input_kind"},
		},
		{
			name:       "options column without options",
			nc:         rubric.NewColumn{Name: "Status", Scope: core.ScopeTeam, InputKind: core.InputOptions},
			wantFields: []string{"options"},
		},
		{
			name:       "options on a text column",
			nc:         rubric.NewColumn{Name: "Status", Scope: core.ScopeTeam, InputKind: core.InputText, Options: []string{"x"}},
			wantFields: []string{"options"},
		},
		{
			name:       "max score on a text column",
			nc:         rubric.NewColumn{Name: "Remarks", Scope: core.ScopeTeam, InputKind: core.InputText, MaxScore: &maxScore},
			wantFields: []string{"max_score"},
		},
		{
			name:       "negative max score",
			nc:         rubric.NewColumn{Name: "Viva", Scope: core.ScopeTeam, InputKind: core.InputNumber, MaxScore: &negative},
			wantFields: []string{"max_score"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nc.Validate(validate)
			assert.Equal(t, tt.wantFields, testutil.FieldErrors(err))
		})
	}
}
