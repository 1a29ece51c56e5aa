package cycle_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/cycle"
	"github.com/trezcool/reviewdesk/core/team"
	memorydb "github.com/trezcool/reviewdesk/storage/database/memory"
	"github.com/trezcool/reviewdesk/testutil"
)

func newService() (*cycle.Service, *memorydb.DB) {
	db := memorydb.Open()
	svc := cycle.NewService(
		memorydb.NewCycleRepository(db),
		memorydb.NewTeamRepository(db),
		memorydb.NewColumnRepository(db),
		&testutil.NopLogger{},
	)
	return svc, db
}

func countActive(t *testing.T, svc *cycle.Service) int {
	t.Helper()
	cycles, err := svc.List(context.Background())
	require.NoError(t, err)
	var n int
	for _, c := range cycles {
		if c.IsActive {
			n++
		}
	}
	return n
}

func TestService_CreateActivates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, err := svc.Current(ctx)
	assert.Equal(t, core.ErrNoActiveCycle, errors.Cause(err))

	first, err := svc.Create(ctx, cycle.NewCycle{Name: "Review 1"})
	require.NoError(t, err)
	assert.True(t, first.IsActive)

	second, err := svc.Create(ctx, cycle.NewCycle{Name: "Review 2"})
	require.NoError(t, err)

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)
	assert.Equal(t, 1, countActive(t, svc))

	first, err = svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, first.IsActive)
}

func TestService_SingleActive(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	var ids []string
	for _, name := range []string{"R1", "R2", "R3"} {
		c, err := svc.Create(ctx, cycle.NewCycle{Name: name})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}

	for _, id := range []string{ids[0], ids[2], ids[1], ids[1], ids[0]} {
		_, err := svc.Activate(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, countActive(t, svc))

		current, err := svc.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, current.ID)
	}

	_, err := svc.Activate(ctx, "missing")
	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, 1, countActive(t, svc))
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, db := newService()
	teams := memorydb.NewTeamRepository(db)
	columns := memorydb.NewColumnRepository(db)

	old, err := svc.Create(ctx, cycle.NewCycle{Name: "Review 1"})
	require.NoError(t, err)
	testutil.CreateColumn(t, columns, old.ID, "Viva", core.ScopeTeam, core.InputNumber, -1)
	current, err := svc.Create(ctx, cycle.NewCycle{Name: "Review 2"})
	require.NoError(t, err)
	testutil.CreateColumn(t, columns, current.ID, "Viva", core.ScopeTeam, core.InputNumber, -1)

	tm := testutil.CreateTeam(t, teams, "Batch A1", "Ann (1)")
	for _, cid := range []string{old.ID, current.ID} {
		rec := team.NewRecord()
		rec.Scores["Viva"] = team.Scalar("5")
		_, err := teams.SaveRecord(ctx, tm.ID, cid, rec)
		require.NoError(t, err)
	}

	require.NoError(t, svc.Delete(ctx, old.ID))

	_, err = svc.Get(ctx, old.ID)
	assert.True(t, core.IsNotFound(err))

	cols, err := columns.QueryColumns(ctx, old.ID)
	require.NoError(t, err)
	assert.Empty(t, cols)
	cols, err = columns.QueryColumns(ctx, current.ID)
	require.NoError(t, err)
	assert.Len(t, cols, 1)

	tm, err = teams.GetTeam(ctx, tm.ID)
	require.NoError(t, err)
	_, ok := tm.Record(old.ID)
	assert.False(t, ok)
	rec, ok := tm.Record(current.ID)
	require.True(t, ok)
	assert.Equal(t, "5", rec.TeamValue("Viva"))

	assert.True(t, core.IsNotFound(svc.Delete(ctx, old.ID)))
}

func TestService_ResetData(t *testing.T) {
	ctx := context.Background()
	svc, db := newService()
	teams := memorydb.NewTeamRepository(db)

	c, err := svc.Create(ctx, cycle.NewCycle{Name: "Review 1"})
	require.NoError(t, err)
	tm := testutil.CreateTeam(t, teams, "Batch A1", "Ann (1)")
	_, err = teams.SaveRecord(ctx, tm.ID, c.ID, team.NewRecord())
	require.NoError(t, err)

	require.NoError(t, svc.ResetData(ctx, c.ID))

	tm, err = teams.GetTeam(ctx, tm.ID)
	require.NoError(t, err)
	assert.Empty(t, tm.ReviewData)

	c, err = svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, c.IsActive)
}

func TestNewCycle_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	tests := []struct {
		name       string
		nc         cycle.NewCycle
		wantFields []string
	}{
		{name: "valid", nc: cycle.NewCycle{Name: " Review 1 "}},
		{name: "blank name", nc: cycle.NewCycle{Name: "   "}, wantFields: []string{"name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nc.Validate(validate)
			assert.Equal(t, tt.wantFields, testutil.FieldErrors(err))
		})
	}
}
