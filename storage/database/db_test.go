package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/cycle"
	"github.com/trezcool/reviewdesk/testutil"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()
	logger := &testutil.NopLogger{}

	t.Run("memory", func(t *testing.T) {
		repos, err := Open(ctx, conf, logger)
		require.NoError(t, err)
		defer func() { assert.NoError(t, repos.Close(ctx)) }()

		assert.Equal(t, core.EngineMemory, repos.Engine)
		assert.NoError(t, repos.Migrate(ctx))

		c, err := repos.Cycles.CreateCycle(ctx, cycle.Cycle{Name: "Review 1"})
		require.NoError(t, err)
		got, err := repos.Cycles.GetCycle(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Review 1", got.Name)
	})

	t.Run("unknown engine", func(t *testing.T) {
		bad := *conf
		bad.Database.Engine = "sqlite"
		_, err := Open(ctx, &bad, logger)
		assert.EqualError(t, err, `unknown database engine "sqlite"`)
	})
}
