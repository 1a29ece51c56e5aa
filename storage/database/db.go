package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/cycle"
	"github.com/trezcool/reviewdesk/core/rubric"
	"github.com/trezcool/reviewdesk/core/submission"
	"github.com/trezcool/reviewdesk/core/team"
	"github.com/trezcool/reviewdesk/core/user"
	memorydb "github.com/trezcool/reviewdesk/storage/database/memory"
	mongodb "github.com/trezcool/reviewdesk/storage/database/mongo"
	postgresdb "github.com/trezcool/reviewdesk/storage/database/postgres"
)

// Repositories bundles the repositories of the configured engine.
type Repositories struct {
	Engine      string
	Users       user.Repository
	Cycles      cycle.Repository
	Columns     rubric.Repository
	Teams       team.Repository
	Submissions submission.Repository

	sqlDB   *sqlx.DB
	migrate func(ctx context.Context) error
	close   func(ctx context.Context) error
}

// Open connects to the engine named by conf.Database.Engine.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (*Repositories, error) {
	switch conf.Database.Engine {
	case core.EngineMemory, "":
		logger.Warn("using the in-memory database: data is lost on restart")
		return openMemory(), nil

	case core.EnginePostgres:
		if err := postgresdb.CreateIfNotExist(ctx, conf); err != nil {
			return nil, errors.Wrap(err, "creating database")
		}
		db, err := postgresdb.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		logger.Info(fmt.Sprintf("connected to postgres database %q", conf.Database.Name))
		return openPostgres(db), nil

	case core.EngineMongo:
		db, err := mongodb.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		logger.Info(fmt.Sprintf("connected to mongo database %q", conf.Database.Name))
		return openMongo(db), nil

	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
}

func openMemory() *Repositories {
	db := memorydb.Open()
	return &Repositories{
		Engine:      core.EngineMemory,
		Users:       memorydb.NewUserRepository(db),
		Cycles:      memorydb.NewCycleRepository(db),
		Columns:     memorydb.NewColumnRepository(db),
		Teams:       memorydb.NewTeamRepository(db),
		Submissions: memorydb.NewSubmissionRepository(db),
		migrate:     func(context.Context) error { return nil },
		close:       func(context.Context) error { return db.Close() },
	}
}

func openPostgres(db *sqlx.DB) *Repositories {
	return &Repositories{
		Engine:      core.EnginePostgres,
		sqlDB:       db,
		Users:       postgresdb.NewUserRepository(db),
		Cycles:      postgresdb.NewCycleRepository(db),
		Columns:     postgresdb.NewColumnRepository(db),
		Teams:       postgresdb.NewTeamRepository(db),
		Submissions: postgresdb.NewSubmissionRepository(db),
		migrate:     func(ctx context.Context) error { return postgresdb.Migrate(ctx, db) },
		close:       func(context.Context) error { return db.Close() },
	}
}

func openMongo(db *mongodb.DB) *Repositories {
	return &Repositories{
		Engine:      core.EngineMongo,
		Users:       mongodb.NewUserRepository(db),
		Cycles:      mongodb.NewCycleRepository(db),
		Columns:     mongodb.NewColumnRepository(db),
		Teams:       mongodb.NewTeamRepository(db),
		Submissions: mongodb.NewSubmissionRepository(db),
		migrate:     db.EnsureIndexes,
		close:       db.Close,
	}
}

// Migrate brings the schema up to date: SQL migrations on postgres, indexes on mongo.
func (r *Repositories) Migrate(ctx context.Context) error {
	return errors.Wrapf(r.migrate(ctx), "migrating %s", r.Engine)
}

func (r *Repositories) Close(ctx context.Context) error {
	return r.close(ctx)
}

// SQLDB returns the SQL connection pool, or nil when the engine is not SQL based.
func (r *Repositories) SQLDB() *sql.DB {
	if r.sqlDB == nil {
		return nil
	}
	return r.sqlDB.DB
}
