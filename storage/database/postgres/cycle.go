package postgresdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/cycle"
)

const cycleColumns = "id, name, description, is_active, created_at"

type cycleRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row cycleRow) toCycle() cycle.Cycle {
	return cycle.Cycle{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type cycleRepository struct {
	db *sqlx.DB
}

var _ cycle.Repository = (*cycleRepository)(nil) // interface compliance check

func NewCycleRepository(db *sqlx.DB) cycle.Repository {
	return &cycleRepository{db: db}
}

func (repo *cycleRepository) CreateCycle(ctx context.Context, c cycle.Cycle) (cycle.Cycle, error) {
	c.ID = uuid.NewString()
	c.IsActive = false
	c.CreatedAt = c.CreatedAt.UTC()
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO cycles ("+cycleColumns+") VALUES ($1, $2, $3, FALSE, $4)",
		c.ID, c.Name, c.Description, c.CreatedAt,
	)
	if err != nil {
		return cycle.Cycle{}, errors.Wrap(err, "inserting cycle")
	}
	return c, nil
}

func (repo *cycleRepository) QueryCycles(ctx context.Context) ([]cycle.Cycle, error) {
	var rows []cycleRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+cycleColumns+" FROM cycles ORDER BY created_at DESC"); err != nil {
		return nil, errors.Wrap(err, "querying cycles")
	}
	cycles := make([]cycle.Cycle, 0, len(rows))
	for _, row := range rows {
		cycles = append(cycles, row.toCycle())
	}
	return cycles, nil
}

func (repo *cycleRepository) GetCycle(ctx context.Context, id string) (cycle.Cycle, error) {
	if !validID(id) {
		return cycle.Cycle{}, core.NewNotFoundError("cycle", id)
	}
	var row cycleRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+cycleColumns+" FROM cycles WHERE id = $1", id); err != nil {
		if isNoRows(err) {
			return cycle.Cycle{}, core.NewNotFoundError("cycle", id)
		}
		return cycle.Cycle{}, errors.Wrap(err, "getting cycle")
	}
	return row.toCycle(), nil
}

func (repo *cycleRepository) GetActiveCycle(ctx context.Context) (cycle.Cycle, error) {
	var row cycleRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+cycleColumns+" FROM cycles WHERE is_active LIMIT 1"); err != nil {
		if isNoRows(err) {
			return cycle.Cycle{}, core.ErrNoActiveCycle
		}
		return cycle.Cycle{}, errors.Wrap(err, "getting active cycle")
	}
	return row.toCycle(), nil
}

// ActivateCycle swaps the active cycle in one transaction.
func (repo *cycleRepository) ActivateCycle(ctx context.Context, id string) (cycle.Cycle, error) {
	if !validID(id) {
		return cycle.Cycle{}, core.NewNotFoundError("cycle", id)
	}
	var row cycleRow
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE cycles SET is_active = FALSE WHERE is_active AND id <> $1", id); err != nil {
			return errors.Wrap(err, "deactivating cycles")
		}
		err := tx.GetContext(ctx, &row, "UPDATE cycles SET is_active = TRUE WHERE id = $1 RETURNING "+cycleColumns, id)
		if isNoRows(err) {
			return core.NewNotFoundError("cycle", id)
		}
		return errors.Wrap(err, "activating cycle")
	})
	if err != nil {
		return cycle.Cycle{}, err
	}
	return row.toCycle(), nil
}

func (repo *cycleRepository) DeleteCycle(ctx context.Context, id string) error {
	if !validID(id) {
		return core.NewNotFoundError("cycle", id)
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM cycles WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting cycle")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewNotFoundError("cycle", id)
	}
	return nil
}
