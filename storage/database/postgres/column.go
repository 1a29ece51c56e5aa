package postgresdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/rubric"
)

const columnColumns = "id, cycle_id, name, scope, input_kind, options, max_score, sort_order"

type columnRow struct {
	ID        string         `db:"id"`
	CycleID   string         `db:"cycle_id"`
	Name      string         `db:"name"`
	Scope     string         `db:"scope"`
	InputKind string         `db:"input_kind"`
	Options   pq.StringArray `db:"options"`
	MaxScore  null.Float64   `db:"max_score"`
	Order     int            `db:"sort_order"`
}

func newColumnRow(c rubric.Column) columnRow {
	opts := pq.StringArray(c.Options)
	if opts == nil {
		opts = pq.StringArray{}
	}
	return columnRow{
		ID:        c.ID,
		CycleID:   c.CycleID,
		Name:      c.Name,
		Scope:     c.Scope,
		InputKind: c.InputKind,
		Options:   opts,
		MaxScore:  null.Float64FromPtr(c.MaxScore),
		Order:     c.Order,
	}
}

func (row columnRow) toColumn() rubric.Column {
	c := rubric.Column{
		ID:        row.ID,
		CycleID:   row.CycleID,
		Name:      row.Name,
		Scope:     row.Scope,
		InputKind: row.InputKind,
		MaxScore:  row.MaxScore.Ptr(),
		Order:     row.Order,
	}
	if len(row.Options) > 0 {
		c.Options = []string(row.Options)
	}
	return c
}

type columnRepository struct {
	db *sqlx.DB
}

var _ rubric.Repository = (*columnRepository)(nil) // interface compliance check

func NewColumnRepository(db *sqlx.DB) rubric.Repository {
	return &columnRepository{db: db}
}

func (repo *columnRepository) CreateColumn(ctx context.Context, col rubric.Column) (rubric.Column, error) {
	col.ID = uuid.NewString()
	q := "INSERT INTO columns (" + columnColumns + ") VALUES" +
		" (:id, :cycle_id, :name, :scope, :input_kind, :options, :max_score, :sort_order)"
	if _, err := repo.db.NamedExecContext(ctx, q, newColumnRow(col)); err != nil {
		if isUniqueViolation(err) {
			return rubric.Column{}, core.NewDuplicateError("column", col.Name)
		}
		return rubric.Column{}, errors.Wrap(err, "inserting column")
	}
	return col, nil
}

func (repo *columnRepository) QueryColumns(ctx context.Context, cycleID string) ([]rubric.Column, error) {
	cols := make([]rubric.Column, 0)
	if !validID(cycleID) {
		return cols, nil
	}
	var rows []columnRow
	q := "SELECT " + columnColumns + " FROM columns WHERE cycle_id = $1 ORDER BY sort_order, name"
	if err := repo.db.SelectContext(ctx, &rows, q, cycleID); err != nil {
		return nil, errors.Wrap(err, "querying columns")
	}
	for _, row := range rows {
		cols = append(cols, row.toColumn())
	}
	return cols, nil
}

func (repo *columnRepository) GetColumn(ctx context.Context, cycleID, name string) (rubric.Column, error) {
	if !validID(cycleID) {
		return rubric.Column{}, core.NewNotFoundError("column", name)
	}
	var row columnRow
	q := "SELECT " + columnColumns + " FROM columns WHERE cycle_id = $1 AND name = $2"
	if err := repo.db.GetContext(ctx, &row, q, cycleID, name); err != nil {
		if isNoRows(err) {
			return rubric.Column{}, core.NewNotFoundError("column", name)
		}
		return rubric.Column{}, errors.Wrap(err, "getting column")
	}
	return row.toColumn(), nil
}

func (repo *columnRepository) UpdateColumn(ctx context.Context, cycleID, name string, col rubric.Column) (rubric.Column, error) {
	if !validID(cycleID) {
		return rubric.Column{}, core.NewNotFoundError("column", name)
	}
	col.CycleID = cycleID
	row := newColumnRow(col)

	var updated columnRow
	q := "UPDATE columns SET name = $3, scope = $4, input_kind = $5, options = $6, max_score = $7, sort_order = $8" +
		" WHERE cycle_id = $1 AND name = $2 RETURNING " + columnColumns
	err := repo.db.GetContext(ctx, &updated, q,
		cycleID, name, row.Name, row.Scope, row.InputKind, row.Options, row.MaxScore, row.Order,
	)
	switch {
	case err == nil:
		return updated.toColumn(), nil
	case isNoRows(err):
		return rubric.Column{}, core.NewNotFoundError("column", name)
	case isUniqueViolation(err):
		return rubric.Column{}, core.NewDuplicateError("column", col.Name)
	default:
		return rubric.Column{}, errors.Wrap(err, "updating column")
	}
}

func (repo *columnRepository) DeleteColumn(ctx context.Context, cycleID, name string) error {
	if !validID(cycleID) {
		return core.NewNotFoundError("column", name)
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM columns WHERE cycle_id = $1 AND name = $2", cycleID, name)
	if err != nil {
		return errors.Wrap(err, "deleting column")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewNotFoundError("column", name)
	}
	return nil
}

// ReorderColumns writes every order in one transaction. An unknown name rolls everything back.
func (repo *columnRepository) ReorderColumns(ctx context.Context, cycleID string, names []string) error {
	if !validID(cycleID) {
		return core.NewNotFoundError("cycle", cycleID)
	}
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for i, name := range names {
			res, err := tx.ExecContext(ctx, "UPDATE columns SET sort_order = $3 WHERE cycle_id = $1 AND name = $2", cycleID, name, i)
			if err != nil {
				return errors.Wrapf(err, "reordering column %q", name)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return core.NewNotFoundError("column", name)
			}
		}
		return nil
	})
}

func (repo *columnRepository) DeleteColumnsByCycle(ctx context.Context, cycleID string) error {
	if !validID(cycleID) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, "DELETE FROM columns WHERE cycle_id = $1", cycleID)
	return errors.Wrap(err, "deleting columns")
}
