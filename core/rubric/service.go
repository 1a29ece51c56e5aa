package rubric

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/cycle"
)

type (
	Repository interface {
		// CreateColumn fails with a *core.DuplicateError when the name is taken within the cycle.
		CreateColumn(ctx context.Context, col Column) (Column, error)
		// QueryColumns returns the cycle's columns sorted by order.
		QueryColumns(ctx context.Context, cycleID string) ([]Column, error)
		GetColumn(ctx context.Context, cycleID, name string) (Column, error)
		// UpdateColumn replaces the column currently named `name` within the cycle.
		UpdateColumn(ctx context.Context, cycleID, name string, col Column) (Column, error)
		DeleteColumn(ctx context.Context, cycleID, name string) error
		// ReorderColumns sets each named column's order to its index, in one batch.
		ReorderColumns(ctx context.Context, cycleID string, names []string) error
		DeleteColumnsByCycle(ctx context.Context, cycleID string) error
	}

	ActiveCycleFinder interface {
		GetActiveCycle(ctx context.Context) (cycle.Cycle, error)
	}

	// ColumnDataPurger strips a column's values from every team record of a cycle.
	ColumnDataPurger interface {
		PurgeColumnData(ctx context.Context, cycleID, column string) error
	}

	Service struct {
		repo          Repository
		cycles        ActiveCycleFinder
		purger        ColumnDataPurger
		purgeOnDelete bool
		logger        core.Logger
	}
)

func NewService(repo Repository, cycles ActiveCycleFinder, purger ColumnDataPurger, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		repo:          repo,
		cycles:        cycles,
		purger:        purger,
		purgeOnDelete: conf.Scoring.PurgeOnColumnDelete,
		logger:        logger,
	}
}

// List returns the active cycle's columns, or none when no cycle is active.
func (svc *Service) List(ctx context.Context) ([]Column, error) {
	c, err := svc.cycles.GetActiveCycle(ctx)
	if err != nil {
		if errors.Cause(err) == core.ErrNoActiveCycle {
			return []Column{}, nil
		}
		return nil, errors.Wrap(err, "getting active cycle")
	}
	return svc.ListForCycle(ctx, c.ID)
}

func (svc *Service) ListForCycle(ctx context.Context, cycleID string) ([]Column, error) {
	cols, err := svc.repo.QueryColumns(ctx, cycleID)
	if err != nil {
		return nil, errors.Wrap(err, "querying columns")
	}
	if cols == nil {
		cols = []Column{}
	}
	return cols, nil
}

func (svc *Service) activeCycleID(ctx context.Context) (string, error) {
	c, err := svc.cycles.GetActiveCycle(ctx)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func (svc *Service) checkUniqueName(ctx context.Context, cycleID, name string) error {
	_, err := svc.repo.GetColumn(ctx, cycleID, name)
	switch {
	case err == nil:
		return core.NewDuplicateError("column", name)
	case core.IsNotFound(err):
		return nil
	default:
		return errors.Wrap(err, "checking column name")
	}
}

// Create adds a column to the active cycle.
func (svc *Service) Create(ctx context.Context, nc NewColumn) (Column, error) {
	cycleID, err := svc.activeCycleID(ctx)
	if err != nil {
		return Column{}, err
	}
	if err := svc.checkUniqueName(ctx, cycleID, nc.Name); err != nil {
		return Column{}, err
	}

	col := Column{
		CycleID:   cycleID,
		Name:      nc.Name,
		Scope:     nc.Scope,
		InputKind: nc.InputKind,
		Options:   nc.Options,
		MaxScore:  nc.MaxScore,
	}
	// order defaults to 0; ties list by name
	if nc.Order != nil {
		col.Order = *nc.Order
	}
	return svc.repo.CreateColumn(ctx, col)
}

func (svc *Service) Get(ctx context.Context, name string) (Column, error) {
	cycleID, err := svc.activeCycleID(ctx)
	if err != nil {
		return Column{}, err
	}
	return svc.repo.GetColumn(ctx, cycleID, name)
}

// Update replaces the active cycle's column currently named `name` with the validated nc.
// Use UpdateColumn.Merge to build nc from a partial update.
func (svc *Service) Update(ctx context.Context, name string, nc NewColumn) (Column, error) {
	cycleID, err := svc.activeCycleID(ctx)
	if err != nil {
		return Column{}, err
	}
	orig, err := svc.repo.GetColumn(ctx, cycleID, name)
	if err != nil {
		return Column{}, err
	}
	if nc.Name != orig.Name {
		if err := svc.checkUniqueName(ctx, cycleID, nc.Name); err != nil {
			return Column{}, err
		}
	}

	col := Column{
		ID:        orig.ID,
		CycleID:   cycleID,
		Name:      nc.Name,
		Scope:     nc.Scope,
		InputKind: nc.InputKind,
		Options:   nc.Options,
		MaxScore:  nc.MaxScore,
		Order:     orig.Order,
	}
	if nc.Order != nil {
		col.Order = *nc.Order
	}
	return svc.repo.UpdateColumn(ctx, cycleID, name, col)
}

// Delete removes the column definition. Its scores are purged only when configured to.
func (svc *Service) Delete(ctx context.Context, name string) error {
	cycleID, err := svc.activeCycleID(ctx)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteColumn(ctx, cycleID, name); err != nil {
		return err
	}
	if svc.purgeOnDelete {
		if err := svc.purger.PurgeColumnData(ctx, cycleID, name); err != nil {
			svc.logger.Error(fmt.Sprintf("column %q deleted but its data was not purged", name), err)
			return errors.Wrap(err, "purging column data")
		}
	}
	return nil
}

// Reorder rewrites every column's order to its position. Unlisted columns keep their relative order after the listed ones.
func (svc *Service) Reorder(ctx context.Context, names []string) ([]Column, error) {
	cycleID, err := svc.activeCycleID(ctx)
	if err != nil {
		return nil, err
	}
	cols, err := svc.repo.QueryColumns(ctx, cycleID)
	if err != nil {
		return nil, errors.Wrap(err, "querying columns")
	}

	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c.Name] = true
	}
	seen := make(map[string]bool, len(names))
	ordered := make([]string, 0, len(cols))
	for _, n := range names {
		if !known[n] {
			return nil, core.NewNotFoundError("column", n)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		ordered = append(ordered, n)
	}
	for _, c := range cols {
		if !seen[c.Name] {
			ordered = append(ordered, c.Name)
		}
	}

	if err := svc.repo.ReorderColumns(ctx, cycleID, ordered); err != nil {
		return nil, errors.Wrap(err, "reordering columns")
	}
	return svc.ListForCycle(ctx, cycleID)
}
