package cycle

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
)

type (
	Repository interface {
		// CreateCycle inserts an inactive Cycle.
		CreateCycle(ctx context.Context, c Cycle) (Cycle, error)
		QueryCycles(ctx context.Context) ([]Cycle, error)
		GetCycle(ctx context.Context, id string) (Cycle, error)
		// GetActiveCycle fails with core.ErrNoActiveCycle when no Cycle is active.
		GetActiveCycle(ctx context.Context) (Cycle, error)
		// ActivateCycle deactivates every Cycle and activates the given one, as a single storage operation.
		ActivateCycle(ctx context.Context, id string) (Cycle, error)
		DeleteCycle(ctx context.Context, id string) error
	}

	// ReviewDataPurger strips a cycle's review records from every team.
	ReviewDataPurger interface {
		PurgeReviewData(ctx context.Context, cycleID string) error
	}

	// ColumnPurger deletes every column scoped to a cycle.
	ColumnPurger interface {
		DeleteColumnsByCycle(ctx context.Context, cycleID string) error
	}

	Service struct {
		repo    Repository
		records ReviewDataPurger
		columns ColumnPurger
		logger  core.Logger
	}
)

func NewService(repo Repository, records ReviewDataPurger, columns ColumnPurger, logger core.Logger) *Service {
	return &Service{repo: repo, records: records, columns: columns, logger: logger}
}

// Create inserts the new Cycle then makes it the active one.
func (svc *Service) Create(ctx context.Context, nc NewCycle) (Cycle, error) {
	c, err := svc.repo.CreateCycle(ctx, Cycle{
		Name:        nc.Name,
		Description: nc.Description,
		CreatedAt:   core.NowFunc().UTC(),
	})
	if err != nil {
		return Cycle{}, errors.Wrap(err, "creating cycle")
	}

	active, err := svc.repo.ActivateCycle(ctx, c.ID)
	if err != nil {
		// the cycle exists but is left inactive
		svc.logger.Error(fmt.Sprintf("activating new cycle %q failed", c.ID), err)
		return Cycle{}, errors.Wrap(err, "activating cycle")
	}
	return active, nil
}

func (svc *Service) List(ctx context.Context) ([]Cycle, error) {
	return svc.repo.QueryCycles(ctx)
}

func (svc *Service) Get(ctx context.Context, id string) (Cycle, error) {
	return svc.repo.GetCycle(ctx, id)
}

// Current returns the active Cycle or core.ErrNoActiveCycle.
func (svc *Service) Current(ctx context.Context) (Cycle, error) {
	return svc.repo.GetActiveCycle(ctx)
}

func (svc *Service) Activate(ctx context.Context, id string) (Cycle, error) {
	if _, err := svc.repo.GetCycle(ctx, id); err != nil {
		return Cycle{}, err
	}
	c, err := svc.repo.ActivateCycle(ctx, id)
	if err != nil {
		return Cycle{}, errors.Wrap(err, "activating cycle")
	}
	return c, nil
}

// ResetData strips the cycle's review records from every team. Columns and the cycle are kept.
func (svc *Service) ResetData(ctx context.Context, id string) error {
	if _, err := svc.repo.GetCycle(ctx, id); err != nil {
		return err
	}
	return errors.Wrap(svc.records.PurgeReviewData(ctx, id), "purging review data")
}

// Delete removes the cycle along with its columns and review records.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetCycle(ctx, id); err != nil {
		return err
	}
	if err := svc.records.PurgeReviewData(ctx, id); err != nil {
		return errors.Wrap(err, "purging review data")
	}
	if err := svc.columns.DeleteColumnsByCycle(ctx, id); err != nil {
		svc.logger.Error(fmt.Sprintf("deleting cycle %q: review data purged but columns were not", id), err)
		return errors.Wrap(err, "deleting columns")
	}
	if err := svc.repo.DeleteCycle(ctx, id); err != nil {
		svc.logger.Error(fmt.Sprintf("deleting cycle %q: data and columns purged but the cycle was not", id), err)
		return errors.Wrap(err, "deleting cycle")
	}
	return nil
}
