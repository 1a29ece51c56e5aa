package memorydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/cycle"
)

type cycleRepository struct {
	db *cycleTable
}

var _ cycle.Repository = (*cycleRepository)(nil) // interface compliance check

func NewCycleRepository(db *DB) cycle.Repository {
	return &cycleRepository{db: db.cycle}
}

func (repo *cycleRepository) CreateCycle(_ context.Context, c cycle.Cycle) (cycle.Cycle, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	c.ID = uuid.NewString()
	c.IsActive = false
	repo.db.table[c.ID] = c
	return c, nil
}

// QueryCycles returns the cycles, newest first.
func (repo *cycleRepository) QueryCycles(_ context.Context) ([]cycle.Cycle, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cycles := make([]cycle.Cycle, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		cycles = append(cycles, c)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].CreatedAt.After(cycles[j].CreatedAt) })
	return cycles, nil
}

func (repo *cycleRepository) GetCycle(_ context.Context, id string) (cycle.Cycle, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.table[id]; ok {
		return c, nil
	}
	return cycle.Cycle{}, core.NewNotFoundError("cycle", id)
}

func (repo *cycleRepository) GetActiveCycle(_ context.Context) (cycle.Cycle, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, c := range repo.db.table {
		if c.IsActive {
			return c, nil
		}
	}
	return cycle.Cycle{}, core.ErrNoActiveCycle
}

func (repo *cycleRepository) ActivateCycle(_ context.Context, id string) (cycle.Cycle, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	target, ok := repo.db.table[id]
	if !ok {
		return cycle.Cycle{}, core.NewNotFoundError("cycle", id)
	}
	for cid, c := range repo.db.table {
		if c.IsActive && cid != id {
			c.IsActive = false
			repo.db.table[cid] = c
		}
	}
	target.IsActive = true
	repo.db.table[id] = target
	return target, nil
}

func (repo *cycleRepository) DeleteCycle(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return core.NewNotFoundError("cycle", id)
	}
	delete(repo.db.table, id)
	return nil
}
