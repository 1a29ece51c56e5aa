package memorydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/rubric"
)

type columnRepository struct {
	db *columnTable
}

var _ rubric.Repository = (*columnRepository)(nil) // interface compliance check

func NewColumnRepository(db *DB) rubric.Repository {
	return &columnRepository{db: db.column}
}

func cloneColumn(c rubric.Column) rubric.Column {
	c.Options = append([]string(nil), c.Options...)
	if c.MaxScore != nil {
		ms := *c.MaxScore
		c.MaxScore = &ms
	}
	return c
}

// find returns the id of the cycle's column with the given name. Callers hold the lock.
func (repo *columnRepository) find(cycleID, name string) (string, bool) {
	for id, c := range repo.db.table {
		if c.CycleID == cycleID && c.Name == name {
			return id, true
		}
	}
	return "", false
}

func (repo *columnRepository) CreateColumn(_ context.Context, col rubric.Column) (rubric.Column, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, taken := repo.find(col.CycleID, col.Name); taken {
		return rubric.Column{}, core.NewDuplicateError("column", col.Name)
	}
	col.ID = uuid.NewString()
	repo.db.table[col.ID] = cloneColumn(col)
	return col, nil
}

func (repo *columnRepository) QueryColumns(_ context.Context, cycleID string) ([]rubric.Column, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cols := make([]rubric.Column, 0)
	for _, c := range repo.db.table {
		if c.CycleID == cycleID {
			cols = append(cols, cloneColumn(c))
		}
	}
	sort.SliceStable(cols, func(i, j int) bool {
		if cols[i].Order != cols[j].Order {
			return cols[i].Order < cols[j].Order
		}
		return cols[i].Name < cols[j].Name
	})
	return cols, nil
}

func (repo *columnRepository) GetColumn(_ context.Context, cycleID, name string) (rubric.Column, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if id, ok := repo.find(cycleID, name); ok {
		return cloneColumn(repo.db.table[id]), nil
	}
	return rubric.Column{}, core.NewNotFoundError("column", name)
}

func (repo *columnRepository) UpdateColumn(_ context.Context, cycleID, name string, col rubric.Column) (rubric.Column, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	id, ok := repo.find(cycleID, name)
	if !ok {
		return rubric.Column{}, core.NewNotFoundError("column", name)
	}
	if col.Name != name {
		if _, taken := repo.find(cycleID, col.Name); taken {
			return rubric.Column{}, core.NewDuplicateError("column", col.Name)
		}
	}
	col.ID = id
	col.CycleID = cycleID
	repo.db.table[id] = cloneColumn(col)
	return col, nil
}

func (repo *columnRepository) DeleteColumn(_ context.Context, cycleID, name string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	id, ok := repo.find(cycleID, name)
	if !ok {
		return core.NewNotFoundError("column", name)
	}
	delete(repo.db.table, id)
	return nil
}

func (repo *columnRepository) ReorderColumns(_ context.Context, cycleID string, names []string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	ids := make([]string, len(names))
	for i, name := range names {
		id, ok := repo.find(cycleID, name)
		if !ok {
			return core.NewNotFoundError("column", name)
		}
		ids[i] = id
	}
	for i, id := range ids {
		c := repo.db.table[id]
		c.Order = i
		repo.db.table[id] = c
	}
	return nil
}

func (repo *columnRepository) DeleteColumnsByCycle(_ context.Context, cycleID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, c := range repo.db.table {
		if c.CycleID == cycleID {
			delete(repo.db.table, id)
		}
	}
	return nil
}
