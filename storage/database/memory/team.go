package memorydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/team"
)

type teamRepository struct {
	db *teamTable
}

var _ team.Repository = (*teamRepository)(nil) // interface compliance check

func NewTeamRepository(db *DB) team.Repository {
	return &teamRepository{db: db.team}
}

func cloneTeam(t team.Team) team.Team {
	data := make(map[string]team.Record, len(t.ReviewData))
	for cycleID, rec := range t.ReviewData {
		data[cycleID] = rec.Clone()
	}
	t.ReviewData = data
	return t
}

// nameTaken reports whether another team uses the name. Callers hold the lock.
func (repo *teamRepository) nameTaken(name, exclID string) bool {
	for id, t := range repo.db.table {
		if id != exclID && t.Name == name {
			return true
		}
	}
	return false
}

func (repo *teamRepository) CreateTeams(_ context.Context, teams ...team.Team) ([]team.Team, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	seen := make(map[string]bool, len(teams))
	for _, t := range teams {
		if seen[t.Name] || repo.nameTaken(t.Name, "") {
			return nil, core.NewDuplicateError("team", t.Name)
		}
		seen[t.Name] = true
	}

	created := make([]team.Team, 0, len(teams))
	for _, t := range teams {
		t.ID = uuid.NewString()
		t = cloneTeam(t)
		repo.db.table[t.ID] = t
		created = append(created, cloneTeam(t))
	}
	return created, nil
}

func (repo *teamRepository) QueryTeams(_ context.Context, filter team.QueryFilter) ([]team.Team, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	teams := make([]team.Team, 0, len(repo.db.table))
	for _, t := range repo.db.table {
		if filter.Match(t) {
			teams = append(teams, cloneTeam(t))
		}
	}
	team.SortByName(teams)
	return teams, nil
}

func (repo *teamRepository) GetTeam(_ context.Context, id string) (team.Team, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.table[id]; ok {
		return cloneTeam(t), nil
	}
	return team.Team{}, core.NewNotFoundError("team", id)
}

func (repo *teamRepository) GetTeamByName(_ context.Context, name string) (team.Team, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.db.table {
		if t.Name == name {
			return cloneTeam(t), nil
		}
	}
	return team.Team{}, core.NewNotFoundError("team", name)
}

func (repo *teamRepository) UpdateTeam(_ context.Context, t team.Team) (team.Team, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[t.ID]
	if !ok {
		return team.Team{}, core.NewNotFoundError("team", t.ID)
	}
	if repo.nameTaken(t.Name, t.ID) {
		return team.Team{}, core.NewDuplicateError("team", t.Name)
	}

	// roster fields only
	orig.Name = t.Name
	orig.MembersRaw = t.MembersRaw
	orig.ProjectTitle = t.ProjectTitle
	orig.Guide = t.Guide
	repo.db.table[t.ID] = orig
	return cloneTeam(orig), nil
}

func (repo *teamRepository) DeleteTeamsByID(_ context.Context, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			n++
		}
	}
	return n, nil
}

func (repo *teamRepository) SaveRecord(_ context.Context, teamID, cycleID string, rec team.Record) (team.Team, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	t, ok := repo.db.table[teamID]
	if !ok {
		return team.Team{}, core.NewNotFoundError("team", teamID)
	}
	if t.ReviewData == nil {
		t.ReviewData = make(map[string]team.Record)
	}
	t.ReviewData[cycleID] = rec.Clone()
	repo.db.table[teamID] = t
	return cloneTeam(t), nil
}

func (repo *teamRepository) PurgeReviewData(_ context.Context, cycleID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, t := range repo.db.table {
		delete(t.ReviewData, cycleID)
	}
	return nil
}

func (repo *teamRepository) PurgeColumnData(_ context.Context, cycleID, column string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, t := range repo.db.table {
		if rec, ok := t.ReviewData[cycleID]; ok {
			delete(rec.Scores, column)
		}
	}
	return nil
}
