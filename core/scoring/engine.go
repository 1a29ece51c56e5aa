package scoring

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/cycle"
	"github.com/trezcool/reviewdesk/core/rubric"
	"github.com/trezcool/reviewdesk/core/team"
)

type (
	ActiveCycleFinder interface {
		GetActiveCycle(ctx context.Context) (cycle.Cycle, error)
	}

	ColumnLister interface {
		QueryColumns(ctx context.Context, cycleID string) ([]rubric.Column, error)
	}

	// Engine applies score submissions to team records under the lock protocol.
	// Writes to the same (team, cycle) are serialized.
	Engine struct {
		teams           team.Repository
		cycles          ActiveCycleFinder
		columns         ColumnLister
		requireComplete bool
		locks           *keyedMutex
	}

	// Sheet is a team's record for the active cycle, with the columns and member totals it is read against.
	Sheet struct {
		Cycle   cycle.Cycle       `json:"cycle"`
		Team    team.Team         `json:"team"`
		Columns []rubric.Column   `json:"columns"`
		Record  team.Record       `json:"record"`
		Totals  map[string]string `json:"totals"`
	}
)

func NewEngine(teams team.Repository, cycles ActiveCycleFinder, columns ColumnLister, conf *core.Config) *Engine {
	return &Engine{
		teams:           teams,
		cycles:          cycles,
		columns:         columns,
		requireComplete: conf.Scoring.RequireComplete,
		locks:           newKeyedMutex(),
	}
}

func lockKey(teamID, cycleID string) string { return teamID + "/" + cycleID }

// Submit merges a reviewer's payload into the team's record for the active cycle.
// A non-admin's first submission locks the record; later non-admin submissions fail with core.ErrScoringLocked
// until an admin unlocks it. Admin submissions never change the lock.
func (e *Engine) Submit(ctx context.Context, teamID, reviewer string, isAdmin bool, p team.Payload) (team.Team, error) {
	c, err := e.cycles.GetActiveCycle(ctx)
	if err != nil {
		return team.Team{}, err
	}

	unlock := e.locks.Lock(lockKey(teamID, c.ID))
	defer unlock()

	t, err := e.teams.GetTeam(ctx, teamID)
	if err != nil {
		return team.Team{}, err
	}

	rec, _ := t.Record(c.ID)
	wasLocked := rec.Locked
	if wasLocked && !isAdmin {
		return team.Team{}, core.ErrScoringLocked
	}

	cols, err := e.columns.QueryColumns(ctx, c.ID)
	if err != nil {
		return team.Team{}, errors.Wrap(err, "querying columns")
	}
	if err := checkPayload(cols, t, p); err != nil {
		return team.Team{}, err
	}

	merged := Merge(rec, p)
	if e.requireComplete {
		if err := checkComplete(cols, t, merged); err != nil {
			return team.Team{}, err
		}
	}

	if reviewer != "" {
		merged.SubmittedBy = reviewer
		merged.SubmittedAt = core.NowFunc().UTC()
	}
	if !isAdmin && !wasLocked {
		merged.Locked = true
	}

	t, err = e.teams.SaveRecord(ctx, teamID, c.ID, merged)
	if err != nil {
		return team.Team{}, errors.Wrap(err, "saving record")
	}
	return t, nil
}

// Lock forces the lock on the team's record for the active cycle.
func (e *Engine) Lock(ctx context.Context, teamID string) (team.Team, error) {
	return e.setLock(ctx, teamID, true)
}

// Unlock clears the lock on the team's record for the active cycle.
func (e *Engine) Unlock(ctx context.Context, teamID string) (team.Team, error) {
	return e.setLock(ctx, teamID, false)
}

func (e *Engine) setLock(ctx context.Context, teamID string, locked bool) (team.Team, error) {
	c, err := e.cycles.GetActiveCycle(ctx)
	if err != nil {
		return team.Team{}, err
	}

	unlock := e.locks.Lock(lockKey(teamID, c.ID))
	defer unlock()

	t, err := e.teams.GetTeam(ctx, teamID)
	if err != nil {
		return team.Team{}, err
	}
	rec, _ := t.Record(c.ID)
	rec.Locked = locked

	t, err = e.teams.SaveRecord(ctx, teamID, c.ID, rec)
	if err != nil {
		return team.Team{}, errors.Wrap(err, "saving record")
	}
	return t, nil
}

// RenameMember changes a member's roster token and moves their scores and absences in every cycle to the new key.
// The team's records are locked for the whole rename so submissions can't interleave with the move.
func (e *Engine) RenameMember(ctx context.Context, teamID string, rm team.RenameMember) (team.Team, error) {
	t, err := e.teams.GetTeam(ctx, teamID)
	if err != nil {
		return team.Team{}, err
	}

	cycleIDs := make([]string, 0, len(t.ReviewData)+1)
	for id := range t.ReviewData {
		cycleIDs = append(cycleIDs, id)
	}
	c, err := e.cycles.GetActiveCycle(ctx)
	switch {
	case err == nil:
		if _, ok := t.ReviewData[c.ID]; !ok {
			cycleIDs = append(cycleIDs, c.ID)
		}
	case !errors.Is(err, core.ErrNoActiveCycle):
		return team.Team{}, err
	}
	sort.Strings(cycleIDs)
	for _, id := range cycleIDs {
		unlock := e.locks.Lock(lockKey(teamID, id))
		defer unlock()
	}

	if t, err = e.teams.GetTeam(ctx, teamID); err != nil {
		return team.Team{}, err
	}
	t, changed, err := t.RenameKey(rm)
	if err != nil || !changed {
		return t, err
	}
	if t, err = e.teams.UpdateTeam(ctx, t); err != nil {
		return team.Team{}, errors.Wrap(err, "updating roster")
	}

	for _, cycleID := range cycleIDs {
		rec, ok := t.Record(cycleID)
		if !ok {
			continue
		}
		renamed, moved := team.RenameInRecord(rec, rm.From, rm.To)
		if !moved {
			continue
		}
		if t, err = e.teams.SaveRecord(ctx, teamID, cycleID, renamed); err != nil {
			return team.Team{}, errors.Wrapf(err, "moving scores of cycle %q", cycleID)
		}
	}
	return t, nil
}

// Sheet returns the team's record for the active cycle. When pending is set, totals are computed over the
// record with the pending payload overlaid; nothing is saved.
func (e *Engine) Sheet(ctx context.Context, teamID string, pending *team.Payload) (Sheet, error) {
	c, err := e.cycles.GetActiveCycle(ctx)
	if err != nil {
		return Sheet{}, err
	}
	t, err := e.teams.GetTeam(ctx, teamID)
	if err != nil {
		return Sheet{}, err
	}
	cols, err := e.columns.QueryColumns(ctx, c.ID)
	if err != nil {
		return Sheet{}, errors.Wrap(err, "querying columns")
	}
	if cols == nil {
		cols = []rubric.Column{}
	}

	rec, _ := t.Record(c.ID)
	view := rec
	if pending != nil {
		view = Merge(rec, *pending)
	}
	return Sheet{
		Cycle:   c,
		Team:    t,
		Columns: cols,
		Record:  rec,
		Totals:  Totals(cols, t, view),
	}, nil
}
