package team

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
)

type (
	Repository interface {
		// CreateTeams inserts the teams. Fails with a *core.DuplicateError when a name is taken.
		CreateTeams(ctx context.Context, teams ...Team) ([]Team, error)
		QueryTeams(ctx context.Context, filter QueryFilter) ([]Team, error)
		GetTeam(ctx context.Context, id string) (Team, error)
		GetTeamByName(ctx context.Context, name string) (Team, error)
		// UpdateTeam saves the roster fields (name, members, project title, guide). Review data is left untouched.
		UpdateTeam(ctx context.Context, t Team) (Team, error)
		DeleteTeamsByID(ctx context.Context, ids ...string) (int, error)

		// SaveRecord replaces the team's record for one cycle.
		SaveRecord(ctx context.Context, teamID, cycleID string, rec Record) (Team, error)
		// PurgeReviewData removes the cycle's record from every team.
		PurgeReviewData(ctx context.Context, cycleID string) error
		// PurgeColumnData removes the column's values from every team record of the cycle.
		PurgeColumnData(ctx context.Context, cycleID, column string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SortByName orders teams naturally by name: "Batch A2" before "Batch A10".
func SortByName(teams []Team) {
	sort.SliceStable(teams, func(i, j int) bool { return core.NaturalLess(teams[i].Name, teams[j].Name) })
}

func (svc *Service) Create(ctx context.Context, nt NewTeam) (Team, error) {
	teams, err := svc.CreateMany(ctx, nt)
	if err != nil {
		return Team{}, err
	}
	return teams[0], nil
}

// CreateMany inserts the teams, failing on the first name already in use.
func (svc *Service) CreateMany(ctx context.Context, nts ...NewTeam) ([]Team, error) {
	seen := make(map[string]bool, len(nts))
	teams := make([]Team, 0, len(nts))
	for _, nt := range nts {
		if seen[nt.Name] {
			return nil, core.NewDuplicateError("team", nt.Name)
		}
		seen[nt.Name] = true
		if _, err := svc.repo.GetTeamByName(ctx, nt.Name); err == nil {
			return nil, core.NewDuplicateError("team", nt.Name)
		} else if !core.IsNotFound(err) {
			return nil, errors.Wrap(err, "checking team name")
		}
		teams = append(teams, Team{
			Name:         nt.Name,
			MembersRaw:   nt.Members,
			ProjectTitle: nt.ProjectTitle,
			Guide:        nt.Guide,
			ReviewData:   make(map[string]Record),
		})
	}
	return svc.repo.CreateTeams(ctx, teams...)
}

// List returns the teams matching the filter, naturally ordered by name.
func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Team, error) {
	teams, err := svc.repo.QueryTeams(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying teams")
	}
	if teams == nil {
		teams = []Team{}
	}
	SortByName(teams)
	return teams, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Team, error) {
	return svc.repo.GetTeam(ctx, id)
}

func (svc *Service) GetByName(ctx context.Context, name string) (Team, error) {
	return svc.repo.GetTeamByName(ctx, core.CleanString(name))
}

// Sections lists the distinct sections of all teams, sorted.
func (svc *Service) Sections(ctx context.Context) ([]string, error) {
	teams, err := svc.repo.QueryTeams(ctx, QueryFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying teams")
	}
	seen := make(map[string]bool)
	sections := make([]string, 0)
	for _, t := range teams {
		if s := t.Section(); s != "" && !seen[s] {
			seen[s] = true
			sections = append(sections, s)
		}
	}
	sort.Strings(sections)
	return sections, nil
}

func (svc *Service) Update(ctx context.Context, id string, ut UpdateTeam) (Team, error) {
	t, err := svc.repo.GetTeam(ctx, id)
	if err != nil {
		return Team{}, err
	}
	if ut.Name != nil && *ut.Name != t.Name {
		if _, err := svc.repo.GetTeamByName(ctx, *ut.Name); err == nil {
			return Team{}, core.NewDuplicateError("team", *ut.Name)
		} else if !core.IsNotFound(err) {
			return Team{}, errors.Wrap(err, "checking team name")
		}
		t.Name = *ut.Name
	}
	if ut.Members != nil {
		t.MembersRaw = *ut.Members
	}
	if ut.ProjectTitle != nil {
		t.ProjectTitle = *ut.ProjectTitle
	}
	if ut.Guide != nil {
		t.Guide = *ut.Guide
	}
	return svc.repo.UpdateTeam(ctx, t)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteTeamsByID(ctx, ids...)
}

// RenameKey returns the team with rm.From replaced by rm.To in its roster. changed is false when the names match.
// Records are left alone; see RenameInRecord.
func (t Team) RenameKey(rm RenameMember) (out Team, changed bool, err error) {
	if !t.HasMember(rm.From) {
		return Team{}, false, core.NewNotFoundError("member", rm.From)
	}
	if rm.From == rm.To {
		return t, false, nil
	}
	if t.HasMember(rm.To) {
		return Team{}, false, core.NewDuplicateError("member", rm.To)
	}

	keys := t.MemberKeys()
	for i, k := range keys {
		if k == rm.From {
			keys[i] = rm.To
		}
	}
	t.MembersRaw = JoinMembers(keys)
	return t, true, nil
}

// RenameInRecord moves a member's composite scores and absence from one key to another.
func RenameInRecord(rec Record, from, to string) (Record, bool) {
	out := rec.Clone()
	var changed bool
	for col, s := range out.Scores {
		if !s.IsComposite() {
			continue
		}
		if v, ok := s.Members[from]; ok {
			delete(s.Members, from)
			s.Members[to] = v
			out.Scores[col] = s
			changed = true
		}
	}
	if v, ok := out.Absent[from]; ok {
		delete(out.Absent, from)
		out.Absent[to] = v
		changed = true
	}
	return out, changed
}
