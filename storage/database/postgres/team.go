package postgresdb

import (
	"context"
	"database/sql/driver"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/team"
)

const teamColumns = "id, name, members, project_title, guide, review_data"

// reviewData is the JSONB column holding every cycle's record bag, keyed by cycle id.
type reviewData map[string]team.Record

func (rd reviewData) Value() (driver.Value, error) {
	if rd == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]team.Record(rd))
}

func (rd *reviewData) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*rd = make(reviewData)
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("unexpected review data type %T", src)
	}
	m := make(map[string]team.Record)
	if err := json.Unmarshal(data, &m); err != nil {
		return errors.Wrap(err, "decoding review data")
	}
	*rd = m
	return nil
}

type teamRow struct {
	ID           string     `db:"id"`
	Name         string     `db:"name"`
	Members      string     `db:"members"`
	ProjectTitle string     `db:"project_title"`
	Guide        string     `db:"guide"`
	ReviewData   reviewData `db:"review_data"`
}

func newTeamRow(t team.Team) teamRow {
	return teamRow{
		ID:           t.ID,
		Name:         t.Name,
		Members:      t.MembersRaw,
		ProjectTitle: t.ProjectTitle,
		Guide:        t.Guide,
		ReviewData:   reviewData(t.ReviewData),
	}
}

func (row teamRow) toTeam() team.Team {
	data := map[string]team.Record(row.ReviewData)
	if data == nil {
		data = make(map[string]team.Record)
	}
	return team.Team{
		ID:           row.ID,
		Name:         row.Name,
		MembersRaw:   row.Members,
		ProjectTitle: row.ProjectTitle,
		Guide:        row.Guide,
		ReviewData:   data,
	}
}

type teamRepository struct {
	db *sqlx.DB
}

var _ team.Repository = (*teamRepository)(nil) // interface compliance check

func NewTeamRepository(db *sqlx.DB) team.Repository {
	return &teamRepository{db: db}
}

// CreateTeams inserts every team in one transaction.
func (repo *teamRepository) CreateTeams(ctx context.Context, teams ...team.Team) ([]team.Team, error) {
	created := make([]team.Team, 0, len(teams))
	q := "INSERT INTO teams (" + teamColumns + ") VALUES (:id, :name, :members, :project_title, :guide, :review_data)"
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for _, t := range teams {
			t.ID = uuid.NewString()
			if t.ReviewData == nil {
				t.ReviewData = make(map[string]team.Record)
			}
			if _, err := tx.NamedExecContext(ctx, q, newTeamRow(t)); err != nil {
				if isUniqueViolation(err) {
					return core.NewDuplicateError("team", t.Name)
				}
				return errors.Wrapf(err, "inserting team %q", t.Name)
			}
			created = append(created, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// QueryTeams filters on the name in SQL. Sections and search are derived, so they are matched in Go.
func (repo *teamRepository) QueryTeams(ctx context.Context, filter team.QueryFilter) ([]team.Team, error) {
	q := "SELECT " + teamColumns + " FROM teams"
	var args []interface{}
	if filter.Name != "" {
		q += " WHERE name = $1"
		args = append(args, filter.Name)
	}

	var rows []teamRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying teams")
	}
	teams := make([]team.Team, 0, len(rows))
	for _, row := range rows {
		if t := row.toTeam(); filter.Match(t) {
			teams = append(teams, t)
		}
	}
	team.SortByName(teams)
	return teams, nil
}

func (repo *teamRepository) get(ctx context.Context, where string, arg string) (team.Team, error) {
	var row teamRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+teamColumns+" FROM teams WHERE "+where, arg); err != nil {
		if isNoRows(err) {
			return team.Team{}, core.NewNotFoundError("team", arg)
		}
		return team.Team{}, errors.Wrap(err, "getting team")
	}
	return row.toTeam(), nil
}

func (repo *teamRepository) GetTeam(ctx context.Context, id string) (team.Team, error) {
	if !validID(id) {
		return team.Team{}, core.NewNotFoundError("team", id)
	}
	return repo.get(ctx, "id = $1", id)
}

func (repo *teamRepository) GetTeamByName(ctx context.Context, name string) (team.Team, error) {
	return repo.get(ctx, "name = $1", name)
}

func (repo *teamRepository) UpdateTeam(ctx context.Context, t team.Team) (team.Team, error) {
	if !validID(t.ID) {
		return team.Team{}, core.NewNotFoundError("team", t.ID)
	}
	var row teamRow
	q := "UPDATE teams SET name = $2, members = $3, project_title = $4, guide = $5 WHERE id = $1 RETURNING " + teamColumns
	err := repo.db.GetContext(ctx, &row, q, t.ID, t.Name, t.MembersRaw, t.ProjectTitle, t.Guide)
	switch {
	case err == nil:
		return row.toTeam(), nil
	case isNoRows(err):
		return team.Team{}, core.NewNotFoundError("team", t.ID)
	case isUniqueViolation(err):
		return team.Team{}, core.NewDuplicateError("team", t.Name)
	default:
		return team.Team{}, errors.Wrap(err, "updating team")
	}
}

func (repo *teamRepository) DeleteTeamsByID(ctx context.Context, ids ...string) (int, error) {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM teams WHERE id = ANY($1::uuid[])", pq.Array(validIDs(ids)))
	if err != nil {
		return 0, errors.Wrap(err, "deleting teams")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting deleted teams")
}

// SaveRecord replaces one key of the JSONB bag, leaving the other cycles untouched.
func (repo *teamRepository) SaveRecord(ctx context.Context, teamID, cycleID string, rec team.Record) (team.Team, error) {
	if !validID(teamID) {
		return team.Team{}, core.NewNotFoundError("team", teamID)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return team.Team{}, errors.Wrap(err, "encoding record")
	}

	var row teamRow
	q := "UPDATE teams SET review_data = jsonb_set(review_data, ARRAY[$2::text], $3::jsonb, true)" +
		" WHERE id = $1 RETURNING " + teamColumns
	if err := repo.db.GetContext(ctx, &row, q, teamID, cycleID, string(data)); err != nil {
		if isNoRows(err) {
			return team.Team{}, core.NewNotFoundError("team", teamID)
		}
		return team.Team{}, errors.Wrap(err, "saving record")
	}
	return row.toTeam(), nil
}

func (repo *teamRepository) PurgeReviewData(ctx context.Context, cycleID string) error {
	_, err := repo.db.ExecContext(ctx,
		"UPDATE teams SET review_data = review_data - $1::text WHERE jsonb_exists(review_data, $1::text)",
		cycleID,
	)
	return errors.Wrap(err, "purging review data")
}

func (repo *teamRepository) PurgeColumnData(ctx context.Context, cycleID, column string) error {
	_, err := repo.db.ExecContext(ctx,
		"UPDATE teams SET review_data = jsonb_set(review_data, ARRAY[$1::text], (review_data -> $1::text) - $2::text)"+
			" WHERE jsonb_exists(review_data, $1::text)",
		cycleID, column,
	)
	return errors.Wrap(err, "purging column data")
}
