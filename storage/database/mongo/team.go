package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/team"
)

type teamDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Name         string             `bson:"name"`
	Members      string             `bson:"members"`
	ProjectTitle string             `bson:"project_title"`
	Guide        string             `bson:"guide"`
	ReviewData   map[string]bson.M  `bson:"review_data"` // {cycleID: record bag}
}

func newTeamDoc(oid primitive.ObjectID, t team.Team) teamDoc {
	data := make(map[string]bson.M, len(t.ReviewData))
	for cycleID, rec := range t.ReviewData {
		data[cycleID] = rec.Bag()
	}
	return teamDoc{
		ID:           oid,
		Name:         t.Name,
		Members:      t.MembersRaw,
		ProjectTitle: t.ProjectTitle,
		Guide:        t.Guide,
		ReviewData:   data,
	}
}

func (doc teamDoc) toTeam() (team.Team, error) {
	t := team.Team{
		ID:           doc.ID.Hex(),
		Name:         doc.Name,
		MembersRaw:   doc.Members,
		ProjectTitle: doc.ProjectTitle,
		Guide:        doc.Guide,
		ReviewData:   make(map[string]team.Record, len(doc.ReviewData)),
	}
	for cycleID, bag := range doc.ReviewData {
		rec, err := team.ParseRecordBag(plainMap(bag))
		if err != nil {
			return team.Team{}, errors.Wrapf(err, "team %q, cycle %s", doc.Name, cycleID)
		}
		t.ReviewData[cycleID] = rec
	}
	return t, nil
}

// plain converts decoded BSON values to the JSON-like shapes the record parser reads.
func plain(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		return plainMap(val)
	case map[string]interface{}:
		return plainMap(val)
	case bson.D:
		return plainMap(val.Map())
	case bson.A:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = plain(item)
		}
		return out
	case primitive.DateTime:
		return val.Time().UTC()
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	default:
		return val
	}
}

func plainMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = plain(v)
	}
	return out
}

type teamRepository struct {
	col *mongo.Collection
}

var _ team.Repository = (*teamRepository)(nil) // interface compliance check

func NewTeamRepository(db *DB) team.Repository {
	return &teamRepository{col: db.collection(colTeams)}
}

func (repo *teamRepository) decodeOne(res *mongo.SingleResult, ref string) (team.Team, error) {
	var doc teamDoc
	if err := res.Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return team.Team{}, core.NewNotFoundError("team", ref)
		}
		return team.Team{}, errors.Wrap(err, "getting team")
	}
	return doc.toTeam()
}

// CreateTeams rejects the whole batch when any name is taken or repeated.
func (repo *teamRepository) CreateTeams(ctx context.Context, teams ...team.Team) ([]team.Team, error) {
	if len(teams) == 0 {
		return []team.Team{}, nil
	}
	names := make([]string, 0, len(teams))
	seen := make(map[string]bool, len(teams))
	for _, t := range teams {
		if seen[t.Name] {
			return nil, core.NewDuplicateError("team", t.Name)
		}
		seen[t.Name] = true
		names = append(names, t.Name)
	}
	var taken teamDoc
	err := repo.col.FindOne(ctx, bson.M{"name": bson.M{"$in": names}}).Decode(&taken)
	switch {
	case err == nil:
		return nil, core.NewDuplicateError("team", taken.Name)
	case !isNoDocuments(err):
		return nil, errors.Wrap(err, "checking team names")
	}

	docs := make([]interface{}, 0, len(teams))
	created := make([]team.Team, 0, len(teams))
	for _, t := range teams {
		oid := primitive.NewObjectID()
		t.ID = oid.Hex()
		if t.ReviewData == nil {
			t.ReviewData = make(map[string]team.Record)
		}
		docs = append(docs, newTeamDoc(oid, t))
		created = append(created, t)
	}
	if _, err := repo.col.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, core.NewDuplicateError("team", "")
		}
		return nil, errors.Wrap(err, "inserting teams")
	}
	return created, nil
}

func (repo *teamRepository) QueryTeams(ctx context.Context, filter team.QueryFilter) ([]team.Team, error) {
	f := bson.M{}
	if filter.Name != "" {
		f["name"] = filter.Name
	}
	cur, err := repo.col.Find(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "querying teams")
	}
	teams := make([]team.Team, 0)
	err = decodeAll(ctx, cur, func(cur *mongo.Cursor) error {
		var doc teamDoc
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		t, err := doc.toTeam()
		if err != nil {
			return err
		}
		if filter.Match(t) {
			teams = append(teams, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	team.SortByName(teams)
	return teams, nil
}

func (repo *teamRepository) GetTeam(ctx context.Context, id string) (team.Team, error) {
	oid, ok := objectID(id)
	if !ok {
		return team.Team{}, core.NewNotFoundError("team", id)
	}
	return repo.decodeOne(repo.col.FindOne(ctx, bson.M{"_id": oid}), id)
}

func (repo *teamRepository) GetTeamByName(ctx context.Context, name string) (team.Team, error) {
	return repo.decodeOne(repo.col.FindOne(ctx, bson.M{"name": name}), name)
}

func (repo *teamRepository) UpdateTeam(ctx context.Context, t team.Team) (team.Team, error) {
	oid, ok := objectID(t.ID)
	if !ok {
		return team.Team{}, core.NewNotFoundError("team", t.ID)
	}
	update := bson.M{"$set": bson.M{
		"name":          t.Name,
		"members":       t.MembersRaw,
		"project_title": t.ProjectTitle,
		"guide":         t.Guide,
	}}
	res := repo.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if mongo.IsDuplicateKeyError(res.Err()) {
		return team.Team{}, core.NewDuplicateError("team", t.Name)
	}
	return repo.decodeOne(res, t.ID)
}

func (repo *teamRepository) DeleteTeamsByID(ctx context.Context, ids ...string) (int, error) {
	res, err := repo.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": objectIDs(ids)}})
	if err != nil {
		return 0, errors.Wrap(err, "deleting teams")
	}
	return int(res.DeletedCount), nil
}

// SaveRecord replaces the record of one cycle; cycle ids are hex so they are safe as field paths.
func (repo *teamRepository) SaveRecord(ctx context.Context, teamID, cycleID string, rec team.Record) (team.Team, error) {
	oid, ok := objectID(teamID)
	if !ok {
		return team.Team{}, core.NewNotFoundError("team", teamID)
	}
	res := repo.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"review_data." + cycleID: rec.Bag()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	return repo.decodeOne(res, teamID)
}

func (repo *teamRepository) PurgeReviewData(ctx context.Context, cycleID string) error {
	path := "review_data." + cycleID
	_, err := repo.col.UpdateMany(ctx,
		bson.M{path: bson.M{"$exists": true}},
		bson.M{"$unset": bson.M{path: ""}},
	)
	return errors.Wrap(err, "purging review data")
}

// PurgeColumnData rewrites each affected record in full. Column names may hold dots, which field paths cannot address.
func (repo *teamRepository) PurgeColumnData(ctx context.Context, cycleID, column string) error {
	path := "review_data." + cycleID
	cur, err := repo.col.Find(ctx, bson.M{path: bson.M{"$exists": true}})
	if err != nil {
		return errors.Wrap(err, "querying teams")
	}

	var models []mongo.WriteModel
	err = decodeAll(ctx, cur, func(cur *mongo.Cursor) error {
		var doc teamDoc
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		t, err := doc.toTeam()
		if err != nil {
			return err
		}
		rec := t.ReviewData[cycleID]
		if _, ok := rec.Scores[column]; !ok {
			return nil
		}
		delete(rec.Scores, column)
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetUpdate(bson.M{"$set": bson.M{path: rec.Bag()}}),
		)
		return nil
	})
	if err != nil || len(models) == 0 {
		return err
	}
	_, err = repo.col.BulkWrite(ctx, models)
	return errors.Wrap(err, "purging column data")
}
