package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/rubric"
)

type columnDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	CycleID   string             `bson:"cycle_id"`
	Name      string             `bson:"name"`
	Scope     string             `bson:"scope"`
	InputKind string             `bson:"input_kind"`
	Options   []string           `bson:"options,omitempty"`
	MaxScore  *float64           `bson:"max_score,omitempty"`
	Order     int                `bson:"sort_order"`
}

func newColumnDoc(oid primitive.ObjectID, c rubric.Column) columnDoc {
	return columnDoc{
		ID:        oid,
		CycleID:   c.CycleID,
		Name:      c.Name,
		Scope:     c.Scope,
		InputKind: c.InputKind,
		Options:   c.Options,
		MaxScore:  c.MaxScore,
		Order:     c.Order,
	}
}

func (doc columnDoc) toColumn() rubric.Column {
	return rubric.Column{
		ID:        doc.ID.Hex(),
		CycleID:   doc.CycleID,
		Name:      doc.Name,
		Scope:     doc.Scope,
		InputKind: doc.InputKind,
		Options:   doc.Options,
		MaxScore:  doc.MaxScore,
		Order:     doc.Order,
	}
}

type columnRepository struct {
	col *mongo.Collection
}

var _ rubric.Repository = (*columnRepository)(nil) // interface compliance check

func NewColumnRepository(db *DB) rubric.Repository {
	return &columnRepository{col: db.collection(colColumns)}
}

func byName(cycleID, name string) bson.M {
	return bson.M{"cycle_id": cycleID, "name": name}
}

func (repo *columnRepository) CreateColumn(ctx context.Context, col rubric.Column) (rubric.Column, error) {
	oid := primitive.NewObjectID()
	if _, err := repo.col.InsertOne(ctx, newColumnDoc(oid, col)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return rubric.Column{}, core.NewDuplicateError("column", col.Name)
		}
		return rubric.Column{}, errors.Wrap(err, "inserting column")
	}
	col.ID = oid.Hex()
	return col, nil
}

func (repo *columnRepository) QueryColumns(ctx context.Context, cycleID string) ([]rubric.Column, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sort_order", Value: 1}, {Key: "name", Value: 1}})
	cur, err := repo.col.Find(ctx, bson.M{"cycle_id": cycleID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying columns")
	}
	cols := make([]rubric.Column, 0)
	err = decodeAll(ctx, cur, func(cur *mongo.Cursor) error {
		var doc columnDoc
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		cols = append(cols, doc.toColumn())
		return nil
	})
	return cols, err
}

func (repo *columnRepository) GetColumn(ctx context.Context, cycleID, name string) (rubric.Column, error) {
	var doc columnDoc
	if err := repo.col.FindOne(ctx, byName(cycleID, name)).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return rubric.Column{}, core.NewNotFoundError("column", name)
		}
		return rubric.Column{}, errors.Wrap(err, "getting column")
	}
	return doc.toColumn(), nil
}

func (repo *columnRepository) UpdateColumn(ctx context.Context, cycleID, name string, col rubric.Column) (rubric.Column, error) {
	set := bson.M{
		"name":       col.Name,
		"scope":      col.Scope,
		"input_kind": col.InputKind,
		"sort_order": col.Order,
	}
	unset := bson.M{}
	if len(col.Options) > 0 {
		set["options"] = col.Options
	} else {
		unset["options"] = ""
	}
	if col.MaxScore != nil {
		set["max_score"] = *col.MaxScore
	} else {
		unset["max_score"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var doc columnDoc
	err := repo.col.FindOneAndUpdate(ctx, byName(cycleID, name), update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	switch {
	case err == nil:
		return doc.toColumn(), nil
	case isNoDocuments(err):
		return rubric.Column{}, core.NewNotFoundError("column", name)
	case mongo.IsDuplicateKeyError(err):
		return rubric.Column{}, core.NewDuplicateError("column", col.Name)
	default:
		return rubric.Column{}, errors.Wrap(err, "updating column")
	}
}

func (repo *columnRepository) DeleteColumn(ctx context.Context, cycleID, name string) error {
	res, err := repo.col.DeleteOne(ctx, byName(cycleID, name))
	if err != nil {
		return errors.Wrap(err, "deleting column")
	}
	if res.DeletedCount == 0 {
		return core.NewNotFoundError("column", name)
	}
	return nil
}

// ReorderColumns checks every name first so that an unknown one writes nothing, then applies a single bulk write.
func (repo *columnRepository) ReorderColumns(ctx context.Context, cycleID string, names []string) error {
	existing, err := repo.QueryColumns(ctx, cycleID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, c := range existing {
		known[c.Name] = true
	}

	models := make([]mongo.WriteModel, 0, len(names))
	for i, name := range names {
		if !known[name] {
			return core.NewNotFoundError("column", name)
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(byName(cycleID, name)).
			SetUpdate(bson.M{"$set": bson.M{"sort_order": i}}),
		)
	}
	if len(models) == 0 {
		return nil
	}
	_, err = repo.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	return errors.Wrap(err, "reordering columns")
}

func (repo *columnRepository) DeleteColumnsByCycle(ctx context.Context, cycleID string) error {
	_, err := repo.col.DeleteMany(ctx, bson.M{"cycle_id": cycleID})
	return errors.Wrap(err, "deleting columns")
}
