package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/cycle"
)

type cycleDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
	IsActive    bool               `bson:"is_active"`
	CreatedAt   time.Time          `bson:"created_at"`
}

func (doc cycleDoc) toCycle() cycle.Cycle {
	return cycle.Cycle{
		ID:          doc.ID.Hex(),
		Name:        doc.Name,
		Description: doc.Description,
		IsActive:    doc.IsActive,
		CreatedAt:   doc.CreatedAt.UTC(),
	}
}

type cycleRepository struct {
	col *mongo.Collection
}

var _ cycle.Repository = (*cycleRepository)(nil) // interface compliance check

func NewCycleRepository(db *DB) cycle.Repository {
	return &cycleRepository{col: db.collection(colCycles)}
}

func (repo *cycleRepository) CreateCycle(ctx context.Context, c cycle.Cycle) (cycle.Cycle, error) {
	doc := cycleDoc{
		ID:          primitive.NewObjectID(),
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt.UTC(),
	}
	if _, err := repo.col.InsertOne(ctx, doc); err != nil {
		return cycle.Cycle{}, errors.Wrap(err, "inserting cycle")
	}
	return doc.toCycle(), nil
}

func (repo *cycleRepository) QueryCycles(ctx context.Context) ([]cycle.Cycle, error) {
	cur, err := repo.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying cycles")
	}
	cycles := make([]cycle.Cycle, 0)
	err = decodeAll(ctx, cur, func(cur *mongo.Cursor) error {
		var doc cycleDoc
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		cycles = append(cycles, doc.toCycle())
		return nil
	})
	return cycles, err
}

func (repo *cycleRepository) findOne(ctx context.Context, filter bson.M) (cycleDoc, error) {
	var doc cycleDoc
	err := repo.col.FindOne(ctx, filter).Decode(&doc)
	return doc, err
}

func (repo *cycleRepository) GetCycle(ctx context.Context, id string) (cycle.Cycle, error) {
	oid, ok := objectID(id)
	if !ok {
		return cycle.Cycle{}, core.NewNotFoundError("cycle", id)
	}
	doc, err := repo.findOne(ctx, bson.M{"_id": oid})
	if err != nil {
		if isNoDocuments(err) {
			return cycle.Cycle{}, core.NewNotFoundError("cycle", id)
		}
		return cycle.Cycle{}, errors.Wrap(err, "getting cycle")
	}
	return doc.toCycle(), nil
}

func (repo *cycleRepository) GetActiveCycle(ctx context.Context) (cycle.Cycle, error) {
	doc, err := repo.findOne(ctx, bson.M{"is_active": true})
	if err != nil {
		if isNoDocuments(err) {
			return cycle.Cycle{}, core.ErrNoActiveCycle
		}
		return cycle.Cycle{}, errors.Wrap(err, "getting active cycle")
	}
	return doc.toCycle(), nil
}

// ActivateCycle clears the active flag everywhere else, then sets it on the target.
// The partial unique index on is_active rejects a concurrent second activation.
func (repo *cycleRepository) ActivateCycle(ctx context.Context, id string) (cycle.Cycle, error) {
	oid, ok := objectID(id)
	if !ok {
		return cycle.Cycle{}, core.NewNotFoundError("cycle", id)
	}
	if _, err := repo.GetCycle(ctx, id); err != nil {
		return cycle.Cycle{}, err
	}

	_, err := repo.col.UpdateMany(ctx,
		bson.M{"is_active": true, "_id": bson.M{"$ne": oid}},
		bson.M{"$set": bson.M{"is_active": false}},
	)
	if err != nil {
		return cycle.Cycle{}, errors.Wrap(err, "deactivating cycles")
	}

	var doc cycleDoc
	err = repo.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"is_active": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return cycle.Cycle{}, core.NewNotFoundError("cycle", id)
		}
		return cycle.Cycle{}, errors.Wrap(err, "activating cycle")
	}
	return doc.toCycle(), nil
}

func (repo *cycleRepository) DeleteCycle(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return core.NewNotFoundError("cycle", id)
	}
	res, err := repo.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errors.Wrap(err, "deleting cycle")
	}
	if res.DeletedCount == 0 {
		return core.NewNotFoundError("cycle", id)
	}
	return nil
}
