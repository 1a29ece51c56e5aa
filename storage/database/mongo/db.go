package mongodb

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/trezcool/reviewdesk/core"
)

// Collections
const (
	colUsers        = "users"
	colCycles       = "cycles"
	colColumns      = "columns"
	colTeams        = "teams"
	colRequirements = "requirements"
	colSubmissions  = "submissions"
)

// DB wraps the client and the application database.
type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

func uri(conf *core.Config) string {
	if conf.Database.URI != "" {
		return conf.Database.URI
	}
	u := url.URL{Scheme: "mongodb", Host: conf.Database.Address()}
	if conf.Database.User != "" {
		u.User = url.UserPassword(conf.Database.User, conf.Database.Password)
	}
	if !conf.Database.DisableTLS {
		u.RawQuery = "tls=true"
	}
	return u.String()
}

// Open connects to the configured deployment and waits for it to be ready.
func Open(ctx context.Context, conf *core.Config) (*DB, error) {
	opts := options.Client().ApplyURI(uri(conf)).SetAppName(conf.AppName)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo")
	}
	if err := ping(ctx, client); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &DB{client: client, db: client.Database(conf.Database.Name)}, nil
}

// ping waits for the primary to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, client *mongo.Client) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = client.Ping(ctx, readpref.Primary()); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping cancelled")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func (db *DB) Close(ctx context.Context) error {
	return errors.Wrap(db.client.Disconnect(ctx), "disconnecting from mongo")
}

func (db *DB) collection(name string) *mongo.Collection {
	return db.db.Collection(name)
}

// EnsureIndexes creates the indexes backing the uniqueness rules. It is idempotent.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	exists := bson.M{"$exists": true}
	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"username": exists}),
			},
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"email": exists}),
			},
		},
		colCycles: {
			// at most one active cycle
			{
				Keys:    bson.D{{Key: "is_active", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"is_active": true}),
			},
		},
		colColumns: {
			{
				Keys:    bson.D{{Key: "cycle_id", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colTeams: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colSubmissions: {
			{
				Keys:    bson.D{{Key: "requirement_id", Value: 1}, {Key: "batch_name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
	for name, models := range indexes {
		if _, err := db.collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "creating %s indexes", name)
		}
	}
	return nil
}

// objectID parses a hex id. Malformed ids match no document.
func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	return oid, err == nil
}

func objectIDs(ids []string) []primitive.ObjectID {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, ok := objectID(id); ok {
			oids = append(oids, oid)
		}
	}
	return oids
}

func isNoDocuments(err error) bool {
	return errors.Cause(err) == mongo.ErrNoDocuments
}

// decodeAll drains the cursor, decoding each document with fn.
func decodeAll(ctx context.Context, cur *mongo.Cursor, fn func(cur *mongo.Cursor) error) error {
	defer func() { _ = cur.Close(ctx) }()
	for cur.Next(ctx) {
		if err := fn(cur); err != nil {
			return errors.Wrap(err, "decoding document")
		}
	}
	return errors.Wrap(cur.Err(), "iterating cursor")
}
