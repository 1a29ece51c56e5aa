package mongodb

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/reviewdesk/core/user"
)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Name         string             `bson:"name"`
	Username     string             `bson:"username,omitempty"`
	Email        string             `bson:"email,omitempty"`
	IsActive     bool               `bson:"is_active"`
	Roles        []string           `bson:"roles"`
	Sections     []string           `bson:"sections"`
	PasswordHash []byte             `bson:"password_hash"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
	LastLogin    *time.Time         `bson:"last_login,omitempty"`
}

func newUserDoc(oid primitive.ObjectID, u user.User) userDoc {
	doc := userDoc{
		ID:           oid,
		Name:         u.Name,
		Username:     u.Username,
		Email:        u.Email,
		IsActive:     u.IsActive,
		Roles:        u.Roles,
		Sections:     u.Sections,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
	if doc.Roles == nil {
		doc.Roles = []string{}
	}
	if doc.Sections == nil {
		doc.Sections = []string{}
	}
	if !u.LastLogin.IsZero() {
		ll := u.LastLogin.UTC()
		doc.LastLogin = &ll
	}
	return doc
}

func (doc userDoc) toUser() user.User {
	u := user.User{
		ID:           doc.ID.Hex(),
		Name:         doc.Name,
		Username:     doc.Username,
		Email:        doc.Email,
		IsActive:     doc.IsActive,
		Roles:        doc.Roles,
		Sections:     doc.Sections,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt.UTC(),
		UpdatedAt:    doc.UpdatedAt.UTC(),
	}
	if doc.LastLogin != nil {
		u.LastLogin = doc.LastLogin.UTC()
	}
	return u
}

type userRepository struct {
	col *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{col: db.collection(colUsers)}
}

func (repo *userRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]user.User, error) {
	cur, err := repo.col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0)
	err = decodeAll(ctx, cur, func(cur *mongo.Cursor) error {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		users = append(users, doc.toUser())
		return nil
	})
	return users, err
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	var or bson.A
	if username != "" {
		or = append(or, bson.M{"username": username})
	}
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if len(or) == 0 {
		return nil
	}
	excluded := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded = append(excluded, u.ID)
	}

	found, err := repo.find(ctx, bson.M{"$or": or, "_id": bson.M{"$nin": objectIDs(excluded)}})
	if err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	for _, u := range found {
		if username != "" && u.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(found) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	oid := primitive.NewObjectID()
	if _, err := repo.col.InsertOne(ctx, newUserDoc(oid, usr)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, repo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email)
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	usr.ID = oid.Hex()
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter) ([]user.User, error) {
	f := bson.M{}
	if filter != nil {
		if filter.Search != "" {
			rx := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
			f["$or"] = bson.A{bson.M{"name": rx}, bson.M{"username": rx}, bson.M{"email": rx}}
		}
		if len(filter.Roles) > 0 {
			prefixes := make(bson.A, 0, len(filter.Roles))
			for _, r := range filter.Roles {
				prefixes = append(prefixes, primitive.Regex{Pattern: "^" + regexp.QuoteMeta(r)})
			}
			f["roles"] = bson.M{"$in": prefixes}
		}
		if filter.IsActive != nil {
			f["is_active"] = *filter.IsActive
		}
		created := bson.M{}
		if !filter.CreatedFrom.IsZero() {
			created["$gte"] = filter.CreatedFrom.UTC()
		}
		if !filter.CreatedTo.IsZero() {
			created["$lte"] = filter.CreatedTo.UTC()
		}
		if len(created) > 0 {
			f["created_at"] = created
		}
	}
	return repo.find(ctx, f, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var f bson.M
	switch {
	case filter.ID != "":
		oid, ok := objectID(filter.ID)
		if !ok {
			return user.User{}, user.ErrNotFound
		}
		f = bson.M{"_id": oid}
	case filter.Username != "":
		f = bson.M{"username": filter.Username}
	case filter.Email != "":
		f = bson.M{"email": filter.Email}
	case filter.UsernameOrEmail != "":
		f = bson.M{"$or": bson.A{bson.M{"username": filter.UsernameOrEmail}, bson.M{"email": filter.UsernameOrEmail}}}
	default:
		return user.User{}, user.ErrNotFound
	}

	var doc userDoc
	if err := repo.col.FindOne(ctx, f).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return doc.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	oid, ok := objectID(usr.ID)
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	res, err := repo.col.ReplaceOne(ctx, bson.M{"_id": oid}, newUserDoc(oid, usr))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, repo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email, usr)
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if res.MatchedCount == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	res, err := repo.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": objectIDs(ids)}})
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(res.DeletedCount), nil
}
