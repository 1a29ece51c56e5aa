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
	"github.com/trezcool/reviewdesk/core/submission"
)

type requirementDoc struct {
	ID             primitive.ObjectID `bson:"_id"`
	Title          string             `bson:"title"`
	Description    string             `bson:"description"`
	AllowedFormats []string           `bson:"allowed_formats"`
	Deadline       *time.Time         `bson:"deadline,omitempty"`
	CreatedAt      time.Time          `bson:"created_at"`
}

func newRequirementDoc(oid primitive.ObjectID, r submission.Requirement) requirementDoc {
	doc := requirementDoc{
		ID:             oid,
		Title:          r.Title,
		Description:    r.Description,
		AllowedFormats: r.AllowedFormats,
		CreatedAt:      r.CreatedAt.UTC(),
	}
	if doc.AllowedFormats == nil {
		doc.AllowedFormats = []string{}
	}
	if r.Deadline != nil {
		d := r.Deadline.UTC()
		doc.Deadline = &d
	}
	return doc
}

func (doc requirementDoc) toRequirement() submission.Requirement {
	r := submission.Requirement{
		ID:             doc.ID.Hex(),
		Title:          doc.Title,
		Description:    doc.Description,
		AllowedFormats: doc.AllowedFormats,
		CreatedAt:      doc.CreatedAt.UTC(),
	}
	if doc.Deadline != nil {
		d := doc.Deadline.UTC()
		r.Deadline = &d
	}
	return r
}

type submissionDoc struct {
	ID            primitive.ObjectID `bson:"_id"`
	RequirementID string             `bson:"requirement_id"`
	BatchName     string             `bson:"batch_name"`
	FileName      string             `bson:"file_name"`
	StorageURL    string             `bson:"storage_url"`
	StorageRef    string             `bson:"storage_ref"`
	UploadedBy    string             `bson:"uploaded_by"`
	UploadedAt    time.Time          `bson:"uploaded_at"`
	IsLocked      bool               `bson:"is_locked"`
}

func (doc submissionDoc) toSubmission() submission.Submission {
	return submission.Submission{
		ID:            doc.ID.Hex(),
		RequirementID: doc.RequirementID,
		BatchName:     doc.BatchName,
		FileName:      doc.FileName,
		StorageURL:    doc.StorageURL,
		StorageRef:    doc.StorageRef,
		UploadedBy:    doc.UploadedBy,
		UploadedAt:    doc.UploadedAt.UTC(),
		IsLocked:      doc.IsLocked,
	}
}

type submissionRepository struct {
	requirements *mongo.Collection
	submissions  *mongo.Collection
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) submission.Repository {
	return &submissionRepository{
		requirements: db.collection(colRequirements),
		submissions:  db.collection(colSubmissions),
	}
}

// Requirements

func (repo *submissionRepository) CreateRequirement(ctx context.Context, r submission.Requirement) (submission.Requirement, error) {
	oid := primitive.NewObjectID()
	if _, err := repo.requirements.InsertOne(ctx, newRequirementDoc(oid, r)); err != nil {
		return submission.Requirement{}, errors.Wrap(err, "inserting requirement")
	}
	r.ID = oid.Hex()
	return r, nil
}

func (repo *submissionRepository) QueryRequirements(ctx context.Context) ([]submission.Requirement, error) {
	cur, err := repo.requirements.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying requirements")
	}
	reqs := make([]submission.Requirement, 0)
	err = decodeAll(ctx, cur, func(cur *mongo.Cursor) error {
		var doc requirementDoc
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		reqs = append(reqs, doc.toRequirement())
		return nil
	})
	return reqs, err
}

func (repo *submissionRepository) GetRequirement(ctx context.Context, id string) (submission.Requirement, error) {
	oid, ok := objectID(id)
	if !ok {
		return submission.Requirement{}, core.NewNotFoundError("requirement", id)
	}
	var doc requirementDoc
	if err := repo.requirements.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return submission.Requirement{}, core.NewNotFoundError("requirement", id)
		}
		return submission.Requirement{}, errors.Wrap(err, "getting requirement")
	}
	return doc.toRequirement(), nil
}

func (repo *submissionRepository) UpdateRequirement(ctx context.Context, r submission.Requirement) (submission.Requirement, error) {
	oid, ok := objectID(r.ID)
	if !ok {
		return submission.Requirement{}, core.NewNotFoundError("requirement", r.ID)
	}
	res, err := repo.requirements.ReplaceOne(ctx, bson.M{"_id": oid}, newRequirementDoc(oid, r))
	if err != nil {
		return submission.Requirement{}, errors.Wrap(err, "updating requirement")
	}
	if res.MatchedCount == 0 {
		return submission.Requirement{}, core.NewNotFoundError("requirement", r.ID)
	}
	return r, nil
}

// DeleteRequirement removes the requirement and every submission made against it.
func (repo *submissionRepository) DeleteRequirement(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return core.NewNotFoundError("requirement", id)
	}
	res, err := repo.requirements.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errors.Wrap(err, "deleting requirement")
	}
	if res.DeletedCount == 0 {
		return core.NewNotFoundError("requirement", id)
	}
	_, err = repo.submissions.DeleteMany(ctx, bson.M{"requirement_id": id})
	return errors.Wrap(err, "deleting submissions")
}

// Submissions

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, filter submission.QueryFilter) ([]submission.Submission, error) {
	f := bson.M{}
	if filter.RequirementID != "" {
		f["requirement_id"] = filter.RequirementID
	}
	if filter.BatchName != "" {
		f["batch_name"] = filter.BatchName
	}
	cur, err := repo.submissions.Find(ctx, f, options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]submission.Submission, 0)
	err = decodeAll(ctx, cur, func(cur *mongo.Cursor) error {
		var doc submissionDoc
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		subs = append(subs, doc.toSubmission())
		return nil
	})
	return subs, err
}

func (repo *submissionRepository) findOne(ctx context.Context, filter bson.M, ref string) (submission.Submission, error) {
	var doc submissionDoc
	if err := repo.submissions.FindOne(ctx, filter).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return submission.Submission{}, core.NewNotFoundError("submission", ref)
		}
		return submission.Submission{}, errors.Wrap(err, "getting submission")
	}
	return doc.toSubmission(), nil
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	oid, ok := objectID(id)
	if !ok {
		return submission.Submission{}, core.NewNotFoundError("submission", id)
	}
	return repo.findOne(ctx, bson.M{"_id": oid}, id)
}

func (repo *submissionRepository) FindSubmission(ctx context.Context, requirementID, batchName string) (submission.Submission, error) {
	return repo.findOne(ctx, bson.M{"requirement_id": requirementID, "batch_name": batchName}, "")
}

// SaveSubmission upserts on (requirement, team); an existing document keeps its id.
func (repo *submissionRepository) SaveSubmission(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	oid, ok := objectID(s.ID)
	if !ok {
		oid = primitive.NewObjectID()
	}
	update := bson.M{
		"$set": bson.M{
			"file_name":   s.FileName,
			"storage_url": s.StorageURL,
			"storage_ref": s.StorageRef,
			"uploaded_by": s.UploadedBy,
			"uploaded_at": s.UploadedAt.UTC(),
			"is_locked":   s.IsLocked,
		},
		"$setOnInsert": bson.M{"_id": oid},
	}
	var doc submissionDoc
	err := repo.submissions.FindOneAndUpdate(ctx,
		bson.M{"requirement_id": s.RequirementID, "batch_name": s.BatchName},
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "saving submission")
	}
	return doc.toSubmission(), nil
}

func (repo *submissionRepository) DeleteSubmission(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return core.NewNotFoundError("submission", id)
	}
	res, err := repo.submissions.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errors.Wrap(err, "deleting submission")
	}
	if res.DeletedCount == 0 {
		return core.NewNotFoundError("submission", id)
	}
	return nil
}
