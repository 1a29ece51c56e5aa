package postgresdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/submission"
)

const (
	requirementColumns = "id, title, description, allowed_formats, deadline, created_at"
	submissionColumns  = "id, requirement_id, batch_name, file_name, storage_url, storage_ref, uploaded_by, uploaded_at, is_locked"
)

type requirementRow struct {
	ID             string         `db:"id"`
	Title          string         `db:"title"`
	Description    string         `db:"description"`
	AllowedFormats pq.StringArray `db:"allowed_formats"`
	Deadline       null.Time      `db:"deadline"`
	CreatedAt      time.Time      `db:"created_at"`
}

func newRequirementRow(r submission.Requirement) requirementRow {
	formats := pq.StringArray(r.AllowedFormats)
	if formats == nil {
		formats = pq.StringArray{}
	}
	row := requirementRow{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		AllowedFormats: formats,
		CreatedAt:      r.CreatedAt.UTC(),
	}
	if r.Deadline != nil {
		row.Deadline = null.TimeFrom(r.Deadline.UTC())
	}
	return row
}

func (row requirementRow) toRequirement() submission.Requirement {
	r := submission.Requirement{
		ID:             row.ID,
		Title:          row.Title,
		Description:    row.Description,
		AllowedFormats: []string(row.AllowedFormats),
		CreatedAt:      row.CreatedAt.UTC(),
	}
	if row.Deadline.Valid {
		d := row.Deadline.Time.UTC()
		r.Deadline = &d
	}
	return r
}

type submissionRow struct {
	ID            string    `db:"id"`
	RequirementID string    `db:"requirement_id"`
	BatchName     string    `db:"batch_name"`
	FileName      string    `db:"file_name"`
	StorageURL    string    `db:"storage_url"`
	StorageRef    string    `db:"storage_ref"`
	UploadedBy    string    `db:"uploaded_by"`
	UploadedAt    time.Time `db:"uploaded_at"`
	IsLocked      bool      `db:"is_locked"`
}

func (row submissionRow) toSubmission() submission.Submission {
	return submission.Submission{
		ID:            row.ID,
		RequirementID: row.RequirementID,
		BatchName:     row.BatchName,
		FileName:      row.FileName,
		StorageURL:    row.StorageURL,
		StorageRef:    row.StorageRef,
		UploadedBy:    row.UploadedBy,
		UploadedAt:    row.UploadedAt.UTC(),
		IsLocked:      row.IsLocked,
	}
}

type submissionRepository struct {
	db *sqlx.DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *sqlx.DB) submission.Repository {
	return &submissionRepository{db: db}
}

// Requirements

func (repo *submissionRepository) CreateRequirement(ctx context.Context, r submission.Requirement) (submission.Requirement, error) {
	r.ID = uuid.NewString()
	q := "INSERT INTO requirements (" + requirementColumns + ") VALUES" +
		" (:id, :title, :description, :allowed_formats, :deadline, :created_at)"
	if _, err := repo.db.NamedExecContext(ctx, q, newRequirementRow(r)); err != nil {
		return submission.Requirement{}, errors.Wrap(err, "inserting requirement")
	}
	return r, nil
}

func (repo *submissionRepository) QueryRequirements(ctx context.Context) ([]submission.Requirement, error) {
	var rows []requirementRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+requirementColumns+" FROM requirements ORDER BY created_at"); err != nil {
		return nil, errors.Wrap(err, "querying requirements")
	}
	reqs := make([]submission.Requirement, 0, len(rows))
	for _, row := range rows {
		reqs = append(reqs, row.toRequirement())
	}
	return reqs, nil
}

func (repo *submissionRepository) GetRequirement(ctx context.Context, id string) (submission.Requirement, error) {
	if !validID(id) {
		return submission.Requirement{}, core.NewNotFoundError("requirement", id)
	}
	var row requirementRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+requirementColumns+" FROM requirements WHERE id = $1", id); err != nil {
		if isNoRows(err) {
			return submission.Requirement{}, core.NewNotFoundError("requirement", id)
		}
		return submission.Requirement{}, errors.Wrap(err, "getting requirement")
	}
	return row.toRequirement(), nil
}

func (repo *submissionRepository) UpdateRequirement(ctx context.Context, r submission.Requirement) (submission.Requirement, error) {
	if !validID(r.ID) {
		return submission.Requirement{}, core.NewNotFoundError("requirement", r.ID)
	}
	q := "UPDATE requirements SET title = :title, description = :description, allowed_formats = :allowed_formats," +
		" deadline = :deadline WHERE id = :id"
	res, err := repo.db.NamedExecContext(ctx, q, newRequirementRow(r))
	if err != nil {
		return submission.Requirement{}, errors.Wrap(err, "updating requirement")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return submission.Requirement{}, core.NewNotFoundError("requirement", r.ID)
	}
	return r, nil
}

// DeleteRequirement removes the requirement. Its submissions go with it through the foreign key.
func (repo *submissionRepository) DeleteRequirement(ctx context.Context, id string) error {
	if !validID(id) {
		return core.NewNotFoundError("requirement", id)
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM requirements WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting requirement")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewNotFoundError("requirement", id)
	}
	return nil
}

// Submissions

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, filter submission.QueryFilter) ([]submission.Submission, error) {
	subs := make([]submission.Submission, 0)
	var (
		where []string
		args  []interface{}
	)
	if filter.RequirementID != "" {
		if !validID(filter.RequirementID) {
			return subs, nil
		}
		args = append(args, filter.RequirementID)
		where = append(where, fmt.Sprintf("requirement_id = $%d", len(args)))
	}
	if filter.BatchName != "" {
		args = append(args, filter.BatchName)
		where = append(where, fmt.Sprintf("batch_name = $%d", len(args)))
	}

	q := "SELECT " + submissionColumns + " FROM submissions"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	var rows []submissionRow
	if err := repo.db.SelectContext(ctx, &rows, q+" ORDER BY uploaded_at", args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	for _, row := range rows {
		subs = append(subs, row.toSubmission())
	}
	return subs, nil
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	if !validID(id) {
		return submission.Submission{}, core.NewNotFoundError("submission", id)
	}
	var row submissionRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+submissionColumns+" FROM submissions WHERE id = $1", id); err != nil {
		if isNoRows(err) {
			return submission.Submission{}, core.NewNotFoundError("submission", id)
		}
		return submission.Submission{}, errors.Wrap(err, "getting submission")
	}
	return row.toSubmission(), nil
}

func (repo *submissionRepository) FindSubmission(ctx context.Context, requirementID, batchName string) (submission.Submission, error) {
	if !validID(requirementID) {
		return submission.Submission{}, core.NewNotFoundError("submission", "")
	}
	var row submissionRow
	q := "SELECT " + submissionColumns + " FROM submissions WHERE requirement_id = $1 AND batch_name = $2"
	if err := repo.db.GetContext(ctx, &row, q, requirementID, batchName); err != nil {
		if isNoRows(err) {
			return submission.Submission{}, core.NewNotFoundError("submission", "")
		}
		return submission.Submission{}, errors.Wrap(err, "finding submission")
	}
	return row.toSubmission(), nil
}

// SaveSubmission upserts on (requirement, team); the stored id wins on conflict.
func (repo *submissionRepository) SaveSubmission(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	var row submissionRow
	q := "INSERT INTO submissions (" + submissionColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)" +
		" ON CONFLICT (requirement_id, batch_name) DO UPDATE SET file_name = EXCLUDED.file_name," +
		" storage_url = EXCLUDED.storage_url, storage_ref = EXCLUDED.storage_ref, uploaded_by = EXCLUDED.uploaded_by," +
		" uploaded_at = EXCLUDED.uploaded_at, is_locked = EXCLUDED.is_locked RETURNING " + submissionColumns
	err := repo.db.GetContext(ctx, &row, q,
		s.ID, s.RequirementID, s.BatchName, s.FileName, s.StorageURL, s.StorageRef, s.UploadedBy, s.UploadedAt.UTC(), s.IsLocked,
	)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "saving submission")
	}
	return row.toSubmission(), nil
}

func (repo *submissionRepository) DeleteSubmission(ctx context.Context, id string) error {
	if !validID(id) {
		return core.NewNotFoundError("submission", id)
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM submissions WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting submission")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewNotFoundError("submission", id)
	}
	return nil
}
