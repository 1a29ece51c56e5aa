package submission

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/team"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type (
	Repository interface {
		CreateRequirement(ctx context.Context, r Requirement) (Requirement, error)
		QueryRequirements(ctx context.Context) ([]Requirement, error)
		GetRequirement(ctx context.Context, id string) (Requirement, error)
		UpdateRequirement(ctx context.Context, r Requirement) (Requirement, error)
		DeleteRequirement(ctx context.Context, id string) error

		QuerySubmissions(ctx context.Context, filter QueryFilter) ([]Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		// FindSubmission fails with a *core.NotFoundError when the team has not submitted for the requirement.
		FindSubmission(ctx context.Context, requirementID, batchName string) (Submission, error)
		// SaveSubmission inserts the submission or overwrites the one of the same (requirement, team).
		SaveSubmission(ctx context.Context, s Submission) (Submission, error)
		DeleteSubmission(ctx context.Context, id string) error
	}

	TeamFinder interface {
		GetTeamByName(ctx context.Context, name string) (team.Team, error)
	}

	Service struct {
		repo    Repository
		teams   TeamFinder
		store   core.ObjectStore
		logger  core.Logger
		maxSize int64
		tempDir string
	}

	// Upload is a file handed in by a user on behalf of a team.
	Upload struct {
		RequirementID string
		BatchName     string
		FileName      string
		Content       io.Reader
		UploadedBy    string
		IsAdmin       bool
	}
)

func NewService(repo Repository, teams TeamFinder, store core.ObjectStore, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		teams:   teams,
		store:   store,
		logger:  logger,
		maxSize: conf.Uploads.MaxSize,
		tempDir: conf.Uploads.TempDir,
	}
}

// Requirements

func (svc *Service) CreateRequirement(ctx context.Context, nr NewRequirement) (Requirement, error) {
	return svc.repo.CreateRequirement(ctx, Requirement{
		Title:          nr.Title,
		Description:    nr.Description,
		AllowedFormats: nr.AllowedFormats,
		Deadline:       nr.Deadline,
		CreatedAt:      core.NowFunc().UTC(),
	})
}

func (svc *Service) ListRequirements(ctx context.Context) ([]Requirement, error) {
	reqs, err := svc.repo.QueryRequirements(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying requirements")
	}
	if reqs == nil {
		reqs = []Requirement{}
	}
	return reqs, nil
}

func (svc *Service) GetRequirement(ctx context.Context, id string) (Requirement, error) {
	return svc.repo.GetRequirement(ctx, id)
}

func (svc *Service) UpdateRequirement(ctx context.Context, id string, nr NewRequirement) (Requirement, error) {
	r, err := svc.repo.GetRequirement(ctx, id)
	if err != nil {
		return Requirement{}, err
	}
	r.Title = nr.Title
	r.Description = nr.Description
	r.AllowedFormats = nr.AllowedFormats
	r.Deadline = nr.Deadline
	return svc.repo.UpdateRequirement(ctx, r)
}

// DeleteRequirement removes the requirement along with its submissions and their files.
func (svc *Service) DeleteRequirement(ctx context.Context, id string) error {
	if _, err := svc.repo.GetRequirement(ctx, id); err != nil {
		return err
	}
	subs, err := svc.repo.QuerySubmissions(ctx, QueryFilter{RequirementID: id})
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	for _, s := range subs {
		if err := svc.Delete(ctx, s.ID); err != nil {
			return err
		}
	}
	return errors.Wrap(svc.repo.DeleteRequirement(ctx, id), "deleting requirement")
}

// Submissions

func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Submission, error) {
	subs, err := svc.repo.QuerySubmissions(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []Submission{}
	}
	return subs, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmission(ctx, id)
}

// Submit stores the uploaded file and records it as the team's submission for the requirement.
// An existing submission is overwritten in place and the result is locked; only admins may replace a locked one.
func (svc *Service) Submit(ctx context.Context, up Upload) (Submission, error) {
	req, err := svc.repo.GetRequirement(ctx, up.RequirementID)
	if err != nil {
		return Submission{}, err
	}
	t, err := svc.teams.GetTeamByName(ctx, core.CleanString(up.BatchName))
	if err != nil {
		return Submission{}, err
	}

	fileName := core.CleanString(up.FileName)
	if fileName == "" {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "a file is required"})
	}
	if !req.Allows(fileName) {
		return Submission{}, core.NewValidationError(nil, core.FieldError{
			Field: "file",
			Error: "file format must be one of: " + strings.Join(req.AllowedFormats, ", "),
		})
	}
	now := core.NowFunc().UTC()
	if !up.IsAdmin && req.IsPastDeadline(now) {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "the deadline has passed"})
	}

	existing, err := svc.repo.FindSubmission(ctx, req.ID, t.Name)
	hasExisting := err == nil
	if err != nil && !core.IsNotFound(err) {
		return Submission{}, errors.Wrap(err, "finding submission")
	}
	if hasExisting && existing.IsLocked && !up.IsAdmin {
		return Submission{}, core.ErrSubmissionLocked
	}

	url, ref, err := svc.upload(ctx, req.ID, t.Name, fileName, up.Content)
	if err != nil {
		return Submission{}, err
	}

	s := Submission{
		RequirementID: req.ID,
		BatchName:     t.Name,
		FileName:      fileName,
		StorageURL:    url,
		StorageRef:    ref,
		UploadedBy:    up.UploadedBy,
		UploadedAt:    now,
		IsLocked:      true,
	}
	if hasExisting {
		s.ID = existing.ID
	}
	saved, err := svc.repo.SaveSubmission(ctx, s)
	if err != nil {
		svc.deleteObject(ctx, ref)
		return Submission{}, errors.Wrap(err, "saving submission")
	}

	if hasExisting && existing.StorageRef != "" && existing.StorageRef != ref {
		svc.deleteObject(ctx, existing.StorageRef)
	}
	return saved, nil
}

// upload spools the content to a temp file to learn its size, then hands it to the object store.
// The temp file is always removed.
func (svc *Service) upload(ctx context.Context, requirementID, batchName, fileName string, content io.Reader) (string, string, error) {
	tmp, err := os.CreateTemp(svc.tempDir, "upload-*")
	if err != nil {
		return "", "", core.NewStorageError("creating temp file", err)
	}
	defer func() {
		_ = tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil {
			svc.logger.Warn(fmt.Sprintf("removing temp file %s", tmp.Name()), err)
		}
	}()

	size, err := io.Copy(tmp, io.LimitReader(content, svc.maxSize+1))
	if err != nil {
		return "", "", core.NewStorageError("spooling upload", err)
	}
	if size > svc.maxSize {
		return "", "", core.NewValidationError(nil, core.FieldError{
			Field: "file",
			Error: fmt.Sprintf("file must not exceed %d bytes", svc.maxSize),
		})
	}
	if size == 0 {
		return "", "", core.NewValidationError(nil, core.FieldError{Field: "file", Error: "file is empty"})
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", "", core.NewStorageError("rewinding temp file", err)
	}

	key := objectKey(requirementID, batchName, fileName)
	ct := mime.TypeByExtension("." + Ext(fileName))
	if ct == "" {
		ct = "application/octet-stream"
	}
	url, ref, err := svc.store.Put(ctx, key, tmp, size, ct)
	if err != nil {
		return "", "", core.NewStorageError("uploading file", err)
	}
	return url, ref, nil
}

// objectKey builds the object key of an upload: submissions/<requirement>/<team>/<uuid>-<file>
func objectKey(requirementID, batchName, fileName string) string {
	return strings.Join([]string{
		"submissions",
		unsafeKeyChars.ReplaceAllString(requirementID, "_"),
		unsafeKeyChars.ReplaceAllString(batchName, "_"),
		uuid.New().String() + "-" + unsafeKeyChars.ReplaceAllString(fileName, "_"),
	}, "/")
}

func (svc *Service) deleteObject(ctx context.Context, ref string) {
	if err := svc.store.Delete(ctx, ref); err != nil {
		svc.logger.Warn(fmt.Sprintf("deleting stored object %s", ref), err)
	}
}

// SetLock locks or unlocks a submission. Unlocked submissions can be replaced by their team.
func (svc *Service) SetLock(ctx context.Context, id string, locked bool) (Submission, error) {
	s, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	s.IsLocked = locked
	return svc.repo.SaveSubmission(ctx, s)
}

// Delete removes the submission. A failure to delete its file is logged only.
func (svc *Service) Delete(ctx context.Context, id string) error {
	s, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteSubmission(ctx, id); err != nil {
		return errors.Wrap(err, "deleting submission")
	}
	if s.StorageRef != "" {
		svc.deleteObject(ctx, s.StorageRef)
	}
	return nil
}
