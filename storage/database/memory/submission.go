package memorydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/submission"
)

type submissionRepository struct {
	db *submissionTable
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) submission.Repository {
	return &submissionRepository{db: db.submission}
}

func cloneRequirement(r submission.Requirement) submission.Requirement {
	r.AllowedFormats = append([]string(nil), r.AllowedFormats...)
	if r.Deadline != nil {
		d := *r.Deadline
		r.Deadline = &d
	}
	return r
}

func (repo *submissionRepository) CreateRequirement(_ context.Context, r submission.Requirement) (submission.Requirement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	r.ID = uuid.NewString()
	repo.db.requirements[r.ID] = cloneRequirement(r)
	return r, nil
}

func (repo *submissionRepository) QueryRequirements(_ context.Context) ([]submission.Requirement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reqs := make([]submission.Requirement, 0, len(repo.db.requirements))
	for _, r := range repo.db.requirements {
		reqs = append(reqs, cloneRequirement(r))
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.Before(reqs[j].CreatedAt) })
	return reqs, nil
}

func (repo *submissionRepository) GetRequirement(_ context.Context, id string) (submission.Requirement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.requirements[id]; ok {
		return cloneRequirement(r), nil
	}
	return submission.Requirement{}, core.NewNotFoundError("requirement", id)
}

func (repo *submissionRepository) UpdateRequirement(_ context.Context, r submission.Requirement) (submission.Requirement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.requirements[r.ID]; !ok {
		return submission.Requirement{}, core.NewNotFoundError("requirement", r.ID)
	}
	repo.db.requirements[r.ID] = cloneRequirement(r)
	return r, nil
}

func (repo *submissionRepository) DeleteRequirement(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.requirements[id]; !ok {
		return core.NewNotFoundError("requirement", id)
	}
	delete(repo.db.requirements, id)
	for sid, s := range repo.db.submissions {
		if s.RequirementID == id {
			delete(repo.db.submissions, sid)
		}
	}
	return nil
}

func (repo *submissionRepository) QuerySubmissions(_ context.Context, filter submission.QueryFilter) ([]submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]submission.Submission, 0)
	for _, s := range repo.db.submissions {
		if filter.RequirementID != "" && s.RequirementID != filter.RequirementID {
			continue
		}
		if filter.BatchName != "" && s.BatchName != filter.BatchName {
			continue
		}
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].UploadedAt.Before(subs[j].UploadedAt) })
	return subs, nil
}

func (repo *submissionRepository) GetSubmission(_ context.Context, id string) (submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return s, nil
	}
	return submission.Submission{}, core.NewNotFoundError("submission", id)
}

func (repo *submissionRepository) FindSubmission(_ context.Context, requirementID, batchName string) (submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.submissions {
		if s.RequirementID == requirementID && s.BatchName == batchName {
			return s, nil
		}
	}
	return submission.Submission{}, core.NewNotFoundError("submission", "")
}

func (repo *submissionRepository) SaveSubmission(_ context.Context, s submission.Submission) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, existing := range repo.db.submissions {
		if existing.RequirementID == s.RequirementID && existing.BatchName == s.BatchName {
			s.ID = id
			break
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	repo.db.submissions[s.ID] = s
	return s, nil
}

func (repo *submissionRepository) DeleteSubmission(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.submissions[id]; !ok {
		return core.NewNotFoundError("submission", id)
	}
	delete(repo.db.submissions, id)
	return nil
}
