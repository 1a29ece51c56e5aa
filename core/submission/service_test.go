package submission_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/submission"
	"github.com/trezcool/reviewdesk/services/objectstore"
	memorydb "github.com/trezcool/reviewdesk/storage/database/memory"
	"github.com/trezcool/reviewdesk/testutil"
)

type fixture struct {
	svc    *submission.Service
	store  *objectstore.LocalStore
	logger *testutil.NopLogger
	req    submission.Requirement
}

func setup(t *testing.T, formats []string, deadline *time.Time) fixture {
	t.Helper()
	db := memorydb.Open()
	conf := core.NewTestConfig()
	conf.Storage.LocalDir = t.TempDir()
	conf.Uploads.TempDir = t.TempDir()
	conf.Uploads.MaxSize = 64

	store, err := objectstore.NewLocalStore(conf)
	require.NoError(t, err)
	testutil.CreateTeam(t, memorydb.NewTeamRepository(db), "Batch A1", "Ann (1)")

	logger := &testutil.NopLogger{}
	svc := submission.NewService(
		memorydb.NewSubmissionRepository(db),
		memorydb.NewTeamRepository(db),
		store,
		conf,
		logger,
	)
	req, err := svc.CreateRequirement(context.Background(), submission.NewRequirement{
		Title:          "Synopsis",
		AllowedFormats: formats,
		Deadline:       deadline,
	})
	require.NoError(t, err)
	return fixture{svc: svc, store: store, logger: logger, req: req}
}

func (f fixture) upload(fileName, content string, isAdmin bool) submission.Upload {
	return submission.Upload{
		RequirementID: f.req.ID,
		BatchName:     " Batch A1 ",
		FileName:      fileName,
		Content:       strings.NewReader(content),
		UploadedBy:    "ann",
		IsAdmin:       isAdmin,
	}
}

func (f fixture) read(t *testing.T, s submission.Submission) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.store.Dir(), filepath.FromSlash(s.StorageRef)))
	require.NoError(t, err)
	return string(data)
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	var n int
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			n++
		}
		return err
	})
	require.NoError(t, err)
	return n
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	f := setup(t, []string{"pdf"}, nil)

	s, err := f.svc.Submit(ctx, f.upload("synopsis.PDF", "v1", false))
	require.NoError(t, err)
	assert.Equal(t, "Batch A1", s.BatchName)
	assert.Equal(t, "ann", s.UploadedBy)
	assert.True(t, s.IsLocked)
	assert.True(t, strings.HasPrefix(s.StorageURL, "http://localhost/uploads/submissions/"))
	assert.Equal(t, "v1", f.read(t, s))

	t.Run("locked submissions reject team uploads", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, f.upload("synopsis.pdf", "v2", false))
		assert.Equal(t, core.ErrSubmissionLocked, errors.Cause(err))
		assert.Equal(t, 1, countFiles(t, f.store.Dir()))
	})

	t.Run("unlocked submissions are replaced in place", func(t *testing.T) {
		_, err := f.svc.SetLock(ctx, s.ID, false)
		require.NoError(t, err)

		replaced, err := f.svc.Submit(ctx, f.upload("final.pdf", "v2", false))
		require.NoError(t, err)
		assert.Equal(t, s.ID, replaced.ID)
		assert.Equal(t, "final.pdf", replaced.FileName)
		assert.True(t, replaced.IsLocked, "every upload relocks")
		assert.Equal(t, "v2", f.read(t, replaced))
		assert.Equal(t, 1, countFiles(t, f.store.Dir()), "the superseded file is removed")
		s = replaced
	})

	t.Run("admins replace locked submissions", func(t *testing.T) {
		replaced, err := f.svc.Submit(ctx, f.upload("final.pdf", "v3", true))
		require.NoError(t, err)
		assert.Equal(t, s.ID, replaced.ID)
		assert.Equal(t, "v3", f.read(t, replaced))
		s = replaced
	})

	t.Run("delete removes the file", func(t *testing.T) {
		require.NoError(t, f.svc.Delete(ctx, s.ID))
		assert.Equal(t, 0, countFiles(t, f.store.Dir()))
		_, err := f.svc.Get(ctx, s.ID)
		assert.True(t, core.IsNotFound(err))
	})
}

func TestService_SubmitErrors(t *testing.T) {
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	f := setup(t, []string{"pdf", "docx"}, &past)

	tests := []struct {
		name      string
		up        submission.Upload
		notFound  bool
		wantField string
	}{
		{name: "unknown requirement", up: submission.Upload{RequirementID: "missing", BatchName: "Batch A1"}, notFound: true},
		{name: "unknown team", up: submission.Upload{RequirementID: f.req.ID, BatchName: "Batch Z9"}, notFound: true},
		{name: "no file", up: f.upload("", "x", true), wantField: "file"},
		{name: "format not allowed", up: f.upload("notes.txt", "x", true), wantField: "file"},
		{name: "deadline passed", up: f.upload("syn.pdf", "x", false), wantField: "file"},
		{name: "empty file", up: f.upload("syn.pdf", "", true), wantField: "file"},
		{name: "too large", up: f.upload("syn.pdf", strings.Repeat("x", 65), true), wantField: "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tt.up)
			require.Error(t, err)
			if tt.notFound {
				assert.True(t, core.IsNotFound(err))
				return
			}
			assert.Equal(t, []string{tt.wantField}, testutil.FieldErrors(err))
		})
	}

	assert.Equal(t, 0, countFiles(t, f.store.Dir()))

	// admins are not bound by the deadline
	_, err := f.svc.Submit(ctx, f.upload("syn.docx", "x", true))
	assert.NoError(t, err)
}

type failingStore struct{}

func (failingStore) Put(context.Context, string, io.Reader, int64, string) (string, string, error) {
	return "", "", errors.New("bucket unavailable")
}

func (failingStore) Delete(context.Context, string) error { return errors.New("bucket unavailable") }

func TestService_StorageFailure(t *testing.T) {
	ctx := context.Background()
	db := memorydb.Open()
	conf := core.NewTestConfig()
	conf.Uploads.TempDir = t.TempDir()
	testutil.CreateTeam(t, memorydb.NewTeamRepository(db), "Batch A1")
	svc := submission.NewService(memorydb.NewSubmissionRepository(db), memorydb.NewTeamRepository(db), failingStore{}, conf, &testutil.NopLogger{})
	req, err := svc.CreateRequirement(ctx, submission.NewRequirement{Title: "Synopsis"})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, submission.Upload{RequirementID: req.ID, BatchName: "Batch A1", FileName: "a.pdf", Content: strings.NewReader("x")})
	_, ok := errors.Cause(err).(*core.StorageError)
	assert.True(t, ok, "got %v", err)

	subs, err := svc.List(ctx, submission.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, subs)

	entries, err := os.ReadDir(conf.Uploads.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files are always removed")
}

func TestService_DeleteRequirement(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil, nil)
	s, err := f.svc.Submit(ctx, f.upload("syn.pdf", "v1", false))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteRequirement(ctx, f.req.ID))
	_, err = f.svc.Get(ctx, s.ID)
	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, 0, countFiles(t, f.store.Dir()))

	reqs, err := f.svc.ListRequirements(ctx)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestNewRequirement_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	nr := submission.NewRequirement{Title: " Synopsis ", AllowedFormats: []string{".PDF", "pdf", " docx ", ""}}
	require.NoError(t, nr.Validate(validate))
	assert.Equal(t, "Synopsis", nr.Title)
	assert.Equal(t, []string{"pdf", "docx"}, nr.AllowedFormats)

	nr = submission.NewRequirement{Title: " "}
	assert.Equal(t, []string{"title"}, testutil.FieldErrors(nr.Validate(validate)))
}
