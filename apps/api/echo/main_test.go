package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/cycle"
	"github.com/trezcool/reviewdesk/core/importer"
	"github.com/trezcool/reviewdesk/core/report"
	"github.com/trezcool/reviewdesk/core/rubric"
	"github.com/trezcool/reviewdesk/core/scoring"
	"github.com/trezcool/reviewdesk/core/submission"
	"github.com/trezcool/reviewdesk/core/team"
	"github.com/trezcool/reviewdesk/core/user"
	emailsvc "github.com/trezcool/reviewdesk/services/email"
	"github.com/trezcool/reviewdesk/services/objectstore"
	"github.com/trezcool/reviewdesk/services/spreadsheet"
	memorydb "github.com/trezcool/reviewdesk/storage/database/memory"
	"github.com/trezcool/reviewdesk/testutil"
)

const testPassword = "Sup3r-s3cret!"

type testApp struct {
	srv         *Server
	conf        *core.Config
	tokens      tokenizer
	users       user.Repository
	cycles      cycle.Repository
	columns     rubric.Repository
	teams       team.Repository
	submissions submission.Repository
	store       *objectstore.LocalStore
}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Storage.LocalDir = t.TempDir()
	conf.Uploads.TempDir = t.TempDir()
	logger := &testutil.NopLogger{}
	require.NoError(t, core.ParseEmailTemplates(conf))
	validate, translator := testutil.NewValidator()

	// set up DB & repos
	db := memorydb.Open()
	app := &testApp{
		conf:        conf,
		tokens:      newTokenizer(conf),
		users:       memorydb.NewUserRepository(db),
		cycles:      memorydb.NewCycleRepository(db),
		columns:     memorydb.NewColumnRepository(db),
		teams:       memorydb.NewTeamRepository(db),
		submissions: memorydb.NewSubmissionRepository(db),
	}
	store, err := objectstore.NewLocalStore(conf)
	require.NoError(t, err)
	app.store = store

	// set up services
	teamSvc := team.NewService(app.teams)
	app.srv = NewServer(Deps{
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		UserSvc:       user.NewService(app.users, emailsvc.NewConsoleServiceMock(conf, logger), conf),
		CycleSvc:      cycle.NewService(app.cycles, app.teams, app.columns, logger),
		RubricSvc:     rubric.NewService(app.columns, app.cycles, app.teams, conf, logger),
		TeamSvc:       teamSvc,
		Engine:        scoring.NewEngine(app.teams, app.cycles, app.columns, conf),
		ReportSvc:     report.NewService(app.cycles, app.columns, app.teams, app.submissions, spreadsheet.XLSX{}),
		ImportSvc:     importer.NewService(spreadsheet.XLSX{}, teamSvc, logger),
		SubmissionSvc: submission.NewService(app.submissions, app.teams, store, conf, logger),
		UploadsDir:    store.Dir(),
	})
	return app
}

func (app *testApp) createUser(t *testing.T, uname string, roles ...string) user.User {
	t.Helper()
	return testutil.CreateUser(t, app.users, uname, uname, uname+"@test.cd", testPassword, roles, true)
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := app.tokens.Sign(app.tokens.Claims(usr))
	require.NoError(t, err)
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds a multipart request carrying the file under "file" plus the given form fields.
func newUploadRequest(t *testing.T, path, token, fileName string, content []byte, fields map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		part, err := w.CreateFormFile(uploadField, fileName)
		require.NoError(t, err)
		_, err = io.Copy(part, bytes.NewReader(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into), rec.Body.String())
}

func (app *testApp) serve(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.srv.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := app.serve(newAuthRequest(method, tt.path, tt.token, tt.body))
			checkCodeAndData(t, tt, rec)
		})
	}
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func ctxBg() context.Context { return context.Background() }
