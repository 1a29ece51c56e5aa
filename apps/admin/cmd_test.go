package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/report"
	"github.com/trezcool/reviewdesk/core/user"
	emailsvc "github.com/trezcool/reviewdesk/services/email"
	"github.com/trezcool/reviewdesk/services/spreadsheet"
	"github.com/trezcool/reviewdesk/storage/database"
	"github.com/trezcool/reviewdesk/testutil"
)

func setup(t *testing.T) *commandLine {
	t.Helper()
	conf := core.NewTestConfig()
	logger := &testutil.NopLogger{}
	require.NoError(t, core.ParseEmailTemplates(conf))

	// set up DB & repos
	ctx := context.Background()
	repos, err := database.Open(ctx, conf, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close(ctx) })

	// start CLI
	return newCommandLine(conf, logger, repos, emailsvc.NewConsoleServiceMock(conf, logger))
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_run(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"export", "-lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	type gooseCall struct {
		command string
		dir     string
		args    []string
	}
	var got gooseCall
	orig := gooseRunFunc
	gooseRunFunc = func(_ context.Context, command string, _ *sql.DB, dir string, args ...string) error {
		got = gooseCall{command: command, dir: dir, args: args}
		return nil
	}
	t.Cleanup(func() { gooseRunFunc = orig })

	t.Run("memory", func(t *testing.T) {
		tests := []cliTest{
			{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
			{name: "up", args: []string{"migrate", "up"}},
			{name: "down", args: []string{"migrate", "down"}, wantErrStr: `"down": not supported by the memory engine`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
			})
		}
	})

	t.Run("postgres", func(t *testing.T) {
		pg := *cli
		pg.repos = &database.Repositories{Engine: core.EnginePostgres}

		tests := []cliTest{
			{name: "up", args: []string{"migrate", "up"}, extra: gooseCall{command: "up", dir: "migrations", args: []string{}}},
			{name: "up-to", args: []string{"migrate", "up-to", "2"}, extra: gooseCall{command: "up-to", dir: "migrations", args: []string{"2"}}},
			{name: "status", args: []string{"migrate", "status"}, extra: gooseCall{command: "status", dir: "migrations", args: []string{}}},
			{
				name: "create", args: []string{"migrate", "create", "add_grades", "sql"},
				extra: gooseCall{command: "create", dir: "fs/migrations", args: []string{"add_grades", "sql"}},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got = gooseCall{}
				tt.check(t, pg.run(append([]string{"admin"}, tt.args...)))
				assert.Equal(t, tt.extra, got)
			})
		}
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	t.Run("usage", func(t *testing.T) {
		mockPassword(t, "")
		tests := []cliTest{
			{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
			{name: "no password", args: []string{"adduser", "-username", "ada"}, wantErr: errHelp},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
			})
		}
	})

	t.Run("create", func(t *testing.T) {
		mockPassword(t, "s3cret")
		err := cli.run([]string{"admin", "adduser", "-username", " Ada ", "-email", "ADA@test.cd", "-reviewer", "-sections", "b, a,b"})
		require.NoError(t, err)

		usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, "ada@test.cd")
		require.NoError(t, err)
		assert.Equal(t, "ada", usr.Username)
		assert.Equal(t, "ada", usr.Name)
		assert.Equal(t, []string{user.RoleReviewer}, usr.Roles)
		assert.Equal(t, []string{"B", "A"}, usr.Sections)
		assert.True(t, usr.IsActive)
		assert.NoError(t, usr.CheckPassword("s3cret"))
	})

	t.Run("update", func(t *testing.T) {
		mockPassword(t, "n3w")
		err := cli.run([]string{"admin", "adduser", "-username", "ada", "-admin"})
		require.NoError(t, err)

		usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, "ada")
		require.NoError(t, err)
		assert.Equal(t, "ada@test.cd", usr.Email)
		assert.Equal(t, []string{user.RoleAdmin}, usr.Roles)
		assert.Equal(t, []string{"B", "A"}, usr.Sections, "kept when -sections is omitted")
		assert.NoError(t, usr.CheckPassword("n3w"))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, cli.repos.Users, "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErrStr: "user not found"},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pwd := ""
			if e, ok := tt.extra.(extra); ok {
				pwd = e.pwd
			}
			mockPassword(t, pwd)

			err := cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)
			if err == nil {
				refreshed, err := cli.usrSvc.GetByID(ctx, usr.ID)
				require.NoError(t, err)
				assert.NoError(t, refreshed.CheckPassword(pwd))
			}
		})
	}
}

func Test_commandLine_import(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	roster, err := spreadsheet.XLSX{}.Encode(report.Sheet{
		Header: []string{"Batch", "Project", "Guide", "Roll No", "Name"},
		Rows: [][]string{
			{"A1", "Irrigation", "Dr. Rao", "1", "Ann"},
			{"", "", "", "2", "Ben"},
		},
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, os.WriteFile(path, roster, 0o600))

	tests := []cliTest{
		{name: "no file", args: []string{"import"}, wantErr: errHelp},
		{name: "missing file", args: []string{"import", "-file", filepath.Join(t.TempDir(), "nope.xlsx")}, wantErrStr: "opening roster"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErrStr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrStr)
				return
			}
			tt.check(t, err)
		})
	}

	t.Run("dry run", func(t *testing.T) {
		require.NoError(t, cli.run([]string{"admin", "import", "-file", path, "-dry-run"}))
		_, err := cli.repos.Teams.GetTeamByName(ctx, "Batch A1")
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("import", func(t *testing.T) {
		require.NoError(t, cli.run([]string{"admin", "import", "-file", path}))
		got, err := cli.repos.Teams.GetTeamByName(ctx, "Batch A1")
		require.NoError(t, err)
		assert.Equal(t, "Ann (1), Ben (2)", got.MembersRaw)
		assert.Equal(t, "Irrigation", got.ProjectTitle)
	})
}

func Test_commandLine_export(t *testing.T) {
	cli := setup(t)
	dir := t.TempDir()

	t.Run("no active cycle", func(t *testing.T) {
		err := cli.run([]string{"admin", "export", "-out", filepath.Join(dir, "x.xlsx")})
		assert.Equal(t, core.ErrNoActiveCycle, err)
	})

	c := testutil.CreateActiveCycle(t, cli.repos.Cycles, "Review 1")
	testutil.CreateColumn(t, cli.repos.Columns, c.ID, "Remarks", core.ScopeTeam, core.InputText, -1)
	testutil.CreateTeam(t, cli.repos.Teams, "Batch A1", "Ann (1)")
	testutil.CreateTeam(t, cli.repos.Teams, "Batch B1", "Cat (3)")

	t.Run("invalid", func(t *testing.T) {
		err := cli.run([]string{"admin", "export", "-kind", "grades", "-out", filepath.Join(dir, "x.xlsx")})
		assert.Equal(t, []string{"kind"}, testutil.FieldErrors(err))

		err = cli.run([]string{"admin", "export", "-mailto", "not an address"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing -mailto")
	})

	t.Run("written and mailed", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		out := filepath.Join(dir, "attendance.xlsx")
		err := cli.run([]string{"admin", "export", "-kind", "attendance", "-section", "b", "-out", out, "-mailto", "Ops <ops@test.cd>"})
		require.NoError(t, err)
		cli.wait()

		f, err := os.Open(out)
		require.NoError(t, err)
		defer f.Close()
		rows, err := spreadsheet.XLSX{}.ReadRows(f)
		require.NoError(t, err)
		assert.Equal(t, [][]string{
			{"Team", "Member", "Status"},
			{"Batch B1"},
			{"", "Cat (3)", "Present"},
		}, rows)

		msg, ok := emailsvc.LastSentMessage()
		require.True(t, ok)
		require.Len(t, msg.To, 1)
		assert.Equal(t, "ops@test.cd", msg.To[0].Address)
		assert.Equal(t, "report_export", msg.TemplateName)
		assert.Contains(t, msg.TextContent, `the attendance report for the review cycle "Review 1"`)
		require.Len(t, msg.Attachments, 1)
		assert.Equal(t, "attendance-report-Review_1.xlsx", msg.Attachments[0].Filename)
		assert.Equal(t, spreadsheet.XLSX{}.ContentType(), msg.Attachments[0].ContentType)
	})
}
