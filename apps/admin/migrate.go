package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/reviewdesk/core"
	appfs "github.com/trezcool/reviewdesk/fs"
)

const migrationsDir = "migrations"

var gooseRunFunc = goose.RunContext // mockable

// migrate runs a goose command against postgres. Other engines have no SQL schema: "up" ensures their indexes.
func (cli *commandLine) migrate(args []string) error {
	ctx := context.Background()
	command, arguments := args[0], args[1:]

	if cli.repos.Engine != core.EnginePostgres {
		if command != "up" {
			return errors.Errorf("%q: not supported by the %s engine", command, cli.repos.Engine)
		}
		return cli.repos.Migrate(ctx)
	}

	dir := migrationsDir
	if command == "create" {
		// new migration files are written to disk, next to the embedded ones
		dir = "fs/" + migrationsDir
	} else {
		goose.SetBaseFS(appfs.FS)
		defer goose.SetBaseFS(nil)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting dialect")
	}
	return gooseRunFunc(ctx, command, cli.repos.SQLDB(), dir, arguments...)
}
