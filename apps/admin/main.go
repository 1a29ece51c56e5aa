package main

import (
	"context"
	"fmt"
	"os"

	"github.com/trezcool/reviewdesk/core"
	emailsvc "github.com/trezcool/reviewdesk/services/email"
	logsvc "github.com/trezcool/reviewdesk/services/logger"
	"github.com/trezcool/reviewdesk/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.New(logsvc.PrefixAdmin, conf)

	if err := core.ParseEmailTemplates(conf); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	// set up DB
	ctx := context.Background()
	repos, err := database.Open(ctx, conf, logsvc.New(logsvc.PrefixDB, conf))
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// start CLI
	cli := newCommandLine(conf, logger, repos, emailsvc.New(conf, logger))
	err = cli.run(os.Args)
	cli.wait()
	if cerr := repos.Close(ctx); cerr != nil {
		logger.Error(fmt.Sprintf("closing database: %v", cerr), cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
