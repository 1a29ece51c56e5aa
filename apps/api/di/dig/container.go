package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/reviewdesk/apps/api/echo"
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
	logsvc "github.com/trezcool/reviewdesk/services/logger"
	"github.com/trezcool/reviewdesk/services/objectstore"
	"github.com/trezcool/reviewdesk/services/spreadsheet"
	"github.com/trezcool/reviewdesk/storage/database"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.New(logsvc.PrefixAPI, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.New(logsvc.PrefixDB, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *database.Repositories {
	setUp := func() (*database.Repositories, error) {
		ctx := context.Background()
		repos, err := database.Open(ctx, conf, loggerParam.Logger)
		if err != nil {
			return nil, err
		}
		if err = repos.Migrate(ctx); err != nil {
			_ = repos.Close(ctx)
			return nil, err
		}
		return repos, nil
	}

	repos, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return repos
}

func newObjectStore(conf *core.Config, logger core.Logger) core.ObjectStore {
	store, err := objectstore.New(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up object storage: %v", err), err)
	}
	return store
}

// newUploadsDir is the directory served under /uploads; empty unless files are stored locally.
func newUploadsDir(store core.ObjectStore) string {
	if local, ok := store.(*objectstore.LocalStore); ok {
		return local.Dir()
	}
	return ""
}

func newValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	rubric.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func newUserService(repos *database.Repositories, mailSvc core.EmailService, conf *core.Config) *user.Service {
	return user.NewService(repos.Users, mailSvc, conf)
}

func newCycleService(repos *database.Repositories, logger core.Logger) *cycle.Service {
	return cycle.NewService(repos.Cycles, repos.Teams, repos.Columns, logger)
}

func newRubricService(repos *database.Repositories, conf *core.Config, logger core.Logger) *rubric.Service {
	return rubric.NewService(repos.Columns, repos.Cycles, repos.Teams, conf, logger)
}

func newTeamService(repos *database.Repositories) *team.Service {
	return team.NewService(repos.Teams)
}

func newScoringEngine(repos *database.Repositories, conf *core.Config) *scoring.Engine {
	return scoring.NewEngine(repos.Teams, repos.Cycles, repos.Columns, conf)
}

func newReportService(repos *database.Repositories) *report.Service {
	return report.NewService(repos.Cycles, repos.Columns, repos.Teams, repos.Submissions, spreadsheet.XLSX{})
}

func newImportService(teams *team.Service, logger core.Logger) *importer.Service {
	return importer.NewService(spreadsheet.XLSX{}, teams, logger)
}

func newSubmissionService(repos *database.Repositories, store core.ObjectStore, conf *core.Config, logger core.Logger) *submission.Service {
	return submission.NewService(repos.Submissions, repos.Teams, store, conf, logger)
}

// New returns a new dependency injection dig.Container
func New(visualize bool) *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(emailsvc.New))
	must(c.Provide(newObjectStore))
	must(c.Provide(newUploadsDir, dig.Name("uploadsDir")))
	must(c.Provide(newValidator))

	must(c.Provide(newUserService))
	must(c.Provide(newCycleService))
	must(c.Provide(newRubricService))
	must(c.Provide(newTeamService))
	must(c.Provide(newScoringEngine))
	must(c.Provide(newReportService))
	must(c.Provide(newImportService))
	must(c.Provide(newSubmissionService))
	must(c.Provide(echoapi.NewServer))

	if visualize {
		_ = dig.Visualize(c, os.Stdout)
	}
	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
