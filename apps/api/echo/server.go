package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gbytes "github.com/labstack/gommon/bytes"
	"github.com/labstack/gommon/log"
	"go.uber.org/dig"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/cycle"
	"github.com/trezcool/reviewdesk/core/importer"
	"github.com/trezcool/reviewdesk/core/report"
	"github.com/trezcool/reviewdesk/core/rubric"
	"github.com/trezcool/reviewdesk/core/scoring"
	"github.com/trezcool/reviewdesk/core/submission"
	"github.com/trezcool/reviewdesk/core/team"
	"github.com/trezcool/reviewdesk/core/user"
)

type (
	// Deps holds everything the API handlers need.
	Deps struct {
		dig.In

		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc       *user.Service
		CycleSvc      *cycle.Service
		RubricSvc     *rubric.Service
		TeamSvc       *team.Service
		Engine        *scoring.Engine
		ReportSvc     *report.Service
		ImportSvc     *importer.Service
		SubmissionSvc *submission.Service

		// UploadsDir is served under /uploads when set (local object storage).
		UploadsDir string `name:"uploadsDir" optional:"true"`
	}

	Server struct {
		app      *echo.Echo
		deps     Deps
		tokens   tokenizer
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil) // interface compliance check

func NewServer(deps Deps) *Server {
	s := &Server{
		app:      echo.New(),
		deps:     deps,
		tokens:   newTokenizer(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.BodyLimit(bodyLimit(conf.Uploads.MaxSize)))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	if s.deps.UploadsDir != "" {
		s.app.Static("/uploads", s.deps.UploadsDir)
	}

	v1 := s.app.Group("/v1")
	authed := v1.Group("", s.tokens.middleware(), activeUserMiddleware(s.deps.UserSvc))

	registerUserAPI(v1, authed, s.deps.UserSvc, s.tokens, s.deps.Validate, s.deps.Logger)
	registerCycleAPI(authed, s.deps.CycleSvc, s.deps.Validate)
	registerColumnAPI(authed, s.deps.RubricSvc, s.deps.Validate)
	registerTeamAPI(authed, s.deps.TeamSvc, s.deps.Engine, s.deps.Validate)
	registerScoringAPI(authed, s.deps.Engine, s.deps.TeamSvc)
	registerReportAPI(authed, s.deps.ReportSvc)
	registerImportAPI(authed, s.deps.ImportSvc)
	registerSubmissionAPI(authed, s.deps.SubmissionSvc, s.deps.TeamSvc, s.deps.Validate)
}

// bodyLimit leaves room for the multipart envelope around an upload.
func bodyLimit(maxUpload int64) string {
	const envelope = 1 << 20
	if maxUpload <= 0 {
		return "32M"
	}
	return gbytes.Format(maxUpload + envelope)
}

// Start blocks until the server stops. Errors other than a graceful close are sent on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
