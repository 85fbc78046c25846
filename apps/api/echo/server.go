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
	"github.com/labstack/gommon/log"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/dashboard"
	"github.com/trezcool/shule/core/enrolment"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/reportcard"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/sms"
	"github.com/trezcool/shule/core/user"
)

type (
	// Deps are the services the API is built on.
	Deps struct {
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc       user.Service
		SchoolSvc     school.Service
		EnrolmentSvc  enrolment.Service
		ExamSvc       exam.Service
		ReportCardSvc reportcard.Service
		SmsSvc        sms.Service
		DashboardSvc  dashboard.Service
		Jobs          core.JobQueue
	}

	Server struct {
		conf         *core.Config
		logger       core.Logger
		deps         *Deps
		app          *echo.Echo
		auth         *authenticator
		serverErrors chan error
		shutdown     chan os.Signal
	}
)

func NewServer(conf *core.Config, logger core.Logger, deps *Deps) *Server {
	s := &Server{
		conf:         conf,
		logger:       logger,
		deps:         deps,
		app:          echo.New(),
		auth:         newAuthenticator(conf, deps.UserSvc),
		serverErrors: make(chan error, 1),
		shutdown:     make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.deps.Translator, s.auth, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	jwt := s.auth.middleware()

	registerUserAPI(g, jwt, s.auth, s.deps)
	registerSchoolAPI(g, jwt, s.auth, s.deps)
	registerExamAPI(g, jwt, s.auth, s.deps)
	registerReportCardAPI(g, jwt, s.auth, s.deps)
	registerSmsAPI(g, jwt, s.auth, s.deps)
	registerJobAPI(g, jwt, s.auth, s.deps)
	registerDashboardAPI(g, jwt, s.auth, s.deps)
}

// Start listens and serves. Errors are reported on Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.serverErrors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.serverErrors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
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
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
