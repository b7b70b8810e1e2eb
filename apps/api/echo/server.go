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

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/student"
	"github.com/thesispool/thesispool/core/thesis"
	"github.com/thesispool/thesispool/core/user"
	"github.com/thesispool/thesispool/services/pdf"
)

type (
	// PDFGenerator fills the official forms of a thesis.
	PDFGenerator interface {
		Generate(ctx context.Context, th thesis.Thesis, form pdf.Form) (pdf.Document, error)
	}

	Deps struct {
		UserSvc   *user.Service
		ThesisSvc *thesis.Service
		Students  *student.Manager
		PDF       PDFGenerator
	}

	Server struct {
		conf       *core.Config
		logger     core.Logger
		deps       *Deps
		validate   *validator.Validate
		translator ut.Translator
		app        *echo.Echo
		errors     chan error
		shutdown   chan os.Signal
	}
)

func NewServer(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	deps *Deps,
) *Server {
	s := &Server{
		conf:       conf,
		logger:     logger,
		deps:       deps,
		validate:   validate,
		translator: translator,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.translator, s.signalShutdown)
	s.app.Debug = s.conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig(s.conf))

	registerAuthAPI(v1, jwt, s.conf, s.deps.UserSvc, s.validate)
	registerPeopleAPI(v1, jwt, s.deps.ThesisSvc, s.deps.Students, s.validate)
	registerThesisAPI(v1, jwt, s.deps.ThesisSvc, s.deps.PDF, s.validate)
	registerApprovalAPI(v1, jwt, s.deps.ThesisSvc, s.validate)
	registerExportAPI(v1, jwt, s.conf, s.deps.ThesisSvc, s.deps.UserSvc)
}

// Start listens until the server is shut down; listener failures are reported on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+"!")
}
