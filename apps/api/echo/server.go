package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/profile"
	"github.com/trezcool/mahudhurio/core/user"
)

type (
	Options struct {
		Address        string
		Debug          bool
		TestMode       bool
		DisableReqLogs bool

		AppName            string
		SecretKey          string
		JWTExpirationDelta time.Duration

		UploadMaxBytes int64
		DaysLeft       int // default horizon of /attendance_risk
		DaysToExam     int // default horizon of /study_plan

		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		UserSvc    *user.Service
		ProfileSvc *profile.Service
	}

	Server struct {
		opts     Options
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(opts Options) *Server {
	s := &Server{
		opts:     opts,
		app:      echo.New(),
		auth:     newAuthenticator(opts.SecretKey, opts.AppName, opts.JWTExpirationDelta),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

// NewConfiguredServer builds the Options of a Server from the app configuration.
func NewConfiguredServer(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	usrSvc *user.Service,
	profileSvc *profile.Service,
) *Server {
	return NewServer(Options{
		Address:            conf.Server.Address,
		Debug:              conf.Debug,
		TestMode:           conf.TestMode,
		DisableReqLogs:     conf.Server.DisableReqLogs,
		AppName:            conf.AppName,
		SecretKey:          conf.SecretKey,
		JWTExpirationDelta: conf.JWTExpirationDelta,
		UploadMaxBytes:     conf.Attendance.UploadMaxBytes,
		DaysLeft:           conf.Attendance.DaysLeft,
		DaysToExam:         conf.Study.DaysToExam,
		Logger:             logger,
		Validate:           validate,
		Translator:         translator,
		UserSvc:            usrSvc,
		ProfileSvc:         profileSvc,
	})
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.opts.Debug || s.opts.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = s.opts.Debug

	s.app.GET("/", home)

	g := s.app.Group("")
	jwt := s.auth.middleware(false)
	ctxUser := ctxUserMiddleware(s.opts.UserSvc)

	registerUserAPI(g, s.auth, s.opts.UserSvc)
	registerProfileAPI(g, []echo.MiddlewareFunc{jwt, ctxUser}, s.opts)
}

// Start serves the API until it is stopped. Failures are reported on Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.opts.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal is notified when a handler fails with a core shutdown error.
func (s *Server) ShutdownSignal() chan os.Signal {
	return s.shutdown
}

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

func home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "message": "Welcome to Mahudhurio API!"})
}
