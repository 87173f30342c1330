// Package echoapi is the HTTP transport: an echo server exposing the
// domain services under /v1.
package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/activity"
	"github.com/mwalimu/darasa/core/analytics"
	"github.com/mwalimu/darasa/core/assignment"
	"github.com/mwalimu/darasa/core/authz"
	"github.com/mwalimu/darasa/core/classroom"
	"github.com/mwalimu/darasa/core/notification"
	"github.com/mwalimu/darasa/core/user"
	"github.com/mwalimu/darasa/storage/files"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		DisableReqLogs bool

		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc         user.Service
		ClassroomSvc    classroom.Service
		AssignmentSvc   assignment.Service
		NotificationSvc notification.Service
		ActivitySvc     activity.Service
		AnalyticsSvc    analytics.Service
		FileStore       *files.LocalStore

		SignalShutdown func()
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	s.app.Use(countRequests)
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")

	// authed routes verify the token then re-check the account's active flag
	jwt := ConfigureAuth(conf)
	active := requireActiveUser(s.opts.UserSvc)
	auth := func(next echo.HandlerFunc) echo.HandlerFunc { return jwt(active(next)) }

	checker := authz.NewChecker(s.opts.ClassroomSvc, s.opts.AssignmentSvc)

	registerUserAPI(v1, auth, s.opts.UserSvc, s.opts.Validate)
	registerClassroomAPI(v1, auth, s.opts.ClassroomSvc, s.opts.UserSvc, s.opts.AnalyticsSvc, checker, s.opts.Validate)
	registerAssignmentAPI(v1, auth, s.opts.AssignmentSvc, s.opts.ClassroomSvc, s.opts.UserSvc, checker, s.opts.FileStore, s.opts.Validate)
	registerNotificationAPI(v1, auth, s.opts.NotificationSvc, s.opts.UserSvc)
	registerActivityAPI(v1, auth, s.opts.ActivitySvc, s.opts.UserSvc, s.opts.Validate)
	registerAnalyticsAPI(v1, auth, s.opts.AnalyticsSvc, s.opts.UserSvc)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Conf.Server.Addr())
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Darasa API!")
}
