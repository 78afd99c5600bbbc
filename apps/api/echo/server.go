package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/attendance"
	"github.com/lojf/nextgen/core/child"
	"github.com/lojf/nextgen/core/messaging"
	"github.com/lojf/nextgen/core/schedule"
	"github.com/lojf/nextgen/core/staff"
)

type (
	Options struct {
		Addr           string
		DisableReqLogs bool

		Conf   *core.Config
		Logger core.Logger

		StaffSvc      *staff.Service
		ChildSvc      *child.Service
		ScheduleSvc   *schedule.Service
		AttendanceSvc *attendance.Service
		MessagingSvc  *messaging.Service
		FileStore     core.FileStore
		MailSvc       core.EmailService

		// Shutdown gracefully shuts the app down when an integrity issue is caught.
		Shutdown func()
	}

	Server interface {
		http.Handler
		Start() error
		Stop(ctx context.Context) error
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
	initJWTConfig(conf)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Shutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerStaffAPI(v1, jwt, s.opts.StaffSvc, s.opts.Conf)
	registerChildAPI(v1, jwt, s.opts.ChildSvc, s.opts.FileStore)
	registerScheduleAPI(v1, jwt, s.opts.ScheduleSvc)
	registerAttendanceAPI(v1, jwt, s.opts.AttendanceSvc)
	registerMessagingAPI(v1, jwt, s.opts.MessagingSvc)
	registerReportAPI(v1, jwt, s.opts.AttendanceSvc, s.opts.FileStore, s.opts.MailSvc, s.opts.Conf)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Addr)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to NextGen API!")
}
