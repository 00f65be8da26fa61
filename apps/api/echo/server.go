package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/course"
	"github.com/digiwizhq/digiwiz/core/enrollment"
	"github.com/digiwizhq/digiwiz/core/quiz"
	"github.com/digiwizhq/digiwiz/core/user"
	"github.com/digiwizhq/digiwiz/services/filestore"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		UserSvc       *user.Service
		CourseSvc     *course.Service
		EnrollmentSvc *enrollment.Service
		QuizSvc       *quiz.Service
		FileStore     *filestore.LocalStore
	}

	Server interface {
		http.Handler
		Start()
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
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = appHTTPErrorHandler
	s.app.Debug = core.Conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, s.opts.UserSvc)
	registerCourseAPI(v1, jwt, s.opts.UserSvc, s.opts.CourseSvc, s.opts.FileStore)
	registerStudentAPI(v1, jwt, s.opts.UserSvc, s.opts.EnrollmentSvc, s.opts.QuizSvc)
	registerTeacherAPI(v1, jwt, s.opts.UserSvc, s.opts.CourseSvc, s.opts.EnrollmentSvc, s.opts.QuizSvc, s.opts.FileStore)
	registerStaffAPI(v1, jwt, s.opts.UserSvc, s.opts.CourseSvc)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to DigiWiz API!")
}
