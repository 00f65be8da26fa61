package main

import (
	"log"
	"os"
	"path/filepath"

	echoapi "github.com/digiwizhq/digiwiz/apps/api/echo"
	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/course"
	"github.com/digiwizhq/digiwiz/core/enrollment"
	"github.com/digiwizhq/digiwiz/core/quiz"
	"github.com/digiwizhq/digiwiz/core/user"
	emailsvc "github.com/digiwizhq/digiwiz/services/email"
	"github.com/digiwizhq/digiwiz/services/filestore"
	logsvc "github.com/digiwizhq/digiwiz/services/logger"
	"github.com/digiwizhq/digiwiz/storage/database"
	sqlxrepos "github.com/digiwizhq/digiwiz/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, core.Conf.AppName+" ", log.LstdFlags|log.Lshortfile)

	var logger core.Logger
	if core.Conf.Debug || core.Conf.RollbarToken == "" {
		logger = logsvc.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, core.Conf)
	}

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	fileStore, err := filestore.NewLocalStore(filepath.Join(core.Conf.WorkDir, "media"))
	errAndDie(err)

	userRepo := sqlxrepos.NewUserRepository(db)
	courseRepo := sqlxrepos.NewCourseRepository(db)
	enrollmentRepo := sqlxrepos.NewEnrollmentRepository(db)
	quizRepo := sqlxrepos.NewQuizRepository(db)

	userSvc := user.NewService(db, userRepo, mailSvc, logger)
	courseSvc := course.NewService(db, courseRepo, logger)
	enrollmentSvc := enrollment.NewService(db, enrollmentRepo, courseRepo)
	quizSvc := quiz.NewService(db, quizRepo, courseRepo, enrollmentRepo, logger)

	// start API server
	app := echoapi.NewServer(
		&echoapi.Options{
			Address:       core.Conf.Server.Host + ":" + core.Conf.Server.Port,
			UserSvc:       userSvc,
			CourseSvc:     courseSvc,
			EnrollmentSvc: enrollmentSvc,
			QuizSvc:       quizSvc,
			FileStore:     fileStore,
		},
	)
	app.Start()
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
