package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/digiwizhq/digiwiz/core/course"
	"github.com/digiwizhq/digiwiz/core/enrollment"
	"github.com/digiwizhq/digiwiz/core/quiz"
	"github.com/digiwizhq/digiwiz/core/user"
	"github.com/digiwizhq/digiwiz/services/filestore"
)

// teacherAPI covers the teacher portal: course and quiz management and
// the enrollment request inbox.
type teacherAPI struct {
	userSvc       *user.Service
	courseSvc     *course.Service
	enrollmentSvc *enrollment.Service
	quizSvc       *quiz.Service
	fileStore     *filestore.LocalStore
}

func registerTeacherAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	userSvc *user.Service,
	courseSvc *course.Service,
	enrSvc *enrollment.Service,
	quizSvc *quiz.Service,
	fileStore *filestore.LocalStore,
) {
	api := teacherAPI{userSvc: userSvc, courseSvc: courseSvc, enrollmentSvc: enrSvc, quizSvc: quizSvc, fileStore: fileStore}

	tg := g.Group("/teacher", jwt, teacherMiddleware())

	tg.GET("/courses", api.myCourses)
	tg.POST("/courses", api.courseCreate)
	tg.PUT("/courses/:id", api.courseUpdate)
	tg.DELETE("/courses/:id", api.courseDestroy)
	tg.POST("/courses/:id/lessons", api.lessonCreate)
	tg.PUT("/lessons/:id", api.lessonUpdate)
	tg.DELETE("/lessons/:id", api.lessonDestroy)

	tg.GET("/files", api.myFiles)
	tg.POST("/courses/:id/files", api.fileUpload)
	tg.DELETE("/files/:id", api.fileDestroy)

	tg.GET("/requests", api.enrollmentRequests)
	tg.GET("/requests/count", api.enrollmentRequestCount)
	tg.POST("/requests/:id/accept", api.enrollmentAccept)
	tg.POST("/requests/:id/reject", api.enrollmentReject)

	tg.GET("/quizzes", api.myQuizzes)
	tg.POST("/courses/:id/quizzes", api.quizCreate)
	tg.GET("/quizzes/:id", api.quizRetrieve)
	tg.PUT("/quizzes/:id", api.quizUpdate)
	tg.DELETE("/quizzes/:id", api.quizDestroy)
	tg.GET("/quizzes/:id/attempts", api.quizAttempts)
	tg.POST("/quizzes/:id/questions", api.questionCreate)
	tg.PUT("/questions/:id", api.questionUpdate)
	tg.DELETE("/questions/:id", api.questionDestroy)
}

func paramID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return 0, errHTTPNotFound
	}
	return id, nil
}

// Courses

func (api *teacherAPI) myCourses(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	courses, err := api.courseSvc.QueryOwned(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *teacherAPI) courseCreate(ctx echo.Context) error {
	data := new(course.NewCourse)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	crs, err := api.courseSvc.Create(ctx.Request().Context(), ctxUsr, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *teacherAPI) courseUpdate(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	data := new(course.NewCourse)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	crs, err := api.courseSvc.Update(ctx.Request().Context(), ctxUsr, id, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *teacherAPI) courseDestroy(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	if err = api.courseSvc.Delete(ctx.Request().Context(), ctxUsr, id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Lessons

func (api *teacherAPI) lessonCreate(ctx echo.Context) error {
	courseID, err := paramID(ctx)
	if err != nil {
		return err
	}
	data := new(course.NewLesson)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	lsn, err := api.courseSvc.AddLesson(ctx.Request().Context(), ctxUsr, courseID, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, lsn)
}

func (api *teacherAPI) lessonUpdate(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	data := new(course.NewLesson)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	lsn, err := api.courseSvc.UpdateLesson(ctx.Request().Context(), ctxUsr, id, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *teacherAPI) lessonDestroy(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	if err = api.courseSvc.DeleteLesson(ctx.Request().Context(), ctxUsr, id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Files

func (api *teacherAPI) myFiles(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	files, err := api.courseSvc.QueryOwnedFiles(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, files)
}

func (api *teacherAPI) fileUpload(ctx echo.Context) error {
	courseID, err := paramID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	storedName, err := api.fileStore.Save(fh.Filename, src)
	if err != nil {
		return err
	}
	f, err := api.courseSvc.AddFile(ctx.Request().Context(), ctxUsr, courseID, fh.Filename, storedName)
	if err != nil {
		_ = api.fileStore.Remove(storedName) // no metadata row, drop the orphan
		return err
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *teacherAPI) fileDestroy(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	f, err := api.courseSvc.DeleteFile(ctx.Request().Context(), ctxUsr, id)
	if err != nil {
		return err
	}
	if err = api.fileStore.Remove(f.StoredName); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Enrollment requests

func (api *teacherAPI) enrollmentRequests(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	tcs, err := api.enrollmentSvc.Requests(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tcs)
}

func (api *teacherAPI) enrollmentRequestCount(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	cnt, err := api.enrollmentSvc.PendingCount(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"count": cnt})
}

func (api *teacherAPI) enrollmentAccept(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	tc, err := api.enrollmentSvc.Accept(ctx.Request().Context(), ctxUsr, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tc)
}

func (api *teacherAPI) enrollmentReject(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	if err = api.enrollmentSvc.Reject(ctx.Request().Context(), ctxUsr, id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Quizzes

func (api *teacherAPI) myQuizzes(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	quizzes, err := api.quizSvc.QueryOwned(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *teacherAPI) quizCreate(ctx echo.Context) error {
	courseID, err := paramID(ctx)
	if err != nil {
		return err
	}
	data := new(quiz.NewQuiz)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	qz, err := api.quizSvc.Create(ctx.Request().Context(), ctxUsr, courseID, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, qz)
}

func (api *teacherAPI) quizRetrieve(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	qz, questions, err := api.quizSvc.Get(ctx.Request().Context(), ctxUsr, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"quiz": qz, "questions": questions})
}

func (api *teacherAPI) quizUpdate(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	data := new(quiz.NewQuiz)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	qz, err := api.quizSvc.Update(ctx.Request().Context(), ctxUsr, id, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, qz)
}

func (api *teacherAPI) quizDestroy(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	if err = api.quizSvc.Delete(ctx.Request().Context(), ctxUsr, id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *teacherAPI) quizAttempts(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	attempts, err := api.quizSvc.Attempts(ctx.Request().Context(), ctxUsr, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, attempts)
}

// Questions

func (api *teacherAPI) questionCreate(ctx echo.Context) error {
	quizID, err := paramID(ctx)
	if err != nil {
		return err
	}
	data := new(quiz.NewQuestion)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	question, err := api.quizSvc.AddQuestion(ctx.Request().Context(), ctxUsr, quizID, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, question)
}

func (api *teacherAPI) questionUpdate(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	data := new(quiz.NewQuestion)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	question, err := api.quizSvc.UpdateQuestion(ctx.Request().Context(), ctxUsr, id, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, question)
}

func (api *teacherAPI) questionDestroy(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	if err = api.quizSvc.DeleteQuestion(ctx.Request().Context(), ctxUsr, id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
