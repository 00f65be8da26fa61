package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/digiwizhq/digiwiz/core/enrollment"
	"github.com/digiwizhq/digiwiz/core/quiz"
	"github.com/digiwizhq/digiwiz/core/user"
)

// studentAPI covers the student portal: enrollments, quiz taking and
// progress.
type studentAPI struct {
	userSvc       *user.Service
	enrollmentSvc *enrollment.Service
	quizSvc       *quiz.Service
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, userSvc *user.Service, enrSvc *enrollment.Service, quizSvc *quiz.Service) {
	api := studentAPI{userSvc: userSvc, enrollmentSvc: enrSvc, quizSvc: quizSvc}

	sg := g.Group("/student", jwt, studentMiddleware())

	sg.GET("/courses", api.myCourses)
	sg.POST("/courses/:id/enroll", api.enroll)
	sg.DELETE("/courses/:id/enroll", api.unenroll)
	sg.GET("/courses/:id/progress", api.courseProgress)
	sg.GET("/courses/:id/quizzes", api.courseQuizzes)

	sg.GET("/quizzes/taken", api.takenQuizzes)
	sg.GET("/quizzes/:id/next", api.nextQuestion)
	sg.POST("/quizzes/:id/answer", api.submitAnswer)
	sg.GET("/quizzes/:id/results", api.quizResults)
}

func (api *studentAPI) myCourses(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	tcs, err := api.enrollmentSvc.MyCourses(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tcs)
}

func (api *studentAPI) enroll(ctx echo.Context) error {
	courseID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHTTPNotFound
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	tc, err := api.enrollmentSvc.Enroll(ctx.Request().Context(), ctxUsr, courseID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, tc)
}

func (api *studentAPI) unenroll(ctx echo.Context) error {
	courseID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHTTPNotFound
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	if err = api.enrollmentSvc.Unenroll(ctx.Request().Context(), ctxUsr, courseID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentAPI) courseProgress(ctx echo.Context) error {
	courseID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHTTPNotFound
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	progress, err := api.quizSvc.CourseProgress(ctx.Request().Context(), ctxUsr, courseID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"progress": progress})
}

func (api *studentAPI) courseQuizzes(ctx echo.Context) error {
	courseID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHTTPNotFound
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	quizzes, err := api.quizSvc.QueryByCourse(ctx.Request().Context(), ctxUsr, courseID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *studentAPI) takenQuizzes(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	summary, err := api.quizSvc.Taken(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *studentAPI) nextQuestion(ctx echo.Context) error {
	quizID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHTTPNotFound
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	session, err := api.quizSvc.NextQuestion(ctx.Request().Context(), ctxUsr, quizID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, session)
}

func (api *studentAPI) submitAnswer(ctx echo.Context) error {
	quizID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHTTPNotFound
	}

	data := new(answerRequest)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	done, err := api.quizSvc.SubmitAnswer(ctx.Request().Context(), ctxUsr, quizID, data.AnswerID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"done": done})
}

func (api *studentAPI) quizResults(ctx echo.Context) error {
	quizID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHTTPNotFound
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	tq, results, err := api.quizSvc.Results(ctx.Request().Context(), ctxUsr, quizID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"taken_quiz": tq, "results": results})
}

type answerRequest struct {
	AnswerID int `json:"answer_id"`
}
