package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/digiwizhq/digiwiz/core/course"
	"github.com/digiwizhq/digiwiz/core/user"
)

// staffAPI covers the admin portal: course moderation and subjects.
type staffAPI struct {
	userSvc   *user.Service
	courseSvc *course.Service
}

func registerStaffAPI(g *echo.Group, jwt echo.MiddlewareFunc, userSvc *user.Service, courseSvc *course.Service) {
	api := staffAPI{userSvc: userSvc, courseSvc: courseSvc}

	ag := g.Group("/staff", jwt, adminMiddleware())

	ag.GET("/courses/pending", api.pendingCourses)
	ag.GET("/courses/pending/count", api.pendingCourseCount)
	ag.POST("/courses/:id/approve", api.courseApprove)
	ag.POST("/courses/:id/reject", api.courseReject)

	ag.POST("/subjects", api.subjectCreate)
	ag.PUT("/subjects/:id", api.subjectUpdate)
}

func (api *staffAPI) pendingCourses(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	courses, err := api.courseSvc.QueryPending(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *staffAPI) pendingCourseCount(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	cnt, err := api.courseSvc.PendingCount(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"count": cnt})
}

func (api *staffAPI) courseApprove(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	if err = api.courseSvc.Approve(ctx.Request().Context(), ctxUsr, id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *staffAPI) courseReject(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	if err = api.courseSvc.Reject(ctx.Request().Context(), ctxUsr, id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *staffAPI) subjectCreate(ctx echo.Context) error {
	data := new(course.NewSubject)
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

	sub, err := api.courseSvc.CreateSubject(ctx.Request().Context(), ctxUsr, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *staffAPI) subjectUpdate(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	data := new(course.NewSubject)
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

	sub, err := api.courseSvc.UpdateSubject(ctx.Request().Context(), ctxUsr, id, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}
