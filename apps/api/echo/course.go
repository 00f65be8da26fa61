package echoapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/digiwizhq/digiwiz/core/course"
	"github.com/digiwizhq/digiwiz/core/user"
	"github.com/digiwizhq/digiwiz/services/filestore"
)

// courseAPI serves the public catalog: browsing approved courses and
// their detail pages. Management endpoints live in the teacher API.
type courseAPI struct {
	userSvc   *user.Service
	service   *course.Service
	fileStore *filestore.LocalStore
}

func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	userSvc *user.Service,
	svc *course.Service,
	fileStore *filestore.LocalStore,
) {
	api := courseAPI{userSvc: userSvc, service: svc, fileStore: fileStore}

	cg := g.Group("/courses", jwt)
	cg.GET("", api.courseBrowse)
	cg.GET("/subjects", api.subjectQuery)
	cg.GET("/files/:id", api.fileDownload)
	cg.GET("/:id", api.courseRetrieve)
}

func (api *courseAPI) courseBrowse(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return err
	}

	courses, err := api.service.Browse(ctx.Request().Context(), *filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseAPI) subjectQuery(ctx echo.Context) error {
	subjects, err := api.service.QuerySubjects(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *courseAPI) courseRetrieve(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHTTPNotFound
	}
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	detail, err := api.service.GetDetail(ctx.Request().Context(), ctxUsr, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *courseAPI) fileDownload(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHTTPNotFound
	}

	f, err := api.service.GetFile(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	src, err := api.fileStore.Open(f.StoredName)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", f.Name))
	return ctx.Stream(http.StatusOK, echo.MIMEOctetStream, src)
}
