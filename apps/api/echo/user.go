package echoapi

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/user"
)

var (
	errUsrNotFoundInCtx  = errors.New("user object not found in echo.Context")
	noPermsToSetRolesMsg = "not enough rights to set these roles"
)

type userAPI struct {
	service *user.Service
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *user.Service) {
	api := userAPI{service: svc}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.userLogin)
	ug.POST("/register/student", api.userRegisterStudent)
	ug.POST("/register/teacher", api.userRegisterTeacher)
	ug.POST("/activate/:uid/:token", api.userActivate)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.userRefreshToken)
	ag.POST("", api.userCreate, adminMiddleware())
	ag.GET("", api.userQuery, adminMiddleware())
	ag.DELETE("", api.userDestroyMultiple, adminMiddleware())
	ag.GET("/roles", api.userQueryRoles, adminMiddleware())
	ag.PUT("/interests", api.userUpdateInterests, studentMiddleware())

	// detail endpoints
	dg := ag.Group("/:id", ctxUserOrAdminMiddleware(api.service))
	dg.GET("", api.userRetrieve)
	dg.PUT("", api.userUpdate)
	dg.DELETE("", api.userDestroy, adminMiddleware())
}

// Handlers

func (api *userAPI) userLogin(ctx echo.Context) error {
	data := new(loginRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), data.Username, data.Password, api.service)
	if err != nil {
		return err
	}
	token, err := generateToken(claims)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, loginResponse{Token: token})
}

func (api *userAPI) userRefreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.service)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, loginResponse{Token: token})
}

func (api *userAPI) userRegisterStudent(ctx echo.Context) error {
	return api.register(ctx, api.service.RegisterStudent)
}

func (api *userAPI) userRegisterTeacher(ctx echo.Context) error {
	return api.register(ctx, api.service.RegisterTeacher)
}

func (api *userAPI) register(ctx echo.Context, fn func(c context.Context, nu user.NewUser) (user.User, error)) error {
	data := new(user.NewUser)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	data.Roles = nil // roles are fixed by the endpoint
	if err := data.Validate(api.service); err != nil {
		return err
	}

	usr, err := fn(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userAPI) userActivate(ctx echo.Context) error {
	usr, err := api.service.Activate(ctx.Request().Context(), ctx.Param("uid"), ctx.Param("token"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userAPI) userCreate(ctx echo.Context) error {
	data := new(user.NewUser)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.service); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own max role
	ctxUsr, err := getContextUser(ctx, api.service)
	if err != nil {
		return err
	}
	if user.MaxRolePriority(data.Roles) > user.MaxRolePriority(ctxUsr.Roles) {
		return core.NewValidationError(nil, core.FieldError{Field: "roles", Error: noPermsToSetRolesMsg})
	}

	usr, err := api.service.Create(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userAPI) userQuery(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return err
	}
	filter.Clean()

	if filter.IsEmpty() {
		users, err := api.service.QueryAll(ctx.Request().Context())
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, users)
	}

	users, err := api.service.Filter(ctx.Request().Context(), *filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userAPI) userRetrieve(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errUsrNotFoundInCtx
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userAPI) userUpdate(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errUsrNotFoundInCtx
	}

	data := new(user.UpdateUser)
	if err := ctx.Bind(data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.service)
	if err != nil {
		return err
	}
	if !ctxUsr.IsAdmin() {
		// user cannot edit other users
		if usr.ID != ctxUsr.ID {
			return errHTTPForbidden
		}

		// `IsActive` and `Roles` can only be changed by admin
		// `Username` and `Email` can only be changed by admin for now
		if data.IsActive != nil || data.Roles != nil || data.Username != "" || data.Email != "" {
			return errHTTPForbidden
		}
	}

	if err := data.Validate(usr, api.service); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own max role
	if user.MaxRolePriority(data.Roles) > user.MaxRolePriority(ctxUsr.Roles) {
		return core.NewValidationError(nil, core.FieldError{Field: "roles", Error: noPermsToSetRolesMsg})
	}

	usr, err = api.service.Update(ctx.Request().Context(), usr.ID, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userAPI) userUpdateInterests(ctx echo.Context) error {
	data := new(interestsRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.service)
	if err != nil {
		return err
	}
	if err = api.service.UpdateInterests(ctx.Request().Context(), ctxUsr, data.Interests); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userAPI) userDestroy(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errUsrNotFoundInCtx
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.service)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID {
		return errHTTPForbidden
	}

	if err := api.service.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userAPI) userDestroyMultiple(ctx echo.Context) error {
	data := new(destroyMultipleRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if data.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.service)
	if err != nil {
		return err
	}
	sort.Ints(data.IDs)
	if i := sort.SearchInts(data.IDs, ctxUsr.ID); i < len(data.IDs) {
		if match := data.IDs[i]; ctxUsr.ID == match {
			return errHTTPForbidden
		}
	}

	if err := api.service.Delete(ctx.Request().Context(), data.IDs...); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userAPI) userQueryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func ctxUserOrAdminMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if id, err := strconv.Atoi(ctx.Param("id")); err == nil {
				ctxUsr, err := getContextUser(ctx, svc)
				if err != nil {
					return err
				}

				if id == ctxUsr.ID || ctxUsr.IsAdmin() {
					usr, err := svc.GetByID(ctx.Request().Context(), id)
					if err == nil {
						ctx.Set("object", usr)
						return next(ctx)
					} else if errors.Cause(err) != user.ErrNotFound {
						return err
					}
				}
			}
			return errHTTPNotFound
		}
	}
}

type (
	loginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	loginResponse struct {
		Token string `json:"token"`
	}

	destroyMultipleRequest struct {
		IDs []int `query:"id"`
	}

	interestsRequest struct {
		Interests []int `json:"interests"`
	}
)

func (lr *loginRequest) Validate() error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return core.Validate.Struct(lr)
}
