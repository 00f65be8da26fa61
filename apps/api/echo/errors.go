package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/digiwizhq/digiwiz/core"
	"github.com/digiwizhq/digiwiz/core/course"
	"github.com/digiwizhq/digiwiz/core/enrollment"
	"github.com/digiwizhq/digiwiz/core/quiz"
	"github.com/digiwizhq/digiwiz/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHTTPForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHTTPNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errTokenSigningFailed   = errors.New("failed to sign token")
)

// trapDomainErr maps domain sentinel errors to HTTP errors; any other
// error passes through unchanged and ends up as a 500.
func trapDomainErr(err error) error {
	switch errors.Cause(err) {
	case nil:
		return nil
	case core.ErrPermissionDenied:
		return errHTTPForbidden
	case user.ErrNotFound, course.ErrNotFound, course.ErrSubjectNotFound, course.ErrLessonNotFound,
		course.ErrFileNotFound, enrollment.ErrNotFound, quiz.ErrNotFound, quiz.ErrQuestionNotFound:
		return errHTTPNotFound
	case quiz.ErrAlreadyTaken, quiz.ErrDuplicateAnswer:
		return echo.NewHTTPError(http.StatusConflict, errors.Cause(err).Error())
	case quiz.ErrNoQuestions, user.ErrNotActive:
		return echo.NewHTTPError(http.StatusBadRequest, errors.Cause(err).Error())
	case user.ErrInvalidToken, user.ErrTokenExpired:
		return echo.NewHTTPError(http.StatusBadRequest, errors.Cause(err).Error())
	}
	return err
}

func appHTTPErrorHandler(err error, c echo.Context) {
	var code int
	var message interface{}

	err = trapDomainErr(err)

	switch err := err.(type) {
	case *echo.HTTPError:
		if err == middleware.ErrJWTMissing {
			code = http.StatusUnauthorized
			message = err.Message
			break
		}
		if err.Internal != nil {
			if herr, ok := err.Internal.(*echo.HTTPError); ok {
				err = herr
			}
		}
		code = err.Code
		message = err.Message
	case validator.ValidationErrors:
		fldErrs := make(map[string]string)
		for _, vErr := range err {
			fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
		}
		code = http.StatusBadRequest
		message = fldErrs
	case *core.ValidationError:
		if err.Fields != nil {
			fldErrs := make(map[string]string)
			for _, fErr := range err.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			message = fldErrs
		} else {
			message = err.Error()
		}
		code = http.StatusBadRequest
	default: // any other error is a server error
		code = http.StatusInternalServerError
		message = http.StatusText(http.StatusInternalServerError)
	}

	if c.Echo().Debug {
		message = err.Error()
	} else if m, ok := message.(string); ok {
		message = echo.Map{"error": m}
	}

	// Send response
	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead { // Issue #608
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, message)
		}
		if err != nil {
			c.Echo().Logger.Error(err)
		}
	}
}
