package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/user"
)

var (
	errUnauthorized    = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errRefreshExpired  = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound    = echo.NewHTTPError(http.StatusNotFound, "not found")
	errNothingHappened = echo.NewHTTPError(http.StatusConflict, "nothing happened")

	errThesisNotFoundInCtx = errors.New("thesis object not found in echo.Context")

	// HTTP status of each domain error kind
	kindStatus = map[core.ErrorKind]int{
		core.KindNotFound:       http.StatusNotFound,
		core.KindConflict:       http.StatusConflict,
		core.KindDenied:         http.StatusForbidden,
		core.KindBadCredentials: http.StatusBadRequest,
	}
)

// errorResponse classifies err into the status and body sent to the client.
// ok is false for server errors, which the caller reports.
func errorResponse(err error, translator ut.Translator) (code int, body interface{}, ok bool) {
	cause := errors.Cause(err)
	if status, known := kindStatus[core.KindOf(cause)]; known {
		return status, cause.Error(), true
	}

	switch e := cause.(type) {
	case *echo.HTTPError:
		if e == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, e.Message, true
		}
		if herr, isHTTP := e.Internal.(*echo.HTTPError); isHTTP {
			e = herr
		}
		return e.Code, e.Message, true
	case validator.ValidationErrors:
		fields := make(map[string]string, len(e))
		for _, fe := range e {
			fields[fe.Field()] = fe.Translate(translator)
		}
		return http.StatusBadRequest, fields, true
	case *core.ValidationError:
		if fields := e.FieldMap(); fields != nil {
			return http.StatusBadRequest, fields, true
		}
		return http.StatusBadRequest, e.Error(), true
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), false
}

// newAppHTTPErrorHandler returns the echo.HTTPErrorHandler of the API.
// Server errors are logged with the requesting user; a core shutdown error also calls signalShutdown.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, body, ok := errorResponse(err, translator)
		if !ok {
			logger.Error(fmt.Sprintf("%s %s: %v", ctx.Request().Method, ctx.Path(), err), err, requestUser(ctx))
			if core.IsShutdown(err) {
				signalShutdown()
			}
			if ctx.Echo().Debug {
				body = err.Error()
			}
		}
		if msg, isText := body.(string); isText {
			body = echo.Map{"error": msg}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, body)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

// requestUser returns the user of the request's token claims, if any.
func requestUser(ctx echo.Context) user.User {
	var usr user.User
	if claims, err := getContextClaims(ctx); err == nil {
		usr.Username = claims.Username()
		usr.FirstName = claims.FirstName
		usr.LastName = claims.LastName
	}
	return usr
}
