package echoapi

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core/thesis"
)

var objectContextKey = "object"

// flagMiddleware lets through users holding the flag picked by has.
func flagMiddleware(has func(Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if has(claims) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func secretaryMiddleware() echo.MiddlewareFunc {
	return flagMiddleware(func(c Claims) bool { return c.IsSecretary })
}

func excomMiddleware() echo.MiddlewareFunc {
	return flagMiddleware(func(c Claims) bool { return c.IsExcom })
}

// thesisMiddleware loads the thesis named by the `key` param into the context.
// With ownerOnly, theses of other supervisors are hidden from anyone but secretaries.
func thesisMiddleware(svc *thesis.Service, ownerOnly bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			key, err := uuid.Parse(ctx.Param("key"))
			if err != nil {
				return errHttpNotFound
			}

			th, err := svc.Get(ctx.Request().Context(), key)
			if err != nil {
				if errors.Cause(err) == thesis.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "getting thesis")
			}
			if ownerOnly && !claims.IsSecretary && th.Supervisor.ID != claims.Username() {
				return errHttpNotFound
			}

			ctx.Set(objectContextKey, th)
			return next(ctx)
		}
	}
}

func getContextThesis(ctx echo.Context) (thesis.Thesis, error) {
	th, ok := ctx.Get(objectContextKey).(thesis.Thesis)
	if !ok {
		return thesis.Thesis{}, errors.Wrap(errThesisNotFoundInCtx, "retrieving object from context")
	}
	return th, nil
}
