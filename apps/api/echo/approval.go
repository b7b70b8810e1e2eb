package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core/thesis"
)

type approvalApi struct {
	svc      *thesis.Service
	validate *validator.Validate
}

// registerApprovalAPI registers the examination committee endpoints.
func registerApprovalAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *thesis.Service, validate *validator.Validate) {
	api := approvalApi{
		svc:      svc,
		validate: validate,
	}

	ag := g.Group("/approvals", jwt, excomMiddleware())
	ag.GET("", api.query)

	dg := ag.Group("/:key", thesisMiddleware(svc, false /* ownerOnly */))
	dg.POST("/approve", api.approve)
	dg.POST("/reject", api.reject)
}

func (api *approvalApi) query(ctx echo.Context) error {
	theses, err := api.svc.PendingApprovals(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pending approvals")
	}
	if theses == nil {
		theses = []thesis.Thesis{}
	}
	return ctx.JSON(http.StatusOK, theses)
}

func (api *approvalApi) approve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	th, err := getContextThesis(ctx)
	if err != nil {
		return err
	}

	th, ok, err := api.svc.Approve(ctx.Request().Context(), claims.Actor(), th)
	return transitioned(ctx, th, ok, errors.Wrap(err, "approving thesis"))
}

func (api *approvalApi) reject(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	th, err := getContextThesis(ctx)
	if err != nil {
		return err
	}

	var data thesis.RejectThesis
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectThesis")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	th, ok, err := api.svc.Reject(ctx.Request().Context(), claims.Actor(), th, data)
	return transitioned(ctx, th, ok, errors.Wrap(err, "rejecting thesis"))
}
