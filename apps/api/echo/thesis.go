package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core/thesis"
	"github.com/thesispool/thesispool/services/pdf"
)

type thesisApi struct {
	svc      *thesis.Service
	pdf      PDFGenerator
	validate *validator.Validate
}

func registerThesisAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *thesis.Service,
	gen PDFGenerator,
	validate *validator.Validate,
) {
	api := thesisApi{
		svc:      svc,
		pdf:      gen,
		validate: validate,
	}

	tg := g.Group("/theses", jwt)
	tg.GET("", api.query)
	tg.POST("", api.create)

	// detail endpoints
	dg := tg.Group("/:key", thesisMiddleware(svc, true /* ownerOnly */))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/prolong", api.prolong)
	dg.POST("/hand-in", api.handIn)
	dg.POST("/grade", api.grade)
	dg.GET("/pdf/:form", api.download)
}

type thesisQuery struct {
	SupervisorID string          `query:"supervisor"`
	Statuses     []thesis.Status `query:"status"`
}

// query lists all theses to secretaries and the own ones to everybody else.
func (api *thesisApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var params thesisQuery
	if err = ctx.Bind(&params); err != nil {
		return errors.Wrap(err, "binding to thesisQuery")
	}
	filter := thesis.QueryFilter{SupervisorID: params.SupervisorID, Statuses: params.Statuses}
	if !claims.IsSecretary {
		filter.SupervisorID = claims.Username()
	}

	theses, err := api.svc.Query(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying theses")
	}
	if theses == nil {
		theses = []thesis.Thesis{}
	}
	return ctx.JSON(http.StatusOK, theses)
}

func (api *thesisApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data thesis.NewThesis
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewThesis")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	th, err := api.svc.Create(ctx.Request().Context(), claims.Actor(), claims.IsSecretary, data)
	if err != nil {
		return errors.Wrap(err, "creating thesis")
	}
	return ctx.JSON(http.StatusCreated, th)
}

func (api *thesisApi) retrieve(ctx echo.Context) error {
	th, err := getContextThesis(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, th)
}

func (api *thesisApi) update(ctx echo.Context) error {
	th, err := getContextThesis(ctx)
	if err != nil {
		return err
	}

	var data thesis.UpdateThesis
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateThesis")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	th, err = api.svc.Update(ctx.Request().Context(), th, data)
	if err != nil {
		return errors.Wrap(err, "updating thesis")
	}
	return ctx.JSON(http.StatusOK, th)
}

func (api *thesisApi) destroy(ctx echo.Context) error {
	th, err := getContextThesis(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), th); err != nil {
		return errors.Wrap(err, "deleting thesis")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// transitioned answers a lifecycle transition: refused ones did not change anything.
func transitioned(ctx echo.Context, th thesis.Thesis, ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return errNothingHappened
	}
	return ctx.JSON(http.StatusOK, th)
}

func (api *thesisApi) prolong(ctx echo.Context) error {
	th, err := getContextThesis(ctx)
	if err != nil {
		return err
	}

	var data thesis.ProlongThesis
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProlongThesis")
	}
	if err = data.Validate(api.validate, th); err != nil {
		return err
	}

	th, ok, err := api.svc.Prolong(ctx.Request().Context(), th, data)
	return transitioned(ctx, th, ok, errors.Wrap(err, "prolonging thesis"))
}

func (api *thesisApi) handIn(ctx echo.Context) error {
	th, err := getContextThesis(ctx)
	if err != nil {
		return err
	}

	var data thesis.HandInThesis
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to HandInThesis")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	th, ok, err := api.svc.HandIn(ctx.Request().Context(), th, data)
	return transitioned(ctx, th, ok, errors.Wrap(err, "handing in thesis"))
}

func (api *thesisApi) grade(ctx echo.Context) error {
	th, err := getContextThesis(ctx)
	if err != nil {
		return err
	}

	var data thesis.GradeThesis
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeThesis")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	th, ok, err := api.svc.Grade(ctx.Request().Context(), th, data)
	return transitioned(ctx, th, ok, errors.Wrap(err, "grading thesis"))
}

func (api *thesisApi) download(ctx echo.Context) error {
	th, err := getContextThesis(ctx)
	if err != nil {
		return err
	}
	form, ok := pdf.ParseForm(ctx.Param("form"))
	if !ok {
		return errHttpNotFound
	}

	doc, err := api.pdf.Generate(ctx.Request().Context(), th, form)
	if err != nil {
		return errors.Wrap(err, "generating pdf")
	}
	return attachment(ctx, doc.Filename, "application/pdf", doc.Content)
}

func attachment(ctx echo.Context, filename, contentType string, content []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, contentType, content)
}
