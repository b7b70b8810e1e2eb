package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core/student"
	"github.com/thesispool/thesispool/core/thesis"
)

type peopleApi struct {
	svc      *thesis.Service
	students *student.Manager
	validate *validator.Validate
}

func registerPeopleAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *thesis.Service,
	students *student.Manager,
	validate *validator.Validate,
) {
	api := peopleApi{
		svc:      svc,
		students: students,
		validate: validate,
	}

	sg := g.Group("/students", jwt)
	sg.GET("/:id", api.retrieveStudent)
	sg.POST("", api.createStudent)
	sg.DELETE("/:id", api.destroyStudent, secretaryMiddleware())

	pg := g.Group("/supervisors", jwt, secretaryMiddleware())
	pg.GET("", api.querySupervisors)
	pg.DELETE("/:id", api.destroySupervisor)

	ag := g.Group("/assessors", jwt)
	ag.GET("", api.queryAssessors)
	ag.DELETE("/:id", api.destroyAssessor, secretaryMiddleware())
}

// StudentResponse carries the student along with the suggested thesis period.
type StudentResponse struct {
	Student   student.Student `json:"student"`
	BeginDate string          `json:"begin_date"`
	DueDate   string          `json:"due_date"`
}

func intParam(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

func (api *peopleApi) retrieveStudent(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	st, err := api.students.Find(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding student")
	}

	begin, due := thesis.Period(nowFunc(), st)
	return ctx.JSON(http.StatusOK, StudentResponse{
		Student:   st,
		BeginDate: begin.Format(thesis.DateLayout),
		DueDate:   due.Format(thesis.DateLayout),
	})
}

func (api *peopleApi) createStudent(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	st, err := api.students.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *peopleApi) destroyStudent(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteStudent(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *peopleApi) querySupervisors(ctx echo.Context) error {
	sups := api.svc.Supervisors(ctx.Request().Context())
	if sups == nil {
		sups = []thesis.Supervisor{}
	}
	return ctx.JSON(http.StatusOK, sups)
}

func (api *peopleApi) destroySupervisor(ctx echo.Context) error {
	if err := api.svc.DeleteSupervisor(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting supervisor")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *peopleApi) queryAssessors(ctx echo.Context) error {
	assessors, err := api.svc.Assessors(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying assessors")
	}
	if assessors == nil {
		assessors = []thesis.Assessor{}
	}
	return ctx.JSON(http.StatusOK, assessors)
}

func (api *peopleApi) destroyAssessor(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteAssessor(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting assessor")
	}
	return ctx.NoContent(http.StatusNoContent)
}
