package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/thesis"
	"github.com/thesispool/thesispool/core/user"
	"github.com/thesispool/thesispool/services/export"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	icsContentType  = "text/calendar; charset=utf-8"
)

type exportApi struct {
	conf   *core.Config
	svc    *thesis.Service
	usrSvc *user.Service
}

// FeedResponse points calendar clients, which cannot send a bearer token, to a signed feed URL.
type FeedResponse struct {
	URL string `json:"url"`
}

func registerExportAPI(g *echo.Group, jwt echo.MiddlewareFunc, conf *core.Config, svc *thesis.Service, usrSvc *user.Service) {
	api := exportApi{
		conf:   conf,
		svc:    svc,
		usrSvc: usrSvc,
	}

	eg := g.Group("/exports")
	eg.GET("/theses.xlsx", api.overview, jwt)
	eg.GET("/deadlines.ics", api.deadlines, jwt)
	eg.GET("/feed", api.feedURL, jwt)
	eg.GET("/feed/:uid/:token/deadlines.ics", api.feed)
}

// visibleTheses are the theses of the overview: all for secretaries, the own ones otherwise.
func (api *exportApi) visibleTheses(ctx echo.Context, username string, isSecretary bool) ([]thesis.Thesis, error) {
	var filter thesis.QueryFilter
	if !isSecretary {
		filter.SupervisorID = username
	}
	theses, err := api.svc.Query(ctx.Request().Context(), filter, nil)
	return theses, errors.Wrap(err, "querying theses")
}

func (api *exportApi) claimedTheses(ctx echo.Context) ([]thesis.Thesis, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context claims")
	}
	return api.visibleTheses(ctx, claims.Username(), claims.IsSecretary)
}

func (api *exportApi) overview(ctx echo.Context) error {
	theses, err := api.claimedTheses(ctx)
	if err != nil {
		return err
	}
	data, err := export.Overview(theses)
	if err != nil {
		return errors.Wrap(err, "exporting overview")
	}
	return attachment(ctx, "theses.xlsx", xlsxContentType, data)
}

func (api *exportApi) deadlines(ctx echo.Context) error {
	theses, err := api.claimedTheses(ctx)
	if err != nil {
		return err
	}
	return attachment(ctx, "deadlines.ics", icsContentType, []byte(export.Deadlines(theses, api.conf.AppName)))
}

func (api *exportApi) feedURL(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	usr, err := api.usrSvc.CheckActive(ctx.Request().Context(), claims.Username())
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errUnauthorized
		}
		return errors.Wrap(err, "checking user")
	}
	uid, token, err := api.usrSvc.FeedToken(usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, FeedResponse{URL: fmt.Sprintf("/v1/exports/feed/%s/%s/deadlines.ics", uid, token)})
}

// feed serves the deadline calendar to the holder of a signed feed URL.
func (api *exportApi) feed(ctx echo.Context) error {
	usr, err := api.usrSvc.FeedUser(ctx.Request().Context(), ctx.Param("uid"), ctx.Param("token"))
	if err != nil {
		return errors.Wrap(err, "checking feed token")
	}
	theses, err := api.visibleTheses(ctx, usr.Username, usr.IsSecretary)
	if err != nil {
		return err
	}
	return ctx.Blob(http.StatusOK, icsContentType, []byte(export.Deadlines(theses, api.conf.AppName)))
}
