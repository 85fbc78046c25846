package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/dashboard"
	"github.com/trezcool/shule/core/user"
)

type dashboardApi struct {
	svc dashboard.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps *Deps) {
	api := dashboardApi{svc: deps.DashboardSvc}
	g.GET("/dashboard", api.stats, jwt, auth.require(user.ViewSchool))
}

type DashboardRequest struct {
	AcademicYear int    `query:"academic_year"`
	SmsFrom      string `query:"sms_from"`
}

func (api *dashboardApi) stats(ctx echo.Context) error {
	var query DashboardRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DashboardRequest")
	}
	from, err := parseTimeParam("sms_from", query.SmsFrom)
	if err != nil {
		return err
	}

	stats, err := api.svc.Stats(ctx.Request().Context(), dashboard.Filter{AcademicYear: query.AcademicYear, SmsFrom: from})
	if err != nil {
		return errors.Wrap(err, "computing dashboard stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
