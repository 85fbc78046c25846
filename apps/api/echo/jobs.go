package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

type jobApi struct {
	jobs core.JobQueue
}

func registerJobAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps *Deps) {
	api := jobApi{jobs: deps.Jobs}

	jg := g.Group("/jobs", jwt, auth.require(user.ViewJobs))
	jg.GET("/:id", api.status)
	jg.GET("/:id/result", api.result)
}

func (api *jobApi) status(ctx echo.Context) error {
	info, err := api.jobs.Status(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting job status")
	}
	return ctx.JSON(http.StatusOK, info)
}

func (api *jobApi) result(ctx echo.Context) error {
	res, err := api.jobs.Result(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting job result")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", res.Filename))
	return ctx.Blob(http.StatusOK, res.ContentType, res.Content)
}
