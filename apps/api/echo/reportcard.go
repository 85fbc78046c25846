package echoapi

import (
	"bytes"
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/reportcard"
	"github.com/trezcool/shule/core/user"
)

type reportCardApi struct {
	baseApi
	svc reportcard.Service
}

func registerReportCardAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps *Deps) {
	api := reportCardApi{
		baseApi: baseApi{auth: auth, validate: deps.Validate},
		svc:     deps.ReportCardSvc,
	}
	generate := auth.require(user.GenerateReports)

	rg := g.Group("/reportcards", jwt)
	rg.GET("", api.query, auth.require(user.ViewSchool))
	rg.POST("/generate/student/:id", api.generateForStudent, generate)
	rg.POST("/generate/grade/:id", api.generateForGrade, generate)
	rg.POST("/download/grade/:id", api.bulkDownload, generate)
	rg.POST("/email/grade/:id", api.emailToParents, generate)

	dg := rg.Group("/:id", objectMiddleware(api.svc.Get))
	dg.GET("", api.retrieve, auth.require(user.ViewSchool))
	dg.GET("/pdf", api.pdf, auth.require(user.ViewSchool))
	// the homeroom remarks are further restricted by the service
	dg.PUT("/remarks", api.setRemarks, auth.require(user.RecordScores))
}

func (api *reportCardApi) query(ctx echo.Context) error {
	filter := new(reportcard.Filter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []reportcard.ReportCard{})
	}

	cards, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying report cards")
	}
	if cards == nil {
		cards = []reportcard.ReportCard{}
	}
	return ctx.JSON(http.StatusOK, cards)
}

func (api *reportCardApi) generateForStudent(ctx echo.Context) error {
	period, err := api.bindPeriod(ctx)
	if err != nil {
		return err
	}
	by, err := api.auth.user(ctx)
	if err != nil {
		return err
	}

	card, err := api.svc.GenerateForStudent(ctx.Request().Context(), ctx.Param("id"), period, by)
	if err != nil {
		return errors.Wrap(err, "generating report card")
	}
	return ctx.JSON(http.StatusCreated, card)
}

type gradeJobFunc func(ctx context.Context, gradeID string, period reportcard.Period, by user.User) (string, error)

// enqueueGradeJob starts a background job about a whole grade and answers with its id.
func (api *reportCardApi) enqueueGradeJob(ctx echo.Context, name string, fn gradeJobFunc) error {
	period, err := api.bindPeriod(ctx)
	if err != nil {
		return err
	}
	by, err := api.auth.user(ctx)
	if err != nil {
		return err
	}

	id, err := fn(ctx.Request().Context(), ctx.Param("id"), period, by)
	if err != nil {
		return errors.Wrapf(err, "enqueuing %s", name)
	}
	return jobAccepted(ctx, id)
}

func (api *reportCardApi) generateForGrade(ctx echo.Context) error {
	return api.enqueueGradeJob(ctx, "report cards generation", api.svc.GenerateForGrade)
}

func (api *reportCardApi) bulkDownload(ctx echo.Context) error {
	return api.enqueueGradeJob(ctx, "report cards download", api.svc.BulkDownload)
}

func (api *reportCardApi) emailToParents(ctx echo.Context) error {
	return api.enqueueGradeJob(ctx, "report cards emails", api.svc.EmailToParents)
}

func (api *reportCardApi) retrieve(ctx echo.Context) error {
	card, err := contextObject[reportcard.ReportCard](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, card)
}

func (api *reportCardApi) pdf(ctx echo.Context) error {
	card, err := contextObject[reportcard.ReportCard](ctx)
	if err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	file, err := api.svc.RenderPDF(ctx.Request().Context(), card.ID, buf)
	if err != nil {
		return errors.Wrap(err, "rendering report card")
	}
	return attachment(ctx, file, buf)
}

func (api *reportCardApi) setRemarks(ctx echo.Context) error {
	card, err := contextObject[reportcard.ReportCard](ctx)
	if err != nil {
		return err
	}

	var data reportcard.Remarks
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Remarks")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	by, err := api.auth.user(ctx)
	if err != nil {
		return err
	}

	card, err = api.svc.SetRemarks(ctx.Request().Context(), card.ID, by, data)
	if err != nil {
		return errors.Wrap(err, "setting remarks")
	}
	return ctx.JSON(http.StatusOK, card)
}
