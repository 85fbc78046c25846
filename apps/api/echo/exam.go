package echoapi

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/reportcard"
	"github.com/trezcool/shule/core/user"
)

type examApi struct {
	baseApi
	svc     exam.Service
	exports reportcard.Service
}

func registerExamAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps *Deps) {
	api := examApi{
		baseApi: baseApi{auth: auth, validate: deps.Validate},
		svc:     deps.ExamSvc,
		exports: deps.ReportCardSvc,
	}
	view := auth.require(user.ViewSchool)

	eg := g.Group("/exams", jwt)

	tg := eg.Group("/types")
	tg.GET("", api.queryExamTypes, view)
	tg.POST("", api.createExamType, auth.require(user.ManageExamTypes))
	tdg := tg.Group("/:id", objectMiddleware(api.svc.GetExamType))
	tdg.GET("", api.retrieveExamType, view)
	tdg.PUT("", api.updateExamType, auth.require(user.ManageExamTypes))

	eg.GET("/scores", api.queryScores, view)
	eg.POST("/scores", api.recordScores, auth.require(user.RecordScores))

	eg.GET("/student/:id/subject-summary", api.studentSubjectSummary, view)
	eg.GET("/student/:id/term-summary", api.studentTermSummary, view)

	eg.GET("/grade/:id/term-summary", api.gradeTermSummary, view)
	eg.GET("/grade/:id/subject-summary", api.gradeSubjectSummary, view)
	eg.GET("/grade/:id/gradebook", api.gradebook, view)
	eg.GET("/grade/:id/mark-schedule", api.markSchedule, view)
	eg.GET("/grade/:id/analysis", api.analysis, view)
}

type SubjectSummaryRequest struct {
	SubjectID string `query:"subject_id" validate:"required,uuid"`
}

// Exam types

func (api *examApi) createExamType(ctx echo.Context) error {
	var data exam.NewExamType
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExamType")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	et, err := api.svc.CreateExamType(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating exam type")
	}
	return ctx.JSON(http.StatusCreated, et)
}

func (api *examApi) queryExamTypes(ctx echo.Context) error {
	filter := new(exam.ExamTypeFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []exam.ExamType{})
	}

	types, err := api.svc.QueryExamTypes(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying exam types")
	}
	if types == nil {
		types = []exam.ExamType{}
	}
	return ctx.JSON(http.StatusOK, types)
}

func (api *examApi) retrieveExamType(ctx echo.Context) error {
	et, err := contextObject[exam.ExamType](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, et)
}

func (api *examApi) updateExamType(ctx echo.Context) error {
	et, err := contextObject[exam.ExamType](ctx)
	if err != nil {
		return err
	}

	var data exam.UpdateExamType
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateExamType")
	}
	if err = data.Validate(ctx.Request().Context(), et, api.validate, api.svc); err != nil {
		return err
	}

	et, err = api.svc.UpdateExamType(ctx.Request().Context(), et, data)
	if err != nil {
		return errors.Wrap(err, "updating exam type")
	}
	return ctx.JSON(http.StatusOK, et)
}

// Scores

func (api *examApi) recordScores(ctx echo.Context) error {
	var data exam.RecordScores
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordScores")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	by, err := api.auth.user(ctx)
	if err != nil {
		return err
	}
	scores, err := api.svc.RecordScores(ctx.Request().Context(), data, by)
	if err != nil {
		return errors.Wrap(err, "recording scores")
	}
	return ctx.JSON(http.StatusCreated, scores)
}

func (api *examApi) queryScores(ctx echo.Context) error {
	filter := new(exam.ScoreFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []exam.ExamScore{})
	}

	scores, err := api.svc.ListScores(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing scores")
	}
	if scores == nil {
		scores = []exam.ExamScore{}
	}
	return ctx.JSON(http.StatusOK, scores)
}

// Summaries

func (api *examApi) studentSubjectSummary(ctx echo.Context) error {
	period, err := api.bindPeriod(ctx)
	if err != nil {
		return err
	}
	var query SubjectSummaryRequest
	if err = ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to SubjectSummaryRequest")
	}
	if err = api.validate.Struct(query); err != nil {
		return err
	}

	summary, err := api.svc.StudentSubjectSummary(
		ctx.Request().Context(), ctx.Param("id"), query.SubjectID, period.AcademicYear, period.Term,
	)
	if err != nil {
		return errors.Wrap(err, "building student subject summary")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *examApi) studentTermSummary(ctx echo.Context) error {
	period, err := api.bindPeriod(ctx)
	if err != nil {
		return err
	}

	summary, err := api.svc.StudentTermSummary(ctx.Request().Context(), ctx.Param("id"), period.AcademicYear, period.Term)
	if err != nil {
		return errors.Wrap(err, "building student term summary")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *examApi) gradeTermSummary(ctx echo.Context) error {
	period, err := api.bindPeriod(ctx)
	if err != nil {
		return err
	}

	summary, err := api.svc.GradeTermSummary(ctx.Request().Context(), ctx.Param("id"), period.AcademicYear, period.Term)
	if err != nil {
		return errors.Wrap(err, "building grade term summary")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *examApi) gradeSubjectSummary(ctx echo.Context) error {
	period, err := api.bindPeriod(ctx)
	if err != nil {
		return err
	}

	summary, err := api.svc.GradeSubjectSummary(ctx.Request().Context(), ctx.Param("id"), period.AcademicYear, period.Term)
	if err != nil {
		return errors.Wrap(err, "building grade subject summary")
	}
	return ctx.JSON(http.StatusOK, summary)
}

// Exports

type exportFunc func(ctx echo.Context, gradeID string, period reportcard.Period, buf *bytes.Buffer) (reportcard.File, error)

func (api *examApi) export(ctx echo.Context, name string, fn exportFunc) error {
	period, err := api.bindPeriod(ctx)
	if err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	file, err := fn(ctx, ctx.Param("id"), period, buf)
	if err != nil {
		return errors.Wrapf(err, "exporting %s", name)
	}
	return attachment(ctx, file, buf)
}

func (api *examApi) gradebook(ctx echo.Context) error {
	return api.export(ctx, "gradebook", func(ctx echo.Context, gradeID string, period reportcard.Period, buf *bytes.Buffer) (reportcard.File, error) {
		return api.exports.GradebookCSV(ctx.Request().Context(), gradeID, period, buf)
	})
}

func (api *examApi) markSchedule(ctx echo.Context) error {
	return api.export(ctx, "mark schedule", func(ctx echo.Context, gradeID string, period reportcard.Period, buf *bytes.Buffer) (reportcard.File, error) {
		return api.exports.MarkSchedulePDF(ctx.Request().Context(), gradeID, period, buf)
	})
}

func (api *examApi) analysis(ctx echo.Context) error {
	return api.export(ctx, "exam analysis", func(ctx echo.Context, gradeID string, period reportcard.Period, buf *bytes.Buffer) (reportcard.File, error) {
		return api.exports.ExamAnalysisPDF(ctx.Request().Context(), gradeID, period, buf)
	})
}
