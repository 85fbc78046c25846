package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/sms"
	"github.com/trezcool/shule/core/user"
)

type smsApi struct {
	baseApi
	svc sms.Service
}

func registerSmsAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps *Deps) {
	api := smsApi{
		baseApi: baseApi{auth: auth, validate: deps.Validate},
		svc:     deps.SmsSvc,
	}

	sg := g.Group("/sms", jwt, auth.require(user.SendSms))
	sg.POST("/send", api.send)
	sg.GET("/logs", api.queryLogs)
}

type (
	// SendSmsRequest is either a results notification or a custom message.
	SendSmsRequest struct {
		Type         sms.Kind `json:"type" validate:"required,oneof=results custom"`
		GradeID      string   `json:"grade_id"`
		StudentIDs   []string `json:"student_ids"`
		AcademicYear int      `json:"academic_year"`
		Term         int      `json:"term"`
		Message      string   `json:"message"`
	}

	SmsLogsRequest struct {
		StudentIDs []string `query:"student_id"`
		Status     string   `query:"status"`
		Kind       string   `query:"kind"`
		SentFrom   string   `query:"sent_from"`
		SentTo     string   `query:"sent_to"`
		core.Pagination
	}
)

func (api *smsApi) send(ctx echo.Context) error {
	var data SendSmsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendSmsRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	by, err := api.auth.user(ctx)
	if err != nil {
		return err
	}

	var report sms.SendReport
	switch data.Type {
	case sms.Results:
		sr := sms.SendResults{
			GradeID:      data.GradeID,
			StudentIDs:   data.StudentIDs,
			AcademicYear: data.AcademicYear,
			Term:         data.Term,
		}
		if err = sr.Validate(api.validate); err != nil {
			return err
		}
		report, err = api.svc.SendResults(ctx.Request().Context(), sr, by)
	case sms.Custom:
		sc := sms.SendCustom{StudentIDs: data.StudentIDs, Message: data.Message}
		if err = sc.Validate(api.validate); err != nil {
			return err
		}
		report, err = api.svc.SendCustom(ctx.Request().Context(), sc, by)
	}
	if err != nil {
		return errors.Wrapf(err, "sending %s sms", data.Type)
	}
	if report.Logs == nil {
		report.Logs = []sms.Log{}
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *smsApi) queryLogs(ctx echo.Context) error {
	var query SmsLogsRequest
	if err := ctx.Bind(&query); err != nil {
		return ctx.JSON(http.StatusOK, []sms.Log{})
	}

	filter := &sms.LogFilter{
		StudentIDs: query.StudentIDs,
		Status:     sms.Status(query.Status),
		Kind:       sms.Kind(query.Kind),
		Pagination: query.Pagination,
	}
	var err error
	if filter.SentFrom, err = parseTimeParam("sent_from", query.SentFrom); err != nil {
		return err
	}
	if filter.SentTo, err = parseTimeParam("sent_to", query.SentTo); err != nil {
		return err
	}

	logs, err := api.svc.ListLogs(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing sms logs")
	}
	if logs == nil {
		logs = []sms.Log{}
	}
	return ctx.JSON(http.StatusOK, logs)
}
