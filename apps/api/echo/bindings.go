package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/reportcard"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	JobResponse struct {
		JobID     string `json:"job_id"`
		StatusURL string `json:"status_url"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)

func jobAccepted(ctx echo.Context, id string) error {
	return ctx.JSON(http.StatusAccepted, JobResponse{JobID: id, StatusURL: "/api/jobs/" + id})
}

// bindPeriod reads the academic year & term from the query string or the JSON body.
func (api *baseApi) bindPeriod(ctx echo.Context) (reportcard.Period, error) {
	var period reportcard.Period
	if err := ctx.Bind(&period); err != nil {
		return period, core.NewValidationError(errors.New("invalid academic_year or term"))
	}
	return period, period.Validate(api.validate)
}

// attachment sends the rendered file as a download.
func attachment(ctx echo.Context, file reportcard.File, buf *bytes.Buffer) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Filename))
	return ctx.Blob(http.StatusOK, file.ContentType, buf.Bytes())
}

// parseTimeParam accepts RFC 3339 timestamps and plain dates. Empty values give the zero time.
func parseTimeParam(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: name, Error: "invalid date"})
}
