package sms

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

type Status string

const (
	Sent   Status = "sent"
	Failed Status = "failed"
)

type Kind string

const (
	Results Kind = "results"
	Custom  Kind = "custom"
)

// Log records one delivery attempt to a parent.
type Log struct {
	ID        string                 `json:"id"`
	StudentID string                 `json:"student_id"`
	Phone     string                 `json:"phone"`
	Message   string                 `json:"message"`
	Kind      Kind                   `json:"kind"`
	Status    Status                 `json:"status"`
	Error     string                 `json:"error,omitempty"`
	Provider  string                 `json:"provider"`
	MessageID string                 `json:"message_id,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	SentByID  string                 `json:"sent_by_id"`
	SentAt    time.Time              `json:"sent_at"`
}

type LogFilter struct {
	StudentIDs []string  `query:"student_id"`
	Status     Status    `query:"status"`
	Kind       Kind      `query:"kind"`
	SentFrom   time.Time `query:"sent_from"`
	SentTo     time.Time `query:"sent_to"`
	core.Pagination
}

func (f *LogFilter) Match(l Log) bool {
	if f == nil {
		return true
	}
	if len(f.StudentIDs) > 0 && !core.StringInSlice(l.StudentID, f.StudentIDs) {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.Kind != "" && l.Kind != f.Kind {
		return false
	}
	if !f.SentFrom.IsZero() && l.SentAt.Before(f.SentFrom) {
		return false
	}
	if !f.SentTo.IsZero() && l.SentAt.After(f.SentTo) {
		return false
	}
	return true
}

// SendResults sends the term results of students, either a whole grade or a list of students.
type SendResults struct {
	GradeID      string   `json:"grade_id" validate:"required_without=StudentIDs,omitempty,uuid"`
	StudentIDs   []string `json:"student_ids" validate:"omitempty,dive,uuid"`
	AcademicYear int      `json:"academic_year" validate:"required,gte=2000,lte=2100"`
	Term         int      `json:"term" validate:"required,term"`
}

func (sr *SendResults) Validate(validate *validator.Validate) error {
	return validate.Struct(sr)
}

type SendCustom struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,uuid"`
	Message    string   `json:"message" validate:"required,notblank,max=160"`
}

func (sc *SendCustom) Validate(validate *validator.Validate) error {
	sc.Message = core.CleanString(sc.Message)
	return validate.Struct(sc)
}

type SendReport struct {
	Sent    int   `json:"sent"`
	Failed  int   `json:"failed"`
	Skipped int   `json:"skipped"` // students without parent phone
	Logs    []Log `json:"logs"`
}
