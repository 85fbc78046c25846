package dashboard

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

type (
	GradeCount struct {
		GradeID   string `json:"grade_id"`
		GradeName string `json:"grade_name"`
		Students  int    `json:"students"`
	}

	TermCount struct {
		AcademicYear int `json:"academic_year"`
		Term         int `json:"term"`
		Entries      int `json:"entries"`
		Students     int `json:"students"`
	}

	SmsCount struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}

	Stats struct {
		Students     int          `json:"students"` // active & not archived
		Subjects     int          `json:"subjects"` // active
		Grades       []GradeCount `json:"grades"`
		ScoreEntries []TermCount  `json:"score_entries"`
		Sms          []SmsCount   `json:"sms"`
		GeneratedAt  time.Time    `json:"generated_at"`
	}

	// Filter narrows the score entries to an academic year and the SMS counts to the ones sent since SmsFrom.
	Filter struct {
		AcademicYear int       `query:"academic_year"`
		SmsFrom      time.Time `query:"sms_from"`
	}

	// Repository is a read model: it only aggregates, never writes.
	Repository interface {
		Stats(ctx context.Context, filter Filter) (Stats, error)
	}

	Service interface {
		Stats(ctx context.Context, filter Filter) (Stats, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Stats(ctx context.Context, filter Filter) (Stats, error) {
	stats, err := svc.repo.Stats(ctx, filter)
	if err != nil {
		return Stats{}, errors.Wrap(err, "computing dashboard statistics")
	}
	if stats.Grades == nil {
		stats.Grades = []GradeCount{}
	}
	if stats.ScoreEntries == nil {
		stats.ScoreEntries = []TermCount{}
	}
	if stats.Sms == nil {
		stats.Sms = []SmsCount{}
	}
	stats.GeneratedAt = core.NowFunc()
	return stats, nil
}
