package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/dashboard"
)

const (
	countStudentsQuery = `
		SELECT COUNT(*) FROM student WHERE is_active AND NOT is_archived`

	countSubjectsQuery = `
		SELECT COUNT(*) FROM subject WHERE is_active`

	studentsPerGradeQuery = `
		SELECT g.id AS grade_id,
		       trim(g.name || ' ' || g.stream) AS grade_name,
		       COUNT(s.id) AS students
		FROM grade g
		LEFT JOIN student s ON s.grade_id = g.id AND s.is_active AND NOT s.is_archived
		WHERE g.is_active
		GROUP BY g.id, g.name, g.stream, g.level
		ORDER BY g.level, g.name, g.stream`

	scoresPerTermQuery = `
		SELECT academic_year, term, COUNT(*) AS entries, COUNT(DISTINCT student_id) AS students
		FROM exam_score
		WHERE ($1 = 0 OR academic_year = $1)
		GROUP BY academic_year, term
		ORDER BY academic_year DESC, term DESC`

	smsPerStatusQuery = `
		SELECT status, COUNT(*) AS count
		FROM sms_log
		WHERE ($1::timestamptz IS NULL OR sent_at >= $1)
		GROUP BY status
		ORDER BY status`
)

type (
	gradeCountRow struct {
		GradeID   string `db:"grade_id"`
		GradeName string `db:"grade_name"`
		Students  int    `db:"students"`
	}

	termCountRow struct {
		AcademicYear int `db:"academic_year"`
		Term         int `db:"term"`
		Entries      int `db:"entries"`
		Students     int `db:"students"`
	}

	smsCountRow struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
)

type dashboardRepository struct {
	db *sqlx.DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil)

func NewDashboardRepository(db *sqlx.DB) dashboard.Repository {
	return &dashboardRepository{db: db}
}

func (repo *dashboardRepository) Stats(ctx context.Context, filter dashboard.Filter) (dashboard.Stats, error) {
	var stats dashboard.Stats

	if err := repo.db.GetContext(ctx, &stats.Students, countStudentsQuery); err != nil {
		return dashboard.Stats{}, errors.Wrap(err, "counting students")
	}
	if err := repo.db.GetContext(ctx, &stats.Subjects, countSubjectsQuery); err != nil {
		return dashboard.Stats{}, errors.Wrap(err, "counting subjects")
	}

	var grades []gradeCountRow
	if err := repo.db.SelectContext(ctx, &grades, studentsPerGradeQuery); err != nil {
		return dashboard.Stats{}, errors.Wrap(err, "counting students per grade")
	}
	stats.Grades = make([]dashboard.GradeCount, 0, len(grades))
	for _, r := range grades {
		stats.Grades = append(stats.Grades, dashboard.GradeCount(r))
	}

	var terms []termCountRow
	if err := repo.db.SelectContext(ctx, &terms, scoresPerTermQuery, filter.AcademicYear); err != nil {
		return dashboard.Stats{}, errors.Wrap(err, "counting score entries")
	}
	stats.ScoreEntries = make([]dashboard.TermCount, 0, len(terms))
	for _, r := range terms {
		stats.ScoreEntries = append(stats.ScoreEntries, dashboard.TermCount(r))
	}

	var smsFrom interface{}
	if !filter.SmsFrom.IsZero() {
		smsFrom = filter.SmsFrom.UTC()
	}
	var statuses []smsCountRow
	if err := repo.db.SelectContext(ctx, &statuses, smsPerStatusQuery, smsFrom); err != nil {
		return dashboard.Stats{}, errors.Wrap(err, "counting sms")
	}
	stats.Sms = make([]dashboard.SmsCount, 0, len(statuses))
	for _, r := range statuses {
		stats.Sms = append(stats.Sms, dashboard.SmsCount(r))
	}

	return stats, nil
}
