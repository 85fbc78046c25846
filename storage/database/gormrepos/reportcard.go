package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/reportcard"
)

type reportCardRepository struct {
	*Store
}

var _ reportcard.Repository = (*reportCardRepository)(nil)

func NewReportCardRepository(store *Store) reportcard.Repository {
	return &reportCardRepository{Store: store}
}

// UpsertReportCard refreshes the snapshot of (student, year, term), keeping the id & remarks of an existing card.
func (repo *reportCardRepository) UpsertReportCard(ctx context.Context, rc reportcard.ReportCard) (reportcard.ReportCard, error) {
	err := repo.WithinTx(ctx, func(ctx context.Context) error {
		var existing reportCardRow
		err := repo.conn(ctx).
			Where("student_id = ? AND academic_year = ? AND term = ?", rc.StudentID, rc.AcademicYear, rc.Term).
			Limit(1).Find(&existing).Error
		if err != nil {
			return errors.Wrap(err, "getting report card")
		}

		if existing.ID != "" {
			rc.ID = existing.ID
			rc.TeacherRemarks = existing.TeacherRemarks.String
			rc.HomeroomRemarks = existing.HomeroomRemarks.String
			row := newReportCardRow(rc)
			return errors.Wrap(repo.conn(ctx).Model(&row).Select("*").Updates(&row).Error, "updating report card")
		}
		rc.ID = uuid.New().String()
		row := newReportCardRow(rc)
		return errors.Wrap(repo.conn(ctx).Create(&row).Error, "inserting report card")
	})
	if err != nil {
		return reportcard.ReportCard{}, err
	}
	return rc, nil
}

func (repo *reportCardRepository) GetReportCard(ctx context.Context, id string) (reportcard.ReportCard, error) {
	if !validID(id) {
		return reportcard.ReportCard{}, reportcard.ErrNotFound
	}
	var row reportCardRow
	if err := repo.conn(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return reportcard.ReportCard{}, notFound(err, reportcard.ErrNotFound, "getting report card")
	}
	return row.reportCard(), nil
}

func (repo *reportCardRepository) QueryReportCards(ctx context.Context, filter *reportcard.Filter) ([]reportcard.ReportCard, error) {
	q := repo.conn(ctx).Model(&reportCardRow{})
	if filter != nil {
		if len(filter.StudentIDs) > 0 {
			q = q.Where("student_id IN ?", filter.StudentIDs)
		}
		if filter.GradeID != "" {
			q = q.Where("grade_id = ?", filter.GradeID)
		}
		if filter.AcademicYear != 0 {
			q = q.Where("academic_year = ?", filter.AcademicYear)
		}
		if filter.Term != 0 {
			q = q.Where("term = ?", filter.Term)
		}
	}

	var rows []reportCardRow
	if err := q.Order("generated_at DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying report cards")
	}
	cards := make([]reportcard.ReportCard, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, r.reportCard())
	}
	return cards, nil
}

func (repo *reportCardRepository) UpdateReportCard(ctx context.Context, rc reportcard.ReportCard) (reportcard.ReportCard, error) {
	row := newReportCardRow(rc)
	res := repo.conn(ctx).Model(&row).Select("*").Updates(&row)
	if res.Error != nil {
		return reportcard.ReportCard{}, errors.Wrap(res.Error, "updating report card")
	}
	if res.RowsAffected == 0 {
		return reportcard.ReportCard{}, reportcard.ErrNotFound
	}
	return row.reportCard(), nil
}
