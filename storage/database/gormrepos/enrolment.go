package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/enrolment"
)

type enrolmentRepository struct {
	*Store
}

var _ enrolment.Repository = (*enrolmentRepository)(nil)

func NewEnrolmentRepository(store *Store) enrolment.Repository {
	return &enrolmentRepository{Store: store}
}

// UpsertGradeSubject keeps the id & creation date of an existing entry.
func (repo *enrolmentRepository) UpsertGradeSubject(ctx context.Context, gs enrolment.GradeSubject) (enrolment.GradeSubject, error) {
	err := repo.WithinTx(ctx, func(ctx context.Context) error {
		var existing gradeSubjectRow
		err := repo.conn(ctx).
			Where("grade_id = ? AND subject_id = ?", gs.GradeID, gs.SubjectID).
			Limit(1).Find(&existing).Error
		if err != nil {
			return errors.Wrap(err, "getting grade subject")
		}

		if existing.ID != "" {
			gs.ID = existing.ID
			gs.CreatedAt = existing.CreatedAt
			row := newGradeSubjectRow(gs)
			return errors.Wrap(repo.conn(ctx).Model(&row).Select("*").Updates(&row).Error, "updating grade subject")
		}
		if gs.ID == "" {
			gs.ID = uuid.New().String()
		}
		row := newGradeSubjectRow(gs)
		return errors.Wrap(repo.conn(ctx).Create(&row).Error, "inserting grade subject")
	})
	if err != nil {
		return enrolment.GradeSubject{}, err
	}
	return gs, nil
}

func (repo *enrolmentRepository) GetGradeSubject(ctx context.Context, gradeID, subjectID string) (enrolment.GradeSubject, error) {
	if !validID(gradeID) || !validID(subjectID) {
		return enrolment.GradeSubject{}, enrolment.ErrGradeSubjectNotFound
	}
	var row gradeSubjectRow
	err := repo.conn(ctx).Take(&row, "grade_id = ? AND subject_id = ?", gradeID, subjectID).Error
	if err != nil {
		return enrolment.GradeSubject{}, notFound(err, enrolment.ErrGradeSubjectNotFound, "getting grade subject")
	}
	return row.gradeSubject(), nil
}

func (repo *enrolmentRepository) ListGradeSubjects(ctx context.Context, gradeIDs ...string) ([]enrolment.GradeSubject, error) {
	q := repo.conn(ctx).Model(&gradeSubjectRow{})
	if len(gradeIDs) > 0 {
		q = q.Where("grade_id IN ?", gradeIDs)
	}

	var rows []gradeSubjectRow
	if err := q.Order("grade_id").Order("subject_id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "listing grade subjects")
	}
	entries := make([]enrolment.GradeSubject, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.gradeSubject())
	}
	return entries, nil
}

func (repo *enrolmentRepository) DeleteGradeSubject(ctx context.Context, gradeID, subjectID string) error {
	if !validID(gradeID) || !validID(subjectID) {
		return enrolment.ErrGradeSubjectNotFound
	}
	res := repo.conn(ctx).Delete(&gradeSubjectRow{}, "grade_id = ? AND subject_id = ?", gradeID, subjectID)
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting grade subject")
	}
	if res.RowsAffected == 0 {
		return enrolment.ErrGradeSubjectNotFound
	}
	return nil
}

func (repo *enrolmentRepository) ListStudentSubjects(ctx context.Context, filter *enrolment.StudentSubjectFilter) ([]enrolment.StudentSubject, error) {
	q := repo.conn(ctx).Model(&studentSubjectRow{})
	if filter != nil {
		if len(filter.StudentIDs) > 0 {
			q = q.Where("student_id IN ?", filter.StudentIDs)
		}
		if len(filter.SubjectIDs) > 0 {
			q = q.Where("subject_id IN ?", filter.SubjectIDs)
		}
		if filter.SourceType != "" {
			q = q.Where("source_type = ?", filter.SourceType)
		}
		if filter.InheritedFromGradeID != "" {
			q = q.Where("inherited_from_grade_id = ?", filter.InheritedFromGradeID)
		}
		if filter.ActiveOnly {
			q = q.Where("is_active")
		}
	}

	var rows []studentSubjectRow
	if err := q.Order("student_id").Order("subject_id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "listing student subjects")
	}
	records := make([]enrolment.StudentSubject, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.studentSubject())
	}
	return records, nil
}

// CreateStudentSubjects inserts the records in one statement.
// A second record for the same (student, subject) violates the unique constraint.
func (repo *enrolmentRepository) CreateStudentSubjects(ctx context.Context, records []enrolment.StudentSubject) ([]enrolment.StudentSubject, error) {
	if len(records) == 0 {
		return []enrolment.StudentSubject{}, nil
	}
	rows := make([]studentSubjectRow, 0, len(records))
	for _, ss := range records {
		ss.ID = uuid.New().String()
		rows = append(rows, newStudentSubjectRow(ss))
	}
	if err := repo.conn(ctx).CreateInBatches(&rows, 500).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Wrap(err, "duplicate student subject")
		}
		return nil, errors.Wrap(err, "inserting student subjects")
	}

	created := make([]enrolment.StudentSubject, 0, len(rows))
	for _, r := range rows {
		created = append(created, r.studentSubject())
	}
	return created, nil
}

func (repo *enrolmentRepository) UpdateStudentSubjects(ctx context.Context, records []enrolment.StudentSubject) error {
	return repo.WithinTx(ctx, func(ctx context.Context) error {
		for _, ss := range records {
			row := newStudentSubjectRow(ss)
			res := repo.conn(ctx).Model(&row).Select("*").Updates(&row)
			if res.Error != nil {
				return errors.Wrap(res.Error, "updating student subject")
			}
			if res.RowsAffected == 0 {
				return enrolment.ErrStudentSubjectNotFound
			}
		}
		return nil
	})
}
