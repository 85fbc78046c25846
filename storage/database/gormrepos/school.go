package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

var (
	gradeOrdering = map[string]string{
		"name":       "name",
		"level":      "level",
		"section":    "section",
		"created_at": "created_at",
	}
	studentOrdering = map[string]string{
		"admission_no": "admission_no",
		"first_name":   "first_name",
		"last_name":    "last_name",
		"enrolled_at":  "enrolled_at",
		"created_at":   "created_at",
	}
	subjectOrdering = map[string]string{
		"name":       "name",
		"code":       "code",
		"created_at": "created_at",
	}
)

type schoolRepository struct {
	*Store
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(store *Store) school.Repository {
	return &schoolRepository{Store: store}
}

func excludedIDs[T any](items []T, id func(T) string) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, id(it))
	}
	return ids
}

// exists reports whether q matches a row of model, ignoring the excluded ids.
func exists(q *gorm.DB, model interface{}, excluded []string) (bool, error) {
	q = q.Model(model)
	if len(excluded) > 0 {
		q = q.Where("id NOT IN ?", excluded)
	}
	var count int64
	if err := q.Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Grades

func (repo *schoolRepository) CheckGradeUniqueness(ctx context.Context, name, stream string, excluded ...school.Grade) error {
	q := repo.conn(ctx).Where("lower(name) = lower(?) AND lower(stream) = lower(?)", name, stream)
	found, err := exists(q, &gradeRow{}, excludedIDs(excluded, func(g school.Grade) string { return g.ID }))
	if err != nil {
		return errors.Wrap(err, "checking grade uniqueness")
	}
	if found {
		return school.ErrGradeExists
	}
	return nil
}

func (repo *schoolRepository) CreateGrade(ctx context.Context, grade school.Grade) (school.Grade, error) {
	grade.ID = uuid.New().String()
	row := newGradeRow(grade)
	if err := repo.conn(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return school.Grade{}, school.ErrGradeExists
		}
		return school.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return row.grade(), nil
}

func (repo *schoolRepository) GetGrade(ctx context.Context, id string) (school.Grade, error) {
	if !validID(id) {
		return school.Grade{}, school.ErrGradeNotFound
	}
	var row gradeRow
	if err := repo.conn(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return school.Grade{}, notFound(err, school.ErrGradeNotFound, "getting grade")
	}
	return row.grade(), nil
}

func (repo *schoolRepository) QueryGrades(ctx context.Context, filter *school.GradeFilter, ordering []core.DBOrdering) ([]school.Grade, error) {
	q := repo.conn(ctx).Model(&gradeRow{})
	if filter != nil {
		if filter.Search != "" {
			q = q.Where("concat_ws(' ', name, stream) ILIKE ?", ilike(filter.Search))
		}
		if filter.Section != "" {
			q = q.Where("section = ?", filter.Section)
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
	}

	var rows []gradeRow
	q = order(q, ordering, gradeOrdering, "level ASC", "name ASC", "stream ASC")
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]school.Grade, 0, len(rows))
	for _, r := range rows {
		grades = append(grades, r.grade())
	}
	return grades, nil
}

func (repo *schoolRepository) UpdateGrade(ctx context.Context, grade school.Grade) (school.Grade, error) {
	row := newGradeRow(grade)
	res := repo.conn(ctx).Model(&row).Select("*").Updates(&row)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return school.Grade{}, school.ErrGradeExists
		}
		return school.Grade{}, errors.Wrap(res.Error, "updating grade")
	}
	if res.RowsAffected == 0 {
		return school.Grade{}, school.ErrGradeNotFound
	}
	return row.grade(), nil
}

// DeleteGrade deletes the grade; its curriculum goes with it (ON DELETE CASCADE).
func (repo *schoolRepository) DeleteGrade(ctx context.Context, id string) error {
	if !validID(id) {
		return school.ErrGradeNotFound
	}
	res := repo.conn(ctx).Delete(&gradeRow{}, "id = ?", id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting grade")
	}
	if res.RowsAffected == 0 {
		return school.ErrGradeNotFound
	}
	return nil
}

// Students

func (repo *schoolRepository) CheckAdmissionNoUniqueness(ctx context.Context, admissionNo string, excluded ...school.Student) error {
	q := repo.conn(ctx).Where("lower(admission_no) = lower(?)", admissionNo)
	found, err := exists(q, &studentRow{}, excludedIDs(excluded, func(s school.Student) string { return s.ID }))
	if err != nil {
		return errors.Wrap(err, "checking admission number uniqueness")
	}
	if found {
		return school.ErrAdmissionNoExists
	}
	return nil
}

func (repo *schoolRepository) CreateStudent(ctx context.Context, student school.Student) (school.Student, error) {
	student.ID = uuid.New().String()
	row := newStudentRow(student)
	if err := repo.conn(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return school.Student{}, school.ErrAdmissionNoExists
		}
		return school.Student{}, errors.Wrap(err, "inserting student")
	}
	return row.student(), nil
}

func (repo *schoolRepository) GetStudent(ctx context.Context, id string) (school.Student, error) {
	if !validID(id) {
		return school.Student{}, school.ErrStudentNotFound
	}
	var row studentRow
	if err := repo.conn(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return school.Student{}, notFound(err, school.ErrStudentNotFound, "getting student")
	}
	return row.student(), nil
}

func (repo *schoolRepository) filterStudents(ctx context.Context, filter *school.StudentFilter) *gorm.DB {
	q := repo.conn(ctx).Model(&studentRow{})
	if filter == nil {
		return q
	}
	if filter.GradeID != "" {
		q = q.Where("grade_id = ?", filter.GradeID)
	}
	if len(filter.GradeIDs) > 0 {
		q = q.Where("grade_id IN ?", filter.GradeIDs)
	}
	if len(filter.IDs) > 0 {
		q = q.Where("id IN ?", filter.IDs)
	}
	if filter.Search != "" {
		val := ilike(filter.Search)
		q = q.Where("concat_ws(' ', first_name, last_name) ILIKE ? OR admission_no ILIKE ?", val, val)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}
	if filter.IsArchived != nil {
		q = q.Where("is_archived = ?", *filter.IsArchived)
	}
	return q
}

func (repo *schoolRepository) QueryStudents(ctx context.Context, filter *school.StudentFilter, ordering []core.DBOrdering) ([]school.Student, error) {
	q := repo.filterStudents(ctx, filter)
	q = order(q, ordering, studentOrdering, "last_name ASC", "first_name ASC", "admission_no ASC")
	if filter != nil {
		q = paginate(q, filter.Pagination)
	}

	var rows []studentRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]school.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, nil
}

func (repo *schoolRepository) CountStudents(ctx context.Context, filter *school.StudentFilter) (int, error) {
	var count int64
	if err := repo.filterStudents(ctx, filter).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return int(count), nil
}

func (repo *schoolRepository) UpdateStudent(ctx context.Context, student school.Student) (school.Student, error) {
	row := newStudentRow(student)
	res := repo.conn(ctx).Model(&row).Select("*").Updates(&row)
	if res.Error != nil {
		return school.Student{}, errors.Wrap(res.Error, "updating student")
	}
	if res.RowsAffected == 0 {
		return school.Student{}, school.ErrStudentNotFound
	}
	return row.student(), nil
}

// DeleteStudent deletes the student; enrolments, scores & report cards go with it (ON DELETE CASCADE).
func (repo *schoolRepository) DeleteStudent(ctx context.Context, id string) error {
	if !validID(id) {
		return school.ErrStudentNotFound
	}
	res := repo.conn(ctx).Delete(&studentRow{}, "id = ?", id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting student")
	}
	if res.RowsAffected == 0 {
		return school.ErrStudentNotFound
	}
	return nil
}

// Subjects

func (repo *schoolRepository) CheckSubjectCodeUniqueness(ctx context.Context, code string, excluded ...school.Subject) error {
	q := repo.conn(ctx).Where("upper(code) = upper(?)", code)
	found, err := exists(q, &subjectRow{}, excludedIDs(excluded, func(s school.Subject) string { return s.ID }))
	if err != nil {
		return errors.Wrap(err, "checking subject code uniqueness")
	}
	if found {
		return school.ErrSubjectCodeExists
	}
	return nil
}

func (repo *schoolRepository) CreateSubject(ctx context.Context, subject school.Subject) (school.Subject, error) {
	subject.ID = uuid.New().String()
	row := newSubjectRow(subject)
	if err := repo.conn(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return school.Subject{}, school.ErrSubjectCodeExists
		}
		return school.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return row.subject(), nil
}

func (repo *schoolRepository) GetSubject(ctx context.Context, id string) (school.Subject, error) {
	if !validID(id) {
		return school.Subject{}, school.ErrSubjectNotFound
	}
	var row subjectRow
	if err := repo.conn(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return school.Subject{}, notFound(err, school.ErrSubjectNotFound, "getting subject")
	}
	return row.subject(), nil
}

func (repo *schoolRepository) QuerySubjects(ctx context.Context, filter *school.SubjectFilter, ordering []core.DBOrdering) ([]school.Subject, error) {
	q := repo.conn(ctx).Model(&subjectRow{})
	if filter != nil {
		if filter.Search != "" {
			val := ilike(filter.Search)
			q = q.Where("name ILIKE ? OR code ILIKE ?", val, val)
		}
		if len(filter.IDs) > 0 {
			q = q.Where("id IN ?", filter.IDs)
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
	}

	var rows []subjectRow
	q = order(q, ordering, subjectOrdering, "name ASC")
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subjects := make([]school.Subject, 0, len(rows))
	for _, r := range rows {
		subjects = append(subjects, r.subject())
	}
	return subjects, nil
}

func (repo *schoolRepository) UpdateSubject(ctx context.Context, subject school.Subject) (school.Subject, error) {
	row := newSubjectRow(subject)
	res := repo.conn(ctx).Model(&row).Select("*").Updates(&row)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return school.Subject{}, school.ErrSubjectCodeExists
		}
		return school.Subject{}, errors.Wrap(res.Error, "updating subject")
	}
	if res.RowsAffected == 0 {
		return school.Subject{}, school.ErrSubjectNotFound
	}
	return row.subject(), nil
}

// DeleteSubject deletes the subject; curriculum entries, enrolments & scores go with it (ON DELETE CASCADE).
func (repo *schoolRepository) DeleteSubject(ctx context.Context, id string) error {
	if !validID(id) {
		return school.ErrSubjectNotFound
	}
	res := repo.conn(ctx).Delete(&subjectRow{}, "id = ?", id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting subject")
	}
	if res.RowsAffected == 0 {
		return school.ErrSubjectNotFound
	}
	return nil
}
