package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/exam"
)

type examRepository struct {
	*Store
}

var _ exam.Repository = (*examRepository)(nil)

func NewExamRepository(store *Store) exam.Repository {
	return &examRepository{Store: store}
}

func (repo *examRepository) CheckExamTypeUniqueness(ctx context.Context, name string, excluded ...exam.ExamType) error {
	q := repo.conn(ctx).Where("lower(name) = lower(?)", name)
	found, err := exists(q, &examTypeRow{}, excludedIDs(excluded, func(et exam.ExamType) string { return et.ID }))
	if err != nil {
		return errors.Wrap(err, "checking exam type uniqueness")
	}
	if found {
		return exam.ErrExamTypeExists
	}
	return nil
}

func (repo *examRepository) CreateExamType(ctx context.Context, et exam.ExamType) (exam.ExamType, error) {
	et.ID = uuid.New().String()
	row := newExamTypeRow(et)
	if err := repo.conn(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return exam.ExamType{}, exam.ErrExamTypeExists
		}
		return exam.ExamType{}, errors.Wrap(err, "inserting exam type")
	}
	return row.examType(), nil
}

func (repo *examRepository) GetExamType(ctx context.Context, id string) (exam.ExamType, error) {
	if !validID(id) {
		return exam.ExamType{}, exam.ErrExamTypeNotFound
	}
	var row examTypeRow
	if err := repo.conn(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return exam.ExamType{}, notFound(err, exam.ErrExamTypeNotFound, "getting exam type")
	}
	return row.examType(), nil
}

func (repo *examRepository) QueryExamTypes(ctx context.Context, filter *exam.ExamTypeFilter) ([]exam.ExamType, error) {
	q := repo.conn(ctx).Model(&examTypeRow{})
	if filter != nil {
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if filter.Slot != "" {
			q = q.Where("slot = ?", filter.Slot)
		}
	}

	var rows []examTypeRow
	if err := q.Order(`"order" ASC`).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying exam types")
	}
	types := make([]exam.ExamType, 0, len(rows))
	for _, r := range rows {
		types = append(types, r.examType())
	}
	return types, nil
}

func (repo *examRepository) UpdateExamType(ctx context.Context, et exam.ExamType) (exam.ExamType, error) {
	row := newExamTypeRow(et)
	res := repo.conn(ctx).Model(&row).Select("*").Updates(&row)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return exam.ExamType{}, exam.ErrExamTypeExists
		}
		return exam.ExamType{}, errors.Wrap(res.Error, "updating exam type")
	}
	if res.RowsAffected == 0 {
		return exam.ExamType{}, exam.ErrExamTypeNotFound
	}
	return row.examType(), nil
}

// CreateScores appends the entries: scores are never updated in place.
func (repo *examRepository) CreateScores(ctx context.Context, scores []exam.ExamScore) ([]exam.ExamScore, error) {
	if len(scores) == 0 {
		return []exam.ExamScore{}, nil
	}
	rows := make([]examScoreRow, 0, len(scores))
	for _, s := range scores {
		s.ID = uuid.New().String()
		rows = append(rows, newExamScoreRow(s))
	}
	if err := repo.conn(ctx).CreateInBatches(&rows, 500).Error; err != nil {
		return nil, errors.Wrap(err, "inserting scores")
	}

	created := make([]exam.ExamScore, 0, len(rows))
	for _, r := range rows {
		created = append(created, r.examScore())
	}
	return created, nil
}

func (repo *examRepository) QueryScores(ctx context.Context, filter *exam.ScoreFilter) ([]exam.ExamScore, error) {
	q := repo.conn(ctx).Model(&examScoreRow{})
	if filter != nil {
		if len(filter.StudentIDs) > 0 {
			q = q.Where("student_id IN ?", filter.StudentIDs)
		}
		if filter.GradeID != "" {
			q = q.Where("student_id IN (?)", repo.conn(ctx).Model(&studentRow{}).Select("id").Where("grade_id = ?", filter.GradeID))
		}
		if len(filter.SubjectIDs) > 0 {
			q = q.Where("subject_id IN ?", filter.SubjectIDs)
		}
		if len(filter.ExamTypeIDs) > 0 {
			q = q.Where("exam_type_id IN ?", filter.ExamTypeIDs)
		}
		if filter.AcademicYear != 0 {
			q = q.Where("academic_year = ?", filter.AcademicYear)
		}
		if filter.Term != 0 {
			q = q.Where("term = ?", filter.Term)
		}
	}

	var rows []examScoreRow
	if err := q.Order("recorded_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	scores := make([]exam.ExamScore, 0, len(rows))
	for _, r := range rows {
		scores = append(scores, r.examScore())
	}
	return scores, nil
}
