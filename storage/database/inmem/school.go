package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

// Grades

func (repo *schoolRepository) CheckGradeUniqueness(_ context.Context, name, stream string, excluded ...school.Grade) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]string, 0, len(excluded))
	for _, g := range excluded {
		ids = append(ids, g.ID)
	}
	for _, g := range repo.db.grades {
		if !isExcluded(g.ID, ids) && strings.EqualFold(g.Name, name) && strings.EqualFold(g.Stream, stream) {
			return school.ErrGradeExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateGrade(_ context.Context, grade school.Grade) (school.Grade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	grade.ID = uuid.New().String()
	repo.db.grades[grade.ID] = grade
	return grade, nil
}

func (repo *schoolRepository) GetGrade(_ context.Context, id string) (school.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if g, ok := repo.db.grades[id]; ok {
		return g, nil
	}
	return school.Grade{}, school.ErrGradeNotFound
}

func (repo *schoolRepository) QueryGrades(_ context.Context, filter *school.GradeFilter, _ []core.DBOrdering) ([]school.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	grades := make([]school.Grade, 0, len(repo.db.grades))
	for _, g := range repo.db.grades {
		if filter.Match(g) {
			grades = append(grades, g)
		}
	}
	sort.Slice(grades, func(i, j int) bool {
		if grades[i].Level != grades[j].Level {
			return grades[i].Level < grades[j].Level
		}
		return grades[i].DisplayName() < grades[j].DisplayName()
	})
	return grades, nil
}

func (repo *schoolRepository) UpdateGrade(_ context.Context, grade school.Grade) (school.Grade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.grades[grade.ID]; !ok {
		return school.Grade{}, school.ErrGradeNotFound
	}
	repo.db.grades[grade.ID] = grade
	return grade, nil
}

// DeleteGrade deletes the grade and its curriculum.
func (repo *schoolRepository) DeleteGrade(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.grades[id]; !ok {
		return school.ErrGradeNotFound
	}
	delete(repo.db.grades, id)
	for key, gs := range repo.db.gradeSubjects {
		if gs.GradeID == id {
			delete(repo.db.gradeSubjects, key)
		}
	}
	return nil
}

// Students

func (repo *schoolRepository) CheckAdmissionNoUniqueness(_ context.Context, admissionNo string, excluded ...school.Student) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]string, 0, len(excluded))
	for _, s := range excluded {
		ids = append(ids, s.ID)
	}
	for _, s := range repo.db.students {
		if !isExcluded(s.ID, ids) && strings.EqualFold(s.AdmissionNo, admissionNo) {
			return school.ErrAdmissionNoExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateStudent(_ context.Context, student school.Student) (school.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	student.ID = uuid.New().String()
	repo.db.students[student.ID] = student
	return student, nil
}

func (repo *schoolRepository) GetStudent(_ context.Context, id string) (school.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return s, nil
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *schoolRepository) filterStudents(filter *school.StudentFilter) []school.Student {
	students := make([]school.Student, 0)
	for _, s := range repo.db.students {
		if filter.Match(s) {
			students = append(students, s)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		a, b := students[i], students[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.AdmissionNo < b.AdmissionNo
	})
	return students
}

func (repo *schoolRepository) QueryStudents(_ context.Context, filter *school.StudentFilter, _ []core.DBOrdering) ([]school.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := repo.filterStudents(filter)
	if filter != nil {
		students = paginate(students, filter.Pagination)
	}
	return students, nil
}

func paginate[T any](items []T, p core.Pagination) []T {
	if p.Offset > 0 {
		if p.Offset >= len(items) {
			return items[:0]
		}
		items = items[p.Offset:]
	}
	if p.Limit > 0 && p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items
}

func (repo *schoolRepository) CountStudents(_ context.Context, filter *school.StudentFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.filterStudents(filter)), nil
}

func (repo *schoolRepository) UpdateStudent(_ context.Context, student school.Student) (school.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[student.ID]; !ok {
		return school.Student{}, school.ErrStudentNotFound
	}
	repo.db.students[student.ID] = student
	return student, nil
}

// DeleteStudent deletes the student with its enrolments & scores.
func (repo *schoolRepository) DeleteStudent(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[id]; !ok {
		return school.ErrStudentNotFound
	}
	delete(repo.db.students, id)
	for key, ss := range repo.db.studentSubjects {
		if ss.StudentID == id {
			delete(repo.db.studentSubjects, key)
		}
	}
	for key, s := range repo.db.scores {
		if s.StudentID == id {
			delete(repo.db.scores, key)
		}
	}
	return nil
}

// Subjects

func (repo *schoolRepository) CheckSubjectCodeUniqueness(_ context.Context, code string, excluded ...school.Subject) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]string, 0, len(excluded))
	for _, s := range excluded {
		ids = append(ids, s.ID)
	}
	for _, s := range repo.db.subjects {
		if !isExcluded(s.ID, ids) && strings.EqualFold(s.Code, code) {
			return school.ErrSubjectCodeExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateSubject(_ context.Context, subject school.Subject) (school.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	subject.ID = uuid.New().String()
	repo.db.subjects[subject.ID] = subject
	return subject, nil
}

func (repo *schoolRepository) GetSubject(_ context.Context, id string) (school.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.subjects[id]; ok {
		return s, nil
	}
	return school.Subject{}, school.ErrSubjectNotFound
}

func (repo *schoolRepository) QuerySubjects(_ context.Context, filter *school.SubjectFilter, _ []core.DBOrdering) ([]school.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subjects := make([]school.Subject, 0, len(repo.db.subjects))
	for _, s := range repo.db.subjects {
		if filter.Match(s) {
			subjects = append(subjects, s)
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return subjects, nil
}

func (repo *schoolRepository) UpdateSubject(_ context.Context, subject school.Subject) (school.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.subjects[subject.ID]; !ok {
		return school.Subject{}, school.ErrSubjectNotFound
	}
	repo.db.subjects[subject.ID] = subject
	return subject, nil
}

// DeleteSubject deletes the subject with its curriculum entries, enrolments & scores.
func (repo *schoolRepository) DeleteSubject(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.subjects[id]; !ok {
		return school.ErrSubjectNotFound
	}
	delete(repo.db.subjects, id)
	for key, gs := range repo.db.gradeSubjects {
		if gs.SubjectID == id {
			delete(repo.db.gradeSubjects, key)
		}
	}
	for key, ss := range repo.db.studentSubjects {
		if ss.SubjectID == id {
			delete(repo.db.studentSubjects, key)
		}
	}
	for key, s := range repo.db.scores {
		if s.SubjectID == id {
			delete(repo.db.scores, key)
		}
	}
	return nil
}
