package school

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrGradeNotFound       = core.NewNotFoundError("grade")
	ErrStudentNotFound     = core.NewNotFoundError("student")
	ErrSubjectNotFound     = core.NewNotFoundError("subject")
	ErrGradeExists         = errors.New("a grade with this name and stream already exists")
	ErrAdmissionNoExists   = errors.New("a student with this admission number already exists")
	ErrSubjectCodeExists   = errors.New("a subject with this code already exists")
	ErrGradeHasStudents    = errors.New("grade still has students")
	errNotATeacher         = "user is not an active teacher"
	errInactiveGrade       = "grade is not active"
	errStudentGradeMissing = "grade not found"
)

type (
	Repository interface {
		CheckGradeUniqueness(ctx context.Context, name, stream string, excluded ...Grade) error
		CreateGrade(ctx context.Context, grade Grade) (Grade, error)
		GetGrade(ctx context.Context, id string) (Grade, error)
		QueryGrades(ctx context.Context, filter *GradeFilter, ordering []core.DBOrdering) ([]Grade, error)
		UpdateGrade(ctx context.Context, grade Grade) (Grade, error)
		DeleteGrade(ctx context.Context, id string) error

		CheckAdmissionNoUniqueness(ctx context.Context, admissionNo string, excluded ...Student) error
		CreateStudent(ctx context.Context, student Student) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		// QueryStudents applies AND operation on available StudentFilter fields.
		QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering) ([]Student, error)
		CountStudents(ctx context.Context, filter *StudentFilter) (int, error)
		UpdateStudent(ctx context.Context, student Student) (Student, error)
		DeleteStudent(ctx context.Context, id string) error

		CheckSubjectCodeUniqueness(ctx context.Context, code string, excluded ...Subject) error
		CreateSubject(ctx context.Context, subject Subject) (Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		QuerySubjects(ctx context.Context, filter *SubjectFilter, ordering []core.DBOrdering) ([]Subject, error)
		UpdateSubject(ctx context.Context, subject Subject) (Subject, error)
		DeleteSubject(ctx context.Context, id string) error
	}

	// Enroller keeps the subjects of a student in line with its grade curriculum.
	Enroller interface {
		EnrolNewStudent(ctx context.Context, student Student) error
		MoveStudent(ctx context.Context, student Student, fromGradeID string) error
	}

	// UserGetter finds users, eg. user.Service.
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		CheckGradeUniqueness(ctx context.Context, name, stream string, excluded ...Grade) error
		CreateGrade(ctx context.Context, ng NewGrade) (Grade, error)
		GetGrade(ctx context.Context, id string) (Grade, error)
		QueryGrades(ctx context.Context, filter *GradeFilter, ordering []core.DBOrdering) ([]Grade, error)
		UpdateGrade(ctx context.Context, grade Grade, ug UpdateGrade) (Grade, error)
		DeleteGrade(ctx context.Context, id string) error
		AssignHomeroomTeacher(ctx context.Context, gradeID, teacherID string) (Grade, error)
		IsHomeroomTeacher(ctx context.Context, usr user.User, gradeID string) (bool, error)

		CheckAdmissionNoUniqueness(ctx context.Context, admissionNo string, excluded ...Student) error
		CreateStudent(ctx context.Context, ns NewStudent) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering) ([]Student, error)
		UpdateStudent(ctx context.Context, student Student, us UpdateStudent) (Student, error)
		ArchiveStudent(ctx context.Context, id string) (Student, error)
		DeleteStudent(ctx context.Context, id string) error

		CheckSubjectCodeUniqueness(ctx context.Context, code string, excluded ...Subject) error
		CreateSubject(ctx context.Context, ns NewSubject) (Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		QuerySubjects(ctx context.Context, filter *SubjectFilter, ordering []core.DBOrdering) ([]Subject, error)
		UpdateSubject(ctx context.Context, subject Subject, us UpdateSubject) (Subject, error)
		DeleteSubject(ctx context.Context, id string) error
	}

	service struct {
		repo     Repository
		tx       core.Transactor
		enroller Enroller
		users    UserGetter
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, tx core.Transactor, enroller Enroller, users UserGetter) Service {
	return &service{repo: repo, tx: tx, enroller: enroller, users: users}
}

// uniquenessError maps a repository uniqueness error to a ValidationError on field.
func uniquenessError(err error, target error, field string) error {
	if err == target {
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return err
}

// Grades

func (svc *service) CheckGradeUniqueness(ctx context.Context, name, stream string, excluded ...Grade) error {
	err := svc.repo.CheckGradeUniqueness(ctx, name, stream, excluded...)
	return uniquenessError(err, ErrGradeExists, "name")
}

func (svc *service) CreateGrade(ctx context.Context, ng NewGrade) (Grade, error) {
	if ng.HomeroomTeacherID != "" {
		if err := svc.checkTeacher(ctx, ng.HomeroomTeacherID); err != nil {
			return Grade{}, err
		}
	}
	now := core.NowFunc()
	return svc.repo.CreateGrade(ctx, Grade{
		Name:              ng.Name,
		Stream:            ng.Stream,
		Level:             ng.Level,
		Section:           ng.Section,
		HomeroomTeacherID: ng.HomeroomTeacherID,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
}

func (svc *service) GetGrade(ctx context.Context, id string) (Grade, error) {
	return svc.repo.GetGrade(ctx, id)
}

func (svc *service) QueryGrades(ctx context.Context, filter *GradeFilter, ordering []core.DBOrdering) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx, filter, ordering)
}

func (svc *service) UpdateGrade(ctx context.Context, grade Grade, ug UpdateGrade) (Grade, error) {
	grade.Name = ug.Name
	grade.Stream = *ug.Stream
	grade.Section = ug.Section
	if ug.Level != nil {
		grade.Level = *ug.Level
	}
	if ug.IsActive != nil {
		grade.IsActive = *ug.IsActive
	}
	grade.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateGrade(ctx, grade)
}

// DeleteGrade deletes an empty grade. Its curriculum goes with it.
func (svc *service) DeleteGrade(ctx context.Context, id string) error {
	if _, err := svc.repo.GetGrade(ctx, id); err != nil {
		return err
	}
	count, err := svc.repo.CountStudents(ctx, &StudentFilter{GradeID: id})
	if err != nil {
		return pkgerrors.Wrap(err, "counting grade students")
	}
	if count > 0 {
		return core.NewValidationError(ErrGradeHasStudents)
	}
	return svc.repo.DeleteGrade(ctx, id)
}

func (svc *service) checkTeacher(ctx context.Context, teacherID string) error {
	teacher, err := svc.users.GetByID(ctx, teacherID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: errNotATeacher})
		}
		return pkgerrors.Wrap(err, "finding teacher")
	}
	if !(teacher.IsTeacher() && teacher.Active()) {
		return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: errNotATeacher})
	}
	return nil
}

// AssignHomeroomTeacher makes an active teacher the homeroom teacher of the grade. An empty teacherID unassigns.
func (svc *service) AssignHomeroomTeacher(ctx context.Context, gradeID, teacherID string) (Grade, error) {
	grade, err := svc.repo.GetGrade(ctx, gradeID)
	if err != nil {
		return Grade{}, err
	}
	if teacherID != "" {
		if err = svc.checkTeacher(ctx, teacherID); err != nil {
			return Grade{}, err
		}
	}
	grade.HomeroomTeacherID = teacherID
	grade.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateGrade(ctx, grade)
}

func (svc *service) IsHomeroomTeacher(ctx context.Context, usr user.User, gradeID string) (bool, error) {
	grade, err := svc.repo.GetGrade(ctx, gradeID)
	if err != nil {
		return false, err
	}
	return usr.ID != "" && grade.HomeroomTeacherID == usr.ID, nil
}

// Students

func (svc *service) CheckAdmissionNoUniqueness(ctx context.Context, admissionNo string, excluded ...Student) error {
	err := svc.repo.CheckAdmissionNoUniqueness(ctx, admissionNo, excluded...)
	return uniquenessError(err, ErrAdmissionNoExists, "admission_no")
}

func (svc *service) activeGrade(ctx context.Context, gradeID string) (Grade, error) {
	grade, err := svc.repo.GetGrade(ctx, gradeID)
	if err != nil {
		if core.IsNotFound(err) {
			return Grade{}, core.NewValidationError(nil, core.FieldError{Field: "grade_id", Error: errStudentGradeMissing})
		}
		return Grade{}, pkgerrors.Wrap(err, "finding grade")
	}
	if !grade.IsActive {
		return Grade{}, core.NewValidationError(nil, core.FieldError{Field: "grade_id", Error: errInactiveGrade})
	}
	return grade, nil
}

// CreateStudent enrols a new student: the grade's auto-assigned curriculum is given to the student.
func (svc *service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	if _, err := svc.activeGrade(ctx, ns.GradeID); err != nil {
		return Student{}, err
	}

	now := core.NowFunc()
	enrolledAt := ns.EnrolledAt
	if enrolledAt.IsZero() {
		enrolledAt = now
	}
	student := Student{
		AdmissionNo: ns.AdmissionNo,
		FirstName:   ns.FirstName,
		LastName:    ns.LastName,
		Gender:      ns.Gender,
		DateOfBirth: ns.DateOfBirth,
		GradeID:     ns.GradeID,
		ParentName:  ns.ParentName,
		ParentPhone: ns.ParentPhone,
		ParentEmail: ns.ParentEmail,
		EnrolledAt:  enrolledAt.UTC(),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if student, err = svc.repo.CreateStudent(ctx, student); err != nil {
			return pkgerrors.Wrap(err, "creating student")
		}
		return pkgerrors.Wrap(svc.enroller.EnrolNewStudent(ctx, student), "enrolling student")
	})
	if err != nil {
		return Student{}, err
	}
	return student, nil
}

func (svc *service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

// UpdateStudent applies a validated UpdateStudent. A new GradeID moves the student, subjects included.
func (svc *service) UpdateStudent(ctx context.Context, student Student, us UpdateStudent) (Student, error) {
	fromGradeID := student.GradeID
	moving := us.GradeID != "" && us.GradeID != fromGradeID
	if moving {
		if _, err := svc.activeGrade(ctx, us.GradeID); err != nil {
			return Student{}, err
		}
		student.GradeID = us.GradeID
	}

	if us.FirstName != "" {
		student.FirstName = us.FirstName
	}
	if us.LastName != "" {
		student.LastName = us.LastName
	}
	if us.Gender != "" {
		student.Gender = us.Gender
	}
	if us.DateOfBirth != nil {
		student.DateOfBirth = *us.DateOfBirth
	}
	if us.ParentName != nil {
		student.ParentName = core.CleanString(*us.ParentName)
	}
	if us.ParentPhone != nil {
		student.ParentPhone = *us.ParentPhone
	}
	if us.ParentEmail != nil {
		student.ParentEmail = *us.ParentEmail
	}
	if us.IsActive != nil {
		student.IsActive = *us.IsActive
	}
	student.UpdatedAt = core.NowFunc()

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if student, err = svc.repo.UpdateStudent(ctx, student); err != nil {
			return pkgerrors.Wrap(err, "updating student")
		}
		if moving {
			return pkgerrors.Wrap(svc.enroller.MoveStudent(ctx, student, fromGradeID), "moving student")
		}
		return nil
	})
	if err != nil {
		return Student{}, err
	}
	return student, nil
}

// ArchiveStudent deactivates a student who left the school. Records are kept.
func (svc *service) ArchiveStudent(ctx context.Context, id string) (Student, error) {
	student, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	student.IsArchived = true
	student.IsActive = false
	student.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateStudent(ctx, student)
}

func (svc *service) DeleteStudent(ctx context.Context, id string) error {
	if _, err := svc.repo.GetStudent(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteStudent(ctx, id)
}

// Subjects

func (svc *service) CheckSubjectCodeUniqueness(ctx context.Context, code string, excluded ...Subject) error {
	err := svc.repo.CheckSubjectCodeUniqueness(ctx, code, excluded...)
	return uniquenessError(err, ErrSubjectCodeExists, "code")
}

func (svc *service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	now := core.NowFunc()
	return svc.repo.CreateSubject(ctx, Subject{
		Name:        ns.Name,
		Code:        ns.Code,
		Description: ns.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *service) QuerySubjects(ctx context.Context, filter *SubjectFilter, ordering []core.DBOrdering) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, filter, ordering)
}

func (svc *service) UpdateSubject(ctx context.Context, subject Subject, us UpdateSubject) (Subject, error) {
	subject.Name = us.Name
	subject.Code = us.Code
	if us.Description != nil {
		subject.Description = core.CleanString(*us.Description)
	}
	if us.IsActive != nil {
		subject.IsActive = *us.IsActive
	}
	subject.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateSubject(ctx, subject)
}

func (svc *service) DeleteSubject(ctx context.Context, id string) error {
	if _, err := svc.repo.GetSubject(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteSubject(ctx, id)
}
