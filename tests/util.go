package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core/enrolment"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateGrade(t *testing.T, repo school.Repository, name, stream string, level int, section school.Section) school.Grade {
	now := time.Now().UTC()
	grade, err := repo.CreateGrade(context.Background(), school.Grade{
		Name:      name,
		Stream:    stream,
		Level:     level,
		Section:   section,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateGrade() failed: %v", err)
	}
	return grade
}

// CreateStudent inserts an active student. Without enrolledAt, the student enrolled a week ago.
func CreateStudent(
	t *testing.T,
	repo school.Repository,
	admissionNo, firstName, lastName, gradeID, parentPhone string,
	enrolledAt ...time.Time,
) school.Student {
	now := time.Now().UTC()
	enrolled := now.Add(-7 * 24 * time.Hour)
	if len(enrolledAt) > 0 {
		enrolled = enrolledAt[0].UTC()
	}
	student, err := repo.CreateStudent(context.Background(), school.Student{
		AdmissionNo: admissionNo,
		FirstName:   firstName,
		LastName:    lastName,
		GradeID:     gradeID,
		ParentName:  "Parent " + lastName,
		ParentPhone: parentPhone,
		EnrolledAt:  enrolled,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return student
}

func CreateSubject(t *testing.T, repo school.Repository, name, code string) school.Subject {
	now := time.Now().UTC()
	subject, err := repo.CreateSubject(context.Background(), school.Subject{
		Name:      name,
		Code:      code,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return subject
}

func CreateGradeSubject(t *testing.T, repo enrolment.Repository, gradeID, subjectID string, optional, autoAssign bool) enrolment.GradeSubject {
	now := time.Now().UTC()
	gs, err := repo.UpsertGradeSubject(context.Background(), enrolment.GradeSubject{
		GradeID:              gradeID,
		SubjectID:            subjectID,
		IsOptional:           optional,
		AutoAssignToStudents: autoAssign,
		CreatedAt:            now,
		UpdatedAt:            now,
	})
	if err != nil {
		t.Fatalf("CreateGradeSubject() failed: %v", err)
	}
	return gs
}

// CreateStudentSubject inserts an active enrolment. inheritedFrom is only kept for Inherited records.
func CreateStudentSubject(
	t *testing.T,
	repo enrolment.Repository,
	studentID, subjectID string,
	source enrolment.SourceType,
	inheritedFrom string,
) enrolment.StudentSubject {
	now := time.Now().UTC()
	if source != enrolment.Inherited {
		inheritedFrom = ""
	}
	records, err := repo.CreateStudentSubjects(context.Background(), []enrolment.StudentSubject{{
		StudentID:            studentID,
		SubjectID:            subjectID,
		SourceType:           source,
		InheritedFromGradeID: inheritedFrom,
		IsActive:             true,
		EnrolledAt:           now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}})
	if err != nil || len(records) != 1 {
		t.Fatalf("CreateStudentSubject() failed: %v", err)
	}
	return records[0]
}

func CreateExamType(t *testing.T, repo exam.Repository, name string, slot exam.Slot, order int) exam.ExamType {
	now := time.Now().UTC()
	et, err := repo.CreateExamType(context.Background(), exam.ExamType{
		Name:      name,
		Slot:      slot,
		Order:     order,
		MaxScore:  decimal.NewFromInt(100),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateExamType() failed: %v", err)
	}
	return et
}

// CreateScore inserts a score as is, bypassing enrolment checks. A negative score records an absence.
func CreateScore(
	t *testing.T,
	repo exam.Repository,
	studentID, subjectID, examTypeID string,
	year, term int,
	score float64,
	recordedAt time.Time,
) exam.ExamScore {
	s := exam.ExamScore{
		StudentID:    studentID,
		SubjectID:    subjectID,
		ExamTypeID:   examTypeID,
		AcademicYear: year,
		Term:         term,
		RecordedAt:   recordedAt.UTC(),
	}
	if score < 0 {
		s.IsAbsent = true
	} else {
		s.Score = decimal.NewFromFloat(score)
	}
	scores, err := repo.CreateScores(context.Background(), []exam.ExamScore{s})
	if err != nil || len(scores) != 1 {
		t.Fatalf("CreateScore() failed: %v", err)
	}
	return scores[0]
}
