package exam_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/enrolment"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/storage/database/inmem"
	"github.com/trezcool/shule/tests"
)

type fixture struct {
	svc     exam.Service
	repo    exam.Repository
	alice   school.Student
	bob     school.Student
	maths   school.Subject
	english school.Subject
	test1   exam.ExamType
	by      user.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := inmemdb.Open()
	schoolRepo := inmemdb.NewSchoolRepository(db)
	enrolRepo := inmemdb.NewEnrolmentRepository(db)

	f := &fixture{repo: inmemdb.NewExamRepository(db)}
	f.svc = exam.NewService(f.repo, schoolRepo, enrolRepo, db)

	grade := testutil.CreateGrade(t, schoolRepo, "Grade 8", "", 8, school.SecondaryLower)
	f.maths = testutil.CreateSubject(t, schoolRepo, "Mathematics", "MAT")
	f.english = testutil.CreateSubject(t, schoolRepo, "English", "ENG")
	f.alice = testutil.CreateStudent(t, schoolRepo, "G8-001", "Alice", "Atieno", grade.ID, "")
	f.bob = testutil.CreateStudent(t, schoolRepo, "G8-002", "Bob", "Baraka", grade.ID, "")
	testutil.CreateStudentSubject(t, enrolRepo, f.alice.ID, f.maths.ID, enrolment.Inherited, grade.ID)
	testutil.CreateStudentSubject(t, enrolRepo, f.bob.ID, f.maths.ID, enrolment.Inherited, grade.ID)
	testutil.CreateStudentSubject(t, enrolRepo, f.alice.ID, f.english.ID, enrolment.Manual, "")
	f.test1 = testutil.CreateExamType(t, f.repo, "Test 1", exam.Test1, 1)
	f.by = user.User{ID: "recorder"}
	return f
}

func (f *fixture) newScore(student school.Student, subject school.Subject, score float64) exam.NewScore {
	d := decimal.NewFromFloat(score)
	return exam.NewScore{
		StudentID:    student.ID,
		SubjectID:    subject.ID,
		ExamTypeID:   f.test1.ID,
		AcademicYear: 2024,
		Term:         1,
		Score:        &d,
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	verr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "got %T: %v", errors.Cause(err), err)
	fields := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		fields[f.Field] = f.Error
	}
	return fields
}

func (f *fixture) allScores(t *testing.T) []exam.ExamScore {
	t.Helper()
	scores, err := f.svc.ListScores(context.Background(), &exam.ScoreFilter{})
	require.NoError(t, err)
	return scores
}

func TestService_RecordScores(t *testing.T) {
	ctx := context.Background()

	t.Run("all or nothing", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.RecordScores(ctx, exam.RecordScores{Scores: []exam.NewScore{
			f.newScore(f.alice, f.maths, 80),
			f.newScore(f.bob, f.english, 70),    // not enrolled
			f.newScore(f.alice, f.english, 101), // out of range
		}}, f.by)

		fields := fieldErrors(t, err)
		assert.Len(t, fields, 2)
		assert.Contains(t, fields, "scores[1].subject_id")
		assert.Contains(t, fields, "scores[2].score")
		assert.Empty(t, f.allScores(t))
	})

	t.Run("absent and missing score", func(t *testing.T) {
		f := setup(t)
		absent := f.newScore(f.alice, f.maths, 0)
		absent.Score = nil
		absent.IsAbsent = true
		missing := f.newScore(f.bob, f.maths, 0)
		missing.Score = nil

		_, err := f.svc.RecordScores(ctx, exam.RecordScores{Scores: []exam.NewScore{absent, missing}}, f.by)
		fields := fieldErrors(t, err)
		assert.Len(t, fields, 1)
		assert.Contains(t, fields, "scores[1].score")

		scores, err := f.svc.RecordScores(ctx, exam.RecordScores{Scores: []exam.NewScore{absent}}, f.by)
		require.NoError(t, err)
		require.Len(t, scores, 1)
		assert.True(t, scores[0].IsAbsent)
		assert.True(t, scores[0].Score.IsZero())
		assert.Equal(t, "recorder", scores[0].RecordedByID)
	})

	t.Run("last duplicate wins", func(t *testing.T) {
		f := setup(t)
		scores, err := f.svc.RecordScores(ctx, exam.RecordScores{Scores: []exam.NewScore{
			f.newScore(f.alice, f.maths, 40),
			f.newScore(f.bob, f.maths, 55),
			f.newScore(f.alice, f.maths, 65),
		}}, f.by)
		require.NoError(t, err)
		require.Len(t, scores, 2)
		assert.Equal(t, f.alice.ID, scores[0].StudentID)
		assert.True(t, scores[0].Score.Equal(decimal.NewFromInt(65)))
		assert.Len(t, f.allScores(t), 2)
	})

	t.Run("unknown references", func(t *testing.T) {
		f := setup(t)
		ns := f.newScore(f.alice, f.maths, 50)
		ns.StudentID = "7f3c2a4e-0000-4000-8000-000000000000"
		ns.ExamTypeID = "7f3c2a4e-0000-4000-8000-000000000001"

		_, err := f.svc.RecordScores(ctx, exam.RecordScores{Scores: []exam.NewScore{ns}}, f.by)
		fields := fieldErrors(t, err)
		assert.Contains(t, fields, "scores[0].student_id")
		assert.Contains(t, fields, "scores[0].exam_type_id")
		assert.NotContains(t, fields, "scores[0].subject_id")
	})
}

func TestService_RecordScore(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.RecordScore(ctx, f.newScore(f.bob, f.english, 70), f.by)
	fields := fieldErrors(t, err)
	assert.Contains(t, fields, "subject_id")

	score, err := f.svc.RecordScore(ctx, f.newScore(f.bob, f.maths, 70), f.by)
	require.NoError(t, err)
	assert.NotEmpty(t, score.ID)
	assert.Equal(t, 2024, score.AcademicYear)
}

func TestService_ListScores_LatestOnly(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	first := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	testutil.CreateScore(t, f.repo, f.alice.ID, f.maths.ID, f.test1.ID, 2024, 1, 45, first)
	testutil.CreateScore(t, f.repo, f.alice.ID, f.maths.ID, f.test1.ID, 2024, 1, 72, first.Add(48*time.Hour))
	testutil.CreateScore(t, f.repo, f.bob.ID, f.maths.ID, f.test1.ID, 2024, 1, 60, first)

	all, err := f.svc.ListScores(ctx, &exam.ScoreFilter{AcademicYear: 2024, Term: 1})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	latest, err := f.svc.ListScores(ctx, &exam.ScoreFilter{AcademicYear: 2024, Term: 1, LatestOnly: true})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	for _, s := range latest {
		if s.StudentID == f.alice.ID {
			assert.True(t, s.Score.Equal(decimal.NewFromInt(72)))
		}
	}

	summary, err := f.svc.StudentTermSummary(ctx, f.alice.ID, 2024, 1)
	require.NoError(t, err)
	require.Len(t, summary.Subjects, 2)
	// subjects sorted by name: English has no score
	assert.Equal(t, "English", summary.Subjects[0].SubjectName)
	assert.False(t, summary.Subjects[0].Recorded)
	// Test 1 only: 72 / 3
	assert.True(t, summary.Subjects[1].Average.Equal(decimal.NewFromInt(24)), summary.Subjects[1].Average.String())
}
