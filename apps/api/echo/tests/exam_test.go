package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/enrolment"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

const (
	year = 2024
	term = 1
)

// classroom is a grade of three students all taking mathematics.
type classroom struct {
	admin, teacher, clerk  user.User
	grade                  school.Grade
	alice, bob, carl       school.Student
	maths                  school.Subject
	test1, midTerm, endTerm exam.ExamType
}

func (e *env) classroom(t *testing.T) classroom {
	t.Helper()
	var c classroom
	c.admin = testutil.CreateUser(t, e.users, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	c.teacher = testutil.CreateUser(t, e.users, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	c.clerk = testutil.CreateUser(t, e.users, "Clerk", "clerk", "clerk@test.cd", "", []string{user.RoleStaff}, true)

	c.grade = testutil.CreateGrade(t, e.school, "Form 4", "North", 12, school.SecondaryUpper)
	c.maths = testutil.CreateSubject(t, e.school, "Mathematics", "MAT")
	testutil.CreateGradeSubject(t, e.enrol, c.grade.ID, c.maths.ID, false, true)

	c.alice = testutil.CreateStudent(t, e.school, "F4-001", "Alice", "Atieno", c.grade.ID, "+254700000001")
	c.bob = testutil.CreateStudent(t, e.school, "F4-002", "Bob", "Baraka", c.grade.ID, "+254700000002")
	c.carl = testutil.CreateStudent(t, e.school, "F4-003", "Carl", "Chege", c.grade.ID, "")
	for _, s := range []school.Student{c.alice, c.bob, c.carl} {
		testutil.CreateStudentSubject(t, e.enrol, s.ID, c.maths.ID, enrolment.Inherited, c.grade.ID)
	}

	c.test1 = testutil.CreateExamType(t, e.exams, "Test 1", exam.Test1, 1)
	c.midTerm = testutil.CreateExamType(t, e.exams, "Mid Term", exam.MidTerm, 2)
	c.endTerm = testutil.CreateExamType(t, e.exams, "End of Term", exam.EndOfTerm, 3)
	return c
}

func score(studentID, subjectID, examTypeID string, value float64) exam.NewScore {
	ns := exam.NewScore{
		StudentID:    studentID,
		SubjectID:    subjectID,
		ExamTypeID:   examTypeID,
		AcademicYear: year,
		Term:         term,
	}
	if value < 0 {
		ns.IsAbsent = true
	} else {
		d := decimal.NewFromFloat(value)
		ns.Score = &d
	}
	return ns
}

// recordAll records alice 80-90-70, bob 80-80-80 and carl ABS-60-(none).
func (e *env) recordAll(t *testing.T, c classroom) {
	t.Helper()
	m := c.maths.ID
	tt := httpTest{
		method: http.MethodPost, path: "/api/exams/scores", token: getToken(t, e.conf, c.teacher), wantCode: http.StatusCreated,
		body: marchallObj(t, exam.RecordScores{Scores: []exam.NewScore{
			score(c.alice.ID, m, c.test1.ID, 80), score(c.alice.ID, m, c.midTerm.ID, 90), score(c.alice.ID, m, c.endTerm.ID, 70),
			score(c.bob.ID, m, c.test1.ID, 80), score(c.bob.ID, m, c.midTerm.ID, 80), score(c.bob.ID, m, c.endTerm.ID, 80),
			score(c.carl.ID, m, c.test1.ID, -1), score(c.carl.ID, m, c.midTerm.ID, 60),
		}}),
	}
	rec := e.serve(tt)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func periodQuery() string {
	return fmt.Sprintf("?academic_year=%d&term=%d", year, term)
}

func Test_examApi_recordScores(t *testing.T) {
	e := setup(t)
	c := e.classroom(t)
	other := testutil.CreateSubject(t, e.school, "Music", "MUS")

	record := func(scores ...exam.NewScore) []byte {
		return marchallObj(t, exam.RecordScores{Scores: scores})
	}

	tests := []httpTest{
		{name: "capability required", token: getToken(t, e.conf, c.clerk), body: record(score(c.alice.ID, c.maths.ID, c.test1.ID, 50)), wantCode: http.StatusForbidden},
		{name: "empty batch", token: getToken(t, e.conf, c.teacher), body: record(), wantCode: http.StatusBadRequest},
		{
			name: "out of range rejects the batch", token: getToken(t, e.conf, c.teacher), wantCode: http.StatusBadRequest,
			body: record(score(c.alice.ID, c.maths.ID, c.test1.ID, 50), score(c.bob.ID, c.maths.ID, c.test1.ID, 120)),
		},
		{
			name: "not enrolled", token: getToken(t, e.conf, c.teacher), wantCode: http.StatusBadRequest,
			body: record(score(c.alice.ID, other.ID, c.test1.ID, 50)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/api/exams/scores"
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}

	// nothing was persisted
	scores, err := e.exams.QueryScores(context.Background(), &exam.ScoreFilter{})
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func Test_examApi_gradeTermSummary(t *testing.T) {
	e := setup(t)
	c := e.classroom(t)
	e.recordAll(t, c)
	token := getToken(t, e.conf, c.clerk)
	path := "/api/exams/grade/" + c.grade.ID + "/term-summary" + periodQuery()

	positions := func(summary exam.GradeTermSummary) map[string]int {
		out := make(map[string]int)
		for _, s := range summary.Students {
			out[s.StudentID] = s.Position
		}
		return out
	}

	t.Run("period required", func(t *testing.T) {
		tt := httpTest{path: "/api/exams/grade/" + c.grade.ID + "/term-summary", token: token, wantCode: http.StatusBadRequest}
		checkCodeAndData(t, tt, e.serve(tt))
	})

	t.Run("ties share a position", func(t *testing.T) {
		tt := httpTest{path: path, token: token, wantCode: http.StatusOK}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var summary exam.GradeTermSummary
		unmarshal(t, rec, &summary)
		require.Len(t, summary.Students, 3)
		assert.Equal(t, map[string]int{c.alice.ID: 1, c.bob.ID: 1, c.carl.ID: 3}, positions(summary))
		// absent & missing scores count as zero
		assert.True(t, summary.Students[2].Average.Equal(decimal.NewFromInt(20)), summary.Students[2].Average.String())
	})

	t.Run("latest entry wins", func(t *testing.T) {
		later := time.Now().Add(time.Hour)
		retake := score(c.alice.ID, c.maths.ID, c.test1.ID, 50)
		retake.RecordedAt = &later
		tt := httpTest{
			method: http.MethodPost, path: "/api/exams/scores", token: getToken(t, e.conf, c.teacher),
			body: marchallObj(t, exam.RecordScores{Scores: []exam.NewScore{retake}}), wantCode: http.StatusCreated,
		}
		checkCodeAndData(t, tt, e.serve(tt))

		tt = httpTest{path: path, token: token, wantCode: http.StatusOK}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var summary exam.GradeTermSummary
		unmarshal(t, rec, &summary)
		assert.Equal(t, map[string]int{c.bob.ID: 1, c.alice.ID: 2, c.carl.ID: 3}, positions(summary))
		assert.True(t, summary.Students[1].Average.Equal(decimal.NewFromInt(70)), summary.Students[1].Average.String())
	})
}

func Test_examApi_exports(t *testing.T) {
	e := setup(t)
	c := e.classroom(t)
	e.recordAll(t, c)
	token := getToken(t, e.conf, c.teacher)

	tests := []struct {
		name, path, contentType string
	}{
		{name: "gradebook", path: "/gradebook", contentType: "text/csv"},
		{name: "mark schedule", path: "/mark-schedule", contentType: "application/pdf"},
		{name: "analysis", path: "/analysis", contentType: "application/pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.serve(httpTest{path: "/api/exams/grade/" + c.grade.ID + tt.path + periodQuery(), token: token})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), tt.contentType)
			assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=")
			assert.NotZero(t, rec.Body.Len())
		})
	}

	t.Run("unknown grade", func(t *testing.T) {
		rec := e.serve(httpTest{path: "/api/exams/grade/lol/gradebook" + periodQuery(), token: token})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
