package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/enrolment"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

func Test_schoolApi_grades(t *testing.T) {
	e := setup(t)
	admin := testutil.CreateUser(t, e.users, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, e.users, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	clerk := testutil.CreateUser(t, e.users, "Clerk", "clerk", "clerk@test.cd", "", []string{user.RoleStaff}, true)
	existing := testutil.CreateGrade(t, e.school, "Form 1", "East", 9, school.SecondaryLower)
	adminToken := getToken(t, e.conf, admin)

	newGrade := func(name, stream string, section school.Section) []byte {
		return marchallObj(t, school.NewGrade{Name: name, Stream: stream, Level: 9, Section: section})
	}

	tests := []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/api/grades", wantCode: http.StatusUnauthorized},
		{
			name: "school manager required", method: http.MethodPost, path: "/api/grades", token: getToken(t, e.conf, teacher),
			body: newGrade("Form 1", "West", school.SecondaryLower), wantCode: http.StatusForbidden,
		},
		{
			name: "unknown section", method: http.MethodPost, path: "/api/grades", token: adminToken,
			body: newGrade("Form 1", "West", "lol"), wantCode: http.StatusBadRequest,
		},
		{
			name: "duplicate", method: http.MethodPost, path: "/api/grades", token: adminToken,
			body: newGrade(" form 1 ", "east", school.SecondaryLower), wantCode: http.StatusBadRequest,
		},
		{
			name: "ok", method: http.MethodPost, path: "/api/grades", token: adminToken,
			body: newGrade("Form 1", "West", school.SecondaryLower), wantCode: http.StatusCreated,
		},
		{name: "retrieve", path: "/api/grades/" + existing.ID, token: getToken(t, e.conf, clerk), wantCode: http.StatusOK, wantData: marchallObj(t, existing)},
		{
			name: "retrieve unknown", path: "/api/grades/lol", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}
}

func Test_schoolApi_homeroom(t *testing.T) {
	e := setup(t)
	admin := testutil.CreateUser(t, e.users, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, e.users, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	clerk := testutil.CreateUser(t, e.users, "Clerk", "clerk", "clerk@test.cd", "", []string{user.RoleStaff}, true)
	grade := testutil.CreateGrade(t, e.school, "Grade 5", "", 5, school.PrimaryUpper)
	adminToken := getToken(t, e.conf, admin)

	path := "/api/grades/" + grade.ID + "/homeroom"
	tests := []httpTest{
		{name: "not a teacher", body: marchallObj(t, map[string]string{"teacher_id": clerk.ID}), wantCode: http.StatusBadRequest},
		{name: "ok", body: marchallObj(t, map[string]string{"teacher_id": teacher.ID}), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path, tt.token = http.MethodPut, path, adminToken
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}

	got, err := e.school.GetGrade(context.Background(), grade.ID)
	require.NoError(t, err)
	assert.Equal(t, teacher.ID, got.HomeroomTeacherID)
}

func Test_schoolApi_curriculum(t *testing.T) {
	e := setup(t)
	admin := testutil.CreateUser(t, e.users, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	adminToken := getToken(t, e.conf, admin)

	grade := testutil.CreateGrade(t, e.school, "Form 2", "", 10, school.SecondaryLower)
	lower := testutil.CreateGrade(t, e.school, "Grade 2", "", 2, school.PrimaryLower)
	maths := testutil.CreateSubject(t, e.school, "Mathematics", "MAT")
	music := testutil.CreateSubject(t, e.school, "Music", "MUS")

	weekAgo := time.Now().Add(-7 * 24 * time.Hour)
	alice := testutil.CreateStudent(t, e.school, "A001", "Alice", "Atieno", grade.ID, "+254700000001", weekAgo)
	bob := testutil.CreateStudent(t, e.school, "A002", "Bob", "Baraka", grade.ID, "+254700000002", time.Now().Add(-time.Hour))
	carl := testutil.CreateStudent(t, e.school, "A003", "Carl", "Chege", lower.ID, "+254700000003", time.Now().Add(-time.Hour))
	// bob already takes maths by hand
	testutil.CreateStudentSubject(t, e.enrol, bob.ID, maths.ID, enrolment.Manual, "")

	t.Run("assign to recent students only", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPost, path: "/api/subjects/" + maths.ID + "/assign-to-grade/" + grade.ID, token: adminToken,
			body:     marchallObj(t, enrolment.AssignOptions{AutoAssignToStudents: true}),
			wantCode: http.StatusOK,
		}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var res enrolment.AssignResult
		unmarshal(t, rec, &res)
		assert.Equal(t, 1, res.Assigned)
		assert.Equal(t, 1, res.Promoted)
		assert.Equal(t, 1, res.Skipped) // alice enrolled a week ago
	})

	t.Run("sync reaches every student", func(t *testing.T) {
		tt := httpTest{method: http.MethodPost, path: "/api/grades/" + grade.ID + "/sync", token: adminToken, body: []byte(`{}`), wantCode: http.StatusOK}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var res enrolment.SyncResult
		unmarshal(t, rec, &res)
		assert.Equal(t, enrolment.SyncResult{Added: 1}, res)

		tt = httpTest{path: "/api/students/" + alice.ID + "/subjects", token: adminToken, wantCode: http.StatusOK}
		rec = e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var records []enrolment.StudentSubject
		unmarshal(t, rec, &records)
		require.Len(t, records, 1)
		assert.Equal(t, maths.ID, records[0].SubjectID)
		assert.Equal(t, enrolment.Inherited, records[0].SourceType)
		assert.Equal(t, grade.ID, records[0].InheritedFromGradeID)
	})

	t.Run("optional cap rejects the whole assignment", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPost, path: "/api/subjects/" + music.ID + "/assign-to-grade/" + lower.ID, token: adminToken,
			body:     marchallObj(t, enrolment.AssignOptions{IsOptional: true, AutoAssignToStudents: true}),
			wantCode: http.StatusBadRequest,
		}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var body map[string]interface{}
		unmarshal(t, rec, &body)
		assert.Contains(t, body, "subject_ids")
		assert.Equal(t, map[string]interface{}{"limit": 0.0, "current": 0.0, "requested": 1.0}, body["details"])

		// nothing persisted
		entries, err := e.enrol.ListGradeSubjects(context.Background(), lower.ID)
		require.NoError(t, err)
		assert.Empty(t, entries)
		records, err := e.enrol.ListStudentSubjects(context.Background(), &enrolment.StudentSubjectFilter{StudentIDs: []string{carl.ID}})
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("students can still join the grade", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPost, path: "/api/students", token: adminToken, wantCode: http.StatusCreated,
			body: marchallObj(t, map[string]interface{}{
				"admission_no": "A004", "first_name": "Dora", "last_name": "Dida", "grade_id": lower.ID,
			}),
		}
		checkCodeAndData(t, tt, e.serve(tt))
	})

	t.Run("remove from grade deactivates inherited", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodDelete, path: "/api/subjects/" + maths.ID + "/assign-to-grade/" + grade.ID + "?remove_inherited=true",
			token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, map[string]int{"deactivated": 2}),
		}
		checkCodeAndData(t, tt, e.serve(tt))

		tt = httpTest{path: "/api/students/" + bob.ID + "/subjects?active_only=true", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t)}
		checkCodeAndData(t, tt, e.serve(tt))
	})
}

func Test_schoolApi_students(t *testing.T) {
	e := setup(t)
	admin := testutil.CreateUser(t, e.users, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	adminToken := getToken(t, e.conf, admin)

	grade := testutil.CreateGrade(t, e.school, "Form 3", "", 11, school.SecondaryUpper)
	maths := testutil.CreateSubject(t, e.school, "Mathematics", "MAT")
	testutil.CreateGradeSubject(t, e.enrol, grade.ID, maths.ID, false, true)

	var student school.Student
	t.Run("create enrols into the curriculum", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPost, path: "/api/students", token: adminToken, wantCode: http.StatusCreated,
			body: marchallObj(t, map[string]interface{}{
				"admission_no": "F3-001", "first_name": "Dan", "last_name": "Dida",
				"grade_id": grade.ID, "parent_phone": "+254700000009",
			}),
		}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)
		unmarshal(t, rec, &student)

		records, err := e.enrol.ListStudentSubjects(context.Background(), &enrolment.StudentSubjectFilter{StudentIDs: []string{student.ID}, ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, enrolment.Inherited, records[0].SourceType)
	})

	t.Run("duplicate admission number", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPost, path: "/api/students", token: adminToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, map[string]interface{}{
				"admission_no": "F3-001", "first_name": "Eve", "last_name": "Dida", "grade_id": grade.ID,
			}),
		}
		checkCodeAndData(t, tt, e.serve(tt))
	})

	t.Run("delete archives first", func(t *testing.T) {
		tt := httpTest{method: http.MethodDelete, path: "/api/students/" + student.ID, token: adminToken, wantCode: http.StatusNoContent}
		checkCodeAndData(t, tt, e.serve(tt))

		got, err := e.school.GetStudent(context.Background(), student.ID)
		require.NoError(t, err)
		assert.True(t, got.IsArchived)

		tt = httpTest{path: "/api/grades/" + grade.ID + "/students", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t)}
		checkCodeAndData(t, tt, e.serve(tt))
	})
}
