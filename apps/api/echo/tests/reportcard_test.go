package tests

import (
	"net/http"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/dashboard"
	"github.com/trezcool/shule/core/reportcard"
	"github.com/trezcool/shule/core/sms"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

func Test_reportCardApi_generateForStudent(t *testing.T) {
	e := setup(t)
	c := e.classroom(t)
	e.recordAll(t, c)
	path := "/api/reportcards/generate/student/" + c.alice.ID + periodQuery()

	t.Run("capability required", func(t *testing.T) {
		tt := httpTest{method: http.MethodPost, path: path, token: getToken(t, e.conf, c.clerk), wantCode: http.StatusForbidden}
		checkCodeAndData(t, tt, e.serve(tt))
	})

	t.Run("unknown student", func(t *testing.T) {
		tt := httpTest{method: http.MethodPost, path: "/api/reportcards/generate/student/lol" + periodQuery(), token: getToken(t, e.conf, c.teacher), wantCode: http.StatusNotFound}
		checkCodeAndData(t, tt, e.serve(tt))
	})

	t.Run("ranked within the grade", func(t *testing.T) {
		tt := httpTest{method: http.MethodPost, path: path, token: getToken(t, e.conf, c.teacher), wantCode: http.StatusCreated}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var card reportcard.ReportCard
		unmarshal(t, rec, &card)
		assert.Equal(t, c.alice.ID, card.StudentID)
		assert.Equal(t, c.grade.ID, card.GradeID)
		assert.Equal(t, 1, card.Summary.Position)
		assert.Equal(t, 3, card.Summary.OutOf)
		assert.True(t, card.Summary.Average.Equal(decimal.NewFromInt(80)), card.Summary.Average.String())

		// generating again refreshes the same card
		rec = e.serve(tt)
		require.Equal(t, http.StatusCreated, rec.Code)
		var again reportcard.ReportCard
		unmarshal(t, rec, &again)
		assert.Equal(t, card.ID, again.ID)

		rec = e.serve(httpTest{path: "/api/reportcards/" + card.ID + "/pdf", token: getToken(t, e.conf, c.clerk)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
	})
}

func Test_reportCardApi_setRemarks(t *testing.T) {
	e := setup(t)
	c := e.classroom(t)
	e.recordAll(t, c)
	other := testutil.CreateUser(t, e.users, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)

	rec := e.serve(httpTest{
		method: http.MethodPut, path: "/api/grades/" + c.grade.ID + "/homeroom", token: getToken(t, e.conf, c.admin),
		body: marchallObj(t, map[string]string{"teacher_id": c.teacher.ID}),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.serve(httpTest{method: http.MethodPost, path: "/api/reportcards/generate/student/" + c.bob.ID + periodQuery(), token: getToken(t, e.conf, c.teacher)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var card reportcard.ReportCard
	unmarshal(t, rec, &card)
	path := "/api/reportcards/" + card.ID + "/remarks"

	tests := []httpTest{
		{name: "homeroom remarks by another teacher", token: getToken(t, e.conf, other), body: marchallObj(t, map[string]string{"homeroom_remarks": "Keep it up"}), wantCode: http.StatusForbidden},
		{name: "subject remarks by another teacher", token: getToken(t, e.conf, other), body: marchallObj(t, map[string]string{"teacher_remarks": "Good work"}), wantCode: http.StatusOK},
		{name: "homeroom remarks by the homeroom teacher", token: getToken(t, e.conf, c.teacher), body: marchallObj(t, map[string]string{"homeroom_remarks": "  Keep it up "}), wantCode: http.StatusOK},
		{name: "unknown card", token: getToken(t, e.conf, c.teacher), body: marchallObj(t, map[string]string{"teacher_remarks": "?"}), wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPut, path
			if tt.wantCode == http.StatusNotFound {
				tt.path = "/api/reportcards/lol/remarks"
			}
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}

	rec = e.serve(httpTest{path: "/api/reportcards/" + card.ID, token: getToken(t, e.conf, c.clerk)})
	require.Equal(t, http.StatusOK, rec.Code)
	var got reportcard.ReportCard
	unmarshal(t, rec, &got)
	assert.Equal(t, "Good work", got.TeacherRemarks)
	assert.Equal(t, "Keep it up", got.HomeroomRemarks)
}

func Test_reportCardApi_bulkDownload(t *testing.T) {
	e := setup(t)
	c := e.classroom(t)
	e.recordAll(t, c)
	token := getToken(t, e.conf, c.teacher)

	rec := e.serve(httpTest{method: http.MethodPost, path: "/api/reportcards/download/grade/" + c.grade.ID + periodQuery(), token: token})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var job JobResponse
	unmarshal(t, rec, &job)
	require.NotEmpty(t, job.JobID)
	assert.Equal(t, "/api/jobs/"+job.JobID, job.StatusURL)

	rec = e.serve(httpTest{path: job.StatusURL, token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var info core.JobInfo
	unmarshal(t, rec, &info)
	assert.Equal(t, core.JobCompleted, info.Status)
	assert.True(t, info.HasResult)

	rec = e.serve(httpTest{path: job.StatusURL + "/result", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".zip")

	// every student got a card
	rec = e.serve(httpTest{path: "/api/reportcards?grade_id=" + c.grade.ID, token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var cards []reportcard.ReportCard
	unmarshal(t, rec, &cards)
	assert.Len(t, cards, 3)

	t.Run("unknown job", func(t *testing.T) {
		tt := httpTest{path: "/api/jobs/lol", token: token, wantCode: http.StatusNotFound}
		checkCodeAndData(t, tt, e.serve(tt))
	})

	t.Run("unknown grade", func(t *testing.T) {
		tt := httpTest{method: http.MethodPost, path: "/api/reportcards/download/grade/lol" + periodQuery(), token: token, wantCode: http.StatusNotFound}
		checkCodeAndData(t, tt, e.serve(tt))
	})
}

func Test_smsApi_send(t *testing.T) {
	e := setup(t)
	c := e.classroom(t)
	e.recordAll(t, c)
	e.sender.Failing[c.bob.ParentPhone] = errors.New("unreachable")
	token := getToken(t, e.conf, c.clerk)
	everyone := []string{c.alice.ID, c.bob.ID, c.carl.ID}

	send := func(t *testing.T, body SendSmsRequest) sms.SendReport {
		t.Helper()
		rec := e.serve(httpTest{method: http.MethodPost, path: "/api/sms/send", token: token, body: marchallObj(t, body)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var report sms.SendReport
		unmarshal(t, rec, &report)
		return report
	}

	tests := []httpTest{
		{name: "capability required", token: getToken(t, e.conf, c.teacher), body: marchallObj(t, SendSmsRequest{Type: sms.Custom, StudentIDs: everyone, Message: "Hi"}), wantCode: http.StatusForbidden},
		{name: "unknown type", token: token, body: marchallObj(t, SendSmsRequest{Type: "promo", StudentIDs: everyone, Message: "Hi"}), wantCode: http.StatusBadRequest},
		{name: "blank message", token: token, body: marchallObj(t, SendSmsRequest{Type: sms.Custom, StudentIDs: everyone, Message: "   "}), wantCode: http.StatusBadRequest},
		{name: "too long", token: token, body: marchallObj(t, SendSmsRequest{Type: sms.Custom, StudentIDs: everyone, Message: strings.Repeat("a", 161)}), wantCode: http.StatusBadRequest},
		{name: "results without period", token: token, body: marchallObj(t, SendSmsRequest{Type: sms.Results, GradeID: c.grade.ID}), wantCode: http.StatusBadRequest},
		{name: "unknown student", token: token, body: marchallObj(t, SendSmsRequest{Type: sms.Custom, StudentIDs: []string{c.grade.ID}, Message: "Hi"}), wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/api/sms/send"
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}

	t.Run("custom", func(t *testing.T) {
		report := send(t, SendSmsRequest{Type: sms.Custom, StudentIDs: everyone, Message: "School closes at noon"})
		assert.Equal(t, 1, report.Sent)
		assert.Equal(t, 1, report.Failed)
		assert.Equal(t, 1, report.Skipped)
		assert.Len(t, report.Logs, 2)
	})

	t.Run("results", func(t *testing.T) {
		before := len(e.sender.Sent())
		report := send(t, SendSmsRequest{Type: sms.Results, GradeID: c.grade.ID, AcademicYear: year, Term: term})
		assert.Equal(t, 1, report.Sent)
		assert.Equal(t, 1, report.Failed)
		assert.Equal(t, 1, report.Skipped)

		sent := e.sender.Sent()
		require.Len(t, sent, before+1)
		msg := sent[len(sent)-1]
		assert.Equal(t, c.alice.ParentPhone, msg.To)
		assert.Equal(t, "Alice T1/2024 MAT 80-90-70 AVG 80.00 POS 1/3", msg.Body)
	})

	t.Run("logs", func(t *testing.T) {
		tt := httpTest{path: "/api/sms/logs?status=failed", token: token, wantCode: http.StatusOK}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)
		var logs []sms.Log
		unmarshal(t, rec, &logs)
		require.Len(t, logs, 2)
		for _, l := range logs {
			assert.Equal(t, c.bob.ID, l.StudentID)
			assert.Equal(t, "unreachable", l.Error)
		}

		tt = httpTest{path: "/api/sms/logs?kind=results&limit=1", token: token, wantCode: http.StatusOK}
		rec = e.serve(tt)
		checkCodeAndData(t, tt, rec)
		unmarshal(t, rec, &logs)
		assert.Len(t, logs, 1)

		tt = httpTest{path: "/api/sms/logs?sent_from=yesterday", token: token, wantCode: http.StatusBadRequest}
		checkCodeAndData(t, tt, e.serve(tt))
	})
}

func Test_dashboardApi_stats(t *testing.T) {
	e := setup(t)
	c := e.classroom(t)
	e.recordAll(t, c)
	testutil.CreateGrade(t, e.school, "Form 1", "", 9, "secondary_lower")

	t.Run("auth required", func(t *testing.T) {
		tt := httpTest{path: "/api/dashboard", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		checkCodeAndData(t, tt, e.serve(tt))
	})

	rec := e.serve(httpTest{path: "/api/dashboard?academic_year=2024", token: getToken(t, e.conf, c.clerk)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats dashboard.Stats
	unmarshal(t, rec, &stats)

	assert.Equal(t, 3, stats.Students)
	assert.Equal(t, 1, stats.Subjects)
	require.Len(t, stats.Grades, 2)
	// ordered by level
	assert.Equal(t, 0, stats.Grades[0].Students)
	assert.Equal(t, c.grade.ID, stats.Grades[1].GradeID)
	assert.Equal(t, 3, stats.Grades[1].Students)
	require.Len(t, stats.ScoreEntries, 1)
	assert.Equal(t, dashboard.TermCount{AcademicYear: year, Term: term, Entries: 8, Students: 3}, stats.ScoreEntries[0])
	assert.Empty(t, stats.Sms)

	rec = e.serve(httpTest{path: "/api/dashboard?academic_year=2023", token: getToken(t, e.conf, c.clerk)})
	require.Equal(t, http.StatusOK, rec.Code)
	unmarshal(t, rec, &stats)
	assert.Empty(t, stats.ScoreEntries)
}
