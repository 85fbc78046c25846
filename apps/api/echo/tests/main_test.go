package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/dashboard"
	"github.com/trezcool/shule/core/enrolment"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/reportcard"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/sms"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/email"
	"github.com/trezcool/shule/services/jobs"
	"github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/services/pdf"
	"github.com/trezcool/shule/services/sms"
	"github.com/trezcool/shule/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// env is a server backed by the in-memory store, with access to its repositories & mocks.
type env struct {
	conf   *core.Config
	app    *Server
	db     *inmemdb.DB
	users  user.Repository
	school school.Repository
	enrol  enrolment.Repository
	exams  exam.Repository
	mail   *emailsvc.ConsoleServiceMock
	sender *smssvc.SenderMock
}

func setup(t *testing.T) *env {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logsvc.NewTestLogger()

	// set up DB & repos
	db := inmemdb.Open()
	e := &env{
		conf:   conf,
		db:     db,
		users:  inmemdb.NewUserRepository(db),
		school: inmemdb.NewSchoolRepository(db),
		enrol:  inmemdb.NewEnrolmentRepository(db),
		exams:  inmemdb.NewExamRepository(db),
		mail:   emailsvc.NewConsoleServiceMock(conf, logger),
		sender: smssvc.NewSenderMock(),
	}

	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)
	school.RegisterValidators(validate, translator)
	enrolment.RegisterValidators(validate, translator)
	exam.RegisterValidators(validate, translator)

	// set up services
	jobs := jobsvc.NewQueueMock(logger)
	usrSvc := user.NewServiceMock(conf, e.users, e.mail, logger)
	enrolSvc := enrolment.NewService(e.enrol, e.school, db, db)
	schoolSvc := school.NewService(e.school, db, enrolSvc, usrSvc)
	examSvc := exam.NewService(e.exams, e.school, e.enrol, db)
	rcSvc := reportcard.NewService(
		conf, inmemdb.NewReportCardRepository(db), examSvc, schoolSvc, pdfsvc.NewRenderer(), jobs, e.mail, logger,
	)
	smsSvc := sms.NewService(inmemdb.NewSmsLogRepository(db), e.school, examSvc, e.sender, logger)

	// set up server
	e.app = NewServer(conf, logger, &Deps{
		Validate:      validate,
		Translator:    translator,
		UserSvc:       usrSvc,
		SchoolSvc:     schoolSvc,
		EnrolmentSvc:  enrolSvc,
		ExamSvc:       examSvc,
		ReportCardSvc: rcSvc,
		SmsSvc:        smsSvc,
		DashboardSvc:  dashboard.NewService(inmemdb.NewDashboardRepository(db)),
		Jobs:          jobs,
	})
	return e
}

func (e *env) serve(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	e.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	if _, ok := j2.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
