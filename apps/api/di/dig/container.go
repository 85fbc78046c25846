package dig_container

import (
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"gorm.io/gorm"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/dashboard"
	"github.com/trezcool/shule/core/enrolment"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/reportcard"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/sms"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	jobsvc "github.com/trezcool/shule/services/jobs"
	logsvc "github.com/trezcool/shule/services/logger"
	pdfsvc "github.com/trezcool/shule/services/pdf"
	smssvc "github.com/trezcool/shule/services/sms"
	"github.com/trezcool/shule/storage/database"
	"github.com/trezcool/shule/storage/database/gormrepos"
	"github.com/trezcool/shule/storage/database/sqlxrepos"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal("setting up database", err)
	}
	return db
}

func newGorm(db *sqlx.DB, conf *core.Config, loggerParam DBLoggerParam) *gorm.DB {
	stdLogger := log.New(os.Stdout, "SQL : ", log.LstdFlags|log.Lmicroseconds)
	gdb, err := database.NewGorm(db, conf, stdLogger)
	if err != nil {
		loggerParam.Logger.Fatal("opening gorm session", err)
	}
	return gdb
}

func newTransactor(store *gormrepos.Store) core.Transactor { return store }
func newLocker(store *gormrepos.Store) core.Locker         { return store }

func newValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)
	school.RegisterValidators(validate, translator)
	enrolment.RegisterValidators(validate, translator)
	exam.RegisterValidators(validate, translator)
	return validate, translator
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, os.Stdout, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newSmsSender(conf *core.Config) core.SmsSender {
	return smssvc.New(conf, os.Stdout)
}

func newJobQueue(queue *jobsvc.Queue) core.JobQueue { return queue }

func newScheduler(conf *core.Config, enrolSvc enrolment.Service, logger core.Logger) (*jobsvc.Scheduler, error) {
	return jobsvc.NewScheduler(conf, enrolSvc, logger)
}

// Services

func newEnrolmentService(repo enrolment.Repository, schoolRepo school.Repository, tx core.Transactor, locker core.Locker) enrolment.Service {
	return enrolment.NewService(repo, schoolRepo, tx, locker)
}

func newSchoolService(repo school.Repository, tx core.Transactor, enrolSvc enrolment.Service, usrSvc user.Service) school.Service {
	return school.NewService(repo, tx, enrolSvc, usrSvc)
}

func newExamService(repo exam.Repository, schoolRepo school.Repository, enrolRepo enrolment.Repository, tx core.Transactor) exam.Service {
	return exam.NewService(repo, schoolRepo, enrolRepo, tx)
}

type reportCardParams struct {
	dig.In
	Conf      *core.Config
	Repo      reportcard.Repository
	ExamSvc   exam.Service
	SchoolSvc school.Service
	Renderer  reportcard.Renderer
	Jobs      core.JobQueue
	MailSvc   core.EmailService
	Logger    core.Logger
}

func newReportCardService(p reportCardParams) reportcard.Service {
	return reportcard.NewService(p.Conf, p.Repo, p.ExamSvc, p.SchoolSvc, p.Renderer, p.Jobs, p.MailSvc, p.Logger)
}

func newSmsService(repo sms.Repository, schoolRepo school.Repository, examSvc exam.Service, sender core.SmsSender, logger core.Logger) sms.Service {
	return sms.NewService(repo, schoolRepo, examSvc, sender, logger)
}

type serverDeps struct {
	dig.In
	Validate      *validator.Validate
	Translator    ut.Translator
	UserSvc       user.Service
	SchoolSvc     school.Service
	EnrolmentSvc  enrolment.Service
	ExamSvc       exam.Service
	ReportCardSvc reportcard.Service
	SmsSvc        sms.Service
	DashboardSvc  dashboard.Service
	Jobs          core.JobQueue
}

func newServerDeps(p serverDeps) *echoapi.Deps {
	return &echoapi.Deps{
		Validate:      p.Validate,
		Translator:    p.Translator,
		UserSvc:       p.UserSvc,
		SchoolSvc:     p.SchoolSvc,
		EnrolmentSvc:  p.EnrolmentSvc,
		ExamSvc:       p.ExamSvc,
		ReportCardSvc: p.ReportCardSvc,
		SmsSvc:        p.SmsSvc,
		DashboardSvc:  p.DashboardSvc,
		Jobs:          p.Jobs,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))

	// storage
	must(c.Provide(newDB))
	must(c.Provide(newGorm))
	must(c.Provide(gormrepos.NewStore))
	must(c.Provide(newTransactor))
	must(c.Provide(newLocker))
	must(c.Provide(gormrepos.NewUserRepository))
	must(c.Provide(gormrepos.NewSchoolRepository))
	must(c.Provide(gormrepos.NewEnrolmentRepository))
	must(c.Provide(gormrepos.NewExamRepository))
	must(c.Provide(gormrepos.NewReportCardRepository))
	must(c.Provide(gormrepos.NewSmsLogRepository))
	must(c.Provide(sqlxrepos.NewDashboardRepository))

	// infrastructure
	must(c.Provide(newValidator))
	must(c.Provide(newEmailService))
	must(c.Provide(newSmsSender))
	must(c.Provide(pdfsvc.NewRenderer))
	must(c.Provide(jobsvc.NewQueue))
	must(c.Provide(newJobQueue))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(newEnrolmentService))
	must(c.Provide(newSchoolService))
	must(c.Provide(newExamService))
	must(c.Provide(newReportCardService))
	must(c.Provide(newSmsService))
	must(c.Provide(dashboard.NewService))
	must(c.Provide(newScheduler))

	must(c.Provide(newServerDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
