package sms

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

const sendWorkers = 4

type (
	Repository interface {
		CreateLogs(ctx context.Context, logs []Log) ([]Log, error)
		// QueryLogs returns the matching logs, most recent first.
		QueryLogs(ctx context.Context, filter *LogFilter) ([]Log, error)
	}

	SchoolRepository interface {
		GetStudent(ctx context.Context, id string) (school.Student, error)
		QueryStudents(ctx context.Context, filter *school.StudentFilter, ordering []core.DBOrdering) ([]school.Student, error)
	}

	ExamSummaries interface {
		StudentTermSummary(ctx context.Context, studentID string, year, term int) (exam.StudentTermSummary, error)
		GradeTermSummary(ctx context.Context, gradeID string, year, term int) (exam.GradeTermSummary, error)
	}

	Service interface {
		SendResults(ctx context.Context, data SendResults, by user.User) (SendReport, error)
		SendCustom(ctx context.Context, data SendCustom, by user.User) (SendReport, error)
		ListLogs(ctx context.Context, filter *LogFilter) ([]Log, error)
	}

	service struct {
		repo   Repository
		school SchoolRepository
		exams  ExamSummaries
		sender core.SmsSender
		logger core.Logger
	}

	outgoing struct {
		student school.Student
		body    string
		meta    map[string]interface{}
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, schoolRepo SchoolRepository, exams ExamSummaries, sender core.SmsSender, logger core.Logger) Service {
	return &service{repo: repo, school: schoolRepo, exams: exams, sender: sender, logger: logger}
}

func (svc *service) students(ctx context.Context, ids []string) ([]school.Student, error) {
	students, err := svc.school.QueryStudents(ctx, &school.StudentFilter{IDs: ids}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	if len(students) != len(ids) {
		found := make(map[string]struct{}, len(students))
		for _, s := range students {
			found[s.ID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				return nil, school.ErrStudentNotFound
			}
		}
	}
	return students, nil
}

func (svc *service) SendResults(ctx context.Context, data SendResults, by user.User) (SendReport, error) {
	var (
		students  []school.Student
		summaries = make(map[string]exam.StudentTermSummary)
	)

	if data.GradeID != "" {
		gradeSum, err := svc.exams.GradeTermSummary(ctx, data.GradeID, data.AcademicYear, data.Term)
		if err != nil {
			return SendReport{}, err
		}
		for _, s := range gradeSum.Students {
			summaries[s.StudentID] = s
		}
		if students, err = svc.school.QueryStudents(ctx, school.ActiveStudentsOf(data.GradeID), nil); err != nil {
			return SendReport{}, errors.Wrap(err, "querying students")
		}
	} else {
		var err error
		if students, err = svc.students(ctx, data.StudentIDs); err != nil {
			return SendReport{}, err
		}
		for _, st := range students {
			s, err := svc.exams.StudentTermSummary(ctx, st.ID, data.AcademicYear, data.Term)
			if err != nil {
				return SendReport{}, err
			}
			summaries[st.ID] = s
		}
	}

	messages := make([]outgoing, 0, len(students))
	for _, st := range students {
		summary, ok := summaries[st.ID]
		if !ok {
			continue
		}
		messages = append(messages, outgoing{
			student: st,
			body:    FormatResults(st, summary),
			meta:    map[string]interface{}{"academic_year": data.AcademicYear, "term": data.Term},
		})
	}
	return svc.send(ctx, Results, messages, by)
}

func (svc *service) SendCustom(ctx context.Context, data SendCustom, by user.User) (SendReport, error) {
	students, err := svc.students(ctx, data.StudentIDs)
	if err != nil {
		return SendReport{}, err
	}
	messages := make([]outgoing, 0, len(students))
	for _, st := range students {
		messages = append(messages, outgoing{student: st, body: data.Message})
	}
	return svc.send(ctx, Custom, messages, by)
}

// send delivers the messages to the parents and logs every attempt.
// A gateway failure is logged as such, it does not fail the operation.
func (svc *service) send(ctx context.Context, kind Kind, messages []outgoing, by user.User) (SendReport, error) {
	var report SendReport
	logs := make([]*Log, len(messages))

	var g errgroup.Group
	g.SetLimit(sendWorkers)
	for i, msg := range messages {
		if msg.student.ParentPhone == "" {
			report.Skipped++
			continue
		}
		i, msg := i, msg
		g.Go(func() error {
			l := &Log{
				StudentID: msg.student.ID,
				Phone:     msg.student.ParentPhone,
				Message:   msg.body,
				Kind:      kind,
				Meta:      msg.meta,
				SentByID:  by.ID,
			}
			// attempts are logged even once ctx is done
			var receipt core.SmsReceipt
			err := ctx.Err()
			if err == nil {
				receipt, err = svc.sender.Send(ctx, core.SmsMessage{To: msg.student.ParentPhone, Body: msg.body})
			}
			l.SentAt = core.NowFunc()
			l.Provider = receipt.Provider
			if err != nil {
				l.Status = Failed
				l.Error = err.Error()
				svc.logger.Warn("sms delivery failed", err, map[string]interface{}{"student_id": msg.student.ID}, by)
			} else {
				l.Status = Sent
				l.MessageID = receipt.MessageID
			}
			logs[i] = l
			return nil
		})
	}
	_ = g.Wait()

	attempts := make([]Log, 0, len(logs))
	for _, l := range logs {
		if l == nil {
			continue
		}
		if l.Status == Sent {
			report.Sent++
		} else {
			report.Failed++
		}
		attempts = append(attempts, *l)
	}
	if len(attempts) == 0 {
		report.Logs = []Log{}
		return report, nil
	}

	saved, err := svc.repo.CreateLogs(context.WithoutCancel(ctx), attempts)
	if err != nil {
		return SendReport{}, errors.Wrap(err, "saving sms logs")
	}
	report.Logs = saved
	return report, nil
}

func (svc *service) ListLogs(ctx context.Context, filter *LogFilter) ([]Log, error) {
	return svc.repo.QueryLogs(ctx, filter)
}
