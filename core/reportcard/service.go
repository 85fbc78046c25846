package reportcard

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("report card")

	errNoStudents = errors.New("grade has no active students")
)

const (
	pdfContentType = "application/pdf"
	zipContentType = "application/zip"
	csvContentType = "text/csv"

	renderWorkers = 4
)

type (
	Repository interface {
		// UpsertReportCard creates the report card of (StudentID, AcademicYear, Term) or refreshes its snapshot,
		// keeping the ID & remarks of the existing one.
		UpsertReportCard(ctx context.Context, rc ReportCard) (ReportCard, error)
		GetReportCard(ctx context.Context, id string) (ReportCard, error)
		QueryReportCards(ctx context.Context, filter *Filter) ([]ReportCard, error)
		UpdateReportCard(ctx context.Context, rc ReportCard) (ReportCard, error)
	}

	// ExamSummaries is the part of exam.Service report cards are built from.
	ExamSummaries interface {
		StudentTermSummary(ctx context.Context, studentID string, year, term int) (exam.StudentTermSummary, error)
		GradeTermSummary(ctx context.Context, gradeID string, year, term int) (exam.GradeTermSummary, error)
		GradeSubjectSummary(ctx context.Context, gradeID string, year, term int) (exam.GradeSubjectSummary, error)
	}

	SchoolService interface {
		GetGrade(ctx context.Context, id string) (school.Grade, error)
		GetStudent(ctx context.Context, id string) (school.Student, error)
		QueryStudents(ctx context.Context, filter *school.StudentFilter, ordering []core.DBOrdering) ([]school.Student, error)
		IsHomeroomTeacher(ctx context.Context, usr user.User, gradeID string) (bool, error)
	}

	// File is a rendered export.
	File struct {
		Filename    string
		ContentType string
	}

	Service interface {
		GenerateForStudent(ctx context.Context, studentID string, period Period, by user.User) (ReportCard, error)
		// GenerateForGrade, BulkDownload & EmailToParents enqueue a background job and return its ID.
		GenerateForGrade(ctx context.Context, gradeID string, period Period, by user.User) (string, error)
		BulkDownload(ctx context.Context, gradeID string, period Period, by user.User) (string, error)
		EmailToParents(ctx context.Context, gradeID string, period Period, by user.User) (string, error)

		Get(ctx context.Context, id string) (ReportCard, error)
		Query(ctx context.Context, filter *Filter) ([]ReportCard, error)
		RenderPDF(ctx context.Context, id string, w io.Writer) (File, error)
		SetRemarks(ctx context.Context, id string, by user.User, data Remarks) (ReportCard, error)

		GradebookCSV(ctx context.Context, gradeID string, period Period, w io.Writer) (File, error)
		MarkSchedulePDF(ctx context.Context, gradeID string, period Period, w io.Writer) (File, error)
		ExamAnalysisPDF(ctx context.Context, gradeID string, period Period, w io.Writer) (File, error)
	}

	service struct {
		conf     *core.Config
		repo     Repository
		exams    ExamSummaries
		school   SchoolService
		renderer Renderer
		jobs     core.JobQueue
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	conf *core.Config,
	repo Repository,
	exams ExamSummaries,
	schoolSvc SchoolService,
	renderer Renderer,
	jobs core.JobQueue,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	return &service{
		conf:     conf,
		repo:     repo,
		exams:    exams,
		school:   schoolSvc,
		renderer: renderer,
		jobs:     jobs,
		mailSvc:  mailSvc,
		logger:   logger,
	}
}

func (svc *service) snapshot(summary exam.StudentTermSummary, period Period, by user.User) ReportCard {
	now := core.NowFunc()
	return ReportCard{
		StudentID:     summary.StudentID,
		GradeID:       summary.GradeID,
		AcademicYear:  period.AcademicYear,
		Term:          period.Term,
		Summary:       summary,
		GeneratedAt:   now,
		GeneratedByID: by.ID,
		UpdatedAt:     now,
	}
}

// GenerateForStudent snapshots the term summary of the student, ranked within its grade.
func (svc *service) GenerateForStudent(ctx context.Context, studentID string, period Period, by user.User) (ReportCard, error) {
	student, err := svc.school.GetStudent(ctx, studentID)
	if err != nil {
		return ReportCard{}, err
	}

	var summary *exam.StudentTermSummary
	if student.IsActive && !student.IsArchived {
		gradeSum, err := svc.exams.GradeTermSummary(ctx, student.GradeID, period.AcademicYear, period.Term)
		if err != nil {
			return ReportCard{}, errors.Wrap(err, "summarising grade")
		}
		for i := range gradeSum.Students {
			if gradeSum.Students[i].StudentID == studentID {
				summary = &gradeSum.Students[i]
				break
			}
		}
	}
	if summary == nil {
		// not ranked with the grade
		s, err := svc.exams.StudentTermSummary(ctx, studentID, period.AcademicYear, period.Term)
		if err != nil {
			return ReportCard{}, errors.Wrap(err, "summarising student")
		}
		summary = &s
	}

	rc, err := svc.repo.UpsertReportCard(ctx, svc.snapshot(*summary, period, by))
	return rc, errors.Wrap(err, "saving report card")
}

// generateGrade snapshots the report cards of every active student of the grade.
func (svc *service) generateGrade(ctx context.Context, grade school.Grade, period Period, by user.User) ([]Document, error) {
	students, err := svc.school.QueryStudents(ctx, school.ActiveStudentsOf(grade.ID), nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	if len(students) == 0 {
		return nil, errNoStudents
	}
	byID := make(map[string]school.Student, len(students))
	for _, s := range students {
		byID[s.ID] = s
	}

	gradeSum, err := svc.exams.GradeTermSummary(ctx, grade.ID, period.AcademicYear, period.Term)
	if err != nil {
		return nil, errors.Wrap(err, "summarising grade")
	}

	docs := make([]Document, 0, len(gradeSum.Students))
	for _, summary := range gradeSum.Students {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		rc, err := svc.repo.UpsertReportCard(ctx, svc.snapshot(summary, period, by))
		if err != nil {
			return nil, errors.Wrap(err, "saving report card")
		}
		docs = append(docs, Document{
			SchoolName: svc.conf.AppName,
			Card:       rc,
			Student:    byID[summary.StudentID],
			Grade:      grade,
		})
	}
	return docs, nil
}

func (svc *service) enqueue(ctx context.Context, name, gradeID string, fn func(ctx context.Context, grade school.Grade) (*core.JobResult, error)) (string, error) {
	grade, err := svc.school.GetGrade(ctx, gradeID)
	if err != nil {
		return "", err
	}
	id, err := svc.jobs.Enqueue(name, func(ctx context.Context) (*core.JobResult, error) {
		return fn(ctx, grade)
	})
	return id, errors.Wrap(err, "enqueuing job")
}

// GenerateForGrade enqueues the generation of the grade report cards. The job result is a single PDF.
func (svc *service) GenerateForGrade(ctx context.Context, gradeID string, period Period, by user.User) (string, error) {
	return svc.enqueue(ctx, "reportcards:generate", gradeID, func(ctx context.Context, grade school.Grade) (*core.JobResult, error) {
		docs, err := svc.generateGrade(ctx, grade, period, by)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err = svc.renderer.ReportCards(&buf, docs...); err != nil {
			return nil, errors.Wrap(err, "rendering report cards")
		}
		return &core.JobResult{
			Filename:    fmt.Sprintf("report-cards-%s-%s.pdf", slug(grade.DisplayName()), period),
			ContentType: pdfContentType,
			Content:     buf.Bytes(),
		}, nil
	})
}

// renderEach renders every document in its own PDF, concurrently.
func (svc *service) renderEach(ctx context.Context, docs []Document) ([][]byte, error) {
	pdfs := make([][]byte, len(docs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(renderWorkers)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := svc.renderer.ReportCards(&buf, doc); err != nil {
				return errors.Wrapf(err, "rendering report card of %s", doc.Student.AdmissionNo)
			}
			pdfs[i] = buf.Bytes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pdfs, nil
}

// BulkDownload enqueues the generation of the grade report cards. The job result is a ZIP with one PDF per student.
func (svc *service) BulkDownload(ctx context.Context, gradeID string, period Period, by user.User) (string, error) {
	return svc.enqueue(ctx, "reportcards:download", gradeID, func(ctx context.Context, grade school.Grade) (*core.JobResult, error) {
		docs, err := svc.generateGrade(ctx, grade, period, by)
		if err != nil {
			return nil, err
		}
		pdfs, err := svc.renderEach(ctx, docs)
		if err != nil {
			return nil, err
		}

		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		for i, doc := range docs {
			f, err := zw.Create(doc.Filename())
			if err != nil {
				return nil, errors.Wrap(err, "adding zip entry")
			}
			if _, err = f.Write(pdfs[i]); err != nil {
				return nil, errors.Wrap(err, "writing zip entry")
			}
		}
		if err = zw.Close(); err != nil {
			return nil, errors.Wrap(err, "closing zip")
		}
		return &core.JobResult{
			Filename:    fmt.Sprintf("report-cards-%s-%s.zip", slug(grade.DisplayName()), period),
			ContentType: zipContentType,
			Content:     buf.Bytes(),
		}, nil
	})
}

// EmailToParents enqueues the generation of the grade report cards and emails each one to the student's parent.
// Students without a parent email are skipped.
func (svc *service) EmailToParents(ctx context.Context, gradeID string, period Period, by user.User) (string, error) {
	return svc.enqueue(ctx, "reportcards:email", gradeID, func(ctx context.Context, grade school.Grade) (*core.JobResult, error) {
		docs, err := svc.generateGrade(ctx, grade, period, by)
		if err != nil {
			return nil, err
		}

		var withEmail []Document
		for _, doc := range docs {
			if doc.Student.ParentEmail != "" {
				withEmail = append(withEmail, doc)
			}
		}
		pdfs, err := svc.renderEach(ctx, withEmail)
		if err != nil {
			return nil, err
		}

		messages := make([]*core.EmailMessage, 0, len(withEmail))
		for i, doc := range withEmail {
			msg := &core.EmailMessage{
				To:           []mail.Address{{Name: doc.Student.ParentName, Address: doc.Student.ParentEmail}},
				Subject:      fmt.Sprintf("%s report card: %s", period, doc.Student.FullName()),
				TemplateName: "report_card",
				TemplateData: map[string]interface{}{
					"ParentName":   doc.Student.ParentName,
					"StudentName":  doc.Student.FullName(),
					"Grade":        grade.DisplayName(),
					"AcademicYear": period.AcademicYear,
					"Term":         period.Term,
					"Average":      doc.Card.Summary.Average.StringFixed(2),
					"SchoolName":   svc.conf.AppName,
				},
			}
			if err = msg.Attach(bytes.NewReader(pdfs[i]), doc.Filename(), pdfContentType); err != nil {
				return nil, errors.Wrap(err, "attaching report card")
			}
			messages = append(messages, msg)
		}
		svc.mailSvc.SendMessages(messages...)

		svc.logger.Info("report cards emailed", map[string]interface{}{
			"grade_id": grade.ID,
			"period":   period.String(),
			"sent":     len(messages),
			"skipped":  len(docs) - len(messages),
		})
		return nil, nil
	})
}

func (svc *service) Get(ctx context.Context, id string) (ReportCard, error) {
	return svc.repo.GetReportCard(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *Filter) ([]ReportCard, error) {
	return svc.repo.QueryReportCards(ctx, filter)
}

func (svc *service) document(ctx context.Context, rc ReportCard) (Document, error) {
	student, err := svc.school.GetStudent(ctx, rc.StudentID)
	if err != nil {
		return Document{}, err
	}
	grade, err := svc.school.GetGrade(ctx, rc.GradeID)
	if err != nil {
		return Document{}, err
	}
	return Document{SchoolName: svc.conf.AppName, Card: rc, Student: student, Grade: grade}, nil
}

func (svc *service) RenderPDF(ctx context.Context, id string, w io.Writer) (File, error) {
	rc, err := svc.repo.GetReportCard(ctx, id)
	if err != nil {
		return File{}, err
	}
	doc, err := svc.document(ctx, rc)
	if err != nil {
		return File{}, err
	}
	if err = svc.renderer.ReportCards(w, doc); err != nil {
		return File{}, errors.Wrap(err, "rendering report card")
	}
	return File{Filename: doc.Filename(), ContentType: pdfContentType}, nil
}

// SetRemarks updates the remarks of a report card.
// Homeroom remarks are reserved to the homeroom teacher of the grade and to admins.
func (svc *service) SetRemarks(ctx context.Context, id string, by user.User, data Remarks) (ReportCard, error) {
	rc, err := svc.repo.GetReportCard(ctx, id)
	if err != nil {
		return ReportCard{}, err
	}

	if data.HomeroomRemarks != nil && !by.IsAdmin() {
		ok, err := svc.school.IsHomeroomTeacher(ctx, by, rc.GradeID)
		if err != nil {
			return ReportCard{}, err
		}
		if !ok {
			return ReportCard{}, core.ErrForbidden
		}
	}

	if data.TeacherRemarks != nil {
		rc.TeacherRemarks = *data.TeacherRemarks
	}
	if data.HomeroomRemarks != nil {
		rc.HomeroomRemarks = *data.HomeroomRemarks
	}
	rc.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateReportCard(ctx, rc)
}

func (svc *service) GradebookCSV(ctx context.Context, gradeID string, period Period, w io.Writer) (File, error) {
	summary, err := svc.exams.GradeTermSummary(ctx, gradeID, period.AcademicYear, period.Term)
	if err != nil {
		return File{}, err
	}
	if err = WriteGradebook(w, summary); err != nil {
		return File{}, errors.Wrap(err, "writing gradebook")
	}
	return File{
		Filename:    fmt.Sprintf("gradebook-%s-%s.csv", slug(summary.GradeName), period),
		ContentType: csvContentType,
	}, nil
}

func (svc *service) MarkSchedulePDF(ctx context.Context, gradeID string, period Period, w io.Writer) (File, error) {
	summary, err := svc.exams.GradeTermSummary(ctx, gradeID, period.AcademicYear, period.Term)
	if err != nil {
		return File{}, err
	}
	if err = svc.renderer.MarkSchedule(w, svc.conf.AppName, summary); err != nil {
		return File{}, errors.Wrap(err, "rendering mark schedule")
	}
	return File{
		Filename:    fmt.Sprintf("mark-schedule-%s-%s.pdf", slug(summary.GradeName), period),
		ContentType: pdfContentType,
	}, nil
}

func (svc *service) ExamAnalysisPDF(ctx context.Context, gradeID string, period Period, w io.Writer) (File, error) {
	var (
		summary exam.GradeTermSummary
		stats   exam.GradeSubjectSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summary, err = svc.exams.GradeTermSummary(gctx, gradeID, period.AcademicYear, period.Term)
		return err
	})
	g.Go(func() (err error) {
		stats, err = svc.exams.GradeSubjectSummary(gctx, gradeID, period.AcademicYear, period.Term)
		return err
	})
	if err := g.Wait(); err != nil {
		return File{}, err
	}

	if err := svc.renderer.ExamAnalysis(w, svc.conf.AppName, summary, stats); err != nil {
		return File{}, errors.Wrap(err, "rendering exam analysis")
	}
	return File{
		Filename:    fmt.Sprintf("exam-analysis-%s-%s.pdf", slug(summary.GradeName), period),
		ContentType: pdfContentType,
	}, nil
}
