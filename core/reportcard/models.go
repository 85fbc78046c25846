package reportcard

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/school"
)

// ReportCard is a snapshot of the term results of a student. There is one per (student, year, term);
// generating it again refreshes the snapshot and keeps the remarks.
type ReportCard struct {
	ID              string                  `json:"id"`
	StudentID       string                  `json:"student_id"`
	GradeID         string                  `json:"grade_id"`
	AcademicYear    int                     `json:"academic_year"`
	Term            int                     `json:"term"`
	Summary         exam.StudentTermSummary `json:"summary"`
	TeacherRemarks  string                  `json:"teacher_remarks"`
	HomeroomRemarks string                  `json:"homeroom_remarks"`
	GeneratedAt     time.Time               `json:"generated_at"`
	GeneratedByID   string                  `json:"generated_by_id"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

type Filter struct {
	StudentIDs   []string `query:"student_id"`
	GradeID      string   `query:"grade_id"`
	AcademicYear int      `query:"academic_year"`
	Term         int      `query:"term"`
}

func (f *Filter) Match(rc ReportCard) bool {
	if f == nil {
		return true
	}
	if len(f.StudentIDs) > 0 && !core.StringInSlice(rc.StudentID, f.StudentIDs) {
		return false
	}
	if f.GradeID != "" && rc.GradeID != f.GradeID {
		return false
	}
	if f.AcademicYear != 0 && rc.AcademicYear != f.AcademicYear {
		return false
	}
	if f.Term != 0 && rc.Term != f.Term {
		return false
	}
	return true
}

// Period is the academic year & term a report is about.
type Period struct {
	AcademicYear int `json:"academic_year" query:"academic_year" validate:"required,gte=2000,lte=2100"`
	Term         int `json:"term" query:"term" validate:"required,term"`
}

func (p Period) Validate(validate *validator.Validate) error {
	return validate.Struct(p)
}

func (p Period) String() string {
	return fmt.Sprintf("%d-T%d", p.AcademicYear, p.Term)
}

// Remarks updates the remarks of a report card. Nil fields are left untouched.
type Remarks struct {
	TeacherRemarks  *string `json:"teacher_remarks" validate:"omitempty,max=1000"`
	HomeroomRemarks *string `json:"homeroom_remarks" validate:"omitempty,max=1000"`
}

func (r *Remarks) Validate(validate *validator.Validate) error {
	if r.TeacherRemarks != nil {
		s := core.CleanString(*r.TeacherRemarks)
		r.TeacherRemarks = &s
	}
	if r.HomeroomRemarks != nil {
		s := core.CleanString(*r.HomeroomRemarks)
		r.HomeroomRemarks = &s
	}
	return validate.Struct(r)
}

// Document is everything printed on a report card.
type Document struct {
	SchoolName string
	Card       ReportCard
	Student    school.Student
	Grade      school.Grade
}

// Filename is the name of the PDF of the document, eg. "report-card-A001-2024-T1.pdf".
func (d Document) Filename() string {
	return fmt.Sprintf("report-card-%s-%d-T%d.pdf", slug(d.Student.AdmissionNo), d.Card.AcademicYear, d.Card.Term)
}

// Renderer renders documents as PDF.
type Renderer interface {
	// ReportCards renders the documents in a single PDF, one page per report card.
	ReportCards(w io.Writer, docs ...Document) error
	MarkSchedule(w io.Writer, schoolName string, summary exam.GradeTermSummary) error
	ExamAnalysis(w io.Writer, schoolName string, summary exam.GradeTermSummary, stats exam.GradeSubjectSummary) error
}

func slug(s string) string {
	s = strings.ToLower(core.CleanString(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
