package exam

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
)

// Slot is the place of an exam type in the term summary.
type Slot string

const (
	Test1     Slot = "test1"
	MidTerm   Slot = "mid_term"
	EndOfTerm Slot = "end_of_term"
	Other     Slot = "other" // recorded, but not part of the term summary
)

var (
	Slots        = []Slot{Test1, MidTerm, EndOfTerm, Other}
	SummarySlots = []Slot{Test1, MidTerm, EndOfTerm}

	DefaultMaxScore = decimal.NewFromInt(100)
	// PassMark is the average from which a subject is passed.
	PassMark = decimal.NewFromInt(50)
)

// ClassifyExamType derives the slot of an exam type from its name (case-insensitive):
//
//	"test 1", "test1", "t1"      -> Test1
//	"mid", "test 2", "test2"     -> MidTerm
//	"end" together with "term"   -> EndOfTerm
//
// Anything else is Other. It only provides a default: the slot is stored on the exam type.
func ClassifyExamType(name string) Slot {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "test 1") || strings.Contains(n, "test1") || strings.Contains(n, "t1"):
		return Test1
	case strings.Contains(n, "mid") || strings.Contains(n, "test 2") || strings.Contains(n, "test2"):
		return MidTerm
	case strings.Contains(n, "end") && strings.Contains(n, "term"):
		return EndOfTerm
	default:
		return Other
	}
}

type ExamType struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Slot      Slot            `json:"slot"`
	Order     int             `json:"order"`
	MaxScore  decimal.Decimal `json:"max_score"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ExamScore is one scored (or absent) attempt. Several rows may exist for the same
// (student, subject, exam type, year, term): the latest RecordedAt is authoritative.
type ExamScore struct {
	ID           string          `json:"id"`
	StudentID    string          `json:"student_id"`
	SubjectID    string          `json:"subject_id"`
	ExamTypeID   string          `json:"exam_type_id"`
	AcademicYear int             `json:"academic_year"`
	Term         int             `json:"term"`
	Score        decimal.Decimal `json:"score"`
	IsAbsent     bool            `json:"is_absent"`
	Remarks      string          `json:"remarks"`
	RecordedAt   time.Time       `json:"recorded_at"`
	RecordedByID string          `json:"recorded_by_id"`
}

// Value is what the score contributes to sums & averages: absent counts as zero.
func (s ExamScore) Value() decimal.Decimal {
	if s.IsAbsent {
		return decimal.Zero
	}
	return s.Score
}

type scoreKey struct {
	StudentID    string
	SubjectID    string
	ExamTypeID   string
	AcademicYear int
	Term         int
}

func (s ExamScore) key() scoreKey {
	return scoreKey{s.StudentID, s.SubjectID, s.ExamTypeID, s.AcademicYear, s.Term}
}

// NewExamType contains information needed to create a new ExamType.
// The slot defaults to the one derived from the name.
type NewExamType struct {
	Name     string           `json:"name" validate:"required,notblank,max=64"`
	Slot     Slot             `json:"slot" validate:"omitempty,exam_slot"`
	Order    int              `json:"order" validate:"gte=0"`
	MaxScore *decimal.Decimal `json:"max_score"`
}

func (ne *NewExamType) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ne.Name = core.CleanString(ne.Name)
	if err := validate.Struct(ne); err != nil {
		return err
	}
	if ne.MaxScore != nil && !ne.MaxScore.IsPositive() {
		return core.NewValidationError(nil, core.FieldError{Field: "max_score", Error: errMaxScore})
	}
	if ne.Slot == "" {
		ne.Slot = ClassifyExamType(ne.Name)
	}
	return svc.CheckExamTypeUniqueness(ctx, ne.Name)
}

type UpdateExamType struct {
	Name     string           `json:"name"`
	Slot     Slot             `json:"slot" validate:"omitempty,exam_slot"`
	Order    *int             `json:"order" validate:"omitempty,gte=0"`
	MaxScore *decimal.Decimal `json:"max_score"`
	IsActive *bool            `json:"is_active"`
}

func (ue *UpdateExamType) Validate(ctx context.Context, orig ExamType, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(ue.Name); name != "" {
		ue.Name = name
	} else {
		ue.Name = orig.Name
	}
	if err := validate.Struct(ue); err != nil {
		return err
	}
	if ue.MaxScore != nil && !ue.MaxScore.IsPositive() {
		return core.NewValidationError(nil, core.FieldError{Field: "max_score", Error: errMaxScore})
	}
	return svc.CheckExamTypeUniqueness(ctx, ue.Name, orig)
}

// NewScore contains information needed to record an exam score.
// RecordedAt defaults to now; an earlier value records a back-dated entry.
type NewScore struct {
	StudentID    string           `json:"student_id" validate:"required,uuid"`
	SubjectID    string           `json:"subject_id" validate:"required,uuid"`
	ExamTypeID   string           `json:"exam_type_id" validate:"required,uuid"`
	AcademicYear int              `json:"academic_year" validate:"required,gte=2000,lte=2100"`
	Term         int              `json:"term" validate:"required,term"`
	Score        *decimal.Decimal `json:"score"`
	IsAbsent     bool             `json:"is_absent"`
	Remarks      string           `json:"remarks" validate:"max=255"`
	RecordedAt   *time.Time       `json:"recorded_at"`
}

type RecordScores struct {
	Scores []NewScore `json:"scores" validate:"required,min=1,max=2000,dive"`
}

func (rs *RecordScores) Validate(validate *validator.Validate) error {
	for i := range rs.Scores {
		rs.Scores[i].Remarks = core.CleanString(rs.Scores[i].Remarks)
	}
	return validate.Struct(rs)
}

type ScoreFilter struct {
	StudentIDs   []string `query:"student_id"`
	SubjectIDs   []string `query:"subject_id"`
	ExamTypeIDs  []string `query:"exam_type_id"`
	GradeID      string   `query:"grade_id"`
	AcademicYear int      `query:"academic_year"`
	Term         int      `query:"term"`
	LatestOnly   bool     `query:"latest_only"`
}

// Match applies the filter in memory. GradeID must have been resolved to StudentIDs.
func (f *ScoreFilter) Match(s ExamScore) bool {
	if f == nil {
		return true
	}
	if len(f.StudentIDs) > 0 && !core.StringInSlice(s.StudentID, f.StudentIDs) {
		return false
	}
	if len(f.SubjectIDs) > 0 && !core.StringInSlice(s.SubjectID, f.SubjectIDs) {
		return false
	}
	if len(f.ExamTypeIDs) > 0 && !core.StringInSlice(s.ExamTypeID, f.ExamTypeIDs) {
		return false
	}
	if f.AcademicYear != 0 && s.AcademicYear != f.AcademicYear {
		return false
	}
	if f.Term != 0 && s.Term != f.Term {
		return false
	}
	return true
}

type ExamTypeFilter struct {
	IsActive *bool `query:"is_active"`
	Slot     Slot  `query:"slot"`
}

func (f *ExamTypeFilter) Match(et ExamType) bool {
	if f == nil {
		return true
	}
	if f.IsActive != nil && et.IsActive != *f.IsActive {
		return false
	}
	if f.Slot != "" && et.Slot != f.Slot {
		return false
	}
	return true
}
