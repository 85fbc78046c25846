package enrolment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// SourceType tells where a student's subject enrolment comes from.
//
//	Manual:    set directly by staff, not (yet) backed by the grade curriculum.
//	Inherited: derived from the grade curriculum.
//	Custom:    explicit override, never touched by grade level automation.
//
// Manual may be promoted to Inherited; nothing goes the other way.
type SourceType string

const (
	Manual    SourceType = "manual"
	Inherited SourceType = "inherited"
	Custom    SourceType = "custom"
)

// GradeSubject is a curriculum entry: subject SubjectID is taught in grade GradeID.
type GradeSubject struct {
	ID                   string    `json:"id"`
	GradeID              string    `json:"grade_id"`
	SubjectID            string    `json:"subject_id"`
	IsOptional           bool      `json:"is_optional"`
	AutoAssignToStudents bool      `json:"auto_assign_to_students"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// StudentSubject is the enrolment of a student in a subject.
// There is at most one record per (student, subject); dropped records are deactivated and re-activated later.
type StudentSubject struct {
	ID                   string     `json:"id"`
	StudentID            string     `json:"student_id"`
	SubjectID            string     `json:"subject_id"`
	SourceType           SourceType `json:"source_type"`
	InheritedFromGradeID string     `json:"inherited_from_grade_id"`
	IsActive             bool       `json:"is_active"`
	EnrolledAt           time.Time  `json:"enrolled_at"`
	CompletedAt          *time.Time `json:"completed_at"`
	DroppedAt            *time.Time `json:"dropped_at"`
	Notes                string     `json:"notes"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// inherit makes the record an active enrolment inherited from gradeID.
func (ss *StudentSubject) inherit(gradeID string, now time.Time) {
	if !ss.IsActive {
		ss.IsActive = true
		ss.EnrolledAt = now
		ss.DroppedAt = nil
		ss.CompletedAt = nil
	}
	ss.SourceType = Inherited
	ss.InheritedFromGradeID = gradeID
	ss.UpdatedAt = now
}

func (ss *StudentSubject) drop(now time.Time) {
	ss.IsActive = false
	ss.DroppedAt = &now
	ss.UpdatedAt = now
}

type StudentSubjectFilter struct {
	StudentIDs           []string
	SubjectIDs           []string
	SourceType           SourceType
	InheritedFromGradeID string
	ActiveOnly           bool
}

// Match applies the filter in memory.
func (f *StudentSubjectFilter) Match(ss StudentSubject) bool {
	if f == nil {
		return true
	}
	if len(f.StudentIDs) > 0 && !core.StringInSlice(ss.StudentID, f.StudentIDs) {
		return false
	}
	if len(f.SubjectIDs) > 0 && !core.StringInSlice(ss.SubjectID, f.SubjectIDs) {
		return false
	}
	if f.SourceType != "" && ss.SourceType != f.SourceType {
		return false
	}
	if f.InheritedFromGradeID != "" && ss.InheritedFromGradeID != f.InheritedFromGradeID {
		return false
	}
	if f.ActiveOnly && !ss.IsActive {
		return false
	}
	return true
}

// AssignOptions are the options of a grade curriculum assignment.
type AssignOptions struct {
	IsOptional           bool `json:"is_optional"`
	AutoAssignToStudents bool `json:"auto_assign_to_students"`
	// AssignToExistingStudents extends auto-assignment to students enrolled more than 24 hours ago.
	AssignToExistingStudents bool `json:"assign_to_existing_students"`
}

type AssignResult struct {
	GradeSubject GradeSubject `json:"grade_subject"`
	Assigned     int          `json:"assigned"` // created + promoted
	Promoted     int          `json:"promoted"` // manual -> inherited
	Skipped      int          `json:"skipped"`
}

type SyncResult struct {
	Added    int `json:"added"`    // created or re-activated
	Promoted int `json:"promoted"` // manual -> inherited
	Removed  int `json:"removed"`  // orphaned inherited enrolments deactivated
	Skipped  int `json:"skipped"`  // optional subjects over the section maximum
}

// AssignStudentSubjects is an explicit assignment of subjects to a student.
type AssignStudentSubjects struct {
	SubjectIDs []string   `json:"subject_ids" validate:"required,min=1,dive,uuid"`
	SourceType SourceType `json:"source_type" validate:"omitempty,source_type"`
	Notes      string     `json:"notes" validate:"max=500"`
}

func (a *AssignStudentSubjects) Validate(validate *validator.Validate) error {
	a.Notes = core.CleanString(a.Notes)
	if a.SourceType == "" {
		a.SourceType = Manual
	}
	a.SubjectIDs = dedupe(a.SubjectIDs)
	return validate.Struct(a)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = core.CleanString(id)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
