package school

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// Section groups grades by schooling stage. It bounds the number of optional subjects a student may take.
type Section string

const (
	PrimaryLower   Section = "primary_lower"
	PrimaryUpper   Section = "primary_upper"
	SecondaryLower Section = "secondary_lower"
	SecondaryUpper Section = "secondary_upper"
)

var Sections = []Section{PrimaryLower, PrimaryUpper, SecondaryLower, SecondaryUpper}

// MaxOptionalSubjects returns how many optional subjects a student of the section may take.
func (s Section) MaxOptionalSubjects() int {
	switch s {
	case PrimaryUpper:
		return 2
	case SecondaryLower, SecondaryUpper:
		return 3
	default:
		return 0
	}
}

func (s Section) IsValid() bool {
	for _, sec := range Sections {
		if s == sec {
			return true
		}
	}
	return false
}

type Grade struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Stream            string    `json:"stream"`
	Level             int       `json:"level"`
	Section           Section   `json:"section"`
	HomeroomTeacherID string    `json:"homeroom_teacher_id"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DisplayName is the grade name followed by its stream, eg. "Form 2 East".
func (g Grade) DisplayName() string {
	if g.Stream == "" {
		return g.Name
	}
	return g.Name + " " + g.Stream
}

type Student struct {
	ID          string    `json:"id"`
	AdmissionNo string    `json:"admission_no"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Gender      string    `json:"gender"`
	DateOfBirth time.Time `json:"date_of_birth"`
	GradeID     string    `json:"grade_id"`
	ParentName  string    `json:"parent_name"`
	ParentPhone string    `json:"parent_phone"`
	ParentEmail string    `json:"parent_email"`
	EnrolledAt  time.Time `json:"enrolled_at"`
	IsActive    bool      `json:"is_active"`
	IsArchived  bool      `json:"is_archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// RecentlyEnrolled reports whether the student enrolled within the last 24 hours.
func (s Student) RecentlyEnrolled(now time.Time) bool {
	return !s.EnrolledAt.IsZero() && now.Sub(s.EnrolledAt) < 24*time.Hour
}

type Subject struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ShortCode is the 3 characters, upper-case abbreviation of the subject used in text messages.
// It is taken from the code, falling back to the name, and padded with "X".
func (s Subject) ShortCode() string {
	src := s.Code
	if src == "" {
		src = s.Name
	}
	code := make([]rune, 0, 3)
	for _, r := range src {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			code = append(code, unicode.ToUpper(r))
			if len(code) == 3 {
				break
			}
		}
	}
	for len(code) < 3 {
		code = append(code, 'X')
	}
	return string(code)
}

// NewGrade contains information needed to create a new Grade.
type NewGrade struct {
	Name              string  `json:"name" validate:"required,notblank"`
	Stream            string  `json:"stream"`
	Level             int     `json:"level" validate:"gte=0,lte=20"`
	Section           Section `json:"section" validate:"required,section"`
	HomeroomTeacherID string  `json:"homeroom_teacher_id" validate:"omitempty,uuid"`
}

func (ng *NewGrade) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Stream = core.CleanString(ng.Stream)

	if err := validate.Struct(ng); err != nil {
		return err
	}
	return svc.CheckGradeUniqueness(ctx, ng.Name, ng.Stream)
}

// UpdateGrade defines what information may be provided to modify an existing Grade.
type UpdateGrade struct {
	Name     string  `json:"name"`
	Stream   *string `json:"stream"`
	Level    *int    `json:"level" validate:"omitempty,gte=0,lte=20"`
	Section  Section `json:"section" validate:"omitempty,section"`
	IsActive *bool   `json:"is_active"`
}

func (ug *UpdateGrade) Validate(ctx context.Context, orig Grade, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(ug.Name); name != "" {
		ug.Name = name
	} else {
		ug.Name = orig.Name
	}
	if ug.Stream != nil {
		stream := core.CleanString(*ug.Stream)
		ug.Stream = &stream
	} else {
		ug.Stream = &orig.Stream
	}
	if ug.Section == "" {
		ug.Section = orig.Section
	}

	if err := validate.Struct(ug); err != nil {
		return err
	}
	return svc.CheckGradeUniqueness(ctx, ug.Name, *ug.Stream, orig)
}

type GradeFilter struct {
	Search   string  `query:"search"`
	Section  Section `query:"section"`
	IsActive *bool   `query:"is_active"`
}

func (gf *GradeFilter) Clean() {
	gf.Search = core.CleanString(gf.Search)
}

func (gf *GradeFilter) Match(g Grade) bool {
	if gf == nil {
		return true
	}
	if gf.Search != "" && !strings.Contains(strings.ToLower(g.DisplayName()), strings.ToLower(gf.Search)) {
		return false
	}
	if gf.Section != "" && g.Section != gf.Section {
		return false
	}
	if gf.IsActive != nil && g.IsActive != *gf.IsActive {
		return false
	}
	return true
}

// NewStudent contains information needed to enrol a new Student.
type NewStudent struct {
	AdmissionNo string    `json:"admission_no" validate:"required,notblank,max=32"`
	FirstName   string    `json:"first_name" validate:"required,notblank"`
	LastName    string    `json:"last_name" validate:"required,notblank"`
	Gender      string    `json:"gender" validate:"omitempty,oneof=M F"`
	DateOfBirth time.Time `json:"date_of_birth"`
	GradeID     string    `json:"grade_id" validate:"required,uuid"`
	ParentName  string    `json:"parent_name"`
	ParentPhone string    `json:"parent_phone" validate:"omitempty,e164"`
	ParentEmail string    `json:"parent_email" validate:"omitempty,email"`
	EnrolledAt  time.Time `json:"enrolled_at"`
}

func (ns *NewStudent) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ns.AdmissionNo = core.CleanString(ns.AdmissionNo)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Gender = strings.ToUpper(core.CleanString(ns.Gender))
	ns.ParentName = core.CleanString(ns.ParentName)
	ns.ParentPhone = core.CleanString(ns.ParentPhone)
	ns.ParentEmail = core.CleanString(ns.ParentEmail, true /* lower */)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckAdmissionNoUniqueness(ctx, ns.AdmissionNo)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Changing GradeID moves the student to another grade.
type UpdateStudent struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Gender      string     `json:"gender" validate:"omitempty,oneof=M F"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	GradeID     string     `json:"grade_id" validate:"omitempty,uuid"`
	ParentName  *string    `json:"parent_name"`
	ParentPhone *string    `json:"parent_phone" validate:"omitempty,e164"`
	ParentEmail *string    `json:"parent_email" validate:"omitempty,email"`
	IsActive    *bool      `json:"is_active"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.FirstName = core.CleanString(us.FirstName)
	us.LastName = core.CleanString(us.LastName)
	us.Gender = strings.ToUpper(core.CleanString(us.Gender))
	if us.ParentPhone != nil {
		phone := core.CleanString(*us.ParentPhone)
		us.ParentPhone = &phone
	}
	if us.ParentEmail != nil {
		email := core.CleanString(*us.ParentEmail, true /* lower */)
		us.ParentEmail = &email
	}
	return validate.Struct(us)
}

type StudentFilter struct {
	GradeID    string   `query:"grade_id"`
	GradeIDs   []string `query:"-"`
	IDs        []string `query:"id"`
	Search     string   `query:"search"`
	IsActive   *bool    `query:"is_active"`
	IsArchived *bool    `query:"is_archived"`
	core.Pagination
}

func (sf *StudentFilter) Clean() {
	sf.Search = core.CleanString(sf.Search)
}

// Match applies the filter in memory. Pagination is left to the caller.
func (sf *StudentFilter) Match(s Student) bool {
	if sf == nil {
		return true
	}
	if sf.GradeID != "" && s.GradeID != sf.GradeID {
		return false
	}
	if len(sf.GradeIDs) > 0 && !core.StringInSlice(s.GradeID, sf.GradeIDs) {
		return false
	}
	if len(sf.IDs) > 0 && !core.StringInSlice(s.ID, sf.IDs) {
		return false
	}
	if sf.Search != "" {
		q := strings.ToLower(sf.Search)
		if !(strings.Contains(strings.ToLower(s.FullName()), q) || strings.Contains(strings.ToLower(s.AdmissionNo), q)) {
			return false
		}
	}
	if sf.IsActive != nil && s.IsActive != *sf.IsActive {
		return false
	}
	if sf.IsArchived != nil && s.IsArchived != *sf.IsArchived {
		return false
	}
	return true
}

// ActiveStudentsOf returns a filter selecting the active, non archived students of a grade.
func ActiveStudentsOf(gradeID string) *StudentFilter {
	active, archived := true, false
	return &StudentFilter{GradeID: gradeID, IsActive: &active, IsArchived: &archived}
}

// NewSubject contains information needed to create a new Subject.
type NewSubject struct {
	Name        string `json:"name" validate:"required,notblank"`
	Code        string `json:"code" validate:"required,alphanum,min=2,max=10"`
	Description string `json:"description"`
}

func (ns *NewSubject) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = strings.ToUpper(core.CleanString(ns.Code))
	ns.Description = core.CleanString(ns.Description)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckSubjectCodeUniqueness(ctx, ns.Code)
}

type UpdateSubject struct {
	Name        string  `json:"name"`
	Code        string  `json:"code" validate:"omitempty,alphanum,min=2,max=10"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

func (us *UpdateSubject) Validate(ctx context.Context, orig Subject, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if code := strings.ToUpper(core.CleanString(us.Code)); code != "" {
		us.Code = code
	} else {
		us.Code = orig.Code
	}

	if err := validate.Struct(us); err != nil {
		return err
	}
	return svc.CheckSubjectCodeUniqueness(ctx, us.Code, orig)
}

type SubjectFilter struct {
	Search   string   `query:"search"`
	IDs      []string `query:"id"`
	IsActive *bool    `query:"is_active"`
}

func (sf *SubjectFilter) Clean() {
	sf.Search = core.CleanString(sf.Search)
}

func (sf *SubjectFilter) Match(s Subject) bool {
	if sf == nil {
		return true
	}
	if sf.Search != "" {
		q := strings.ToLower(sf.Search)
		if !(strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(s.Code), q)) {
			return false
		}
	}
	if len(sf.IDs) > 0 && !core.StringInSlice(s.ID, sf.IDs) {
		return false
	}
	if sf.IsActive != nil && s.IsActive != *sf.IsActive {
		return false
	}
	return true
}
