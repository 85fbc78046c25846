package gormrepos

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"gorm.io/datatypes"

	"github.com/trezcool/shule/core/enrolment"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/reportcard"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/sms"
	"github.com/trezcool/shule/core/user"
)

// Rows mirror the tables created by the migrations. Timestamps are set by the services.

type userRow struct {
	ID           string         `gorm:"primaryKey;type:uuid"`
	Name         string
	Username     string
	Email        string
	Phone        null.String
	IsActive     bool
	Roles        pq.StringArray `gorm:"type:text[]"`
	PasswordHash []byte
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
	LastLogin    null.Time
}

func (userRow) TableName() string { return "user" }

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		Phone:        null.NewString(usr.Phone, usr.Phone != ""),
		IsActive:     usr.Active(),
		Roles:        usr.Roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() user.User {
	isActive := r.IsActive
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		Phone:        r.Phone.String,
		IsActive:     &isActive,
		Roles:        r.Roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type gradeRow struct {
	ID                string `gorm:"primaryKey;type:uuid"`
	Name              string
	Stream            string
	Level             int
	Section           string
	HomeroomTeacherID null.String `gorm:"type:uuid"`
	IsActive          bool
	CreatedAt         time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime:false"`
}

func (gradeRow) TableName() string { return "grade" }

func newGradeRow(g school.Grade) gradeRow {
	return gradeRow{
		ID:                g.ID,
		Name:              g.Name,
		Stream:            g.Stream,
		Level:             g.Level,
		Section:           string(g.Section),
		HomeroomTeacherID: null.NewString(g.HomeroomTeacherID, g.HomeroomTeacherID != ""),
		IsActive:          g.IsActive,
		CreatedAt:         g.CreatedAt.UTC(),
		UpdatedAt:         g.UpdatedAt.UTC(),
	}
}

func (r gradeRow) grade() school.Grade {
	return school.Grade{
		ID:                r.ID,
		Name:              r.Name,
		Stream:            r.Stream,
		Level:             r.Level,
		Section:           school.Section(r.Section),
		HomeroomTeacherID: r.HomeroomTeacherID.String,
		IsActive:          r.IsActive,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

type studentRow struct {
	ID          string `gorm:"primaryKey;type:uuid"`
	AdmissionNo string
	FirstName   string
	LastName    string
	Gender      null.String
	DateOfBirth null.Time
	GradeID     string `gorm:"type:uuid"`
	ParentName  null.String
	ParentPhone null.String
	ParentEmail null.String
	EnrolledAt  time.Time
	IsActive    bool
	IsArchived  bool
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

func (studentRow) TableName() string { return "student" }

func newStudentRow(s school.Student) studentRow {
	return studentRow{
		ID:          s.ID,
		AdmissionNo: s.AdmissionNo,
		FirstName:   s.FirstName,
		LastName:    s.LastName,
		Gender:      null.NewString(s.Gender, s.Gender != ""),
		DateOfBirth: null.NewTime(s.DateOfBirth, !s.DateOfBirth.IsZero()),
		GradeID:     s.GradeID,
		ParentName:  null.NewString(s.ParentName, s.ParentName != ""),
		ParentPhone: null.NewString(s.ParentPhone, s.ParentPhone != ""),
		ParentEmail: null.NewString(s.ParentEmail, s.ParentEmail != ""),
		EnrolledAt:  s.EnrolledAt.UTC(),
		IsActive:    s.IsActive,
		IsArchived:  s.IsArchived,
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
}

func (r studentRow) student() school.Student {
	return school.Student{
		ID:          r.ID,
		AdmissionNo: r.AdmissionNo,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Gender:      r.Gender.String,
		DateOfBirth: r.DateOfBirth.Time,
		GradeID:     r.GradeID,
		ParentName:  r.ParentName.String,
		ParentPhone: r.ParentPhone.String,
		ParentEmail: r.ParentEmail.String,
		EnrolledAt:  r.EnrolledAt.UTC(),
		IsActive:    r.IsActive,
		IsArchived:  r.IsArchived,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type subjectRow struct {
	ID          string `gorm:"primaryKey;type:uuid"`
	Name        string
	Code        string
	Description null.String
	IsActive    bool
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

func (subjectRow) TableName() string { return "subject" }

func newSubjectRow(s school.Subject) subjectRow {
	return subjectRow{
		ID:          s.ID,
		Name:        s.Name,
		Code:        s.Code,
		Description: null.NewString(s.Description, s.Description != ""),
		IsActive:    s.IsActive,
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
}

func (r subjectRow) subject() school.Subject {
	return school.Subject{
		ID:          r.ID,
		Name:        r.Name,
		Code:        r.Code,
		Description: r.Description.String,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type gradeSubjectRow struct {
	ID                   string `gorm:"primaryKey;type:uuid"`
	GradeID              string `gorm:"type:uuid"`
	SubjectID            string `gorm:"type:uuid"`
	IsOptional           bool
	AutoAssignToStudents bool
	CreatedAt            time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime:false"`
}

func (gradeSubjectRow) TableName() string { return "grade_subject" }

func newGradeSubjectRow(gs enrolment.GradeSubject) gradeSubjectRow {
	return gradeSubjectRow{
		ID:                   gs.ID,
		GradeID:              gs.GradeID,
		SubjectID:            gs.SubjectID,
		IsOptional:           gs.IsOptional,
		AutoAssignToStudents: gs.AutoAssignToStudents,
		CreatedAt:            gs.CreatedAt.UTC(),
		UpdatedAt:            gs.UpdatedAt.UTC(),
	}
}

func (r gradeSubjectRow) gradeSubject() enrolment.GradeSubject {
	return enrolment.GradeSubject{
		ID:                   r.ID,
		GradeID:              r.GradeID,
		SubjectID:            r.SubjectID,
		IsOptional:           r.IsOptional,
		AutoAssignToStudents: r.AutoAssignToStudents,
		CreatedAt:            r.CreatedAt.UTC(),
		UpdatedAt:            r.UpdatedAt.UTC(),
	}
}

type studentSubjectRow struct {
	ID                   string `gorm:"primaryKey;type:uuid"`
	StudentID            string `gorm:"type:uuid"`
	SubjectID            string `gorm:"type:uuid"`
	SourceType           string
	InheritedFromGradeID null.String `gorm:"type:uuid"`
	IsActive             bool
	EnrolledAt           time.Time
	CompletedAt          null.Time
	DroppedAt            null.Time
	Notes                null.String
	CreatedAt            time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime:false"`
}

func (studentSubjectRow) TableName() string { return "student_subject" }

func newStudentSubjectRow(ss enrolment.StudentSubject) studentSubjectRow {
	return studentSubjectRow{
		ID:                   ss.ID,
		StudentID:            ss.StudentID,
		SubjectID:            ss.SubjectID,
		SourceType:           string(ss.SourceType),
		InheritedFromGradeID: null.NewString(ss.InheritedFromGradeID, ss.InheritedFromGradeID != ""),
		IsActive:             ss.IsActive,
		EnrolledAt:           ss.EnrolledAt.UTC(),
		CompletedAt:          null.TimeFromPtr(ss.CompletedAt),
		DroppedAt:            null.TimeFromPtr(ss.DroppedAt),
		Notes:                null.NewString(ss.Notes, ss.Notes != ""),
		CreatedAt:            ss.CreatedAt.UTC(),
		UpdatedAt:            ss.UpdatedAt.UTC(),
	}
}

func (r studentSubjectRow) studentSubject() enrolment.StudentSubject {
	return enrolment.StudentSubject{
		ID:                   r.ID,
		StudentID:            r.StudentID,
		SubjectID:            r.SubjectID,
		SourceType:           enrolment.SourceType(r.SourceType),
		InheritedFromGradeID: r.InheritedFromGradeID.String,
		IsActive:             r.IsActive,
		EnrolledAt:           r.EnrolledAt.UTC(),
		CompletedAt:          r.CompletedAt.Ptr(),
		DroppedAt:            r.DroppedAt.Ptr(),
		Notes:                r.Notes.String,
		CreatedAt:            r.CreatedAt.UTC(),
		UpdatedAt:            r.UpdatedAt.UTC(),
	}
}

type examTypeRow struct {
	ID        string `gorm:"primaryKey;type:uuid"`
	Name      string
	Slot      string
	Order     int
	MaxScore  decimal.Decimal `gorm:"type:numeric(6,2)"`
	IsActive  bool
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (examTypeRow) TableName() string { return "exam_type" }

func newExamTypeRow(et exam.ExamType) examTypeRow {
	return examTypeRow{
		ID:        et.ID,
		Name:      et.Name,
		Slot:      string(et.Slot),
		Order:     et.Order,
		MaxScore:  et.MaxScore,
		IsActive:  et.IsActive,
		CreatedAt: et.CreatedAt.UTC(),
		UpdatedAt: et.UpdatedAt.UTC(),
	}
}

func (r examTypeRow) examType() exam.ExamType {
	return exam.ExamType{
		ID:        r.ID,
		Name:      r.Name,
		Slot:      exam.Slot(r.Slot),
		Order:     r.Order,
		MaxScore:  r.MaxScore,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type examScoreRow struct {
	ID           string `gorm:"primaryKey;type:uuid"`
	StudentID    string `gorm:"type:uuid"`
	SubjectID    string `gorm:"type:uuid"`
	ExamTypeID   string `gorm:"type:uuid"`
	AcademicYear int
	Term         int
	Score        decimal.Decimal `gorm:"type:numeric(6,2)"`
	IsAbsent     bool
	Remarks      null.String
	RecordedAt   time.Time
	RecordedByID null.String `gorm:"type:uuid"`
}

func (examScoreRow) TableName() string { return "exam_score" }

func newExamScoreRow(s exam.ExamScore) examScoreRow {
	return examScoreRow{
		ID:           s.ID,
		StudentID:    s.StudentID,
		SubjectID:    s.SubjectID,
		ExamTypeID:   s.ExamTypeID,
		AcademicYear: s.AcademicYear,
		Term:         s.Term,
		Score:        s.Score,
		IsAbsent:     s.IsAbsent,
		Remarks:      null.NewString(s.Remarks, s.Remarks != ""),
		RecordedAt:   s.RecordedAt.UTC(),
		RecordedByID: null.NewString(s.RecordedByID, s.RecordedByID != ""),
	}
}

func (r examScoreRow) examScore() exam.ExamScore {
	return exam.ExamScore{
		ID:           r.ID,
		StudentID:    r.StudentID,
		SubjectID:    r.SubjectID,
		ExamTypeID:   r.ExamTypeID,
		AcademicYear: r.AcademicYear,
		Term:         r.Term,
		Score:        r.Score,
		IsAbsent:     r.IsAbsent,
		Remarks:      r.Remarks.String,
		RecordedAt:   r.RecordedAt.UTC(),
		RecordedByID: r.RecordedByID.String,
	}
}

type reportCardRow struct {
	ID              string `gorm:"primaryKey;type:uuid"`
	StudentID       string `gorm:"type:uuid"`
	GradeID         string `gorm:"type:uuid"`
	AcademicYear    int
	Term            int
	Summary         datatypes.JSONType[exam.StudentTermSummary] `gorm:"type:jsonb"`
	TeacherRemarks  null.String
	HomeroomRemarks null.String
	GeneratedAt     time.Time
	GeneratedByID   null.String `gorm:"type:uuid"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime:false"`
}

func (reportCardRow) TableName() string { return "report_card" }

func newReportCardRow(rc reportcard.ReportCard) reportCardRow {
	return reportCardRow{
		ID:              rc.ID,
		StudentID:       rc.StudentID,
		GradeID:         rc.GradeID,
		AcademicYear:    rc.AcademicYear,
		Term:            rc.Term,
		Summary:         datatypes.NewJSONType(rc.Summary),
		TeacherRemarks:  null.NewString(rc.TeacherRemarks, rc.TeacherRemarks != ""),
		HomeroomRemarks: null.NewString(rc.HomeroomRemarks, rc.HomeroomRemarks != ""),
		GeneratedAt:     rc.GeneratedAt.UTC(),
		GeneratedByID:   null.NewString(rc.GeneratedByID, rc.GeneratedByID != ""),
		UpdatedAt:       rc.UpdatedAt.UTC(),
	}
}

func (r reportCardRow) reportCard() reportcard.ReportCard {
	return reportcard.ReportCard{
		ID:              r.ID,
		StudentID:       r.StudentID,
		GradeID:         r.GradeID,
		AcademicYear:    r.AcademicYear,
		Term:            r.Term,
		Summary:         r.Summary.Data(),
		TeacherRemarks:  r.TeacherRemarks.String,
		HomeroomRemarks: r.HomeroomRemarks.String,
		GeneratedAt:     r.GeneratedAt.UTC(),
		GeneratedByID:   r.GeneratedByID.String,
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

type smsLogRow struct {
	ID        string      `gorm:"primaryKey;type:uuid"`
	StudentID null.String `gorm:"type:uuid"`
	Phone     string
	Message   string
	Kind      string
	Status    string
	Error     null.String
	Provider  string
	MessageID null.String
	Meta      datatypes.JSONMap `gorm:"type:jsonb"`
	SentByID  null.String       `gorm:"type:uuid"`
	SentAt    time.Time
}

func (smsLogRow) TableName() string { return "sms_log" }

func newSmsLogRow(l sms.Log) smsLogRow {
	return smsLogRow{
		ID:        l.ID,
		StudentID: null.NewString(l.StudentID, l.StudentID != ""),
		Phone:     l.Phone,
		Message:   l.Message,
		Kind:      string(l.Kind),
		Status:    string(l.Status),
		Error:     null.NewString(l.Error, l.Error != ""),
		Provider:  l.Provider,
		MessageID: null.NewString(l.MessageID, l.MessageID != ""),
		Meta:      datatypes.JSONMap(l.Meta),
		SentByID:  null.NewString(l.SentByID, l.SentByID != ""),
		SentAt:    l.SentAt.UTC(),
	}
}

func (r smsLogRow) log() sms.Log {
	return sms.Log{
		ID:        r.ID,
		StudentID: r.StudentID.String,
		Phone:     r.Phone,
		Message:   r.Message,
		Kind:      sms.Kind(r.Kind),
		Status:    sms.Status(r.Status),
		Error:     r.Error.String,
		Provider:  r.Provider,
		MessageID: r.MessageID.String,
		Meta:      r.Meta,
		SentByID:  r.SentByID.String,
		SentAt:    r.SentAt.UTC(),
	}
}
