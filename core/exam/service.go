package exam

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/enrolment"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrExamTypeNotFound = core.NewNotFoundError("exam type")
	ErrExamTypeExists   = errors.New("an exam type with this name already exists")

	errMaxScore        = "must be greater than 0"
	errScoreRequired   = "score is required unless the student is absent"
	errScoreRange      = "score must be between 0 and %s"
	errNotEnrolled     = "student is not enrolled in this subject"
	errInactiveStudent = "student is not active"
	errInactiveType    = "exam type is not active"
	errUnknown         = "not found"
)

type (
	Repository interface {
		CheckExamTypeUniqueness(ctx context.Context, name string, excluded ...ExamType) error
		CreateExamType(ctx context.Context, et ExamType) (ExamType, error)
		GetExamType(ctx context.Context, id string) (ExamType, error)
		QueryExamTypes(ctx context.Context, filter *ExamTypeFilter) ([]ExamType, error)
		UpdateExamType(ctx context.Context, et ExamType) (ExamType, error)

		CreateScores(ctx context.Context, scores []ExamScore) ([]ExamScore, error)
		// QueryScores returns every matching entry, including the ones superseded by later entries.
		QueryScores(ctx context.Context, filter *ScoreFilter) ([]ExamScore, error)
	}

	SchoolRepository interface {
		GetGrade(ctx context.Context, id string) (school.Grade, error)
		GetStudent(ctx context.Context, id string) (school.Student, error)
		QueryStudents(ctx context.Context, filter *school.StudentFilter, ordering []core.DBOrdering) ([]school.Student, error)
		GetSubject(ctx context.Context, id string) (school.Subject, error)
		QuerySubjects(ctx context.Context, filter *school.SubjectFilter, ordering []core.DBOrdering) ([]school.Subject, error)
	}

	EnrolmentRepository interface {
		ListStudentSubjects(ctx context.Context, filter *enrolment.StudentSubjectFilter) ([]enrolment.StudentSubject, error)
	}

	Service interface {
		CheckExamTypeUniqueness(ctx context.Context, name string, excluded ...ExamType) error
		CreateExamType(ctx context.Context, ne NewExamType) (ExamType, error)
		GetExamType(ctx context.Context, id string) (ExamType, error)
		QueryExamTypes(ctx context.Context, filter *ExamTypeFilter) ([]ExamType, error)
		UpdateExamType(ctx context.Context, et ExamType, ue UpdateExamType) (ExamType, error)

		RecordScore(ctx context.Context, ns NewScore, by user.User) (ExamScore, error)
		// RecordScores validates every entry before recording any: one invalid entry rejects the batch.
		RecordScores(ctx context.Context, data RecordScores, by user.User) ([]ExamScore, error)
		ListScores(ctx context.Context, filter *ScoreFilter) ([]ExamScore, error)

		StudentSubjectSummary(ctx context.Context, studentID, subjectID string, year, term int) (SubjectSummary, error)
		StudentTermSummary(ctx context.Context, studentID string, year, term int) (StudentTermSummary, error)
		GradeTermSummary(ctx context.Context, gradeID string, year, term int) (GradeTermSummary, error)
		GradeSubjectSummary(ctx context.Context, gradeID string, year, term int) (GradeSubjectSummary, error)
	}

	service struct {
		repo      Repository
		school    SchoolRepository
		enrolment EnrolmentRepository
		tx        core.Transactor
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	schoolRepo SchoolRepository,
	enrolmentRepo EnrolmentRepository,
	tx core.Transactor,
) Service {
	return &service{repo: repo, school: schoolRepo, enrolment: enrolmentRepo, tx: tx}
}

func (svc *service) CheckExamTypeUniqueness(ctx context.Context, name string, excluded ...ExamType) error {
	if err := svc.repo.CheckExamTypeUniqueness(ctx, name, excluded...); err != nil {
		if errors.Is(err, ErrExamTypeExists) {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

// CreateExamType expects a validated NewExamType.
func (svc *service) CreateExamType(ctx context.Context, ne NewExamType) (ExamType, error) {
	if ne.Slot == "" {
		ne.Slot = ClassifyExamType(ne.Name)
	}
	maxScore := DefaultMaxScore
	if ne.MaxScore != nil {
		maxScore = *ne.MaxScore
	}
	now := core.NowFunc()
	et, err := svc.repo.CreateExamType(ctx, ExamType{
		Name:      ne.Name,
		Slot:      ne.Slot,
		Order:     ne.Order,
		MaxScore:  maxScore,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return et, errors.Wrap(err, "creating exam type")
}

func (svc *service) GetExamType(ctx context.Context, id string) (ExamType, error) {
	return svc.repo.GetExamType(ctx, id)
}

func (svc *service) QueryExamTypes(ctx context.Context, filter *ExamTypeFilter) ([]ExamType, error) {
	ets, err := svc.repo.QueryExamTypes(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ets, func(i, j int) bool {
		if ets[i].Order != ets[j].Order {
			return ets[i].Order < ets[j].Order
		}
		return ets[i].Name < ets[j].Name
	})
	return ets, nil
}

// UpdateExamType applies a validated UpdateExamType to et.
func (svc *service) UpdateExamType(ctx context.Context, et ExamType, ue UpdateExamType) (ExamType, error) {
	if ue.Name != "" {
		et.Name = ue.Name
	}
	if ue.Slot != "" {
		et.Slot = ue.Slot
	}
	if ue.Order != nil {
		et.Order = *ue.Order
	}
	if ue.MaxScore != nil {
		et.MaxScore = *ue.MaxScore
	}
	if ue.IsActive != nil {
		et.IsActive = *ue.IsActive
	}
	et.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateExamType(ctx, et)
}

func (svc *service) RecordScore(ctx context.Context, ns NewScore, by user.User) (ExamScore, error) {
	scores, err := svc.RecordScores(ctx, RecordScores{Scores: []NewScore{ns}}, by)
	if err != nil {
		if verr, ok := errors.Cause(err).(*core.ValidationError); ok {
			// single entry: drop the "scores[0]." prefix
			for i, f := range verr.Fields {
				verr.Fields[i].Field = trimIndex(f.Field)
			}
		}
		return ExamScore{}, err
	}
	return scores[0], nil
}

func trimIndex(field string) string {
	const prefix = "scores[0]."
	if len(field) > len(prefix) && field[:len(prefix)] == prefix {
		return field[len(prefix):]
	}
	return field
}

// scoreChecker caches the lookups made while validating a batch of scores.
type scoreChecker struct {
	svc       *service
	ctx       context.Context
	students  map[string]*school.Student
	subjects  map[string]*school.Subject
	types     map[string]*ExamType
	enrolled  map[string]map[string]bool // student ID -> active subject IDs
	fieldErrs []core.FieldError
}

func (svc *service) newScoreChecker(ctx context.Context) *scoreChecker {
	return &scoreChecker{
		svc:      svc,
		ctx:      ctx,
		students: make(map[string]*school.Student),
		subjects: make(map[string]*school.Subject),
		types:    make(map[string]*ExamType),
		enrolled: make(map[string]map[string]bool),
	}
}

func (c *scoreChecker) fail(i int, field, msg string) {
	c.fieldErrs = append(c.fieldErrs, core.FieldError{Field: fmt.Sprintf("scores[%d].%s", i, field), Error: msg})
}

func (c *scoreChecker) student(id string) (*school.Student, error) {
	if s, ok := c.students[id]; ok {
		return s, nil
	}
	s, err := c.svc.school.GetStudent(c.ctx, id)
	if err != nil && !core.IsNotFound(err) {
		return nil, err
	}
	var ptr *school.Student
	if err == nil {
		ptr = &s
	}
	c.students[id] = ptr
	return ptr, nil
}

func (c *scoreChecker) subject(id string) (*school.Subject, error) {
	if s, ok := c.subjects[id]; ok {
		return s, nil
	}
	s, err := c.svc.school.GetSubject(c.ctx, id)
	if err != nil && !core.IsNotFound(err) {
		return nil, err
	}
	var ptr *school.Subject
	if err == nil {
		ptr = &s
	}
	c.subjects[id] = ptr
	return ptr, nil
}

func (c *scoreChecker) examType(id string) (*ExamType, error) {
	if et, ok := c.types[id]; ok {
		return et, nil
	}
	et, err := c.svc.repo.GetExamType(c.ctx, id)
	if err != nil && !core.IsNotFound(err) {
		return nil, err
	}
	var ptr *ExamType
	if err == nil {
		ptr = &et
	}
	c.types[id] = ptr
	return ptr, nil
}

func (c *scoreChecker) isEnrolled(studentID, subjectID string) (bool, error) {
	subjects, ok := c.enrolled[studentID]
	if !ok {
		records, err := c.svc.enrolment.ListStudentSubjects(c.ctx, &enrolment.StudentSubjectFilter{
			StudentIDs: []string{studentID},
			ActiveOnly: true,
		})
		if err != nil {
			return false, errors.Wrap(err, "listing student subjects")
		}
		subjects = make(map[string]bool, len(records))
		for _, ss := range records {
			subjects[ss.SubjectID] = true
		}
		c.enrolled[studentID] = subjects
	}
	return subjects[subjectID], nil
}

// check validates entry i and returns the resulting score, meaningful only when no field error was added.
func (c *scoreChecker) check(i int, ns NewScore) (ExamScore, error) {
	before := len(c.fieldErrs)

	student, err := c.student(ns.StudentID)
	if err != nil {
		return ExamScore{}, err
	}
	switch {
	case student == nil:
		c.fail(i, "student_id", errUnknown)
	case !student.IsActive || student.IsArchived:
		c.fail(i, "student_id", errInactiveStudent)
	}

	subject, err := c.subject(ns.SubjectID)
	if err != nil {
		return ExamScore{}, err
	}
	if subject == nil {
		c.fail(i, "subject_id", errUnknown)
	}

	if student != nil && subject != nil {
		ok, err := c.isEnrolled(student.ID, subject.ID)
		if err != nil {
			return ExamScore{}, err
		}
		if !ok {
			c.fail(i, "subject_id", errNotEnrolled)
		}
	}

	et, err := c.examType(ns.ExamTypeID)
	if err != nil {
		return ExamScore{}, err
	}
	switch {
	case et == nil:
		c.fail(i, "exam_type_id", errUnknown)
	case !et.IsActive:
		c.fail(i, "exam_type_id", errInactiveType)
	}

	score := decimal.Zero
	switch {
	case ns.IsAbsent:
	case ns.Score == nil:
		c.fail(i, "score", errScoreRequired)
	case et != nil && (ns.Score.IsNegative() || ns.Score.GreaterThan(et.MaxScore)):
		c.fail(i, "score", fmt.Sprintf(errScoreRange, et.MaxScore.String()))
	default:
		score = *ns.Score
	}

	if len(c.fieldErrs) > before {
		return ExamScore{}, nil
	}
	recordedAt := core.NowFunc()
	if ns.RecordedAt != nil {
		recordedAt = *ns.RecordedAt
	}
	return ExamScore{
		StudentID:    ns.StudentID,
		SubjectID:    ns.SubjectID,
		ExamTypeID:   ns.ExamTypeID,
		AcademicYear: ns.AcademicYear,
		Term:         ns.Term,
		Score:        score,
		IsAbsent:     ns.IsAbsent,
		Remarks:      ns.Remarks,
		RecordedAt:   recordedAt,
	}, nil
}

func (svc *service) RecordScores(ctx context.Context, data RecordScores, by user.User) ([]ExamScore, error) {
	var created []ExamScore
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		checker := svc.newScoreChecker(ctx)
		pending := make([]ExamScore, 0, len(data.Scores))
		// the same score entered twice in a batch: the last entry wins
		seen := make(map[scoreKey]int, len(data.Scores))
		for i, ns := range data.Scores {
			score, err := checker.check(i, ns)
			if err != nil {
				return err
			}
			score.RecordedByID = by.ID
			if j, ok := seen[score.key()]; ok {
				pending[j] = score
				continue
			}
			seen[score.key()] = len(pending)
			pending = append(pending, score)
		}
		if len(checker.fieldErrs) > 0 {
			return core.NewValidationError(nil, checker.fieldErrs...)
		}

		var err error
		created, err = svc.repo.CreateScores(ctx, pending)
		return errors.Wrap(err, "creating scores")
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// resolveStudents turns a grade filter into student IDs.
func (svc *service) resolveStudents(ctx context.Context, filter *ScoreFilter) (bool, error) {
	if filter == nil || filter.GradeID == "" {
		return true, nil
	}
	students, err := svc.school.QueryStudents(ctx, &school.StudentFilter{GradeID: filter.GradeID}, nil)
	if err != nil {
		return false, errors.Wrap(err, "querying students")
	}
	ids := make([]string, 0, len(students))
	for _, s := range students {
		if len(filter.StudentIDs) == 0 || core.StringInSlice(s.ID, filter.StudentIDs) {
			ids = append(ids, s.ID)
		}
	}
	filter.StudentIDs = ids
	return len(ids) > 0, nil
}

func (svc *service) ListScores(ctx context.Context, filter *ScoreFilter) ([]ExamScore, error) {
	ok, err := svc.resolveStudents(ctx, filter)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []ExamScore{}, nil
	}
	scores, err := svc.repo.QueryScores(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	if filter != nil && filter.LatestOnly {
		return LatestScores(scores), nil
	}
	return scores, nil
}

func (svc *service) examTypes(ctx context.Context) (map[string]ExamType, error) {
	ets, err := svc.repo.QueryExamTypes(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying exam types")
	}
	types := make(map[string]ExamType, len(ets))
	for _, et := range ets {
		types[et.ID] = et
	}
	return types, nil
}

func (svc *service) StudentSubjectSummary(ctx context.Context, studentID, subjectID string, year, term int) (SubjectSummary, error) {
	if _, err := svc.school.GetStudent(ctx, studentID); err != nil {
		return SubjectSummary{}, err
	}
	if _, err := svc.school.GetSubject(ctx, subjectID); err != nil {
		return SubjectSummary{}, err
	}
	types, err := svc.examTypes(ctx)
	if err != nil {
		return SubjectSummary{}, err
	}
	scores, err := svc.repo.QueryScores(ctx, &ScoreFilter{
		StudentIDs:   []string{studentID},
		SubjectIDs:   []string{subjectID},
		AcademicYear: year,
		Term:         term,
	})
	if err != nil {
		return SubjectSummary{}, errors.Wrap(err, "querying scores")
	}
	return BuildSubjectSummary(studentID, subjectID, year, term, scores, types), nil
}

// reportedSubjects returns, per student, the subjects of their term summary:
// active enrolments plus any subject a score was recorded for.
func (svc *service) reportedSubjects(ctx context.Context, studentIDs []string, scores []ExamScore) (map[string][]school.Subject, error) {
	records, err := svc.enrolment.ListStudentSubjects(ctx, &enrolment.StudentSubjectFilter{
		StudentIDs: studentIDs,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing student subjects")
	}

	perStudent := make(map[string]map[string]struct{}, len(studentIDs))
	add := func(studentID, subjectID string) {
		if perStudent[studentID] == nil {
			perStudent[studentID] = make(map[string]struct{})
		}
		perStudent[studentID][subjectID] = struct{}{}
	}
	for _, ss := range records {
		add(ss.StudentID, ss.SubjectID)
	}
	for _, s := range scores {
		add(s.StudentID, s.SubjectID)
	}

	var subjectIDs []string
	seen := make(map[string]struct{})
	for _, subjects := range perStudent {
		for id := range subjects {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				subjectIDs = append(subjectIDs, id)
			}
		}
	}
	byID := make(map[string]school.Subject, len(subjectIDs))
	if len(subjectIDs) > 0 {
		subjects, err := svc.school.QuerySubjects(ctx, &school.SubjectFilter{IDs: subjectIDs}, nil)
		if err != nil {
			return nil, errors.Wrap(err, "querying subjects")
		}
		for _, subj := range subjects {
			byID[subj.ID] = subj
		}
	}

	out := make(map[string][]school.Subject, len(perStudent))
	for studentID, subjects := range perStudent {
		for id := range subjects {
			if subj, ok := byID[id]; ok {
				out[studentID] = append(out[studentID], subj)
			}
		}
	}
	return out, nil
}

func (svc *service) termSummaries(ctx context.Context, students []school.Student, year, term int) ([]StudentTermSummary, error) {
	if len(students) == 0 {
		return []StudentTermSummary{}, nil
	}
	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}

	types, err := svc.examTypes(ctx)
	if err != nil {
		return nil, err
	}
	scores, err := svc.repo.QueryScores(ctx, &ScoreFilter{StudentIDs: ids, AcademicYear: year, Term: term})
	if err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	subjects, err := svc.reportedSubjects(ctx, ids, scores)
	if err != nil {
		return nil, err
	}

	summaries := make([]StudentTermSummary, 0, len(students))
	for _, s := range students {
		summaries = append(summaries, BuildStudentTermSummary(s, year, term, subjects[s.ID], scores, types))
	}
	return summaries, nil
}

func (svc *service) StudentTermSummary(ctx context.Context, studentID string, year, term int) (StudentTermSummary, error) {
	student, err := svc.school.GetStudent(ctx, studentID)
	if err != nil {
		return StudentTermSummary{}, err
	}
	summaries, err := svc.termSummaries(ctx, []school.Student{student}, year, term)
	if err != nil {
		return StudentTermSummary{}, err
	}
	return summaries[0], nil
}

func (svc *service) gradeSummaries(ctx context.Context, gradeID string, year, term int) (school.Grade, []StudentTermSummary, error) {
	grade, err := svc.school.GetGrade(ctx, gradeID)
	if err != nil {
		return school.Grade{}, nil, err
	}
	students, err := svc.school.QueryStudents(ctx, school.ActiveStudentsOf(gradeID), nil)
	if err != nil {
		return school.Grade{}, nil, errors.Wrap(err, "querying students")
	}
	summaries, err := svc.termSummaries(ctx, students, year, term)
	return grade, summaries, err
}

func (svc *service) GradeTermSummary(ctx context.Context, gradeID string, year, term int) (GradeTermSummary, error) {
	grade, summaries, err := svc.gradeSummaries(ctx, gradeID, year, term)
	if err != nil {
		return GradeTermSummary{}, err
	}
	return BuildGradeTermSummary(grade, year, term, summaries), nil
}

func (svc *service) GradeSubjectSummary(ctx context.Context, gradeID string, year, term int) (GradeSubjectSummary, error) {
	grade, summaries, err := svc.gradeSummaries(ctx, gradeID, year, term)
	if err != nil {
		return GradeSubjectSummary{}, err
	}
	return BuildGradeSubjectSummary(grade, year, term, summaries), nil
}
