package enrolment

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

var (
	// errors
	ErrGradeSubjectNotFound   = core.NewNotFoundError("grade subject")
	ErrStudentSubjectNotFound = core.NewNotFoundError("student subject")

	errInactiveSubject = "subject is not active"
	errUnknownSubject  = "subject not found"
)

type (
	Repository interface {
		// UpsertGradeSubject creates or updates the curriculum entry of (GradeID, SubjectID).
		UpsertGradeSubject(ctx context.Context, gs GradeSubject) (GradeSubject, error)
		GetGradeSubject(ctx context.Context, gradeID, subjectID string) (GradeSubject, error)
		ListGradeSubjects(ctx context.Context, gradeIDs ...string) ([]GradeSubject, error)
		DeleteGradeSubject(ctx context.Context, gradeID, subjectID string) error

		ListStudentSubjects(ctx context.Context, filter *StudentSubjectFilter) ([]StudentSubject, error)
		CreateStudentSubjects(ctx context.Context, records []StudentSubject) ([]StudentSubject, error)
		UpdateStudentSubjects(ctx context.Context, records []StudentSubject) error
	}

	// SchoolRepository is the part of school.Repository enrolments depend on.
	SchoolRepository interface {
		GetGrade(ctx context.Context, id string) (school.Grade, error)
		QueryGrades(ctx context.Context, filter *school.GradeFilter, ordering []core.DBOrdering) ([]school.Grade, error)
		GetStudent(ctx context.Context, id string) (school.Student, error)
		QueryStudents(ctx context.Context, filter *school.StudentFilter, ordering []core.DBOrdering) ([]school.Student, error)
		GetSubject(ctx context.Context, id string) (school.Subject, error)
	}

	Service interface {
		// AssignSubjectToGrade adds (or updates) a subject in the grade curriculum and, when auto-assigned,
		// reconciles the enrolments of the active students of the grade.
		AssignSubjectToGrade(ctx context.Context, gradeID, subjectID string, opts AssignOptions) (AssignResult, error)
		// SyncGradeStudentSubjects makes sure every active student of the grade is enrolled in the
		// auto-assigned curriculum, optionally deactivating the inherited enrolments the curriculum lost.
		SyncGradeStudentSubjects(ctx context.Context, gradeID string, removeOrphaned bool) (SyncResult, error)
		SyncAllGrades(ctx context.Context, removeOrphaned bool) (SyncAllResult, error)
		RemoveSubjectFromGrade(ctx context.Context, gradeID, subjectID string, removeInherited bool) (int, error)

		school.Enroller

		AssignStudentSubjects(ctx context.Context, studentID string, data AssignStudentSubjects) ([]StudentSubject, error)
		DropStudentSubject(ctx context.Context, studentID, subjectID string) (StudentSubject, error)
		MarkCustom(ctx context.Context, studentID, subjectID string) (StudentSubject, error)

		ListGradeSubjects(ctx context.Context, gradeID string) ([]GradeSubject, error)
		ListStudentSubjects(ctx context.Context, studentID string, activeOnly bool) ([]StudentSubject, error)
	}

	SyncAllResult struct {
		Grades map[string]SyncResult `json:"grades"`
		Failed map[string]string     `json:"failed"`
	}

	service struct {
		repo   Repository
		school SchoolRepository
		tx     core.Transactor
		locker core.Locker
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, schoolRepo SchoolRepository, tx core.Transactor, locker core.Locker) Service {
	return &service{repo: repo, school: schoolRepo, tx: tx, locker: locker}
}

func gradeLockKey(gradeID string) string {
	return "grade:" + gradeID
}

// withGradeLock runs fn in a transaction holding the grade lock.
func (svc *service) withGradeLock(ctx context.Context, gradeID string, fn func(ctx context.Context) error) error {
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.locker.Lock(ctx, gradeLockKey(gradeID)); err != nil {
			return errors.Wrap(err, "locking grade")
		}
		return fn(ctx)
	})
}

// curriculum tells which subjects are optional for the students of a grade.
// Subjects outside the curriculum are extras, they count as optional.
type curriculum map[string]GradeSubject

func (c curriculum) isOptional(subjectID string) bool {
	gs, ok := c[subjectID]
	return !ok || gs.IsOptional
}

func (c curriculum) autoAssigned() []GradeSubject {
	auto := make([]GradeSubject, 0, len(c))
	for _, gs := range c {
		if gs.AutoAssignToStudents {
			auto = append(auto, gs)
		}
	}
	sort.Slice(auto, func(i, j int) bool { return auto[i].SubjectID < auto[j].SubjectID })
	return auto
}

func (svc *service) curriculum(ctx context.Context, gradeID string) (curriculum, error) {
	entries, err := svc.repo.ListGradeSubjects(ctx, gradeID)
	if err != nil {
		return nil, errors.Wrap(err, "listing grade subjects")
	}
	c := make(curriculum, len(entries))
	for _, gs := range entries {
		c[gs.SubjectID] = gs
	}
	return c, nil
}

// enrolments indexes student subjects by student ID then subject ID.
type enrolments map[string]map[string]StudentSubject

func (svc *service) enrolments(ctx context.Context, studentIDs ...string) (enrolments, error) {
	recs := make(enrolments, len(studentIDs))
	if len(studentIDs) == 0 {
		return recs, nil
	}
	records, err := svc.repo.ListStudentSubjects(ctx, &StudentSubjectFilter{StudentIDs: studentIDs})
	if err != nil {
		return nil, errors.Wrap(err, "listing student subjects")
	}
	for _, id := range studentIDs {
		recs[id] = make(map[string]StudentSubject)
	}
	for _, ss := range records {
		recs[ss.StudentID][ss.SubjectID] = ss
	}
	return recs, nil
}

func optionalLimitError(limit, current, requested int) error {
	return &core.CountLimitError{
		Field:     "subject_ids",
		Limit:     limit,
		Current:   current,
		Requested: requested,
		Subject:   "optional subject",
	}
}

func countOptional(c curriculum, studentRecs map[string]StudentSubject) int {
	var n int
	for subjectID, ss := range studentRecs {
		if ss.IsActive && c.isOptional(subjectID) {
			n++
		}
	}
	return n
}

// checkOptionalCap returns a CountLimitError when adding `requested` optional subjects
// to a student of the grade exceeds the section maximum.
func checkOptionalCap(grade school.Grade, c curriculum, studentRecs map[string]StudentSubject, requested int) error {
	if requested == 0 {
		return nil
	}
	current := countOptional(c, studentRecs)
	if limit := grade.Section.MaxOptionalSubjects(); current+requested > limit {
		return optionalLimitError(limit, current, requested)
	}
	return nil
}

// checkCurriculumCap makes sure a new student of the grade can take every auto-assigned optional subject.
func checkCurriculumCap(grade school.Grade, c curriculum, gs GradeSubject) error {
	if !gs.IsOptional || !gs.AutoAssignToStudents {
		return nil
	}
	var current int
	for _, entry := range c.autoAssigned() {
		if entry.IsOptional && entry.SubjectID != gs.SubjectID {
			current++
		}
	}
	if limit := grade.Section.MaxOptionalSubjects(); current+1 > limit {
		return optionalLimitError(limit, current, 1)
	}
	return nil
}

func newInherited(studentID, subjectID, gradeID string, now time.Time) StudentSubject {
	return StudentSubject{
		StudentID:            studentID,
		SubjectID:            subjectID,
		SourceType:           Inherited,
		InheritedFromGradeID: gradeID,
		IsActive:             true,
		EnrolledAt:           now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// changes collects the writes of a reconciliation. Nothing is written until every check passed.
type changes struct {
	creates []StudentSubject
	updates map[string]StudentSubject // by ID, last state wins
}

func newChanges() *changes {
	return &changes{updates: make(map[string]StudentSubject)}
}

func (ch *changes) update(ss StudentSubject) {
	ch.updates[ss.ID] = ss
}

func (ch *changes) apply(ctx context.Context, repo Repository) error {
	if len(ch.creates) > 0 {
		if _, err := repo.CreateStudentSubjects(ctx, ch.creates); err != nil {
			return errors.Wrap(err, "creating student subjects")
		}
	}
	if len(ch.updates) > 0 {
		updates := make([]StudentSubject, 0, len(ch.updates))
		for _, ss := range ch.updates {
			updates = append(updates, ss)
		}
		sort.Slice(updates, func(i, j int) bool { return updates[i].ID < updates[j].ID })
		if err := repo.UpdateStudentSubjects(ctx, updates); err != nil {
			return errors.Wrap(err, "updating student subjects")
		}
	}
	return nil
}

// reconcileStudent ensures an active inherited enrolment of the student in every auto-assigned subject:
// absent or inactive enrolments are created or re-activated, active Manual ones are promoted and Custom ones are left alone.
// Optional subjects that would take the student over the section maximum are skipped.
func reconcileStudent(
	grade school.Grade,
	c curriculum,
	studentID string,
	studentRecs map[string]StudentSubject,
	ch *changes,
	now time.Time,
) SyncResult {
	var res SyncResult
	optional := countOptional(c, studentRecs)
	limit := grade.Section.MaxOptionalSubjects()

	for _, gs := range c.autoAssigned() {
		existing, ok := studentRecs[gs.SubjectID]
		switch {
		case ok && existing.SourceType == Custom:
			continue
		case ok && existing.IsActive && existing.SourceType == Inherited:
			continue
		case ok && existing.IsActive: // Manual
			existing.inherit(grade.ID, now)
			ch.update(existing)
			res.Promoted++
		case gs.IsOptional && optional >= limit:
			res.Skipped++
			continue
		default:
			if gs.IsOptional {
				optional++
			}
			if ok {
				existing.inherit(grade.ID, now)
				ch.update(existing)
			} else {
				existing = newInherited(studentID, gs.SubjectID, grade.ID, now)
				ch.creates = append(ch.creates, existing)
			}
			res.Added++
		}
		studentRecs[gs.SubjectID] = existing
	}
	return res
}

func (svc *service) AssignSubjectToGrade(ctx context.Context, gradeID, subjectID string, opts AssignOptions) (AssignResult, error) {
	var res AssignResult

	err := svc.withGradeLock(ctx, gradeID, func(ctx context.Context) error {
		grade, err := svc.school.GetGrade(ctx, gradeID)
		if err != nil {
			return err
		}
		subject, err := svc.school.GetSubject(ctx, subjectID)
		if err != nil {
			return err
		}
		if !subject.IsActive {
			return core.NewValidationError(nil, core.FieldError{Field: "subject_id", Error: errInactiveSubject})
		}

		now := core.NowFunc()
		gs, err := svc.repo.GetGradeSubject(ctx, gradeID, subjectID)
		if err != nil {
			if !core.IsNotFound(err) {
				return errors.Wrap(err, "finding grade subject")
			}
			gs = GradeSubject{GradeID: gradeID, SubjectID: subjectID, CreatedAt: now}
		}
		gs.IsOptional = opts.IsOptional
		gs.AutoAssignToStudents = opts.AutoAssignToStudents
		gs.UpdatedAt = now

		c, err := svc.curriculum(ctx, gradeID)
		if err != nil {
			return err
		}
		if err = checkCurriculumCap(grade, c, gs); err != nil {
			return err
		}
		if gs, err = svc.repo.UpsertGradeSubject(ctx, gs); err != nil {
			return errors.Wrap(err, "upserting grade subject")
		}
		res.GradeSubject = gs

		if !gs.AutoAssignToStudents {
			return nil
		}

		students, err := svc.school.QueryStudents(ctx, school.ActiveStudentsOf(gradeID), nil)
		if err != nil {
			return errors.Wrap(err, "querying grade students")
		}
		if len(students) == 0 {
			return nil
		}
		studentIDs := make([]string, 0, len(students))
		for _, st := range students {
			studentIDs = append(studentIDs, st.ID)
		}
		recs, err := svc.enrolments(ctx, studentIDs...)
		if err != nil {
			return err
		}
		c[subjectID] = gs

		ch := newChanges()
		for _, st := range students {
			existing, ok := recs[st.ID][subjectID]
			switch {
			case ok && existing.SourceType == Custom:
				res.Skipped++
			case ok && existing.IsActive && existing.SourceType == Inherited:
				res.Skipped++
			case ok && existing.IsActive: // Manual
				existing.inherit(gradeID, now)
				ch.update(existing)
				res.Promoted++
				res.Assigned++
			case !(opts.AssignToExistingStudents || st.RecentlyEnrolled(now)):
				res.Skipped++
			default:
				if gs.IsOptional {
					if err = checkOptionalCap(grade, c, recs[st.ID], 1); err != nil {
						return err
					}
				}
				if ok {
					existing.inherit(gradeID, now)
					ch.update(existing)
				} else {
					ch.creates = append(ch.creates, newInherited(st.ID, subjectID, gradeID, now))
				}
				res.Assigned++
			}
		}
		return ch.apply(ctx, svc.repo)
	})
	if err != nil {
		return AssignResult{}, err
	}
	return res, nil
}

func (svc *service) SyncGradeStudentSubjects(ctx context.Context, gradeID string, removeOrphaned bool) (SyncResult, error) {
	var res SyncResult

	err := svc.withGradeLock(ctx, gradeID, func(ctx context.Context) error {
		grade, err := svc.school.GetGrade(ctx, gradeID)
		if err != nil {
			return err
		}
		c, err := svc.curriculum(ctx, gradeID)
		if err != nil {
			return err
		}
		students, err := svc.school.QueryStudents(ctx, school.ActiveStudentsOf(gradeID), nil)
		if err != nil {
			return errors.Wrap(err, "querying grade students")
		}
		studentIDs := make([]string, 0, len(students))
		for _, st := range students {
			studentIDs = append(studentIDs, st.ID)
		}
		recs, err := svc.enrolments(ctx, studentIDs...)
		if err != nil {
			return err
		}

		now := core.NowFunc()
		ch := newChanges()
		for _, st := range students {
			stRes := reconcileStudent(grade, c, st.ID, recs[st.ID], ch, now)
			res.Added += stRes.Added
			res.Promoted += stRes.Promoted
			res.Skipped += stRes.Skipped
		}

		if removeOrphaned {
			inherited, err := svc.repo.ListStudentSubjects(ctx, &StudentSubjectFilter{
				SourceType:           Inherited,
				InheritedFromGradeID: gradeID,
				ActiveOnly:           true,
			})
			if err != nil {
				return errors.Wrap(err, "listing inherited student subjects")
			}
			for _, ss := range inherited {
				if gs, ok := c[ss.SubjectID]; ok && gs.AutoAssignToStudents {
					continue
				}
				ss.drop(now)
				ch.update(ss)
				res.Removed++
			}
		}
		return ch.apply(ctx, svc.repo)
	})
	if err != nil {
		return SyncResult{}, err
	}
	return res, nil
}

// SyncAllGrades syncs every active grade, each in its own transaction. A failing grade does not stop the others.
func (svc *service) SyncAllGrades(ctx context.Context, removeOrphaned bool) (SyncAllResult, error) {
	active := true
	grades, err := svc.school.QueryGrades(ctx, &school.GradeFilter{IsActive: &active}, nil)
	if err != nil {
		return SyncAllResult{}, errors.Wrap(err, "querying grades")
	}

	res := SyncAllResult{
		Grades: make(map[string]SyncResult, len(grades)),
		Failed: make(map[string]string),
	}
	for _, grade := range grades {
		if err = ctx.Err(); err != nil {
			return res, err
		}
		gRes, err := svc.SyncGradeStudentSubjects(ctx, grade.ID, removeOrphaned)
		if err != nil {
			res.Failed[grade.ID] = err.Error()
			continue
		}
		res.Grades[grade.ID] = gRes
	}
	return res, nil
}

// RemoveSubjectFromGrade removes a subject from the grade curriculum.
// With removeInherited, the enrolments inherited from the entry are deactivated; their number is returned.
func (svc *service) RemoveSubjectFromGrade(ctx context.Context, gradeID, subjectID string, removeInherited bool) (int, error) {
	var removed int

	err := svc.withGradeLock(ctx, gradeID, func(ctx context.Context) error {
		if _, err := svc.school.GetGrade(ctx, gradeID); err != nil {
			return err
		}
		if _, err := svc.repo.GetGradeSubject(ctx, gradeID, subjectID); err != nil {
			return err
		}
		if err := svc.repo.DeleteGradeSubject(ctx, gradeID, subjectID); err != nil {
			return errors.Wrap(err, "deleting grade subject")
		}
		if !removeInherited {
			return nil
		}

		inherited, err := svc.repo.ListStudentSubjects(ctx, &StudentSubjectFilter{
			SubjectIDs:           []string{subjectID},
			SourceType:           Inherited,
			InheritedFromGradeID: gradeID,
			ActiveOnly:           true,
		})
		if err != nil {
			return errors.Wrap(err, "listing inherited student subjects")
		}
		now := core.NowFunc()
		ch := newChanges()
		for _, ss := range inherited {
			ss.drop(now)
			ch.update(ss)
		}
		removed = len(inherited)
		return ch.apply(ctx, svc.repo)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// EnrolNewStudent gives a new student its grade's auto-assigned curriculum.
func (svc *service) EnrolNewStudent(ctx context.Context, student school.Student) error {
	return svc.withGradeLock(ctx, student.GradeID, func(ctx context.Context) error {
		grade, err := svc.school.GetGrade(ctx, student.GradeID)
		if err != nil {
			return err
		}
		c, err := svc.curriculum(ctx, grade.ID)
		if err != nil {
			return err
		}
		recs, err := svc.enrolments(ctx, student.ID)
		if err != nil {
			return err
		}

		ch := newChanges()
		reconcileStudent(grade, c, student.ID, recs[student.ID], ch, core.NowFunc())
		return ch.apply(ctx, svc.repo)
	})
}

// MoveStudent deactivates the enrolments the student inherited from its previous grade,
// then enrols it in the curriculum of its new grade.
func (svc *service) MoveStudent(ctx context.Context, student school.Student, fromGradeID string) error {
	return svc.withGradeLock(ctx, student.GradeID, func(ctx context.Context) error {
		grade, err := svc.school.GetGrade(ctx, student.GradeID)
		if err != nil {
			return err
		}
		c, err := svc.curriculum(ctx, grade.ID)
		if err != nil {
			return err
		}
		recs, err := svc.enrolments(ctx, student.ID)
		if err != nil {
			return err
		}

		now := core.NowFunc()
		ch := newChanges()
		studentRecs := recs[student.ID]
		for subjectID, ss := range studentRecs {
			if ss.IsActive && ss.SourceType == Inherited && ss.InheritedFromGradeID == fromGradeID {
				ss.drop(now)
				ch.update(ss)
				studentRecs[subjectID] = ss
			}
		}
		reconcileStudent(grade, c, student.ID, studentRecs, ch, now)
		return ch.apply(ctx, svc.repo)
	})
}

// AssignStudentSubjects enrols a student in the given subjects as Manual or Custom.
// The optional subjects cap of the student's section applies: when exceeded nothing is assigned.
func (svc *service) AssignStudentSubjects(ctx context.Context, studentID string, data AssignStudentSubjects) ([]StudentSubject, error) {
	student, err := svc.school.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	var result []StudentSubject
	err = svc.withGradeLock(ctx, student.GradeID, func(ctx context.Context) error {
		grade, err := svc.school.GetGrade(ctx, student.GradeID)
		if err != nil {
			return err
		}
		for _, subjectID := range data.SubjectIDs {
			subject, err := svc.school.GetSubject(ctx, subjectID)
			if err != nil {
				if core.IsNotFound(err) {
					return core.NewValidationError(nil, core.FieldError{Field: "subject_ids", Error: errUnknownSubject})
				}
				return errors.Wrap(err, "finding subject")
			}
			if !subject.IsActive {
				return core.NewValidationError(nil, core.FieldError{Field: "subject_ids", Error: errInactiveSubject})
			}
		}
		c, err := svc.curriculum(ctx, grade.ID)
		if err != nil {
			return err
		}
		recs, err := svc.enrolments(ctx, student.ID)
		if err != nil {
			return err
		}

		now := core.NowFunc()
		ch := newChanges()
		studentRecs := recs[student.ID]
		var newOptional int
		result = make([]StudentSubject, 0, len(data.SubjectIDs))

		for _, subjectID := range data.SubjectIDs {
			ss, ok := studentRecs[subjectID]
			switch {
			case ok && ss.IsActive:
				var changed bool
				if data.SourceType == Custom && ss.SourceType != Custom {
					ss.SourceType = Custom
					changed = true
				}
				if data.Notes != "" && data.Notes != ss.Notes {
					ss.Notes = data.Notes
					changed = true
				}
				if changed {
					ss.UpdatedAt = now
					ch.update(ss)
				}
			case ok: // dropped earlier
				ss.SourceType = data.SourceType
				ss.InheritedFromGradeID = ""
				ss.IsActive = true
				ss.EnrolledAt = now
				ss.DroppedAt = nil
				ss.CompletedAt = nil
				ss.Notes = data.Notes
				ss.UpdatedAt = now
				ch.update(ss)
				if c.isOptional(subjectID) {
					newOptional++
				}
			default:
				ss = StudentSubject{
					StudentID:  student.ID,
					SubjectID:  subjectID,
					SourceType: data.SourceType,
					IsActive:   true,
					EnrolledAt: now,
					Notes:      data.Notes,
					CreatedAt:  now,
					UpdatedAt:  now,
				}
				if c.isOptional(subjectID) {
					newOptional++
				}
			}
			result = append(result, ss)
		}

		if err = checkOptionalCap(grade, c, studentRecs, newOptional); err != nil {
			return err
		}

		var creates []StudentSubject
		for _, ss := range result {
			if ss.ID == "" {
				creates = append(creates, ss)
			}
		}
		if len(creates) > 0 {
			created, err := svc.repo.CreateStudentSubjects(ctx, creates)
			if err != nil {
				return errors.Wrap(err, "creating student subjects")
			}
			bySubject := make(map[string]StudentSubject, len(created))
			for _, ss := range created {
				bySubject[ss.SubjectID] = ss
			}
			for i, ss := range result {
				if ss.ID == "" {
					result[i] = bySubject[ss.SubjectID]
				}
			}
		}
		return ch.apply(ctx, svc.repo)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (svc *service) activeStudentSubject(ctx context.Context, studentID, subjectID string) (StudentSubject, error) {
	if _, err := svc.school.GetStudent(ctx, studentID); err != nil {
		return StudentSubject{}, err
	}
	records, err := svc.repo.ListStudentSubjects(ctx, &StudentSubjectFilter{
		StudentIDs: []string{studentID},
		SubjectIDs: []string{subjectID},
		ActiveOnly: true,
	})
	if err != nil {
		return StudentSubject{}, errors.Wrap(err, "listing student subjects")
	}
	if len(records) == 0 {
		return StudentSubject{}, ErrStudentSubjectNotFound
	}
	return records[0], nil
}

// DropStudentSubject deactivates an enrolment. A drop is an explicit choice:
// the record becomes Custom so that grade level automation does not bring it back.
func (svc *service) DropStudentSubject(ctx context.Context, studentID, subjectID string) (StudentSubject, error) {
	var ss StudentSubject
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if ss, err = svc.activeStudentSubject(ctx, studentID, subjectID); err != nil {
			return err
		}
		ss.SourceType = Custom
		ss.drop(core.NowFunc())
		return svc.repo.UpdateStudentSubjects(ctx, []StudentSubject{ss})
	})
	if err != nil {
		return StudentSubject{}, err
	}
	return ss, nil
}

// MarkCustom turns an active enrolment into a Custom override.
func (svc *service) MarkCustom(ctx context.Context, studentID, subjectID string) (StudentSubject, error) {
	var ss StudentSubject
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if ss, err = svc.activeStudentSubject(ctx, studentID, subjectID); err != nil {
			return err
		}
		if ss.SourceType == Custom {
			return nil
		}
		ss.SourceType = Custom
		ss.UpdatedAt = core.NowFunc()
		return svc.repo.UpdateStudentSubjects(ctx, []StudentSubject{ss})
	})
	if err != nil {
		return StudentSubject{}, err
	}
	return ss, nil
}

func (svc *service) ListGradeSubjects(ctx context.Context, gradeID string) ([]GradeSubject, error) {
	if _, err := svc.school.GetGrade(ctx, gradeID); err != nil {
		return nil, err
	}
	return svc.repo.ListGradeSubjects(ctx, gradeID)
}

func (svc *service) ListStudentSubjects(ctx context.Context, studentID string, activeOnly bool) ([]StudentSubject, error) {
	if _, err := svc.school.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return svc.repo.ListStudentSubjects(ctx, &StudentSubjectFilter{StudentIDs: []string{studentID}, ActiveOnly: activeOnly})
}
