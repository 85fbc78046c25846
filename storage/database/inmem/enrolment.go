package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/enrolment"
)

type enrolmentRepository struct {
	db *DB
}

var _ enrolment.Repository = (*enrolmentRepository)(nil)

func NewEnrolmentRepository(db *DB) enrolment.Repository {
	return &enrolmentRepository{db: db}
}

func gradeSubjectKey(gradeID, subjectID string) string {
	return gradeID + "/" + subjectID
}

func (repo *enrolmentRepository) UpsertGradeSubject(_ context.Context, gs enrolment.GradeSubject) (enrolment.GradeSubject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := gradeSubjectKey(gs.GradeID, gs.SubjectID)
	if existing, ok := repo.db.gradeSubjects[key]; ok {
		gs.ID = existing.ID
		gs.CreatedAt = existing.CreatedAt
	} else if gs.ID == "" {
		gs.ID = uuid.New().String()
	}
	repo.db.gradeSubjects[key] = gs
	return gs, nil
}

func (repo *enrolmentRepository) GetGradeSubject(_ context.Context, gradeID, subjectID string) (enrolment.GradeSubject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if gs, ok := repo.db.gradeSubjects[gradeSubjectKey(gradeID, subjectID)]; ok {
		return gs, nil
	}
	return enrolment.GradeSubject{}, enrolment.ErrGradeSubjectNotFound
}

func (repo *enrolmentRepository) ListGradeSubjects(_ context.Context, gradeIDs ...string) ([]enrolment.GradeSubject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]enrolment.GradeSubject, 0)
	for _, gs := range repo.db.gradeSubjects {
		if len(gradeIDs) == 0 || isExcluded(gs.GradeID, gradeIDs) {
			entries = append(entries, gs)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].GradeID != entries[j].GradeID {
			return entries[i].GradeID < entries[j].GradeID
		}
		return entries[i].SubjectID < entries[j].SubjectID
	})
	return entries, nil
}

func (repo *enrolmentRepository) DeleteGradeSubject(_ context.Context, gradeID, subjectID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := gradeSubjectKey(gradeID, subjectID)
	if _, ok := repo.db.gradeSubjects[key]; !ok {
		return enrolment.ErrGradeSubjectNotFound
	}
	delete(repo.db.gradeSubjects, key)
	return nil
}

func (repo *enrolmentRepository) ListStudentSubjects(_ context.Context, filter *enrolment.StudentSubjectFilter) ([]enrolment.StudentSubject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := make([]enrolment.StudentSubject, 0)
	for _, ss := range repo.db.studentSubjects {
		if filter.Match(ss) {
			records = append(records, ss)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].StudentID != records[j].StudentID {
			return records[i].StudentID < records[j].StudentID
		}
		return records[i].SubjectID < records[j].SubjectID
	})
	return records, nil
}

// CreateStudentSubjects inserts the records, refusing a second record for the same (student, subject).
func (repo *enrolmentRepository) CreateStudentSubjects(_ context.Context, records []enrolment.StudentSubject) ([]enrolment.StudentSubject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	taken := make(map[string]struct{}, len(repo.db.studentSubjects))
	for _, ss := range repo.db.studentSubjects {
		taken[ss.StudentID+"/"+ss.SubjectID] = struct{}{}
	}
	created := make([]enrolment.StudentSubject, 0, len(records))
	for _, ss := range records {
		key := ss.StudentID + "/" + ss.SubjectID
		if _, ok := taken[key]; ok {
			return nil, errors.Errorf("duplicate student subject %s", key)
		}
		taken[key] = struct{}{}
		ss.ID = uuid.New().String()
		created = append(created, ss)
	}
	for _, ss := range created {
		repo.db.studentSubjects[ss.ID] = ss
	}
	return created, nil
}

func (repo *enrolmentRepository) UpdateStudentSubjects(_ context.Context, records []enrolment.StudentSubject) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, ss := range records {
		if _, ok := repo.db.studentSubjects[ss.ID]; !ok {
			return enrolment.ErrStudentSubjectNotFound
		}
	}
	for _, ss := range records {
		repo.db.studentSubjects[ss.ID] = ss
	}
	return nil
}
