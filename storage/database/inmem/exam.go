package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/exam"
)

type examRepository struct {
	db *DB
}

var _ exam.Repository = (*examRepository)(nil)

func NewExamRepository(db *DB) exam.Repository {
	return &examRepository{db: db}
}

func (repo *examRepository) CheckExamTypeUniqueness(_ context.Context, name string, excluded ...exam.ExamType) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]string, 0, len(excluded))
	for _, et := range excluded {
		ids = append(ids, et.ID)
	}
	for _, et := range repo.db.examTypes {
		if !isExcluded(et.ID, ids) && strings.EqualFold(et.Name, name) {
			return exam.ErrExamTypeExists
		}
	}
	return nil
}

func (repo *examRepository) CreateExamType(_ context.Context, et exam.ExamType) (exam.ExamType, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	et.ID = uuid.New().String()
	repo.db.examTypes[et.ID] = et
	return et, nil
}

func (repo *examRepository) GetExamType(_ context.Context, id string) (exam.ExamType, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if et, ok := repo.db.examTypes[id]; ok {
		return et, nil
	}
	return exam.ExamType{}, exam.ErrExamTypeNotFound
}

func (repo *examRepository) QueryExamTypes(_ context.Context, filter *exam.ExamTypeFilter) ([]exam.ExamType, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ets := make([]exam.ExamType, 0, len(repo.db.examTypes))
	for _, et := range repo.db.examTypes {
		if filter.Match(et) {
			ets = append(ets, et)
		}
	}
	sort.Slice(ets, func(i, j int) bool {
		if ets[i].Order != ets[j].Order {
			return ets[i].Order < ets[j].Order
		}
		return ets[i].Name < ets[j].Name
	})
	return ets, nil
}

func (repo *examRepository) UpdateExamType(_ context.Context, et exam.ExamType) (exam.ExamType, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.examTypes[et.ID]; !ok {
		return exam.ExamType{}, exam.ErrExamTypeNotFound
	}
	repo.db.examTypes[et.ID] = et
	return et, nil
}

func (repo *examRepository) CreateScores(_ context.Context, scores []exam.ExamScore) ([]exam.ExamScore, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	created := make([]exam.ExamScore, 0, len(scores))
	for _, s := range scores {
		s.ID = uuid.New().String()
		repo.db.scores[s.ID] = s
		created = append(created, s)
	}
	return created, nil
}

func (repo *examRepository) QueryScores(_ context.Context, filter *exam.ScoreFilter) ([]exam.ExamScore, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	scores := make([]exam.ExamScore, 0)
	for _, s := range repo.db.scores {
		if filter.Match(s) {
			scores = append(scores, s)
		}
	}
	sort.Slice(scores, func(i, j int) bool {
		if !scores[i].RecordedAt.Equal(scores[j].RecordedAt) {
			return scores[i].RecordedAt.Before(scores[j].RecordedAt)
		}
		return scores[i].ID < scores[j].ID
	})
	return scores, nil
}
