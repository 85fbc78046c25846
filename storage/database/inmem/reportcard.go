package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/reportcard"
)

type reportCardRepository struct {
	db *DB
}

var _ reportcard.Repository = (*reportCardRepository)(nil)

func NewReportCardRepository(db *DB) reportcard.Repository {
	return &reportCardRepository{db: db}
}

func (repo *reportCardRepository) UpsertReportCard(_ context.Context, rc reportcard.ReportCard) (reportcard.ReportCard, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.reportCards {
		if existing.StudentID == rc.StudentID && existing.AcademicYear == rc.AcademicYear && existing.Term == rc.Term {
			rc.ID = existing.ID
			rc.TeacherRemarks = existing.TeacherRemarks
			rc.HomeroomRemarks = existing.HomeroomRemarks
			break
		}
	}
	if rc.ID == "" {
		rc.ID = uuid.New().String()
	}
	repo.db.reportCards[rc.ID] = rc
	return rc, nil
}

func (repo *reportCardRepository) GetReportCard(_ context.Context, id string) (reportcard.ReportCard, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rc, ok := repo.db.reportCards[id]; ok {
		return rc, nil
	}
	return reportcard.ReportCard{}, reportcard.ErrNotFound
}

func (repo *reportCardRepository) QueryReportCards(_ context.Context, filter *reportcard.Filter) ([]reportcard.ReportCard, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	cards := make([]reportcard.ReportCard, 0)
	for _, rc := range repo.db.reportCards {
		if filter.Match(rc) {
			cards = append(cards, rc)
		}
	}
	sort.Slice(cards, func(i, j int) bool {
		if !cards[i].GeneratedAt.Equal(cards[j].GeneratedAt) {
			return cards[i].GeneratedAt.After(cards[j].GeneratedAt)
		}
		return cards[i].ID < cards[j].ID
	})
	return cards, nil
}

func (repo *reportCardRepository) UpdateReportCard(_ context.Context, rc reportcard.ReportCard) (reportcard.ReportCard, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.reportCards[rc.ID]; !ok {
		return reportcard.ReportCard{}, reportcard.ErrNotFound
	}
	repo.db.reportCards[rc.ID] = rc
	return rc, nil
}
