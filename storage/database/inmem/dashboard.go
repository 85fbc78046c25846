package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/shule/core/dashboard"
)

type dashboardRepository struct {
	db *DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil)

func NewDashboardRepository(db *DB) dashboard.Repository {
	return &dashboardRepository{db: db}
}

func (repo *dashboardRepository) Stats(_ context.Context, filter dashboard.Filter) (dashboard.Stats, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var stats dashboard.Stats

	perGrade := make(map[string]int)
	for _, s := range repo.db.students {
		if s.IsActive && !s.IsArchived {
			stats.Students++
			perGrade[s.GradeID]++
		}
	}
	for _, s := range repo.db.subjects {
		if s.IsActive {
			stats.Subjects++
		}
	}

	type gradeKey struct {
		level int
		name  string
	}
	keys := make(map[string]gradeKey)
	for _, g := range repo.db.grades {
		if !g.IsActive {
			continue
		}
		stats.Grades = append(stats.Grades, dashboard.GradeCount{
			GradeID:   g.ID,
			GradeName: g.DisplayName(),
			Students:  perGrade[g.ID],
		})
		keys[g.ID] = gradeKey{g.Level, g.DisplayName()}
	}
	sort.Slice(stats.Grades, func(i, j int) bool {
		a, b := keys[stats.Grades[i].GradeID], keys[stats.Grades[j].GradeID]
		if a.level != b.level {
			return a.level < b.level
		}
		return a.name < b.name
	})

	type termKey struct{ year, term int }
	terms := make(map[termKey]*dashboard.TermCount)
	termStudents := make(map[termKey]map[string]struct{})
	for _, s := range repo.db.scores {
		if filter.AcademicYear != 0 && s.AcademicYear != filter.AcademicYear {
			continue
		}
		k := termKey{s.AcademicYear, s.Term}
		tc, ok := terms[k]
		if !ok {
			tc = &dashboard.TermCount{AcademicYear: s.AcademicYear, Term: s.Term}
			terms[k] = tc
			termStudents[k] = make(map[string]struct{})
		}
		tc.Entries++
		termStudents[k][s.StudentID] = struct{}{}
	}
	for k, tc := range terms {
		tc.Students = len(termStudents[k])
		stats.ScoreEntries = append(stats.ScoreEntries, *tc)
	}
	sort.Slice(stats.ScoreEntries, func(i, j int) bool {
		a, b := stats.ScoreEntries[i], stats.ScoreEntries[j]
		if a.AcademicYear != b.AcademicYear {
			return a.AcademicYear > b.AcademicYear
		}
		return a.Term > b.Term
	})

	perStatus := make(map[string]int)
	for _, l := range repo.db.smsLogs {
		if !filter.SmsFrom.IsZero() && l.SentAt.Before(filter.SmsFrom) {
			continue
		}
		perStatus[string(l.Status)]++
	}
	for status, count := range perStatus {
		stats.Sms = append(stats.Sms, dashboard.SmsCount{Status: status, Count: count})
	}
	sort.Slice(stats.Sms, func(i, j int) bool { return stats.Sms[i].Status < stats.Sms[j].Status })

	return stats, nil
}
