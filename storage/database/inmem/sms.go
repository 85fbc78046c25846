package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/sms"
)

type smsLogRepository struct {
	db *DB
}

var _ sms.Repository = (*smsLogRepository)(nil)

func NewSmsLogRepository(db *DB) sms.Repository {
	return &smsLogRepository{db: db}
}

func (repo *smsLogRepository) CreateLogs(_ context.Context, logs []sms.Log) ([]sms.Log, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	created := make([]sms.Log, 0, len(logs))
	for _, l := range logs {
		l.ID = uuid.New().String()
		repo.db.smsLogs[l.ID] = l
		created = append(created, l)
	}
	return created, nil
}

func (repo *smsLogRepository) QueryLogs(_ context.Context, filter *sms.LogFilter) ([]sms.Log, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	logs := make([]sms.Log, 0)
	for _, l := range repo.db.smsLogs {
		if filter.Match(l) {
			logs = append(logs, l)
		}
	}
	sort.Slice(logs, func(i, j int) bool {
		if !logs[i].SentAt.Equal(logs[j].SentAt) {
			return logs[i].SentAt.After(logs[j].SentAt)
		}
		return logs[i].ID < logs[j].ID
	})
	if filter != nil {
		logs = paginate(logs, filter.Pagination)
	}
	return logs, nil
}
