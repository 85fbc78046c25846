package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/sms"
)

type smsLogRepository struct {
	*Store
}

var _ sms.Repository = (*smsLogRepository)(nil)

func NewSmsLogRepository(store *Store) sms.Repository {
	return &smsLogRepository{Store: store}
}

func (repo *smsLogRepository) CreateLogs(ctx context.Context, logs []sms.Log) ([]sms.Log, error) {
	if len(logs) == 0 {
		return []sms.Log{}, nil
	}
	rows := make([]smsLogRow, 0, len(logs))
	for _, l := range logs {
		l.ID = uuid.New().String()
		rows = append(rows, newSmsLogRow(l))
	}
	if err := repo.conn(ctx).CreateInBatches(&rows, 500).Error; err != nil {
		return nil, errors.Wrap(err, "inserting sms logs")
	}

	created := make([]sms.Log, 0, len(rows))
	for _, r := range rows {
		created = append(created, r.log())
	}
	return created, nil
}

func (repo *smsLogRepository) QueryLogs(ctx context.Context, filter *sms.LogFilter) ([]sms.Log, error) {
	q := repo.conn(ctx).Model(&smsLogRow{})
	if filter != nil {
		if len(filter.StudentIDs) > 0 {
			q = q.Where("student_id IN ?", filter.StudentIDs)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Kind != "" {
			q = q.Where("kind = ?", filter.Kind)
		}
		if !filter.SentFrom.IsZero() {
			q = q.Where("sent_at >= ?", filter.SentFrom.UTC())
		}
		if !filter.SentTo.IsZero() {
			q = q.Where("sent_at <= ?", filter.SentTo.UTC())
		}
		q = paginate(q, filter.Pagination)
	}

	var rows []smsLogRow
	if err := q.Order("sent_at DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying sms logs")
	}
	logs := make([]sms.Log, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, r.log())
	}
	return logs, nil
}
