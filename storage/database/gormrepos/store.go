package gormrepos

import (
	"context"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/trezcool/shule/core"
)

var errNoTx = errors.New("lock requires a transaction")

type txKey struct{}

// Store hands out the connection of the repositories:
// the transaction carried by the context if any, the pool otherwise.
type Store struct {
	db *gorm.DB
}

var (
	_ core.Transactor = (*Store)(nil)
	_ core.Locker     = (*Store)(nil)
)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func txFrom(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

// WithinTx runs fn in a transaction. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Lock takes a transaction scoped advisory lock on key. It is released on commit or rollback.
func (s *Store) Lock(ctx context.Context, key string) error {
	tx, ok := txFrom(ctx)
	if !ok {
		return errNoTx
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error
}

// notFound maps gorm's "record not found" error to target.
func notFound(err error, target error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// order applies the requested ordering, restricted to the allowed fields (field name -> column).
// Falls back to def when nothing applies.
func order(q *gorm.DB, ordering []core.DBOrdering, allowed map[string]string, def ...string) *gorm.DB {
	var applied bool
	for _, ord := range ordering {
		col, ok := allowed[strings.ToLower(ord.Field)]
		if !ok {
			continue
		}
		q = q.Order(core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		applied = true
	}
	if !applied {
		for _, o := range def {
			q = q.Order(o)
		}
	}
	return q
}

func paginate(q *gorm.DB, p core.Pagination) *gorm.DB {
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	return q
}

func ilike(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}
