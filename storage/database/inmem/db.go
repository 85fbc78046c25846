package inmemdb

import (
	"context"
	"maps"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/enrolment"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/reportcard"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/sms"
	"github.com/trezcool/shule/core/user"
)

type (
	// DB is an in-memory store. Transactions are serialized, and rolled back by restoring
	// a snapshot of the tables taken when they began.
	DB struct {
		mutex sync.RWMutex
		txMu  sync.Mutex
		tables
	}

	tables struct {
		users           map[string]user.User
		grades          map[string]school.Grade
		students        map[string]school.Student
		subjects        map[string]school.Subject
		gradeSubjects   map[string]enrolment.GradeSubject
		studentSubjects map[string]enrolment.StudentSubject
		examTypes       map[string]exam.ExamType
		scores          map[string]exam.ExamScore
		reportCards     map[string]reportcard.ReportCard
		smsLogs         map[string]sms.Log
	}

	txKey struct{}
)

var (
	_ core.Transactor = (*DB)(nil)
	_ core.Locker     = (*DB)(nil)

	errNoTx = errors.New("lock requested outside of a transaction")
)

func Open() *DB {
	return &DB{tables: tables{
		users:           make(map[string]user.User),
		grades:          make(map[string]school.Grade),
		students:        make(map[string]school.Student),
		subjects:        make(map[string]school.Subject),
		gradeSubjects:   make(map[string]enrolment.GradeSubject),
		studentSubjects: make(map[string]enrolment.StudentSubject),
		examTypes:       make(map[string]exam.ExamType),
		scores:          make(map[string]exam.ExamScore),
		reportCards:     make(map[string]reportcard.ReportCard),
		smsLogs:         make(map[string]sms.Log),
	}}
}

func (t tables) clone() tables {
	return tables{
		users:           maps.Clone(t.users),
		grades:          maps.Clone(t.grades),
		students:        maps.Clone(t.students),
		subjects:        maps.Clone(t.subjects),
		gradeSubjects:   maps.Clone(t.gradeSubjects),
		studentSubjects: maps.Clone(t.studentSubjects),
		examTypes:       maps.Clone(t.examTypes),
		scores:          maps.Clone(t.scores),
		reportCards:     maps.Clone(t.reportCards),
		smsLogs:         maps.Clone(t.smsLogs),
	}
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

// WithinTx runs fn in a transaction. Nested calls join the enclosing transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mutex.RLock()
	snapshot := db.tables.clone()
	db.mutex.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			db.rollback(snapshot)
			panic(p)
		}
		if err != nil {
			db.rollback(snapshot)
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func (db *DB) rollback(snapshot tables) {
	db.mutex.Lock()
	db.tables = snapshot
	db.mutex.Unlock()
}

// Lock is satisfied by the transaction itself, transactions being serialized.
func (db *DB) Lock(ctx context.Context, _ string) error {
	if !inTx(ctx) {
		return errNoTx
	}
	return nil
}

// Flush empties every table.
func (db *DB) Flush() {
	fresh := Open()
	db.mutex.Lock()
	db.tables = fresh.tables
	db.mutex.Unlock()
}
