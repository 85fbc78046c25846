package inmemdb_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/storage/database/inmem"
	"github.com/trezcool/shule/tests"
)

func TestDB_WithinTx(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	repo := inmemdb.NewSchoolRepository(db)
	kept := testutil.CreateGrade(t, repo, "Grade 1", "", 1, school.PrimaryLower)

	t.Run("rollback", func(t *testing.T) {
		var created school.Grade
		err := db.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			if created, err = repo.CreateGrade(ctx, school.Grade{Name: "Grade 2", Level: 2}); err != nil {
				return err
			}
			// nested calls join the transaction
			return db.WithinTx(ctx, func(ctx context.Context) error {
				require.NoError(t, db.Lock(ctx, "grade:"+created.ID))
				return errors.New("abort")
			})
		})
		assert.EqualError(t, err, "abort")

		_, err = repo.GetGrade(ctx, created.ID)
		assert.True(t, core.IsNotFound(err))
		_, err = repo.GetGrade(ctx, kept.ID)
		assert.NoError(t, err)
	})

	t.Run("panic", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = db.WithinTx(ctx, func(ctx context.Context) error {
				_, _ = repo.CreateGrade(ctx, school.Grade{Name: "Grade 3", Level: 3})
				panic("boom")
			})
		})
		grades, err := repo.QueryGrades(ctx, nil, nil)
		require.NoError(t, err)
		assert.Len(t, grades, 1)
	})

	t.Run("commit", func(t *testing.T) {
		var created school.Grade
		err := db.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			created, err = repo.CreateGrade(ctx, school.Grade{Name: "Grade 4", Level: 4})
			return err
		})
		require.NoError(t, err)
		_, err = repo.GetGrade(ctx, created.ID)
		assert.NoError(t, err)
	})

	t.Run("lock outside of a transaction", func(t *testing.T) {
		assert.Error(t, db.Lock(ctx, "grade:"+kept.ID))
	})
}
