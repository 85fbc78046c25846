package core

import "context"

type (
	// Transactor runs fn within a database transaction.
	// The transaction travels in the context handed to fn; repositories called with that context join it.
	// The transaction is rolled back when fn returns an error.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	// Locker serializes bulk operations over the same aggregate (eg. a grade).
	// The lock is held until the enclosing transaction ends.
	Locker interface {
		Lock(ctx context.Context, key string) error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Pagination of list queries. Zero values mean "everything".
type Pagination struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}
