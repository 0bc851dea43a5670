// Package sequence issues per-day ticket numbers.
//
// An Allocator returns, for a (day, provider) pair, a value it has never
// returned before for that pair. Values are dense on success; a caller that
// allocates and then fails to persist its entry leaves a gap, which the
// queue tolerates (and `queuectl renumber` can repair).
package sequence

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-queue-backend/internal/repo"
)

// Allocator hands out ticket numbers.
type Allocator interface {
	Allocate(ctx context.Context, day, provider string) (int64, error)
}

// Resetter is implemented by allocators whose counter can be moved, e.g.
// after renumbering a day.
type Resetter interface {
	Reset(ctx context.Context, day, provider string, seq int64) error
}

// SQLAllocator keeps the counter in the sequence_counters table and
// increments it with a single atomic upsert.
type SQLAllocator struct {
	DB  *gorm.DB
	Now func() time.Time
}

// NewSQLAllocator returns an allocator over db.
func NewSQLAllocator(db *gorm.DB) *SQLAllocator {
	return &SQLAllocator{DB: db, Now: time.Now}
}

// Allocate implements Allocator.
func (a *SQLAllocator) Allocate(ctx context.Context, day, provider string) (int64, error) {
	return repo.NextSequence(ctx, a.DB, day, provider, a.now())
}

// Reset implements Resetter.
func (a *SQLAllocator) Reset(ctx context.Context, day, provider string, seq int64) error {
	return repo.SetSequence(ctx, a.DB, day, provider, seq, a.now())
}

// WithDB returns a copy bound to db, so allocation joins the caller's
// transaction.
func (a *SQLAllocator) WithDB(db *gorm.DB) Allocator {
	cp := *a
	cp.DB = db
	return &cp
}

func (a *SQLAllocator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// TxBinder is implemented by allocators that can take part in a GORM
// transaction.
type TxBinder interface {
	WithDB(db *gorm.DB) Allocator
}
