package allocator

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Allocator hands out derivation indices. The single-row atomic increment is
// the whole duplicate-prevention story: two concurrent callers serialize on
// the row lock and observe distinct pre-increment values.
type Allocator struct {
	db DB
}

func NewAllocator(db DB) *Allocator {
	return &Allocator{db: db}
}

func (a *Allocator) NextIndex(ctx context.Context) (uint64, error) {
	var index uint64
	err := a.db.QueryRow(ctx, `
		UPDATE derivation_counter
		SET next_index = next_index + 1
		WHERE id = 1
		RETURNING next_index - 1
	`).Scan(&index)
	if err != nil {
		return 0, err
	}
	return index, nil
}
