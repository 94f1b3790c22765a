// Package usage supplies the usage counters reported to the license
// authority.
package usage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// RowQuerier is the subset of *pgxpool.Pool the store depends on.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const responsesThisYearQuery = `
SELECT COUNT(*)
FROM responses
WHERE created_at >= date_trunc('year', now())`

// ResponseStore counts survey responses from Postgres.
type ResponseStore struct {
	db RowQuerier
}

// NewResponseStore creates a response counter backed by the given pool.
func NewResponseStore(db RowQuerier) *ResponseStore {
	return &ResponseStore{db: db}
}

// ResponsesThisYear returns the number of survey responses recorded in the
// current calendar year.
func (s *ResponseStore) ResponsesThisYear(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, responsesThisYearQuery).Scan(&count); err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	return count, nil
}
