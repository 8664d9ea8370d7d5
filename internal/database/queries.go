package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"rentalhub/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the reads shared by the store and its transactions.
type queries struct {
	q querier
}

type rowScanner interface {
	Scan(dest ...any) error
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

// statusArgs renders an IN (...) list for the given statuses.
func statusArgs(statuses []models.RentalStatus) (string, []any) {
	marks := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, s := range statuses {
		marks[i] = "?"
		args[i] = string(s)
	}
	return "(" + strings.Join(marks, ", ") + ")", args
}
