package repositories

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// maxQueryVars keeps IN clauses below SQLite's default host parameter limit.
const maxQueryVars = 500

// scanner is satisfied by [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// placeholders returns "?, ?, ..." with n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
