package store

import (
	"fmt"
)

// PostgresDialect implements Dialect for PostgreSQL databases.
type PostgresDialect struct{}

// DriverName returns "postgres" for the lib/pq driver.
func (d *PostgresDialect) DriverName() string {
	return "postgres"
}

// Placeholder returns "$N" for the given position (PostgreSQL uses numbered placeholders).
func (d *PostgresDialect) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

// InitStatements returns no statements; PostgreSQL needs no per-connection setup here.
func (d *PostgresDialect) InitStatements() []string {
	return nil
}

// UpsertClause returns the PostgreSQL conflict clause for insert-or-replace.
func (d *PostgresDialect) UpsertClause(column string) string {
	return " ON CONFLICT(" + column + ") DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at"
}
