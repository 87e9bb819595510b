// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package: the audit ledger,
// recurrence schedules and notifications. It also embeds the goose SQL
// migrations that create their tables and maps pgx driver errors onto the
// store sentinel errors.
package postgres
