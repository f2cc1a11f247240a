// Package postgres persists users, sessions and audit events in
// PostgreSQL through a pgx connection pool.
//
// The schema ships embedded in the package and is applied with Migrate.
package postgres
