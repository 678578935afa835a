// Package sqlstore implements account.Store and session.Store on
// database/sql for PostgreSQL (pgx stdlib driver) and SQLite
// (mattn/go-sqlite3). Schemas are embedded goose migrations, one directory
// per dialect.
//
// Queries are written once with '?' placeholders and rebound for
// PostgreSQL. Every timestamp is bound from Go in UTC; no statement calls the
// database clock, so tests can drive time explicitly.
//
// The login-failure transition is a single UPDATE ... RETURNING statement so
// concurrent failures for one account never lose an increment.
package sqlstore
