// Package memstore provides mutex-guarded in-memory implementations of
// account.Store and session.Store for tests, examples and single-process
// development servers.
//
// Every mutation runs under one lock, which gives the same atomicity the SQL
// stores obtain from conditional UPDATE statements.
package memstore
