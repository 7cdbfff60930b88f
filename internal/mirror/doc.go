// Package mirror keeps a best-effort copy of workspace snapshots in a SQL
// row store.
//
// One row per session id, replaced on every push. PostgreSQL is reached
// through the pgx stdlib driver and SQLite through ncruces/go-sqlite3.
// Failures are logged at warn level and returned as failed Results; they
// never stop local persistence.
package mirror
