// Package sqlite is the relational-row backend: records live in one SQLite
// table and every batch is one transaction.
//
// # Database Configuration
//
//   - WAL mode: readers keep reading while the writer commits
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// The pragmas are passed in the DSN so every pooled connection gets them.
//
// # Handles
//
// Store only remembers the database path. Each Writer opens its own
// single-connection *sql.DB; each Reader opens its own *sql.DB and every Load
// checks out a dedicated *sql.Conn that the returned cursor owns.
//
// Scans are ORDER BY creation_instant ASC, rowid ASC: the instant column is a
// fixed-width UTC string, so text order is time order and rowid keeps ties in
// insertion order.
package sqlite
