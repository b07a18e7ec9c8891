// Package store defines the backend-agnostic storage contract for indexed
// filesystem records and the machinery shared by every backend.
//
// The contract has two halves:
//   - Writer: a Sink (Accept/Flush) that buffers records in a BatchWriter
//     and commits them through a backend Committer in atomic batches
//   - Reader: Load opens an ordered scan and returns a Cursor over a
//     backend RowSource
//
// # Invariants
//
// Batch retention: a BatchWriter clears its buffer only after Commit
// succeeds. A CommitFailure leaves every record buffered for the next Flush.
//
// Handle isolation: every Writer, Reader and Cursor owns its own backend
// connection. No locking is needed between a writer and concurrent readers.
//
// Ordering: cursors yield records ascending by the order key column; ties
// keep the backend's stable insertion order.
//
// Fault cap: a scan skips malformed rows until more than MaxScanFaults have
// been seen, then ends as if exhausted. Cursor.Truncated tells the two apart.
//
// Backends live in the sqlite and lake subpackages.
package store
