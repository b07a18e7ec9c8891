// Package record defines the canonical shape of one indexed filesystem entry
// and the three-column text encoding every storage backend persists.
//
// This package imports nothing internal. Backends decode rows through Decode
// so that both engines agree on what counts as a malformed row:
//   - path must be non-empty valid UTF-8
//   - creation_instant must parse with InstantLayout
//   - creation_timezone must resolve through time.LoadLocation
package record
