package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequentialIDs generates "<prefix>-000001", "<prefix>-000002", ...
//
// Used in place of random UUIDs so lake data file names are stable across
// test runs.
//
// Thread-safety: safe for concurrent use.
type SequentialIDs struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialIDs creates a generator. An empty prefix becomes "id".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequentialIDs{prefix: prefix}
}

// Next returns the next identifier.
func (g *SequentialIDs) Next() string {
	return fmt.Sprintf("%s-%06d", g.prefix, g.n.Add(1))
}
