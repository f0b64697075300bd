package storage

import (
	"fmt"
)

// Key schema for Pebble storage:
//
//   ord:<id>   → Order (JSON)
//   log:<id>   → LogEntry (JSON)
//   seq:ord    → last assigned order id
//   seq:log    → last assigned log id
//
// IDs are zero-padded (20 digits) so lexicographic order is id order.

// Key prefixes
const (
	prefixOrder = "ord:"
	prefixLog   = "log:"
	prefixSeq   = "seq:"
)

// orderKey returns the key for an order
// Format: "ord:{id}"
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

// logKey returns the key for an audit entry
// Format: "log:{id}"
func logKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixLog, id))
}

func orderSeqKey() []byte { return []byte(prefixSeq + "ord") }
func logSeqKey() []byte   { return []byte(prefixSeq + "log") }

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
