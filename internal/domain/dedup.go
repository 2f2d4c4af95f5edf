package domain

import (
	"context"
	"time"
)

// DedupStore records the first time a transaction hash was seen.
// Implementations must be write-once: a second write for the same hash
// never alters the stored value.
type DedupStore interface {
	// RecordFirstSeen stores seenAt for hash unless a value already exists.
	// It reports whether this call performed the write.
	RecordFirstSeen(ctx context.Context, hash string, seenAt time.Time) (bool, error)
}

// DedupKey returns the store key for hash under namespace.
func DedupKey(namespace, hash string) string {
	return namespace + "/block_timestamp/" + hash
}
