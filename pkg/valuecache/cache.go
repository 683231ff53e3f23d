package valuecache

import (
	"slices"
	"time"

	"github.com/gridglance/gridglance/pkg/types"
)

// Cache holds the most recently fetched records of a single feed. It has no
// locking of its own, the owning Provider serializes access.
type Cache struct {
	records       []types.IntervalRecord
	lastFetch     time.Time
	usingFallback bool
}

// Replace swaps in a freshly fetched batch. The fallback flag is left alone,
// it is only changed by resolving a value.
func (c *Cache) Replace(records []types.IntervalRecord, fetchedAt time.Time) {
	c.records = slices.Clone(records)
	c.lastFetch = fetchedAt
}

// IsEmpty returns true if there are no records to evaluate.
func (c *Cache) IsEmpty() bool {
	return len(c.records) == 0
}

// Records returns a copy of the cached records in fetch order.
func (c *Cache) Records() []types.IntervalRecord {
	return slices.Clone(c.records)
}

// LastFetch returns when the records were fetched, zero if never.
func (c *Cache) LastFetch() time.Time {
	return c.lastFetch
}

// UsingFallback returns true if the last value served came from a forecast.
func (c *Cache) UsingFallback() bool {
	return c.usingFallback
}

// SetFallback records whether the last value served came from a forecast.
func (c *Cache) SetFallback(fallback bool) {
	c.usingFallback = fallback
}
