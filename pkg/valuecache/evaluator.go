package valuecache

import (
	"time"

	"github.com/gridglance/gridglance/pkg/types"
)

const (
	reasonEmpty      = "empty"
	reasonNoCoverage = "no_coverage"
	reasonRecheck    = "fallback_recheck"
)

// SelectCurrent returns the record whose window contains at. Records are
// scanned in order without stopping early, so when several windows overlap
// the last one wins since feeds append corrected entries.
func SelectCurrent(records []types.IntervalRecord, at time.Time) (types.IntervalRecord, bool) {
	var (
		current types.IntervalRecord
		found   bool
	)
	for _, r := range records {
		if r.Contains(at) {
			current = r
			found = true
		}
	}
	return current, found
}

// NeedsRefresh reports whether c must be re-fetched before serving a value
// for now. The lookup happens at now minus correction. While the cache is
// serving a forecast, a refresh is forced once more than recheck has passed
// since the last fetch so the actual value is picked up when published.
func NeedsRefresh(c *Cache, now time.Time, correction, recheck time.Duration) bool {
	return refreshReason(c, now, correction, recheck) != ""
}

func refreshReason(c *Cache, now time.Time, correction, recheck time.Duration) string {
	if c.IsEmpty() {
		return reasonEmpty
	}
	if _, ok := SelectCurrent(c.records, now.Add(-correction)); !ok {
		return reasonNoCoverage
	}
	if c.usingFallback && now.Sub(c.lastFetch) > recheck {
		return reasonRecheck
	}
	return ""
}
