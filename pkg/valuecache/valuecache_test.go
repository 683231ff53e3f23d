package valuecache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gridglance/gridglance/pkg/log"
	"github.com/gridglance/gridglance/pkg/types"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{t: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *testClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// at returns 2024-01-01 at hh:mm UTC.
func at(hh, mm int) time.Time {
	return time.Date(2024, 1, 1, hh, mm, 0, 0, time.UTC)
}

func record(from, to time.Time, actual, forecast *float64) types.IntervalRecord {
	return types.IntervalRecord{
		ValidFrom: from,
		ValidTo:   to,
		Actual:    actual,
		Forecast:  forecast,
	}
}
