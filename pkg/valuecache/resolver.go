package valuecache

import (
	"fmt"

	"github.com/gridglance/gridglance/pkg/feed"
	"github.com/gridglance/gridglance/pkg/types"
)

// Resolution is the value picked from a record.
type Resolution struct {
	Value    float64
	Fallback bool

	// Entered is true when this resolution switched into fallback mode and
	// Recovered when it switched out of it.
	Entered   bool
	Recovered bool
}

// Resolve picks the actual value of r, or its forecast when the actual value
// has not been published. previous is the fallback state of the prior call.
func Resolve(r types.IntervalRecord, previous bool) (Resolution, error) {
	var res Resolution
	switch {
	case r.Actual != nil:
		res.Value = *r.Actual
	case r.Forecast != nil:
		res.Value = *r.Forecast
		res.Fallback = true
	default:
		return Resolution{}, fmt.Errorf("%w: interval starting %s has neither actual nor forecast", feed.ErrMissingField, r.ValidFrom)
	}
	res.Entered = res.Fallback && !previous
	res.Recovered = !res.Fallback && previous
	return res, nil
}
