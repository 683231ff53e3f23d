package valuecache

import (
	"context"
	"errors"

	"github.com/gridglance/gridglance/pkg/feed"
)

// ErrNoCoverage is returned when no cached interval covers the requested
// instant, even after a refresh.
var ErrNoCoverage = errors.New("no interval covers the current time")

// Kind returns a stable label for the kind of err, suitable for logs and
// metric labels. It returns an empty string for a nil error.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoCoverage):
		return "no_coverage"
	case errors.Is(err, feed.ErrMissingField):
		return "missing_field"
	case errors.Is(err, feed.ErrParse):
		return "parse"
	case errors.Is(err, feed.ErrTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return "transport"
	default:
		return "unknown"
	}
}
