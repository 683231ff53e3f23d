package types

import (
	"time"
)

// IntervalRecord represents one provider-defined window (typically half an
// hour) with the value published for it.
type IntervalRecord struct {
	ValidFrom time.Time `json:"validFrom"`
	ValidTo   time.Time `json:"validTo"`

	// Actual is the measured value. Feeds may leave it empty until the
	// measurement has been published.
	Actual *float64 `json:"actual,omitempty"`

	// Forecast is the provisional value published in advance.
	Forecast *float64 `json:"forecast,omitempty"`
}

// Contains checks if t is within the half-open window [ValidFrom, ValidTo).
func (r IntervalRecord) Contains(t time.Time) bool {
	return !t.Before(r.ValidFrom) && t.Before(r.ValidTo)
}

// Float returns a pointer to v. It is useful for building records.
func Float(v float64) *float64 {
	return &v
}

// Reading is the value served for the current instant.
type Reading struct {
	Feed  string  `json:"feed"`
	Value float64 `json:"value"`

	// Fallback is true when Value came from the forecast because the actual
	// measurement was not available.
	Fallback bool `json:"fallback"`

	// OutOfRange is true when Value is outside of the range the feed
	// considers displayable.
	OutOfRange bool `json:"outOfRange"`

	ValidFrom time.Time `json:"validFrom"`
	ValidTo   time.Time `json:"validTo"`
	FetchedAt time.Time `json:"fetchedAt"`
}
