package poller

import (
	"fmt"

	"github.com/gridglance/gridglance/pkg/types"
)

const (
	displayError      = "Err "
	displayOutOfRange = "----"
)

// Format renders a reading for a four digit seven-segment display. The
// decimal point does not take a digit so precision is chosen by magnitude.
// wholeNumbers forces integer output, used for carbon intensity.
func Format(r types.Reading, ok, wholeNumbers bool) string {
	if !ok {
		return displayError
	}
	if r.OutOfRange {
		return displayOutOfRange
	}
	v := r.Value
	switch {
	case wholeNumbers && v >= -999 && v <= 9999:
		return fmt.Sprintf("%4.0f", v)
	case v >= -9.99 && v <= 99.99:
		return fmt.Sprintf("%4.2f", v)
	case v >= -99.9 && v <= 999.9:
		return fmt.Sprintf("%4.1f", v)
	case v >= -999 && v <= 9999:
		return fmt.Sprintf("%4.0f", v)
	default:
		return displayOutOfRange
	}
}

// Brightness returns the display brightness for the local hour, dimmed
// overnight and in the evening.
func Brightness(hour int) float64 {
	switch {
	case hour < 6 || hour >= 23:
		return 0.1
	case hour < 7 || hour >= 19:
		return 0.4
	default:
		return 0.8
	}
}
