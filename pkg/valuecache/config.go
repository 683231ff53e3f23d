package valuecache

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gridglance/gridglance/pkg/feed"
	"github.com/levenlabs/go-lflag"
)

const (
	// DefaultRecheckInterval is the minimum time between refreshes while a
	// forecast is being served.
	DefaultRecheckInterval = 5 * time.Minute

	// DefaultIntensityCorrection compensates for the carbon intensity feed
	// publishing each window after it has ended.
	DefaultIntensityCorrection = 30 * time.Minute
)

var validate = validator.New()

// Config parameterizes a Provider for one feed.
type Config struct {
	Source feed.Source

	// Correction is subtracted from the current time before looking up the
	// covering interval.
	Correction      time.Duration `validate:"gte=0"`
	RecheckInterval time.Duration `validate:"gte=0"`

	// Values outside of [MinValue, MaxValue] are still served but flagged as
	// out of range.
	MinValue float64
	MaxValue float64 `validate:"gtefield=MinValue"`
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid %s provider config: %w", c.Source.Name, err)
	}
	return nil
}

// PriceConfig returns the configuration for a unit price feed. Prices are
// looked up without correction.
func PriceConfig(src feed.Source) Config {
	return Config{
		Source:          src,
		RecheckInterval: DefaultRecheckInterval,
		MinValue:        -999,
		MaxValue:        9999,
	}
}

// IntensityConfig returns the configuration for a carbon intensity feed.
func IntensityConfig(src feed.Source) Config {
	return Config{
		Source:          src,
		Correction:      DefaultIntensityCorrection,
		RecheckInterval: DefaultRecheckInterval,
		MinValue:        -999,
		MaxValue:        9999,
	}
}

// Configured sets up the flags for the selected feed and returns the
// Provider. The Provider is usable once lflag.Configure has run.
func Configured(opts ...Option) *Provider {
	p := &Provider{}
	feedFlags := feed.RegisterFlags()
	recheck := lflag.Duration("recheck-interval", DefaultRecheckInterval, "Minimum time between refreshes while serving a forecast")
	correction := lflag.Duration("carbon-correction", DefaultIntensityCorrection, "Publication lag subtracted from now when looking up carbon intensity")

	lflag.Do(func() {
		src, err := feedFlags.Source()
		if err != nil {
			panic(fmt.Sprintf("feed configuration failed: %v", err))
		}
		var cfg Config
		switch feedFlags.Name() {
		case feed.NameCarbon:
			cfg = IntensityConfig(src)
			cfg.Correction = *correction
		default:
			cfg = PriceConfig(src)
		}
		cfg.RecheckInterval = *recheck
		if err := p.init(cfg, feedFlags.Fetcher(), opts...); err != nil {
			panic(fmt.Sprintf("provider validation failed: %v", err))
		}
	})

	return p
}
