package valuecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gridglance/gridglance/pkg/feed"
	"github.com/gridglance/gridglance/pkg/log"
	"github.com/gridglance/gridglance/pkg/types"
	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves the records of a source.
type Fetcher interface {
	Fetch(ctx context.Context, src feed.Source) ([]types.IntervalRecord, error)
}

// Observer is notified about fetches and served values. kind is the result
// of Kind for the error, empty on success.
type Observer interface {
	ObserveFetch(feed, kind string, took time.Duration)
	ObserveError(feed, kind string)
	ObserveReading(r types.Reading)
}

type nopObserver struct{}

func (nopObserver) ObserveFetch(string, string, time.Duration) {}
func (nopObserver) ObserveError(string, string)                {}
func (nopObserver) ObserveReading(types.Reading)               {}

// Option customizes a Provider.
type Option func(*Provider)

// WithClock replaces time.Now. This is primarily used for testing.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// WithObserver registers o to be notified about fetches and values.
func WithObserver(o Observer) Option {
	return func(p *Provider) {
		p.observer = o
	}
}

// Provider serves the value of a feed that is valid for the current time.
// It caches the fetched intervals and only goes back to the feed when the
// cache no longer covers now. Concurrent callers share a single fetch.
type Provider struct {
	cfg      Config
	fetcher  Fetcher
	observer Observer
	now      func() time.Time

	group singleflight.Group

	mu    sync.Mutex
	cache Cache
}

// New creates a Provider for cfg using fetcher to retrieve records.
func New(cfg Config, fetcher Fetcher, opts ...Option) (*Provider, error) {
	p := &Provider{}
	if err := p.init(cfg, fetcher, opts...); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) init(cfg Config, fetcher Fetcher, opts ...Option) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if fetcher == nil {
		return errors.New("fetcher is required")
	}
	p.cfg = cfg
	p.fetcher = fetcher
	p.observer = nopObserver{}
	p.now = time.Now
	for _, o := range opts {
		o(p)
	}
	return nil
}

// Name returns the name of the feed being served.
func (p *Provider) Name() string {
	return p.cfg.Source.Name
}

// Current returns the reading valid for now. Errors are logged here and
// returned with their kind intact, the cache is never cleared on error.
func (p *Provider) Current(ctx context.Context) (types.Reading, error) {
	r, err := p.current(ctx)
	if err != nil {
		kind := Kind(err)
		p.observer.ObserveError(p.Name(), kind)
		level := slog.LevelError
		if errors.Is(err, ErrNoCoverage) {
			level = slog.LevelWarn
		}
		log.Ctx(ctx).Log(
			ctx,
			level,
			"failed to get current value",
			slog.String("feed", p.Name()),
			slog.String("kind", kind),
			slog.Any("error", err),
		)
		return types.Reading{}, err
	}
	return r, nil
}

// CurrentValue returns the value valid for now, or false if there is none.
// It never fails, the next call is the retry.
func (p *Provider) CurrentValue(ctx context.Context) (float64, bool) {
	r, err := p.Current(ctx)
	if err != nil {
		return 0, false
	}
	return r.Value, true
}

func (p *Provider) current(ctx context.Context) (types.Reading, error) {
	now := p.now()
	at := now.Add(-p.cfg.Correction)

	p.mu.Lock()
	reason := refreshReason(&p.cache, now, p.cfg.Correction, p.cfg.RecheckInterval)
	p.mu.Unlock()

	if reason != "" {
		log.Ctx(ctx).DebugContext(
			ctx,
			"refreshing feed data",
			slog.String("feed", p.Name()),
			slog.String("reason", reason),
		)
		if err := p.refresh(ctx, now); err != nil {
			return types.Reading{}, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := SelectCurrent(p.cache.records, at)
	if !ok {
		return types.Reading{}, fmt.Errorf("%w: %s at %s", ErrNoCoverage, p.Name(), at.UTC().Format(time.RFC3339))
	}

	res, err := Resolve(record, p.cache.usingFallback)
	if err != nil {
		return types.Reading{}, err
	}
	p.cache.SetFallback(res.Fallback)
	if res.Entered {
		log.Ctx(ctx).WarnContext(
			ctx,
			"actual value unavailable, falling back to forecast",
			slog.String("feed", p.Name()),
			slog.Time("validFrom", record.ValidFrom),
		)
	} else if res.Recovered {
		log.Ctx(ctx).InfoContext(
			ctx,
			"actual value available again",
			slog.String("feed", p.Name()),
			slog.Time("validFrom", record.ValidFrom),
		)
	}

	reading := types.Reading{
		Feed:       p.Name(),
		Value:      res.Value,
		Fallback:   res.Fallback,
		OutOfRange: res.Value < p.cfg.MinValue || res.Value > p.cfg.MaxValue,
		ValidFrom:  record.ValidFrom,
		ValidTo:    record.ValidTo,
		FetchedAt:  p.cache.lastFetch,
	}
	p.observer.ObserveReading(reading)
	return reading, nil
}

// refresh fetches the feed and replaces the cache on success. Callers
// arriving while a fetch is in flight wait for it instead of starting
// another one.
func (p *Provider) refresh(ctx context.Context, now time.Time) error {
	_, err, shared := p.group.Do(p.Name(), func() (interface{}, error) {
		// another caller may have refreshed between our check and here
		p.mu.Lock()
		reason := refreshReason(&p.cache, now, p.cfg.Correction, p.cfg.RecheckInterval)
		p.mu.Unlock()
		if reason == "" {
			return nil, nil
		}

		// the fetch is shared, so one caller going away must not cancel it
		// for the others; the fetcher bounds it with its own timeout
		start := time.Now()
		records, err := p.fetcher.Fetch(context.WithoutCancel(ctx), p.cfg.Source)
		p.observer.ObserveFetch(p.Name(), Kind(err), time.Since(start))
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.cache.Replace(records, p.now())
		p.mu.Unlock()
		return nil, nil
	})
	if shared {
		log.Ctx(ctx).DebugContext(ctx, "shared in-flight fetch", slog.String("feed", p.Name()))
	}
	return err
}

// Snapshot returns a copy of the cache. This is primarily used for testing
// and diagnostics.
func (p *Provider) Snapshot() *Cache {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &Cache{
		records:       p.cache.Records(),
		lastFetch:     p.cache.lastFetch,
		usingFallback: p.cache.usingFallback,
	}
}
