package valuecache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gridglance/gridglance/pkg/feed"
	"github.com/gridglance/gridglance/pkg/feed/feedmock"
	"github.com/gridglance/gridglance/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	fetches  []string
	errors   []string
	readings []types.Reading
}

func (o *recordingObserver) ObserveFetch(feed, kind string, took time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fetches = append(o.fetches, kind)
}

func (o *recordingObserver) ObserveError(feed, kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, kind)
}

func (o *recordingObserver) ObserveReading(r types.Reading) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.readings = append(o.readings, r)
}

// blockingFetcher holds each fetch until release is closed, failing early
// if the fetch context is cancelled first.
type blockingFetcher struct {
	started chan struct{}
	release chan struct{}
	records []types.IntervalRecord
	calls   atomic.Int32
}

func (f *blockingFetcher) Fetch(ctx context.Context, src feed.Source) ([]types.IntervalRecord, error) {
	if f.calls.Add(1) == 1 {
		close(f.started)
	}
	select {
	case <-f.release:
		return f.records, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", feed.ErrTransport, ctx.Err())
	}
}

func testSource() feed.Source {
	return feed.Source{
		Name:   "test",
		URL:    "http://feed.invalid/rates",
		Decode: feed.DecodeOctopus,
	}
}

func newTestProvider(t *testing.T, cfg Config, clock *testClock) (*Provider, *feedmock.MockFetcher) {
	t.Helper()
	m := &feedmock.MockFetcher{}
	p, err := New(cfg, m, WithClock(clock.Now))
	require.NoError(t, err)
	return p, m
}

func TestProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("CachedWithoutFetch", func(t *testing.T) {
		clock := newTestClock(at(10, 15))
		p, m := newTestProvider(t, PriceConfig(testSource()), clock)
		m.On("Fetch", mock.Anything, "test").Return([]types.IntervalRecord{
			record(at(10, 0), at(10, 30), types.Float(14.2), nil),
			record(at(10, 30), at(11, 0), types.Float(16.1), nil),
		}, nil)

		r, err := p.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, 14.2, r.Value)
		assert.False(t, r.Fallback)
		assert.Equal(t, at(10, 15), r.FetchedAt)

		// same instant, no fetch
		v, ok := p.CurrentValue(ctx)
		require.True(t, ok)
		assert.Equal(t, 14.2, v)
		m.AssertNumberOfCalls(t, "Fetch", 1)

		// next window is already cached
		clock.Set(at(10, 45))
		v, ok = p.CurrentValue(ctx)
		require.True(t, ok)
		assert.Equal(t, 16.1, v)
		m.AssertNumberOfCalls(t, "Fetch", 1)
	})

	t.Run("GapRefreshesOncePerCall", func(t *testing.T) {
		clock := newTestClock(at(10, 45))
		p, m := newTestProvider(t, PriceConfig(testSource()), clock)
		m.On("Fetch", mock.Anything, "test").Return([]types.IntervalRecord{
			record(at(10, 0), at(10, 30), types.Float(1), nil),
			record(at(11, 0), at(11, 30), types.Float(2), nil),
		}, nil)

		for i := 1; i <= 3; i++ {
			_, err := p.Current(ctx)
			require.ErrorIs(t, err, ErrNoCoverage)
			assert.Equal(t, "no_coverage", Kind(err))
			m.AssertNumberOfCalls(t, "Fetch", i)
		}
	})

	t.Run("FallbackSetAndCleared", func(t *testing.T) {
		clock := newTestClock(at(10, 15))
		p, m := newTestProvider(t, PriceConfig(testSource()), clock)
		m.On("Fetch", mock.Anything, "test").Return([]types.IntervalRecord{
			record(at(10, 0), at(10, 30), nil, types.Float(87)),
			record(at(10, 30), at(11, 0), types.Float(90), types.Float(88)),
		}, nil)

		r, err := p.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, 87.0, r.Value)
		assert.True(t, r.Fallback)
		assert.True(t, p.Snapshot().UsingFallback())

		clock.Set(at(10, 45))
		r, err = p.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, 90.0, r.Value)
		assert.False(t, r.Fallback)
		assert.False(t, p.Snapshot().UsingFallback())
	})

	t.Run("RecheckWhileInFallback", func(t *testing.T) {
		clock := newTestClock(at(10, 5))
		p, m := newTestProvider(t, PriceConfig(testSource()), clock)
		m.On("Fetch", mock.Anything, "test").Return([]types.IntervalRecord{
			record(at(10, 0), at(10, 30), nil, types.Float(87)),
		}, nil).Once()
		m.On("Fetch", mock.Anything, "test").Return([]types.IntervalRecord{
			record(at(10, 0), at(10, 30), types.Float(85), types.Float(87)),
		}, nil).Once()

		v, ok := p.CurrentValue(ctx)
		require.True(t, ok)
		assert.Equal(t, 87.0, v)

		// within the recheck interval the forecast keeps being served
		clock.Set(at(10, 9))
		v, ok = p.CurrentValue(ctx)
		require.True(t, ok)
		assert.Equal(t, 87.0, v)
		m.AssertNumberOfCalls(t, "Fetch", 1)

		// the old record still covers now but the recheck interval elapsed
		clock.Set(at(10, 11))
		assert.True(t, NeedsRefresh(p.Snapshot(), clock.Now(), 0, DefaultRecheckInterval))
		v, ok = p.CurrentValue(ctx)
		require.True(t, ok)
		assert.Equal(t, 85.0, v)
		m.AssertNumberOfCalls(t, "Fetch", 2)
		assert.False(t, p.Snapshot().UsingFallback())
		m.AssertExpectations(t)
	})

	t.Run("OverlappingRecordsLastWins", func(t *testing.T) {
		clock := newTestClock(at(10, 15))
		p, m := newTestProvider(t, PriceConfig(testSource()), clock)
		m.On("Fetch", mock.Anything, "test").Return([]types.IntervalRecord{
			record(at(10, 0), at(10, 30), types.Float(10), nil),
			record(at(10, 0), at(11, 0), types.Float(20), nil),
		}, nil)

		v, ok := p.CurrentValue(ctx)
		require.True(t, ok)
		assert.Equal(t, 20.0, v)
	})

	t.Run("FetchFailurePreservesCache", func(t *testing.T) {
		clock := newTestClock(at(10, 5))
		p, m := newTestProvider(t, PriceConfig(testSource()), clock)
		m.On("Fetch", mock.Anything, "test").Return([]types.IntervalRecord{
			record(at(10, 0), at(10, 30), nil, types.Float(87)),
		}, nil).Once()
		m.On("Fetch", mock.Anything, "test").Return(nil, fmt.Errorf("%w: connection refused", feed.ErrTransport)).Once()
		m.On("Fetch", mock.Anything, "test").Return([]types.IntervalRecord{
			record(at(10, 0), at(10, 30), types.Float(86), types.Float(87)),
		}, nil).Once()

		_, ok := p.CurrentValue(ctx)
		require.True(t, ok)

		clock.Set(at(10, 20))
		_, err := p.Current(ctx)
		require.ErrorIs(t, err, feed.ErrTransport)
		assert.Equal(t, "transport", Kind(err))

		snapshot := p.Snapshot()
		require.Len(t, snapshot.Records(), 1, "failed fetch must not clear the cache")
		assert.Equal(t, at(10, 5), snapshot.LastFetch())
		assert.True(t, snapshot.UsingFallback())

		// same instant, the preserved records are evaluated and refreshed again
		v, ok := p.CurrentValue(ctx)
		require.True(t, ok)
		assert.Equal(t, 86.0, v)
		m.AssertExpectations(t)
	})

	t.Run("FirstFetchFails", func(t *testing.T) {
		clock := newTestClock(at(10, 5))
		p, m := newTestProvider(t, PriceConfig(testSource()), clock)
		m.On("Fetch", mock.Anything, "test").Return(nil, fmt.Errorf("%w: bad json", feed.ErrParse))

		v, ok := p.CurrentValue(ctx)
		assert.False(t, ok)
		assert.Zero(t, v)
		assert.True(t, p.Snapshot().IsEmpty())
	})

	t.Run("NeitherActualNorForecast", func(t *testing.T) {
		clock := newTestClock(at(10, 5))
		p, m := newTestProvider(t, PriceConfig(testSource()), clock)
		m.On("Fetch", mock.Anything, "test").Return([]types.IntervalRecord{
			record(at(10, 0), at(10, 30), nil, nil),
		}, nil)

		_, err := p.Current(ctx)
		require.ErrorIs(t, err, feed.ErrMissingField)
		assert.Equal(t, "missing_field", Kind(err))
		assert.False(t, p.Snapshot().UsingFallback())
	})

	t.Run("OutOfRange", func(t *testing.T) {
		clock := newTestClock(at(10, 5))
		p, m := newTestProvider(t, PriceConfig(testSource()), clock)
		m.On("Fetch", mock.Anything, "test").Return([]types.IntervalRecord{
			record(at(10, 0), at(10, 30), types.Float(12345), nil),
		}, nil)

		r, err := p.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, 12345.0, r.Value)
		assert.True(t, r.OutOfRange)
	})

	t.Run("SingleFlight", func(t *testing.T) {
		clock := newTestClock(at(10, 5))
		p, m := newTestProvider(t, PriceConfig(testSource()), clock)
		release := make(chan struct{})
		m.On("Fetch", mock.Anything, "test").Run(func(mock.Arguments) {
			<-release
		}).Return([]types.IntervalRecord{
			record(at(10, 0), at(10, 30), types.Float(3), nil),
		}, nil)

		var wg sync.WaitGroup
		values := make([]float64, 8)
		for i := range values {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				values[i], _ = p.CurrentValue(ctx)
			}(i)
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		m.AssertNumberOfCalls(t, "Fetch", 1)
		for _, v := range values {
			assert.Equal(t, 3.0, v)
		}
	})

	t.Run("SharedFetchOutlivesCaller", func(t *testing.T) {
		clock := newTestClock(at(10, 5))
		f := &blockingFetcher{
			started: make(chan struct{}),
			release: make(chan struct{}),
			records: []types.IntervalRecord{
				record(at(10, 0), at(10, 30), types.Float(3), nil),
			},
		}
		p, err := New(PriceConfig(testSource()), f, WithClock(clock.Now))
		require.NoError(t, err)

		leaderCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var wg sync.WaitGroup
		var leaderValue, followerValue float64
		var leaderOK, followerOK bool
		wg.Add(1)
		go func() {
			defer wg.Done()
			leaderValue, leaderOK = p.CurrentValue(leaderCtx)
		}()
		<-f.started

		wg.Add(1)
		go func() {
			defer wg.Done()
			followerValue, followerOK = p.CurrentValue(context.Background())
		}()
		time.Sleep(20 * time.Millisecond)

		cancel()
		time.Sleep(20 * time.Millisecond)
		close(f.release)
		wg.Wait()

		require.True(t, followerOK)
		assert.Equal(t, 3.0, followerValue)
		require.True(t, leaderOK)
		assert.Equal(t, 3.0, leaderValue)
		assert.EqualValues(t, 1, f.calls.Load())
	})

	t.Run("Observer", func(t *testing.T) {
		clock := newTestClock(at(10, 5))
		m := &feedmock.MockFetcher{}
		obs := &recordingObserver{}
		p, err := New(PriceConfig(testSource()), m, WithClock(clock.Now), WithObserver(obs))
		require.NoError(t, err)
		m.On("Fetch", mock.Anything, "test").Return([]types.IntervalRecord{
			record(at(10, 0), at(10, 30), types.Float(3), nil),
		}, nil).Once()
		m.On("Fetch", mock.Anything, "test").Return(nil, fmt.Errorf("%w: timeout", feed.ErrTransport)).Once()

		_, ok := p.CurrentValue(ctx)
		require.True(t, ok)
		clock.Add(40 * time.Minute)
		_, ok = p.CurrentValue(ctx)
		require.False(t, ok)

		assert.Equal(t, []string{"", "transport"}, obs.fetches)
		assert.Equal(t, []string{"transport"}, obs.errors)
		require.Len(t, obs.readings, 1)
		assert.Equal(t, "test", obs.readings[0].Feed)
	})
}

func TestProviderExamples(t *testing.T) {
	t.Run("Price", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results": [{"valid_from": "2024-01-01T10:00:00Z", "valid_to": "2024-01-01T10:30:00Z", "value_inc_vat": 14.2}]}`))
		}))
		defer ts.Close()

		clock := newTestClock(at(10, 15))
		p, err := New(PriceConfig(feed.Octopus(ts.URL, "key")), feed.NewHTTPFetcher(time.Second, 0), WithClock(clock.Now))
		require.NoError(t, err)

		v, ok := p.CurrentValue(context.Background())
		require.True(t, ok)
		assert.Equal(t, 14.2, v)
	})

	t.Run("Intensity", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data": [{"from": "2024-01-01T10:00Z", "to": "2024-01-01T10:30Z", "intensity": {"actual": null, "forecast": 120}}]}`))
		}))
		defer ts.Close()

		clock := newTestClock(at(10, 40))
		p, err := New(IntensityConfig(feed.CarbonIntensity(ts.URL)), feed.NewHTTPFetcher(time.Second, 0), WithClock(clock.Now))
		require.NoError(t, err)

		r, err := p.Current(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 120.0, r.Value)
		assert.True(t, r.Fallback)
		assert.Equal(t, "carbon", r.Feed)
	})

	t.Run("ErrorPayload", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail": "Invalid API key."}`))
		}))
		defer ts.Close()

		clock := newTestClock(at(10, 15))
		p, err := New(PriceConfig(feed.Octopus(ts.URL, "bad")), feed.NewHTTPFetcher(time.Second, 0), WithClock(clock.Now))
		require.NoError(t, err)

		_, err = p.Current(context.Background())
		require.ErrorIs(t, err, feed.ErrMissingField)
		_, ok := p.CurrentValue(context.Background())
		assert.False(t, ok)
	})
}
