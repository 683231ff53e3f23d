package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gridglance/gridglance/pkg/feed"
	"github.com/gridglance/gridglance/pkg/log"
	"github.com/gridglance/gridglance/pkg/types"
	"github.com/levenlabs/go-lflag"
)

// DefaultInterval matches the refresh cadence of the display.
const DefaultInterval = 10 * time.Second

// Provider returns the current reading.
type Provider interface {
	Name() string
	Current(ctx context.Context) (types.Reading, error)
}

// Poller periodically asks a Provider for the current value and renders it
// for a seven-segment display. The rendered text is logged whenever it
// changes.
type Poller struct {
	provider Provider
	interval time.Duration
	now      func() time.Time

	mu         sync.Mutex
	display    string
	brightness float64
}

// New creates a Poller for provider.
func New(provider Provider, interval time.Duration) *Poller {
	return &Poller{
		provider: provider,
		interval: interval,
		now:      time.Now,
	}
}

// Configured sets up the poll interval flag and returns the Poller. The
// Poller is usable once lflag.Configure has run.
func Configured(provider Provider) *Poller {
	p := New(provider, DefaultInterval)
	interval := lflag.Duration("poll-interval", DefaultInterval, "How often the current value is refreshed on the display")

	lflag.Do(func() {
		p.interval = *interval
	})

	return p
}

// Display returns the text currently shown and its brightness.
func (p *Poller) Display() (string, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.display, p.brightness
}

// Poll queries the provider once and updates the display.
func (p *Poller) Poll(ctx context.Context) {
	r, err := p.provider.Current(ctx)
	// carbon intensity is shown without decimals
	text := Format(r, err == nil, p.provider.Name() == feed.NameCarbon)
	brightness := Brightness(p.now().Hour())

	p.mu.Lock()
	defer p.mu.Unlock()
	if text == p.display && brightness == p.brightness {
		return
	}
	p.display = text
	p.brightness = brightness
	log.Ctx(ctx).InfoContext(
		ctx,
		"display updated",
		slog.String("feed", p.provider.Name()),
		slog.String("display", text),
		slog.Float64("brightness", brightness),
		slog.Bool("fallback", r.Fallback),
	)
}

// Run polls on the configured interval until ctx is canceled. The first
// poll happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("invalid poll interval: %s", p.interval)
	}
	s := gocron.NewScheduler(time.Local)
	// a slow fetch must not stack up polls
	s.SingletonModeAll()
	if _, err := s.Every(p.interval).Do(p.Poll, ctx); err != nil {
		return fmt.Errorf("failed to schedule poll: %w", err)
	}

	log.Ctx(ctx).InfoContext(ctx, "starting poller", slog.String("feed", p.provider.Name()), slog.Duration("interval", p.interval))
	s.StartAsync()
	<-ctx.Done()
	s.Stop()
	log.Ctx(ctx).InfoContext(ctx, "poller stopped")
	return nil
}
