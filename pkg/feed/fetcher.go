package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gridglance/gridglance/pkg/common"
	"github.com/gridglance/gridglance/pkg/log"
	"github.com/gridglance/gridglance/pkg/types"
	"github.com/sony/gobreaker"
)

// maxBodySize caps how much of a response is read. A day of half-hourly
// records is a few kilobytes.
const maxBodySize = 4 << 20

type apiError struct {
	Message string `json:"message"`
}

// errorEnvelope covers the error payloads of the supported feeds.
type errorEnvelope struct {
	Detail string    `json:"detail"`
	Error  *apiError `json:"error"`
}

func (e errorEnvelope) message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Error != nil {
		return e.Error.Message
	}
	return ""
}

// HTTPFetcher performs a single GET against a Source and decodes the
// response. It does not cache anything.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPFetcher returns a fetcher whose requests are bounded by timeout. If
// maxFailures is greater than zero, a circuit breaker opens after that many
// consecutive transport failures and rejects fetches until it half-opens.
func NewHTTPFetcher(timeout time.Duration, maxFailures int) *HTTPFetcher {
	return newHTTPFetcher(common.HTTPClient(timeout), timeout, maxFailures)
}

func newHTTPFetcher(client *http.Client, timeout time.Duration, maxFailures int) *HTTPFetcher {
	f := &HTTPFetcher{
		client:  client,
		timeout: timeout,
	}
	if maxFailures > 0 {
		f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "feed",
			MaxRequests: 1,
			Timeout:     time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(maxFailures)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Ctx(context.Background()).Warn(
					"feed circuit breaker changed state",
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
		})
	}
	return f
}

type response struct {
	status int
	body   []byte
}

// Fetch retrieves the records from src in response order.
func (f *HTTPFetcher) Fetch(ctx context.Context, src Source) ([]types.IntervalRecord, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	log.Ctx(ctx).InfoContext(ctx, "loading feed data over http", slog.String("feed", src.Name))

	resp, err := f.execute(ctx, src)
	if err != nil {
		return nil, err
	}

	if resp.status < 200 || resp.status >= 300 {
		var env errorEnvelope
		if err := json.Unmarshal(resp.body, &env); err == nil && env.message() != "" {
			return nil, fmt.Errorf("%w: %s api returned status %d: %s", ErrMissingField, src.Name, resp.status, env.message())
		}
		return nil, fmt.Errorf("%w: %s api returned status: %d", ErrTransport, src.Name, resp.status)
	}

	records, err := src.Decode(resp.body)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched feed records",
		slog.String("feed", src.Name),
		slog.Int("count", len(records)),
	)
	return records, nil
}

func (f *HTTPFetcher) execute(ctx context.Context, src Source) (response, error) {
	if f.breaker == nil {
		return f.get(ctx, src)
	}
	res, err := f.breaker.Execute(func() (interface{}, error) {
		return f.get(ctx, src)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return response{}, fmt.Errorf("%w: %s circuit breaker: %v", ErrTransport, src.Name, err)
	}
	if err != nil {
		return response{}, err
	}
	return res.(response), nil
}

func (f *HTTPFetcher) get(ctx context.Context, src Source) (response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", src.URL, nil)
	if err != nil {
		return response{}, fmt.Errorf("%w: failed to create request: %v", ErrTransport, err)
	}
	src.authorize(req)

	resp, err := f.client.Do(req)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to fetch feed", slog.String("feed", src.Name), slog.Any("error", err))
		return response{}, fmt.Errorf("%w: failed to fetch %s: %w", ErrTransport, src.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return response{}, fmt.Errorf("%w: failed to read %s response: %w", ErrTransport, src.Name, err)
	}
	// server errors count against the breaker, client errors may carry a
	// payload worth reporting
	if resp.StatusCode >= http.StatusInternalServerError {
		return response{}, fmt.Errorf("%w: %s api returned status: %d", ErrTransport, src.Name, resp.StatusCode)
	}
	return response{status: resp.StatusCode, body: body}, nil
}
