package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridglance/gridglance/pkg/log"
	"github.com/gridglance/gridglance/pkg/metrics"
	"github.com/gridglance/gridglance/pkg/poller"
	"github.com/gridglance/gridglance/pkg/server"
	"github.com/gridglance/gridglance/pkg/valuecache"
	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

// run wires and runs the process, returning the exit code once every deferred
// cleanup has happened.
func run() int {
	// init packages
	reg := prometheus.NewRegistry()
	provider := valuecache.Configured(valuecache.WithObserver(metrics.New(reg)))
	p := poller.Configured(provider)
	srv := server.Configured(provider, reg)
	once := lflag.Bool("once", false, "Print the current value and exit")

	// parse flags
	lflag.Configure()

	// lflag automatically sets llog's level, but we need to set the slog level
	level, err := log.LevelFromLLog(llog.GetLevel())
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *once {
		return printOnce(ctx, provider, os.Stdout)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Run(ctx)
	})
	if srv.Enabled() {
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "gridglance failed", slog.Any("error", err))
		return 1
	}
	log.Ctx(ctx).InfoContext(ctx, "gridglance exited cleanly")
	return 0
}

type valuer interface {
	CurrentValue(ctx context.Context) (float64, bool)
}

// printOnce writes the current value to w and returns the exit code.
func printOnce(ctx context.Context, v valuer, w io.Writer) int {
	value, ok := v.CurrentValue(ctx)
	if !ok {
		return 1
	}
	fmt.Fprintln(w, value)
	return 0
}
