package debug

// Periodic runtime logger enabled when config.Debug is true. Logs goroutine
// count, stack and heap usage and process RSS alongside caller supplied
// attributes such as capture statistics.

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"
)

// AttrFunc supplies extra attributes for each runtime record.
type AttrFunc func() []slog.Attr

// StartRuntimeLogger launches a ticker that logs runtime statistics until ctx
// is done. extra may be nil.
func StartRuntimeLogger(ctx context.Context, interval time.Duration, logger *slog.Logger, extra AttrFunc) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		r := &rssReader{logger: logger}
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.LogAttrs(ctx, slog.LevelInfo, "runtime.stats", Snapshot(r.read(), extra)...)
			}
		}
	}()
}

// Snapshot collects one record's attributes.
func Snapshot(rss uint64, extra AttrFunc) []slog.Attr {
	samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
	metrics.Read(samples)
	var goroutines uint64
	if samples[0].Value.Kind() == metrics.KindUint64 {
		goroutines = samples[0].Value.Uint64()
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	attrs := []slog.Attr{
		slog.Uint64("goroutines", goroutines),
		slog.Uint64("stack_inuse", ms.StackInuse),
		slog.Uint64("heap_alloc", ms.HeapAlloc),
		slog.Uint64("heap_inuse", ms.HeapInuse),
		slog.Uint64("heap_sys", ms.HeapSys),
		slog.Uint64("num_gc", uint64(ms.NumGC)),
		slog.Uint64("rss", rss),
	}
	if extra != nil {
		attrs = append(attrs, extra()...)
	}
	return attrs
}

// rssReader logs the first RSS query failure and suppresses the rest.
type rssReader struct {
	logger *slog.Logger
	failed bool
}

func (r *rssReader) read() uint64 {
	rss, err := processRSS()
	if err != nil {
		if !r.failed {
			r.logger.Warn("runtime.rss_unavailable", slog.String("err", err.Error()))
			r.failed = true
		}
		return 0
	}
	return rss
}
