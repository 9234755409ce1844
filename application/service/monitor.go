package service

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

const (
	// DefaultSampleInterval is how often the monitor reads memory stats.
	DefaultSampleInterval = 30 * time.Second
	// DefaultHeapWarnBytes is the heap size above which a warning is logged.
	DefaultHeapWarnBytes = 1 << 30 // 1 GiB
)

// MemoryMonitor periodically samples runtime memory statistics and warns
// when the heap grows past a threshold. Useful on long-running workers
// where a leaking ingestion would otherwise go unnoticed.
type MemoryMonitor struct {
	interval  time.Duration
	warnBytes uint64
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// MemoryMonitorOption configures a MemoryMonitor.
type MemoryMonitorOption func(*MemoryMonitor)

// WithSampleInterval sets the time between samples.
func WithSampleInterval(d time.Duration) MemoryMonitorOption {
	return func(m *MemoryMonitor) {
		m.interval = d
	}
}

// WithHeapWarnBytes sets the heap threshold that triggers warnings.
func WithHeapWarnBytes(n uint64) MemoryMonitorOption {
	return func(m *MemoryMonitor) {
		m.warnBytes = n
	}
}

// NewMemoryMonitor creates a memory monitor.
func NewMemoryMonitor(logger *slog.Logger, opts ...MemoryMonitorOption) *MemoryMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MemoryMonitor{
		interval:  DefaultSampleInterval,
		warnBytes: DefaultHeapWarnBytes,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins sampling in a goroutine; stop with Stop().
func (m *MemoryMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		m.run(ctx)
	}()

	m.logger.Info("memory monitor started",
		slog.Duration("interval", m.interval),
	)
}

// Stop shuts the monitor down.
func (m *MemoryMonitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *MemoryMonitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *MemoryMonitor) sample() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	attrs := []any{
		slog.Uint64("heapAllocBytes", stats.HeapAlloc),
		slog.Uint64("heapSysBytes", stats.HeapSys),
		slog.Uint64("numGC", uint64(stats.NumGC)),
		slog.Int("goroutines", runtime.NumGoroutine()),
	}

	if stats.HeapAlloc > m.warnBytes {
		m.logger.Warn("heap usage above threshold", attrs...)
		return
	}
	m.logger.Debug("memory sample", attrs...)
}
