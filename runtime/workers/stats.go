package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

const DefaultStatsInterval = 15 * time.Second

type sessionCounter interface {
	Count() int
}

// StatsReporter samples the relay process and the registry on a ticker and
// publishes the values as gauges.
type StatsReporter struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	sessions sessionCounter
	interval time.Duration
	proc     *process.Process
}

func NewStatsReporter(log *slog.Logger, metrics *observability.Metrics, sessions sessionCounter, interval time.Duration) *StatsReporter {
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	return &StatsReporter{log: log, metrics: metrics, sessions: sessions, interval: interval}
}

func (w *StatsReporter) Run(ctx context.Context) error {
	if w.proc == nil {
		proc, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return err
		}
		w.proc = proc
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping stats reporter")
			return nil
		case <-ticker.C:
			w.Sample()
		}
	}
}

// Sample reads the current figures once.
func (w *StatsReporter) Sample() {
	sessions := w.sessions.Count()
	goroutines := goruntime.NumGoroutine()
	w.metrics.SessionsBound.Set(float64(sessions))
	w.metrics.Goroutines.Set(float64(goroutines))

	attrs := []any{"sessions", sessions, "goroutines", goroutines}
	if w.proc != nil {
		if cpu, err := w.proc.CPUPercent(); err != nil {
			w.log.Debug("Error while finding process cpu usage", "error", err)
		} else {
			w.metrics.ProcessCPUPercent.Set(cpu)
			attrs = append(attrs, "cpu_percent", cpu)
		}
		if mem, err := w.proc.MemoryInfo(); err != nil {
			w.log.Debug("Error while finding process memory usage", "error", err)
		} else {
			w.metrics.ProcessRSSBytes.Set(float64(mem.RSS))
			attrs = append(attrs, "rss_bytes", mem.RSS)
		}
	}
	w.log.Debug("Relay stats", attrs...)
}
