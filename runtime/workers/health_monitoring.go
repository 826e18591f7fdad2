package workers

import (
	"context"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	_ "github.com/shirou/gopsutil"
	"github.com/shirou/gopsutil/process"
)

// RegistryCounts exposes the live registry sizes without coupling this
// worker to the registries themselves.
type RegistryCounts func() (identities, connections, channels, subscriptions int)

// HealthMonitoring periodically samples the server process and the
// registries. Purely observational: it only logs.
type HealthMonitoring struct {
	log            *slog.Logger
	metricInterval time.Duration
	counts         RegistryCounts
}

func NewHealthMonitoring(log *slog.Logger, metricInterval time.Duration, counts RegistryCounts) *HealthMonitoring {
	return &HealthMonitoring{log: log, metricInterval: metricInterval, counts: counts}
}

func (w *HealthMonitoring) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping health monitoring")
			return nil
		case <-ticker.C:
			w.sample(proc)
		}
	}
}

func (w *HealthMonitoring) sample(proc *process.Process) {
	var rssMb uint64
	if mem, err := proc.MemoryInfo(); err == nil {
		rssMb = mem.RSS / (1024 * 1024)
	}
	cpu, _ := proc.CPUPercent()

	identities, connections, channels, subscriptions := w.counts()
	w.log.Info("health",
		"rss_mb", rssMb,
		"cpu_percent", cpu,
		"goroutines", goruntime.NumGoroutine(),
		"identities", identities,
		"connections", connections,
		"channels", channels,
		"subscriptions", subscriptions,
	)
}
