package workers

import (
	"chat-rooms/contract"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// RoomStats is one sample of the server load.
type RoomStats struct {
	Rooms       int
	Connections int
	RSSBytes    uint64
	CPUPercent  float64
}

// RoomStatsWorker periodically logs how many rooms and connections are live,
// together with the memory and CPU used by the server process.
type RoomStatsWorker struct {
	log            *slog.Logger
	registry       contract.IRegistry
	metricInterval time.Duration
	process        *process.Process
}

func NewRoomStatsWorker(log *slog.Logger, registry contract.IRegistry, metricInterval time.Duration) *RoomStatsWorker {
	return &RoomStatsWorker{log: log, registry: registry, metricInterval: metricInterval}
}

func (w *RoomStatsWorker) Run(ctx context.Context) error {
	if w.process == nil {
		p, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return err
		}
		w.process = p
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping room stats")
			return nil
		case <-ticker.C:
			stats := w.Sample()
			w.log.Info("Room stats",
				"rooms", stats.Rooms,
				"connections", stats.Connections,
				"rss_bytes", stats.RSSBytes,
				"cpu_percent", stats.CPUPercent)
		}
	}
}

// Sample reads the registry and the process counters.
// Process counters stay at zero when the OS refuses to give them.
func (w *RoomStatsWorker) Sample() RoomStats {
	registryStats := w.registry.Stats()
	stats := RoomStats{Rooms: registryStats.Rooms, Connections: registryStats.Connections}
	if w.process == nil {
		return stats
	}
	if mem, err := w.process.MemoryInfo(); err == nil {
		stats.RSSBytes = mem.RSS
	} else {
		w.log.Debug("Unable to read process memory", "error", err)
	}
	if cpu, err := w.process.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	} else {
		w.log.Debug("Unable to read process cpu", "error", err)
	}
	return stats
}
