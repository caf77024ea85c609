package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/tradejournal/internal/database"
	"github.com/aristath/tradejournal/internal/reliability"
	"github.com/aristath/tradejournal/internal/scheduler"
	"github.com/aristath/tradejournal/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStatusResponse is returned by GET /api/system/status.
type SystemStatusResponse struct {
	Status        string                   `json:"status"`
	UptimeSeconds int64                    `json:"uptime_seconds"`
	GoVersion     string                   `json:"go_version"`
	Goroutines    int                      `json:"goroutines"`
	CPUPercent    float64                  `json:"cpu_percent"`
	MemoryPercent float64                  `json:"memory_percent"`
	DiskFreeBytes uint64                   `json:"disk_free_bytes"`
	DiskPercent   float64                  `json:"disk_used_percent"`
	Database      *database.Stats          `json:"database,omitempty"`
	Subscribers   int                      `json:"live_subscribers"`
	Jobs          []scheduler.JobStatus    `json:"jobs"`
	Backups       []reliability.BackupInfo `json:"backups"`
	Warnings      []string                 `json:"warnings,omitempty"`
}

// SystemHandlers reports host and database health.
type SystemHandlers struct {
	server      *Server
	dataDir     string
	startupTime time.Time
	log         zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(s *Server, dataDir string, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		server:      s,
		dataDir:     dataDir,
		startupTime: time.Now(),
		log:         log.With().Str("handler", "system").Logger(),
	}
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")
	utils.WriteData(w, h.log, http.StatusOK, h.Snapshot(r))
}

// Snapshot collects the current status. Failures to read an individual
// metric are reported as warnings rather than errors.
func (h *SystemHandlers) Snapshot(r *http.Request) SystemStatusResponse {
	c := h.server.container
	resp := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		Subscribers:   c.EventBus.SubscriberCount(),
		Jobs:          []scheduler.JobStatus{},
		Backups:       []reliability.BackupInfo{},
	}
	warn := func(msg string, err error) {
		h.log.Warn().Err(err).Msg(msg)
		resp.Warnings = append(resp.Warnings, msg)
	}

	resp.CPUPercent, resp.MemoryPercent = h.getSystemStats()

	if usage, err := disk.Usage(h.dataDir); err != nil {
		warn("disk usage unavailable", err)
	} else {
		resp.DiskFreeBytes = usage.Free
		resp.DiskPercent = usage.UsedPercent
	}

	if err := c.JournalDB.QuickCheck(r.Context()); err != nil {
		resp.Status = "degraded"
		warn("journal database check failed", err)
	}
	if stats, err := c.JournalDB.GetStats(); err != nil {
		warn("database stats unavailable", err)
	} else {
		resp.Database = stats
	}

	if c.Scheduler != nil {
		resp.Jobs = c.Scheduler.Status()
	}
	if c.BackupService != nil {
		if backups, err := c.BackupService.ListBackups(); err != nil {
			warn("backup listing failed", err)
		} else if backups != nil {
			resp.Backups = backups
		}
	}
	return resp
}

// getSystemStats calculates CPU and RAM usage percentages
// Uses a short interval (100ms) so the status call stays fast
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
