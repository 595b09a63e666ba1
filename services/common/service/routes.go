package service

import (
	"context"
	"net/http"
	"os"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/threadsclone/backend/internal/httputil"
)

// =============================================================================
// Standard Response Types
// =============================================================================

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// InfoResponse is the body of /info.
type InfoResponse struct {
	Status     string         `json:"status"`
	Service    string         `json:"service"`
	Version    string         `json:"version"`
	Timestamp  string         `json:"timestamp"`
	Health     map[string]any `json:"health"`
	Process    ProcessStats   `json:"process"`
	Statistics map[string]any `json:"statistics,omitempty"`
}

// ProcessStats is a snapshot of the running process.
type ProcessStats struct {
	Goroutines    int     `json:"goroutines"`
	RSSBytes      uint64  `json:"rssBytes"`
	CPUPercent    float64 `json:"cpuPercent"`
	HostMemTotal  uint64  `json:"hostMemTotal"`
	HostMemUsedPc float64 `json:"hostMemUsedPercent"`
}

// =============================================================================
// Standard Handlers
// =============================================================================

// HealthHandler answers liveness probes. It is excluded from access logs
// and rate limiting.
func HealthHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: name})
	}
}

// InfoHandler reports health details, process stats and the service's own
// statistics.
func InfoHandler(s *BaseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.CheckHealth()
		resp := InfoResponse{
			Status:    "active",
			Service:   s.Name(),
			Version:   s.Version(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Health:    s.HealthDetails(),
			Process:   CollectProcessStats(r.Context()),
		}
		if s.statsFn != nil {
			resp.Statistics = s.statsFn()
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

// CollectProcessStats samples the current process. Fields that cannot be
// read on this platform stay zero.
func CollectProcessStats(ctx context.Context) ProcessStats {
	stats := ProcessStats{Goroutines: goruntime.NumGoroutine()}

	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := p.MemoryInfoWithContext(ctx); err == nil && info != nil {
			stats.RSSBytes = info.RSS
		}
		if pct, err := p.CPUPercentWithContext(ctx); err == nil {
			stats.CPUPercent = pct
		}
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		stats.HostMemTotal = vm.Total
		stats.HostMemUsedPc = vm.UsedPercent
	}
	return stats
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterStandardRoutes registers /health, /info and /metrics.
func (b *BaseService) RegisterStandardRoutes() {
	b.router.HandleFunc("/health", HealthHandler(b.name)).Methods(http.MethodGet)
	b.router.HandleFunc("/info", InfoHandler(b)).Methods(http.MethodGet)
	if b.deps.Metrics != nil {
		b.router.Handle("/metrics", b.deps.Metrics.Handler()).Methods(http.MethodGet)
	}
}
