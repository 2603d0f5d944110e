package health

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ComponentHealth represents the health status of a single component
type ComponentHealth struct {
	Name        string      `json:"name"`
	Status      Status      `json:"status"`
	Description string      `json:"description,omitempty"`
	LastChecked time.Time   `json:"last_checked"`
	Details     interface{} `json:"details,omitempty"`
}

// SystemStats holds host and process resource usage
type SystemStats struct {
	CPUPercent     float64 `json:"cpu_percent"`
	HostMemPercent float64 `json:"host_mem_percent"`
	ProcessRSSMB   float64 `json:"process_rss_mb"`
	ProcessCPUPct  float64 `json:"process_cpu_percent"`
	GoroutineCount int     `json:"goroutines"`
	HeapAllocMB    uint64  `json:"heap_alloc_mb"`
}

// ServerHealth represents overall server health
type ServerHealth struct {
	Status            Status            `json:"status"`
	Uptime            int64             `json:"uptime_seconds"`
	Timestamp         time.Time         `json:"timestamp"`
	ActiveConnections int               `json:"active_connections"`
	Tenants           int               `json:"tenants"`
	System            SystemStats       `json:"system"`
	Components        []ComponentHealth `json:"components"`
}

// Monitor tracks server health metrics
type Monitor struct {
	startTime  time.Time
	mu         sync.RWMutex
	components map[string]*ComponentHealth
	proc       *process.Process
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	m := &Monitor{
		startTime:  time.Now(),
		components: make(map[string]*ComponentHealth),
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = p
	}
	return m
}

// SetComponentStatus updates the status of a component
func (m *Monitor) SetComponentStatus(name string, status Status, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = &ComponentHealth{
		Name:        name,
		Status:      status,
		Description: description,
		LastChecked: time.Now(),
	}
}

// SetComponentStatusWithDetails updates component status with additional details
func (m *Monitor) SetComponentStatusWithDetails(name string, status Status, description string, details interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = &ComponentHealth{
		Name:        name,
		Status:      status,
		Description: description,
		LastChecked: time.Now(),
		Details:     details,
	}
}

// GetHealth returns the current server health
func (m *Monitor) GetHealth(activeConnections, tenants int) *ServerHealth {
	m.mu.RLock()
	components := make([]ComponentHealth, 0, len(m.components))
	overallStatus := StatusHealthy
	for _, comp := range m.components {
		components = append(components, *comp)
		if comp.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
		} else if comp.Status == StatusDegraded && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}
	m.mu.RUnlock()

	return &ServerHealth{
		Status:            overallStatus,
		Uptime:            int64(time.Since(m.startTime).Seconds()),
		Timestamp:         time.Now(),
		ActiveConnections: activeConnections,
		Tenants:           tenants,
		System:            m.systemStats(),
		Components:        components,
	}
}

// systemStats gathers resource usage; probe failures leave fields at zero
func (m *Monitor) systemStats() SystemStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := SystemStats{
		GoroutineCount: runtime.NumGoroutine(),
		HeapAllocMB:    memStats.Alloc / 1024 / 1024,
	}

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		stats.HostMemPercent = vm.UsedPercent
	}

	if m.proc != nil {
		if memInfo, err := m.proc.MemoryInfo(); err == nil && memInfo != nil {
			stats.ProcessRSSMB = float64(memInfo.RSS) / (1024 * 1024)
		}
		if pct, err := m.proc.CPUPercent(); err == nil {
			stats.ProcessCPUPct = pct
		}
	}

	return stats
}
