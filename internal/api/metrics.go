package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats собирает показатели процесса сервера
type ProcessStats struct {
	StartTime time.Time
	proc      *process.Process
}

// NewProcessStats создает сборщик для текущего процесса
func NewProcessStats() *ProcessStats {
	ps := &ProcessStats{StartTime: time.Now()}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		ps.proc = proc
	}
	return ps
}

// GetUptime возвращает время работы сервера
func (ps *ProcessStats) GetUptime() string {
	uptime := time.Since(ps.StartTime)

	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// GetCPUUsage возвращает использование CPU процессом в процентах
func (ps *ProcessStats) GetCPUUsage() (float64, error) {
	if ps.proc == nil {
		return 0, fmt.Errorf("process stats unavailable")
	}
	return ps.proc.CPUPercent()
}

// GetRSS возвращает резидентную память процесса в MB
func (ps *ProcessStats) GetRSS() (float64, error) {
	if ps.proc == nil {
		return 0, fmt.Errorf("process stats unavailable")
	}
	mem, err := ps.proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return float64(mem.RSS) / 1024 / 1024, nil
}

// StatusInfo - сводка процесса для /api/status
type StatusInfo struct {
	Uptime     string  `json:"uptime"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSMB      float64 `json:"rss_mb"`
	HeapMB     float64 `json:"heap_mb"`
	Goroutines int     `json:"goroutines"`
	NumGC      uint32  `json:"num_gc"`
}

// Collect собирает StatusInfo; недоступные показатели остаются нулевыми
func (ps *ProcessStats) Collect() StatusInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	info := StatusInfo{
		Uptime:     ps.GetUptime(),
		HeapMB:     float64(m.HeapAlloc) / 1024 / 1024,
		Goroutines: runtime.NumGoroutine(),
		NumGC:      m.NumGC,
	}
	info.CPUPercent, _ = ps.GetCPUUsage()
	info.RSSMB, _ = ps.GetRSS()
	return info
}
