package handlers

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var startTime = time.Now()

// HealthResponse reports service liveness and host resource usage.
type HealthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
}

// HandleHealth returns service health and host stats.
// GET /health
func (h *RiskHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.systemStats()

	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(startTime).Seconds(),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
	})
}

// systemStats samples CPU over a short interval so the health endpoint stays
// responsive for aggressive pollers.
func (h *RiskHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuPercent[0], 0
	}

	return cpuPercent[0], memStat.UsedPercent
}
