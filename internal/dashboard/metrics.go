package dashboard

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	accountsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rewards_orchestrator_accounts_total",
		Help: "Number of configured accounts.",
	})
	accountsEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rewards_orchestrator_accounts_enabled",
		Help: "Number of accounts not disabled by a hard-ban verdict.",
	})
	standbyEngaged = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rewards_orchestrator_global_standby",
		Help: "1 when global standby is engaged, 0 otherwise.",
	})
)

// handleMetrics serves the accounts/standby gauges plus every Go/process
// collector prometheus registers by default, in Prometheus exposition
// format (GET /api/metrics).
func (gw *Gateway) handleMetrics(w http.ResponseWriter, r *http.Request) {
	accountsTotal.Set(float64(len(gw.deps.Accounts)))
	enabled := 0
	for _, a := range gw.deps.Accounts {
		if a.Enabled {
			enabled++
		}
	}
	accountsEnabled.Set(float64(enabled))
	if gw.deps.Orchestrator.StandbyEngaged() {
		standbyEngaged.Set(1)
	} else {
		standbyEngaged.Set(0)
	}
	promhttp.Handler().ServeHTTP(w, r)
}

// handleMemory reports this process's RSS and the host's available memory
// via gopsutil, for the operator console's resource panel (GET
// /api/memory) — distinct from /api/metrics, which is Prometheus-scraped.
func (gw *Gateway) handleMemory(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil {
			out["processRssBytes"] = info.RSS
			out["processVmsBytes"] = info.VMS
		}
		if pct, err := proc.MemoryPercent(); err == nil {
			out["processMemoryPercent"] = pct
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		out["hostTotalBytes"] = vm.Total
		out["hostAvailableBytes"] = vm.Available
		out["hostUsedPercent"] = vm.UsedPercent
	}

	writeJSON(w, http.StatusOK, out)
}
