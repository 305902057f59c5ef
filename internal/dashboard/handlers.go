package dashboard

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
	"github.com/ohmynofan/rewards-orchestrator/internal/platform/logger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// configWriteRefused is returned by any endpoint that would otherwise have
// to mutate the comment-bearing config/account files on disk.
func configWriteRefused(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, map[string]string{
		"error": "this setting must be edited by hand in the config file; the gateway never rewrites comment-bearing config",
	})
}

func (gw *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"standby":   gw.deps.Orchestrator.StandbyEngaged(),
		"accounts":  len(gw.deps.Accounts),
		"timestamp": time.Now(),
	})
}

func (gw *Gateway) handleAccounts(w http.ResponseWriter, r *http.Request) {
	type accountView struct {
		Email   string `json:"email"`
		Enabled bool   `json:"enabled"`
	}
	out := make([]accountView, 0, len(gw.deps.Accounts))
	for _, a := range gw.deps.Accounts {
		out = append(out, accountView{Email: a.Masked(), Enabled: a.Enabled})
	}
	writeJSON(w, http.StatusOK, out)
}

func (gw *Gateway) handleLogsGet(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, logger.RecentLines(limit))
}

func (gw *Gateway) handleLogsClear(w http.ResponseWriter, r *http.Request) {
	logger.ClearLines()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (gw *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries := gw.allRecentHistory(90)
	writeJSON(w, http.StatusOK, entries)
}

func (gw *Gateway) handleAccountHistory(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		writeJSON(w, http.StatusOK, gw.allRecentHistory(90))
		return
	}
	entries, err := gw.deps.History.Recent(email, 90)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (gw *Gateway) handleAccountStats(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	entries, err := gw.deps.History.Recent(email, 90)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summarize(entries))
}

func (gw *Gateway) handleStatsHistorical(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	writeJSON(w, http.StatusOK, summarize(gw.allRecentHistory(days)))
}

func (gw *Gateway) handleStatsActivityBreakdown(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	entries := gw.allRecentHistory(days)
	breakdown := map[string]int{"desktop": 0, "mobile": 0}
	for _, e := range entries {
		breakdown["desktop"] += e.DesktopPoints
		breakdown["mobile"] += e.MobilePoints
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (gw *Gateway) handleStatsGlobal(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, summarize(gw.allRecentHistory(model.HistoryRetentionDays)))
}

func (gw *Gateway) allRecentHistory(days int) []model.AccountHistoryEntry {
	var all []model.AccountHistoryEntry
	for _, a := range gw.deps.Accounts {
		entries, err := gw.deps.History.Recent(a.Email, days)
		if err != nil {
			continue
		}
		all = append(all, entries...)
	}
	return all
}

type statsSummary struct {
	Runs          int `json:"runs"`
	SuccessRuns   int `json:"successRuns"`
	TotalPoints   int `json:"totalPoints"`
	DesktopPoints int `json:"desktopPoints"`
	MobilePoints  int `json:"mobilePoints"`
	Failed        int `json:"failed"`
}

func summarize(entries []model.AccountHistoryEntry) statsSummary {
	var s statsSummary
	for _, e := range entries {
		s.Runs++
		if e.Success {
			s.SuccessRuns++
		}
		s.TotalPoints += e.TotalPoints
		s.DesktopPoints += e.DesktopPoints
		s.MobilePoints += e.MobilePoints
		s.Failed += e.Failed
	}
	return s
}

func (gw *Gateway) handleStart(w http.ResponseWriter, r *http.Request) {
	gw.deps.Orchestrator.ClearStop()
	gw.deps.Orchestrator.ClearStandby()
	go func() { _ = gw.deps.Orchestrator.RunAll(r.Context()) }()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (gw *Gateway) handleStop(w http.ResponseWriter, r *http.Request) {
	gw.deps.Orchestrator.RequestStop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stop-requested"})
}

func (gw *Gateway) handleRestart(w http.ResponseWriter, r *http.Request) {
	gw.deps.Orchestrator.RequestStop()
	time.Sleep(100 * time.Millisecond)
	gw.deps.Orchestrator.ClearStop()
	gw.deps.Orchestrator.ClearStandby()
	go func() { _ = gw.deps.Orchestrator.RunAll(r.Context()) }()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "restarted"})
}

func (gw *Gateway) handleRunSingle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	outcome, err := gw.deps.Orchestrator.RunSingle(r.Context(), body.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcome.Entry)
}

func (gw *Gateway) handleAccountReset(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if err := gw.deps.JobState.ResetAll(email); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleConfigWrite refuses every config mutation attempt: the gateway
// never rewrites the comment-bearing config file.
func (gw *Gateway) handleConfigWrite(w http.ResponseWriter, r *http.Request) {
	configWriteRefused(w)
}

func (gw *Gateway) handleResetState(w http.ResponseWriter, r *http.Request) {
	var failed []string
	for _, a := range gw.deps.Accounts {
		if err := gw.deps.JobState.ResetAll(a.Email); err != nil {
			failed = append(failed, a.Masked())
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusMultiStatus, map[string]any{"status": "partial", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
