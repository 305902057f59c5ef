// Package dashboard implements the Dashboard Gateway (C14): a read-mostly
// HTTP surface over status, accounts, logs, history, and metrics, plus a
// small command set that only ever signals the Orchestrator — it never
// drives the browser itself.
package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/ohmynofan/rewards-orchestrator/internal/app/pipeline"
	"github.com/ohmynofan/rewards-orchestrator/internal/config"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
	"github.com/ohmynofan/rewards-orchestrator/internal/storage/history"
	"github.com/ohmynofan/rewards-orchestrator/internal/storage/jobstate"
)

// Orchestrator is the narrow slice of internal/app/orchestrator.Orchestrator
// the gateway needs, kept as an interface so tests can substitute a fake
// without spinning up real browser sessions.
type Orchestrator interface {
	RunAll(ctx context.Context) error
	RunSingle(ctx context.Context, email string) (pipeline.Outcome, error)
	RequestStop()
	ClearStop()
	StandbyEngaged() bool
	ClearStandby()
}

// Dependencies bundles everything the gateway's handlers read from.
type Dependencies struct {
	Config       config.DashboardConfig
	Orchestrator Orchestrator
	History      *history.Store
	JobState     *jobstate.Store
	Accounts     []model.Account
}

// Gateway is the running HTTP surface.
type Gateway struct {
	deps   Dependencies
	router chi.Router
	hub    *logHub
}

// New builds a Gateway and registers every route.
func New(deps Dependencies) *Gateway {
	gw := &Gateway{deps: deps, hub: newLogHub()}
	gw.router = gw.routes()
	return gw
}

// ListenAndServe blocks serving HTTP on Config.Addr until ctx is cancelled.
func (gw *Gateway) ListenAndServe(ctx context.Context) error {
	addr := gw.deps.Config.Addr
	if addr == "" {
		addr = ":8090"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           gw.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (gw *Gateway) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(120, time.Minute))

	r.Get("/api/status", gw.handleStatus)
	r.Get("/api/accounts", gw.handleAccounts)
	r.Get("/api/logs", gw.handleLogsGet)
	r.Delete("/api/logs", gw.handleLogsClear)
	r.Get("/api/history", gw.handleHistory)
	r.Get("/api/metrics", gw.handleMetrics)
	r.Get("/api/memory", gw.handleMemory)
	r.Get("/api/account-history", gw.handleAccountHistory)
	r.Get("/api/account-history/{email}", gw.handleAccountHistory)
	r.Get("/api/account-stats/{email}", gw.handleAccountStats)
	r.Get("/api/stats/historical", gw.handleStatsHistorical)
	r.Get("/api/stats/activity-breakdown", gw.handleStatsActivityBreakdown)
	r.Get("/api/stats/global", gw.handleStatsGlobal)

	r.Post("/api/start", gw.handleStart)
	r.Post("/api/stop", gw.handleStop)
	r.Post("/api/restart", gw.handleRestart)
	r.Post("/api/run-single", gw.handleRunSingle)
	r.Post("/api/account/{email}/reset", gw.handleAccountReset)
	r.Post("/api/reset-state", gw.handleResetState)
	r.Post("/api/config", gw.handleConfigWrite)

	r.Get("/ws/logs", gw.handleLogsWS)

	return r
}
