package app

import (
	"context"
	"fmt"

	"github.com/ohmynofan/rewards-orchestrator/internal/app/orchestrator"
	"github.com/ohmynofan/rewards-orchestrator/internal/app/pipeline"
	"github.com/ohmynofan/rewards-orchestrator/internal/ban"
	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	"github.com/ohmynofan/rewards-orchestrator/internal/config"
	"github.com/ohmynofan/rewards-orchestrator/internal/dashboard"
	"github.com/ohmynofan/rewards-orchestrator/internal/login"
	"github.com/ohmynofan/rewards-orchestrator/internal/notify"
	"github.com/ohmynofan/rewards-orchestrator/internal/platform/logger"
	"github.com/ohmynofan/rewards-orchestrator/internal/search"
	"github.com/ohmynofan/rewards-orchestrator/internal/storage/history"
	"github.com/ohmynofan/rewards-orchestrator/internal/storage/jobstate"
)

// Driver is supplied by main at the process boundary: a concrete
// browser.Factory wiring a real automation engine (chromedp, rod,
// playwright). None of the retrieved reference corpus vendors one, so App
// takes it as an explicit dependency instead of constructing a default —
// Run fails fast with a directed error if it is nil, the same lazy-loaded
// "not yet wired" shape the reference corpus uses for its own optional
// external runtimes.
type App struct {
	cfg    config.Config
	driver browser.Factory
}

// New builds an App from a loaded config and an injected browser driver.
func New(cfg config.Config, driver browser.Factory) *App {
	return &App{cfg: cfg, driver: driver}
}

// Run wires every component and blocks running the Clock & Scheduler until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.driver == nil {
		return fmt.Errorf("app: no browser driver configured — wire a browser.Factory implementation at the process boundary before calling Run")
	}

	accounts, err := config.LoadAccounts(a.cfg.AccountsPath)
	if err != nil {
		return err
	}

	jobState, err := jobstate.New(a.cfg.JobStateDir)
	if err != nil {
		return err
	}

	historyStore, err := history.Open(a.cfg.HistoryDBPath)
	if err != nil {
		return err
	}
	defer historyStore.Close()

	sink := a.buildNotifier()

	deps := pipeline.Dependencies{
		Factory:     a.driver,
		Classifier:  login.Classifier{RewardsPortalHost: a.cfg.Network.RewardsPortalHost, LoginPortalHost: a.cfg.Network.LoginPortalHost, Selectors: login.DefaultSelectors()},
		BanDetector: ban.NewDetector(),
		Disabler:    ban.Disabler{Path: a.cfg.AccountsPath},
		JobState:    jobState,
		History:     historyStore,
		Notifier:    sink,
		QuerySource: &search.QuerySource{Locale: a.cfg.Network.Locale},
		Config:      a.cfg,
		ProfileDirFor: func(email string, persona browser.Persona) string {
			return profileDir(email, persona)
		},
		CookieFileFor: cookieFilePath,
	}

	orch := orchestrator.New(deps, accounts, a.cfg, loggerLogf("Orchestrator"))

	gw := dashboard.New(dashboard.Dependencies{
		Config:       a.cfg.Dashboard,
		Orchestrator: orch,
		History:      historyStore,
		JobState:     jobState,
		Accounts:     accounts,
	})
	if a.cfg.Dashboard.Enabled {
		go func() {
			if err := gw.ListenAndServe(ctx); err != nil {
				logger.NewNamed("Dashboard", nil).JustLog(fmt.Sprintf("gateway stopped: %v", err))
			}
		}()
	}

	clock := &orchestrator.Clock{
		Entries: a.cfg.Schedule,
		Trigger: func(triggerCtx context.Context) { _ = orch.RunAll(triggerCtx) },
		Logf:    loggerLogf("Scheduler"),
	}
	clock.Run(ctx)
	return nil
}

func (a *App) buildNotifier() notify.Sink {
	switch a.cfg.Notifications.Transport {
	case "webhook":
		if a.cfg.Notifications.WebhookURL == "" {
			return notify.NoopSink{}
		}
		return notify.NewWebhookSink(a.cfg.Notifications.WebhookURL)
	default:
		return notify.NoopSink{}
	}
}

func loggerLogf(name string) func(format string, args ...any) {
	log := logger.NewNamed(name, nil)
	return func(format string, args ...any) {
		log.JustLog(fmt.Sprintf(format, args...))
	}
}
