package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ohmynofan/rewards-orchestrator/internal/app/pipeline"
	"github.com/ohmynofan/rewards-orchestrator/internal/config"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

// Orchestrator is the Worker Pool (C13): a bounded pool of size
// config.Clusters that runs the Per-Account Pipeline for every account,
// for config.Execution.Passes passes, sleeping inter_pass_delay between
// passes. A single shared atomic flag (standby) halts new task starts when
// a security incident fires; stopRequested does the same for an operator
// stop command. Neither interrupts a task already mid-pass — the current
// pipeline.Run call is always allowed to finish its work unit.
type Orchestrator struct {
	deps     pipeline.Dependencies
	standby  *atomic.Bool
	accounts []model.Account
	cfg      config.Config
	logf     func(format string, args ...any)

	stopRequested atomic.Bool
}

// New builds an Orchestrator. deps.GlobalStandby is overwritten with an
// atomic flag the Orchestrator itself owns, so every pipeline.Run invocation
// across every account shares the same standby signal.
func New(deps pipeline.Dependencies, accounts []model.Account, cfg config.Config, logf func(format string, args ...any)) *Orchestrator {
	standby := &atomic.Bool{}
	deps.GlobalStandby = standby
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Orchestrator{
		deps:     deps,
		standby:  standby,
		accounts: accounts,
		cfg:      cfg,
		logf:     logf,
	}
}

// RequestStop sets stopRequested. Running tasks finish their current unit
// before the worker pool drains.
func (o *Orchestrator) RequestStop() { o.stopRequested.Store(true) }

// ClearStop allows a subsequent RunAll to proceed after a stop.
func (o *Orchestrator) ClearStop() { o.stopRequested.Store(false) }

// StandbyEngaged reports whether a security incident has halted new runs.
func (o *Orchestrator) StandbyEngaged() bool { return o.standby.Load() }

// ClearStandby lifts standby, for an operator-triggered resume.
func (o *Orchestrator) ClearStandby() { o.standby.Store(false) }

// RunAll fans one task per account across a worker pool of size
// config.Clusters, bounded with a weighted semaphore. Per-account errors
// never abort the other accounts' tasks — there is no cross-account
// ordering guarantee — so RunAll only returns an error if ctx itself is
// cancelled before any task starts.
func (o *Orchestrator) RunAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clusters := o.cfg.Clusters
	if clusters < 1 {
		clusters = 1
	}
	sem := semaphore.NewWeighted(int64(clusters))
	g, gctx := errgroup.WithContext(ctx)

	for idx := range o.accounts {
		idx := idx
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)
			o.runAccount(ctx, idx)
			return nil
		})
	}
	return g.Wait()
}

// RunSingle runs one pass of the pipeline for the named account immediately,
// bypassing the worker pool and the passes/inter_pass_delay loop — used by
// the dashboard's run-single-account command.
func (o *Orchestrator) RunSingle(ctx context.Context, email string) (pipeline.Outcome, error) {
	for idx := range o.accounts {
		if o.accounts[idx].Email == email {
			session := o.sessionFor(idx)
			return pipeline.Run(ctx, o.deps, o.accounts[idx], session)
		}
	}
	return pipeline.Outcome{}, fmt.Errorf("orchestrator: unknown account %q", model.MaskEmail(email))
}

func (o *Orchestrator) runAccount(ctx context.Context, idx int) {
	account := &o.accounts[idx]
	session := o.sessionFor(idx)
	passes := o.cfg.Execution.Passes
	if passes < 1 {
		passes = 1
	}

	for pass := 1; pass <= passes; pass++ {
		if ctx.Err() != nil {
			return
		}
		if o.stopRequested.Load() {
			o.logf("orchestrator: stop requested, account %s idle", account.Masked())
			return
		}
		if o.standby.Load() {
			o.logf("orchestrator: global standby engaged, account %s idle", account.Masked())
			return
		}
		if !account.Enabled {
			return
		}

		outcome, err := pipeline.Run(ctx, o.deps, *account, session)
		if err != nil {
			o.logf("orchestrator: account %s pass %d: %v", account.Masked(), pass, err)
		}
		if outcome.Disabled {
			account.Enabled = false
			return
		}
		if outcome.Standby {
			return
		}

		if pass < passes {
			if !o.sleepInterruptible(ctx, o.cfg.Execution.InterPassDelay.Duration()) {
				return
			}
		}
	}
}

// sleepInterruptible sleeps for d, polling once a second so a stop request
// or standby engagement partway through the inter-pass delay takes effect
// promptly instead of only at the next pass boundary.
func (o *Orchestrator) sleepInterruptible(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	deadline := time.Now().Add(d)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case now := <-ticker.C:
			if o.stopRequested.Load() || o.standby.Load() {
				return false
			}
			if !now.Before(deadline) {
				return true
			}
		}
	}
}

func (o *Orchestrator) sessionFor(idx int) *model.Session {
	return &model.Session{
		Account:     idx,
		AccIdx:      idx,
		Email:       o.accounts[idx].Email,
		LoginStatus: model.StatusWaiting,
	}
}
