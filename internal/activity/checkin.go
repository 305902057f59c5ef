package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

// maxReadToEarnArticles bounds read-to-earn at 10 articles per session.
const maxReadToEarnArticles = 10

// RunDailyCheckIn calls the rewards API directly with a fresh OAuth token
// (the token itself is managed by deps.API); an unchanged post-claim
// balance is treated as "already done".
func RunDailyCheckIn(ctx context.Context, deps Dependencies) error {
	rec, err := deps.JobState.Get(deps.Account, callNow(deps))
	if err != nil {
		return fmt.Errorf("daily-check-in: job-state get: %w", err)
	}
	if rec.Done(model.WorkUnitDailyCheckIn) {
		return nil
	}

	before, err := deps.API.Balance(ctx)
	if err != nil {
		return fmt.Errorf("daily-check-in: read balance: %w", err)
	}

	awarded, err := deps.API.ClaimDailyCheckIn(ctx)
	if err != nil {
		return fmt.Errorf("daily-check-in: claim: %w", err)
	}

	after, err := deps.API.Balance(ctx)
	if err != nil || after <= before {
		deps.Logf("daily-check-in: balance unchanged (before=%d after=%d) — treating as already done", before, after)
		return deps.JobState.Mark(deps.Account, model.WorkUnitDailyCheckIn, 0, callNow(deps))
	}

	return deps.JobState.Mark(deps.Account, model.WorkUnitDailyCheckIn, awarded, callNow(deps))
}

// RunReadToEarn claims up to maxReadToEarnArticles articles, spacing claims
// by delayBetween, skipping any article index already recorded complete.
func RunReadToEarn(ctx context.Context, deps Dependencies, delayBetween time.Duration) error {
	for i := 0; i < maxReadToEarnArticles; i++ {
		id := model.ReadToEarnWorkUnit(i)
		rec, err := deps.JobState.Get(deps.Account, callNow(deps))
		if err != nil {
			return fmt.Errorf("read-to-earn: job-state get: %w", err)
		}
		if rec.Done(id) {
			continue
		}

		awarded, changed, err := deps.API.ClaimReadToEarn(ctx, i)
		if err != nil {
			deps.Logf("read-to-earn: article %d claim failed: %v", i, err)
			_ = deps.JobState.IncrementAttempt(deps.Account, id, callNow(deps))
			continue
		}
		if !changed {
			deps.Logf("read-to-earn: article %d balance unchanged, treating as already done", i)
			awarded = 0
		}
		if err := deps.JobState.Mark(deps.Account, id, awarded, callNow(deps)); err != nil {
			deps.Logf("read-to-earn: failed to mark article %d complete: %v", i, err)
		}

		select {
		case <-time.After(delayBetween):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func callNow(deps Dependencies) time.Time {
	if deps.Now != nil {
		return deps.Now()
	}
	return time.Now()
}
