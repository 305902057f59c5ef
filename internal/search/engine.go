package search

import (
	"context"
	"fmt"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/apperrors"
	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
	intrand "github.com/ohmynofan/rewards-orchestrator/internal/rand"
)

// Dependencies the execution loop needs from the surrounding pipeline.
type Dependencies struct {
	Source          *QuerySource
	SearchEndpoint  func(query string) string
	FetchDashboard  func(ctx context.Context, page browser.Page) (model.DashboardData, error)
	WaitForResults  func(ctx context.Context, page browser.Page) error
	SearchDelayMin  time.Duration
	SearchDelayMax  time.Duration
	RefetchEvery    int // "every k queries"
	StallLimit      int // "S consecutive queries"
	Logf            func(format string, args ...any)
}

// Result summarizes one persona's search execution for job-state and
// history recording.
type Result struct {
	PointsGained int
	QueriesRun   int
	Completed    bool
	Stalled      bool
}

// Run executes the search loop for persona on page, targeting
// remainingPoints (counters.{pcSearch|mobileSearch}[0].pointProgressMax -
// pointProgress) as computed by the caller.
func Run(ctx context.Context, deps Dependencies, page browser.Page, persona browser.Persona, remainingPoints int) (Result, error) {
	if deps.Logf == nil {
		deps.Logf = func(string, ...any) {}
	}
	if remainingPoints <= 0 {
		return Result{Completed: true}, nil
	}

	queries := deps.Source.Generate(ctx, 60)
	if len(queries) == 0 {
		return Result{}, fmt.Errorf("search: no queries available")
	}

	var (
		lastProgress  = remainingPoints
		stallStreak   int
		queriesRun    int
		pointsGained  int
		refetchEvery  = deps.RefetchEvery
	)
	if refetchEvery <= 0 {
		refetchEvery = 5
	}
	stallLimit := deps.StallLimit
	if stallLimit <= 0 {
		stallLimit = 8
	}

	for i, q := range queries {
		if ctx.Err() != nil {
			return Result{PointsGained: pointsGained, QueriesRun: queriesRun}, ctx.Err()
		}

		url := deps.SearchEndpoint(q)
		if err := page.Navigate(ctx, url); err != nil {
			if page.Closed() {
				return Result{PointsGained: pointsGained, QueriesRun: queriesRun}, &apperrors.TransientBrowserError{Msg: "search: " + err.Error()}
			}
			deps.Logf("search: navigate failed for %q: %v", q, err)
			continue
		}

		if deps.WaitForResults != nil {
			_ = deps.WaitForResults(ctx, page)
		}
		queriesRun++

		dwell := intrand.HumanVariance(float64((deps.SearchDelayMin+deps.SearchDelayMax)/2/time.Millisecond), 0.35, 0.05)
		select {
		case <-time.After(time.Duration(dwell) * time.Millisecond):
		case <-ctx.Done():
			return Result{PointsGained: pointsGained, QueriesRun: queriesRun}, ctx.Err()
		}

		if (i+1)%refetchEvery == 0 || i == len(queries)-1 {
			dash, err := deps.FetchDashboard(ctx, page)
			if err != nil {
				deps.Logf("search: dashboard refetch failed: %v", err)
				continue
			}
			remaining := dash.CounterRemaining(counterKeyFor(persona))
			gained := lastProgress - remaining
			if gained > 0 {
				pointsGained += gained
				stallStreak = 0
			} else {
				stallStreak++
			}
			lastProgress = remaining

			if remaining <= 0 {
				return Result{PointsGained: pointsGained, QueriesRun: queriesRun, Completed: true}, nil
			}
			if stallStreak >= stallLimit {
				return Result{PointsGained: pointsGained, QueriesRun: queriesRun, Stalled: true},
					fmt.Errorf("search: progress stalled for %d refetch cycles with %d points remaining", stallStreak, remaining)
			}
		}
	}

	return Result{PointsGained: pointsGained, QueriesRun: queriesRun, Completed: lastProgress <= 0}, nil
}

func counterKeyFor(persona browser.Persona) string {
	if persona == browser.PersonaMobile {
		return "mobileSearch"
	}
	return "pcSearch"
}

// RetryMobile rebuilds the browser session up to maxRetries times when the
// mobile search pass finishes incomplete.
func RetryMobile(ctx context.Context, maxRetries int, attempt func(ctx context.Context) (Result, error)) (Result, error) {
	var last Result
	var err error
	for i := 0; i <= maxRetries; i++ {
		last, err = attempt(ctx)
		if err == nil && last.Completed {
			return last, nil
		}
		if i == maxRetries {
			break
		}
	}
	return last, err
}
