package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/apperrors"
	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
	"github.com/ohmynofan/rewards-orchestrator/internal/storage/jobstate"
)

// Handler is a typed activity handler. It receives an already-opened tab
// page; handlers do not close it themselves — Dispatch closes the tab on
// every exit path once the handler returns.
type Handler func(ctx context.Context, deps Dependencies, page browser.Page, a model.Activity) error

// Dependencies bundles what every handler needs as explicit collaborator
// values rather than shared mutable state.
type Dependencies struct {
	JobState *jobstate.Store
	Account  string
	Now      func() time.Time
	Logf     func(format string, args ...any)
	Search   SearchRunner
	API      RewardsAPI
}

// SearchRunner is the narrow slice of the search engine the
// searchOnBing handler needs.
type SearchRunner interface {
	RunQueries(ctx context.Context, page browser.Page, queries []string) error
}

// RewardsAPI is the narrow slice of the rewards HTTP API the API-backed
// handlers (daily check-in, read-to-earn) need.
type RewardsAPI interface {
	ClaimDailyCheckIn(ctx context.Context) (pointsAwarded int, err error)
	ClaimReadToEarn(ctx context.Context, articleIndex int) (pointsAwarded int, balanceChanged bool, err error)
	Balance(ctx context.Context) (int, error)
}

var handlerTable = map[Kind]Handler{
	KindPoll:         handlePoll,
	KindABC:          handleABC,
	KindThisOrThat:   handleThisOrThat,
	KindQuiz:         handleQuiz,
	KindSearchOnBing: handleSearchOnBing,
	KindURLReward:    handleURLReward,
}

// Dispatch classifies a, skips it if already recorded complete in
// job-state, opens a tab, runs the matching handler, and records
// completion only if the dashboard confirms point movement, so every
// handler stays idempotent at the job-state level.
func Dispatch(ctx context.Context, deps Dependencies, parentPage browser.Page, a model.Activity, pointsAfter func() (int, error)) error {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}

	rec, err := deps.JobState.Get(deps.Account, now())
	if err != nil {
		return fmt.Errorf("activity: job-state get: %w", err)
	}
	if rec.Done(a.OfferID) {
		return nil
	}

	kind := Classify(a)
	handler, ok := handlerTable[kind]
	if !ok {
		deps.Logf("activity: unsupported kind for offer %s (name=%s promotion=%s)", a.OfferID, a.Name, a.PromotionType)
		return nil
	}

	tab, err := parentPage.NewTab(ctx)
	if err != nil {
		return &apperrors.ActivityError{OfferID: a.OfferID, Msg: fmt.Sprintf("open tab: %v", err)}
	}
	defer func() { _ = tab.Close(ctx) }()

	before, _ := pointsAfter()
	if err := handler(ctx, deps, tab, a); err != nil {
		return &apperrors.ActivityError{OfferID: a.OfferID, Msg: err.Error()}
	}

	after, perr := pointsAfter()
	if perr == nil && after > before {
		if merr := deps.JobState.Mark(deps.Account, a.OfferID, after-before, now()); merr != nil {
			deps.Logf("activity: failed to mark %s complete: %v", a.OfferID, merr)
		}
		return nil
	}
	if ierr := deps.JobState.IncrementAttempt(deps.Account, a.OfferID, now()); ierr != nil {
		deps.Logf("activity: failed to record attempt for %s: %v", a.OfferID, ierr)
	}
	return nil
}
