package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/activity"
	"github.com/ohmynofan/rewards-orchestrator/internal/ban"
	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
	"github.com/ohmynofan/rewards-orchestrator/internal/httpclient"
	"github.com/ohmynofan/rewards-orchestrator/internal/login"
	"github.com/ohmynofan/rewards-orchestrator/internal/search"
)

// fetchAvailablePoints re-reads just the balance field, the cheap check the
// Activity Dispatcher uses to judge whether a handler actually moved
// points.
func fetchAvailablePoints(ctx context.Context, page browser.Page) (int, error) {
	var status model.UserStatus
	if err := page.Eval(ctx, `window._w && window._w.rewardsData ? window._w.rewardsData.userStatus : null`, &status); err != nil {
		return 0, fmt.Errorf("pipeline: read balance: %w", err)
	}
	return status.AvailablePoints, nil
}

// runDailySetActivities dispatches the daily-set, more-promotions, and
// punch-card tiles gated by their respective worker flags.
func runDailySetActivities(ctx context.Context, deps Dependencies, account model.Account, session *model.Session, page browser.Page, dash model.DashboardData, logf func(string, ...any), entry *model.AccountHistoryEntry) {
	adeps := activity.Dependencies{
		JobState: deps.JobState,
		Account:  account.Email,
		Now:      nowFunc,
		Logf:     logf,
		Search:   exploreOnBingRunner{SearchEndpoint: searchEndpointFor(deps)},
	}
	pointsAfter := func() (int, error) { return fetchAvailablePoints(ctx, page) }

	run := func(a model.Activity) {
		if ctx.Err() != nil {
			return
		}
		if err := activity.Dispatch(ctx, adeps, page, a, pointsAfter); err != nil {
			logf("activity %s failed: %v", a.OfferID, err)
			entry.Failed++
		} else {
			entry.Completed++
		}
	}

	if deps.Config.Workers.DoDailySet {
		for _, set := range dash.DailySet {
			for _, a := range set.Activities {
				if !a.Complete {
					run(a)
				}
			}
		}
	}
	if deps.Config.Workers.DoMorePromotions {
		for _, a := range dash.MorePromotions {
			if !a.Complete {
				run(a)
			}
		}
	}
	if deps.Config.Workers.DoPunchCards {
		for _, pc := range dash.PunchCards {
			for _, a := range pc.Activities {
				if !a.Complete {
					run(a)
				}
			}
		}
	}
}

func searchEndpointFor(deps Dependencies) func(query string) string {
	base := deps.Config.Network.SearchEndpoint
	return func(q string) string {
		return base + "?q=" + url.QueryEscape(q)
	}
}

// runSearchBucket runs the pcSearch/mobileSearch execution loop for one
// persona, skipping it entirely when job-state already records the bucket
// complete for today.
func runSearchBucket(ctx context.Context, deps Dependencies, session *model.Session, page browser.Page, dash model.DashboardData, persona browser.Persona, logf func(string, ...any)) (search.Result, error) {
	workUnit := model.SearchWorkUnit(persona == browser.PersonaMobile)
	rec, err := deps.JobState.Get(sessionAccount(session), nowFunc())
	if err == nil && rec.Done(workUnit) {
		return search.Result{Completed: true}, nil
	}

	remaining := dash.CounterRemaining(counterKeyForPersona(persona))
	sdeps := search.Dependencies{
		Source:         deps.QuerySource,
		SearchEndpoint: searchEndpointFor(deps),
		FetchDashboard: fetchDashboard,
		SearchDelayMin: deps.Config.SearchSettings.SearchDelay.Min.Duration(),
		SearchDelayMax: deps.Config.SearchSettings.SearchDelay.Max.Duration(),
		Logf:           logf,
	}

	res, serr := search.Run(ctx, sdeps, page, persona, remaining)
	if serr != nil {
		_ = deps.JobState.IncrementAttempt(sessionAccount(session), workUnit, nowFunc())
		return res, serr
	}
	if res.Completed {
		_ = deps.JobState.Mark(sessionAccount(session), workUnit, res.PointsGained, nowFunc())
	} else {
		_ = deps.JobState.IncrementAttempt(sessionAccount(session), workUnit, nowFunc())
	}
	return res, nil
}

func counterKeyForPersona(persona browser.Persona) string {
	if persona == browser.PersonaMobile {
		return "mobileSearch"
	}
	return "pcSearch"
}

func sessionAccount(session *model.Session) string {
	if session == nil {
		return ""
	}
	return session.Email
}

// runMobileFlow runs the mobile session (reusing persisted cookies when
// the profile directory already has them), OAuth token acquisition, daily
// check-in, read-to-earn, and mobile search with retry.
func runMobileFlow(ctx context.Context, deps Dependencies, account model.Account, session *model.Session, logf func(string, ...any), entry *model.AccountHistoryEntry) {
	mobileReq := browser.SessionRequest{
		AccountEmail:    account.Email,
		ProfileDir:      deps.ProfileDirFor(account.Email, browser.PersonaMobile),
		Persona:         browser.PersonaMobile,
		ProxyURL:        proxyURL(account, deps.Config),
		Locale:          deps.Config.Network.Locale,
		Timezone:        deps.Config.Network.Timezone,
		AntiDetectLevel: browser.AntiDetectFull,
	}

	var dash model.DashboardData
	loginErr := browser.Acquire(ctx, deps.Factory, mobileReq, func(sess browser.Session) error {
		page := sess.Page()
		machine := login.Machine{Classifier: deps.Classifier, Account: account, Logf: logf}
		state, err := machine.Run(ctx, page)
		if err != nil {
			return err
		}
		if state != model.LoginLoggedIn {
			return fmt.Errorf("pipeline: mobile login ended in state %s", state)
		}
		dash, err = fetchDashboard(ctx, page)
		return err
	})
	if loginErr != nil {
		logf("mobile session: %v", loginErr)
		entry.Failed++
		return
	}

	token, err := acquireOAuthToken(ctx, deps.Factory, mobileReq, deps.Config.Network.OAuthAuthorizeURL)
	if err != nil {
		logf("mobile oauth: %v", err)
		entry.Failed++
		return
	}

	api := newRewardsAPI(deps, account, token)
	if api == nil {
		logf("mobile oauth: could not build rewards API client")
		entry.Failed++
		return
	}

	if deps.Config.Workers.DoDailyCheckIn {
		if runDailyCheckIn(ctx, deps, account, session, api, logf, entry) {
			return
		}
	}
	if deps.Config.Workers.DoReadToEarn {
		if runReadToEarn(ctx, deps, account, session, api, logf, entry) {
			return
		}
	}
	if deps.Config.Workers.DoMobileSearch {
		runMobileSearchWithRetry(ctx, deps, account, session, logf, dash, entry)
	}
}

// handleAPIClaimError inspects a rewards-API claim failure for ban/risk
// evidence and, on a hard-ban verdict, disables the account the same way
// handleBlocked does for the browser-side signals. Reports whether the
// account was disabled.
func handleAPIClaimError(deps Dependencies, account model.Account, err error) bool {
	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	verdict := deps.BanDetector.Fuse(account.Email, ban.FromAPIResponse(httpErr.StatusCode, string(httpErr.Body)))
	_, disabled := disableAccountForVerdict(deps, account, verdict)
	return disabled
}

func runDailyCheckIn(ctx context.Context, deps Dependencies, account model.Account, session *model.Session, api rewardsAPIClaimer, logf func(string, ...any), entry *model.AccountHistoryEntry) bool {
	rec, err := deps.JobState.Get(sessionAccount(session), nowFunc())
	if err == nil && rec.Done(model.WorkUnitDailyCheckIn) {
		return false
	}
	before, _ := api.Balance(ctx)
	gained, cerr := api.ClaimDailyCheckIn(ctx)
	if cerr != nil {
		logf("daily check-in: %v", cerr)
		if handleAPIClaimError(deps, account, cerr) {
			entry.Failed++
			return true
		}
		_ = deps.JobState.IncrementAttempt(sessionAccount(session), model.WorkUnitDailyCheckIn, nowFunc())
		return false
	}
	after, _ := api.Balance(ctx)
	if gained == 0 && after <= before {
		// Unchanged balance post-claim means the check-in was already done today.
		_ = deps.JobState.Mark(sessionAccount(session), model.WorkUnitDailyCheckIn, 0, nowFunc())
		return false
	}
	entry.MobilePoints += gained
	_ = deps.JobState.Mark(sessionAccount(session), model.WorkUnitDailyCheckIn, gained, nowFunc())
	return false
}

const maxReadToEarnArticles = 10

func runReadToEarn(ctx context.Context, deps Dependencies, account model.Account, session *model.Session, api rewardsAPIClaimer, logf func(string, ...any), entry *model.AccountHistoryEntry) bool {
	for i := 0; i < maxReadToEarnArticles; i++ {
		if ctx.Err() != nil {
			return false
		}
		workUnit := model.ReadToEarnWorkUnit(i)
		rec, err := deps.JobState.Get(sessionAccount(session), nowFunc())
		if err == nil && rec.Done(workUnit) {
			continue
		}
		gained, changed, rerr := api.ClaimReadToEarn(ctx, i)
		if rerr != nil {
			logf("read-to-earn %d: %v", i, rerr)
			if handleAPIClaimError(deps, account, rerr) {
				entry.Failed++
				return true
			}
			_ = deps.JobState.IncrementAttempt(sessionAccount(session), workUnit, nowFunc())
			continue
		}
		if !changed {
			_ = deps.JobState.Mark(sessionAccount(session), workUnit, 0, nowFunc())
			continue
		}
		entry.MobilePoints += gained
		_ = deps.JobState.Mark(sessionAccount(session), workUnit, gained, nowFunc())

		delay := deps.Config.SearchSettings.SearchDelay.Min.Duration()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return false
		}
	}
	return false
}

// rewardsAPIClaimer is the slice of rewardsapi.API the check-in/read-to-earn
// helpers need; narrowed to an interface so tests can substitute a fake.
type rewardsAPIClaimer interface {
	ClaimDailyCheckIn(ctx context.Context) (int, error)
	ClaimReadToEarn(ctx context.Context, articleIndex int) (int, bool, error)
	Balance(ctx context.Context) (int, error)
}

func runMobileSearchWithRetry(ctx context.Context, deps Dependencies, account model.Account, session *model.Session, logf func(string, ...any), dash model.DashboardData, entry *model.AccountHistoryEntry) {
	maxRetries := deps.Config.SearchSettings.RetryMobileSearchAmount
	mobileReq := browser.SessionRequest{
		AccountEmail:    account.Email,
		ProfileDir:      deps.ProfileDirFor(account.Email, browser.PersonaMobile),
		Persona:         browser.PersonaMobile,
		ProxyURL:        proxyURL(account, deps.Config),
		Locale:          deps.Config.Network.Locale,
		Timezone:        deps.Config.Network.Timezone,
		AntiDetectLevel: browser.AntiDetectFull,
	}

	res, err := search.RetryMobile(ctx, maxRetries, func(ctx context.Context) (search.Result, error) {
		var out search.Result
		var runErr error
		acquireErr := browser.Acquire(ctx, deps.Factory, mobileReq, func(sess browser.Session) error {
			out, runErr = runSearchBucket(ctx, deps, session, sess.Page(), dash, browser.PersonaMobile, logf)
			return runErr
		})
		if acquireErr != nil {
			return out, acquireErr
		}
		return out, nil
	})
	if err != nil {
		logf("mobile search: %v", err)
		entry.Failed++
		return
	}
	entry.MobilePoints += res.PointsGained
}
