// Package pipeline implements the Per-Account Pipeline (C12): the ordered
// per-pass flow that takes one account from a cold browser context through
// desktop and mobile activity completion to a recorded history entry.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/apperrors"
	"github.com/ohmynofan/rewards-orchestrator/internal/ban"
	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	"github.com/ohmynofan/rewards-orchestrator/internal/config"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
	"github.com/ohmynofan/rewards-orchestrator/internal/httpclient"
	"github.com/ohmynofan/rewards-orchestrator/internal/login"
	"github.com/ohmynofan/rewards-orchestrator/internal/notify"
	"github.com/ohmynofan/rewards-orchestrator/internal/platform/logger"
	"github.com/ohmynofan/rewards-orchestrator/internal/rewardsapi"
	"github.com/ohmynofan/rewards-orchestrator/internal/search"
	"github.com/ohmynofan/rewards-orchestrator/internal/storage/jobstate"
)

// nowFunc is overridden in tests; production always reads the wall clock.
var nowFunc = time.Now

// Dependencies bundles every collaborator the pipeline orchestrates,
// passed down explicitly from the Orchestrator rather than held as shared
// mutable state.
type Dependencies struct {
	Factory        browser.Factory
	Classifier     login.Classifier
	BanDetector    *ban.Detector
	Disabler       ban.Disabler
	JobState       *jobstate.Store
	History        HistoryRecorder
	Notifier       notify.Sink
	QuerySource    *search.QuerySource
	Config         config.Config
	ProfileDirFor  func(email string, persona browser.Persona) string
	CookieFileFor  func(email string) string
	GlobalStandby  *atomic.Bool
}

// HistoryRecorder is the narrow slice of internal/storage/history.Store the
// pipeline needs, kept as an interface so tests can substitute a fake.
type HistoryRecorder interface {
	Record(account string, entry model.AccountHistoryEntry) error
}

// Outcome reports what one pass did, beyond the history entry itself, so the
// Orchestrator can react (stop scheduling the account, flip global standby).
type Outcome struct {
	Entry    model.AccountHistoryEntry
	Disabled bool
	Standby  bool
}

// Run executes one pass of the pipeline for account: login, dashboard
// scrape, desktop activities and search, then the mobile flow.
func Run(ctx context.Context, deps Dependencies, account model.Account, session *model.Session) (Outcome, error) {
	started := nowFunc()
	log := logger.NewNamed("Pipeline", session)
	logf := asLogf(log)
	entry := model.AccountHistoryEntry{Timestamp: started, Date: started}
	outcome := Outcome{}

	desktopReq := browser.SessionRequest{
		AccountEmail:    account.Email,
		ProfileDir:      deps.ProfileDirFor(account.Email, browser.PersonaDesktop),
		Persona:         browser.PersonaDesktop,
		ProxyURL:        proxyURL(account, deps.Config),
		Locale:          deps.Config.Network.Locale,
		Timezone:        deps.Config.Network.Timezone,
		AntiDetectLevel: browser.AntiDetectFull,
	}

	var dash model.DashboardData
	var earnable int
	var runDesktopActivities bool

	desktopErr := browser.Acquire(ctx, deps.Factory, desktopReq, func(sess browser.Session) error {
		page := sess.Page()
		machine := login.Machine{Classifier: deps.Classifier, Account: account, Logf: logf}

		state, err := machine.Run(ctx, page)
		if err != nil {
			return classifyLoginFailure(err, deps, account, session, &outcome)
		}

		if state == model.LoginBlocked {
			return handleBlocked(ctx, deps, account, page, session, &outcome)
		}

		if verdict := checkNavigationBan(deps, account, page); verdict.Severity == model.SeverityHardBan {
			if reason, ok := disableAccountForVerdict(deps, account, verdict); ok {
				outcome.Disabled = true
				return &apperrors.LoginFatalError{Msg: "account-suspended: " + reason}
			}
		}

		dash, err = fetchDashboard(ctx, page)
		if err != nil {
			return err
		}
		earnable = dash.Earnable(false) + dash.Earnable(true)
		if earnable == 0 && !deps.Config.RunOnZeroPoints {
			return nil
		}
		runDesktopActivities = true

		runDailySetActivities(ctx, deps, account, session, page, dash, logf, &entry)

		if deps.Config.Workers.DoDesktopSearch {
			res, serr := runSearchBucket(ctx, deps, session, page, dash, browser.PersonaDesktop, logf)
			if serr != nil {
				logf("desktop search: %v", serr)
				entry.Failed++
			} else {
				entry.DesktopPoints += res.PointsGained
			}
		}
		return nil
	})

	if desktopErr != nil {
		if outcome.Disabled || outcome.Standby {
			entry.Success = false
			entry.Errors = append(entry.Errors, desktopErr.Error())
			_ = deps.History.Record(account.Email, entry)
			outcome.Entry = entry
			return outcome, nil
		}
		entry.Failed++
		entry.Errors = append(entry.Errors, errorLine(desktopErr))
	}

	if runDesktopActivities && desktopErr == nil {
		mobileEarnable := dash.Earnable(true)
		if mobileEarnable > 0 || deps.Config.RunOnZeroPoints {
			runMobileFlow(ctx, deps, account, session, logf, &entry)
		}
	}

	entry.TotalPoints = entry.DesktopPoints + entry.MobilePoints
	entry.DurationMs = nowFunc().Sub(started).Milliseconds()
	entry.Success = entry.Failed == 0 && len(entry.Errors) == 0

	if err := deps.History.Record(account.Email, entry); err != nil {
		log.JustLog(fmt.Sprintf("history record failed: %v", err))
	}

	notify.Emit(deps.Notifier, logf, notify.Event{
		Kind:      "pipeline-complete",
		Account:   account.Masked(),
		Severity:  model.SeverityNone,
		Fields:    map[string]any{"totalPoints": entry.TotalPoints, "success": entry.Success},
		Timestamp: nowFunc(),
	})

	outcome.Entry = entry
	return outcome, nil
}

// asLogf adapts a ClassLogger's plain-string JustLog to the format-style
// Logf signature the collaborator packages (login, activity, search) take.
func asLogf(log *logger.ClassLogger) func(format string, args ...any) {
	return func(format string, args ...any) {
		log.JustLog(fmt.Sprintf(format, args...))
	}
}

func errorLine(err error) string {
	return apperrors.ErrorID(err.Error(), "") + ": " + err.Error()
}

func proxyURL(account model.Account, cfg config.Config) string {
	if account.Proxy != nil {
		if u := account.Proxy.URL(); u != "" {
			return u
		}
	}
	return cfg.ProxyDefault
}

// classifyLoginFailure distinguishes the "compromised" recovery-mismatch
// signal, which engages global standby, from every other login failure,
// which is recorded as a normal failed pass.
func classifyLoginFailure(err error, deps Dependencies, account model.Account, session *model.Session, outcome *Outcome) error {
	fatal, ok := err.(*apperrors.LoginFatalError)
	if !ok {
		return err
	}
	if len(fatal.Msg) >= len("recovery-mismatch") && fatal.Msg[:len("recovery-mismatch")] == "recovery-mismatch" {
		engageStandby(deps, outcome)
		notify.Emit(deps.Notifier, nil, notify.Event{
			Kind:     string(model.IncidentRecoveryMismatch),
			Account:  account.Masked(),
			Severity: model.SeverityHardBan,
			Fields:   map[string]any{"detail": fatal.Msg},
		})
	}
	return err
}

// handleBlocked is the "On Blocked" action: an account-suspended verdict
// disables the account and sets the shared standby flag; anything else
// raises sign-in-blocked and engages standby.
func handleBlocked(ctx context.Context, deps Dependencies, account model.Account, page browser.Page, session *model.Session, outcome *Outcome) error {
	var bodyText string
	_ = page.Eval(ctx, `document.body ? document.body.innerText : ''`, &bodyText)
	status, headers := page.LastResponseStatus()

	verdict := deps.BanDetector.Fuse(account.Email, ban.FromURL(page.URL()), ban.FromPageText(bodyText), ban.FromHTTPStatus(status, headers))

	if reason, ok := disableAccountForVerdict(deps, account, verdict); ok {
		outcome.Disabled = true
		return &apperrors.LoginFatalError{Msg: "account-suspended: " + reason}
	}

	label, _ := login.BlockedPhrase(bodyText)
	engageStandby(deps, outcome)
	notify.Emit(deps.Notifier, nil, notify.Event{
		Kind:     string(model.IncidentSignInBlocked),
		Account:  account.Masked(),
		Severity: model.SeverityWarning,
		Fields:   map[string]any{"phrase": label},
	})
	return &apperrors.LoginFatalError{Msg: "sign-in-blocked: " + label}
}

// checkNavigationBan is the post-login check, run once per desktop pass: it
// re-reads the most recent navigation's HTTP status even when the login
// classifier did not itself observe a Blocked page, catching a hard-ban
// signalled only at the transport level.
func checkNavigationBan(deps Dependencies, account model.Account, page browser.Page) model.BanDetectionResult {
	status, headers := page.LastResponseStatus()
	return deps.BanDetector.Fuse(account.Email, ban.FromHTTPStatus(status, headers))
}

// disableAccountForVerdict disables account, emits the suspension incident
// and sets the shared global-standby flag when verdict is a hard ban,
// reporting the reason used. A failed
// disable call is treated as not-disabled so the caller falls through to
// its normal error handling rather than silently losing the signal.
func disableAccountForVerdict(deps Dependencies, account model.Account, verdict model.BanDetectionResult) (reason string, disabled bool) {
	if verdict.Severity != model.SeverityHardBan {
		return "", false
	}
	reason = verdict.Reason
	if reason == "" {
		reason = "account-suspended"
	}
	if derr := deps.Disabler.Disable(account.Email, reason, nowFunc()); derr != nil {
		return "", false
	}
	notify.Emit(deps.Notifier, nil, notify.Event{
		Kind:     string(model.IncidentAccountSuspended),
		Account:  account.Masked(),
		Severity: model.SeverityHardBan,
		Fields:   map[string]any{"reason": reason},
	})
	if deps.GlobalStandby != nil {
		deps.GlobalStandby.Store(true)
	}
	return reason, true
}

func engageStandby(deps Dependencies, outcome *Outcome) {
	outcome.Standby = true
	if deps.GlobalStandby != nil {
		deps.GlobalStandby.Store(true)
	}
}

func newRewardsAPI(deps Dependencies, account model.Account, token string) *rewardsapi.API {
	hints := httpclient.ClientHints{
		UserAgent:     browser.UserAgentFor(browser.PersonaMobile, ""),
		SecChUaMobile: "?1",
	}
	client, err := httpclient.NewAPIClient(proxyURL(account, deps.Config), deps.CookieFileFor(account.Email), deps.Config.Network.APIOrigin, deps.Config.Network.APIReferer, hints, nil)
	if err != nil {
		return nil
	}
	return &rewardsapi.API{
		Client: client,
		Endpoints: rewardsapi.Endpoints{
			DailyCheckIn: deps.Config.Network.DailyCheckInURL,
			ReadToEarn:   deps.Config.Network.ReadToEarnURL,
			Balance:      deps.Config.Network.BalanceURL,
		},
		Token: token,
	}
}
