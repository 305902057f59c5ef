package login

import (
	"context"
	"regexp"
	"strings"

	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

// Selectors bundles the DOM queries the classifier needs. A concrete driver
// wiring supplies portal-specific selector strings; defaults match the
// common rewards-portal and login-portal markup referenced by the spec.
type Selectors struct {
	PortalPresence string
	EmailInput     string
	PasswordInput  string
	OneTimeCode    string
}

// DefaultSelectors are reasonable stand-ins; the app wires them as-is, and
// no config field overrides them.
func DefaultSelectors() Selectors {
	return Selectors{
		PortalPresence: "#id_n",
		EmailInput:     `input[type="email"], input[name="loginfmt"]`,
		PasswordInput:  `input[type="password"], input[name="passwd"]`,
		OneTimeCode:    `input[name="otc"]`,
	}
}

var (
	passkeyTitlePattern = regexp.MustCompile(`(?i)passkey|windows hello|biometric`)
	blockedTitlePattern = regexp.MustCompile(`(?i)can'?t sign you in|blocked|locked`)
	oauthURLPattern     = regexp.MustCompile(`(?i)oauth2?/(authorize|v2\.0/authorize)|/consumers/oauth2`)
)

// Classifier holds the host patterns and selectors needed to classify the
// current page into a LoginState. Rules are evaluated in order; the first
// match wins.
type Classifier struct {
	RewardsPortalHost string
	LoginPortalHost   string
	Selectors         Selectors
}

// Classify inspects page and returns the next LoginState per the ordered
// rule list.
func (c Classifier) Classify(ctx context.Context, page browser.Page) (model.LoginState, error) {
	u := page.URL()
	title, err := page.Title(ctx)
	if err != nil {
		title = ""
	}

	if strings.Contains(u, c.RewardsPortalHost) {
		if _, present, qerr := page.Query(ctx, c.Selectors.PortalPresence); qerr == nil && present {
			return model.LoginLoggedIn, nil
		}
	}

	if strings.Contains(u, c.LoginPortalHost) {
		if el, present, qerr := page.Query(ctx, c.Selectors.EmailInput); qerr == nil && present {
			if visible, _ := el.Visible(ctx); visible {
				return model.LoginEmailPage, nil
			}
		}
		if el, present, qerr := page.Query(ctx, c.Selectors.PasswordInput); qerr == nil && present {
			if visible, _ := el.Visible(ctx); visible {
				return model.LoginPasswordPage, nil
			}
		}
		if el, present, qerr := page.Query(ctx, c.Selectors.OneTimeCode); qerr == nil && present {
			if visible, _ := el.Visible(ctx); visible {
				return model.LoginTwoFactorRequired, nil
			}
		}
		if blockedTitlePattern.MatchString(title) {
			return model.LoginBlocked, nil
		}
		if passkeyTitlePattern.MatchString(title) {
			return model.LoginPasskeyPrompt, nil
		}
	}

	if oauthURLPattern.MatchString(u) {
		return model.LoginEmailSubmitted, nil
	}

	return model.LoginUnknown, nil
}

// BlockedPhrase scans a page's visible text for the ban-adjacent phrase set
// the state machine treats as a sign-in block, returning the matched label
// for the incident log.
func BlockedPhrase(pageText string) (label string, matched bool) {
	lower := strings.ToLower(pageText)
	for _, p := range []struct{ label, needle string }{
		{"cant-sign-in", "can't sign you in"},
		{"account-blocked", "blocked"},
		{"account-locked", "locked"},
	} {
		if strings.Contains(lower, p.needle) {
			return p.label, true
		}
	}
	return "", false
}
