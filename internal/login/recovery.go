package login

import (
	"context"
	"regexp"
	"strings"

	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

// recoverySelectors are the canonical places a masked recovery address
// appears; recoveryRegexFallback covers everything else on the page.
var recoverySelectors = []string{
	`[data-testid="recoveryEmailHint"]`,
	`#iShowEmail`,
	`.recovery-email-hint`,
}

var recoveryRegexFallback = regexp.MustCompile(`\b([A-Za-z0-9]{1,2})(\*{2,})?@([A-Za-z0-9.-]+\.[A-Za-z]{2,})\b`)

// RecoveryCheckResult is the outcome of comparing a page-revealed masked
// recovery address against the account record.
type RecoveryCheckResult struct {
	Mismatched bool
	MatchMode  string // "strict" or "lenient"
	Detail     string
}

// CheckRecoveryEmail extracts a masked-address candidate, derives
// (visible_prefix, domain), and compares against the account's
// recovery_email/email — domain exact, prefix strict at 2 visible chars,
// lenient (first char only) at 1.
func CheckRecoveryEmail(ctx context.Context, page browser.Page, account model.Account) (RecoveryCheckResult, error) {
	candidate, err := extractCandidate(ctx, page)
	if err != nil {
		return RecoveryCheckResult{}, err
	}
	if candidate == "" {
		// Nothing to compare against: treat as no evidence of mismatch.
		return RecoveryCheckResult{Mismatched: false}, nil
	}

	prefix, domain, visibleChars := parseMasked(candidate)
	if prefix == "" || domain == "" {
		return RecoveryCheckResult{Mismatched: false}, nil
	}

	expected := account.RecoveryEmail
	if expected == "" {
		expected = account.Email
	}
	expPrefix, expDomain, ok := splitEmail(expected)
	if !ok {
		return RecoveryCheckResult{Mismatched: false}, nil
	}

	if !strings.EqualFold(domain, expDomain) {
		return RecoveryCheckResult{
			Mismatched: true,
			Detail:     "domain mismatch: page showed " + domain + ", account expects " + expDomain,
		}, nil
	}

	mode := "strict"
	match := false
	switch visibleChars {
	case 2:
		match = len(expPrefix) >= 2 && strings.EqualFold(prefix, expPrefix[:2])
	default:
		mode = "lenient"
		match = len(expPrefix) >= 1 && strings.EqualFold(prefix[:1], expPrefix[:1])
	}

	if !match {
		return RecoveryCheckResult{
			Mismatched: true,
			MatchMode:  mode,
			Detail:     "prefix mismatch (" + mode + "): page showed " + prefix,
		}, nil
	}

	return RecoveryCheckResult{Mismatched: false, MatchMode: mode}, nil
}

func extractCandidate(ctx context.Context, page browser.Page) (string, error) {
	for _, sel := range recoverySelectors {
		if el, present, err := page.Query(ctx, sel); err == nil && present {
			if text, terr := el.Text(ctx); terr == nil && text != "" {
				return text, nil
			}
		}
	}

	var bodyText string
	if err := page.Eval(ctx, `document.body ? document.body.innerText : ''`, &bodyText); err != nil {
		return "", err
	}
	if m := recoveryRegexFallback.FindString(bodyText); m != "" {
		return m, nil
	}
	return "", nil
}

// parseMasked pulls (visiblePrefix, domain, numVisibleChars) out of a
// masked string like "k******@domain.tld" or "jo****@domain.tld".
func parseMasked(s string) (prefix, domain string, visibleChars int) {
	m := recoveryRegexFallback.FindStringSubmatch(s)
	if m == nil {
		return "", "", 0
	}
	prefix = m[1]
	domain = m[3]
	// One or two alphanumerics may precede the mask run (e.g. "k***@..."
	// or "jo****@..."); each counts as visible.
	visibleChars = len(prefix)
	return prefix, domain, visibleChars
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func splitEmail(email string) (local, domain string, ok bool) {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return "", "", false
	}
	return email[:at], email[at+1:], true
}
