// Package ban implements the multi-signal ban/risk detector and the
// account-disabler that acts on its verdicts.
package ban

import (
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)suspended`),
	regexp.MustCompile(`(?i)blocked`),
	regexp.MustCompile(`(?i)error.*unusual`),
	regexp.MustCompile(`(?i)security.*verify`),
	regexp.MustCompile(`(?i)account.*issue`),
}

type textRule struct {
	severity model.Severity
	pattern  *regexp.Regexp
	reason   string
}

var textRules = []textRule{
	{model.SeverityHardBan, regexp.MustCompile(`(?i)order.?blocked`), "order-blocked"},
	{model.SeverityHardBan, regexp.MustCompile(`(?i)account.{0,16}suspended`), "account-suspended"},
	{model.SeverityHardBan, regexp.MustCompile(`(?i)access.?denied`), "access-denied"},
	{model.SeveritySoftBan, regexp.MustCompile(`(?i)unusual.?activity`), "unusual-activity"},
	{model.SeverityWarning, regexp.MustCompile(`(?i)verification.?required`), "verification-required"},
	{model.SeverityWarning, regexp.MustCompile(`(?i)security.?challenge`), "security-challenge"},
	{model.SeverityWarning, regexp.MustCompile(`(?i)rate.?limited`), "rate-limited"},
	{model.SeverityWarning, regexp.MustCompile(`(?i)captcha.?required`), "captcha-required"},
	{model.SeverityWarning, regexp.MustCompile(`(?i)session.?expired`), "session-expired"},
}

// Detector fuses URL, page-text, HTTP-status, and API-response evidence
// into one severity verdict and tracks the per-account warning counter
// that escalates to soft-ban at exactly three consecutive warnings.
type Detector struct {
	mu       sync.Mutex
	warnings map[string]int
}

// NewDetector returns a ready-to-use Detector.
func NewDetector() *Detector {
	return &Detector{warnings: make(map[string]int)}
}

// FromURL classifies a navigated URL.
func FromURL(url string) model.BanDetectionResult {
	for _, p := range urlPatterns {
		if p.MatchString(url) {
			return model.BanDetectionResult{Detected: true, Severity: model.SeveritySoftBan, Reason: "url-pattern:" + p.String(), Recoverable: true}
		}
	}
	return model.BanDetectionResult{}
}

// FromPageText classifies visible page text against the labelled pattern
// table.
func FromPageText(text string) model.BanDetectionResult {
	for _, r := range textRules {
		if r.pattern.MatchString(text) {
			return model.BanDetectionResult{
				Detected:    true,
				Severity:    r.severity,
				Reason:      r.reason,
				Recoverable: r.severity != model.SeverityHardBan,
			}
		}
	}
	return model.BanDetectionResult{}
}

// FromHTTPStatus classifies a navigation's HTTP response.
func FromHTTPStatus(status int, headers http.Header) model.BanDetectionResult {
	switch {
	case status == http.StatusForbidden:
		return model.BanDetectionResult{Detected: true, Severity: model.SeverityHardBan, Reason: "http-403", Recoverable: false}
	case status == http.StatusTooManyRequests || status == http.StatusUnavailableForLegalReasons:
		return model.BanDetectionResult{Detected: true, Severity: model.SeverityWarning, Reason: "http-status", Recoverable: true}
	}
	if headers != nil {
		if headers.Get("Retry-After") != "" {
			return model.BanDetectionResult{Detected: true, Severity: model.SeverityWarning, Reason: "retry-after-header", Recoverable: true}
		}
		if headers.Get("X-Rate-Limit-Remaining") == "0" {
			return model.BanDetectionResult{Detected: true, Severity: model.SeverityWarning, Reason: "rate-limit-header", Recoverable: true}
		}
	}
	return model.BanDetectionResult{}
}

// FromAPIResponse classifies a rewards-API call; a 403 from the API is
// always hard-ban, otherwise the body text is scanned the same way as a
// page.
func FromAPIResponse(status int, body string) model.BanDetectionResult {
	if status == http.StatusForbidden {
		return model.BanDetectionResult{Detected: true, Severity: model.SeverityHardBan, Reason: "api-403", Recoverable: false}
	}
	return FromPageText(body)
}

// Fuse combines evidence from multiple signals into the worst verdict,
// then applies the per-account warning escalation rule.
func (d *Detector) Fuse(accountEmail string, signals ...model.BanDetectionResult) model.BanDetectionResult {
	worst := model.BanDetectionResult{Severity: model.SeverityNone}
	for _, s := range signals {
		if !s.Detected {
			continue
		}
		if s.Severity.Worse(worst.Severity) == s.Severity {
			worst = s
		}
	}
	if !worst.Detected {
		return worst
	}

	if worst.Severity == model.SeverityWarning {
		d.mu.Lock()
		d.warnings[accountEmail]++
		count := d.warnings[accountEmail]
		d.mu.Unlock()
		if count >= model.WarningEscalationThreshold {
			worst.Severity = model.SeveritySoftBan
			worst.Details = append(worst.Details, "escalated from 3 consecutive warnings")
		}
	} else {
		d.mu.Lock()
		d.warnings[accountEmail] = 0
		d.mu.Unlock()
	}

	return worst
}

// WarningCount returns the current consecutive-warning count for an
// account (test/inspection helper).
func (d *Detector) WarningCount(accountEmail string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.warnings[accountEmail]
}

// ResetWarnings clears the counter, used when a session starts cleanly.
func (d *Detector) ResetWarnings(accountEmail string) {
	d.mu.Lock()
	d.warnings[accountEmail] = 0
	d.mu.Unlock()
}

// ConsoleMessageTriggersCheck reports whether a console message's text
// should prompt an immediate comprehensive ban/risk check.
func ConsoleMessageTriggersCheck(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range []string{"suspended", "blocked", "unusual-activity", "access-denied"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
