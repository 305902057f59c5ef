// Package apperrors defines the typed error taxonomy and the stable
// error-ID hashing used to aggregate recurring failures on the dashboard.
package apperrors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

// ConfigError is fatal at startup only.
type ConfigError struct{ Msg string }

func (e *ConfigError) Error() string { return "config: " + e.Msg }

// TransientBrowserError covers a page/context closed or navigation timeout
// that is recovered locally by rebuilding the browser context once.
type TransientBrowserError struct{ Msg string }

func (e *TransientBrowserError) Error() string { return "transient browser error: " + e.Msg }

// LoginRecoverableError covers a failed prompt dismissal or missing KMSI
// click, retried by re-observing the page.
type LoginRecoverableError struct{ Msg string }

func (e *LoginRecoverableError) Error() string { return "login recoverable: " + e.Msg }

// LoginFatalError covers a blocked phrase detection or 2FA required without
// a TOTP seed. No retry; surfaces a security incident.
type LoginFatalError struct{ Msg string }

func (e *LoginFatalError) Error() string { return "login fatal: " + e.Msg }

// ActivityError is a handler-level failure: the unit is recorded as failed
// and the pipeline continues with the next unit.
type ActivityError struct {
	OfferID string
	Msg     string
}

func (e *ActivityError) Error() string {
	return fmt.Sprintf("activity %s failed: %s", e.OfferID, e.Msg)
}

// NotificationError is swallowed at the call site; it never propagates.
type NotificationError struct{ Msg string }

func (e *NotificationError) Error() string { return "notification: " + e.Msg }

var (
	hexAddr   = regexp.MustCompile(`0x[0-9a-fA-F]{6,}`)
	lineNo    = regexp.MustCompile(`:\d+\b`)
	timestamp = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?`)
	pathSep   = regexp.MustCompile(`(/[\w.\-]+)+\.go`)
)

// ErrorID computes a stable 12-character hash of an error's normalised text
// and stack, with timestamps, file paths, line numbers, and hex addresses
// stripped first so that recurrences of the same underlying failure collapse
// to the same id regardless of when or where they were observed.
func ErrorID(errText, stack string) string {
	normalized := normalize(errText) + "\n" + normalize(stack)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:12]
}

func normalize(s string) string {
	s = timestamp.ReplaceAllString(s, "<ts>")
	s = hexAddr.ReplaceAllString(s, "<hex>")
	s = pathSep.ReplaceAllString(s, "<path>")
	s = lineNo.ReplaceAllString(s, ":<line>")
	return s
}
