package login

import (
	"context"
	"regexp"

	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
)

var skipPhrasePattern = regexp.MustCompile(`(?i)skip|later|not now|cancel`)

// dismissBySecondaryButtonText tries the element with data-testid
// secondaryButton whose text matches a skip/later/not-now/cancel phrase —
// first in the ordered strategy list.
func dismissBySecondaryButtonText(ctx context.Context, page browser.Page) (string, bool) {
	el, present, err := page.Query(ctx, `[data-testid="secondaryButton"]`)
	if err != nil || !present {
		return "", false
	}
	text, err := el.Text(ctx)
	if err != nil || !skipPhrasePattern.MatchString(text) {
		return "", false
	}
	if err := el.Click(ctx); err != nil {
		return "", false
	}
	return "secondary button text", true
}

// dismissByBiometricVideoHeuristic: if a biometric/video element is present,
// fall back to clicking the secondary button regardless of its text.
func dismissByBiometricVideoHeuristic(ctx context.Context, page browser.Page) (string, bool) {
	if _, present, err := page.Query(ctx, `video, [data-testid="biometricVideo"]`); err != nil || !present {
		return "", false
	}
	el, present, err := page.Query(ctx, `[data-testid="secondaryButton"]`)
	if err != nil || !present {
		return "", false
	}
	if err := el.Click(ctx); err != nil {
		return "", false
	}
	return "biometric video heuristic", true
}

// dismissByTitleHeuristic: if the title matches the passkey pattern, fall
// back to clicking the secondary button.
func dismissByTitleHeuristic(ctx context.Context, page browser.Page) (string, bool) {
	title, err := page.Title(ctx)
	if err != nil || !passkeyTitlePattern.MatchString(title) {
		return "", false
	}
	el, present, err := page.Query(ctx, `[data-testid="secondaryButton"]`)
	if err != nil || !present {
		return "", false
	}
	if err := el.Click(ctx); err != nil {
		return "", false
	}
	return "title heuristic", true
}

var xpathSkipExpr = `//*[contains(translate(text(), 'SKIPLATERNOWCANCEL', 'skiplaternowcancel'), 'skip') or contains(text(), 'later') or contains(text(), 'not now') or contains(text(), 'Cancel')]`

// dismissByXPathTextMatch scans the document for any element whose text
// matches the skip phrase set via XPath.
func dismissByXPathTextMatch(ctx context.Context, page browser.Page) (string, bool) {
	el, present, err := page.QueryXPath(ctx, xpathSkipExpr)
	if err != nil || !present {
		return "", false
	}
	if err := el.Click(ctx); err != nil {
		return "", false
	}
	return "xpath text match", true
}

// dismissByWindowsHelloSelectors tries the selectors specific to the
// Windows Hello variant of the passkey dialog.
func dismissByWindowsHelloSelectors(ctx context.Context, page browser.Page) (string, bool) {
	for _, sel := range []string{`#cancelButton`, `[data-testid="windowsHelloCancel"]`} {
		if el, present, err := page.Query(ctx, sel); err == nil && present {
			if err := el.Click(ctx); err == nil {
				return "windows-hello selector " + sel, true
			}
		}
	}
	return "", false
}

// dismissByCloseButton is the last-resort strategy: any generic close
// control, then pressing Escape, then removing the matching dialog node.
func dismissByCloseButton(ctx context.Context, page browser.Page) (string, bool) {
	if el, present, err := page.Query(ctx, `button[aria-label="Close"], .close-button`); err == nil && present {
		if err := el.Click(ctx); err == nil {
			return "close button", true
		}
	}
	if err := page.PressKey(ctx, "Escape"); err == nil {
		if _, present, qerr := page.Query(ctx, `[role="dialog"]`); qerr == nil && !present {
			return "escape key", true
		}
	}
	if removed, err := removeDialogNode(ctx, page); err == nil && removed {
		return "dom-level dialog removal", true
	}
	return "", false
}

func removeDialogNode(ctx context.Context, page browser.Page) (bool, error) {
	var removed bool
	err := page.Eval(ctx, `(() => {
		const d = document.querySelector('[role="dialog"]');
		if (d) { d.remove(); return true; }
		return false;
	})()`, &removed)
	return removed, err
}
