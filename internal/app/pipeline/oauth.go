package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ohmynofan/rewards-orchestrator/internal/apperrors"
	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
)

var accessTokenPattern = regexp.MustCompile(`[#&?]access_token=([^&]+)`)

// acquireOAuthToken navigates the mobile authorize flow and extracts the
// access token from the redirect URL's fragment or query string, retrying
// once with a fresh session on a "target closed" transient error.
func acquireOAuthToken(ctx context.Context, factory browser.Factory, req browser.SessionRequest, authorizeURL string) (string, error) {
	token, err := tryAcquireOAuthToken(ctx, factory, req, authorizeURL)
	if err == nil {
		return token, nil
	}
	if !isTargetClosed(err) {
		return "", err
	}
	return tryAcquireOAuthToken(ctx, factory, req, authorizeURL)
}

func tryAcquireOAuthToken(ctx context.Context, factory browser.Factory, req browser.SessionRequest, authorizeURL string) (token string, err error) {
	err = browser.Acquire(ctx, factory, req, func(sess browser.Session) error {
		page := sess.Page()
		if nerr := page.Navigate(ctx, authorizeURL); nerr != nil {
			if page.Closed() {
				return &apperrors.TransientBrowserError{Msg: "oauth: " + nerr.Error()}
			}
			return fmt.Errorf("pipeline: oauth navigate: %w", nerr)
		}
		if page.Closed() {
			return &apperrors.TransientBrowserError{Msg: "oauth: target closed after navigate"}
		}
		extracted, ferr := extractAccessToken(page.URL())
		if ferr != nil {
			return ferr
		}
		token = extracted
		return nil
	})
	return token, err
}

func extractAccessToken(redirectURL string) (string, error) {
	m := accessTokenPattern.FindStringSubmatch(redirectURL)
	if m == nil {
		return "", fmt.Errorf("pipeline: oauth: no access_token in redirect %q", redirectURL)
	}
	decoded, err := url.QueryUnescape(m[1])
	if err != nil {
		return "", fmt.Errorf("pipeline: oauth: decode access_token: %w", err)
	}
	return decoded, nil
}

// tokenExpiry reads the "exp" claim without verifying the signature — the
// token was just minted by the portal's own authorize flow over the
// session's cookies, so there is nothing local to verify it against; this
// only guards against acting on an already-expired token (clock skew,
// cached redirect).
func tokenExpiry(accessToken string) (hasExpiry bool, expired bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return false, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, false
	}
	return true, !exp.Time.After(nowFunc())
}

func isTargetClosed(err error) bool {
	var transient *apperrors.TransientBrowserError
	if te, ok := err.(*apperrors.TransientBrowserError); ok {
		transient = te
	}
	return transient != nil && strings.Contains(transient.Msg, "target closed")
}
