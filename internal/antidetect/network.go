// Package antidetect implements the network header-ordering policy and the
// in-page init script. The two surfaces are independent: network.go governs
// the single unified request interceptor; script.go is the self-contained
// init-script asset templated with session-specific values.
package antidetect

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	intrand "github.com/ohmynofan/rewards-orchestrator/internal/rand"
)

// ResourceKind classifies a request for the purposes of header rewriting
// and throttling.
type ResourceKind int

const (
	ResourceDocument ResourceKind = iota
	ResourceXHR
	ResourceFetch
	ResourceScript
	ResourceStylesheet
	ResourceImage
	ResourceMedia
	ResourceFont
)

func passesThrough(kind ResourceKind) bool {
	return kind == ResourceImage || kind == ResourceMedia || kind == ResourceFont
}

var weightedAcceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-US,en;q=0.9,es;q=0.8",
	"en-GB,en;q=0.9,en-US;q=0.8",
	"en-US,en;q=0.8,fr;q=0.6",
}

// HeaderPolicy rewrites request headers in a fixed order for
// document/XHR/fetch/script/stylesheet requests only.
type HeaderPolicy struct {
	Fingerprint browser.Fingerprint
}

// Apply sets headers on req in the order the contract mandates. For
// images/media/fonts it returns existing unchanged.
func (p HeaderPolicy) Apply(kind ResourceKind, referer string, existing http.Header) http.Header {
	if passesThrough(kind) {
		return existing
	}

	h := make(http.Header, 12)
	hints := p.Fingerprint.Hints

	h.Set("sec-ch-ua", hints.Brands)
	h.Set("sec-ch-ua-mobile", boolHint(hints.Mobile))
	h.Set("sec-ch-ua-platform", hints.Platform)

	if kind == ResourceDocument {
		h.Set("upgrade-insecure-requests", "1")
	}

	h.Set("user-agent", p.Fingerprint.UserAgent)
	h.Set("accept", acceptFor(kind))

	dest, mode, site := secFetchFor(kind)
	h.Set("sec-fetch-dest", dest)
	h.Set("sec-fetch-mode", mode)
	h.Set("sec-fetch-site", site)

	h.Set("accept-encoding", "gzip, deflate, br, zstd")
	h.Set("accept-language", intrand.Pick(weightedAcceptLanguages))

	if referer != "" {
		h.Set("referer", referer)
	}

	for k, vals := range existing {
		lk := strings.ToLower(k)
		if h.Get(lk) == "" {
			for _, v := range vals {
				h.Add(k, v)
			}
		}
	}

	return h
}

func boolHint(b bool) string {
	if b {
		return "?1"
	}
	return "?0"
}

func acceptFor(kind ResourceKind) string {
	switch kind {
	case ResourceDocument:
		return "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	case ResourceXHR, ResourceFetch:
		return "application/json, text/plain, */*"
	case ResourceScript:
		return "*/*"
	case ResourceStylesheet:
		return "text/css,*/*;q=0.1"
	default:
		return "*/*"
	}
}

func secFetchFor(kind ResourceKind) (dest, mode, site string) {
	switch kind {
	case ResourceDocument:
		return "document", "navigate", "same-origin"
	case ResourceXHR, ResourceFetch:
		return "empty", "cors", "same-site"
	case ResourceScript:
		return "script", "no-cors", "same-origin"
	case ResourceStylesheet:
		return "style", "no-cors", "same-origin"
	default:
		return "empty", "no-cors", "same-origin"
	}
}

// Throttler enforces the global minimum inter-request gap for non-critical
// resources (10ms + small jitter), never delaying critical ones.
type Throttler struct {
	limiter *rate.Limiter
}

// NewThrottler builds a Throttler with a 10ms base gap between non-critical
// requests.
func NewThrottler() *Throttler {
	return &Throttler{limiter: rate.NewLimiter(rate.Every(10*time.Millisecond), 1)}
}

// Wait blocks until the request may proceed. Critical requests (navigation,
// auth, API calls the pipeline is actively waiting on) bypass the limiter
// entirely.
func (t *Throttler) Wait(ctx context.Context, critical bool) error {
	if critical {
		return nil
	}
	jitter := time.Duration(intrand.FloatIn(0, 4)) * time.Millisecond
	if jitter > 0 {
		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return t.limiter.Wait(ctx)
}
