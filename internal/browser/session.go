package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	intrand "github.com/ohmynofan/rewards-orchestrator/internal/rand"
)

// desktopViewports are weighted toward 1080p.
var desktopViewports = []Viewport{
	{Width: 1920, Height: 1080, DPR: 1.0},
	{Width: 1920, Height: 1080, DPR: 1.0},
	{Width: 1920, Height: 1080, DPR: 1.0},
	{Width: 1366, Height: 768, DPR: 1.0},
	{Width: 2560, Height: 1440, DPR: 1.25},
	{Width: 1536, Height: 864, DPR: 1.25},
}

// mobileViewports are device-class-specific.
var mobileViewports = []Viewport{
	{Width: 390, Height: 844, DPR: 3},
	{Width: 393, Height: 851, DPR: 2.75},
	{Width: 412, Height: 915, DPR: 2.625},
	{Width: 360, Height: 800, DPR: 3},
}

var desktopDPRChoices = []float64{1.0, 1.25}
var mobileDPRChoices = []float64{2, 3}

// PickViewport draws a weighted-realistic viewport for persona, with width
// variance <= +-10px. Heights are taken from the pool above as-is; no
// browser-chrome height is subtracted.
func PickViewport(persona Persona) Viewport {
	var v Viewport
	if persona == PersonaMobile {
		v = intrand.Pick(mobileViewports)
		v.DPR = intrand.Pick(mobileDPRChoices)
	} else {
		v = intrand.Pick(desktopViewports)
		v.DPR = intrand.Pick(desktopDPRChoices)
	}
	v.Width += intrand.IntIn(-10, 10)
	return v
}

// EdgeVersionCache is a UA-version cache that runs one fetch at a time. A
// concrete fetcher supplies the network call, made on every Version call;
// the cached value has no expiry and is served (or, before any success, the
// static fallback) only when that fetch fails.
type EdgeVersionCache struct {
	fetch    func(ctx context.Context) (string, error)
	fallback string

	mu      sync.Mutex
	cached  string
	haveOne bool
}

// NewEdgeVersionCache wires fetch (the network call) and fallback (the
// static version used when fetch has never succeeded).
func NewEdgeVersionCache(fetch func(ctx context.Context) (string, error), fallback string) *EdgeVersionCache {
	return &EdgeVersionCache{fetch: fetch, fallback: fallback}
}

// Version fetches the stable version, refreshing at most once concurrently
// (callers are serialised on a mutex) and falling back to the last-good
// value or the static fallback on fetch failure.
func (c *EdgeVersionCache) Version(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, err := c.fetch(ctx)
	if err == nil && v != "" {
		c.cached = v
		c.haveOne = true
		return v
	}
	if c.haveOne {
		return c.cached
	}
	return c.fallback
}

// UserAgentFor builds a persona-consistent UA string from an Edge/Chromium
// version, covering both the desktop and mobile Edge-on-Chromium shapes.
func UserAgentFor(persona Persona, chromiumVersion string) string {
	if persona == PersonaMobile {
		return fmt.Sprintf("Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Mobile Safari/537.36 EdgA/%s", chromiumVersion, chromiumVersion)
	}
	return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36 Edg/%s", chromiumVersion, chromiumVersion)
}

// ClientHintsFor builds client hints internally consistent with persona and
// the resolved Chromium version.
func ClientHintsFor(persona Persona, chromiumVersion string) ClientHints {
	major := chromiumVersion
	if i := strings.IndexByte(chromiumVersion, '.'); i >= 0 {
		major = chromiumVersion[:i]
	}
	return ClientHints{
		Brands:     fmt.Sprintf(`"Microsoft Edge";v="%s", "Not?A_Brand";v="8", "Chromium";v="%s"`, major, major),
		Platform:   platformFor(persona),
		Mobile:     persona == PersonaMobile,
		UAFullVers: chromiumVersion,
	}
}

func platformFor(persona Persona) string {
	if persona == PersonaMobile {
		return `"Android"`
	}
	return `"Windows"`
}

// Acquire wraps factory.NewSession with scoped-acquisition semantics: fn
// always runs against a live session, and the session is released on every
// exit path, including a panic unwinding through fn.
func Acquire(ctx context.Context, factory Factory, req SessionRequest, fn func(Session) error) (err error) {
	sess, err := factory.NewSession(ctx, req)
	if err != nil {
		return fmt.Errorf("browser: acquire session: %w", err)
	}
	defer func() {
		releaseErr := sess.Release(ctx)
		if err == nil {
			err = releaseErr
		}
	}()
	return fn(sess)
}

// Rebuild closes sess (best effort) and acquires a fresh session from
// factory with the same request, implementing the "ask the factory for a
// fresh context once" recovery.
func Rebuild(ctx context.Context, factory Factory, req SessionRequest, old Session) (Session, error) {
	if old != nil {
		_ = old.Release(ctx)
	}
	return factory.NewSession(ctx, req)
}
