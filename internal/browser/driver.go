// Package browser defines the narrow collaborator interfaces the rest of
// the orchestrator drives. The underlying browser driver is treated as an
// external collaborator; nothing in the retrieved reference corpus wraps a
// concrete automation engine, so this package only describes the contract a
// concrete driver (chromedp, playwright, rod, ...) would satisfy. The
// Session Factory (session.go) builds Sessions against this interface.
package browser

import (
	"context"
	"net/http"
	"time"
)

// Persona distinguishes the desktop and mobile flows.
type Persona int

const (
	PersonaDesktop Persona = iota
	PersonaMobile
)

func (p Persona) String() string {
	if p == PersonaMobile {
		return "mobile"
	}
	return "desktop"
}

// Viewport is a screen/window size bundle.
type Viewport struct {
	Width  int
	Height int
	DPR    float64
}

// ClientHints mirrors the sec-ch-ua* family the network layer must keep
// consistent with the chosen user agent.
type ClientHints struct {
	Brands     string
	Platform   string
	Mobile     bool
	UAFullVers string
}

// Fingerprint is everything the Session Factory decided for one session:
// persona-consistent viewport, UA, client hints, and locale/timezone.
type Fingerprint struct {
	Persona     Persona
	Viewport    Viewport
	UserAgent   string
	Hints       ClientHints
	Locale      string
	Timezone    string
	WebGLVendor string
	WebGLRender string
}

// Element is an opaque handle to a located DOM node.
type Element interface {
	Click(ctx context.Context) error
	Type(ctx context.Context, text string, perCharDelay func(i int) time.Duration) error
	Text(ctx context.Context) (string, error)
	Attr(ctx context.Context, name string) (string, bool, error)
	Visible(ctx context.Context) (bool, error)
}

// Page is one browser tab/document.
type Page interface {
	URL() string
	Title(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	Query(ctx context.Context, selector string) (Element, bool, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	QueryXPath(ctx context.Context, expr string) (Element, bool, error)
	Eval(ctx context.Context, script string, out any) error
	PressKey(ctx context.Context, key string) error
	MouseMove(ctx context.Context, x, y float64) error
	MouseClick(ctx context.Context, x, y float64) error
	Scroll(ctx context.Context, dx, dy float64) error
	NewTab(ctx context.Context) (Page, error)
	Close(ctx context.Context) error
	// Closed reports whether the underlying target was torn down out of
	// band (the driver's "target closed" condition).
	Closed() bool
	// LastResponseStatus returns the HTTP status and headers of the page's
	// most recent top-level navigation response, or (0, nil) if none has
	// completed yet. A concrete driver fills this in from the navigation's
	// response event; it gives the ban/risk monitors a navigation-level
	// signal to fuse alongside URL and page-text evidence.
	LastResponseStatus() (int, http.Header)
}

// Session is one browser context bound to an account + persona, with all
// anti-detection interceptors installed.
type Session interface {
	Page() Page
	Fingerprint() Fingerprint
	// Release tears the context down. Always safe to call more than once.
	Release(ctx context.Context) error
}

// Factory builds Sessions. A concrete implementation wraps whatever browser
// driver is wired at the process boundary; this package only consumes the
// interface.
type Factory interface {
	NewSession(ctx context.Context, req SessionRequest) (Session, error)
}

// SessionRequest is the Session Factory's input.
type SessionRequest struct {
	AccountEmail    string
	ProfileDir      string
	Persona         Persona
	ProxyURL        string
	Locale          string
	Timezone        string
	AntiDetectLevel AntiDetectLevel
}

// AntiDetectLevel selects between the full and "medium" init-script
// variants.
type AntiDetectLevel int

const (
	AntiDetectFull AntiDetectLevel = iota
	AntiDetectMedium
)
