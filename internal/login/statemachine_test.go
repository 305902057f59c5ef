package login

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

// scriptedPage is a configurable browser.Page stub for state-machine tests:
// URL/title are fixed per step, Query resolves from a present-selector map,
// and every click/type call is recorded instead of touching a real DOM.
type scriptedPage struct {
	urls     []string
	titles   []string
	step     int
	present  map[string]bool
	typed    map[string]string
	pressed  []string
	closed   bool
}

func (p *scriptedPage) currentIndex() int {
	if p.step >= len(p.urls) {
		return len(p.urls) - 1
	}
	return p.step
}

func (p *scriptedPage) URL() string {
	return p.urls[p.currentIndex()]
}
func (p *scriptedPage) Title(ctx context.Context) (string, error) {
	if p.titles == nil {
		return "", nil
	}
	return p.titles[p.currentIndex()], nil
}
func (p *scriptedPage) Navigate(ctx context.Context, url string) error { return nil }
func (p *scriptedPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (browser.Element, error) {
	if p.present[selector] {
		return &fakeElement{visible: true}, nil
	}
	return nil, context.DeadlineExceeded
}
func (p *scriptedPage) Query(ctx context.Context, selector string) (browser.Element, bool, error) {
	if p.present[selector] {
		return &fakeElement{visible: true}, true, nil
	}
	return nil, false, nil
}
func (p *scriptedPage) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	return nil, nil
}
func (p *scriptedPage) QueryXPath(ctx context.Context, expr string) (browser.Element, bool, error) {
	return nil, false, nil
}
func (p *scriptedPage) Eval(ctx context.Context, script string, out any) error { return nil }
func (p *scriptedPage) PressKey(ctx context.Context, key string) error {
	p.pressed = append(p.pressed, key)
	p.step++
	return nil
}
func (p *scriptedPage) MouseMove(ctx context.Context, x, y float64) error  { return nil }
func (p *scriptedPage) MouseClick(ctx context.Context, x, y float64) error { return nil }
func (p *scriptedPage) Scroll(ctx context.Context, dx, dy float64) error   { return nil }
func (p *scriptedPage) NewTab(ctx context.Context) (browser.Page, error)  { return nil, nil }
func (p *scriptedPage) Close(ctx context.Context) error                   { return nil }
func (p *scriptedPage) Closed() bool                                      { return p.closed }
func (p *scriptedPage) LastResponseStatus() (int, http.Header)            { return 0, nil }

func TestMachineRun_ClosedPageIsTransientError(t *testing.T) {
	m := Machine{Classifier: testClassifier()}
	page := &scriptedPage{urls: []string{"https://rewards.example.com/"}, closed: true}
	state, err := m.Run(context.Background(), page)
	if state != model.LoginError || err == nil {
		t.Fatalf("state=%v err=%v, want LoginError with a transient error", state, err)
	}
}

func TestMachineRun_AlreadyLoggedInReturnsImmediately(t *testing.T) {
	m := Machine{Classifier: testClassifier()}
	page := &scriptedPage{
		urls:    []string{"https://rewards.example.com/dashboard"},
		present: map[string]bool{"#id_n": true},
	}
	state, err := m.Run(context.Background(), page)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state != model.LoginLoggedIn {
		t.Fatalf("state = %v, want LoginLoggedIn", state)
	}
}

func TestHandleTwoFactor_NoTOTPSeedIsFatal(t *testing.T) {
	m := Machine{Classifier: testClassifier(), Account: model.Account{Email: "alice@example.com"}}
	page := &scriptedPage{urls: []string{"https://login.example.com/"}}
	err := m.handleTwoFactor(context.Background(), page)
	if err == nil {
		t.Fatal("expected an error when the account has no TOTP seed")
	}
}

func TestHandleTwoFactor_ValidSeedSubmitsCode(t *testing.T) {
	m := Machine{
		Classifier: testClassifier(),
		Account:    model.Account{Email: "alice@example.com", TOTPSeed: "JBSWY3DPEHPK3PXP"},
	}
	page := &scriptedPage{
		urls:    []string{"https://login.example.com/"},
		present: map[string]bool{DefaultSelectors().OneTimeCode: true},
	}
	if err := m.handleTwoFactor(context.Background(), page); err != nil {
		t.Fatalf("handleTwoFactor: %v", err)
	}
	if len(page.pressed) != 1 || page.pressed[0] != "Enter" {
		t.Fatalf("pressed = %v, want a single Enter keypress", page.pressed)
	}
}

func TestHandlePasskey_DismissesViaTitleHeuristic(t *testing.T) {
	m := Machine{Logf: func(string, ...any) {}}
	page := &scriptedPage{
		urls:    []string{"https://login.example.com/"},
		present: map[string]bool{`[data-testid="secondaryButton"]`: true},
	}
	page.titles = []string{""}
	// fakeElement.Text always returns "", so dismissBySecondaryButtonText's
	// phrase match needs a page-text override; use the title heuristic path
	// instead by matching the passkey title pattern.
	page.titles[0] = "Use a passkey instead"
	if err := m.handlePasskey(context.Background(), page); err != nil {
		t.Fatalf("handlePasskey: %v", err)
	}
}

func TestTryClickKMSI_ClicksWhenPromptVisible(t *testing.T) {
	var logged []string
	m := Machine{Logf: func(format string, args ...any) { logged = append(logged, format) }}
	page := &scriptedPage{
		urls:    []string{"https://login.example.com/"},
		present: map[string]bool{kmsiPrimaryButton: true},
	}
	m.tryClickKMSI(context.Background(), page)
	if len(logged) != 1 || logged[0] != "login: dismissed keep-me-signed-in prompt" {
		t.Fatalf("logged = %v, want the keep-me-signed-in click to be logged", logged)
	}
}
