package pipeline

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/apperrors"
	"github.com/ohmynofan/rewards-orchestrator/internal/ban"
	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

// failingFactory errors on every NewSession call.
type failingFactory struct{}

func (failingFactory) NewSession(ctx context.Context, req browser.SessionRequest) (browser.Session, error) {
	return nil, errors.New("no driver in test")
}

// fakeHistory records entries in memory.
type fakeHistory struct {
	entries []model.AccountHistoryEntry
}

func (h *fakeHistory) Record(account string, entry model.AccountHistoryEntry) error {
	h.entries = append(h.entries, entry)
	return nil
}

// fakePage implements browser.Page with only URL/Eval behaving meaningfully;
// every other method is an unused no-op stub.
type fakePage struct {
	url        string
	bodyText   string
	respStatus int
}

func (p *fakePage) URL() string                                        { return p.url }
func (p *fakePage) Title(ctx context.Context) (string, error)          { return "", nil }
func (p *fakePage) Navigate(ctx context.Context, url string) error     { return nil }
func (p *fakePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (browser.Element, error) {
	return nil, errors.New("not found")
}
func (p *fakePage) Query(ctx context.Context, selector string) (browser.Element, bool, error) {
	return nil, false, nil
}
func (p *fakePage) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	return nil, nil
}
func (p *fakePage) QueryXPath(ctx context.Context, expr string) (browser.Element, bool, error) {
	return nil, false, nil
}
func (p *fakePage) Eval(ctx context.Context, script string, out any) error {
	if ptr, ok := out.(*string); ok {
		*ptr = p.bodyText
	}
	return nil
}
func (p *fakePage) PressKey(ctx context.Context, key string) error        { return nil }
func (p *fakePage) MouseMove(ctx context.Context, x, y float64) error     { return nil }
func (p *fakePage) MouseClick(ctx context.Context, x, y float64) error    { return nil }
func (p *fakePage) Scroll(ctx context.Context, dx, dy float64) error      { return nil }
func (p *fakePage) NewTab(ctx context.Context) (browser.Page, error)     { return nil, errors.New("unsupported") }
func (p *fakePage) Close(ctx context.Context) error                      { return nil }
func (p *fakePage) Closed() bool                                         { return false }
func (p *fakePage) LastResponseStatus() (int, http.Header)               { return p.respStatus, nil }

func newTestDeps(history *fakeHistory) Dependencies {
	return Dependencies{
		Factory:     failingFactory{},
		BanDetector: ban.NewDetector(),
		History:     history,
		ProfileDirFor: func(email string, persona browser.Persona) string {
			return ""
		},
		CookieFileFor: func(email string) string { return "" },
	}
}

func TestRun_DesktopAcquireFailure_RecordsFailedEntry(t *testing.T) {
	history := &fakeHistory{}
	deps := newTestDeps(history)
	account := model.Account{Email: "alice@example.com", Enabled: true}
	session := &model.Session{Email: account.Email}

	outcome, err := Run(context.Background(), deps, account, session)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Disabled || outcome.Standby {
		t.Fatalf("outcome = %+v, want Disabled=false Standby=false", outcome)
	}
	if len(history.entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history.entries))
	}
	entry := history.entries[0]
	if entry.Success {
		t.Fatal("entry.Success = true, want false (session acquire failed)")
	}
	if entry.Failed != 1 {
		t.Fatalf("entry.Failed = %d, want 1", entry.Failed)
	}
	if len(entry.Errors) != 1 {
		t.Fatalf("entry.Errors = %v, want 1 entry", entry.Errors)
	}
}

func TestEngageStandby_SetsOutcomeAndSharedFlag(t *testing.T) {
	shared := &atomic.Bool{}
	deps := Dependencies{GlobalStandby: shared}
	outcome := &Outcome{}

	engageStandby(deps, outcome)

	if !outcome.Standby {
		t.Fatal("outcome.Standby not set")
	}
	if !shared.Load() {
		t.Fatal("shared GlobalStandby flag not set")
	}
}

func TestHandleBlocked_HardBanDisablesAccount(t *testing.T) {
	dir := t.TempDir()
	accountsPath := filepath.Join(dir, "accounts.json")
	raw := `[
  {
    "email": "alice@example.com",
    "enabled": true
  }
]`
	if err := os.WriteFile(accountsPath, []byte(raw), 0o644); err != nil {
		t.Fatalf("write accounts file: %v", err)
	}

	deps := Dependencies{
		BanDetector: ban.NewDetector(),
		Disabler:    ban.Disabler{Path: accountsPath},
	}
	account := model.Account{Email: "alice@example.com", Enabled: true}
	page := &fakePage{url: "https://rewards.example.com/", bodyText: "Error: account suspended due to a policy violation."}
	outcome := &Outcome{}

	err := handleBlocked(context.Background(), deps, account, page, nil, outcome)
	if err == nil {
		t.Fatal("expected a fatal error")
	}
	var fatal *apperrors.LoginFatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("err = %v, want *apperrors.LoginFatalError", err)
	}
	if !outcome.Disabled {
		t.Fatal("outcome.Disabled not set for a hard-ban verdict")
	}

	updated, err := os.ReadFile(accountsPath)
	if err != nil {
		t.Fatalf("read updated accounts file: %v", err)
	}
	if !containsEnabledFalse(string(updated)) {
		t.Fatalf("accounts file not updated to enabled=false:\n%s", updated)
	}
}

func TestHandleBlocked_WarningEngagesStandbyWithoutDisabling(t *testing.T) {
	deps := Dependencies{
		BanDetector: ban.NewDetector(),
		Disabler:    ban.Disabler{Path: "/nonexistent/should-not-be-touched.json"},
	}
	account := model.Account{Email: "bob@example.com", Enabled: true}
	page := &fakePage{url: "https://rewards.example.com/", bodyText: "Sorry, but we can't sign you in right now."}
	outcome := &Outcome{}

	err := handleBlocked(context.Background(), deps, account, page, nil, outcome)
	if err == nil {
		t.Fatal("expected a fatal error")
	}
	if outcome.Disabled {
		t.Fatal("outcome.Disabled should not be set for a non-hard-ban verdict")
	}
	if !outcome.Standby {
		t.Fatal("outcome.Standby should be set for a sign-in-blocked verdict")
	}
}

func TestClassifyLoginFailure_RecoveryMismatchEngagesStandby(t *testing.T) {
	shared := &atomic.Bool{}
	deps := Dependencies{GlobalStandby: shared}
	account := model.Account{Email: "alice@example.com"}
	outcome := &Outcome{}

	err := classifyLoginFailure(&apperrors.LoginFatalError{Msg: "recovery-mismatch: changed"}, deps, account, nil, outcome)
	if err == nil {
		t.Fatal("expected the original error back")
	}
	if !outcome.Standby || !shared.Load() {
		t.Fatal("expected standby to be engaged for a recovery-mismatch failure")
	}
}

func TestClassifyLoginFailure_OtherFatalDoesNotEngageStandby(t *testing.T) {
	deps := Dependencies{}
	account := model.Account{Email: "alice@example.com"}
	outcome := &Outcome{}

	err := classifyLoginFailure(&apperrors.LoginFatalError{Msg: "sign-in-blocked: account-locked"}, deps, account, nil, outcome)
	if err == nil {
		t.Fatal("expected the original error back")
	}
	if outcome.Standby {
		t.Fatal("non-recovery-mismatch fatal errors must not engage standby")
	}
}

func TestClassifyLoginFailure_NonFatalPassesThrough(t *testing.T) {
	deps := Dependencies{}
	account := model.Account{Email: "alice@example.com"}
	outcome := &Outcome{}

	plain := errors.New("transient network error")
	err := classifyLoginFailure(plain, deps, account, nil, outcome)
	if !errors.Is(err, plain) {
		t.Fatalf("err = %v, want the original plain error unchanged", err)
	}
}

func containsEnabledFalse(s string) bool {
	return len(s) > 0 && (indexOf(s, `"enabled": false`) >= 0 || indexOf(s, `"enabled":false`) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
