package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/app/pipeline"
	"github.com/ohmynofan/rewards-orchestrator/internal/ban"
	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	"github.com/ohmynofan/rewards-orchestrator/internal/config"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
	"github.com/ohmynofan/rewards-orchestrator/internal/notify"
	"github.com/ohmynofan/rewards-orchestrator/internal/search"
	"github.com/ohmynofan/rewards-orchestrator/internal/storage/jobstate"
)

// failingFactory errors on every NewSession call, so pipeline.Run fails at
// its first browser.Acquire without needing a fake Session or Page.
type failingFactory struct {
	calls atomic.Int64
}

func (f *failingFactory) NewSession(ctx context.Context, req browser.SessionRequest) (browser.Session, error) {
	f.calls.Add(1)
	return nil, errors.New("no browser driver available in test")
}

// fakeHistory records entries in memory instead of hitting sqlite.
type fakeHistory struct {
	mu      sync.Mutex
	entries []model.AccountHistoryEntry
}

func (h *fakeHistory) Record(account string, entry model.AccountHistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	return nil
}

func (h *fakeHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func newTestDeps(t *testing.T, factory *failingFactory, history *fakeHistory) pipeline.Dependencies {
	t.Helper()
	store, err := jobstate.New(t.TempDir())
	if err != nil {
		t.Fatalf("jobstate.New: %v", err)
	}

	return pipeline.Dependencies{
		Factory:     factory,
		BanDetector: ban.NewDetector(),
		Disabler:    ban.Disabler{Path: t.TempDir() + "/accounts.json"},
		JobState:    store,
		History:     history,
		Notifier:    notify.NoopSink{},
		QuerySource: &search.QuerySource{},
		ProfileDirFor: func(email string, persona browser.Persona) string {
			return t.TempDir()
		},
		CookieFileFor: func(email string) string { return "" },
	}
}

func testAccounts() []model.Account {
	return []model.Account{
		{Email: "one@example.com", Enabled: true},
		{Email: "two@example.com", Enabled: true},
	}
}

func TestOrchestrator_RunAll_RunsEveryPassPerAccount(t *testing.T) {
	factory := &failingFactory{}
	history := &fakeHistory{}
	deps := newTestDeps(t, factory, history)
	cfg := config.Config{
		Clusters:  2,
		Execution: config.ExecutionConfig{Passes: 3},
	}

	orch := New(deps, testAccounts(), cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := orch.RunAll(ctx); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	if got := factory.calls.Load(); got != 6 {
		t.Fatalf("NewSession calls = %d, want 6 (2 accounts x 3 passes)", got)
	}
	if got := history.count(); got != 6 {
		t.Fatalf("history entries = %d, want 6", got)
	}
}

func TestOrchestrator_RequestStop_HaltsBeforeNextPass(t *testing.T) {
	factory := &failingFactory{}
	history := &fakeHistory{}
	deps := newTestDeps(t, factory, history)
	cfg := config.Config{
		Clusters:  1,
		Execution: config.ExecutionConfig{Passes: 5},
	}

	orch := New(deps, testAccounts()[:1], cfg, nil)
	orch.RequestStop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := orch.RunAll(ctx); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	if got := factory.calls.Load(); got != 0 {
		t.Fatalf("NewSession calls = %d, want 0 (stop requested before first pass)", got)
	}

	orch.ClearStop()
	if err := orch.RunAll(ctx); err != nil {
		t.Fatalf("RunAll after ClearStop: %v", err)
	}
	if got := factory.calls.Load(); got != 5 {
		t.Fatalf("NewSession calls after ClearStop = %d, want 5", got)
	}
}

func TestOrchestrator_Standby_HaltsAccount(t *testing.T) {
	factory := &failingFactory{}
	history := &fakeHistory{}
	deps := newTestDeps(t, factory, history)
	cfg := config.Config{
		Clusters:  1,
		Execution: config.ExecutionConfig{Passes: 5},
	}

	orch := New(deps, testAccounts()[:1], cfg, nil)
	if orch.StandbyEngaged() {
		t.Fatal("standby should start disengaged")
	}
	orch.deps.GlobalStandby.Store(true)
	if !orch.StandbyEngaged() {
		t.Fatal("StandbyEngaged should report true once the shared flag is set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := orch.RunAll(ctx); err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if got := factory.calls.Load(); got != 0 {
		t.Fatalf("NewSession calls = %d, want 0 (standby engaged before first pass)", got)
	}

	orch.ClearStandby()
	if orch.StandbyEngaged() {
		t.Fatal("ClearStandby should disengage standby")
	}
}

func TestOrchestrator_RunSingle_UnknownAccount(t *testing.T) {
	factory := &failingFactory{}
	history := &fakeHistory{}
	deps := newTestDeps(t, factory, history)
	cfg := config.Config{Clusters: 1, Execution: config.ExecutionConfig{Passes: 1}}

	orch := New(deps, testAccounts(), cfg, nil)
	_, err := orch.RunSingle(context.Background(), "ghost@example.com")
	if err == nil {
		t.Fatal("expected error for unknown account")
	}
}

func TestOrchestrator_RunSingle_RunsOnePass(t *testing.T) {
	factory := &failingFactory{}
	history := &fakeHistory{}
	deps := newTestDeps(t, factory, history)
	cfg := config.Config{Clusters: 1, Execution: config.ExecutionConfig{Passes: 7}}

	orch := New(deps, testAccounts(), cfg, nil)
	if _, err := orch.RunSingle(context.Background(), "one@example.com"); err != nil {
		t.Fatalf("RunSingle: %v", err)
	}

	if got := factory.calls.Load(); got != 1 {
		t.Fatalf("NewSession calls = %d, want 1 (RunSingle ignores the configured pass count)", got)
	}
}
