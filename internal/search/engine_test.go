package search

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

// fakeSearchPage is a minimal browser.Page stub; Run only calls Navigate and
// Closed.
type fakeSearchPage struct {
	navigateErr error
	closed      bool
}

func (p *fakeSearchPage) URL() string                               { return "" }
func (p *fakeSearchPage) Title(ctx context.Context) (string, error) { return "", nil }
func (p *fakeSearchPage) Navigate(ctx context.Context, url string) error {
	return p.navigateErr
}
func (p *fakeSearchPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (browser.Element, error) {
	return nil, nil
}
func (p *fakeSearchPage) Query(ctx context.Context, selector string) (browser.Element, bool, error) {
	return nil, false, nil
}
func (p *fakeSearchPage) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	return nil, nil
}
func (p *fakeSearchPage) QueryXPath(ctx context.Context, expr string) (browser.Element, bool, error) {
	return nil, false, nil
}
func (p *fakeSearchPage) Eval(ctx context.Context, script string, out any) error { return nil }
func (p *fakeSearchPage) PressKey(ctx context.Context, key string) error         { return nil }
func (p *fakeSearchPage) MouseMove(ctx context.Context, x, y float64) error      { return nil }
func (p *fakeSearchPage) MouseClick(ctx context.Context, x, y float64) error     { return nil }
func (p *fakeSearchPage) Scroll(ctx context.Context, dx, dy float64) error       { return nil }
func (p *fakeSearchPage) NewTab(ctx context.Context) (browser.Page, error)       { return nil, nil }
func (p *fakeSearchPage) Close(ctx context.Context) error                       { return nil }
func (p *fakeSearchPage) Closed() bool                                          { return p.closed }
func (p *fakeSearchPage) LastResponseStatus() (int, http.Header)                { return 0, nil }

func testDeps(remaining func() int) Dependencies {
	calls := 0
	return Dependencies{
		Source:         &QuerySource{Locale: "en-US"},
		SearchEndpoint: func(q string) string { return "https://example.com/search?q=" + q },
		FetchDashboard: func(ctx context.Context, page browser.Page) (model.DashboardData, error) {
			calls++
			return model.DashboardData{
				Counters: map[string][]model.CounterProgress{
					"pcSearch": {{PointProgressMax: remaining(), PointProgress: 0}},
				},
			}, nil
		},
		SearchDelayMin: time.Millisecond,
		SearchDelayMax: 2 * time.Millisecond,
		RefetchEvery:   1,
		StallLimit:     2,
	}
}

func TestRun_ZeroRemainingCompletesImmediately(t *testing.T) {
	deps := testDeps(func() int { return 0 })
	result, err := Run(context.Background(), deps, &fakeSearchPage{}, browser.PersonaDesktop, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Completed {
		t.Fatal("expected Completed=true when remainingPoints is 0")
	}
}

func TestRun_CompletesWhenCounterReachesZero(t *testing.T) {
	remaining := 20
	deps := testDeps(func() int {
		remaining -= 20
		if remaining < 0 {
			remaining = 0
		}
		return remaining
	})
	result, err := Run(context.Background(), deps, &fakeSearchPage{}, browser.PersonaDesktop, 20)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Completed {
		t.Fatalf("result = %+v, want Completed", result)
	}
	if result.PointsGained != 20 {
		t.Fatalf("PointsGained = %d, want 20", result.PointsGained)
	}
}

func TestRun_StallsAfterRepeatedNoProgress(t *testing.T) {
	deps := testDeps(func() int { return 100 })
	_, err := Run(context.Background(), deps, &fakeSearchPage{}, browser.PersonaDesktop, 100)
	if err == nil {
		t.Fatal("expected an error once the stall limit is reached")
	}
}

func TestRun_ClosedPageDuringNavigateIsTransient(t *testing.T) {
	deps := testDeps(func() int { return 100 })
	page := &fakeSearchPage{navigateErr: errors.New("target closed"), closed: true}
	_, err := Run(context.Background(), deps, page, browser.PersonaDesktop, 100)
	if err == nil {
		t.Fatal("expected a transient browser error")
	}
}

func TestRetryMobile_ReturnsFirstCompletedAttempt(t *testing.T) {
	attempts := 0
	result, err := RetryMobile(context.Background(), 3, func(ctx context.Context) (Result, error) {
		attempts++
		if attempts == 2 {
			return Result{Completed: true, PointsGained: 10}, nil
		}
		return Result{}, errors.New("not done yet")
	})
	if err != nil {
		t.Fatalf("RetryMobile: %v", err)
	}
	if !result.Completed || attempts != 2 {
		t.Fatalf("result = %+v, attempts = %d, want completed after 2 tries", result, attempts)
	}
}

func TestRetryMobile_GivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	_, err := RetryMobile(context.Background(), 2, func(ctx context.Context) (Result, error) {
		attempts++
		return Result{}, errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (initial + 2 retries)", attempts)
	}
}
