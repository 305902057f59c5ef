package activity

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	intrand "github.com/ohmynofan/rewards-orchestrator/internal/rand"
)

var zeroPriceLabel = regexp.MustCompile(`(?i)^0\s*points?$`)

const turnstileTimeout = 60 * time.Second

var successURLPattern = regexp.MustCompile(`(?i)orderconfirmation|success|confirmed`)

// RunFreeRewards enumerates redeemable 0-point cards, redeeming each one.
// It is gated by the caller on do_free_rewards and the account having a
// phone number; this function assumes that gate has already passed.
func RunFreeRewards(ctx context.Context, deps Dependencies, page browser.Page) error {
	cards, err := page.QueryAll(ctx, `[class*="reward-card"], [class*="offer-card"]`)
	if err != nil {
		return fmt.Errorf("free-rewards: enumerate cards: %w", err)
	}

	var redeemed int
	for _, card := range cards {
		priceEl, present, err := cardPriceElement(ctx, card)
		if err != nil || !present {
			continue
		}
		text, err := priceEl.Text(ctx)
		if err != nil || !zeroPriceLabel.MatchString(strings.TrimSpace(text)) {
			continue
		}

		if err := redeemCard(ctx, deps, page, card); err != nil {
			deps.Logf("free-rewards: redeem failed: %v", err)
			continue
		}
		redeemed++
	}

	deps.Logf("free-rewards: redeemed %d zero-point cards", redeemed)
	return nil
}

func cardPriceElement(ctx context.Context, card browser.Element) (browser.Element, bool, error) {
	if text, err := card.Text(ctx); err == nil && text != "" {
		return card, true, nil
	}
	return nil, false, nil
}

func redeemCard(ctx context.Context, deps Dependencies, page browser.Page, card browser.Element) error {
	if err := card.Click(ctx); err != nil {
		return fmt.Errorf("click card: %w", err)
	}

	redeemBtn, err := waitVisible(ctx, page, `[data-bi-id="redeemButton"], button[class*="redeem"]`)
	if err != nil {
		return fmt.Errorf("redeem control not found: %w", err)
	}
	if err := redeemBtn.Click(ctx); err != nil {
		return fmt.Errorf("click redeem: %w", err)
	}

	if err := waitOutTurnstile(ctx, page); err != nil {
		return err
	}

	confirmBtn, err := waitVisible(ctx, page, `[data-bi-id="checkoutConfirm"], button[class*="confirm"]`)
	if err != nil {
		return fmt.Errorf("confirm control not found: %w", err)
	}
	if err := confirmBtn.Click(ctx); err != nil {
		return fmt.Errorf("click confirm: %w", err)
	}

	return verifyRedemptionSuccess(ctx, deps, page)
}

// waitOutTurnstile polls for a Cloudflare Turnstile widget for up to 60s,
// applying a small random scroll between polls while it waits. The mouse
// is not moved during the wait.
func waitOutTurnstile(ctx context.Context, page browser.Page) error {
	deadline := time.Now().Add(turnstileTimeout)
	for time.Now().Before(deadline) {
		_, present, err := page.Query(ctx, `iframe[src*="turnstile"], .cf-turnstile`)
		if err != nil || !present {
			return nil
		}
		_ = page.Scroll(ctx, 0, intrand.FloatIn(-40, 40))
		select {
		case <-time.After(intrand.TypingDelay(800)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// verifyRedemptionSuccess checks the URL for a success pattern or an
// explicit success-classed element. Per the flagged open question, absence
// of either is treated as success, but with a warning log directing the
// operator to review — never a hard failure.
func verifyRedemptionSuccess(ctx context.Context, deps Dependencies, page browser.Page) error {
	if successURLPattern.MatchString(page.URL()) {
		return nil
	}
	if _, present, err := page.Query(ctx, `[class*="success"]`); err == nil && present {
		return nil
	}
	deps.Logf("free-rewards: no explicit success indicator found for redemption; treating as success (flagged for operator review)")
	return nil
}
