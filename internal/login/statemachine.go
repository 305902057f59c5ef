// Package login drives a browser.Page from LoginUnknown to a terminal
// LoginState via repeated observe-then-act cycles. Transitions are
// observation-driven: after every action the Classifier re-reads the page
// and the machine picks the next action from the new state alone.
package login

import (
	"context"
	"fmt"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/apperrors"
	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
	intrand "github.com/ohmynofan/rewards-orchestrator/internal/rand"
)

// dismissStrategy attempts to close a passkey/biometric prompt; see
// handlePasskey below for the ordered strategy list this type parameterises.
type dismissStrategy func(ctx context.Context, page browser.Page) (reason string, ok bool)

// Machine drives one login attempt to a terminal state.
type Machine struct {
	Classifier Classifier
	Account    model.Account
	Logf       func(format string, args ...any)
}

// smart wait windows: short initial poll extended once.
const (
	smartWaitShort = 300 * time.Millisecond
	smartWaitLong  = 4 * time.Second
	pollInterval   = 150 * time.Millisecond
)

// Run advances page to LoggedIn, Blocked, or Error, bounded at
// model.MaxLoginTransitions transitions.
func (m Machine) Run(ctx context.Context, page browser.Page) (model.LoginState, error) {
	if m.Logf == nil {
		m.Logf = func(string, ...any) {}
	}

	state := model.LoginUnknown
	for i := 0; i < model.MaxLoginTransitions; i++ {
		if page.Closed() {
			return model.LoginError, &apperrors.TransientBrowserError{Msg: "target closed"}
		}

		next, err := m.observe(ctx, page)
		if err != nil {
			return model.LoginError, err
		}
		state = next
		m.Logf("login: state=%s", state)

		if state.Terminal() {
			return state, nil
		}

		if err := m.act(ctx, page, state); err != nil {
			return model.LoginError, err
		}
	}
	return model.LoginError, &apperrors.LoginFatalError{Msg: fmt.Sprintf("no terminal state within %d transitions", model.MaxLoginTransitions)}
}

func (m Machine) observe(ctx context.Context, page browser.Page) (model.LoginState, error) {
	return m.Classifier.Classify(ctx, page)
}

func (m Machine) act(ctx context.Context, page browser.Page, state model.LoginState) error {
	switch state {
	case model.LoginEmailPage:
		return m.typeAndSubmit(ctx, page, m.Classifier.Selectors.EmailInput, m.Account.Email, baseTypingDelayMs)
	case model.LoginPasswordPage:
		return m.typeAndSubmit(ctx, page, m.Classifier.Selectors.PasswordInput, m.Account.Password, baseTypingDelayMs/2)
	case model.LoginTwoFactorRequired:
		return m.handleTwoFactor(ctx, page)
	case model.LoginPasskeyPrompt:
		return m.handlePasskey(ctx, page)
	case model.LoginRecoveryCheck:
		return m.handleRecoveryCheck(ctx, page)
	case model.LoginUnknown, model.LoginEmailSubmitted, model.LoginPasswordSubmitted, model.LoginTwoFactorSubmitted:
		// No classify rule names a distinct KMSI state; the prompt is
		// dismissed opportunistically whenever the page is otherwise
		// unclassified, per the action list's "click primary" instruction.
		m.tryClickKMSI(ctx, page)
		time.Sleep(smartWaitShort)
		return nil
	default:
		return nil
	}
}

const baseTypingDelayMs = 110

func (m Machine) typeAndSubmit(ctx context.Context, page browser.Page, selector, value string, perCharBaseMs float64) error {
	el, err := smartWait(ctx, page, selector)
	if err != nil {
		return &apperrors.LoginRecoverableError{Msg: fmt.Sprintf("input %q not found: %v", selector, err)}
	}
	if err := el.Type(ctx, value, func(i int) time.Duration {
		return intrand.TypingDelay(perCharBaseMs)
	}); err != nil {
		return &apperrors.LoginRecoverableError{Msg: fmt.Sprintf("type into %q: %v", selector, err)}
	}
	time.Sleep(intrand.TypingDelay(250))
	return page.PressKey(ctx, "Enter")
}

func (m Machine) handleTwoFactor(ctx context.Context, page browser.Page) error {
	if m.Account.TOTPSeed == "" {
		return &apperrors.LoginFatalError{Msg: "manual-2fa"}
	}
	code, err := CurrentTOTP(m.Account.TOTPSeed)
	if err != nil {
		return &apperrors.LoginFatalError{Msg: err.Error()}
	}
	return m.typeAndSubmit(ctx, page, m.Classifier.Selectors.OneTimeCode, code, baseTypingDelayMs/3)
}

func (m Machine) handleRecoveryCheck(ctx context.Context, page browser.Page) error {
	result, err := CheckRecoveryEmail(ctx, page, m.Account)
	if err != nil {
		return err
	}
	if result.Mismatched {
		return &apperrors.LoginFatalError{Msg: fmt.Sprintf("recovery-mismatch: %s", result.Detail)}
	}
	m.Logf("login: recovery email matched (%s mode)", result.MatchMode)
	time.Sleep(smartWaitShort)
	return nil
}

func (m Machine) handlePasskey(ctx context.Context, page browser.Page) error {
	strategies := []dismissStrategy{
		dismissBySecondaryButtonText,
		dismissByBiometricVideoHeuristic,
		dismissByTitleHeuristic,
		dismissByXPathTextMatch,
		dismissByWindowsHelloSelectors,
		dismissByCloseButton,
	}
	for i := 0; i < 6; i++ {
		for _, strat := range strategies {
			if reason, ok := strat(ctx, page); ok {
				m.Logf("login: passkey dismissed (%s)", reason)
				return nil
			}
		}
		time.Sleep(pollInterval)
	}
	m.Logf("login: no-prompt (passkey dismissal exhausted, continuing)")
	return nil
}

const kmsiPrimaryButton = `input[type="submit"][value="Yes"], #idSIButton9`

// tryClickKMSI opportunistically dismisses the "keep me signed in" prompt
// by clicking its primary button, ignoring failures since the prompt is
// often simply absent.
func (m Machine) tryClickKMSI(ctx context.Context, page browser.Page) {
	if el, present, err := page.Query(ctx, kmsiPrimaryButton); err == nil && present {
		if visible, _ := el.Visible(ctx); visible {
			_ = el.Click(ctx)
			m.Logf("login: dismissed keep-me-signed-in prompt")
		}
	}
}

func smartWait(ctx context.Context, page browser.Page, selector string) (browser.Element, error) {
	el, err := page.WaitVisible(ctx, selector, smartWaitShort)
	if err == nil {
		return el, nil
	}
	return page.WaitVisible(ctx, selector, smartWaitLong)
}
