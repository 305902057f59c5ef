package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
	intrand "github.com/ohmynofan/rewards-orchestrator/internal/rand"
)

const (
	smartWaitShort = 300 * time.Millisecond
	smartWaitLong  = 3 * time.Second
	maxABCRounds   = 12
)

func waitVisible(ctx context.Context, page browser.Page, selector string) (browser.Element, error) {
	if el, err := page.WaitVisible(ctx, selector, smartWaitShort); err == nil {
		return el, nil
	}
	return page.WaitVisible(ctx, selector, smartWaitLong)
}

// handlePoll picks one of the two options at random, clicks, waits for
// settlement.
func handlePoll(ctx context.Context, deps Dependencies, page browser.Page, a model.Activity) error {
	options, err := page.QueryAll(ctx, `[data-bi-id^="pollOption"]`)
	if err != nil || len(options) == 0 {
		return fmt.Errorf("poll: no options found: %v", err)
	}
	choice := intrand.IntIn(0, len(options)-1)
	if err := options[choice].Click(ctx); err != nil {
		return fmt.Errorf("poll: click option: %w", err)
	}
	_, _ = page.WaitVisible(ctx, `[data-bi-id="pollResult"]`, smartWaitLong)
	return nil
}

// handleABC iterates up to maxABCRounds questions, choosing a random
// visible option each round and clicking "next" until a completed icon
// appears.
func handleABC(ctx context.Context, deps Dependencies, page browser.Page, a model.Activity) error {
	for round := 0; round < maxABCRounds; round++ {
		if _, present, _ := page.Query(ctx, `[data-bi-id="completedIcon"]`); present {
			return nil
		}
		options, err := page.QueryAll(ctx, `[data-option]`)
		if err != nil || len(options) == 0 {
			return fmt.Errorf("abc: no options at round %d: %v", round, err)
		}
		choice := intrand.Pick(options)
		if err := choice.Click(ctx); err != nil {
			return fmt.Errorf("abc: click option: %w", err)
		}
		next, err := waitVisible(ctx, page, `[data-bi-id="nextQuestion"]`)
		if err != nil {
			return nil
		}
		if err := next.Click(ctx); err != nil {
			return fmt.Errorf("abc: click next: %w", err)
		}
	}
	return nil
}

// handleThisOrThat clicks a start control if present, then for each
// remaining round clicks one of the two options and waits for the question
// number to change.
func handleThisOrThat(ctx context.Context, deps Dependencies, page browser.Page, a model.Activity) error {
	if start, present, _ := page.Query(ctx, `[data-bi-id="startQuiz"]`); present {
		_ = start.Click(ctx)
	}

	var maxQuestions, current int
	_ = page.Eval(ctx, `window._w && window._w.rewardsQuizProperties ? window._w.rewardsQuizProperties.maxQuestions : 10`, &maxQuestions)
	if maxQuestions == 0 {
		maxQuestions = 10
	}
	_ = page.Eval(ctx, `window._w && window._w.rewardsQuizProperties ? window._w.rewardsQuizProperties.currentQuestionNumber : 1`, &current)
	if current == 0 {
		current = 1
	}

	rounds := maxQuestions - current + 1
	for i := 0; i < rounds; i++ {
		options, err := page.QueryAll(ctx, `[data-option]`)
		if err != nil || len(options) < 2 {
			return nil
		}
		choice := intrand.IntIn(0, len(options)-1)
		if err := options[choice].Click(ctx); err != nil {
			return fmt.Errorf("this-or-that: click option: %w", err)
		}

		var newCurrent int
		deadline := time.Now().Add(smartWaitLong)
		for time.Now().Before(deadline) {
			_ = page.Eval(ctx, `window._w && window._w.rewardsQuizProperties ? window._w.rewardsQuizProperties.currentQuestionNumber : 0`, &newCurrent)
			if newCurrent != current {
				break
			}
			time.Sleep(150 * time.Millisecond)
		}
		current = newCurrent
	}
	return nil
}

type quizOption struct {
	Index      int    `json:"index"`
	IsCorrect  bool   `json:"isCorrectOption"`
	DataOption string `json:"dataOption"`
}

// handleQuiz reads the quiz-state data the page exposes; for 8-option
// variants it pre-scans for truthy iscorrectoption attributes and clicks
// them all; for 2-4-option variants it reads the correct-answer field and
// clicks the matching data-option.
func handleQuiz(ctx context.Context, deps Dependencies, page browser.Page, a model.Activity) error {
	var options []quizOption
	if err := page.Eval(ctx, `Array.from(document.querySelectorAll('[data-option]')).map((el, i) => ({
		index: i,
		isCorrectOption: el.getAttribute('iscorrectoption') === 'true',
		dataOption: el.getAttribute('data-option') || '',
	}))`, &options); err != nil {
		return fmt.Errorf("quiz: read options: %w", err)
	}
	if len(options) == 0 {
		return fmt.Errorf("quiz: no options present")
	}

	elements, err := page.QueryAll(ctx, `[data-option]`)
	if err != nil || len(elements) != len(options) {
		return fmt.Errorf("quiz: option/element count mismatch")
	}

	if len(options) == 8 {
		for i, opt := range options {
			if !opt.IsCorrect {
				continue
			}
			if err := elements[i].Click(ctx); err != nil {
				return fmt.Errorf("quiz: click correct option: %w", err)
			}
			if _, err := waitVisible(ctx, page, `[data-option]`); err != nil {
				return fmt.Errorf("quiz: refresh failed after click: %w", err)
			}
		}
		return nil
	}

	var correctAnswer string
	if err := page.Eval(ctx, `window._w && window._w.rewardsQuizProperties ? window._w.rewardsQuizProperties.correctAnswer : ''`, &correctAnswer); err != nil {
		return fmt.Errorf("quiz: read correct answer: %w", err)
	}
	for i, opt := range options {
		if opt.DataOption == correctAnswer {
			if err := elements[i].Click(ctx); err != nil {
				return fmt.Errorf("quiz: click matching option: %w", err)
			}
			if _, err := waitVisible(ctx, page, `[data-option]`); err != nil {
				return fmt.Errorf("quiz: refresh failed after click: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("quiz: no option matched correct answer %q", correctAnswer)
}

// handleSearchOnBing executes one or more queries against the
// rewards-bearing search endpoint; success is judged by the caller via
// point_progress reaching max.
func handleSearchOnBing(ctx context.Context, deps Dependencies, page browser.Page, a model.Activity) error {
	if deps.Search == nil {
		return fmt.Errorf("search-on-bing: no search runner wired")
	}
	queries := []string{a.Title, fmt.Sprintf("%s news", a.Title)}
	return deps.Search.RunQueries(ctx, page, queries)
}

// handleURLReward waits a short humanised interval and returns, leaving
// Dispatch to close the tab — the page load itself grants the points.
func handleURLReward(ctx context.Context, deps Dependencies, page browser.Page, a model.Activity) error {
	wait := time.Duration(intrand.HumanVariance(2500, 0.3, 0.05)) * time.Millisecond
	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
