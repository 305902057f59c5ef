package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	intrand "github.com/ohmynofan/rewards-orchestrator/internal/rand"
)

// exploreOnBingRunner implements activity.SearchRunner for the
// "exploreonbing" url-reward tile: a handful of queries run against the
// search endpoint with humanised dwell, distinct from the much larger
// pcSearch/mobileSearch execution loop in internal/search, which targets a
// point-progress counter instead of a single activity tile.
type exploreOnBingRunner struct {
	SearchEndpoint func(query string) string
}

func (r exploreOnBingRunner) RunQueries(ctx context.Context, page browser.Page, queries []string) error {
	for _, q := range queries {
		url := r.SearchEndpoint(q)
		if err := page.Navigate(ctx, url); err != nil {
			return fmt.Errorf("pipeline: explore-on-bing navigate: %w", err)
		}
		dwell := intrand.HumanVariance(2500, 0.3, 0.05)
		select {
		case <-time.After(time.Duration(dwell) * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
