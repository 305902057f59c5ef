package pipeline

import (
	"context"
	"fmt"

	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

// dashboardScript reads the rewards-data blob the portal's own script tag
// exposes on window, the same object the activity tiles are rendered from.
const dashboardScript = `window._w && window._w.rewardsData ? window._w.rewardsData : null`

// fetchDashboard scrapes DashboardData once per flow, immediately after
// login.
func fetchDashboard(ctx context.Context, page browser.Page) (model.DashboardData, error) {
	var dash model.DashboardData
	if err := page.Eval(ctx, dashboardScript, &dash); err != nil {
		return model.DashboardData{}, fmt.Errorf("pipeline: fetch dashboard: %w", err)
	}
	return dash, nil
}
