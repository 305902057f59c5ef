// Package rewardsapi wraps the direct HTTP client (internal/httpclient) with
// the few rewards-portal endpoints the Per-Account Pipeline calls without a
// rendered page: daily check-in, read-to-earn, and a balance read used to
// judge whether a claim actually moved points.
package rewardsapi

import (
	"context"
	"fmt"

	"github.com/ohmynofan/rewards-orchestrator/internal/httpclient"
	"github.com/ohmynofan/rewards-orchestrator/pkg/utils"
)

// Endpoints carries the three URLs the mobile OAuth-authenticated calls hit.
// They are config-driven (internal/config NetworkConfig) rather than
// hardcoded, since the distilled spec only names the rewards portal, not a
// fixed vendor host.
type Endpoints struct {
	DailyCheckIn string
	ReadToEarn   string
	Balance      string
}

// API implements activity.RewardsAPI against a live httpclient.APIClient,
// re-issuing the current bearer token on every call.
type API struct {
	Client    *httpclient.APIClient
	Endpoints Endpoints
	Token     string
}

type readToEarnParams struct {
	ArticleIndex int `url:"articleIndex"`
}

// ClaimDailyCheckIn posts the check-in claim and reports the points the
// response body says were awarded (0 when the body carries no such field,
// which the caller treats as "already done").
func (a *API) ClaimDailyCheckIn(ctx context.Context) (int, error) {
	resp, err := a.Client.Fetch(a.Endpoints.DailyCheckIn, &httpclient.FetchOptions{Method: "POST", Token: a.Token})
	if err != nil {
		return 0, fmt.Errorf("rewardsapi: daily check-in: %w", err)
	}
	return pointsAwardedFrom(resp), nil
}

// ClaimReadToEarn posts the read-to-earn claim for one article index and
// reports the points the claim response says were awarded, and whether that
// is above zero.
func (a *API) ClaimReadToEarn(ctx context.Context, articleIndex int) (int, bool, error) {
	encoded, err := utils.EncodeURLParams(readToEarnParams{ArticleIndex: articleIndex})
	if err != nil {
		return 0, false, fmt.Errorf("rewardsapi: encode read-to-earn params: %w", err)
	}
	endpoint := a.Endpoints.ReadToEarn + "?" + encoded

	resp, err := a.Client.Fetch(endpoint, &httpclient.FetchOptions{Method: "POST", Token: a.Token})
	if err != nil {
		return 0, false, fmt.Errorf("rewardsapi: read-to-earn %d: %w", articleIndex, err)
	}
	gained := pointsAwardedFrom(resp)
	return gained, gained > 0, nil
}

// Balance reads the account's current available-points balance.
func (a *API) Balance(ctx context.Context) (int, error) {
	resp, err := a.Client.Fetch(a.Endpoints.Balance, &httpclient.FetchOptions{Method: "GET", Token: a.Token})
	if err != nil {
		return 0, fmt.Errorf("rewardsapi: balance: %w", err)
	}
	m, ok := resp.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("rewardsapi: balance: unexpected response shape")
	}
	return intField(m, "availablePoints"), nil
}

func pointsAwardedFrom(resp interface{}) int {
	m, ok := resp.(map[string]interface{})
	if !ok {
		return 0
	}
	if v := intField(m, "pointsAwarded"); v != 0 {
		return v
	}
	return intField(m, "pointProgress")
}

func intField(m map[string]interface{}, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return int(f)
}
