package model

// CounterProgress is one point-progress entry as scraped from the dashboard
// (e.g. counters.mobileSearch[0] / counters.pcSearch[0]).
type CounterProgress struct {
	PointProgress    int `json:"pointProgress"`
	PointProgressMax int `json:"pointProgressMax"`
}

// Remaining returns max(0, Max-Progress).
func (c CounterProgress) Remaining() int {
	if c.PointProgressMax <= c.PointProgress {
		return 0
	}
	return c.PointProgressMax - c.PointProgress
}

// UserStatus carries the account's point balance as shown on the dashboard.
type UserStatus struct {
	AvailablePoints int `json:"availablePoints"`
}

// PromotionType is the raw `promotion_type` string scraped off an activity
// tile, classified by the Activity Dispatcher.
type PromotionType string

const (
	PromotionQuiz       PromotionType = "quiz"
	PromotionURLReward  PromotionType = "urlreward"
)

// Activity is one promotional tile surfaced by the dashboard (a daily-set
// entry, a "more promotions" entry, or a punch-card step).
type Activity struct {
	Name             string        `json:"name"`
	Title            string        `json:"title"`
	PromotionType    PromotionType `json:"promotionType"`
	DestinationURL   string        `json:"destinationUrl"`
	PointProgress    int           `json:"pointProgress"`
	PointProgressMax int           `json:"pointProgressMax"`
	Complete         bool          `json:"complete"`
	OfferID          string        `json:"offerId"`
}

// DailySetEntry groups the activities offered for one calendar date.
type DailySetEntry struct {
	Date       string     `json:"date"`
	Activities []Activity `json:"activities"`
}

// PunchCard is a multi-step recurring promotion (e.g. "do X for 5 days").
type PunchCard struct {
	Name       string     `json:"name"`
	ParentName string     `json:"parentPromotionName"`
	Activities []Activity `json:"activities"`
}

// DashboardData is the snapshot scraped from the rewards home page once per
// flow, immediately after login.
type DashboardData struct {
	UserStatus      UserStatus                 `json:"userStatus"`
	Counters        map[string][]CounterProgress `json:"counters"`
	MorePromotions  []Activity                 `json:"morePromotions"`
	DailySet        []DailySetEntry            `json:"dailySet"`
	PunchCards      []PunchCard                `json:"punchCards"`
}

// CounterRemaining looks up counters[key][0].Remaining(), returning 0 if the
// key or the first entry is absent.
func (d DashboardData) CounterRemaining(key string) int {
	list, ok := d.Counters[key]
	if !ok || len(list) == 0 {
		return 0
	}
	return list[0].Remaining()
}

// Earnable sums the remaining point-progress across every bucket the given
// persona can touch: desktop sees pcSearch plus every activity list; mobile
// sees mobileSearch plus the same activity lists (app-earnable).
func (d DashboardData) Earnable(isMobile bool) int {
	total := 0
	if isMobile {
		total += d.CounterRemaining("mobileSearch")
	} else {
		total += d.CounterRemaining("pcSearch")
	}
	for _, a := range d.MorePromotions {
		if !a.Complete {
			total += a.PointProgressMax - a.PointProgress
		}
	}
	for _, set := range d.DailySet {
		for _, a := range set.Activities {
			if !a.Complete {
				total += a.PointProgressMax - a.PointProgress
			}
		}
	}
	for _, pc := range d.PunchCards {
		for _, a := range pc.Activities {
			if !a.Complete {
				total += a.PointProgressMax - a.PointProgress
			}
		}
	}
	return total
}
