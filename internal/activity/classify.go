// Package activity classifies promotional tiles and dispatches them to
// typed handlers.
package activity

import (
	"strings"

	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

// Kind is the dispatcher's classification of an Activity tile.
type Kind string

const (
	KindPoll         Kind = "poll"
	KindABC          Kind = "abc"
	KindThisOrThat   Kind = "thisOrThat"
	KindQuiz         Kind = "quiz"
	KindSearchOnBing Kind = "searchOnBing"
	KindURLReward    Kind = "urlReward"
	KindUnsupported  Kind = "unsupported"
)

// Classify applies the exact, first-match-wins tile-kind rule table.
func Classify(a model.Activity) Kind {
	switch {
	case a.PromotionType == model.PromotionQuiz && a.PointProgressMax == 10 && strings.Contains(strings.ToLower(a.DestinationURL), "pollscenarioid"):
		return KindPoll
	case a.PromotionType == model.PromotionQuiz && a.PointProgressMax == 10:
		return KindABC
	case a.PromotionType == model.PromotionQuiz && a.PointProgressMax == 50:
		return KindThisOrThat
	case a.PromotionType == model.PromotionQuiz:
		return KindQuiz
	case a.PromotionType == model.PromotionURLReward && strings.Contains(strings.ToLower(a.Name), "exploreonbing"):
		return KindSearchOnBing
	case a.PromotionType == model.PromotionURLReward:
		return KindURLReward
	default:
		return KindUnsupported
	}
}
