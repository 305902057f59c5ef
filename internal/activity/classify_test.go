package activity

import (
	"testing"

	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		a    model.Activity
		want Kind
	}{
		{"poll", model.Activity{PromotionType: model.PromotionQuiz, PointProgressMax: 10, DestinationURL: "https://x/?pollscenarioid=1"}, KindPoll},
		{"abc", model.Activity{PromotionType: model.PromotionQuiz, PointProgressMax: 10, DestinationURL: "https://x/quiz"}, KindABC},
		{"thisOrThat", model.Activity{PromotionType: model.PromotionQuiz, PointProgressMax: 50}, KindThisOrThat},
		{"quiz", model.Activity{PromotionType: model.PromotionQuiz, PointProgressMax: 30}, KindQuiz},
		{"searchOnBing", model.Activity{PromotionType: model.PromotionURLReward, Name: "ExploreOnBing_1"}, KindSearchOnBing},
		{"urlReward", model.Activity{PromotionType: model.PromotionURLReward, Name: "dailyset_1"}, KindURLReward},
		{"unsupported", model.Activity{PromotionType: "unknown"}, KindUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.a); got != tt.want {
				t.Errorf("Classify(%+v) = %v, want %v", tt.a, got, tt.want)
			}
		})
	}
}
