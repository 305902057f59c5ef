package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/ohmynofan/rewards-orchestrator/internal/apperrors"
)

var validate = validator.New()

// ParallelConfig controls whether desktop/mobile personas run concurrently
// per account. Default is sequential desktop→mobile.
type ParallelConfig struct {
	Desktop bool `json:"desktop"`
	Mobile  bool `json:"mobile"`
}

// WorkersConfig toggles each optional unit of work the pipeline may run.
type WorkersConfig struct {
	DoDailySet        bool `json:"do_daily_set"`
	DoMorePromotions  bool `json:"do_more_promotions"`
	DoPunchCards      bool `json:"do_punch_cards"`
	DoDesktopSearch   bool `json:"do_desktop_search"`
	DoMobileSearch    bool `json:"do_mobile_search"`
	DoReadToEarn      bool `json:"do_read_to_earn"`
	DoDailyCheckIn    bool `json:"do_daily_check_in"`
	DoFreeRewards     bool `json:"do_free_rewards"`
}

// SearchDelayConfig bounds the randomised dwell between search queries.
type SearchDelayConfig struct {
	Min Duration `json:"min" validate:"required"`
	Max Duration `json:"max" validate:"required"`
}

// SearchSettingsConfig configures the Search Engine (C10).
type SearchSettingsConfig struct {
	RetryMobileSearchAmount int               `json:"retry_mobile_search_amount" validate:"gte=0"`
	SearchDelay             SearchDelayConfig `json:"search_delay" validate:"required"`
	PerSessionMax           int               `json:"per_session_max" validate:"gte=0"`
}

// HumanizationConfig tunes the secure-random human-timing primitives (C5).
type HumanizationConfig struct {
	Enabled            bool    `json:"enabled"`
	MouseOvershootProb float64 `json:"mouse_overshoot_prob" validate:"gte=0,lte=1"`
	TremorIntensity    float64 `json:"tremor_intensity" validate:"gte=0,lte=1"`
	TypingVariance     float64 `json:"typing_variance" validate:"gte=0,lte=1"`
}

// ExecutionConfig bounds how many passes the orchestrator runs per account.
type ExecutionConfig struct {
	Passes         int      `json:"passes" validate:"gte=1"`
	InterPassDelay Duration `json:"inter_pass_delay"`
}

// BanDetectionConfig configures the Ban/Risk Detector (C9).
type BanDetectionConfig struct {
	Enabled              bool `json:"enabled"`
	EscalationThreshold  int  `json:"escalation_threshold" validate:"gte=1"`
}

// ScheduleEntry is one Clock & Scheduler (C1) fire time.
type ScheduleEntry struct {
	Time               string `json:"time" validate:"required"`
	JitterMinutes      int    `json:"jitter_minutes" validate:"gte=0"`
	VacationProbability float64 `json:"vacation_probability" validate:"gte=0,lte=1"`
}

// NetworkConfig carries the portal hostnames the Login State Machine
// classifies against, and the origin/referer the direct-API client presents.
type NetworkConfig struct {
	RewardsPortalHost string `json:"rewards_portal_host" validate:"required"`
	LoginPortalHost   string `json:"login_portal_host" validate:"required"`
	APIOrigin         string `json:"api_origin" validate:"required"`
	APIReferer        string `json:"api_referer" validate:"required"`
	SearchEndpoint    string `json:"search_endpoint" validate:"required"`
	OAuthAuthorizeURL string `json:"oauth_authorize_url" validate:"required"`
	DailyCheckInURL   string `json:"daily_check_in_url"`
	ReadToEarnURL     string `json:"read_to_earn_url"`
	BalanceURL        string `json:"balance_url"`
	Locale            string `json:"locale"`
	Timezone          string `json:"timezone"`
}

// NotificationsConfig selects the Notification Sink's (C15) transport.
type NotificationsConfig struct {
	Transport  string `json:"transport" validate:"omitempty,oneof=webhook noop"`
	WebhookURL string `json:"webhook_url"`
}

// DashboardConfig configures the Dashboard Gateway's (C14) listener.
type DashboardConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// Config is the full recognised option set. Unknown top-level keys are
// rejected in strict mode by the decoder in Load.
type Config struct {
	Clusters        int                  `json:"clusters" validate:"gte=1"`
	Parallel        ParallelConfig       `json:"parallel"`
	RunOnZeroPoints bool                 `json:"run_on_zero_points"`
	Workers         WorkersConfig        `json:"workers"`
	SearchSettings  SearchSettingsConfig `json:"search_settings"`
	Humanization    HumanizationConfig   `json:"humanization"`
	Execution       ExecutionConfig      `json:"execution" validate:"required"`
	BanDetection    BanDetectionConfig   `json:"ban_detection"`
	Schedule        []ScheduleEntry      `json:"schedule"`
	Network         NetworkConfig        `json:"network" validate:"required"`
	Notifications   NotificationsConfig  `json:"notifications"`
	Dashboard       DashboardConfig      `json:"dashboard"`

	AccountsPath string `json:"accounts_path" validate:"required"`
	JobStateDir  string `json:"job_state_dir" validate:"required"`
	HistoryDBPath string `json:"history_db_path" validate:"required"`
	ProxyDefault string `json:"proxy_default"`

	// Secrets (webhook URL override, proxy creds) may instead be supplied
	// via environment, loaded from a .env file alongside the config.
}

// Load reads, strips comments/trailing-commas from, strictly decodes, and
// validates the config file at path. Any failure is a *apperrors.ConfigError
// since config failures are fatal only at startup.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &apperrors.ConfigError{Msg: fmt.Sprintf("read %s: %v", path, err)}
	}

	normalized := Normalize(raw)

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, &apperrors.ConfigError{Msg: fmt.Sprintf("parse %s: %v", path, err)}
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, &apperrors.ConfigError{Msg: fmt.Sprintf("validate %s: %v", path, err)}
	}

	if cfg.SearchSettings.SearchDelay.Max.Duration() < cfg.SearchSettings.SearchDelay.Min.Duration() {
		return Config{}, &apperrors.ConfigError{Msg: "search_settings.search_delay.max must be >= min"}
	}

	applySecretOverrides(&cfg)

	return cfg, nil
}

// applySecretOverrides lets environment variables supply values that
// shouldn't live in a shared, comment-bearing config file on disk.
func applySecretOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("REWARDS_WEBHOOK_URL")); v != "" {
		cfg.Notifications.WebhookURL = v
	}
	if v := strings.TrimSpace(os.Getenv("REWARDS_PROXY")); v != "" {
		cfg.ProxyDefault = v
	}
}
