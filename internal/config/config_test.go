package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfigJSON = `{
	// cluster sizing
	"clusters": 2,
	"parallel": {"desktop": false, "mobile": false},
	"run_on_zero_points": false,
	"workers": {
		"do_daily_set": true,
		"do_more_promotions": true,
		"do_punch_cards": true,
		"do_desktop_search": true,
		"do_mobile_search": true,
		"do_read_to_earn": false,
		"do_daily_check_in": true,
		"do_free_rewards": false
	},
	"search_settings": {
		"retry_mobile_search_amount": 2,
		"search_delay": {"min": "3s", "max": "6s"},
		"per_session_max": 30
	},
	"humanization": {
		"enabled": true,
		"mouse_overshoot_prob": 0.3,
		"tremor_intensity": 0.2,
		"typing_variance": 0.4
	},
	"execution": {"passes": 1, "inter_pass_delay": "1h"},
	"ban_detection": {"enabled": true, "escalation_threshold": 3},
	"network": {
		"rewards_portal_host": "rewards.example.com",
		"login_portal_host": "login.example.com",
		"api_origin": "https://rewards.example.com",
		"api_referer": "https://rewards.example.com/",
		"search_endpoint": "https://rewards.example.com/search",
		"oauth_authorize_url": "https://login.example.com/oauth2/v2.0/authorize"
	},
	"accounts_path": "configs/accounts.json",
	"job_state_dir": "data/job-state",
	"history_db_path": "data/history.db", // trailing comment
}`

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, validConfigJSON)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Clusters != 2 {
		t.Errorf("Clusters = %d, want 2", cfg.Clusters)
	}
	if cfg.SearchSettings.SearchDelay.Min.Duration().Seconds() != 3 {
		t.Errorf("search_delay.min not parsed")
	}
}

func TestLoad_UnknownKeyIsFatal(t *testing.T) {
	path := writeConfig(t, `{"clusters": 1, "bogus_key": true}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected ConfigError for unknown key")
	}
}

func TestLoad_MissingRequiredFieldIsFatal(t *testing.T) {
	path := writeConfig(t, `{"clusters": 1}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected ConfigError for missing required fields")
	}
}

func TestLoad_InvalidDurationIsFatal(t *testing.T) {
	bad := `{
		"clusters": 1,
		"execution": {"passes": 1, "inter_pass_delay": "not-a-duration"},
		"search_settings": {"retry_mobile_search_amount": 0, "search_delay": {"min": "1s", "max": "2s"}, "per_session_max": 1},
		"network": {"rewards_portal_host": "a", "login_portal_host": "b", "api_origin": "c", "api_referer": "d", "search_endpoint": "e", "oauth_authorize_url": "f"},
		"accounts_path": "x", "job_state_dir": "y", "history_db_path": "z"
	}`
	path := writeConfig(t, bad)
	if _, err := Load(path); err == nil {
		t.Fatal("expected ConfigError for invalid duration")
	}
}
