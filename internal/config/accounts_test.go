package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeAccounts(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write accounts: %v", err)
	}
	return path
}

func TestLoadAccounts_BareArray(t *testing.T) {
	path := writeAccounts(t, `[
		{"email": "a@x.com", "password": "pw1"},
		{"email": "b@x.com", "password": "pw2", "enabled": false}
	]`)

	accounts, err := LoadAccounts(path)
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("len = %d, want 2", len(accounts))
	}
	if !accounts[0].Enabled {
		t.Errorf("default enabled should be true")
	}
	if accounts[1].Enabled {
		t.Errorf("explicit enabled:false should stick")
	}
}

func TestLoadAccounts_WrappedForm(t *testing.T) {
	path := writeAccounts(t, `{
		// a wrapped account list
		"accounts": [
			{"email": "a@x.com", "password": "pw1", "totp": "SEED123", "recoveryEmail": "r@x.com", "phoneNumber": "+10000000"}
		]
	}`)

	accounts, err := LoadAccounts(path)
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("len = %d, want 1", len(accounts))
	}
	if accounts[0].TOTPSeed != "SEED123" {
		t.Errorf("TOTPSeed = %q, want SEED123", accounts[0].TOTPSeed)
	}
}

func TestLoadAccounts_MissingEmailIsFatal(t *testing.T) {
	path := writeAccounts(t, `[{"password": "pw1"}]`)
	if _, err := LoadAccounts(path); err == nil {
		t.Fatal("expected error for missing email")
	}
}
