package login

import "testing"

func TestParseMasked(t *testing.T) {
	tests := []struct {
		in             string
		wantPrefix     string
		wantDomain     string
		wantVisibleLen int
	}{
		{"k******@domain.tld", "k", "domain.tld", 1},
		{"jo****@domain.tld", "jo", "domain.tld", 2},
		{"a@b.com", "a", "b.com", 1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			prefix, domain, visible := parseMasked(tt.in)
			if prefix != tt.wantPrefix || domain != tt.wantDomain || visible != tt.wantVisibleLen {
				t.Errorf("parseMasked(%q) = (%q, %q, %d), want (%q, %q, %d)",
					tt.in, prefix, domain, visible, tt.wantPrefix, tt.wantDomain, tt.wantVisibleLen)
			}
		})
	}
}

func TestSplitEmail(t *testing.T) {
	local, domain, ok := splitEmail("bob@domain.tld")
	if !ok || local != "bob" || domain != "domain.tld" {
		t.Fatalf("splitEmail got (%q, %q, %v)", local, domain, ok)
	}
	if _, _, ok := splitEmail("not-an-email"); ok {
		t.Fatal("expected splitEmail to reject a string with no @")
	}
}

func TestBlockedPhrase(t *testing.T) {
	label, matched := BlockedPhrase("Sorry, but we can't sign you in right now.")
	if !matched || label != "cant-sign-in" {
		t.Errorf("BlockedPhrase = (%q, %v), want (cant-sign-in, true)", label, matched)
	}
	if _, matched := BlockedPhrase("Welcome back!"); matched {
		t.Error("BlockedPhrase matched on benign text")
	}
}
