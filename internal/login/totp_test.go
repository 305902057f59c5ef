package login

import "testing"

func TestCurrentTOTP_EmptySeedIsAnError(t *testing.T) {
	if _, err := CurrentTOTP(""); err == nil {
		t.Fatal("expected an error for an empty seed")
	}
}

func TestCurrentTOTP_ValidSeedProducesSixDigits(t *testing.T) {
	code, err := CurrentTOTP("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("CurrentTOTP: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code = %q, want 6 digits", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("code = %q, want only digits", code)
		}
	}
}

func TestCurrentTOTP_InvalidSeedIsAnError(t *testing.T) {
	if _, err := CurrentTOTP("not-valid-base32!!!"); err == nil {
		t.Fatal("expected an error for a malformed base32 seed")
	}
}
