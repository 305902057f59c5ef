package login

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// CurrentTOTP computes the current 6-digit code for a base32-encoded seed,
// grounded on the same pquerna/otp validation options the corpus uses for
// authenticator codes (SHA1, 30s period, 6 digits).
func CurrentTOTP(seed string) (string, error) {
	if seed == "" {
		return "", fmt.Errorf("login: totp seed is empty")
	}
	code, err := totp.GenerateCodeCustom(seed, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("login: compute totp: %w", err)
	}
	return code, nil
}
