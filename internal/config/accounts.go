package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ohmynofan/rewards-orchestrator/internal/apperrors"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

// wireAccount mirrors the external account-file schema exactly
// (`{email, password, totp?, proxy?, recoveryEmail?, phoneNumber?, enabled?}`),
// kept distinct from model.Account so the domain type's field names can
// diverge from the on-disk wire format without a custom (Un)MarshalJSON.
type wireAccount struct {
	Email         string      `json:"email"`
	Password      string      `json:"password"`
	TOTP          string      `json:"totp,omitempty"`
	Proxy         *wireProxy  `json:"proxy,omitempty"`
	RecoveryEmail string      `json:"recoveryEmail,omitempty"`
	PhoneNumber   string      `json:"phoneNumber,omitempty"`
	Enabled       *bool       `json:"enabled,omitempty"`
}

type wireProxy struct {
	Scheme   string `json:"scheme,omitempty"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

type wireAccountsFile struct {
	Accounts []wireAccount `json:"accounts"`
}

// LoadAccounts parses the account file, tolerating both bare-array and
// `{accounts:[...]}` forms. Missing `enabled` defaults to true.
func LoadAccounts(path string) ([]model.Account, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &apperrors.ConfigError{Msg: fmt.Sprintf("read %s: %v", path, err)}
	}

	normalized := Normalize(raw)

	var wire []wireAccount
	if err := json.Unmarshal(normalized, &wire); err != nil {
		var wrapped wireAccountsFile
		if err2 := json.Unmarshal(normalized, &wrapped); err2 != nil {
			return nil, &apperrors.ConfigError{Msg: fmt.Sprintf("parse %s: %v", path, err)}
		}
		wire = wrapped.Accounts
	}

	accounts := make([]model.Account, 0, len(wire))
	for idx, w := range wire {
		if w.Email == "" {
			return nil, &apperrors.ConfigError{Msg: fmt.Sprintf("account at index %d missing email", idx)}
		}
		enabled := true
		if w.Enabled != nil {
			enabled = *w.Enabled
		}
		acc := model.Account{
			Email:         w.Email,
			Password:      w.Password,
			TOTPSeed:      w.TOTP,
			RecoveryEmail: w.RecoveryEmail,
			PhoneNumber:   w.PhoneNumber,
			Enabled:       enabled,
		}
		if w.Proxy != nil {
			acc.Proxy = &model.Proxy{
				Scheme:   w.Proxy.Scheme,
				Host:     w.Proxy.Host,
				Port:     w.Proxy.Port,
				Username: w.Proxy.Username,
				Password: w.Proxy.Password,
			}
		}
		accounts = append(accounts, acc)
	}

	return accounts, nil
}
