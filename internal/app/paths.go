package app

import (
	"crypto/sha1"
	"encoding/hex"
	"path/filepath"

	"github.com/ohmynofan/rewards-orchestrator/internal/browser"
)

// cookieFilePath is a sha1 hash of the account identifier, so the on-disk
// filename never exposes the raw email.
func cookieFilePath(email string) string {
	return filepath.Join("data", "cookies", hashOf(email)+".json")
}

// profileDir is the per-account, per-persona browser profile directory,
// kept separate so a desktop and a mobile context for the same account
// never share cached storage.
func profileDir(email string, persona browser.Persona) string {
	return filepath.Join("data", "profiles", hashOf(email), persona.String())
}

func hashOf(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
