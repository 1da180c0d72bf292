// Package steamuser resolves the Steam userdata directory used by the
// PlatformCache scanner. Grounded on achievement_scanner.rs::find_steam_userdata
// in the original source: prefer an explicitly configured user id, else
// auto-detect the first userdata subdirectory that isn't "0" or "ac" (those
// are Steam's anonymous/achievement-cache placeholder ids, never a real
// profile).
package steamuser

import (
	"fmt"
	"os"
	"path/filepath"
)

// Resolve returns the userdata/<id> directory under steamPath. If userID is
// non-empty it is used directly (and must exist); otherwise the first
// eligible subdirectory of userdata/ is chosen.
func Resolve(steamPath, userID string) (string, error) {
	userdata := filepath.Join(steamPath, "userdata")
	info, err := os.Stat(userdata)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("steam userdata folder not found under %s", steamPath)
	}

	if userID != "" {
		candidate := filepath.Join(userdata, userID)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, nil
		}
		return "", fmt.Errorf("steam user id %q not found", userID)
	}

	entries, err := os.ReadDir(userdata)
	if err != nil {
		return "", fmt.Errorf("read userdata: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if name == "0" || name == "ac" {
			continue
		}
		return filepath.Join(userdata, name), nil
	}
	return "", fmt.Errorf("no steam user found under %s", userdata)
}

// LibraryCachePath is the per-game cache file the PlatformCache scanner
// reads: userdata/<id>/config/librarycache/<appid>.json.
func LibraryCachePath(userdataPath string, appID uint32) string {
	return filepath.Join(userdataPath, "config", "librarycache", fmt.Sprintf("%d.json", appID))
}
