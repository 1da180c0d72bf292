package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/achievement-tracker/agent/steamuser"
)

// Paths resolves the on-disk roots each provider scanner probes. Built once
// at startup after steamuser.Resolve picks the active Steam profile.
type Paths struct {
	SteamUserdataPath string // userdata/<id>, from steamuser.Resolve
	AppDataRoot       string // EmulatorA root; one subdir per app id
	PublicDocsRoot    string // EmulatorB root, OnlineFix-shaped layout
}

func (p Paths) platformCachePath(appID uint32) string {
	if p.SteamUserdataPath == "" {
		return ""
	}
	return steamuser.LibraryCachePath(p.SteamUserdataPath, appID)
}

func (p Paths) emulatorAPath(appID uint32) string {
	if p.AppDataRoot == "" {
		return ""
	}
	return filepath.Join(p.AppDataRoot, fmt.Sprintf("%d", appID), "achievements.json")
}

// emulatorBPaths enumerates the case-variant layouts the original source's
// OnlineFix probe tries, in this order: Stats/Achievements.ini,
// Stats/achievements.ini, stats/Achievements.ini, stats/achievements.ini.
func (p Paths) emulatorBPaths(appID uint32) []string {
	if p.PublicDocsRoot == "" {
		return nil
	}
	base := filepath.Join(p.PublicDocsRoot, fmt.Sprintf("%d", appID))
	var out []string
	for _, dir := range []string{"Stats", "stats"} {
		for _, file := range []string{"Achievements.ini", "achievements.ini"} {
			out = append(out, filepath.Join(base, dir, file))
		}
	}
	return out
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}

// firstExisting returns the first path in candidates that exists on disk.
func firstExisting(candidates []string) (string, bool) {
	for _, p := range candidates {
		if fileExists(p) {
			return p, true
		}
	}
	return "", false
}
