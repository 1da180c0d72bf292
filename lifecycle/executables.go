package lifecycle

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// GameExe is the value half of known_executables: which game an exe
// basename belongs to.
type GameExe struct {
	GameID   uint32
	GameName string
}

// InstalledGame is one entry from the platform's on-disk install
// manifest, the seed for a shallow executable scan.
type InstalledGame struct {
	GameID     uint32
	GameName   string
	InstallDir string
}

// maxScanDepth is the shallow-scan recursion limit from §4.6.
const maxScanDepth = 3

var exclusionPatterns = []string{
	"unins*", "*crash*", "*report*", "setup*", "*launcher*", "*redist*",
}

// BuildKnownExecutables enumerates every installed game's directory (depth
// <= 3) for .exe files, filters out uninstallers/crash reporters/setup
// bundles/launchers/redistributables by name, and returns a lowercased
// exe-basename -> game lookup. Built once at C6 startup; the returned map
// is never mutated after construction (§5 "lock-free reads").
func BuildKnownExecutables(games []InstalledGame) map[string]GameExe {
	out := make(map[string]GameExe)
	for _, g := range games {
		for _, exe := range scanInstallDir(g.InstallDir) {
			base := strings.ToLower(filepath.Base(exe))
			out[base] = GameExe{GameID: g.GameID, GameName: g.GameName}
		}
	}
	return out
}

func scanInstallDir(root string) []string {
	if root == "" {
		return nil
	}
	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))
	var found []string

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal to the scan
		}
		depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
		if d.IsDir() {
			if path != root && depth > maxScanDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if depth > maxScanDepth {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".exe") {
			return nil
		}
		if isExcludedExeName(d.Name()) {
			return nil
		}
		found = append(found, path)
		return nil
	})
	return found
}

func isExcludedExeName(name string) bool {
	lower := strings.ToLower(name)
	for _, pat := range exclusionPatterns {
		if ok, _ := filepath.Match(pat, lower); ok {
			return true
		}
	}
	return false
}
