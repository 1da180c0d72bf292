package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func touchFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func TestEmulatorBPathsTriesAllFourCaseVariants(t *testing.T) {
	root := t.TempDir()
	p := Paths{PublicDocsRoot: root}
	paths := p.emulatorBPaths(42)
	if len(paths) != 4 {
		t.Fatalf("expected 4 candidate paths, got %d: %v", len(paths), paths)
	}
	want := []string{
		filepath.Join(root, "42", "Stats", "Achievements.ini"),
		filepath.Join(root, "42", "Stats", "achievements.ini"),
		filepath.Join(root, "42", "stats", "Achievements.ini"),
		filepath.Join(root, "42", "stats", "achievements.ini"),
	}
	for _, w := range want {
		found := false
		for _, got := range paths {
			if got == w {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected %s among candidates, got %v", w, paths)
		}
	}
}

func TestFirstExistingPicksEarliestMatch(t *testing.T) {
	root := t.TempDir()
	second := filepath.Join(root, "second.ini")
	third := filepath.Join(root, "third.ini")
	touchFile(t, second)
	touchFile(t, third)

	candidates := []string{filepath.Join(root, "first.ini"), second, third}
	got, ok := firstExisting(candidates)
	if !ok || got != second {
		t.Fatalf("expected the earliest existing path to win, got %q, %v", got, ok)
	}
}

func TestFirstExistingNoMatches(t *testing.T) {
	root := t.TempDir()
	candidates := []string{filepath.Join(root, "a.ini"), filepath.Join(root, "b.ini")}
	if _, ok := firstExisting(candidates); ok {
		t.Fatalf("expected no match when nothing exists")
	}
}

func TestEmulatorBPathsEmptyRootYieldsNoCandidates(t *testing.T) {
	p := Paths{}
	if got := p.emulatorBPaths(42); got != nil {
		t.Fatalf("expected nil candidates with no PublicDocsRoot, got %v", got)
	}
}

func TestPlatformCachePathUsesSteamUserdata(t *testing.T) {
	root := t.TempDir()
	p := Paths{SteamUserdataPath: root}
	got := p.platformCachePath(42)
	want := filepath.Join(root, "config", "librarycache", "42.json")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPlatformCachePathEmptyUserdataYieldsEmptyPath(t *testing.T) {
	p := Paths{}
	if got := p.platformCachePath(42); got != "" {
		t.Fatalf("expected empty path with no SteamUserdataPath, got %q", got)
	}
}
