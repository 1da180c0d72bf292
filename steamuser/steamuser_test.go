package steamuser

import (
	"os"
	"path/filepath"
	"testing"
)

func mkUserdataDir(t *testing.T, steamPath string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := os.MkdirAll(filepath.Join(steamPath, "userdata", id), 0o755); err != nil {
			t.Fatalf("mkdir userdata/%s: %v", id, err)
		}
	}
}

func TestResolveExplicitUserIDSucceeds(t *testing.T) {
	steamPath := t.TempDir()
	mkUserdataDir(t, steamPath, "0", "76561198")

	got, err := Resolve(steamPath, "76561198")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(steamPath, "userdata", "76561198")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveExplicitUserIDNotFound(t *testing.T) {
	steamPath := t.TempDir()
	mkUserdataDir(t, steamPath, "0")

	if _, err := Resolve(steamPath, "99999"); err == nil {
		t.Fatalf("expected an error for a missing explicit user id")
	}
}

func TestResolveAutoDetectsSkippingPlaceholders(t *testing.T) {
	steamPath := t.TempDir()
	mkUserdataDir(t, steamPath, "0", "ac", "76561198")

	got, err := Resolve(steamPath, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(steamPath, "userdata", "76561198")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveAutoDetectNoEligibleUserFails(t *testing.T) {
	steamPath := t.TempDir()
	mkUserdataDir(t, steamPath, "0", "ac")

	if _, err := Resolve(steamPath, ""); err == nil {
		t.Fatalf("expected an error when only placeholder ids exist")
	}
}

func TestResolveMissingUserdataFolderFails(t *testing.T) {
	steamPath := t.TempDir()
	if _, err := Resolve(steamPath, ""); err == nil {
		t.Fatalf("expected an error when the userdata folder does not exist")
	}
}

func TestLibraryCachePathJoinsAppID(t *testing.T) {
	got := LibraryCachePath("/home/user/.steam/userdata/76561198", 440)
	want := filepath.Join("/home/user/.steam/userdata/76561198", "config", "librarycache", "440.json")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
