package scanner

import (
	"context"
	"testing"
)

const emulatorAJSON = `{
  "ACH_FIRST_KILL": {"earned": true, "earned_time": 1700000001},
  "ACH_WIN_GAME": {"earned": false}
}`

func TestEmulatorAFullScan(t *testing.T) {
	path := writeFile(t, "achievements.json", emulatorAJSON)
	s := &EmulatorAScanner{FilePath: path}

	out, err := s.FullScan(context.Background(), 100, "Test Game", testSchema(), nil)
	if err != nil {
		t.Fatalf("FullScan: %v", err)
	}
	byKey := make(map[string]bool)
	for _, a := range out {
		byKey[a.AchievementKey] = a.Unlocked
	}
	if !byKey["ACH_FIRST_KILL"] || byKey["ACH_WIN_GAME"] {
		t.Fatalf("unexpected unlock state: %+v", byKey)
	}
}

func TestEmulatorAFallsBackToKeyWhenDisplayNameEmpty(t *testing.T) {
	path := writeFile(t, "achievements.json", `{}`)
	s := &EmulatorAScanner{FilePath: path}

	schema := testSchemaWithBlankDisplayName()
	out, err := s.FullScan(context.Background(), 100, "Test Game", schema, nil)
	if err != nil {
		t.Fatalf("FullScan: %v", err)
	}
	if out[0].DisplayName != out[0].AchievementKey {
		t.Fatalf("expected display name to fall back to key, got %q", out[0].DisplayName)
	}
}

func TestEmulatorAExtractUnlocks(t *testing.T) {
	path := writeFile(t, "achievements.json", emulatorAJSON)
	s := &EmulatorAScanner{FilePath: path}

	unlocks, err := s.ExtractUnlocks(context.Background())
	if err != nil {
		t.Fatalf("ExtractUnlocks: %v", err)
	}
	if len(unlocks) != 1 || unlocks[0].Key != "ACH_FIRST_KILL" {
		t.Fatalf("expected exactly ACH_FIRST_KILL, got %+v", unlocks)
	}
}
