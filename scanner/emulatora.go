package scanner

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/achievement-tracker/agent/enginerr"
	"github.com/achievement-tracker/agent/steamapi"
	"github.com/achievement-tracker/agent/store"
)

// EmulatorAScanner reads a JSON object keyed by achievement identifier:
// {"key": {"earned": bool, "earned_time": int?}}. Each entry maps 1:1 to a
// schema entry by achievement_key. Grounded on
// achievement_scanner.rs::scan_goldberg_achievements.
type EmulatorAScanner struct {
	FilePath string
}

func (s *EmulatorAScanner) Tag() store.ProviderTag { return store.EmulatorA }

type emulatorAEntry struct {
	Earned     bool   `json:"earned"`
	EarnedTime *int64 `json:"earned_time"`
}

func (s *EmulatorAScanner) parse() (map[string]emulatorAEntry, error) {
	raw, err := os.ReadFile(s.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, enginerr.Wrap(enginerr.ErrNotFound, err)
		}
		return nil, enginerr.Wrap(enginerr.ErrParse, err)
	}
	var m map[string]emulatorAEntry
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, enginerr.Wrap(enginerr.ErrParse, err)
	}
	return m, nil
}

func (s *EmulatorAScanner) FullScan(ctx context.Context, gameID uint32, gameName string, schema []steamapi.SchemaEntry, rates map[string]float64) ([]store.Achievement, error) {
	entries, err := s.parse()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Unix()
	out := make([]store.Achievement, 0, len(schema))
	for _, def := range schema {
		displayName := def.DisplayName
		if displayName == "" {
			displayName = def.Key // fall back to the key itself per §4.3
		}
		a := store.Achievement{
			GameID:         gameID,
			GameName:       gameName,
			AchievementKey: def.Key,
			DisplayName:    displayName,
			Description:    def.Description,
			IconURL:        def.Icon,
			IconGrayURL:    def.IconGray,
			Hidden:         def.Hidden,
			ProviderTag:    store.EmulatorA,
			LastUpdated:    now,
		}
		if e, ok := entries[def.Key]; ok && e.Earned {
			a.Unlocked = true
			a.UnlockTime = e.EarnedTime
		}
		if pct, ok := rates[def.Key]; ok {
			v := pct
			a.GlobalUnlockPct = &v
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *EmulatorAScanner) ExtractUnlocks(ctx context.Context) ([]Unlock, error) {
	entries, err := s.parse()
	if err != nil {
		return nil, err
	}
	out := make([]Unlock, 0, len(entries))
	for key, e := range entries {
		if !e.Earned {
			continue
		}
		out = append(out, Unlock{Key: key, UnlockTime: e.EarnedTime})
	}
	return out, nil
}
