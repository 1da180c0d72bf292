package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/achievement-tracker/agent/enginerr"
	"github.com/achievement-tracker/agent/steamapi"
	"github.com/achievement-tracker/agent/store"
)

// PlatformCacheScanner reads the platform's per-game user cache: a JSON
// array of [tag, body] pairs, one of which is tagged "achievements" and
// holds vecHighlight / vecUnachieved / vecAchievedHidden (§6). Grounded on
// achievement_scanner.rs::parse_librarycache_achievements.
type PlatformCacheScanner struct {
	FilePath string
}

func (s *PlatformCacheScanner) Tag() store.ProviderTag { return store.PlatformCache }

type cacheEntryJSON struct {
	StrID      string `json:"strID"`
	BAchieved  bool   `json:"bAchieved"`
	RtUnlocked int64  `json:"rtUnlocked"`
}

type cacheBody struct {
	Data struct {
		VecHighlight      []cacheEntryJSON `json:"vecHighlight"`
		VecUnachieved     []cacheEntryJSON `json:"vecUnachieved"`
		VecAchievedHidden []cacheEntryJSON `json:"vecAchievedHidden"`
	} `json:"data"`
}

// mergedState parses the cache file and returns, per achievement_key,
// whether it's achieved and (if known) its unlock time. If the same key
// appears in both vecUnachieved and vecAchievedHidden, achieved wins —
// vecAchievedHidden is processed last so it overrides (§4.3, boundary
// behavior in §8).
func (s *PlatformCacheScanner) mergedState() (achieved map[string]bool, unlockTime map[string]*int64, err error) {
	raw, err := os.ReadFile(s.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, enginerr.Wrap(enginerr.ErrNotFound, err)
		}
		return nil, nil, enginerr.Wrap(enginerr.ErrParse, err)
	}

	var pairs []json.RawMessage
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, nil, enginerr.Wrap(enginerr.ErrParse, err)
	}

	var body *cacheBody
	for _, pair := range pairs {
		var tuple []json.RawMessage
		if err := json.Unmarshal(pair, &tuple); err != nil || len(tuple) != 2 {
			continue
		}
		var tag string
		if err := json.Unmarshal(tuple[0], &tag); err != nil || tag != "achievements" {
			continue
		}
		var b cacheBody
		if err := json.Unmarshal(tuple[1], &b); err != nil {
			return nil, nil, enginerr.Wrap(enginerr.ErrParse, fmt.Errorf("achievements body: %w", err))
		}
		body = &b
		break
	}
	if body == nil {
		return nil, nil, enginerr.Wrap(enginerr.ErrParse, fmt.Errorf("no achievements entry in %s", s.FilePath))
	}

	achieved = make(map[string]bool)
	unlockTime = make(map[string]*int64)

	for _, e := range body.Data.VecHighlight {
		achieved[e.StrID] = e.BAchieved
		unlockTime[e.StrID] = timeOrNil(e.RtUnlocked)
	}
	for _, e := range body.Data.VecUnachieved {
		if achieved[e.StrID] {
			continue // an achieved entry already recorded for this key wins
		}
		achieved[e.StrID] = false
		unlockTime[e.StrID] = nil
	}
	for _, e := range body.Data.VecAchievedHidden {
		achieved[e.StrID] = true
		unlockTime[e.StrID] = timeOrNil(e.RtUnlocked)
	}
	return achieved, unlockTime, nil
}

func timeOrNil(rt int64) *int64 {
	if rt > 0 {
		t := rt
		return &t
	}
	return nil
}

func (s *PlatformCacheScanner) FullScan(ctx context.Context, gameID uint32, gameName string, schema []steamapi.SchemaEntry, rates map[string]float64) ([]store.Achievement, error) {
	achieved, unlockTime, err := s.mergedState()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Unix()
	out := make([]store.Achievement, 0, len(schema))
	for _, def := range schema {
		a := store.Achievement{
			GameID:         gameID,
			GameName:       gameName,
			AchievementKey: def.Key,
			DisplayName:    def.DisplayName,
			Description:    def.Description,
			IconURL:        def.Icon,
			IconGrayURL:    def.IconGray,
			Hidden:         def.Hidden,
			ProviderTag:    store.PlatformCache,
			LastUpdated:    now,
		}
		if achieved[def.Key] {
			a.Unlocked = true
			a.UnlockTime = unlockTime[def.Key]
		}
		if pct, ok := rates[def.Key]; ok {
			v := pct
			a.GlobalUnlockPct = &v
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *PlatformCacheScanner) ExtractUnlocks(ctx context.Context) ([]Unlock, error) {
	achieved, unlockTime, err := s.mergedState()
	if err != nil {
		return nil, err
	}
	out := make([]Unlock, 0, len(achieved))
	for key, ok := range achieved {
		if !ok {
			continue
		}
		out = append(out, Unlock{Key: key, UnlockTime: unlockTime[key]})
	}
	return out, nil
}
