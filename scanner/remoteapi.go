package scanner

import (
	"context"
	"errors"
	"time"

	"github.com/achievement-tracker/agent/enginerr"
	"github.com/achievement-tracker/agent/steamapi"
	"github.com/achievement-tracker/agent/store"
)

// RemoteApiScanner satisfies Source directly against the Remote Schema
// Client instead of a local file: FullScan calls GetPlayerProgress, while
// ExtractUnlocks always returns ErrUnavailable. It is the arbiter's fallback
// candidate when no local
// provider file exists, and C7's no-watch fallback (§4.7) — the watcher
// never binds to it.
type RemoteApiScanner struct {
	Client   *steamapi.Client
	PlayerID string
}

func (s *RemoteApiScanner) Tag() store.ProviderTag { return store.RemoteApi }

func (s *RemoteApiScanner) FullScan(ctx context.Context, gameID uint32, gameName string, schema []steamapi.SchemaEntry, rates map[string]float64) ([]store.Achievement, error) {
	progress, err := s.Client.GetPlayerProgress(ctx, gameID, s.PlayerID)
	if err != nil && !errors.Is(err, enginerr.ErrUnavailable) {
		return nil, err
	}
	// A private or unowned profile is not a failure, so fall through
	// with an empty progress set. synthesizeRows renders that as every
	// achievement locked.
	return synthesizeRows(gameID, gameName, schema, progress, rates), nil
}

// synthesizeRows builds one row per schema entry, marking it unlocked only
// when progress carries a matching unlocked key. An empty or nil progress
// (the Unavailable case) yields every row locked.
func synthesizeRows(gameID uint32, gameName string, schema []steamapi.SchemaEntry, progress []steamapi.PlayerAch, rates map[string]float64) []store.Achievement {
	byKey := make(map[string]steamapi.PlayerAch, len(progress))
	for _, p := range progress {
		byKey[p.Key] = p
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
			ProviderTag:    store.RemoteApi,
			LastUpdated:    now,
		}
		if p, ok := byKey[def.Key]; ok && p.Unlocked {
			a.Unlocked = true
			a.UnlockTime = p.UnlockTime
		}
		if pct, ok := rates[def.Key]; ok {
			v := pct
			a.GlobalUnlockPct = &v
		}
		out = append(out, a)
	}
	return out
}

// ExtractUnlocks is unreachable in normal operation — the watcher never
// binds a RemoteApi provider, so nothing ever calls this. Implemented for
// interface completeness and so an arbiter dry-run never panics on a type
// assertion.
func (s *RemoteApiScanner) ExtractUnlocks(ctx context.Context) ([]Unlock, error) {
	return nil, enginerr.Wrap(enginerr.ErrUnavailable, errNoReparse)
}

var errNoReparse = errors.New("RemoteApi scanner has no local file to reparse")
