package store

import "time"

// ErrNoRows (declared in repo.go) is how empty-result lookups surface;
// callers that want an enginerr-typed error wrap this themselves (store has
// no opinion on recoverability, same as the teacher's db.ErrNoRows
// re-export).

// ProviderTag identifies which provider produced a row. At most one
// non-Manual tag may be present per game at a time (§3 uniqueness
// invariant); Manual rows are additive.
type ProviderTag string

const (
	PlatformCache ProviderTag = "PlatformCache"
	EmulatorA     ProviderTag = "EmulatorA"
	EmulatorB     ProviderTag = "EmulatorB"
	RemoteApi     ProviderTag = "RemoteApi"
	Manual        ProviderTag = "Manual"
)

// Priority returns the fixed tie-break order from §4.4: PlatformCache >
// EmulatorA > EmulatorB > RemoteApi. Lower is higher priority. Manual is
// never arbitrated so it sorts last.
func (p ProviderTag) Priority() int {
	switch p {
	case PlatformCache:
		return 0
	case EmulatorA:
		return 1
	case EmulatorB:
		return 2
	case RemoteApi:
		return 3
	default:
		return 4
	}
}

// Achievement is one row per (game_id, achievement_key, provider_tag).
type Achievement struct {
	ID              int64       `json:"id"`
	GameID          uint32      `json:"game_id"`
	GameName        string      `json:"game_name"`
	AchievementKey  string      `json:"achievement_key"`
	DisplayName     string      `json:"display_name"`
	Description     string      `json:"description"`
	IconURL         string      `json:"icon_url,omitempty"`
	IconGrayURL     string      `json:"icon_gray_url,omitempty"`
	Hidden          bool        `json:"hidden"`
	Unlocked        bool        `json:"unlocked"`
	UnlockTime      *int64      `json:"unlock_time,omitempty"` // epoch seconds; nil unless Unlocked && known
	ProviderTag     ProviderTag `json:"provider_tag"`
	LastUpdated     int64       `json:"last_updated"` // epoch seconds
	GlobalUnlockPct *float64    `json:"global_unlock_pct,omitempty"`
}

// GameSummary is derived, never stored: per (game, provider_tag) counts.
type GameSummary struct {
	GameID         uint32      `json:"game_id"`
	ProviderTag    ProviderTag `json:"provider_tag"`
	Total          int         `json:"total"`
	UnlockedCount  int         `json:"unlocked_count"`
	MaxLastUpdated int64       `json:"max_last_updated"`
}

// Exclusion marks a game the engine must never watch or auto-track.
type Exclusion struct {
	GameID uint32 `json:"game_id"`
	Name   string `json:"name"`
}

// UnlockedExport is the stable backup format for one achievement key:
// export_unlocked_for_game() → { achievement_key: { UnlockTime } }.
type UnlockedExport struct {
	UnlockTime int64 `json:"UnlockTime"`
}

// FullExportEntry is one element of export_all()'s JSON array.
type FullExportEntry struct {
	Game          GameSummary   `json:"game"`
	Achievements  []Achievement `json:"achievements"`
}

func nowEpoch() int64 { return time.Now().UTC().Unix() }
