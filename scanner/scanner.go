// Package scanner implements the Provider Scanners (C3): pure functions
// that turn one well-known on-disk (or schema-shaped) snapshot into a
// normalized achievement list. Each variant is grounded on a section of
// achievement_scanner.rs in the original source.
//
// §9 models the three variants as a tagged sum with a common operation set;
// Go expresses that as the Source interface below, with one concrete type
// per provider.
package scanner

import (
	"context"

	"github.com/achievement-tracker/agent/steamapi"
	"github.com/achievement-tracker/agent/store"
)

// Unlock is one currently-unlocked entry as extracted directly from a
// provider file, independent of schema synthesis. Used by the Unlock
// Watcher (C5) for reparse (§4.5 step 1).
type Unlock struct {
	Key        string
	UnlockTime *int64
}

// Source is the common operation set every provider scanner implements.
type Source interface {
	// Tag identifies which provider_tag this scanner produces.
	Tag() store.ProviderTag

	// FullScan reads the provider file (if any) and synthesizes one
	// Achievement per schema entry, defaulting to locked for anything the
	// file doesn't mention. rates is optional (nil is fine) and fills
	// GlobalUnlockPct when present.
	FullScan(ctx context.Context, gameID uint32, gameName string, schema []steamapi.SchemaEntry, rates map[string]float64) ([]store.Achievement, error)

	// ExtractUnlocks re-reads the provider file and returns only the
	// currently-unlocked entries, keyed the same way FullScan would key
	// them. Used by the watcher on every reparse; does not touch the
	// store.
	ExtractUnlocks(ctx context.Context) ([]Unlock, error)
}
