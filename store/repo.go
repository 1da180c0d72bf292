package store

import (
	"context"
	"database/sql"
)

// ErrNoRows re-exports sql.ErrNoRows so callers can check store.ErrNoRows
// without importing database/sql, matching the teacher's db.ErrNoRows
// convention.
var ErrNoRows = sql.ErrNoRows

// Repo is the Achievement Store (C1) operation set from §4.1. Callers share
// the one *sql.DB that Open limits to a single connection, so every
// statement, read or write, is serialized through it; a read waits for an
// in-flight write and vice versa.
type Repo interface {
	// Upsert inserts ach or, on a (game_id, achievement_key, provider_tag)
	// conflict, overwrites all mutable fields. Returns the row id.
	Upsert(ctx context.Context, ach Achievement) (int64, error)

	// ListByGame returns every row for gameID ordered by achievement_key.
	ListByGame(ctx context.Context, gameID uint32) ([]Achievement, error)

	// SummarizeAll groups every row by (game_id, provider_tag).
	SummarizeAll(ctx context.Context) ([]GameSummary, error)

	// MarkUnlocked sets unlocked=true, unlock_time=unlockTime, and
	// refreshes last_updated for the given row id.
	MarkUnlocked(ctx context.Context, rowID int64, unlockTime *int64) error

	// DeleteByGame bulk-deletes every non-Manual row for gameID. Callers
	// must treat this as non-transactional with respect to concurrent
	// watchers (§5) — it is the caller's job to stop watching gameID
	// first if it cares about a clean cutover.
	DeleteByGame(ctx context.Context, gameID uint32) error

	AddExclusion(ctx context.Context, gameID uint32, name string) error
	ListExclusions(ctx context.Context) ([]Exclusion, error)
	RemoveExclusion(ctx context.Context, gameID uint32) error
	IsExcluded(ctx context.Context, gameID uint32) (bool, error)

	// ExportAll groups every achievement by game for the full portable
	// export format.
	ExportAll(ctx context.Context) ([]FullExportEntry, error)

	// ExportUnlockedForGame returns achievement_key -> {UnlockTime} for
	// every unlocked row of gameID that has a known unlock time, the stable
	// backup format. Unlocked rows without a time are left out.
	ExportUnlockedForGame(ctx context.Context, gameID uint32) (map[string]UnlockedExport, error)

	// RestoreFromBackup sets matching rows' unlocked=true with the
	// supplied times; rows absent from backup are left untouched. Returns
	// the number of rows updated.
	RestoreFromBackup(ctx context.Context, gameID uint32, backup map[string]UnlockedExport) (int, error)
}
