package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func openTestRepo(t *testing.T) Repo {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "achievements.db")
	sqldb, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })

	ctx := context.Background()
	if err := ApplyMigrations(ctx, sqldb, "migrations"); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	return NewRepo(sqldb)
}

func seedAchievement(t *testing.T, repo Repo, gameID uint32, key string, tag ProviderTag, unlocked bool) int64 {
	t.Helper()
	id, err := repo.Upsert(context.Background(), Achievement{
		GameID:         gameID,
		GameName:       "Test Game",
		AchievementKey: key,
		DisplayName:    key,
		ProviderTag:    tag,
		Unlocked:       unlocked,
	})
	if err != nil {
		t.Fatalf("Upsert(%s): %v", key, err)
	}
	return id
}

func TestUpsertIsIdempotentPerKeyAndProvider(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	id1 := seedAchievement(t, repo, 10, "ACH_A", PlatformCache, false)
	id2 := seedAchievement(t, repo, 10, "ACH_A", PlatformCache, true)
	if id1 != id2 {
		t.Fatalf("expected same row id on repeat upsert, got %d then %d", id1, id2)
	}

	rows, err := repo.ListByGame(ctx, 10)
	if err != nil {
		t.Fatalf("ListByGame: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if !rows[0].Unlocked {
		t.Fatalf("expected second upsert to overwrite unlocked=true")
	}
}

func TestUpsertDistinguishesProviderTag(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	seedAchievement(t, repo, 20, "ACH_A", PlatformCache, false)
	seedAchievement(t, repo, 20, "ACH_A", Manual, true)

	rows, err := repo.ListByGame(ctx, 20)
	if err != nil {
		t.Fatalf("ListByGame: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (one per provider_tag), got %d", len(rows))
	}
}

func TestDeleteByGameLeavesManualRows(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	seedAchievement(t, repo, 30, "ACH_A", PlatformCache, false)
	seedAchievement(t, repo, 30, "ACH_B", Manual, true)

	if err := repo.DeleteByGame(ctx, 30); err != nil {
		t.Fatalf("DeleteByGame: %v", err)
	}

	rows, err := repo.ListByGame(ctx, 30)
	if err != nil {
		t.Fatalf("ListByGame: %v", err)
	}
	if len(rows) != 1 || rows[0].ProviderTag != Manual {
		t.Fatalf("expected only the Manual row to survive, got %+v", rows)
	}
}

func TestExclusionRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	excluded, err := repo.IsExcluded(ctx, 40)
	if err != nil {
		t.Fatalf("IsExcluded: %v", err)
	}
	if excluded {
		t.Fatalf("game should not start excluded")
	}

	if err := repo.AddExclusion(ctx, 40, "Borderless Gaming"); err != nil {
		t.Fatalf("AddExclusion: %v", err)
	}
	excluded, err = repo.IsExcluded(ctx, 40)
	if err != nil {
		t.Fatalf("IsExcluded: %v", err)
	}
	if !excluded {
		t.Fatalf("expected game to be excluded after AddExclusion")
	}

	if err := repo.RemoveExclusion(ctx, 40); err != nil {
		t.Fatalf("RemoveExclusion: %v", err)
	}
	excluded, err = repo.IsExcluded(ctx, 40)
	if err != nil {
		t.Fatalf("IsExcluded: %v", err)
	}
	if excluded {
		t.Fatalf("expected exclusion to be lifted")
	}
}

func TestExportAndRestoreRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	ut := int64(1700000000)
	id, err := repo.Upsert(ctx, Achievement{
		GameID: 50, GameName: "Test Game", AchievementKey: "ACH_A",
		DisplayName: "A", ProviderTag: PlatformCache,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.MarkUnlocked(ctx, id, &ut); err != nil {
		t.Fatalf("MarkUnlocked: %v", err)
	}

	backup, err := repo.ExportUnlockedForGame(ctx, 50)
	if err != nil {
		t.Fatalf("ExportUnlockedForGame: %v", err)
	}
	if got, ok := backup["ACH_A"]; !ok || got.UnlockTime != ut {
		t.Fatalf("unexpected export contents: %+v", backup)
	}

	// Simulate a wipe and restore.
	if err := repo.DeleteByGame(ctx, 50); err != nil {
		t.Fatalf("DeleteByGame: %v", err)
	}
	if _, err := repo.Upsert(ctx, Achievement{
		GameID: 50, GameName: "Test Game", AchievementKey: "ACH_A",
		DisplayName: "A", ProviderTag: PlatformCache,
	}); err != nil {
		t.Fatalf("re-seed Upsert: %v", err)
	}

	n, err := repo.RestoreFromBackup(ctx, 50, backup)
	if err != nil {
		t.Fatalf("RestoreFromBackup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row restored, got %d", n)
	}

	rows, err := repo.ListByGame(ctx, 50)
	if err != nil {
		t.Fatalf("ListByGame: %v", err)
	}
	if !rows[0].Unlocked || rows[0].UnlockTime == nil || *rows[0].UnlockTime != ut {
		t.Fatalf("expected restored row to be unlocked at %d, got %+v", ut, rows[0])
	}
}

func TestSummarizeAllGroupsByGameAndProvider(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	seedAchievement(t, repo, 60, "ACH_A", PlatformCache, true)
	seedAchievement(t, repo, 60, "ACH_B", PlatformCache, false)
	seedAchievement(t, repo, 60, "ACH_C", Manual, true)

	summaries, err := repo.SummarizeAll(ctx)
	if err != nil {
		t.Fatalf("SummarizeAll: %v", err)
	}

	var platformCacheCount, manualCount int
	for _, s := range summaries {
		if s.GameID != 60 {
			continue
		}
		switch s.ProviderTag {
		case PlatformCache:
			platformCacheCount = s.Total
			if s.UnlockedCount != 1 {
				t.Fatalf("expected 1 unlocked PlatformCache row, got %d", s.UnlockedCount)
			}
		case Manual:
			manualCount = s.Total
		}
	}
	if platformCacheCount != 2 {
		t.Fatalf("expected 2 PlatformCache rows, got %d", platformCacheCount)
	}
	if manualCount != 1 {
		t.Fatalf("expected 1 Manual row, got %d", manualCount)
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "achievements.db")
	sqldb, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func(db *sql.DB) { _ = db.Close() }(sqldb)

	ctx := context.Background()
	if err := ApplyMigrations(ctx, sqldb, "migrations"); err != nil {
		t.Fatalf("first ApplyMigrations: %v", err)
	}
	if err := ApplyMigrations(ctx, sqldb, "migrations"); err != nil {
		t.Fatalf("second ApplyMigrations should be a no-op, got: %v", err)
	}
}
