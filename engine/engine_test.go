package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/achievement-tracker/agent/lifecycle"
	"github.com/achievement-tracker/agent/scanner"
	"github.com/achievement-tracker/agent/steamapi"
	"github.com/achievement-tracker/agent/store"
	"github.com/achievement-tracker/agent/watch"
)

func openTestRepo(t *testing.T) store.Repo {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "achievements.db")
	sqldb, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	if err := store.ApplyMigrations(context.Background(), sqldb, "../store/migrations"); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	return store.NewRepo(sqldb)
}

func newTestEngine(t *testing.T, repo store.Repo, paths Paths) *Engine {
	t.Helper()
	lc := lifecycle.NewMonitor(repo, nil, 0)
	return New(repo, steamapi.New(), paths, lc, newFakeSink(), "")
}

type fakeSink struct{}

func newFakeSink() *fakeSink { return &fakeSink{} }
func (f *fakeSink) Publish(ev watch.UnlockEvent) {}

func TestDiscoveryCandidatesAlwaysIncludesRemoteApi(t *testing.T) {
	repo := openTestRepo(t)
	e := newTestEngine(t, repo, Paths{})

	candidates := e.discoveryCandidates(42)
	if len(candidates) != 1 {
		t.Fatalf("expected only the RemoteApi fallback with no backing paths, got %d", len(candidates))
	}
	if candidates[0].Source.Tag() != store.RemoteApi {
		t.Fatalf("expected RemoteApi, got %v", candidates[0].Source.Tag())
	}
}

func TestDiscoveryCandidatesIncludesExistingProviderFiles(t *testing.T) {
	repo := openTestRepo(t)
	root := t.TempDir()

	steamRoot := filepath.Join(root, "steam")
	touchFile(t, filepath.Join(steamRoot, "config", "librarycache", "42.json"))

	paths := Paths{SteamUserdataPath: steamRoot}
	e := newTestEngine(t, repo, paths)

	candidates := e.discoveryCandidates(42)
	var tags []store.ProviderTag
	for _, c := range candidates {
		tags = append(tags, c.Source.Tag())
	}
	if len(tags) != 2 || tags[0] != store.PlatformCache || tags[1] != store.RemoteApi {
		t.Fatalf("expected [PlatformCache, RemoteApi], got %v", tags)
	}
}

func TestResolveBoundSourceTrustsBoundTagOnly(t *testing.T) {
	repo := openTestRepo(t)
	root := t.TempDir()

	emuARoot := filepath.Join(root, "emuA")
	touchFile(t, filepath.Join(emuARoot, "42", "achievements.json"))
	steamRoot := filepath.Join(root, "steam") // no librarycache file written

	paths := Paths{SteamUserdataPath: steamRoot, AppDataRoot: emuARoot}
	e := newTestEngine(t, repo, paths)

	// Bound to PlatformCache, whose file does not exist: must not fall
	// back to EmulatorA even though that file exists, because onStarted
	// trusts the already-bound provider rather than re-arbitrating.
	_, _, ok := e.resolveBoundSource(42, store.PlatformCache)
	if ok {
		t.Fatalf("expected resolveBoundSource to fail for a missing PlatformCache file")
	}

	path, src, ok := e.resolveBoundSource(42, store.EmulatorA)
	if !ok || src.Tag() != store.EmulatorA {
		t.Fatalf("expected EmulatorA to resolve when bound directly, got %q, %v", path, ok)
	}
}

func TestResolveBoundSourceNeverWatchesRemoteApiOrManual(t *testing.T) {
	repo := openTestRepo(t)
	e := newTestEngine(t, repo, Paths{})

	if _, _, ok := e.resolveBoundSource(42, store.RemoteApi); ok {
		t.Fatalf("RemoteApi must never resolve to a watchable file")
	}
	if _, _, ok := e.resolveBoundSource(42, store.Manual); ok {
		t.Fatalf("Manual must never resolve to a watchable file")
	}
}

func TestOnStartedSkipsExcludedGames(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	if err := repo.AddExclusion(ctx, 42, "Test Game"); err != nil {
		t.Fatalf("AddExclusion: %v", err)
	}
	if _, err := repo.Upsert(ctx, store.Achievement{
		GameID: 42, GameName: "Test Game", AchievementKey: "A", DisplayName: "A", ProviderTag: store.Manual,
	}); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	e := newTestEngine(t, repo, Paths{})
	e.onStarted(ctx, 42, "Test Game")

	e.mu.Lock()
	_, watched := e.watched[42]
	e.mu.Unlock()
	if watched {
		t.Fatalf("expected an excluded game never to be watched")
	}
}

func TestOnStartedSkipsUntrackedGames(t *testing.T) {
	repo := openTestRepo(t)
	e := newTestEngine(t, repo, Paths{})

	e.onStarted(context.Background(), 99, "Untracked Game")

	e.mu.Lock()
	_, watched := e.watched[99]
	_, pending := e.pending[99]
	e.mu.Unlock()
	if watched || pending {
		t.Fatalf("expected an untracked game to be left alone entirely")
	}
}

func TestOnStartedWithMissingProviderFileGoesPending(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	if _, err := repo.Upsert(ctx, store.Achievement{
		GameID: 7, GameName: "Test Game", AchievementKey: "A", DisplayName: "A", ProviderTag: store.PlatformCache,
	}); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	e := newTestEngine(t, repo, Paths{}) // no paths configured, so the file never exists
	e.onStarted(ctx, 7, "Test Game")

	e.mu.Lock()
	_, pending := e.pending[7]
	e.mu.Unlock()
	if !pending {
		t.Fatalf("expected the game to be parked in pending when its bound file is missing")
	}
}

func TestOnStartedStartsWatchWhenFileExists(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	root := t.TempDir()
	emuARoot := filepath.Join(root, "emuA")
	touchFile(t, filepath.Join(emuARoot, "7", "achievements.json"))
	if err := os.WriteFile(filepath.Join(emuARoot, "7", "achievements.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write achievements.json: %v", err)
	}

	if _, err := repo.Upsert(ctx, store.Achievement{
		GameID: 7, GameName: "Test Game", AchievementKey: "A", DisplayName: "A", ProviderTag: store.EmulatorA,
	}); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	e := newTestEngine(t, repo, Paths{AppDataRoot: emuARoot})
	e.onStarted(ctx, 7, "Test Game")

	e.mu.Lock()
	b, watched := e.watched[7]
	e.mu.Unlock()
	if !watched {
		t.Fatalf("expected the game to be watched once its provider file exists")
	}
	b.Watcher.Stop()
}

func TestOnEndedStopsWatcherAndClearsPending(t *testing.T) {
	repo := openTestRepo(t)
	e := newTestEngine(t, repo, Paths{})
	e.mu.Lock()
	e.pending[11] = &pendingEntry{name: "Test Game"}
	e.mu.Unlock()

	path := filepath.Join(t.TempDir(), "achievements.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write achievements.json: %v", err)
	}
	w := watch.New(11, "Test Game", path, &scanner.EmulatorAScanner{FilePath: path}, repo, nil, newFakeSink(), 0)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("watcher Start: %v", err)
	}
	e.mu.Lock()
	e.watched[11] = &WatchBinding{GameID: 11, GameName: "Test Game", Watcher: w}
	e.mu.Unlock()

	e.onEnded(11)

	e.mu.Lock()
	_, pending := e.pending[11]
	_, watched := e.watched[11]
	e.mu.Unlock()
	if pending {
		t.Fatalf("expected onEnded to clear the pending entry")
	}
	if watched {
		t.Fatalf("expected onEnded to drop the watched entry")
	}
}

func TestRemoveGameDeletesNonManualRowsOnly(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	if _, err := repo.Upsert(ctx, store.Achievement{
		GameID: 20, GameName: "Test Game", AchievementKey: "A", DisplayName: "A", ProviderTag: store.PlatformCache,
	}); err != nil {
		t.Fatalf("seed PlatformCache row: %v", err)
	}
	if _, err := repo.Upsert(ctx, store.Achievement{
		GameID: 20, GameName: "Test Game", AchievementKey: "B", DisplayName: "B", ProviderTag: store.Manual,
	}); err != nil {
		t.Fatalf("seed Manual row: %v", err)
	}

	e := newTestEngine(t, repo, Paths{})
	if err := e.RemoveGame(ctx, 20); err != nil {
		t.Fatalf("RemoveGame: %v", err)
	}

	rows, err := repo.ListByGame(ctx, 20)
	if err != nil {
		t.Fatalf("ListByGame: %v", err)
	}
	if len(rows) != 1 || rows[0].ProviderTag != store.Manual {
		t.Fatalf("expected only the Manual row to survive RemoveGame, got %+v", rows)
	}
}

func TestScannerPathReturnsBackingFile(t *testing.T) {
	if got := scannerPath(&scanner.PlatformCacheScanner{FilePath: "/a/b.json"}); got != "/a/b.json" {
		t.Fatalf("got %q", got)
	}
	if got := scannerPath(&scanner.RemoteApiScanner{}); got != "" {
		t.Fatalf("expected empty path for RemoteApi, got %q", got)
	}
}
