// Command agentd is the Achievement Tracking Engine's long-running agent
// process: it wires the Achievement Store, Remote Schema Client, Game
// Lifecycle Monitor, Unlock Watcher, and Engine Orchestrator together and
// runs until SIGINT/SIGTERM. Grounded on the teacher's main.go wiring
// order (open db -> migrate -> construct repo -> construct app), adapted
// from "serve HTTP forever" to "run the engine until signaled."
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/achievement-tracker/agent/config"
	"github.com/achievement-tracker/agent/engine"
	"github.com/achievement-tracker/agent/lifecycle"
	"github.com/achievement-tracker/agent/steamapi"
	"github.com/achievement-tracker/agent/steamuser"
	"github.com/achievement-tracker/agent/store"
	"github.com/achievement-tracker/agent/watch"
)

func main() {
	sqlDB, err := store.Open("data/achievements.db")
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func(db *sql.DB) { _ = db.Close() }(sqlDB)

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = store.ApplyMigrations(migrateCtx, sqlDB, "store/migrations")
	migrateCancel()
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}

	repo := store.NewRepo(sqlDB)
	client := steamapi.New()

	steamPath := os.Getenv("STEAM_PATH")
	userdataPath, err := steamuser.Resolve(steamPath, os.Getenv("STEAM_USER_ID"))
	if err != nil {
		log.Printf("steam userdata resolution failed, PlatformCache scanning disabled: %v", err)
	}

	paths := engine.Paths{
		SteamUserdataPath: userdataPath,
		AppDataRoot:       os.Getenv("EMULATOR_A_ROOT"),
		PublicDocsRoot:    os.Getenv("EMULATOR_B_ROOT"),
	}

	installed := loadInstalledGames(os.Getenv("INSTALLED_GAMES_MANIFEST"))
	known := lifecycle.BuildKnownExecutables(installed)
	monitor := lifecycle.NewMonitor(repo, known, config.LifecyclePollInterval())

	eng := engine.New(repo, client, paths, monitor, logSink{}, os.Getenv("STEAM_USER_ID"))
	server := engine.NewServer(eng)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go eng.Run(runCtx)

	go func() {
		addr := os.Getenv("AGENTD_HTTP_ADDR")
		if addr == "" {
			addr = ":8090"
		}
		if err := server.Start(addr); err != nil {
			log.Printf("http control surface stopped: %v", err)
		}
	}()

	<-runCtx.Done()
	log.Print("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}

// loadInstalledGames reads an optional JSON manifest of
// {game_id, game_name, install_dir} entries, the seed for C6's shallow
// executable scan. The platform's actual on-disk manifest format is an
// external collaborator (§1 out-of-scope list); this is the seam an
// operator's own manifest exporter feeds.
func loadInstalledGames(manifestPath string) []lifecycle.InstalledGame {
	if manifestPath == "" {
		return nil
	}
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Printf("install manifest unreadable, known_executables will be empty: %v", err)
		return nil
	}
	var entries []struct {
		GameID     uint32 `json:"game_id"`
		GameName   string `json:"game_name"`
		InstallDir string `json:"install_dir"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		log.Printf("install manifest malformed: %v", err)
		return nil
	}
	out := make([]lifecycle.InstalledGame, 0, len(entries))
	for _, e := range entries {
		out = append(out, lifecycle.InstalledGame{GameID: e.GameID, GameName: e.GameName, InstallDir: e.InstallDir})
	}
	return out
}

// logSink is the default notification collaborator: it logs unlocks. The
// actual notification renderer (overlay vs. OS toast) is out of scope for
// the engine (§1); a richer collaborator replaces this by implementing
// watch.Sink itself.
type logSink struct{}

func (logSink) Publish(ev watch.UnlockEvent) {
	log.Printf("unlocked: %s / %s (%s)", ev.GameName, ev.DisplayName, ev.ProviderTag)
}
