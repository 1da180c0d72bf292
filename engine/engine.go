// Package engine implements the Engine Orchestrator (C7): it wires the
// Game Lifecycle Monitor (C6) to the Unlock Watcher (C5), drives provider
// onboarding through the Source Arbiter (C4), and runs the pending-retry
// loop for games whose bound provider file isn't present yet. Grounded on
// the teacher's service/refresh.go (worker-pool + stats-struct idiom) and
// main.go's open-db/migrate/construct/run wiring shape, adapted from
// "serve HTTP forever" to "run until signaled."
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/achievement-tracker/agent/arbiter"
	"github.com/achievement-tracker/agent/config"
	"github.com/achievement-tracker/agent/lifecycle"
	"github.com/achievement-tracker/agent/scanner"
	"github.com/achievement-tracker/agent/steamapi"
	"github.com/achievement-tracker/agent/store"
	"github.com/achievement-tracker/agent/watch"
)

var logger = log.New("orchestrator")

// WatchBinding is one live watcher entry in the orchestrator's watched
// map.
type WatchBinding struct {
	GameID   uint32
	GameName string
	Watcher  *watch.Watcher
}

type pendingEntry struct {
	name      string
	lastProbe time.Time
}

// Engine is the C7 orchestrator. Construct with New, then run it with Run
// until ctx is canceled.
type Engine struct {
	Repo      store.Repo
	Client    *steamapi.Client
	Paths     Paths
	Lifecycle *lifecycle.Monitor
	Sink      watch.Sink
	SteamID   string // used only by the RemoteApi fallback scanner

	Workers              int
	Debounce             time.Duration
	PendingRetryInterval time.Duration

	mu      sync.Mutex
	watched map[uint32]*WatchBinding
	pending map[uint32]*pendingEntry
}

// New builds an Engine with config-sourced defaults for worker count,
// debounce window, and pending-retry interval.
func New(repo store.Repo, client *steamapi.Client, paths Paths, lc *lifecycle.Monitor, sink watch.Sink, steamID string) *Engine {
	return &Engine{
		Repo:                 repo,
		Client:               client,
		Paths:                paths,
		Lifecycle:            lc,
		Sink:                 sink,
		SteamID:              steamID,
		Workers:              config.ScanWorkers(),
		Debounce:             config.DebounceWindow(),
		PendingRetryInterval: config.PendingRetryInterval(),
		watched:              make(map[uint32]*WatchBinding),
		pending:              make(map[uint32]*pendingEntry),
	}
}

// Run drives the lifecycle-event loop and the pending-retry ticker until
// ctx is canceled, then tears down every live watcher (§5 shutdown
// sequence: cancel all WatchBindings before returning).
func (e *Engine) Run(ctx context.Context) {
	events := make(chan lifecycle.Event, 8)
	go e.Lifecycle.Run(ctx, events)

	retry := time.NewTicker(e.PendingRetryInterval)
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case ev := <-events:
			switch ev.Kind {
			case lifecycle.Started:
				e.onStarted(ctx, ev.GameID, ev.GameName)
			case lifecycle.Ended:
				e.onEnded(ev.GameID)
			}
		case <-retry.C:
			e.retryPending(ctx)
		}
	}
}

// onStarted implements §4.7's Started(game) behavior.
func (e *Engine) onStarted(ctx context.Context, gameID uint32, gameName string) {
	excluded, err := e.Repo.IsExcluded(ctx, gameID)
	if err != nil {
		logger.Warnf("game %d: exclusion check failed: %v", gameID, err)
		return
	}
	if excluded {
		return
	}

	e.mu.Lock()
	_, already := e.watched[gameID]
	e.mu.Unlock()
	if already {
		return
	}

	rows, err := e.Repo.ListByGame(ctx, gameID)
	if err != nil {
		logger.Warnf("game %d: list rows failed: %v", gameID, err)
		return
	}
	if len(rows) == 0 {
		return // untracked game; tracking is an explicit user action
	}

	tag := rows[0].ProviderTag
	path, src, ok := e.resolveBoundSource(gameID, tag)
	if !ok {
		logger.Warnf("game %d: bound provider %s file missing, deferring", gameID, tag)
		e.setPending(gameID, gameName)
		return
	}
	logger.Infof("game %d: binding watcher to %s at %s", gameID, tag, path)
	e.startWatch(ctx, gameID, gameName, src)
}

// onEnded implements §4.7's Ended(game) behavior: drop the watcher handle,
// which cancels its filesystem subscription synchronously.
func (e *Engine) onEnded(gameID uint32) {
	e.mu.Lock()
	b, ok := e.watched[gameID]
	delete(e.watched, gameID)
	delete(e.pending, gameID)
	e.mu.Unlock()
	if ok {
		b.Watcher.Stop()
	}
}

// resolveBoundSource probes only the file path belonging to tag — the
// orchestrator never re-arbitrates on a lifecycle Started event, it trusts
// whatever provider is already bound for the game.
func (e *Engine) resolveBoundSource(gameID uint32, tag store.ProviderTag) (string, scanner.Source, bool) {
	switch tag {
	case store.PlatformCache:
		if p := e.Paths.platformCachePath(gameID); fileExists(p) {
			return p, &scanner.PlatformCacheScanner{FilePath: p}, true
		}
	case store.EmulatorA:
		if p := e.Paths.emulatorAPath(gameID); fileExists(p) {
			return p, &scanner.EmulatorAScanner{FilePath: p}, true
		}
	case store.EmulatorB:
		if p, ok := firstExisting(e.Paths.emulatorBPaths(gameID)); ok {
			return p, &scanner.EmulatorBScanner{FilePath: p}, true
		}
	}
	// RemoteApi (and Manual) are never watched: RemoteApi is a no-watch
	// fallback (§4.7), Manual has no backing file at all.
	return "", nil, false
}

func (e *Engine) startWatch(ctx context.Context, gameID uint32, gameName string, src scanner.Source) {
	// EmulatorB reparses resolve section names against the scanner's Schema,
	// which a freshly built scanner does not have yet.
	if b, ok := src.(*scanner.EmulatorBScanner); ok && b.Schema == nil && e.Client != nil {
		schema, err := e.Client.GetSchema(ctx, gameID)
		if err != nil {
			logger.Warnf("game %d: schema for EmulatorB section resolution unavailable: %v", gameID, err)
			e.setPending(gameID, gameName)
			return
		}
		b.Schema = schema
	}
	path := scannerPath(src)
	w := watch.New(gameID, gameName, path, src, e.Repo, e.Client, e.Sink, e.Debounce)
	if err := w.Start(ctx); err != nil {
		logger.Warnf("game %d: watcher start failed: %v", gameID, err)
		e.setPending(gameID, gameName)
		return
	}

	e.mu.Lock()
	e.watched[gameID] = &WatchBinding{GameID: gameID, GameName: gameName, Watcher: w}
	delete(e.pending, gameID)
	e.mu.Unlock()

	go e.watchForFatalExit(gameID, gameName, w)
}

// watchForFatalExit moves a game from watched back to pending if its
// watcher exits on its own (backing file vanished for good) rather than
// via an explicit Ended(game)/Stop.
func (e *Engine) watchForFatalExit(gameID uint32, gameName string, w *watch.Watcher) {
	<-w.Fatal()
	e.mu.Lock()
	if b, ok := e.watched[gameID]; ok && b.Watcher == w {
		delete(e.watched, gameID)
		e.pending[gameID] = &pendingEntry{name: gameName, lastProbe: time.Now()}
	}
	e.mu.Unlock()
}

func scannerPath(src scanner.Source) string {
	switch s := src.(type) {
	case *scanner.PlatformCacheScanner:
		return s.FilePath
	case *scanner.EmulatorAScanner:
		return s.FilePath
	case *scanner.EmulatorBScanner:
		return s.FilePath
	default:
		return ""
	}
}

func (e *Engine) setPending(gameID uint32, gameName string) {
	e.mu.Lock()
	e.pending[gameID] = &pendingEntry{name: gameName, lastProbe: time.Now()}
	e.mu.Unlock()
}

// retryPending implements §4.7's pending-retry loop: every tick, any
// pending game whose last_probe is old enough has the file of its bound
// provider (the provider_tag of its first stored row) probed again. Other
// providers are not tried, and no re-arbitration happens here.
func (e *Engine) retryPending(ctx context.Context) {
	e.mu.Lock()
	due := make(map[uint32]string)
	for gameID, p := range e.pending {
		if time.Since(p.lastProbe) >= e.PendingRetryInterval {
			due[gameID] = p.name
		}
	}
	e.mu.Unlock()

	for gameID, name := range due {
		rows, err := e.Repo.ListByGame(ctx, gameID)
		if err != nil || len(rows) == 0 {
			e.touchPending(gameID)
			continue
		}
		if path, src, ok := e.resolveBoundSource(gameID, rows[0].ProviderTag); ok {
			logger.Infof("game %d: pending retry found provider file at %s", gameID, path)
			e.startWatch(ctx, gameID, name, src)
		} else {
			e.touchPending(gameID)
		}
	}
}

func (e *Engine) touchPending(gameID uint32) {
	e.mu.Lock()
	if p, ok := e.pending[gameID]; ok {
		p.lastProbe = time.Now()
	}
	e.mu.Unlock()
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	bindings := make([]*WatchBinding, 0, len(e.watched))
	for _, b := range e.watched {
		bindings = append(bindings, b)
	}
	e.watched = make(map[uint32]*WatchBinding)
	e.mu.Unlock()
	for _, b := range bindings {
		b.Watcher.Stop()
	}
}

// AddGame is user-initiated onboarding (explicit add-game, §4.7): it runs
// the Source Arbiter across every provider whose backing file exists, plus
// the RemoteApi fallback (which needs no local file), persists the winner,
// and begins watching immediately if the game is already running.
func (e *Engine) AddGame(ctx context.Context, gameID uint32, gameName string, running bool) (store.ProviderTag, error) {
	schema, err := e.Client.GetSchema(ctx, gameID)
	if err != nil {
		return "", err
	}
	rates, _ := e.Client.GetGlobalRates(ctx, gameID) // best-effort

	candidates := e.discoveryCandidates(gameID)
	tag, err := arbiter.Arbitrate(ctx, e.Repo, gameID, gameName, schema, rates, candidates, e.Workers)
	if err != nil {
		return "", err
	}

	if running {
		e.onStarted(ctx, gameID, gameName)
	}
	return tag, nil
}

// discoveryCandidates builds every provider candidate eligible for gameID:
// one per local file that currently exists, plus RemoteApi (which needs no
// local file at all). Shared by AddGame and the probe-only HTTP endpoint.
func (e *Engine) discoveryCandidates(gameID uint32) []arbiter.Candidate {
	var candidates []arbiter.Candidate
	if p := e.Paths.platformCachePath(gameID); fileExists(p) {
		candidates = append(candidates, arbiter.Candidate{Source: &scanner.PlatformCacheScanner{FilePath: p}})
	}
	if p := e.Paths.emulatorAPath(gameID); fileExists(p) {
		candidates = append(candidates, arbiter.Candidate{Source: &scanner.EmulatorAScanner{FilePath: p}})
	}
	if p, ok := firstExisting(e.Paths.emulatorBPaths(gameID)); ok {
		candidates = append(candidates, arbiter.Candidate{Source: &scanner.EmulatorBScanner{FilePath: p}})
	}
	candidates = append(candidates, arbiter.Candidate{Source: &scanner.RemoteApiScanner{Client: e.Client, PlayerID: e.SteamID}})
	return candidates
}

// RemoveGame drops any live watcher/pending entry and deletes the game's
// non-Manual rows (store.Repo.DeleteByGame never touches Manual entries).
func (e *Engine) RemoveGame(ctx context.Context, gameID uint32) error {
	e.onEnded(gameID)
	return e.Repo.DeleteByGame(ctx, gameID)
}

// probeCandidates is the dry-run half of onboarding: it runs every
// candidate, persists each one's rows under its own provider_tag, and
// returns per-provider counts without picking a winner or deleting any
// rows (the §4.4 "Probe" operation, exposed through the UI collaborator's
// probe-sources-for-game endpoint).
func probeCandidates(ctx context.Context, e *Engine, gameID uint32, gameName string, schema []steamapi.SchemaEntry, rates map[string]float64, candidates []arbiter.Candidate) ([]store.GameSummary, error) {
	return arbiter.Probe(ctx, e.Repo, gameID, gameName, schema, rates, candidates, e.Workers)
}
