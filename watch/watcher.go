// Package watch implements the Unlock Watcher (C5): one fsnotify-backed
// watcher per bound game, debouncing filesystem churn into a single reparse
// per quiet period and diffing the result against the store to find newly
// unlocked achievements. Grounded on achievement_watcher.rs's
// AchievementWatcher (one watch handle per game, single-slot debounce
// timer keyed by app id) and the teacher's service/refresh.go for the
// worker/error-propagation idiom.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"github.com/achievement-tracker/agent/enginerr"
	"github.com/achievement-tracker/agent/scanner"
	"github.com/achievement-tracker/agent/store"
)

var logger = log.New("watcher")

// UnlockEvent is published for every achievement a reparse finds freshly
// unlocked. It carries enough display data for a UI collaborator to render
// a toast without a round trip to the store.
type UnlockEvent struct {
	GameID          uint32
	GameName        string
	AchievementKey  string
	DisplayName     string
	Description     string
	IconURL         string
	UnlockTime      *int64
	ProviderTag     store.ProviderTag
	GlobalUnlockPct *float64
}

// Sink receives unlock events. cmd/agentd supplies the implementation and
// the orchestrator hands it to each watcher; watch never imports engine, so
// there is no import cycle (§9).
type Sink interface {
	Publish(ev UnlockEvent)
}

// RateFetcher is the slice of *steamapi.Client a watcher actually needs,
// kept narrow so tests can stub it without a real HTTP client.
type RateFetcher interface {
	GetGlobalRates(ctx context.Context, gameID uint32) (map[string]float64, error)
}

// Watcher tracks one bound game's achievement file. Zero value is not
// usable; construct with New.
type Watcher struct {
	GameID   uint32
	GameName string
	FilePath string
	Source   scanner.Source
	Repo     store.Repo
	Rates    RateFetcher // nil disables best-effort global-rate enrichment
	Sink     Sink
	Debounce time.Duration

	generation string // per-Start token; guards a stale fatal signal across rebinds

	fsw      *fsnotify.Watcher
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	fatalCh  chan struct{}
}

// New builds a Watcher for one game. Debounce defaults to 1s if zero.
func New(gameID uint32, gameName, filePath string, src scanner.Source, repo store.Repo, rates RateFetcher, sink Sink, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = time.Second
	}
	return &Watcher{
		GameID:   gameID,
		GameName: gameName,
		FilePath: filePath,
		Source:   src,
		Repo:     repo,
		Rates:    rates,
		Sink:     sink,
		Debounce: debounce,
	}
}

// Start registers the filesystem subscription and begins the debounce
// loop. It is an error to Start a Watcher twice without an intervening
// Stop.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return enginerr.Wrap(enginerr.ErrUnavailable, err)
	}
	if err := fsw.Add(w.FilePath); err != nil {
		fsw.Close()
		return enginerr.Wrap(enginerr.ErrNotFound, err)
	}

	w.generation = uuid.NewString()
	w.fsw = fsw
	w.stopOnce = sync.Once{}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.fatalCh = make(chan struct{})

	go func(gen string) {
		defer close(w.doneCh)
		w.run(ctx, gen)
	}(w.generation)

	return nil
}

// Stop tears the watcher down synchronously: once it returns, no further
// UnlockEvents will be published for this watcher (§5 "synchronous
// drop").
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

// Fatal is closed if the watcher exited on its own because its backing
// file vanished and never reappeared within one debounce interval. The
// orchestrator selects on this to move the game into its pending set
// instead of treating the exit as an explicit Stop.
func (w *Watcher) Fatal() <-chan struct{} { return w.fatalCh }

func (w *Watcher) run(ctx context.Context, gen string) {
	defer w.fsw.Close()

	dir := filepath.Dir(w.FilePath)
	base := filepath.Base(w.FilePath)
	watchingDir := false

	var debounceTimer, vanishedTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		if vanishedTimer != nil {
			vanishedTimer.Stop()
		}
	}()

	resetDebounce := func() {
		if debounceTimer == nil {
			debounceTimer = time.NewTimer(w.Debounce)
			return
		}
		if !debounceTimer.Stop() {
			select {
			case <-debounceTimer.C:
			default:
			}
		}
		debounceTimer.Reset(w.Debounce)
	}

	for {
		var debounceC, vanishedC <-chan time.Time
		if debounceTimer != nil {
			debounceC = debounceTimer.C
		}
		if vanishedTimer != nil {
			vanishedC = vanishedTimer.C
		}

		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if watchingDir {
				if filepath.Base(ev.Name) != base || ev.Op&fsnotify.Create == 0 {
					continue
				}
				// File reappeared: rebind the direct watch and resume.
				if err := w.fsw.Add(w.FilePath); err != nil {
					continue
				}
				_ = w.fsw.Remove(dir)
				watchingDir = false
				if vanishedTimer != nil {
					vanishedTimer.Stop()
					vanishedTimer = nil
				}
				resetDebounce()
				continue
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				_ = w.fsw.Remove(w.FilePath)
				if err := w.fsw.Add(dir); err != nil {
					logger.Warnf("game %d: file vanished and parent dir is unwatchable, exiting: %v", w.GameID, err)
					w.exitFatal(gen)
					return
				}
				watchingDir = true
				vanishedTimer = time.NewTimer(w.Debounce)
				continue
			}
			resetDebounce()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warnf("game %d: fsnotify error: %v", w.GameID, err)

		case <-debounceC:
			debounceTimer = nil
			w.reparse(ctx)

		case <-vanishedC:
			logger.Warnf("game %d: backing file did not reappear within one debounce interval", w.GameID)
			w.exitFatal(gen)
			return
		}
	}
}

func (w *Watcher) exitFatal(gen string) {
	if gen != w.generation {
		return // a later Start already superseded this run
	}
	close(w.fatalCh)
}

// reparse extracts the current unlock set, diffs it against what the
// store already knows for this provider, and persists+publishes anything
// new. Parse and store errors are logged and swallowed: a single bad
// reparse is not fatal, the next filesystem event tries again.
func (w *Watcher) reparse(ctx context.Context) {
	unlocks, err := w.Source.ExtractUnlocks(ctx)
	if err != nil {
		logger.Warnf("game %d: reparse failed: %v", w.GameID, err)
		return
	}

	rows, err := w.Repo.ListByGame(ctx, w.GameID)
	if err != nil {
		logger.Warnf("game %d: list rows failed: %v", w.GameID, err)
		return
	}
	byKey := make(map[string]store.Achievement, len(rows))
	for _, r := range rows {
		if r.ProviderTag == w.Source.Tag() {
			byKey[r.AchievementKey] = r
		}
	}

	var rates map[string]float64
	ratesFetched := false
	fetchRates := func() map[string]float64 {
		if !ratesFetched {
			ratesFetched = true
			if w.Rates != nil {
				if r, err := w.Rates.GetGlobalRates(ctx, w.GameID); err == nil {
					rates = r
				}
			}
		}
		return rates
	}

	for _, u := range unlocks {
		row, ok := byKey[u.Key]
		if !ok || row.Unlocked {
			continue
		}

		pct := row.GlobalUnlockPct
		if pct == nil {
			if v, ok := fetchRates()[u.Key]; ok {
				pct = &v
			}
		}

		if err := w.Repo.MarkUnlocked(ctx, row.ID, u.UnlockTime); err != nil {
			logger.Warnf("game %d: mark unlocked %s failed: %v", w.GameID, u.Key, err)
			continue
		}

		if w.Sink != nil {
			w.Sink.Publish(UnlockEvent{
				GameID:          w.GameID,
				GameName:        w.GameName,
				AchievementKey:  u.Key,
				DisplayName:     row.DisplayName,
				Description:     row.Description,
				IconURL:         row.IconURL,
				UnlockTime:      u.UnlockTime,
				ProviderTag:     row.ProviderTag,
				GlobalUnlockPct: pct,
			})
		}
	}
}
