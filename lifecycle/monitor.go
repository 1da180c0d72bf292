// Package lifecycle implements the Game Lifecycle Monitor (C6): a fixed-
// cadence process-table poll that derives Started/Ended transitions for
// whichever known game executable is currently running. Grounded on
// process_monitor.rs's ProcessMonitor (single current_games tracker, one
// event per poll) translated from sysinfo's whole-table refresh to
// gopsutil/v3/process, the pack's process-inspection library.
package lifecycle

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/achievement-tracker/agent/store"
)

var logger = log.New("lifecycle")

// EventKind distinguishes the two transitions §4.6's state table emits.
type EventKind int

const (
	Started EventKind = iota
	Ended
)

// Event reports one lifecycle transition for a known game.
type Event struct {
	Kind     EventKind
	GameID   uint32
	GameName string
}

// Monitor polls the process table on PollInterval and emits Events to a
// caller-supplied channel. known_executables is supplied once at
// construction and never mutated (§5).
type Monitor struct {
	Repo             store.Repo
	KnownExecutables map[string]GameExe // lowercased exe basename -> game
	PollInterval     time.Duration

	mu       sync.Mutex
	paused   bool
	lastGame *GameExe
}

func NewMonitor(repo store.Repo, known map[string]GameExe, pollInterval time.Duration) *Monitor {
	return &Monitor{Repo: repo, KnownExecutables: known, PollInterval: pollInterval}
}

// Pause freezes polling without losing last_game, so a later Resume does
// not spuriously emit Started/Ended for the game already running.
func (m *Monitor) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

func (m *Monitor) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
}

func (m *Monitor) isPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Run polls until ctx is canceled (Stop). Events are sent best-effort: a
// full sink channel drops the event rather than blocking the poll loop,
// since C7 drains it synchronously and a backed-up sink means something
// downstream is already wrong.
func (m *Monitor) Run(ctx context.Context, sink chan<- Event) {
	ticker := time.NewTicker(m.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.isPaused() {
				continue
			}
			m.poll(ctx, sink)
		}
	}
}

func (m *Monitor) poll(ctx context.Context, sink chan<- Event) {
	curr, err := m.detectRunning(ctx)
	if err != nil {
		logger.Warnf("process scan failed: %v", err)
		return
	}
	if curr != nil {
		if excluded, err := m.Repo.IsExcluded(ctx, curr.GameID); err == nil && excluded {
			curr = nil
		}
	}

	ev, next := transition(m.lastGame, curr)
	m.lastGame = next
	if ev != nil {
		emit(sink, *ev)
	}
}

// transition implements §4.6's state table as a pure function of (prev,
// curr), independent of process scanning, so it can be tested without a
// real process table.
func transition(prev, curr *GameExe) (*Event, *GameExe) {
	switch {
	case prev == nil && curr != nil:
		return &Event{Kind: Started, GameID: curr.GameID, GameName: curr.GameName}, curr

	case prev != nil && curr != nil && prev.GameID == curr.GameID:
		return nil, prev // unchanged

	case prev != nil && curr != nil && prev.GameID != curr.GameID:
		// G -> H: this poll only reports Ended(G). Returning a nil next
		// state lets the very next poll re-detect H as a fresh none->H
		// transition and emit Started(H), matching §4.6's table exactly.
		ended := *prev
		return &Event{Kind: Ended, GameID: ended.GameID, GameName: ended.GameName}, nil

	case prev != nil && curr == nil:
		ended := *prev
		return &Event{Kind: Ended, GameID: ended.GameID, GameName: ended.GameName}, nil
	}
	return nil, prev
}

func emit(sink chan<- Event, ev Event) {
	select {
	case sink <- ev:
	default:
	}
}

func (m *Monitor) detectRunning(ctx context.Context) (*GameExe, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range procs {
		if name, err := p.NameWithContext(ctx); err == nil && name != "" {
			if g, ok := m.KnownExecutables[strings.ToLower(name)]; ok {
				found := g
				return &found, nil
			}
		}
		if exe, err := p.ExeWithContext(ctx); err == nil && exe != "" {
			if g, ok := m.KnownExecutables[strings.ToLower(filepath.Base(exe))]; ok {
				found := g
				return &found, nil
			}
		}
	}
	return nil, nil
}
