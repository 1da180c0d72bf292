package lifecycle

import "testing"

func TestTransitionNoneToStarted(t *testing.T) {
	g := &GameExe{GameID: 1, GameName: "A"}
	ev, next := transition(nil, g)
	if ev == nil || ev.Kind != Started || ev.GameID != 1 {
		t.Fatalf("expected Started(1), got %+v", ev)
	}
	if next != g {
		t.Fatalf("expected next state to be the running game")
	}
}

func TestTransitionUnchangedEmitsNothing(t *testing.T) {
	g := &GameExe{GameID: 1, GameName: "A"}
	ev, next := transition(g, &GameExe{GameID: 1, GameName: "A"})
	if ev != nil {
		t.Fatalf("expected no event for an unchanged game, got %+v", ev)
	}
	if next != g {
		t.Fatalf("expected next state to remain the previous pointer")
	}
}

func TestTransitionRunningToNoneEmitsEnded(t *testing.T) {
	g := &GameExe{GameID: 1, GameName: "A"}
	ev, next := transition(g, nil)
	if ev == nil || ev.Kind != Ended || ev.GameID != 1 {
		t.Fatalf("expected Ended(1), got %+v", ev)
	}
	if next != nil {
		t.Fatalf("expected next state nil after Ended")
	}
}

// TestTransitionGameSwitchOnlyEmitsEndedThisPoll verifies the documented
// two-poll behavior: a direct G -> H switch emits Ended(G) now and clears
// state, so the very next poll independently derives Started(H) from a
// none -> H transition.
func TestTransitionGameSwitchOnlyEmitsEndedThisPoll(t *testing.T) {
	g := &GameExe{GameID: 1, GameName: "A"}
	h := &GameExe{GameID: 2, GameName: "B"}

	ev, next := transition(g, h)
	if ev == nil || ev.Kind != Ended || ev.GameID != 1 {
		t.Fatalf("expected Ended(1) on the switching poll, got %+v", ev)
	}
	if next != nil {
		t.Fatalf("expected state cleared to nil after a switch, got %+v", next)
	}

	ev2, next2 := transition(next, h)
	if ev2 == nil || ev2.Kind != Started || ev2.GameID != 2 {
		t.Fatalf("expected the following poll to emit Started(2), got %+v", ev2)
	}
	if next2 != h {
		t.Fatalf("expected next state to be H after the follow-up poll")
	}
}

func TestPauseResumePreservesLastGame(t *testing.T) {
	m := NewMonitor(nil, nil, 0)
	m.lastGame = &GameExe{GameID: 5, GameName: "Paused Game"}

	m.Pause()
	if !m.isPaused() {
		t.Fatalf("expected Pause to set paused=true")
	}
	m.Resume()
	if m.isPaused() {
		t.Fatalf("expected Resume to clear paused")
	}
	if m.lastGame == nil || m.lastGame.GameID != 5 {
		t.Fatalf("expected lastGame to survive a Pause/Resume cycle, got %+v", m.lastGame)
	}
}
