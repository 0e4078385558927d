package proctor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-proctor/internal/protocol"
	"interview-proctor/internal/session"
)

type fakeFlagger struct {
	count   int
	limit   int
	fail    error
	reasons []string
}

func (f *fakeFlagger) FlagViolation(ctx context.Context, reason string) (*protocol.FlagResponse, error) {
	f.reasons = append(f.reasons, reason)
	if f.fail != nil {
		return nil, f.fail
	}
	f.count++
	resp := &protocol.FlagResponse{WarningCount: f.count, Limit: f.limit}
	if f.count >= f.limit {
		resp.Status = protocol.StatusTerminated
		resp.Msg = "Maximum violations exceeded."
	}
	return resp, nil
}

type fakeUI struct {
	warnings   []int
	overlays   []bool
	terminated []string
}

func (u *fakeUI) Warning(count, limit int, reason string) { u.warnings = append(u.warnings, count) }
func (u *fakeUI) Overlay(visible bool)                    { u.overlays = append(u.overlays, visible) }
func (u *fakeUI) Terminated(reason string)                { u.terminated = append(u.terminated, reason) }

func statusEvent(s session.Status) session.Event {
	return session.Event{Type: session.EventStatus, State: session.State{Status: s}}
}

func activeGuard(f *fakeFlagger) (*Guard, *fakeUI) {
	ui := &fakeUI{}
	g := New(f, ui, nil)
	g.HandleEvent(statusEvent(session.StatusActive))
	return g, ui
}

func TestGuardIgnoresSignalsBeforeActive(t *testing.T) {
	f := &fakeFlagger{limit: 3}
	g := New(f, &fakeUI{}, nil)

	g.Handle(context.Background(), SignalHidden)
	g.Handle(context.Background(), SignalFullscreenExit)

	assert.Empty(t, f.reasons)
	assert.True(t, g.Fullscreen())
}

func TestGuardShowsServerCount(t *testing.T) {
	f := &fakeFlagger{limit: 3}
	g, ui := activeGuard(f)

	g.Handle(context.Background(), SignalHidden)
	g.Handle(context.Background(), SignalHidden)

	assert.Equal(t, []string{ReasonHidden, ReasonHidden}, f.reasons)
	assert.Equal(t, []int{1, 2}, ui.warnings)
	assert.Empty(t, ui.terminated)
}

func TestGuardStopsAfterTermination(t *testing.T) {
	f := &fakeFlagger{limit: 3}
	g, ui := activeGuard(f)

	for i := 0; i < 5; i++ {
		g.Handle(context.Background(), SignalHidden)
	}

	assert.Len(t, f.reasons, 3)
	assert.Equal(t, []string{"Maximum violations exceeded."}, ui.terminated)
	assert.False(t, g.Listening())

	g.HandleEvent(statusEvent(session.StatusActive))
	assert.False(t, g.Listening(), "a terminated guard is never re-armed")
}

func TestFullscreenExitPausesTimerAndShowsOverlay(t *testing.T) {
	f := &fakeFlagger{limit: 3}
	g, ui := activeGuard(f)
	var seen []bool
	g.OnFullscreenChange(func(full bool) { seen = append(seen, full) })

	g.Handle(context.Background(), SignalFullscreenExit)
	assert.False(t, g.Fullscreen())
	assert.True(t, g.OverlayVisible())
	assert.Equal(t, []string{ReasonFullscreenExit}, f.reasons)

	g.Handle(context.Background(), SignalFullscreenEnter)
	assert.True(t, g.Fullscreen())
	assert.False(t, g.OverlayVisible())
	assert.Equal(t, []bool{false, true}, seen)
	assert.Equal(t, []bool{true, false}, ui.overlays)
}

func TestOverlayStaysAfterTermination(t *testing.T) {
	f := &fakeFlagger{limit: 1}
	g, _ := activeGuard(f)

	g.Handle(context.Background(), SignalFullscreenExit)
	require.False(t, g.Listening())

	g.Handle(context.Background(), SignalFullscreenEnter)
	assert.True(t, g.Fullscreen())
	assert.True(t, g.OverlayVisible())
}

func TestGuardFailsOpen(t *testing.T) {
	f := &fakeFlagger{limit: 3, fail: errors.New("connection refused")}
	g, ui := activeGuard(f)

	g.Handle(context.Background(), SignalHidden)
	g.Handle(context.Background(), SignalHidden)

	assert.Len(t, f.reasons, 2)
	assert.Empty(t, ui.warnings)
	assert.True(t, g.Listening())
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	f := &fakeFlagger{limit: 3}
	g, ui := activeGuard(f)

	signals := make(chan Signal, 3)
	signals <- SignalHidden
	signals <- SignalVisible
	signals <- SignalHidden
	close(signals)

	g.Run(context.Background(), signals)

	assert.Equal(t, []int{1, 2}, ui.warnings)
}
