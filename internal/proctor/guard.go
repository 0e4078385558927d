// Package proctor следит за уходом кандидата со страницы интервью и сообщает о нарушениях серверу.
package proctor

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"interview-proctor/internal/logger"
	"interview-proctor/internal/protocol"
	"interview-proctor/internal/session"
)

// Signal - одно событие окружения кандидата
type Signal int

const (
	SignalHidden Signal = iota + 1
	SignalVisible
	SignalFullscreenExit
	SignalFullscreenEnter
)

func (s Signal) String() string {
	switch s {
	case SignalHidden:
		return "hidden"
	case SignalVisible:
		return "visible"
	case SignalFullscreenExit:
		return "fullscreen_exit"
	case SignalFullscreenEnter:
		return "fullscreen_enter"
	default:
		return "unknown"
	}
}

const (
	ReasonHidden         = "Tab Switch / Hidden Window"
	ReasonFullscreenExit = "Exited Fullscreen"
)

// Flagger передает нарушение на сервер, обычно session.Controller
type Flagger interface {
	FlagViolation(ctx context.Context, reason string) (*protocol.FlagResponse, error)
}

// Presenter показывает кандидату предупреждения и блокирующий экран
type Presenter interface {
	Warning(count, limit int, reason string)
	Overlay(visible bool)
	Terminated(reason string)
}

// Guard не хранит счетчик нарушений: его ведет сервер и возвращает в ответе
type Guard struct {
	flagger Flagger
	ui      Presenter
	log     *zap.Logger

	mu           sync.Mutex
	listening    bool
	stopped      bool
	fullscreen   bool
	overlay      bool
	onFullscreen []func(bool)
}

// New создает охранника. Он начинает слушать сигналы, когда сессия становится active.
func New(flagger Flagger, ui Presenter, log *zap.Logger) *Guard {
	return &Guard{
		flagger:    flagger,
		ui:         ui,
		log:        logger.OrNop(log),
		fullscreen: true,
	}
}

// OnFullscreenChange регистрирует получателя флага isFullscreen (таймер ответа)
func (g *Guard) OnFullscreenChange(fn func(bool)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onFullscreen = append(g.onFullscreen, fn)
}

// HandleEvent включает охрану на время интервью и выключает навсегда после его окончания
func (g *Guard) HandleEvent(ev session.Event) {
	if ev.Type != session.EventStatus {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	switch ev.State.Status {
	case session.StatusActive, session.StatusSubmitting:
		g.listening = true
	case session.StatusFinished, session.StatusTerminated:
		g.listening = false
		g.stopped = true
	default:
		g.listening = false
	}
}

// Listening сообщает, реагирует ли охранник на сигналы
func (g *Guard) Listening() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listening
}

// Fullscreen возвращает текущее значение isFullscreen
func (g *Guard) Fullscreen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fullscreen
}

// OverlayVisible сообщает, показан ли блокирующий экран
func (g *Guard) OverlayVisible() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.overlay
}

// Run обрабатывает сигналы по одному до закрытия канала или отмены ctx
func (g *Guard) Run(ctx context.Context, signals <-chan Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			g.Handle(ctx, sig)
		}
	}
}

// Handle обрабатывает один сигнал
func (g *Guard) Handle(ctx context.Context, sig Signal) {
	switch sig {
	case SignalHidden:
		if g.Listening() {
			g.flag(ctx, ReasonHidden)
		}
	case SignalFullscreenExit:
		if !g.Listening() {
			return
		}
		g.setFullscreen(false)
		g.flag(ctx, ReasonFullscreenExit)
	case SignalFullscreenEnter:
		g.setFullscreen(true)
	case SignalVisible:
	}
}

func (g *Guard) setFullscreen(full bool) {
	g.mu.Lock()
	g.fullscreen = full
	showOverlay := !full
	changed := false
	if g.overlay != showOverlay && (showOverlay || !g.stopped) {
		// после завершения экран блокировки не убирается
		g.overlay = showOverlay
		changed = true
	}
	callbacks := slices.Clone(g.onFullscreen)
	g.mu.Unlock()

	for _, fn := range callbacks {
		fn(full)
	}
	if changed && g.ui != nil {
		g.ui.Overlay(showOverlay)
	}
}

func (g *Guard) flag(ctx context.Context, reason string) {
	resp, err := g.flagger.FlagViolation(ctx, reason)
	if err != nil {
		if !errors.Is(err, session.ErrNoActiveSession) {
			g.log.Warn("violation not recorded, continuing", zap.String("reason", reason), zap.Error(err))
		}
		return
	}

	if resp.Terminated() {
		g.mu.Lock()
		g.listening = false
		g.stopped = true
		g.mu.Unlock()

		msg := resp.Msg
		if msg == "" {
			msg = session.DefaultTerminationReason
		}
		g.log.Info("session terminated by proctoring", zap.String("reason", reason))
		if g.ui != nil {
			g.ui.Terminated(msg)
		}
		return
	}

	if resp.WarningCount > 0 && g.ui != nil {
		g.ui.Warning(resp.WarningCount, resp.Limit, reason)
	}
}
