// Package timer отсчитывает время на ответ и автоматически отправляет ответ по истечении.
package timer

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"interview-proctor/internal/logger"
	"interview-proctor/internal/session"
)

// TimeoutAnswer отправляется, если к концу отсчета кандидат ничего не ввел
const TimeoutAnswer = "Time Limit Exceeded"

const DefaultBudget = 40 * time.Second

// SubmitFunc отправляет ответ, обычно Controller.SubmitAnswer
type SubmitFunc func(ctx context.Context, text string) error

// BufferFunc возвращает текущий набранный или надиктованный текст
type BufferFunc func() string

// ResponseTimer считает секунды только когда сессия active, вопрос озвучен и полноэкранный режим не потерян
type ResponseTimer struct {
	budget int
	submit SubmitFunc
	buffer BufferFunc
	log    *zap.Logger

	mu            sync.Mutex
	remaining     int
	status        session.Status
	prompt        string
	speechStarted bool
	speaking      bool
	fullscreen    bool
	fired         bool
	onTick        []func(remaining int)
}

// New создает таймер с бюджетом на один вопрос
func New(budget time.Duration, submit SubmitFunc, buffer BufferFunc, log *zap.Logger) *ResponseTimer {
	if budget <= 0 {
		budget = DefaultBudget
	}
	secs := int(budget / time.Second)
	if secs < 1 {
		secs = 1
	}
	if buffer == nil {
		buffer = func() string { return "" }
	}
	return &ResponseTimer{
		budget:     secs,
		submit:     submit,
		buffer:     buffer,
		log:        logger.OrNop(log),
		remaining:  secs,
		status:     session.StatusIdle,
		fullscreen: true,
	}
}

// OnTick регистрирует callback, получающий остаток секунд после каждого шага
func (t *ResponseTimer) OnTick(fn func(remaining int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTick = append(t.onTick, fn)
}

// HandleEvent сбрасывает отсчет при смене вопроса или статуса сессии
func (t *ResponseTimer) HandleEvent(ev session.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	promptChanged := ev.State.Prompt != t.prompt
	if !promptChanged && ev.State.Status == t.status {
		return
	}
	t.remaining = t.budget
	t.fired = false
	t.status = ev.State.Status
	if promptChanged {
		t.prompt = ev.State.Prompt
		t.speechStarted = false
		t.speaking = false
	}
}

// SpeechStarted отмечает начало озвучки вопроса
func (t *ResponseTimer) SpeechStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.speechStarted = true
	t.speaking = true
}

// SpeechFinished отмечает конец озвучки, в том числе неудачной
func (t *ResponseTimer) SpeechFinished() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.speechStarted = true
	t.speaking = false
}

// SetFullscreen ставит отсчет на паузу, пока кандидат вне полноэкранного режима
func (t *ResponseTimer) SetFullscreen(full bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fullscreen = full
}

// Running сообщает, идет ли сейчас отсчет
func (t *ResponseTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runningLocked()
}

func (t *ResponseTimer) runningLocked() bool {
	return t.status == session.StatusActive &&
		t.speechStarted && !t.speaking &&
		t.fullscreen && !t.fired
}

// Remaining возвращает остаток времени на ответ
func (t *ResponseTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.remaining) * time.Second
}

// Tick уменьшает отсчет на одну секунду. На нуле отправляет ответ ровно один раз и останавливается.
func (t *ResponseTimer) Tick(ctx context.Context) {
	t.mu.Lock()
	if !t.runningLocked() {
		t.mu.Unlock()
		return
	}
	t.remaining--
	remaining := t.remaining
	expired := remaining <= 0
	if expired {
		t.remaining = 0
		remaining = 0
		t.fired = true
	}
	callbacks := slices.Clone(t.onTick)
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn(remaining)
	}
	if !expired {
		return
	}

	text := strings.TrimSpace(t.buffer())
	if text == "" {
		text = TimeoutAnswer
	}
	t.log.Info("answer time expired, submitting", zap.Bool("placeholder", text == TimeoutAnswer))
	if err := t.submit(ctx, text); err != nil {
		t.log.Warn("auto-submit failed", zap.Error(err))
	}
}

// Run вызывает Tick каждые interval до отмены ctx
func (t *ResponseTimer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}
