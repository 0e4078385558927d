// Package speech озвучивает вопросы и превращает речь кандидата в текст.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"go.uber.org/zap"

	"interview-proctor/internal/logger"
)

// ErrUnavailable возвращает синтезатор, у которого нет голосового бэкенда
var ErrUnavailable = errors.New("speech backend unavailable")

// Synthesizer получает аудио для текста, обычно POST /interview/speak
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// Player проигрывает аудиопоток и пишет уровень громкости 0..1 в levels
type Player interface {
	Play(ctx context.Context, audio io.Reader, levels chan<- float64) error
}

// Voice - локальный голос, которым читается текст если основной бэкенд недоступен
type Voice interface {
	Say(ctx context.Context, text string, levels chan<- float64) error
}

// Speaker озвучивает текст. Ошибки озвучки не прерывают интервью: текст вопроса уже на экране.
type Speaker struct {
	synth    Synthesizer
	player   Player
	fallback Voice
	log      *zap.Logger

	mu      sync.Mutex
	onStart []func()
	onEnd   []func()
	cancel  context.CancelFunc
}

// NewSpeaker создает озвучку. Любой из бэкендов может быть nil.
func NewSpeaker(synth Synthesizer, player Player, fallback Voice, log *zap.Logger) *Speaker {
	return &Speaker{
		synth:    synth,
		player:   player,
		fallback: fallback,
		log:      logger.OrNop(log),
	}
}

// OnStart регистрирует callback начала озвучки
func (s *Speaker) OnStart(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStart = append(s.onStart, fn)
}

// OnEnd регистрирует callback конца озвучки, вызывается и при ошибке
func (s *Speaker) OnEnd(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = append(s.onEnd, fn)
}

// Speak озвучивает text в фоне. Канал уровней закрывается по окончании.
// Предыдущая озвучка прерывается.
func (s *Speaker) Speak(ctx context.Context, text string) <-chan float64 {
	levels := make(chan float64, 16)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	onStart := slices.Clone(s.onStart)
	onEnd := slices.Clone(s.onEnd)
	s.mu.Unlock()

	for _, fn := range onStart {
		fn()
	}

	go func() {
		defer close(levels)
		defer func() {
			for _, fn := range onEnd {
				fn()
			}
		}()
		defer cancel()

		if err := s.speak(ctx, text, levels); err != nil {
			s.log.Warn("question audio failed, text only", zap.Error(err))
		}
	}()
	return levels
}

// Stop прерывает текущую озвучку
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Speaker) speak(ctx context.Context, text string, levels chan<- float64) error {
	err := s.primary(ctx, text, levels)
	if err == nil || ctx.Err() != nil {
		return err
	}
	s.log.Info("using fallback voice", zap.Error(err))

	if s.fallback == nil {
		return fmt.Errorf("no fallback voice: %w", err)
	}
	if ferr := s.fallback.Say(ctx, text, levels); ferr != nil {
		return fmt.Errorf("fallback voice: %w", ferr)
	}
	return nil
}

func (s *Speaker) primary(ctx context.Context, text string, levels chan<- float64) error {
	if s.synth == nil || s.player == nil {
		return ErrUnavailable
	}
	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	defer audio.Close()

	if err := s.player.Play(ctx, audio, levels); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

// Drain читает уровни до закрытия канала, передавая их в fn
func Drain(levels <-chan float64, fn func(level float64)) {
	for level := range levels {
		if fn != nil {
			fn(level)
		}
	}
}
