package speech

import (
	"context"
	"fmt"
	"io"
	"math"
	"os/exec"
	"time"
)

// CommandPlayer проигрывает аудио внешним плеером, читающим поток из stdin (ffplay, mpg123)
type CommandPlayer struct {
	Command string
	Args    []string
}

// NewCommandPlayer создает плеер. Для ffplay: "ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "-"
func NewCommandPlayer(command string, args ...string) *CommandPlayer {
	return &CommandPlayer{Command: command, Args: args}
}

func (p *CommandPlayer) Play(ctx context.Context, audio io.Reader, levels chan<- float64) error {
	if p.Command == "" {
		return ErrUnavailable
	}
	if _, err := exec.LookPath(p.Command); err != nil {
		return fmt.Errorf("player %s: %w", p.Command, ErrUnavailable)
	}

	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Stdin = &levelReader{r: audio, levels: levels}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w", p.Command, err)
	}
	return nil
}

// levelReader оценивает громкость по проходящим байтам для индикатора
type levelReader struct {
	r      io.Reader
	levels chan<- float64
}

func (l *levelReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if n > 0 && l.levels != nil {
		select {
		case l.levels <- Level(p[:n]):
		default:
		}
	}
	return n, err
}

// Level возвращает отклонение байтов от середины 0..1, грубую оценку громкости
func Level(chunk []byte) float64 {
	if len(chunk) == 0 {
		return 0
	}
	var sum float64
	for _, b := range chunk {
		d := float64(int(b)-128) / 128
		sum += d * d
	}
	return math.Min(1, math.Sqrt(sum/float64(len(chunk))))
}

// CommandVoice читает текст локальным синтезатором (espeak, say)
type CommandVoice struct {
	Command string
	Args    []string
	// Pulse - период, с которым в канал уровней пишется сигнал пока голос звучит
	Pulse time.Duration
}

// NewCommandVoice создает локальный голос. Текст добавляется последним аргументом.
func NewCommandVoice(command string, args ...string) *CommandVoice {
	return &CommandVoice{Command: command, Args: args, Pulse: 100 * time.Millisecond}
}

func (v *CommandVoice) Say(ctx context.Context, text string, levels chan<- float64) error {
	if v.Command == "" {
		return ErrUnavailable
	}
	if _, err := exec.LookPath(v.Command); err != nil {
		return fmt.Errorf("voice %s: %w", v.Command, ErrUnavailable)
	}

	args := append(append([]string(nil), v.Args...), text)
	cmd := exec.CommandContext(ctx, v.Command, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", v.Command, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	pulse := v.Pulse
	if pulse <= 0 {
		pulse = 100 * time.Millisecond
	}
	ticker := time.NewTicker(pulse)
	defer ticker.Stop()

	high := true
	for {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("wait %s: %w", v.Command, err)
			}
			return nil
		case <-ticker.C:
			level := 0.2
			if high {
				level = 0.6
			}
			high = !high
			select {
			case levels <- level:
			default:
			}
		}
	}
}
