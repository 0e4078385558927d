package speech

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

const DefaultSilence = 3 * time.Second

// Transcriber выдает распознанный текст по мере речи и сообщает о тишине.
// Решение отправить ответ по тишине принимает вызывающий код.
type Transcriber interface {
	Transcribe(ctx context.Context, onPartial func(text string), onSilence func()) error
}

// LineTranscriber читает распознанные фразы построчно, например stdout внешнего STT движка или stdin
type LineTranscriber struct {
	r       io.Reader
	silence time.Duration

	once  sync.Once
	lines chan string
	err   error

	mu   sync.Mutex
	text []string
}

// NewLineTranscriber создает распознаватель поверх r
func NewLineTranscriber(r io.Reader, silence time.Duration) *LineTranscriber {
	if silence <= 0 {
		silence = DefaultSilence
	}
	return &LineTranscriber{r: r, silence: silence, lines: make(chan string)}
}

// Text возвращает накопленный текст ответа
func (t *LineTranscriber) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.text, " ")
}

// Clear сбрасывает накопленный текст перед следующим вопросом
func (t *LineTranscriber) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.text = nil
}

// источник читается одной горутиной на все время жизни распознавателя
func (t *LineTranscriber) pump() {
	scanner := bufio.NewScanner(t.r)
	for scanner.Scan() {
		t.lines <- scanner.Text()
	}
	t.mu.Lock()
	t.err = scanner.Err()
	t.mu.Unlock()
	close(t.lines)
}

// Transcribe слушает до тишины, конца потока или отмены ctx.
// onSilence вызывается один раз, если после непустого текста прошла пауза silence.
func (t *LineTranscriber) Transcribe(ctx context.Context, onPartial func(text string), onSilence func()) error {
	t.once.Do(func() { go t.pump() })

	silence := time.NewTimer(t.silence)
	silence.Stop()
	defer silence.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-silence.C:
			if onSilence != nil {
				onSilence()
			}
			return nil
		case line, ok := <-t.lines:
			if !ok {
				t.mu.Lock()
				defer t.mu.Unlock()
				if t.err != nil {
					return t.err
				}
				return io.EOF
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			t.mu.Lock()
			t.text = append(t.text, line)
			full := strings.Join(t.text, " ")
			t.mu.Unlock()

			if onPartial != nil {
				onPartial(full)
			}
			silence.Reset(t.silence)
		}
	}
}
