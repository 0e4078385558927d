// Package llm - клиенты языковых моделей для вопросов, оценки ответов и озвучки.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"interview-proctor/internal/config"
)

// ErrDisabled возвращается, когда провайдер не настроен
var ErrDisabled = errors.New("llm: provider disabled")

// Completer отвечает на пару системный промпт + сообщение пользователя
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// New создает клиента выбранного провайдера
func New(ctx context.Context, cfg config.LLMConfig) (Completer, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	case "none", "":
		return disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

type disabled struct{}

func (disabled) Complete(ctx context.Context, system, user string) (string, error) {
	return "", ErrDisabled
}

// Retry повторяет fn до attempts раз с линейно растущей паузой
func Retry[T any](ctx context.Context, attempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for i := 0; i < attempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrDisabled) {
			break
		}
		if i == attempts-1 {
			break
		}
		wait := time.Duration(500*(i+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

// CleanJSON удаляет markdown обертку ```json ... ``` вокруг ответа модели
func CleanJSON(input string) string {
	clean := strings.TrimSpace(input)

	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	clean = strings.TrimLeft(clean, "\r\n")
	clean = strings.TrimSuffix(clean, "```")

	return strings.TrimSpace(clean)
}
