// Package events рассылает события сессий интервью подписчикам: RabbitMQ, websocket, Telegram.
package events

import (
	"context"
	"errors"

	"interview-proctor/internal/protocol"
)

// Publisher доставляет событие сессии
type Publisher interface {
	Publish(ctx context.Context, ev protocol.Event) error
}

// PublisherFunc позволяет использовать функцию как Publisher
type PublisherFunc func(ctx context.Context, ev protocol.Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev protocol.Event) error {
	return f(ctx, ev)
}

// Multi публикует во все подписчики и собирает ошибки
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev protocol.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop ничего не публикует
type Nop struct{}

func (Nop) Publish(context.Context, protocol.Event) error { return nil }
