package telegram

import (
	"context"
	"fmt"

	"interview-proctor/internal/protocol"
)

// Notifier пересылает рекрутеру важные события сессий. Реализует events.Publisher.
type Notifier struct {
	bot    *Bot
	chatID int64
}

func NewNotifier(bot *Bot, chatID int64) *Notifier {
	return &Notifier{bot: bot, chatID: chatID}
}

// Publish отправляет сообщение только о завершении и прерывании интервью
func (n *Notifier) Publish(ctx context.Context, ev protocol.Event) error {
	format, args, ok := notification(ev)
	if !ok {
		return nil
	}
	return n.bot.SendFormattedMessage(ctx, n.chatID, format, args...)
}

// notification возвращает шаблон уведомления и false, если событие рекрутеру не интересно
func notification(ev protocol.Event) (string, []any, bool) {
	data, _ := ev.Data.(map[string]any)
	candidate := fmt.Sprint(data["candidate_id"])
	if data["candidate_id"] == nil {
		candidate = "unknown"
	}

	switch ev.Type {
	case protocol.EventFinished:
		return "✅ *Интервью завершено*\nКандидат: `%s`\nСессия: `%s`\nИтоговый балл: %v",
			[]any{candidate, ev.SessionID, data["final_score"]}, true
	case protocol.EventTerminated:
		return "⛔ *Интервью прервано*\nКандидат: `%s`\nСессия: `%s`\nПричина: %v",
			[]any{candidate, ev.SessionID, data["reason"]}, true
	default:
		return "", nil, false
	}
}
