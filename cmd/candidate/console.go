package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"interview-proctor/internal/protocol"
	"interview-proctor/internal/session"
)

// console выводит ход интервью в терминал и реализует proctor.Presenter
type console struct {
	mu      sync.Mutex
	out     io.Writer
	printed int
	scored  map[int]bool
	status  session.Status
}

func newConsole(out io.Writer) *console {
	return &console{out: out, scored: make(map[int]bool)}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) Warning(count, limit int, reason string) {
	if limit > 0 {
		c.printf("⚠️ Нарушение %d/%d: %s\n", count, limit, reason)
		return
	}
	c.printf("⚠️ Нарушение: %s\n", reason)
}

func (c *console) Overlay(visible bool) {
	if visible {
		c.printf("🔒 Интервью на паузе. Вернитесь в полноэкранный режим: /fullscreen\n")
		return
	}
	c.printf("🔓 Продолжаем\n")
}

func (c *console) Terminated(reason string) {
	c.printf("⛔ Интервью прервано: %s\n", reason)
}

// Tick показывает остаток времени на ответ
func (c *console) Tick(remaining int) {
	if remaining%10 == 0 || remaining <= 5 {
		c.printf("⏱ Осталось %d c\n", remaining)
	}
}

// Render печатает изменения состояния сессии
func (c *console) Render(ev session.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case session.EventMessage:
		c.renderMessages(ev.State.Messages)
	case session.EventStatus:
		if ev.State.Status == c.status {
			return
		}
		c.status = ev.State.Status
		switch ev.State.Status {
		case session.StatusActive:
			if ev.State.Role != "" && len(ev.State.Messages) <= 1 {
				fmt.Fprintf(c.out, "🎯 Роль: %s\n", ev.State.Role)
			}
		case session.StatusFinished:
			fmt.Fprintln(c.out, "⏳ Готовим отчет...")
		case session.StatusError:
			fmt.Fprintf(c.out, "❌ %s\n   /retry - попробовать снова\n", ev.State.Error)
		}
	case session.EventResult:
		writeResult(c.out, ev.State.Result)
	}
}

func (c *console) renderMessages(messages []session.Message) {
	for i := range messages {
		m := messages[i]
		if m.Score != nil && !c.scored[i] {
			c.scored[i] = true
			fmt.Fprintf(c.out, "📝 Оценка %.1f/10. %s\n", *m.Score, m.Feedback)
		}
		if i < c.printed {
			continue
		}
		switch m.Role {
		case session.RoleAI:
			fmt.Fprintf(c.out, "\n🤖 %s\n> ", m.Content)
		case session.RoleUser:
			fmt.Fprintf(c.out, "📨 Ответ отправлен\n")
		case session.RoleSystem:
			fmt.Fprintf(c.out, "❌ %s\n", m.Content)
		}
	}
	c.printed = len(messages)
}

func writeResult(out io.Writer, r *protocol.Result) {
	if r == nil {
		return
	}
	fmt.Fprintln(out, "\n📊 Результат интервью")
	if r.Role != "" {
		fmt.Fprintf(out, "• Роль: %s\n", r.Role)
	}
	fmt.Fprintf(out, "• Резюме: %.2f\n", r.ResumeScore)
	fmt.Fprintf(out, "• Интервью: %.2f\n", r.InterviewScore)
	fmt.Fprintf(out, "• Итог: %.2f\n", r.FinalScore)
	for i, t := range r.Transcript {
		fmt.Fprintf(out, "%d. %s\n   %.1f - %s\n", i+1, t.Question, t.Score, t.Feedback)
	}
	if cr := r.CareerReport; cr != nil {
		if len(cr.FocusAreas) > 0 {
			fmt.Fprintf(out, "🎓 Что подтянуть: %s\n", strings.Join(cr.FocusAreas, ", "))
		}
		if len(cr.PreferredRoles) > 0 {
			fmt.Fprintf(out, "💼 Подходящие роли: %s\n", strings.Join(cr.PreferredRoles, ", "))
		}
		if cr.Motivation != "" {
			fmt.Fprintf(out, "💬 %s\n", cr.Motivation)
		}
	}
}
