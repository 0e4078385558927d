package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"interview-proctor/internal/proctor"
	"interview-proctor/internal/protocol"
	"interview-proctor/internal/session"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want action
	}{
		{"  I used channels ", action{kind: actionText, text: "I used channels"}},
		{"", action{kind: actionText}},
		{"/hide", action{kind: actionSignal, signal: proctor.SignalHidden}},
		{"/SHOW", action{kind: actionSignal, signal: proctor.SignalVisible}},
		{"/exit-fullscreen", action{kind: actionSignal, signal: proctor.SignalFullscreenExit}},
		{"/fullscreen now", action{kind: actionSignal, signal: proctor.SignalFullscreenEnter}},
		{"/send", action{kind: actionSend}},
		{"/retry", action{kind: actionRetry}},
		{"/quit", action{kind: actionQuit}},
		{"/dance", action{kind: actionUnknown, text: "/dance"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLine(tt.line))
		})
	}
}

func TestConsoleRendersNewMessagesOnce(t *testing.T) {
	var out bytes.Buffer
	c := newConsole(&out)

	state := session.State{
		Status:   session.StatusActive,
		Messages: []session.Message{{Role: session.RoleAI, Content: "What is a goroutine?"}},
	}
	c.Render(session.Event{Type: session.EventMessage, State: state})
	c.Render(session.Event{Type: session.EventMessage, State: state})
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("What is a goroutine?")))

	score := 7.5
	state.Messages = append(state.Messages,
		session.Message{Role: session.RoleUser, Content: "A green thread", Score: &score, Feedback: "Good"},
		session.Message{Role: session.RoleAI, Content: "And channels?"},
	)
	c.Render(session.Event{Type: session.EventMessage, State: state})
	c.Render(session.Event{Type: session.EventMessage, State: state})

	text := out.String()
	assert.Contains(t, text, "📝 Оценка 7.5/10. Good")
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("Оценка")))
	assert.Contains(t, text, "And channels?")
}

func TestConsoleShowsErrorAndResult(t *testing.T) {
	var out bytes.Buffer
	c := newConsole(&out)

	c.Render(session.Event{Type: session.EventStatus, State: session.State{Status: session.StatusError, Error: "failed to start interview"}})
	assert.Contains(t, out.String(), "failed to start interview")

	c.Render(session.Event{Type: session.EventResult, State: session.State{Result: &protocol.Result{
		Role:           "Backend Engineer",
		FinalScore:     72.33,
		TotalQuestions: 1,
		Transcript:     []protocol.TranscriptEntry{{Question: "Q1", Score: 7, Feedback: "ok"}},
		CareerReport:   &protocol.CareerReport{FocusAreas: []string{"Go", "SQL"}, Motivation: "Keep going"},
	}}})
	text := out.String()
	assert.Contains(t, text, "Итог: 72.33")
	assert.Contains(t, text, "Go, SQL")
	assert.Contains(t, text, "Keep going")
}

func TestConsolePresenter(t *testing.T) {
	var out bytes.Buffer
	c := newConsole(&out)

	c.Warning(2, 3, proctor.ReasonHidden)
	c.Overlay(true)
	c.Terminated("Maximum violations exceeded.")
	c.Tick(30)
	c.Tick(17)

	text := out.String()
	assert.Contains(t, text, "2/3: Tab Switch / Hidden Window")
	assert.Contains(t, text, "/fullscreen")
	assert.Contains(t, text, "Maximum violations exceeded.")
	assert.Contains(t, text, "Осталось 30")
	assert.NotContains(t, text, "Осталось 17")
}

func TestCommandBackends(t *testing.T) {
	assert.Nil(t, commandPlayer(""))
	assert.Nil(t, commandVoice("  "))
	assert.NotNil(t, commandPlayer("mpg123 -q -"))
	assert.NotNil(t, commandVoice("espeak"))
}
