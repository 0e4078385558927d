package main

import (
	"strings"

	"interview-proctor/internal/proctor"
)

type actionKind int

const (
	actionText actionKind = iota
	actionSignal
	actionSend
	actionRetry
	actionQuit
	actionUnknown
)

type action struct {
	kind   actionKind
	signal proctor.Signal
	text   string
}

var signalCommands = map[string]proctor.Signal{
	"/hide":            proctor.SignalHidden,
	"/show":            proctor.SignalVisible,
	"/exit-fullscreen": proctor.SignalFullscreenExit,
	"/fullscreen":      proctor.SignalFullscreenEnter,
}

// parseLine отделяет команды от текста ответа
func parseLine(line string) action {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return action{kind: actionText, text: trimmed}
	}

	cmd := strings.ToLower(strings.Fields(trimmed)[0])
	if sig, ok := signalCommands[cmd]; ok {
		return action{kind: actionSignal, signal: sig}
	}
	switch cmd {
	case "/send":
		return action{kind: actionSend}
	case "/retry":
		return action{kind: actionRetry}
	case "/quit", "/exit":
		return action{kind: actionQuit}
	default:
		return action{kind: actionUnknown, text: cmd}
	}
}
