package session

import (
	"context"
	"errors"

	"interview-proctor/internal/protocol"
)

// Status - состояние жизненного цикла сессии интервью
type Status string

const (
	StatusIdle       Status = "idle"
	StatusStarting   Status = "starting"
	StatusActive     Status = "active"
	StatusSubmitting Status = "submitting"
	StatusFinished   Status = "finished"
	StatusTerminated Status = "terminated"
	StatusError      Status = "error"
)

// Live сообщает, идет ли интервью (можно фиксировать нарушения)
func (s Status) Live() bool {
	return s == StatusActive || s == StatusSubmitting
}

// Role - автор сообщения в транскрипте
type Role string

const (
	RoleAI     Role = "ai"
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// Message - одна запись транскрипта
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Pending - ответ показан до подтверждения сервером
	Pending bool `json:"pending,omitempty"`
	// Failed - сервер так и не получил этот ответ
	Failed   bool     `json:"failed,omitempty"`
	Score    *float64 `json:"score,omitempty"`
	Feedback string   `json:"feedback,omitempty"`
}

// ViolationRecord - счетчик нарушений в том виде, в каком его вернул сервер
type ViolationRecord struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
	Limit  int    `json:"limit"`
}

// State - состояние одной попытки интервью
type State struct {
	SessionID         string           `json:"session_id"`
	CandidateID       string           `json:"candidate_id"`
	Role              string           `json:"role,omitempty"`
	Status            Status           `json:"status"`
	Messages          []Message        `json:"messages"`
	Prompt            string           `json:"prompt,omitempty"`
	Violations        ViolationRecord  `json:"violations"`
	Result            *protocol.Result `json:"result,omitempty"`
	Error             string           `json:"error,omitempty"`
	TerminationReason string           `json:"termination_reason,omitempty"`
}

func (s State) clone() State {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	return out
}

// EventType - вид изменения состояния
type EventType string

const (
	EventStatus    EventType = "status"
	EventMessage   EventType = "message"
	EventPrompt    EventType = "prompt"
	EventViolation EventType = "violation"
	EventResult    EventType = "result"
)

// Event передается подписчикам после каждого изменения
type Event struct {
	Type  EventType
	State State
}

// Backend - серверная сторона интервью
type Backend interface {
	Start(ctx context.Context, req protocol.StartRequest) (*protocol.StartResponse, error)
	SubmitAnswer(ctx context.Context, sessionID, answer string) (*protocol.AnswerResponse, error)
	FetchResult(ctx context.Context, sessionID string) (*protocol.Result, error)
	FlagViolation(ctx context.Context, sessionID, reason string) (*protocol.FlagResponse, error)
	Terminate(ctx context.Context, sessionID, reason string) error
	CandidateStatus(ctx context.Context, candidateID string) (*protocol.CandidateStatus, error)
}

var (
	ErrNotIdle            = errors.New("session: start is allowed only from idle")
	ErrNotActive          = errors.New("session: interview is not active")
	ErrSubmissionInFlight = errors.New("session: answer submission already in flight")
	ErrEmptyAnswer        = errors.New("session: empty answer")
	ErrNoActiveSession    = errors.New("session: no active session")
	ErrInterviewClosed    = errors.New("session: interview already completed or terminated")
	ErrNotRecoverable     = errors.New("session: reset is allowed only from error")
)
