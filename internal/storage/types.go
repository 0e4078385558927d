// Package storage хранит кандидатов, сессии интервью, счетчики нарушений и итоговые отчеты.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"interview-proctor/internal/protocol"
)

var ErrNotFound = errors.New("storage: not found")

// Статусы кандидата
const (
	CandidateMatched      = "Matched"
	CandidateInterviewing = "Interviewing"
	CandidateCompleted    = "Completed"
	CandidateTerminated   = "Terminated"
)

// Candidate представляет кандидата, приглашенного на интервью
type Candidate struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ResumeText     string    `json:"resume_text"`
	JobDescription string    `json:"job_description"`
	MatchScore     float64   `json:"match_score"`
	Status         string    `json:"status"`
	InterviewScore float64   `json:"interview_score"`
	FinalScore     float64   `json:"final_score"`
	Flags          []Flag    `json:"flags"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasStatus сравнивает статус без учета регистра и по вхождению, как "Interviewing (resumed)"
func (c *Candidate) HasStatus(status string) bool {
	return strings.Contains(strings.ToLower(c.Status), strings.ToLower(status))
}

// Flag - одно нарушение, записанное на кандидата
type Flag struct {
	Violation string    `json:"violation"`
	Timestamp time.Time `json:"timestamp"`
}

// QuestionScore - оцененный ответ на один вопрос
type QuestionScore struct {
	Question    string  `json:"question"`
	Answer      string  `json:"answer"`
	Score       float64 `json:"score"`
	Feedback    string  `json:"feedback"`
	Strength    string  `json:"strength"`
	Gap         string  `json:"gap"`
	Improvement string  `json:"improvement"`
}

// Session представляет серверную сторону одной попытки интервью
type Session struct {
	ID              string          `json:"session_id"`
	CandidateID     string          `json:"candidate_id"`
	Role            string          `json:"role"`
	ResumeText      string          `json:"resume_text"`
	JobDescription  string          `json:"job_description"`
	MatchScore      float64         `json:"match_score"`
	Active          bool            `json:"is_active"`
	Terminated      bool            `json:"terminated"`
	CurrentQuestion string          `json:"current_question"`
	Scores          []QuestionScore `json:"scores"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Message - реплика диалога, сохраняемая для аудита
type Message struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store - хранилище кандидатов и сессий
type Store interface {
	GetCandidate(ctx context.Context, id string) (*Candidate, error)
	UpdateCandidateStatus(ctx context.Context, id, status string) error
	UpdateCandidateInterview(ctx context.Context, id string, interviewScore, finalScore float64, status string) error
	FlagCandidate(ctx context.Context, id, violation string) (int, error)

	SaveSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ActiveSessionByCandidate(ctx context.Context, candidateID string) (*Session, error)
	LogMessage(ctx context.Context, m Message) error
	Messages(ctx context.Context, sessionID string) ([]Message, error)
}

// ViolationCounter считает нарушения сессии на сервере
type ViolationCounter interface {
	Incr(ctx context.Context, sessionID string) (int, error)
	Count(ctx context.Context, sessionID string) (int, error)
}

// Archive сохраняет итоговые отчеты
type Archive interface {
	SaveResult(ctx context.Context, result *protocol.Result) error
}
