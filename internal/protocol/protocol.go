// Package protocol содержит JSON структуры, которыми обмениваются кандидатский клиент и сервер интервью.
package protocol

const (
	RouteStart           = "/interview/start"
	RouteAnswer          = "/interview/answer"
	RouteResult          = "/interview/result"
	RouteFlag            = "/interview/flag"
	RouteTerminate       = "/interview/terminate"
	RouteSpeak           = "/interview/speak"
	RouteCandidateStatus = "/candidates/:id/status"
	RouteSessionEvents   = "/ws/session/:id"
	RouteMetrics         = "/metrics"

	// SessionCookie закрепляет активную сессию за устройством кандидата
	SessionCookie = "interview_session"

	StatusTerminated = "terminated"
	StatusFlagged    = "flagged"
	StatusIgnored    = "ignored"

	TTSDisabled = "TTS_DISABLED"
)

type StartRequest struct {
	CandidateID    string   `json:"candidate_id"`
	ResumeText     string   `json:"resume_text,omitempty"`
	JobDescription string   `json:"job_description,omitempty"`
	MatchScore     *float64 `json:"match_score,omitempty"`
}

type StartResponse struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role,omitempty"`
	Question  string `json:"question,omitempty"`
}

type AnswerRequest struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

type AnswerResponse struct {
	IsFinished   bool     `json:"is_finished"`
	NextQuestion string   `json:"next_question,omitempty"`
	Feedback     string   `json:"feedback,omitempty"`
	Score        *float64 `json:"score,omitempty"`
}

type ResultRequest struct {
	SessionID string `json:"session_id"`
}

// TranscriptEntry - один оцененный вопрос и ответ
type TranscriptEntry struct {
	Question string  `json:"q"`
	Answer   string  `json:"a"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// CareerReport - итоговые рекомендации по кандидату
type CareerReport struct {
	FocusAreas     []string `json:"focus_areas"`
	PreferredRoles []string `json:"preferred_roles"`
	Motivation     string   `json:"motivation"`
}

type Result struct {
	SessionID      string            `json:"session_id"`
	Role           string            `json:"role,omitempty"`
	InterviewScore float64           `json:"interview_score"`
	ResumeScore    float64           `json:"resume_score"`
	FinalScore     float64           `json:"final_score"`
	TotalQuestions int               `json:"total_questions"`
	Transcript     []TranscriptEntry `json:"transcript"`
	CareerReport   *CareerReport     `json:"career_report,omitempty"`
}

// Complete сообщает, содержит ли отчет оцененный транскрипт
func (r *Result) Complete() bool {
	return r != nil && r.SessionID != "" && r.TotalQuestions > 0 && len(r.Transcript) >= r.TotalQuestions
}

type FlagRequest struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// FlagResponse - ответ на нарушение. Все, кроме Status == "terminated", считается предупреждением.
type FlagResponse struct {
	WarningCount int    `json:"warning_count,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Status       string `json:"status,omitempty"`
	Msg          string `json:"msg,omitempty"`
}

// Terminated сообщает, завершил ли сервер сессию
func (r *FlagResponse) Terminated() bool {
	return r != nil && r.Status == StatusTerminated
}

type TerminateResponse struct {
	Status string `json:"status"`
}

type SpeakRequest struct {
	Text string `json:"text"`
}

type CandidateStatus struct {
	CandidateID     string `json:"candidate_id"`
	Status          string `json:"status"`
	InterviewClosed bool   `json:"interview_closed"`
}

type ErrorResponse struct {
	Code   int    `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Event - кадр живой ленты событий сессии
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Data      any    `json:"data,omitempty"`
}

const (
	EventStarted    = "started"
	EventAnswered   = "answered"
	EventFinished   = "finished"
	EventFlagged    = "flagged"
	EventTerminated = "terminated"
)
