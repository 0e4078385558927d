// Package metrics считает события интервью для /metrics.
package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu                 sync.RWMutex
	sessionsStarted    int64
	sessionsCompleted  int64
	sessionsTerminated int64
	answersSubmitted   int64
	violationsFlagged  int64
	llmCallsTotal      int64
	llmCallsSuccessful int64
	ttsRequests        int64
	startedAt          time.Time
	lastUpdateTime     time.Time
}

// Snapshot - копия счетчиков для отдачи наружу
type Snapshot struct {
	SessionsStarted    int64     `json:"sessions_started"`
	SessionsCompleted  int64     `json:"sessions_completed"`
	SessionsTerminated int64     `json:"sessions_terminated"`
	AnswersSubmitted   int64     `json:"answers_submitted"`
	ViolationsFlagged  int64     `json:"violations_flagged"`
	LLMCallsTotal      int64     `json:"llm_calls_total"`
	LLMCallsSuccessful int64     `json:"llm_calls_successful"`
	TTSRequests        int64     `json:"tts_requests"`
	Uptime             string    `json:"uptime"`
	LastUpdateTime     time.Time `json:"last_update_time"`
}

func NewMetrics() *Metrics {
	now := time.Now()
	return &Metrics{
		startedAt:      now,
		lastUpdateTime: now,
	}
}

func (m *Metrics) inc(counter *int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	*counter++
	m.lastUpdateTime = time.Now()
}

func (m *Metrics) IncrementSessionsStarted() {
	if m != nil {
		m.inc(&m.sessionsStarted)
	}
}

func (m *Metrics) IncrementSessionsCompleted() {
	if m != nil {
		m.inc(&m.sessionsCompleted)
	}
}

func (m *Metrics) IncrementSessionsTerminated() {
	if m != nil {
		m.inc(&m.sessionsTerminated)
	}
}

func (m *Metrics) IncrementAnswersSubmitted() {
	if m != nil {
		m.inc(&m.answersSubmitted)
	}
}

func (m *Metrics) IncrementViolationsFlagged() {
	if m != nil {
		m.inc(&m.violationsFlagged)
	}
}

func (m *Metrics) IncrementTTSRequests() {
	if m != nil {
		m.inc(&m.ttsRequests)
	}
}

func (m *Metrics) IncrementLLMCall(success bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.llmCallsTotal++
	if success {
		m.llmCallsSuccessful++
	}
	m.lastUpdateTime = time.Now()
}

func (m *Metrics) GetSnapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		SessionsStarted:    m.sessionsStarted,
		SessionsCompleted:  m.sessionsCompleted,
		SessionsTerminated: m.sessionsTerminated,
		AnswersSubmitted:   m.answersSubmitted,
		ViolationsFlagged:  m.violationsFlagged,
		LLMCallsTotal:      m.llmCallsTotal,
		LLMCallsSuccessful: m.llmCallsSuccessful,
		TTSRequests:        m.ttsRequests,
		Uptime:             time.Since(m.startedAt).Round(time.Second).String(),
		LastUpdateTime:     m.lastUpdateTime,
	}
}
