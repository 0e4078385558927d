// Package interviewer - серверная сторона интервью: сессии, вопросы, оценка ответов, нарушения и итоговый отчет.
package interviewer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"interview-proctor/internal/apperr"
	"interview-proctor/internal/config"
	"interview-proctor/internal/events"
	"interview-proctor/internal/extractor"
	"interview-proctor/internal/llm"
	"interview-proctor/internal/logger"
	"interview-proctor/internal/metrics"
	"interview-proctor/internal/prompts"
	"interview-proctor/internal/protocol"
	"interview-proctor/internal/storage"
)

const (
	resumeGreeting = "Welcome back. Let's continue."
	closingMessage = "Interview complete. Thank you."
	violationsMsg  = "Maximum violations exceeded."
)

// Options - зависимости менеджера. Archive, Events и Metrics необязательны.
type Options struct {
	Store   storage.Store
	Counter storage.ViolationCounter
	LLM     llm.Completer
	Archive storage.Archive
	Events  events.Publisher
	Metrics *metrics.Metrics
	Config  *config.Config
	Logger  *zap.Logger
}

// Manager ведет сессии интервью
type Manager struct {
	store     storage.Store
	counter   storage.ViolationCounter
	llm       llm.Completer
	extractor *extractor.Service
	archive   storage.Archive
	events    events.Publisher
	metrics   *metrics.Metrics
	cfg       *config.Config
	log       *zap.Logger

	// блокировки по сессиям
	locks sync.Map

	mu      sync.Mutex
	results map[string]*protocol.Result

	wg sync.WaitGroup
}

// New создает менеджер интервью
func New(opts Options) *Manager {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	pub := opts.Events
	if pub == nil {
		pub = events.Nop{}
	}
	log := logger.OrNop(opts.Logger)
	completer := &meteredCompleter{next: opts.LLM, metrics: opts.Metrics}

	return &Manager{
		store:     opts.Store,
		counter:   opts.Counter,
		llm:       completer,
		extractor: extractor.New(completer, cfg.Scoring.DefaultGrade, log),
		archive:   opts.Archive,
		events:    pub,
		metrics:   opts.Metrics,
		cfg:       cfg,
		log:       log,
		results:   make(map[string]*protocol.Result),
	}
}

// Wait дожидается фоновых расчетов отчетов
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) lock(sessionID string) func() {
	v, _ := m.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Start создает сессию или продолжает активную. cookie - значение interview_session у клиента.
func (m *Manager) Start(ctx context.Context, req protocol.StartRequest, cookie string) (*protocol.StartResponse, error) {
	resume := strings.TrimSpace(req.ResumeText)
	jd := strings.TrimSpace(req.JobDescription)
	var matchScore float64
	if req.MatchScore != nil {
		matchScore = *req.MatchScore
	}

	if req.CandidateID == "" && resume == "" && jd == "" {
		return nil, apperr.Newf(apperr.InvalidParams, "candidate_id or resume_text is required")
	}

	if req.CandidateID != "" && (resume == "" || jd == "") {
		candidate, err := m.store.GetCandidate(ctx, req.CandidateID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.CandidateNotFound)
		}
		if err != nil {
			return nil, apperr.Wrap(err, apperr.InternalError)
		}

		if m.closed(candidate) {
			return nil, apperr.New(apperr.InterviewClosed)
		}

		active, err := m.store.ActiveSessionByCandidate(ctx, req.CandidateID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			if candidate.HasStatus(storage.CandidateInterviewing) || candidate.HasStatus("active") {
				return nil, apperr.New(apperr.CandidateMismatch)
			}
		case err != nil:
			return nil, apperr.Wrap(err, apperr.InternalError)
		default:
			if cookie != active.ID {
				m.log.Warn("blocked restart attempt",
					zap.String("candidate_id", req.CandidateID), zap.String("session_id", active.ID))
				return nil, apperr.New(apperr.SessionLocked)
			}
			m.log.Info("resuming session", zap.String("session_id", active.ID))
			question := active.CurrentQuestion
			if question == "" {
				question = resumeGreeting
			}
			return &protocol.StartResponse{SessionID: active.ID, Role: active.Role, Question: question}, nil
		}

		resume, jd, matchScore = candidate.ResumeText, candidate.JobDescription, candidate.MatchScore
	}

	sess := &storage.Session{
		ID:             uuid.NewString(),
		CandidateID:    req.CandidateID,
		Role:           m.cfg.Interview.DefaultRole,
		ResumeText:     resume,
		JobDescription: jd,
		MatchScore:     matchScore,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}
	ctx = logger.WithSessionID(ctx, sess.ID)

	if jd != "" {
		sess.Role = m.extractor.DeduceRole(ctx, jd)
	}
	sess.CurrentQuestion = m.nextQuestion(ctx, sess, m.cfg.Messages.FirstQuestionFallback)

	if err := m.store.SaveSession(ctx, sess); err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError)
	}
	m.logMessage(ctx, sess.ID, "assistant", sess.CurrentQuestion)

	if sess.CandidateID != "" {
		if err := m.store.UpdateCandidateStatus(ctx, sess.CandidateID, storage.CandidateInterviewing); err != nil {
			logger.FromContext(ctx, m.log).Warn("candidate status not updated", zap.Error(err))
		}
	}

	m.metrics.IncrementSessionsStarted()
	m.publish(ctx, protocol.EventStarted, sess.ID, map[string]any{
		"candidate_id": sess.CandidateID,
		"role":         sess.Role,
	})
	logger.FromContext(ctx, m.log).Info("interview started", zap.String("role", sess.Role))

	return &protocol.StartResponse{SessionID: sess.ID, Role: sess.Role, Question: sess.CurrentQuestion}, nil
}

// CandidateStatus возвращает статус кандидата и можно ли ему начать интервью
func (m *Manager) CandidateStatus(ctx context.Context, candidateID string) (*protocol.CandidateStatus, error) {
	candidate, err := m.store.GetCandidate(ctx, candidateID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.CandidateNotFound)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError)
	}
	return &protocol.CandidateStatus{
		CandidateID:     candidate.ID,
		Status:          candidate.Status,
		InterviewClosed: m.closed(candidate),
	}, nil
}

// closed - статус кандидата содержит один из финальных статусов
func (m *Manager) closed(c *storage.Candidate) bool {
	for _, s := range m.cfg.Interview.FinalStatuses {
		if c.HasStatus(s) {
			return true
		}
	}
	return false
}

// nextQuestion спрашивает модель о следующем вопросе, при ошибке возвращает fallback
func (m *Manager) nextQuestion(ctx context.Context, sess *storage.Session, fallback string) string {
	history := make([]prompts.Turn, 0, len(sess.Scores))
	for _, s := range sess.Scores {
		history = append(history, prompts.Turn{Question: s.Question, Answer: s.Answer, Score: s.Score})
	}

	question, err := m.llm.Complete(ctx,
		prompts.InterviewerSystem(sess.Role, sess.ResumeText, sess.JobDescription, sess.MatchScore),
		prompts.NextQuestion(history))
	question = strings.TrimSpace(question)
	if err != nil || question == "" {
		logger.FromContext(ctx, m.log).Warn("question generation failed, using fallback", zap.Error(err))
		return fallback
	}
	return question
}

func (m *Manager) logMessage(ctx context.Context, sessionID, role, content string) {
	err := m.store.LogMessage(ctx, storage.Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		logger.FromContext(ctx, m.log).Warn("message not logged", zap.Error(err))
	}
}

func (m *Manager) publish(ctx context.Context, eventType, sessionID string, data map[string]any) {
	ev := protocol.Event{Type: eventType, SessionID: sessionID, Data: data}
	if err := m.events.Publish(ctx, ev); err != nil {
		logger.FromContext(ctx, m.log).Warn("event not published", zap.String("type", eventType), zap.Error(err))
	}
}

// meteredCompleter считает вызовы модели
type meteredCompleter struct {
	next    llm.Completer
	metrics *metrics.Metrics
}

func (c *meteredCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	if c.next == nil {
		return "", llm.ErrDisabled
	}
	out, err := c.next.Complete(ctx, system, user)
	if !errors.Is(err, llm.ErrDisabled) {
		c.metrics.IncrementLLMCall(err == nil)
	}
	return out, err
}
