package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"interview-proctor/internal/logger"
	"interview-proctor/internal/protocol"
)

const (
	DefaultClosingMessage     = "Interview Finished! Generating report..."
	DefaultSubmitErrorMessage = "Error sending answer. Please try again."
	DefaultTerminationReason  = "Maximum violations exceeded."
)

// Options настраивает контроллер
type Options struct {
	ClosingMessage     string
	SubmitErrorMessage string
	// FinishDelay - минимальная пауза перед запросом отчета
	FinishDelay time.Duration
	// ResultAttempts - сколько раз запрашивать отчет, пока он неполный
	ResultAttempts int
	ResultInterval time.Duration
	Logger         *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.ClosingMessage == "" {
		o.ClosingMessage = DefaultClosingMessage
	}
	if o.SubmitErrorMessage == "" {
		o.SubmitErrorMessage = DefaultSubmitErrorMessage
	}
	if o.FinishDelay < 0 {
		o.FinishDelay = 0
	}
	if o.ResultAttempts <= 0 {
		o.ResultAttempts = 1
	}
	if o.ResultInterval <= 0 {
		o.ResultInterval = time.Second
	}
	return o
}

// Controller ведет одну попытку интервью: вопрос, ответ, следующий вопрос, отчет
type Controller struct {
	backend Backend
	opts    Options
	log     *zap.Logger

	mu       sync.Mutex
	state    State
	inFlight bool
	subs     []func(Event)

	bg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New создает контроллер в состоянии idle
func New(backend Backend, opts Options) *Controller {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		backend: backend,
		opts:    opts,
		log:     logger.OrNop(opts.Logger),
		state:   State{Status: StatusIdle},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Subscribe регистрирует наблюдателя изменений состояния
func (c *Controller) Subscribe(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// Snapshot возвращает копию текущего состояния
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Status возвращает текущий статус
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Status
}

// Close отменяет фоновый запрос отчета и ждет его завершения
func (c *Controller) Close() {
	c.cancel()
	c.bg.Wait()
}

// Wait ждет завершения фонового запроса отчета
func (c *Controller) Wait() {
	c.bg.Wait()
}

// Start открывает новую сессию для кандидата
func (c *Controller) Start(ctx context.Context, candidateID string) error {
	c.mu.Lock()
	if c.state.Status != StatusIdle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	c.state = State{Status: StatusStarting, CandidateID: candidateID}
	events := c.eventsLocked(EventStatus)
	c.mu.Unlock()
	c.dispatch(events)

	if err := c.checkCandidate(ctx, candidateID); err != nil {
		c.failStart(err)
		return err
	}

	resp, err := c.backend.Start(ctx, protocol.StartRequest{CandidateID: candidateID})
	if err == nil && (resp == nil || resp.SessionID == "") {
		err = errors.New("empty session id in start response")
	}
	if err != nil {
		err = fmt.Errorf("failed to start interview: %w", err)
		c.failStart(err)
		return err
	}

	c.mu.Lock()
	c.state.SessionID = resp.SessionID
	c.state.Role = resp.Role
	types := []EventType{EventStatus}
	if resp.Question != "" {
		c.state.Messages = append(c.state.Messages, Message{Role: RoleAI, Content: resp.Question})
		c.state.Prompt = resp.Question
		types = append(types, EventMessage, EventPrompt)
	}
	c.state.Status = StatusActive
	events = c.eventsLocked(types...)
	c.mu.Unlock()

	logger.FromContext(logger.WithSessionID(ctx, resp.SessionID), c.log).Info("interview started",
		zap.String("candidate_id", candidateID), zap.Bool("has_question", resp.Question != ""))
	c.dispatch(events)
	return nil
}

// checkCandidate отсекает кандидатов, уже прошедших интервью. Ошибка чтения статуса не мешает старту.
func (c *Controller) checkCandidate(ctx context.Context, candidateID string) error {
	st, err := c.backend.CandidateStatus(ctx, candidateID)
	if err != nil {
		c.log.Warn("candidate status read failed, starting anyway",
			zap.String("candidate_id", candidateID), zap.Error(err))
		return nil
	}
	if st != nil && st.InterviewClosed {
		return ErrInterviewClosed
	}
	return nil
}

func (c *Controller) failStart(err error) {
	c.mu.Lock()
	c.state.Status = StatusError
	c.state.Error = err.Error()
	events := c.eventsLocked(EventStatus)
	c.mu.Unlock()

	c.log.Warn("interview start failed", zap.Error(err))
	c.dispatch(events)
}

// Reset возвращает контроллер из error в idle
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.state.Status != StatusError {
		c.mu.Unlock()
		return ErrNotRecoverable
	}
	c.state = State{Status: StatusIdle}
	events := c.eventsLocked(EventStatus)
	c.mu.Unlock()
	c.dispatch(events)
	return nil
}

// SubmitAnswer отправляет ответ на текущий вопрос. Пока предыдущая отправка не завершилась,
// вызов ничего не меняет и возвращает ErrSubmissionInFlight.
func (c *Controller) SubmitAnswer(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if c.state.Status != StatusActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	if text == "" {
		c.mu.Unlock()
		return ErrEmptyAnswer
	}
	c.inFlight = true
	sessionID := c.state.SessionID
	c.state.Messages = append(c.state.Messages, Message{Role: RoleUser, Content: text, Pending: true})
	answerIdx := len(c.state.Messages) - 1
	c.state.Status = StatusSubmitting
	events := c.eventsLocked(EventMessage, EventStatus)
	c.mu.Unlock()
	c.dispatch(events)

	ctx = logger.WithSessionID(ctx, sessionID)
	resp, err := c.backend.SubmitAnswer(ctx, sessionID, text)
	if err == nil && resp == nil {
		err = errors.New("empty answer response")
	}
	if err == nil && !resp.IsFinished && strings.TrimSpace(resp.NextQuestion) == "" {
		err = errors.New("answer response has neither next question nor finish flag")
	}

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		c.state.Messages[answerIdx].Pending = false
		c.state.Messages[answerIdx].Failed = true
		c.state.Messages = append(c.state.Messages, Message{Role: RoleSystem, Content: c.opts.SubmitErrorMessage})
		types := []EventType{EventMessage}
		if c.state.Status == StatusSubmitting {
			c.state.Status = StatusActive
			types = append(types, EventStatus)
		}
		events = c.eventsLocked(types...)
		c.mu.Unlock()

		logger.FromContext(ctx, c.log).Warn("answer submission failed", zap.Error(err))
		c.dispatch(events)
		return fmt.Errorf("failed to submit answer: %w", err)
	}

	answer := &c.state.Messages[answerIdx]
	answer.Pending = false
	answer.Score = resp.Score
	answer.Feedback = resp.Feedback

	if c.state.Status != StatusSubmitting {
		// сессия завершена нарушением, пока ответ был в пути
		events = c.eventsLocked(EventMessage)
		c.mu.Unlock()
		c.dispatch(events)
		return nil
	}

	if resp.IsFinished {
		c.state.Messages = append(c.state.Messages, Message{Role: RoleAI, Content: c.opts.ClosingMessage})
		c.state.Status = StatusFinished
		events = c.eventsLocked(EventMessage, EventStatus)
		c.bg.Add(1)
		c.mu.Unlock()

		logger.FromContext(ctx, c.log).Info("interview finished")
		c.dispatch(events)
		go c.fetchResult(sessionID)
		return nil
	}

	c.state.Messages = append(c.state.Messages, Message{Role: RoleAI, Content: resp.NextQuestion})
	c.state.Prompt = resp.NextQuestion
	c.state.Status = StatusActive
	events = c.eventsLocked(EventMessage, EventPrompt, EventStatus)
	c.mu.Unlock()
	c.dispatch(events)
	return nil
}

// fetchResult запрашивает отчет не раньше FinishDelay и повторяет запрос, пока он неполный
func (c *Controller) fetchResult(sessionID string) {
	defer c.bg.Done()
	ctx := logger.WithSessionID(c.ctx, sessionID)
	log := logger.FromContext(ctx, c.log)

	if !sleepCtx(ctx, c.opts.FinishDelay) {
		return
	}

	var last *protocol.Result
	for attempt := 1; attempt <= c.opts.ResultAttempts; attempt++ {
		res, err := c.backend.FetchResult(ctx, sessionID)
		switch {
		case err != nil:
			log.Warn("result fetch failed", zap.Int("attempt", attempt), zap.Error(err))
		case res.Complete():
			c.setResult(res)
			return
		default:
			last = res
			log.Info("result incomplete, polling again", zap.Int("attempt", attempt))
		}
		if attempt < c.opts.ResultAttempts && !sleepCtx(ctx, c.opts.ResultInterval) {
			return
		}
	}
	if last != nil {
		c.setResult(last)
	}
}

func (c *Controller) setResult(res *protocol.Result) {
	c.mu.Lock()
	c.state.Result = res
	events := c.eventsLocked(EventResult)
	c.mu.Unlock()
	c.dispatch(events)
}

// FlagViolation передает нарушение серверу. Решение о завершении принимает сервер.
func (c *Controller) FlagViolation(ctx context.Context, reason string) (*protocol.FlagResponse, error) {
	c.mu.Lock()
	sessionID := c.state.SessionID
	live := c.state.Status.Live()
	c.mu.Unlock()
	if sessionID == "" || !live {
		return nil, ErrNoActiveSession
	}

	ctx = logger.WithSessionID(ctx, sessionID)
	log := logger.FromContext(ctx, c.log)

	resp, err := c.backend.FlagViolation(ctx, sessionID, reason)
	if err != nil {
		log.Warn("violation flag failed", zap.String("reason", reason), zap.Error(err))
		return nil, fmt.Errorf("failed to flag violation: %w", err)
	}
	if resp == nil {
		resp = &protocol.FlagResponse{}
	}

	terminate := resp.Terminated()
	if !terminate && resp.Limit > 0 && resp.WarningCount >= resp.Limit && c.Status().Live() {
		if err := c.backend.Terminate(ctx, sessionID, reason); err != nil {
			log.Warn("explicit terminate failed", zap.Error(err))
		}
		terminate = true
	}

	c.mu.Lock()
	// пока флаг был в пути, сессия могла закончиться обычным путем
	if !c.state.Status.Live() {
		terminate = false
	}
	v := &c.state.Violations
	v.Reason = reason
	if resp.WarningCount > v.Count {
		v.Count = resp.WarningCount
	}
	if resp.Limit > 0 {
		v.Limit = resp.Limit
	}
	types := []EventType{EventViolation}
	if terminate {
		c.state.Status = StatusTerminated
		c.state.TerminationReason = resp.Msg
		if c.state.TerminationReason == "" {
			c.state.TerminationReason = DefaultTerminationReason
		}
		types = append(types, EventStatus)
	}
	events := c.eventsLocked(types...)
	c.mu.Unlock()

	log.Info("violation flagged", zap.String("reason", reason),
		zap.Int("warning_count", resp.WarningCount), zap.Int("limit", resp.Limit), zap.Bool("terminated", terminate))
	c.dispatch(events)
	if terminate {
		resp.Status = protocol.StatusTerminated
	}
	return resp, nil
}

func (c *Controller) eventsLocked(types ...EventType) []Event {
	if len(c.subs) == 0 {
		return nil
	}
	snap := c.state.clone()
	events := make([]Event, 0, len(types))
	for _, t := range types {
		events = append(events, Event{Type: t, State: snap})
	}
	return events
}

func (c *Controller) dispatch(events []Event) {
	if len(events) == 0 {
		return
	}
	c.mu.Lock()
	subs := slices.Clone(c.subs)
	c.mu.Unlock()
	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
