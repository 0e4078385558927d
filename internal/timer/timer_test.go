package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-proctor/internal/protocol"
	"interview-proctor/internal/session"
)

type recorder struct {
	submitted []string
}

func (r *recorder) submit(ctx context.Context, text string) error {
	r.submitted = append(r.submitted, text)
	return nil
}

func activeEvent(prompt string) session.Event {
	return session.Event{Type: session.EventPrompt, State: session.State{Status: session.StatusActive, Prompt: prompt}}
}

func readyTimer(budget time.Duration, buffer BufferFunc) (*ResponseTimer, *recorder) {
	r := &recorder{}
	tm := New(budget, r.submit, buffer, nil)
	tm.HandleEvent(activeEvent("Tell me about yourself"))
	tm.SpeechStarted()
	tm.SpeechFinished()
	return tm, r
}

func tickN(tm *ResponseTimer, n int) {
	for i := 0; i < n; i++ {
		tm.Tick(context.Background())
	}
}

func TestExpiryWithEmptyBufferSubmitsPlaceholderOnce(t *testing.T) {
	tm, r := readyTimer(3*time.Second, nil)

	tickN(tm, 10)

	assert.Equal(t, []string{TimeoutAnswer}, r.submitted)
	assert.False(t, tm.Running())
}

func TestExpirySubmitsBufferedText(t *testing.T) {
	tm, r := readyTimer(2*time.Second, func() string { return "half an answer" })

	tickN(tm, 2)

	assert.Equal(t, []string{"half an answer"}, r.submitted)
}

func TestExpiryWithBlankBufferSubmitsPlaceholder(t *testing.T) {
	tm, r := readyTimer(3*time.Second, func() string { return "  \n\t " })

	tickN(tm, 20)

	assert.Equal(t, []string{TimeoutAnswer}, r.submitted)
}

type answerBackend struct {
	mu      sync.Mutex
	answers []string
}

func (b *answerBackend) Start(ctx context.Context, req protocol.StartRequest) (*protocol.StartResponse, error) {
	return &protocol.StartResponse{SessionID: "s1", Question: "Tell me about yourself"}, nil
}

func (b *answerBackend) SubmitAnswer(ctx context.Context, sessionID, answer string) (*protocol.AnswerResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answers = append(b.answers, answer)
	return &protocol.AnswerResponse{NextQuestion: "Describe a challenge"}, nil
}

func (b *answerBackend) FetchResult(ctx context.Context, sessionID string) (*protocol.Result, error) {
	return nil, errors.New("not finished")
}

func (b *answerBackend) FlagViolation(ctx context.Context, sessionID, reason string) (*protocol.FlagResponse, error) {
	return &protocol.FlagResponse{}, nil
}

func (b *answerBackend) Terminate(ctx context.Context, sessionID, reason string) error { return nil }

func (b *answerBackend) CandidateStatus(ctx context.Context, candidateID string) (*protocol.CandidateStatus, error) {
	return &protocol.CandidateStatus{}, nil
}

func TestBlankBufferTimeoutAdvancesController(t *testing.T) {
	backend := &answerBackend{}
	ctrl := session.New(backend, session.Options{})
	defer ctrl.Close()

	tm := New(3*time.Second, ctrl.SubmitAnswer, func() string { return "   " }, nil)
	ctrl.Subscribe(tm.HandleEvent)
	require.NoError(t, ctrl.Start(context.Background(), "cand-1"))
	tm.SpeechStarted()
	tm.SpeechFinished()

	tickN(tm, 20)

	assert.Equal(t, []string{TimeoutAnswer}, backend.answers)
	st := ctrl.Snapshot()
	assert.Equal(t, session.StatusActive, st.Status)
	assert.Equal(t, "Describe a challenge", st.Prompt)
}

func TestExpiryTrimsBufferedText(t *testing.T) {
	tm, r := readyTimer(time.Second, func() string { return "  goroutines are cheap \n" })

	tickN(tm, 1)

	assert.Equal(t, []string{"goroutines are cheap"}, r.submitted)
}

func TestTimerDoesNotTickUnlessActive(t *testing.T) {
	for _, status := range []session.Status{
		session.StatusIdle, session.StatusStarting, session.StatusSubmitting,
		session.StatusFinished, session.StatusTerminated, session.StatusError,
	} {
		t.Run(string(status), func(t *testing.T) {
			tm, r := readyTimer(2*time.Second, nil)
			tm.HandleEvent(session.Event{Type: session.EventStatus,
				State: session.State{Status: status, Prompt: "Tell me about yourself"}})

			tickN(tm, 5)

			assert.Empty(t, r.submitted)
			assert.Equal(t, 2*time.Second, tm.Remaining())
		})
	}
}

func TestTimerWaitsForQuestionAudio(t *testing.T) {
	r := &recorder{}
	tm := New(2*time.Second, r.submit, nil, nil)
	tm.HandleEvent(activeEvent("Q1"))

	tickN(tm, 5)
	assert.Equal(t, 2*time.Second, tm.Remaining(), "must not start before speech")

	tm.SpeechStarted()
	tickN(tm, 5)
	assert.Equal(t, 2*time.Second, tm.Remaining(), "must not count while speaking")

	tm.SpeechFinished()
	tickN(tm, 1)
	assert.Equal(t, time.Second, tm.Remaining())
}

func TestTimerPausedWithoutFullscreen(t *testing.T) {
	tm, r := readyTimer(3*time.Second, nil)

	tickN(tm, 1)
	tm.SetFullscreen(false)
	tickN(tm, 10)
	assert.Equal(t, 2*time.Second, tm.Remaining())
	assert.Empty(t, r.submitted)

	tm.SetFullscreen(true)
	tickN(tm, 2)
	assert.Equal(t, []string{TimeoutAnswer}, r.submitted)
}

func TestNewPromptResetsBudget(t *testing.T) {
	tm, _ := readyTimer(5*time.Second, nil)
	tickN(tm, 3)
	assert.Equal(t, 2*time.Second, tm.Remaining())

	tm.HandleEvent(activeEvent("Describe a challenge"))
	assert.Equal(t, 5*time.Second, tm.Remaining())
	assert.False(t, tm.Running(), "new question waits for its audio")
}

func TestStatusRoundTripKeepsSpeechGate(t *testing.T) {
	tm, _ := readyTimer(5*time.Second, nil)
	tickN(tm, 2)

	tm.HandleEvent(session.Event{Type: session.EventStatus,
		State: session.State{Status: session.StatusSubmitting, Prompt: "Tell me about yourself"}})
	tm.HandleEvent(activeEvent("Tell me about yourself"))

	assert.Equal(t, 5*time.Second, tm.Remaining())
	assert.True(t, tm.Running())
}

func TestOnTickReportsRemaining(t *testing.T) {
	tm, _ := readyTimer(3*time.Second, nil)
	var seen []int
	tm.OnTick(func(remaining int) { seen = append(seen, remaining) })

	tickN(tm, 4)

	assert.Equal(t, []int{2, 1, 0}, seen)
}
