package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-proctor/internal/protocol"
)

type fakeBackend struct {
	mu sync.Mutex

	startResp  *protocol.StartResponse
	startErr   error
	statusResp *protocol.CandidateStatus
	statusErr  error

	answers    []*protocol.AnswerResponse
	answerErr  error
	answerGate chan struct{}
	submitted  []string

	results     []*protocol.Result
	resultCalls int

	flagEntered   chan struct{}
	flagGate      chan struct{}
	flagCount     int
	flagLimit     int
	terminateAt   int
	flagErr       error
	noStatus      bool
	terminateArgs []string
}

func (f *fakeBackend) Start(ctx context.Context, req protocol.StartRequest) (*protocol.StartResponse, error) {
	return f.startResp, f.startErr
}

func (f *fakeBackend) CandidateStatus(ctx context.Context, candidateID string) (*protocol.CandidateStatus, error) {
	return f.statusResp, f.statusErr
}

func (f *fakeBackend) SubmitAnswer(ctx context.Context, sessionID, answer string) (*protocol.AnswerResponse, error) {
	if f.answerGate != nil {
		<-f.answerGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, answer)
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	resp := f.answers[0]
	f.answers = f.answers[1:]
	return resp, nil
}

func (f *fakeBackend) FetchResult(ctx context.Context, sessionID string) (*protocol.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultCalls++
	if len(f.results) == 0 {
		return nil, errors.New("no result")
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res, nil
}

func (f *fakeBackend) FlagViolation(ctx context.Context, sessionID, reason string) (*protocol.FlagResponse, error) {
	if f.flagEntered != nil {
		close(f.flagEntered)
	}
	if f.flagGate != nil {
		<-f.flagGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flagErr != nil {
		return nil, f.flagErr
	}
	f.flagCount++
	resp := &protocol.FlagResponse{WarningCount: f.flagCount, Limit: f.flagLimit}
	if !f.noStatus && f.terminateAt > 0 && f.flagCount >= f.terminateAt {
		resp.Status = protocol.StatusTerminated
		resp.Msg = "Interview terminated due to repeated violations."
	}
	return resp, nil
}

func (f *fakeBackend) Terminate(ctx context.Context, sessionID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminateArgs = append(f.terminateArgs, reason)
	return nil
}

func score(v float64) *float64 { return &v }

func startedController(t *testing.T, b *fakeBackend) *Controller {
	t.Helper()
	if b.startResp == nil {
		b.startResp = &protocol.StartResponse{SessionID: "s1", Question: "Tell me about yourself"}
	}
	c := New(b, Options{FinishDelay: time.Millisecond, ResultInterval: time.Millisecond, ResultAttempts: 3})
	t.Cleanup(c.Close)
	require.NoError(t, c.Start(context.Background(), "cand-1"))
	return c
}

func TestStartActivatesSessionWithFirstQuestion(t *testing.T) {
	c := startedController(t, &fakeBackend{})

	st := c.Snapshot()
	assert.Equal(t, StatusActive, st.Status)
	assert.Equal(t, "s1", st.SessionID)
	assert.Equal(t, "Tell me about yourself", st.Prompt)
	assert.Equal(t, []Message{{Role: RoleAI, Content: "Tell me about yourself"}}, st.Messages)
}

func TestStartWithoutQuestionStillActive(t *testing.T) {
	c := startedController(t, &fakeBackend{startResp: &protocol.StartResponse{SessionID: "s1"}})

	st := c.Snapshot()
	assert.Equal(t, StatusActive, st.Status)
	assert.Empty(t, st.Messages)
	assert.Empty(t, st.Prompt)
}

func TestStartFailureMovesToErrorAndResetAllowsRetry(t *testing.T) {
	b := &fakeBackend{startErr: errors.New("connection refused")}
	c := New(b, Options{})
	defer c.Close()

	err := c.Start(context.Background(), "cand-1")
	require.Error(t, err)
	st := c.Snapshot()
	assert.Equal(t, StatusError, st.Status)
	assert.Contains(t, st.Error, "connection refused")
	assert.Empty(t, st.SessionID)

	assert.ErrorIs(t, c.Start(context.Background(), "cand-1"), ErrNotIdle)

	require.NoError(t, c.Reset())
	b.startErr = nil
	b.startResp = &protocol.StartResponse{SessionID: "s2", Question: "Q1"}
	require.NoError(t, c.Start(context.Background(), "cand-1"))
	assert.Equal(t, StatusActive, c.Status())
}

func TestStartRefusedForClosedCandidate(t *testing.T) {
	b := &fakeBackend{statusResp: &protocol.CandidateStatus{Status: "Completed", InterviewClosed: true}}
	c := New(b, Options{})
	defer c.Close()

	err := c.Start(context.Background(), "cand-1")
	assert.ErrorIs(t, err, ErrInterviewClosed)
	assert.Equal(t, StatusError, c.Status())
}

func TestStartProceedsWhenStatusReadFails(t *testing.T) {
	c := startedController(t, &fakeBackend{statusErr: errors.New("timeout")})
	assert.Equal(t, StatusActive, c.Status())
}

func TestSubmitAnswerAppendsNextQuestion(t *testing.T) {
	b := &fakeBackend{answers: []*protocol.AnswerResponse{
		{NextQuestion: "Describe a challenge", Score: score(7), Feedback: "solid"},
	}}
	c := startedController(t, b)

	var statuses []Status
	c.Subscribe(func(ev Event) {
		if ev.Type == EventStatus {
			statuses = append(statuses, ev.State.Status)
		}
	})

	require.NoError(t, c.SubmitAnswer(context.Background(), "I am a developer"))

	st := c.Snapshot()
	require.Len(t, st.Messages, 3)
	assert.Equal(t, Message{Role: RoleUser, Content: "I am a developer", Score: score(7), Feedback: "solid"}, st.Messages[1])
	assert.Equal(t, Message{Role: RoleAI, Content: "Describe a challenge"}, st.Messages[2])
	assert.Equal(t, "Describe a challenge", st.Prompt)
	assert.Equal(t, StatusActive, st.Status)
	assert.Equal(t, []Status{StatusSubmitting, StatusActive}, statuses)
}

func TestTranscriptAlternatesStartingWithAI(t *testing.T) {
	const turns = 4
	b := &fakeBackend{}
	for i := 0; i < turns; i++ {
		b.answers = append(b.answers, &protocol.AnswerResponse{NextQuestion: "next"})
	}
	c := startedController(t, b)

	for i := 0; i < turns; i++ {
		require.NoError(t, c.SubmitAnswer(context.Background(), "answer"))
	}

	msgs := c.Snapshot().Messages
	// последний вопрос еще без ответа
	completed := msgs[:len(msgs)-1]
	assert.Len(t, completed, 2*turns)
	for i, m := range completed {
		want := RoleAI
		if i%2 == 1 {
			want = RoleUser
		}
		assert.Equal(t, want, m.Role, "message %d", i)
	}
}

func TestSubmitWhileInFlightIsNoop(t *testing.T) {
	gate := make(chan struct{})
	b := &fakeBackend{answerGate: gate, answers: []*protocol.AnswerResponse{{NextQuestion: "Q2"}}}
	c := startedController(t, b)

	submitting := make(chan struct{})
	c.Subscribe(func(ev Event) {
		if ev.Type == EventStatus && ev.State.Status == StatusSubmitting {
			close(submitting)
		}
	})

	done := make(chan error, 1)
	go func() { done <- c.SubmitAnswer(context.Background(), "first") }()
	<-submitting

	assert.ErrorIs(t, c.SubmitAnswer(context.Background(), "second"), ErrSubmissionInFlight)
	assert.Len(t, c.Snapshot().Messages, 2)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"first"}, b.submitted)
}

func TestSubmitFailureKeepsAnswerVisibleAndReturnsToActive(t *testing.T) {
	b := &fakeBackend{answerErr: errors.New("502 bad gateway")}
	c := startedController(t, b)

	err := c.SubmitAnswer(context.Background(), "my answer")
	require.Error(t, err)

	st := c.Snapshot()
	assert.Equal(t, StatusActive, st.Status)
	require.Len(t, st.Messages, 3)
	assert.Equal(t, "my answer", st.Messages[1].Content)
	assert.True(t, st.Messages[1].Failed)
	assert.False(t, st.Messages[1].Pending)
	assert.Equal(t, RoleSystem, st.Messages[2].Role)
	assert.Equal(t, DefaultSubmitErrorMessage, st.Messages[2].Content)
}

func TestFinishFetchesResult(t *testing.T) {
	incomplete := &protocol.Result{SessionID: "s1", TotalQuestions: 1}
	complete := &protocol.Result{SessionID: "s1", TotalQuestions: 1, FinalScore: 71.5,
		Transcript: []protocol.TranscriptEntry{{Question: "Q1", Answer: "A1", Score: 7}}}
	b := &fakeBackend{
		answers: []*protocol.AnswerResponse{{IsFinished: true}},
		results: []*protocol.Result{incomplete, complete},
	}
	c := startedController(t, b)

	require.NoError(t, c.SubmitAnswer(context.Background(), "final answer"))
	st := c.Snapshot()
	assert.Equal(t, StatusFinished, st.Status)
	assert.Equal(t, Message{Role: RoleAI, Content: DefaultClosingMessage}, st.Messages[len(st.Messages)-1])

	c.Wait()
	assert.Equal(t, 2, b.resultCalls)
	require.NotNil(t, c.Snapshot().Result)
	assert.Equal(t, 71.5, c.Snapshot().Result.FinalScore)

	assert.ErrorIs(t, c.SubmitAnswer(context.Background(), "more"), ErrNotActive)
}

func TestFlagViolationCountsEveryCall(t *testing.T) {
	b := &fakeBackend{flagLimit: 3, terminateAt: 3}
	c := startedController(t, b)

	first, err := c.FlagViolation(context.Background(), "Tab Switch / Hidden Window")
	require.NoError(t, err)
	second, err := c.FlagViolation(context.Background(), "Tab Switch / Hidden Window")
	require.NoError(t, err)

	assert.Greater(t, second.WarningCount, first.WarningCount)
	assert.Equal(t, ViolationRecord{Reason: "Tab Switch / Hidden Window", Count: 2, Limit: 3}, c.Snapshot().Violations)
	assert.Equal(t, StatusActive, c.Status())
}

func TestTerminationFreezesSession(t *testing.T) {
	b := &fakeBackend{flagLimit: 3, terminateAt: 1, answers: []*protocol.AnswerResponse{{NextQuestion: "Q2"}}}
	c := startedController(t, b)

	resp, err := c.FlagViolation(context.Background(), "Exited Fullscreen")
	require.NoError(t, err)
	assert.True(t, resp.Terminated())

	st := c.Snapshot()
	assert.Equal(t, StatusTerminated, st.Status)
	assert.NotEmpty(t, st.TerminationReason)

	assert.ErrorIs(t, c.SubmitAnswer(context.Background(), "late"), ErrNotActive)
	assert.Len(t, c.Snapshot().Messages, 1)

	_, err = c.FlagViolation(context.Background(), "Exited Fullscreen")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestTerminationDuringSubmissionWins(t *testing.T) {
	gate := make(chan struct{})
	b := &fakeBackend{answerGate: gate, flagLimit: 3, terminateAt: 1,
		answers: []*protocol.AnswerResponse{{NextQuestion: "Q2"}}}
	c := startedController(t, b)

	submitting := make(chan struct{})
	c.Subscribe(func(ev Event) {
		if ev.Type == EventStatus && ev.State.Status == StatusSubmitting {
			close(submitting)
		}
	})
	done := make(chan error, 1)
	go func() { done <- c.SubmitAnswer(context.Background(), "answer") }()
	<-submitting

	_, err := c.FlagViolation(context.Background(), "Tab Switch / Hidden Window")
	require.NoError(t, err)
	close(gate)
	require.NoError(t, <-done)

	st := c.Snapshot()
	assert.Equal(t, StatusTerminated, st.Status)
	require.Len(t, st.Messages, 2)
	assert.Equal(t, RoleUser, st.Messages[1].Role)
	assert.NotEqual(t, "Q2", st.Prompt)
}

func TestTerminationDuringFinalSubmissionSkipsResult(t *testing.T) {
	gate := make(chan struct{})
	b := &fakeBackend{answerGate: gate, flagLimit: 3, terminateAt: 1,
		answers: []*protocol.AnswerResponse{{IsFinished: true}},
		results: []*protocol.Result{{SessionID: "s1", TotalQuestions: 1, FinalScore: 50}}}
	c := startedController(t, b)

	submitting := make(chan struct{})
	c.Subscribe(func(ev Event) {
		if ev.Type == EventStatus && ev.State.Status == StatusSubmitting {
			close(submitting)
		}
	})
	done := make(chan error, 1)
	go func() { done <- c.SubmitAnswer(context.Background(), "final answer") }()
	<-submitting

	_, err := c.FlagViolation(context.Background(), "Exited Fullscreen")
	require.NoError(t, err)
	close(gate)
	require.NoError(t, <-done)
	c.Wait()

	st := c.Snapshot()
	assert.Equal(t, StatusTerminated, st.Status)
	assert.Nil(t, st.Result)
	assert.Zero(t, b.resultCalls)
	for _, m := range st.Messages {
		assert.NotEqual(t, DefaultClosingMessage, m.Content)
	}
}

func TestLateFlagDoesNotTerminateFinishedSession(t *testing.T) {
	tests := []struct {
		name string
		b    *fakeBackend
	}{
		{"server terminates", &fakeBackend{flagLimit: 1, terminateAt: 1}},
		{"local threshold", &fakeBackend{flagLimit: 1, terminateAt: 1, noStatus: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.b
			b.answers = []*protocol.AnswerResponse{{IsFinished: true}}
			b.results = []*protocol.Result{{SessionID: "s1", TotalQuestions: 1, FinalScore: 60}}
			b.flagEntered = make(chan struct{})
			b.flagGate = make(chan struct{})
			c := startedController(t, b)

			flagged := make(chan error, 1)
			go func() {
				_, err := c.FlagViolation(context.Background(), "Tab Switch / Hidden Window")
				flagged <- err
			}()
			<-b.flagEntered

			require.NoError(t, c.SubmitAnswer(context.Background(), "final answer"))
			require.Equal(t, StatusFinished, c.Status())

			close(b.flagGate)
			require.NoError(t, <-flagged)
			c.Wait()

			st := c.Snapshot()
			assert.Equal(t, StatusFinished, st.Status)
			assert.Empty(t, st.TerminationReason)
			assert.Empty(t, b.terminateArgs)
			require.NotNil(t, st.Result)
			assert.Equal(t, 60.0, st.Result.FinalScore)
		})
	}
}

func TestLocalThresholdCallsExplicitTerminate(t *testing.T) {
	b := &fakeBackend{flagLimit: 2, terminateAt: 2, noStatus: true}
	c := startedController(t, b)

	_, err := c.FlagViolation(context.Background(), "Exited Fullscreen")
	require.NoError(t, err)
	assert.Empty(t, b.terminateArgs)

	resp, err := c.FlagViolation(context.Background(), "Exited Fullscreen")
	require.NoError(t, err)
	assert.True(t, resp.Terminated())
	assert.Equal(t, []string{"Exited Fullscreen"}, b.terminateArgs)
	assert.Equal(t, StatusTerminated, c.Status())
}

func TestFlagFailureIsFailOpen(t *testing.T) {
	b := &fakeBackend{flagErr: errors.New("network down")}
	c := startedController(t, b)

	_, err := c.FlagViolation(context.Background(), "Tab Switch / Hidden Window")
	require.Error(t, err)
	assert.Equal(t, StatusActive, c.Status())
	assert.Zero(t, c.Snapshot().Violations.Count)
}

func TestFlagWithoutSessionIsNoop(t *testing.T) {
	c := New(&fakeBackend{}, Options{})
	defer c.Close()
	_, err := c.FlagViolation(context.Background(), "Exited Fullscreen")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}
