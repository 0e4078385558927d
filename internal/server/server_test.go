package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-proctor/internal/apperr"
	"interview-proctor/internal/config"
	"interview-proctor/internal/interviewer"
	"interview-proctor/internal/metrics"
	"interview-proctor/internal/protocol"
	"interview-proctor/internal/speech"
	"interview-proctor/internal/storage"
)

type stubLLM struct{}

func (stubLLM) Complete(ctx context.Context, system, user string) (string, error) {
	if strings.Contains(user, "GRADING RUBRIC") {
		return `{"score": 7, "feedback": "Good"}`, nil
	}
	return "Tell me about channels?", nil
}

type stubTTS struct {
	err error
}

func (s stubTTS) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader("ID3audio")), nil
}

type testEnv struct {
	router  *gin.Engine
	hub     *Hub
	store   *storage.MemoryStore
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, tts speech.Synthesizer, cfg config.ServerConfig) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStore()
	store.AddCandidate(&storage.Candidate{ID: "c1", ResumeText: "Go", JobDescription: "", MatchScore: 60, Status: storage.CandidateMatched})
	m := metrics.NewMetrics()
	hub := NewHub(nil)
	mgr := interviewer.New(interviewer.Options{
		Store:   store,
		Counter: storage.NewMemoryCounter(),
		LLM:     stubLLM{},
		Events:  hub,
		Metrics: m,
		Config:  config.Default(),
	})
	t.Cleanup(mgr.Wait)

	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = time.Hour
	}
	srv := New(mgr, tts, hub, m, cfg, nil)
	return &testEnv{router: srv.Router(), hub: hub, store: store, metrics: m}
}

func (e *testEnv) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == protocol.SessionCookie {
			return c
		}
	}
	t.Fatalf("cookie %s not set", protocol.SessionCookie)
	return nil
}

func TestStartSetsLockCookie(t *testing.T) {
	env := newTestEnv(t, nil, config.ServerConfig{})

	w := env.do(http.MethodPost, protocol.RouteStart, protocol.StartRequest{CandidateID: "c1"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp protocol.StartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Tell me about channels?", resp.Question)
	assert.Equal(t, "Software Engineer", resp.Role)

	cookie := sessionCookie(t, w)
	assert.Equal(t, resp.SessionID, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	w = env.do(http.MethodPost, protocol.RouteStart, protocol.StartRequest{CandidateID: "c1"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	var errResp protocol.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, int(apperr.SessionLocked), errResp.Code)
	assert.NotEmpty(t, errResp.Detail)

	w = env.do(http.MethodPost, protocol.RouteStart, protocol.StartRequest{CandidateID: "c1"}, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var resumed protocol.StartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resumed))
	assert.Equal(t, resp.SessionID, resumed.SessionID)
}

func TestStartUnknownCandidate(t *testing.T) {
	env := newTestEnv(t, nil, config.ServerConfig{})

	w := env.do(http.MethodPost, protocol.RouteStart, protocol.StartRequest{CandidateID: "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, protocol.RouteStart, "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnswerFlowAndResult(t *testing.T) {
	env := newTestEnv(t, nil, config.ServerConfig{})

	w := env.do(http.MethodPost, protocol.RouteStart, protocol.StartRequest{CandidateID: "c1"})
	require.Equal(t, http.StatusOK, w.Code)
	var start protocol.StartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &start))

	var answer protocol.AnswerResponse
	for i := 0; i < 5; i++ {
		w = env.do(http.MethodPost, protocol.RouteAnswer, protocol.AnswerRequest{SessionID: start.SessionID, Answer: "Channels pass values"})
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answer))
	}
	assert.True(t, answer.IsFinished)
	assert.Equal(t, "Good", answer.Feedback)

	w = env.do(http.MethodPost, protocol.RouteResult, protocol.ResultRequest{SessionID: start.SessionID})
	require.Equal(t, http.StatusOK, w.Code)
	var result protocol.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 70.0, result.InterviewScore)
	assert.Equal(t, 67.0, result.FinalScore)
	assert.Len(t, result.Transcript, 5)

	w = env.do(http.MethodPost, protocol.RouteAnswer, protocol.AnswerRequest{SessionID: start.SessionID, Answer: "more"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFlagTerminatesAndStatusCloses(t *testing.T) {
	env := newTestEnv(t, nil, config.ServerConfig{})

	w := env.do(http.MethodPost, protocol.RouteStart, protocol.StartRequest{CandidateID: "c1"})
	var start protocol.StartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &start))

	var flag protocol.FlagResponse
	for i := 0; i < 3; i++ {
		w = env.do(http.MethodPost, protocol.RouteFlag, protocol.FlagRequest{SessionID: start.SessionID, Reason: "Exited Fullscreen"})
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &flag))
	}
	assert.True(t, flag.Terminated())
	assert.Equal(t, 3, flag.WarningCount)

	w = env.do(http.MethodGet, "/candidates/c1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status protocol.CandidateStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, storage.CandidateTerminated, status.Status)
	assert.True(t, status.InterviewClosed)

	w = env.do(http.MethodPost, protocol.RouteTerminate, protocol.FlagRequest{SessionID: "unknown", Reason: "x"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ignored"}`, w.Body.String())
}

func TestSpeak(t *testing.T) {
	env := newTestEnv(t, nil, config.ServerConfig{})
	w := env.do(http.MethodPost, protocol.RouteSpeak, protocol.SpeakRequest{Text: "Hello"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"TTS_DISABLED"}`, w.Body.String())

	env = newTestEnv(t, stubTTS{}, config.ServerConfig{})
	w = env.do(http.MethodPost, protocol.RouteSpeak, protocol.SpeakRequest{Text: "Hello"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "ID3audio", w.Body.String())
	assert.Equal(t, int64(1), env.metrics.GetSnapshot().TTSRequests)

	w = env.do(http.MethodPost, protocol.RouteSpeak, protocol.SpeakRequest{Text: " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env = newTestEnv(t, stubTTS{err: speech.ErrUnavailable}, config.ServerConfig{})
	w = env.do(http.MethodPost, protocol.RouteSpeak, protocol.SpeakRequest{Text: "Hello"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, nil, config.ServerConfig{RateLimit: 2, RateWindow: time.Minute})

	for i := 0; i < 2; i++ {
		w := env.do(http.MethodGet, "/candidates/c1/status", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := env.do(http.MethodGet, "/candidates/c1/status", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = env.do(http.MethodGet, protocol.RouteMetrics, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)
	assert.True(t, rl.IsAllowed("1.2.3.4"))
	assert.False(t, rl.IsAllowed("1.2.3.4"))
	assert.True(t, rl.IsAllowed("5.6.7.8"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.IsAllowed("1.2.3.4"))
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, nil, config.ServerConfig{})

	w := env.do(http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestSessionEventsOverWebsocket(t *testing.T) {
	env := newTestEnv(t, nil, config.ServerConfig{})
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/session/s1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.hub.Connections("s1") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, env.hub.Publish(context.Background(), protocol.Event{
		Type:      protocol.EventFlagged,
		SessionID: "s1",
		Data:      map[string]any{"count": 1},
	}))
	require.NoError(t, env.hub.Publish(context.Background(), protocol.Event{Type: protocol.EventFlagged, SessionID: "other"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev protocol.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, protocol.EventFlagged, ev.Type)
	assert.Equal(t, "s1", ev.SessionID)
}
