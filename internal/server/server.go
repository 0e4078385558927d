// Package server - HTTP API интервью на gin: сессии, ответы, нарушения, озвучка и живая лента событий.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"interview-proctor/internal/config"
	"interview-proctor/internal/logger"
	"interview-proctor/internal/metrics"
	"interview-proctor/internal/protocol"
	"interview-proctor/internal/speech"
)

// Interviewer - операции интервью, которые обслуживает API
type Interviewer interface {
	Start(ctx context.Context, req protocol.StartRequest, cookie string) (*protocol.StartResponse, error)
	Answer(ctx context.Context, sessionID, answer string) (*protocol.AnswerResponse, error)
	Result(ctx context.Context, sessionID string) (*protocol.Result, error)
	Flag(ctx context.Context, sessionID, reason string) (*protocol.FlagResponse, error)
	Terminate(ctx context.Context, sessionID, reason string) (*protocol.TerminateResponse, error)
	CandidateStatus(ctx context.Context, candidateID string) (*protocol.CandidateStatus, error)
}

// Server связывает маршруты с менеджером интервью
type Server struct {
	interviews Interviewer
	tts        speech.Synthesizer
	hub        *Hub
	metrics    *metrics.Metrics
	cfg        config.ServerConfig
	log        *zap.Logger
	limiter    *RateLimiter
}

// New создает сервер. tts может быть nil, тогда /interview/speak отвечает 503.
func New(interviews Interviewer, tts speech.Synthesizer, hub *Hub, m *metrics.Metrics, cfg config.ServerConfig, log *zap.Logger) *Server {
	log = logger.OrNop(log)
	if hub == nil {
		hub = NewHub(log)
	}
	return &Server{
		interviews: interviews,
		tts:        tts,
		hub:        hub,
		metrics:    m,
		cfg:        cfg,
		log:        log,
		limiter:    NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
	}
}

// Router собирает gin engine со всеми маршрутами
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(s.log))

	origins := s.cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/", RateLimit(s.limiter))
	api.POST(protocol.RouteStart, s.handleStart)
	api.POST(protocol.RouteAnswer, s.handleAnswer)
	api.POST(protocol.RouteResult, s.handleResult)
	api.POST(protocol.RouteFlag, s.handleFlag)
	api.POST(protocol.RouteTerminate, s.handleTerminate)
	api.POST(protocol.RouteSpeak, s.handleSpeak)
	api.GET(protocol.RouteCandidateStatus, s.handleCandidateStatus)

	r.GET(protocol.RouteSessionEvents, s.hub.ServeSession)
	r.GET(protocol.RouteMetrics, s.handleMetrics)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// Run слушает порт до отмены ctx и корректно останавливает сервер
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.cfg.Port),
		Handler:     s.Router(),
		ReadTimeout: s.cfg.ReadTimeout,
		// WriteTimeout не задается: озвучка и websocket держат соединение дольше
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка запуска сервера: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки сервера: %w", err)
	}
	return nil
}
