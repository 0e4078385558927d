package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"interview-proctor/internal/apperr"
	"interview-proctor/internal/logger"
	"interview-proctor/internal/protocol"
	"interview-proctor/internal/speech"
)

func (s *Server) handleStart(c *gin.Context) {
	var req protocol.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.Wrap(err, apperr.InvalidParams))
		return
	}
	cookie, _ := c.Cookie(protocol.SessionCookie)

	resp, err := s.interviews.Start(c.Request.Context(), req, cookie)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(protocol.SessionCookie, resp.SessionID, int(s.cfg.SessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAnswer(c *gin.Context) {
	var req protocol.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.Wrap(err, apperr.InvalidParams))
		return
	}
	resp, err := s.interviews.Answer(c.Request.Context(), req.SessionID, req.Answer)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleResult(c *gin.Context) {
	var req protocol.ResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.Wrap(err, apperr.InvalidParams))
		return
	}
	resp, err := s.interviews.Result(c.Request.Context(), req.SessionID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleFlag(c *gin.Context) {
	var req protocol.FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.Wrap(err, apperr.InvalidParams))
		return
	}
	resp, err := s.interviews.Flag(c.Request.Context(), req.SessionID, req.Reason)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTerminate(c *gin.Context) {
	var req protocol.FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.Wrap(err, apperr.InvalidParams))
		return
	}
	resp, err := s.interviews.Terminate(c.Request.Context(), req.SessionID, req.Reason)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleSpeak отдает mp3 поток. 503 TTS_DISABLED - сигнал клиенту озвучить локально.
func (s *Server) handleSpeak(c *gin.Context) {
	var req protocol.SpeakRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		abortWithError(c, apperr.Newf(apperr.InvalidParams, "text is required"))
		return
	}
	if s.tts == nil {
		c.JSON(http.StatusServiceUnavailable, protocol.ErrorResponse{Error: protocol.TTSDisabled})
		return
	}

	s.metrics.IncrementTTSRequests()
	audio, err := s.tts.Synthesize(c.Request.Context(), req.Text)
	if errors.Is(err, speech.ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, protocol.ErrorResponse{Error: protocol.TTSDisabled})
		return
	}
	if err != nil {
		abortWithError(c, apperr.Wrap(err, apperr.InternalError))
		return
	}
	defer audio.Close()

	c.Header("Content-Type", "audio/mpeg")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, audio); err != nil {
		logger.FromContext(c.Request.Context(), s.log).Warn("audio stream interrupted", zap.Error(err))
	}
}

func (s *Server) handleCandidateStatus(c *gin.Context) {
	resp, err := s.interviews.CandidateStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.GetSnapshot())
}

// abortWithError отвечает {"code", "detail"} со статусом из кода ошибки
func abortWithError(c *gin.Context, err error) {
	e := apperr.From(err)
	status := e.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context(), logger.L()).Error("request failed", zap.Error(err))
	}
	c.AbortWithStatusJSON(status, protocol.ErrorResponse{Code: int(e.Code), Detail: e.Error()})
}
