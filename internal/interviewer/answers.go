package interviewer

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"interview-proctor/internal/apperr"
	"interview-proctor/internal/logger"
	"interview-proctor/internal/prompts"
	"interview-proctor/internal/protocol"
	"interview-proctor/internal/storage"
)

// Answer оценивает ответ и возвращает следующий вопрос. После последнего вопроса сессия закрывается.
func (m *Manager) Answer(ctx context.Context, sessionID, answer string) (*protocol.AnswerResponse, error) {
	answer = strings.TrimSpace(answer)
	if sessionID == "" || answer == "" {
		return nil, apperr.Newf(apperr.InvalidParams, "session_id and answer are required")
	}
	ctx = logger.WithSessionID(ctx, sessionID)

	unlock := m.lock(sessionID)
	defer unlock()

	sess, err := m.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Active {
		return nil, apperr.New(apperr.SessionInactive)
	}

	m.logMessage(ctx, sessionID, "user", answer)

	grade := m.extractor.Grade(ctx, sess.CurrentQuestion, answer)
	sess.Scores = append(sess.Scores, storage.QuestionScore{
		Question:    sess.CurrentQuestion,
		Answer:      answer,
		Score:       grade.Score,
		Feedback:    grade.Feedback,
		Strength:    grade.Strength,
		Gap:         grade.Gap,
		Improvement: grade.Improvement,
	})
	m.metrics.IncrementAnswersSubmitted()

	resp := &protocol.AnswerResponse{Feedback: grade.Feedback, Score: &grade.Score}
	finished := len(sess.Scores) >= m.cfg.GetMaxQuestions()
	if finished {
		sess.Active = false
		resp.IsFinished = true
		resp.NextQuestion = closingMessage
	} else {
		sess.CurrentQuestion = m.nextQuestion(ctx, sess, m.cfg.Messages.NextQuestionFallback)
		resp.NextQuestion = sess.CurrentQuestion
	}

	if err := m.store.SaveSession(ctx, sess); err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError)
	}
	m.logMessage(ctx, sessionID, "assistant", resp.NextQuestion)

	m.publish(ctx, protocol.EventAnswered, sessionID, map[string]any{
		"candidate_id": sess.CandidateID,
		"question":     len(sess.Scores),
		"score":        grade.Score,
		"is_finished":  finished,
	})

	if finished {
		// отчет считается заранее, чтобы /interview/result отвечал сразу
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if _, err := m.Result(context.WithoutCancel(ctx), sessionID); err != nil {
				logger.FromContext(ctx, m.log).Warn("background report failed", zap.Error(err))
			}
		}()
	}
	return resp, nil
}

// Result возвращает отчет по сессии. Для закрытой сессии отчет считается один раз:
// карьерные рекомендации, обновление кандидата, архив и событие finished для завершенной сессии.
func (m *Manager) Result(ctx context.Context, sessionID string) (*protocol.Result, error) {
	if sessionID == "" {
		return nil, apperr.Newf(apperr.InvalidParams, "session_id is required")
	}
	ctx = logger.WithSessionID(ctx, sessionID)

	unlock := m.lock(sessionID)
	defer unlock()

	if cached := m.cachedResult(sessionID); cached != nil {
		return cached, nil
	}

	sess, err := m.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := m.score(sess)
	if sess.Active {
		return result, nil
	}

	history := make([]prompts.Turn, 0, len(sess.Scores))
	for _, s := range sess.Scores {
		history = append(history, prompts.Turn{Question: s.Question, Answer: s.Answer, Score: s.Score})
	}
	result.CareerReport = m.extractor.CareerReport(ctx, sess.Role, sess.ResumeText, history)

	log := logger.FromContext(ctx, m.log)
	if sess.CandidateID != "" {
		status := storage.CandidateCompleted
		if sess.Terminated {
			status = storage.CandidateTerminated
		}
		err := m.store.UpdateCandidateInterview(ctx, sess.CandidateID, result.InterviewScore, result.FinalScore, status)
		if err != nil {
			log.Warn("candidate scores not updated", zap.Error(err))
		}
	}
	if m.archive != nil {
		if err := m.archive.SaveResult(ctx, result); err != nil {
			log.Warn("report not archived", zap.Error(err))
		}
	}

	// о прерванной сессии уже сообщило событие terminated
	if !sess.Terminated {
		m.metrics.IncrementSessionsCompleted()
		m.publish(ctx, protocol.EventFinished, sessionID, map[string]any{
			"candidate_id":    sess.CandidateID,
			"interview_score": result.InterviewScore,
			"final_score":     result.FinalScore,
		})
	}
	log.Info("interview report ready", zap.Float64("final_score", result.FinalScore))

	m.mu.Lock()
	m.results[sessionID] = result
	m.mu.Unlock()
	return result, nil
}

func (m *Manager) cachedResult(sessionID string) *protocol.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[sessionID]
}

// score считает баллы: интервью = среднее*10, итог = веса резюме и интервью
func (m *Manager) score(sess *storage.Session) *protocol.Result {
	var sum float64
	transcript := make([]protocol.TranscriptEntry, 0, len(sess.Scores))
	for _, s := range sess.Scores {
		sum += s.Score
		transcript = append(transcript, protocol.TranscriptEntry{
			Question: s.Question,
			Answer:   s.Answer,
			Score:    s.Score,
			Feedback: s.Feedback,
		})
	}

	var avg float64
	if len(sess.Scores) > 0 {
		avg = sum / float64(len(sess.Scores))
	}
	interview := avg * 10
	final := sess.MatchScore*m.cfg.Scoring.ResumeWeight + interview*m.cfg.Scoring.InterviewWeight

	return &protocol.Result{
		SessionID:      sess.ID,
		Role:           sess.Role,
		InterviewScore: round2(interview),
		ResumeScore:    round2(sess.MatchScore),
		FinalScore:     round2(final),
		TotalQuestions: len(sess.Scores),
		Transcript:     transcript,
	}
}

func (m *Manager) session(ctx context.Context, sessionID string) (*storage.Session, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.SessionNotFound)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError)
	}
	return sess, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
