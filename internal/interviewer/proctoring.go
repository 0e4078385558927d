package interviewer

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"interview-proctor/internal/apperr"
	"interview-proctor/internal/logger"
	"interview-proctor/internal/protocol"
	"interview-proctor/internal/storage"
)

// DefaultTerminationReason используется, если клиент не прислал причину
const DefaultTerminationReason = "Terminated by proctor"

// Flag засчитывает нарушение. Счет ведет сервер, по достижении лимита сессия прерывается.
func (m *Manager) Flag(ctx context.Context, sessionID, reason string) (*protocol.FlagResponse, error) {
	ctx = logger.WithSessionID(ctx, sessionID)
	reason = strings.TrimSpace(reason)

	unlock := m.lock(sessionID)
	defer unlock()

	sess, err := m.store.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return &protocol.FlagResponse{Status: protocol.StatusIgnored}, nil
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError)
	}

	limit := m.cfg.GetViolationLimit()
	if sess.Terminated {
		count, _ := m.counter.Count(ctx, sessionID)
		return &protocol.FlagResponse{WarningCount: count, Limit: limit, Status: protocol.StatusTerminated, Msg: violationsMsg}, nil
	}
	if !sess.Active {
		// интервью уже закончено, поздние нарушения не считаются
		count, _ := m.counter.Count(ctx, sessionID)
		return &protocol.FlagResponse{WarningCount: count, Limit: limit, Status: protocol.StatusIgnored}, nil
	}

	count, err := m.counter.Incr(ctx, sessionID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError)
	}
	if sess.CandidateID != "" {
		if _, err := m.store.FlagCandidate(ctx, sess.CandidateID, reason); err != nil {
			logger.FromContext(ctx, m.log).Warn("violation not recorded on candidate", zap.Error(err))
		}
	}

	m.metrics.IncrementViolationsFlagged()
	m.publish(ctx, protocol.EventFlagged, sessionID, map[string]any{
		"candidate_id": sess.CandidateID,
		"reason":       reason,
		"count":        count,
		"limit":        limit,
	})
	logger.FromContext(ctx, m.log).Warn("violation flagged",
		zap.String("reason", reason), zap.Int("count", count), zap.Int("limit", limit))

	if count >= limit {
		if err := m.terminate(ctx, sess, violationsMsg); err != nil {
			return nil, err
		}
		return &protocol.FlagResponse{WarningCount: count, Limit: limit, Status: protocol.StatusTerminated, Msg: violationsMsg}, nil
	}
	return &protocol.FlagResponse{WarningCount: count, Limit: limit, Status: protocol.StatusFlagged}, nil
}

// Terminate прерывает активную сессию. Повторный вызов и вызов после завершения ничего не меняют.
func (m *Manager) Terminate(ctx context.Context, sessionID, reason string) (*protocol.TerminateResponse, error) {
	ctx = logger.WithSessionID(ctx, sessionID)

	unlock := m.lock(sessionID)
	defer unlock()

	sess, err := m.store.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return &protocol.TerminateResponse{Status: protocol.StatusIgnored}, nil
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError)
	}

	if sess.Terminated {
		return &protocol.TerminateResponse{Status: protocol.StatusTerminated}, nil
	}
	if !sess.Active {
		return &protocol.TerminateResponse{Status: protocol.StatusIgnored}, nil
	}
	if err := m.terminate(ctx, sess, reason); err != nil {
		return nil, err
	}
	return &protocol.TerminateResponse{Status: protocol.StatusTerminated}, nil
}

// terminate вызывается под блокировкой сессии
func (m *Manager) terminate(ctx context.Context, sess *storage.Session, reason string) error {
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = DefaultTerminationReason
	}

	sess.Active = false
	sess.Terminated = true
	if err := m.store.SaveSession(ctx, sess); err != nil {
		return apperr.Wrap(err, apperr.InternalError)
	}
	m.logMessage(ctx, sess.ID, "system", "TERMINATED: "+reason)

	if sess.CandidateID != "" {
		log := logger.FromContext(ctx, m.log)
		if _, err := m.store.FlagCandidate(ctx, sess.CandidateID, "TERMINATED: "+reason); err != nil {
			log.Warn("termination not recorded on candidate", zap.Error(err))
		}
		if err := m.store.UpdateCandidateStatus(ctx, sess.CandidateID, storage.CandidateTerminated); err != nil {
			log.Warn("candidate status not updated", zap.Error(err))
		}
	}

	m.metrics.IncrementSessionsTerminated()
	m.publish(ctx, protocol.EventTerminated, sess.ID, map[string]any{
		"candidate_id": sess.CandidateID,
		"reason":       reason,
	})
	logger.FromContext(ctx, m.log).Warn("interview terminated", zap.String("reason", reason))
	return nil
}
