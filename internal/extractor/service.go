// Package extractor вытаскивает из ответов модели оценку ответа и карьерный отчет.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"interview-proctor/internal/llm"
	"interview-proctor/internal/logger"
	"interview-proctor/internal/prompts"
	"interview-proctor/internal/protocol"
)

const (
	feedbackUnavailable = "Service unavailable, unable to grade."
	feedbackUnparsed    = "Could not parse grading."
)

// Grade - оценка одного ответа
type Grade struct {
	Score       float64 `json:"score"`
	Feedback    string  `json:"feedback"`
	Strength    string  `json:"strength"`
	Gap         string  `json:"gap"`
	Improvement string  `json:"improvement"`
}

// Service представляет сервис разбора ответов модели
type Service struct {
	llm          llm.Completer
	defaultGrade float64
	log          *zap.Logger
}

// New создает сервис. defaultGrade ставится, если оценить ответ не удалось.
func New(completer llm.Completer, defaultGrade float64, log *zap.Logger) *Service {
	return &Service{llm: completer, defaultGrade: defaultGrade, log: logger.OrNop(log)}
}

// Grade оценивает ответ. Ошибка модели не прерывает интервью: возвращается оценка по умолчанию.
func (s *Service) Grade(ctx context.Context, question, answer string) Grade {
	raw, err := s.llm.Complete(ctx, "", prompts.Grading(question, answer))
	if err != nil {
		logger.FromContext(ctx, s.log).Warn("grading failed", zap.Error(err))
		return Grade{Score: s.defaultGrade, Feedback: feedbackUnavailable}
	}

	grade, err := ParseGrade(raw)
	if err != nil {
		logger.FromContext(ctx, s.log).Warn("grading parse failed", zap.Error(err), zap.String("raw", raw))
		return Grade{Score: s.defaultGrade, Feedback: feedbackUnparsed}
	}
	return grade
}

// ParseGrade разбирает JSON оценки. score может прийти числом или строкой, значение ограничивается 0..10.
func ParseGrade(raw string) (Grade, error) {
	var payload struct {
		Score       flexFloat `json:"score"`
		Feedback    string    `json:"feedback"`
		Strength    string    `json:"strength"`
		Gap         string    `json:"gap"`
		Improvement string    `json:"improvement"`
	}
	if err := json.Unmarshal([]byte(llm.CleanJSON(raw)), &payload); err != nil {
		return Grade{}, fmt.Errorf("error unmarshaling grade: %w", err)
	}
	score := float64(payload.Score)
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	return Grade{
		Score:       score,
		Feedback:    strings.TrimSpace(payload.Feedback),
		Strength:    strings.TrimSpace(payload.Strength),
		Gap:         strings.TrimSpace(payload.Gap),
		Improvement: strings.TrimSpace(payload.Improvement),
	}, nil
}

// CareerReport строит карьерный отчет по итогам интервью. Всегда возвращает отчет.
func (s *Service) CareerReport(ctx context.Context, role, resume string, history []prompts.Turn) *protocol.CareerReport {
	fallback := &protocol.CareerReport{
		FocusAreas:     []string{"General Upskilling"},
		PreferredRoles: []string{role},
		Motivation:     "Keep learning!",
	}

	raw, err := s.llm.Complete(ctx, "", prompts.CareerReport(role, resume, history))
	if err != nil {
		logger.FromContext(ctx, s.log).Warn("career report failed", zap.Error(err))
		return fallback
	}

	var report protocol.CareerReport
	if err := json.Unmarshal([]byte(llm.CleanJSON(raw)), &report); err != nil {
		logger.FromContext(ctx, s.log).Warn("career report parse failed", zap.Error(err))
		return fallback
	}
	report.FocusAreas = compact(report.FocusAreas)
	report.PreferredRoles = compact(report.PreferredRoles)
	if len(report.PreferredRoles) == 0 {
		report.PreferredRoles = []string{role, "Senior " + role}
	}
	return &report
}

// DeduceRole определяет роль по описанию вакансии, при ошибке "Candidate"
func (s *Service) DeduceRole(ctx context.Context, jobDescription string) string {
	raw, err := s.llm.Complete(ctx, "", prompts.RoleDeduction(jobDescription))
	if err != nil {
		logger.FromContext(ctx, s.log).Warn("role deduction failed", zap.Error(err))
		return "Candidate"
	}
	role := strings.Trim(strings.TrimSpace(raw), "\"'`*")
	if role == "" || strings.Contains(role, "\n") {
		return "Candidate"
	}
	return role
}

func compact(items []string) []string {
	out := items[:0]
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), "\" ")
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("score %s: %w", string(data), err)
	}
	*f = flexFloat(v)
	return nil
}
