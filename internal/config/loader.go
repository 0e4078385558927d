package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load загружает конфигурацию из YAML файла поверх значений по умолчанию
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", filename, err)
	}
	return Parse(data)
}

// LoadOrDefault работает как Load, но без файла возвращает Default()
func LoadOrDefault(filename string) (*Config, error) {
	cfg, err := Load(filename)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse разбирает YAML и валидирует результат
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("ошибка парсинга YAML: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("ошибка валидации конфигурации: %w", err)
	}

	return config, nil
}

// validateConfig проверяет корректность конфигурации
func validateConfig(config *Config) error {
	if config.Interview.MaxQuestions <= 0 {
		return fmt.Errorf("max_questions должно быть больше 0")
	}

	if config.Proctor.ViolationLimit <= 0 {
		return fmt.Errorf("violation_limit должно быть больше 0")
	}

	if config.Scoring.ResumeWeight < 0 || config.Scoring.InterviewWeight < 0 {
		return fmt.Errorf("веса оценки не могут быть отрицательными")
	}

	if sum := config.Scoring.ResumeWeight + config.Scoring.InterviewWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("сумма resume_weight и interview_weight должна быть 1, получено %.3f", sum)
	}

	if config.Client.AnswerTimeLimit < 0 || config.Client.FinishDelay < 0 {
		return fmt.Errorf("тайминги клиента не могут быть отрицательными")
	}

	if strings.TrimSpace(config.Messages.FirstQuestionFallback) == "" {
		return fmt.Errorf("messages.first_question_fallback обязателен")
	}

	if strings.TrimSpace(config.Messages.NextQuestionFallback) == "" {
		return fmt.Errorf("messages.next_question_fallback обязателен")
	}

	return nil
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
