package config

import "time"

// Config представляет конфигурацию интервью (config/interview.yaml)
type Config struct {
	Interview InterviewConfig `yaml:"interview"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Proctor   ProctorConfig   `yaml:"proctoring"`
	Client    ClientConfig    `yaml:"client"`
	Messages  Messages        `yaml:"messages"`
}

// InterviewConfig содержит общие настройки интервью
type InterviewConfig struct {
	MaxQuestions int    `yaml:"max_questions"`
	DefaultRole  string `yaml:"default_role"`
	// FinalStatuses - статусы кандидата, после которых интервью нельзя начать заново
	FinalStatuses []string `yaml:"final_statuses"`
}

// ScoringConfig определяет веса итоговой оценки
type ScoringConfig struct {
	ResumeWeight    float64 `yaml:"resume_weight"`
	InterviewWeight float64 `yaml:"interview_weight"`
	DefaultGrade    float64 `yaml:"default_grade"`
}

type ProctorConfig struct {
	ViolationLimit int `yaml:"violation_limit"`
}

// ClientConfig - тайминги кандидатского клиента
type ClientConfig struct {
	AnswerTimeLimit time.Duration `yaml:"answer_time_limit"`
	FinishDelay     time.Duration `yaml:"finish_delay"`
	ResultAttempts  int           `yaml:"result_attempts"`
	ResultInterval  time.Duration `yaml:"result_interval"`
	SilenceTimeout  time.Duration `yaml:"silence_timeout"`
}

// Messages - тексты, которые видит кандидат
type Messages struct {
	FirstQuestionFallback string `yaml:"first_question_fallback"`
	NextQuestionFallback  string `yaml:"next_question_fallback"`
	Closing               string `yaml:"closing"`
	SubmitError           string `yaml:"submit_error"`
}

// Методы для удобного доступа к конфигурации
func (c *Config) GetMaxQuestions() int {
	return c.Interview.MaxQuestions
}

func (c *Config) GetViolationLimit() int {
	return c.Proctor.ViolationLimit
}

// IsFinalStatus сообщает, закрыто ли интервью для кандидата с таким статусом
func (c *Config) IsFinalStatus(status string) bool {
	for _, s := range c.Interview.FinalStatuses {
		if equalFold(s, status) {
			return true
		}
	}
	return false
}

// Default возвращает конфигурацию, с которой сервис работает без yaml файла
func Default() *Config {
	return &Config{
		Interview: InterviewConfig{
			MaxQuestions:  5,
			DefaultRole:   "Software Engineer",
			FinalStatuses: []string{"shortlisted", "rejected", "terminated", "completed"},
		},
		Scoring: ScoringConfig{
			ResumeWeight:    0.3,
			InterviewWeight: 0.7,
			DefaultGrade:    0,
		},
		Proctor: ProctorConfig{ViolationLimit: 3},
		Client: ClientConfig{
			AnswerTimeLimit: 40 * time.Second,
			FinishDelay:     time.Second,
			ResultAttempts:  5,
			ResultInterval:  2 * time.Second,
			SilenceTimeout:  3 * time.Second,
		},
		Messages: Messages{
			FirstQuestionFallback: "Could you please introduce yourself and your background?",
			NextQuestionFallback:  "Thank you. Let's move to the next topic. What are your key strengths?",
			Closing:               "Interview Finished! Generating report...",
			SubmitError:           "Error sending answer. Please try again.",
		},
	}
}
