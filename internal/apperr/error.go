package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code идентифицирует класс ошибки сервера
type Code int

// 10000-10099: общие ошибки
// 11000-11099: ошибки сессий интервью
// 12000-12099: ошибки внешних сервисов
const (
	InternalError  Code = 10001
	InvalidParams  Code = 10002
	NotFound       Code = 10003
	TooManyRequest Code = 10006

	SessionNotFound    Code = 11000
	SessionInactive    Code = 11001
	InterviewClosed    Code = 11002
	SessionLocked      Code = 11003
	CandidateNotFound  Code = 11004
	CandidateMismatch  Code = 11005
	ReportNotAvailable Code = 11006

	TTSDisabled Code = 12000
	LLMFailed   Code = 12001
)

var messages = map[Code]string{
	InternalError:      "internal server error",
	InvalidParams:      "invalid parameters",
	NotFound:           "not found",
	TooManyRequest:     "too many requests",
	SessionNotFound:    "session not found",
	SessionInactive:    "invalid or inactive session",
	InterviewClosed:    "interview already completed or terminated",
	SessionLocked:      "interview is already in progress, you cannot restart",
	CandidateNotFound:  "candidate not found",
	CandidateMismatch:  "interview status mismatch, please contact support",
	ReportNotAvailable: "report not available",
	TTSDisabled:        "TTS_DISABLED",
	LLMFailed:          "language model call failed",
}

var statuses = map[Code]int{
	InternalError:      http.StatusInternalServerError,
	InvalidParams:      http.StatusBadRequest,
	NotFound:           http.StatusNotFound,
	TooManyRequest:     http.StatusTooManyRequests,
	SessionNotFound:    http.StatusNotFound,
	SessionInactive:    http.StatusBadRequest,
	InterviewClosed:    http.StatusForbidden,
	SessionLocked:      http.StatusForbidden,
	CandidateNotFound:  http.StatusNotFound,
	CandidateMismatch:  http.StatusForbidden,
	ReportNotAvailable: http.StatusNotFound,
	TTSDisabled:        http.StatusServiceUnavailable,
	LLMFailed:          http.StatusBadGateway,
}

// Message возвращает текст по умолчанию для кода
func (c Code) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[InternalError]
}

// HTTPStatus возвращает HTTP статус для кода
func (c Code) HTTPStatus() int {
	if s, ok := statuses[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error - ошибка с кодом и исходной причиной
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.Message()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New создает ошибку с сообщением по умолчанию
func New(code Code) *Error {
	return &Error{Code: code, Message: code.Message()}
}

// Newf создает ошибку с форматированным сообщением
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap оборачивает err кодом. Существующий *Error не перезаписывается.
func Wrap(err error, code Code) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: code, Message: err.Error(), Err: err}
}

// Is сообщает, несет ли err указанный код
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// From извлекает *Error из любой ошибки, неизвестные ошибки становятся InternalError
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: InternalError, Message: err.Error(), Err: err}
}
