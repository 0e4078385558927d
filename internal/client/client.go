// Package client - HTTP клиент кандидата к серверу интервью.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"interview-proctor/internal/protocol"
	"interview-proctor/internal/speech"
)

// StatusError - ответ сервера с кодом не 2xx
type StatusError struct {
	StatusCode int
	Code       int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server error: status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("server error: status %d", e.StatusCode)
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New создает клиент. Cookie сессии хранится в jar, чтобы повторный старт шел с того же устройства.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout, Jar: jar},
	}, nil
}

func (c *Client) Start(ctx context.Context, req protocol.StartRequest) (*protocol.StartResponse, error) {
	var resp protocol.StartResponse
	if err := c.post(ctx, protocol.RouteStart, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, sessionID, answer string) (*protocol.AnswerResponse, error) {
	var resp protocol.AnswerResponse
	req := protocol.AnswerRequest{SessionID: sessionID, Answer: answer}
	if err := c.post(ctx, protocol.RouteAnswer, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) FetchResult(ctx context.Context, sessionID string) (*protocol.Result, error) {
	var resp protocol.Result
	if err := c.post(ctx, protocol.RouteResult, protocol.ResultRequest{SessionID: sessionID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) FlagViolation(ctx context.Context, sessionID, reason string) (*protocol.FlagResponse, error) {
	var resp protocol.FlagResponse
	req := protocol.FlagRequest{SessionID: sessionID, Reason: reason}
	if err := c.post(ctx, protocol.RouteFlag, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Terminate(ctx context.Context, sessionID, reason string) error {
	req := protocol.FlagRequest{SessionID: sessionID, Reason: reason}
	return c.post(ctx, protocol.RouteTerminate, req, nil)
}

func (c *Client) CandidateStatus(ctx context.Context, candidateID string) (*protocol.CandidateStatus, error) {
	path := strings.Replace(protocol.RouteCandidateStatus, ":id", url.PathEscape(candidateID), 1)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	var resp protocol.CandidateStatus
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Synthesize получает mp3 вопроса. 503 TTS_DISABLED превращается в speech.ErrUnavailable.
func (c *Client) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	httpReq, err := c.newJSONRequest(ctx, protocol.RouteSpeak, protocol.SpeakRequest{Text: text})
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		resp.Body.Close()
		return nil, speech.ErrUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readStatusError(resp)
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, route string, body, out any) error {
	httpReq, err := c.newJSONRequest(ctx, route, body)
	if err != nil {
		return err
	}
	return c.do(httpReq, out)
}

func (c *Client) newJSONRequest(ctx context.Context, route string, body any) (*http.Request, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readStatusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error unmarshaling response: %w", err)
	}
	return nil
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	statusErr := &StatusError{StatusCode: resp.StatusCode}
	var payload protocol.ErrorResponse
	if json.Unmarshal(body, &payload) == nil {
		statusErr.Code = payload.Code
		statusErr.Detail = payload.Detail
		if statusErr.Detail == "" {
			statusErr.Detail = payload.Error
		}
	} else {
		statusErr.Detail = strings.TrimSpace(string(body))
	}
	return statusErr
}

// IsStatus сообщает, вернул ли сервер указанный HTTP код
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
