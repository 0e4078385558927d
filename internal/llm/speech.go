package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"interview-proctor/internal/config"
)

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// SpeechClient озвучивает текст через OpenAI /audio/speech
type SpeechClient struct {
	apiKey  string
	baseURL string
	model   string
	voice   string
	client  *http.Client
}

// NewSpeechClient возвращает nil, если озвучка выключена или нет ключа
func NewSpeechClient(cfg config.TTSConfig) *SpeechClient {
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &SpeechClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   cfg.Model,
		voice:   cfg.Voice,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Synthesize возвращает mp3 поток. Вызывающий закрывает его.
func (c *SpeechClient) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	jsonData, err := json.Marshal(speechRequest{
		Model:          c.model,
		Input:          text,
		Voice:          c.voice,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("OpenAI TTS error: status %d, body: %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}
