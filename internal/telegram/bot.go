// Package telegram уведомляет рекрутера в Telegram о завершении и прерывании интервью.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// New создает новый Telegram бот
func New(token string) *Bot {
	return NewWithBaseURL(token, "https://api.telegram.org")
}

// NewWithBaseURL создает бота с другим адресом Bot API (локальный сервер, тесты)
func NewWithBaseURL(token, apiURL string) *Bot {
	return &Bot{
		token:   token,
		baseURL: fmt.Sprintf("%s/bot%s", strings.TrimRight(apiURL, "/"), token),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SendMessage отправляет сообщение в чат
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	request := SendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "Markdown",
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	url := fmt.Sprintf("%s/sendMessage", b.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки сообщения: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	var response SendMessageResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return fmt.Errorf("ошибка парсинга ответа: %w", err)
	}

	if !response.OK {
		return fmt.Errorf("Telegram API вернул ошибку при отправке сообщения: %s", response.Description)
	}

	return nil
}

// SendFormattedMessage отправляет форматированное сообщение
func (b *Bot) SendFormattedMessage(ctx context.Context, chatID int64, format string, args ...any) error {
	return b.SendMessage(ctx, chatID, fmt.Sprintf(format, args...))
}
