// Package telegram sends messages through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cipcagent/internal/channel"
)

const DefaultBaseURL = "https://api.telegram.org"

type Sender struct {
	Token   string
	BaseURL string
	HTTP    *http.Client
}

func New(token string) *Sender {
	return &Sender{Token: token, BaseURL: DefaultBaseURL, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Send posts message to the chat identified by contact.
func (s *Sender) Send(ctx context.Context, contact, message string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: contact, Text: message})
	if err != nil {
		return err
	}

	baseURL := strings.TrimRight(s.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	endpoint := baseURL + "/bot" + s.Token + "/sendMessage"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client().Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %w", redact(err))
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var out apiResponse
	_ = json.Unmarshal(b, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &channel.StatusError{Provider: "telegram", StatusCode: resp.StatusCode, Message: out.Description}
	}
	if !out.OK {
		return &channel.StatusError{Provider: "telegram", StatusCode: resp.StatusCode, Message: "ok=false: " + out.Description}
	}
	return nil
}

func (s *Sender) client() *http.Client {
	if s.HTTP != nil {
		return s.HTTP
	}
	return http.DefaultClient
}

// redact strips the bot token from transport errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = "sendMessage"
	}
	return err
}
