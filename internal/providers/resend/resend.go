// Package resend sends plain-text email through the Resend API.
package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cipcagent/internal/channel"
)

const DefaultBaseURL = "https://api.resend.com"

type Sender struct {
	APIKey  string
	From    string
	Subject string // used when the message has no usable first line
	BaseURL string
	HTTP    *http.Client
}

func New(apiKey, from string) *Sender {
	return &Sender{
		APIKey:  apiKey,
		From:    from,
		Subject: "CIPC Agent",
		BaseURL: DefaultBaseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

type emailResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Send emails message to contact. The first line of the message becomes the subject.
func (s *Sender) Send(ctx context.Context, contact, message string) error {
	body, err := json.Marshal(emailRequest{
		From:    s.From,
		To:      []string{contact},
		Subject: s.subject(message),
		Text:    message,
	})
	if err != nil {
		return err
	}

	baseURL := strings.TrimRight(s.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	client := s.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var out emailResponse
	_ = json.Unmarshal(b, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &channel.StatusError{Provider: "resend", StatusCode: resp.StatusCode, Message: out.Message}
	}
	return nil
}

func (s *Sender) subject(message string) string {
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && len(line) <= 120 {
			return line
		}
		if line != "" {
			break
		}
	}
	if s.Subject != "" {
		return s.Subject
	}
	return "CIPC Agent"
}
