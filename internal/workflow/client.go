// Package workflow starts the external filing workflow for a paid order.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cipcagent/internal/domain"
	"cipcagent/internal/observability"
)

// Accepted is the workflow runner's answer to a start request.
type Accepted struct {
	FilingID string `json:"filing_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// Client issues exactly one start request per Trigger call; retrying is the
// caller's decision.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{BaseURL: baseURL, APIKey: apiKey, HTTP: &http.Client{Timeout: timeout}}
}

func (c *Client) Trigger(ctx context.Context, req domain.FilingRequest) (Accepted, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Accepted{}, &domain.DispatchError{PaymentReference: req.PaymentReference, Err: err}
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/api/filing/start"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Accepted{}, &domain.DispatchError{PaymentReference: req.PaymentReference, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		observability.WorkflowDispatches.WithLabelValues("error", "0").Inc()
		return Accepted{}, &domain.DispatchError{PaymentReference: req.PaymentReference, Err: err}
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	status := strconv.Itoa(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.WorkflowDispatches.WithLabelValues("rejected", status).Inc()
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Accepted{}, &domain.DispatchError{
			PaymentReference: req.PaymentReference,
			HTTPStatus:       resp.StatusCode,
			Err:              errors.New(msg),
		}
	}

	var out Accepted
	if len(b) > 0 {
		if err := json.Unmarshal(b, &out); err != nil {
			// the run was started; a garbled body does not undo that
			out.Message = fmt.Sprintf("unparsed response: %v", err)
		}
	}
	observability.WorkflowDispatches.WithLabelValues("ok", status).Inc()
	return out, nil
}
