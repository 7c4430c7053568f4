// Package channel routes outbound messages to the configured delivery backends.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cipcagent/internal/domain"
	"cipcagent/internal/observability"
)

// Sender delivers a plain-text message to one contact on one backend.
type Sender interface {
	Send(ctx context.Context, contact, message string) error
}

type SenderFunc func(ctx context.Context, contact, message string) error

func (f SenderFunc) Send(ctx context.Context, contact, message string) error {
	return f(ctx, contact, message)
}

// Dispatcher picks the sender for a channel. It holds no state beyond the
// routing table and is safe for concurrent use.
type Dispatcher struct {
	senders map[domain.Channel]Sender
}

func NewDispatcher(senders map[domain.Channel]Sender) *Dispatcher {
	m := make(map[domain.Channel]Sender, len(senders))
	for ch, s := range senders {
		if s != nil {
			m[ch] = s
		}
	}
	return &Dispatcher{senders: m}
}

func (d *Dispatcher) Supports(ch domain.Channel) bool {
	_, ok := d.senders[ch]
	return ok
}

// Channels returns the configured channels in their canonical order.
func (d *Dispatcher) Channels() []domain.Channel {
	out := make([]domain.Channel, 0, len(d.senders))
	for _, ch := range domain.Channels {
		if d.Supports(ch) {
			out = append(out, ch)
		}
	}
	return out
}

// Send delivers message or returns ErrUnsupportedChannel / *domain.DeliveryError.
func (d *Dispatcher) Send(ctx context.Context, ch domain.Channel, contact, message string) error {
	s, ok := d.senders[ch]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedChannel, ch)
	}

	contact = strings.TrimSpace(contact)
	if contact == "" {
		observability.Deliveries.WithLabelValues(string(ch), "no_contact").Inc()
		err := &domain.DeliveryError{Channel: ch, Err: fmt.Errorf("no contact for channel")}
		slog.Warn("delivery skipped", "channel", ch, "err", err)
		return err
	}

	start := time.Now()
	err := s.Send(ctx, contact, message)
	observability.DeliveryLatency.WithLabelValues(string(ch)).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.Deliveries.WithLabelValues(string(ch), "error").Inc()
		slog.Error("delivery failed", "channel", ch, "contact", contact, "err", err)
		return &domain.DeliveryError{Channel: ch, Contact: contact, Err: err}
	}

	observability.Deliveries.WithLabelValues(string(ch), "ok").Inc()
	slog.Info("message delivered", "channel", ch, "contact", contact)
	return nil
}
