// Package whatsapp sends plain-text WhatsApp messages through Twilio.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"cipcagent/internal/channel"
	"cipcagent/internal/util"
)

// MessageCreator is the slice of the Twilio REST API this sender needs.
type MessageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type Sender struct {
	API  MessageCreator
	From string // "whatsapp:+14155238886"
}

func New(accountSID, authToken, from string) *Sender {
	c := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Sender{API: c.Api, From: withPrefix(from)}
}

// Send delivers message to a phone number; local South African numbers are
// normalised to E.164.
func (s *Sender) Send(ctx context.Context, contact, message string) error {
	to := util.NormalizePhone(contact)
	if to == "" {
		return fmt.Errorf("whatsapp: invalid phone %q", contact)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(s.From)
	params.SetTo(withPrefix(to))
	params.SetBody(message)

	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := s.API.CreateMessage(params)
		if err != nil {
			done <- result{err: err}
			return
		}
		sid := ""
		if resp != nil && resp.Sid != nil {
			sid = *resp.Sid
		}
		done <- result{sid: sid}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("whatsapp: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return mapError(r.err)
		}
		slog.Debug("whatsapp message accepted", "sid", r.sid, "to", to)
		return nil
	}
}

func mapError(err error) error {
	var te *twclient.TwilioRestError
	if errors.As(err, &te) {
		return &channel.StatusError{Provider: "twilio", StatusCode: te.Status, Message: te.Message}
	}
	return fmt.Errorf("twilio: %w", err)
}

func withPrefix(n string) string {
	n = strings.TrimSpace(n)
	if n == "" || strings.HasPrefix(n, "whatsapp:") {
		return n
	}
	return "whatsapp:" + n
}
