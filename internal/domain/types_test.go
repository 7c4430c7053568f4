package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseChannel(t *testing.T) {
	cases := map[string]Channel{
		"":          ChannelWhatsApp,
		"whatsapp":  ChannelWhatsApp,
		" Telegram": ChannelTelegram,
		"EMAIL":     ChannelEmail,
	}
	for in, want := range cases {
		got, err := ParseChannel(in)
		if err != nil {
			t.Fatalf("ParseChannel(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseChannel(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := ParseChannel("sms"); !errors.Is(err, ErrUnsupportedChannel) {
		t.Fatalf("expected ErrUnsupportedChannel, got %v", err)
	}
}

func TestLoginRequestValidate(t *testing.T) {
	if err := (LoginRequest{SubjectID: "  "}).Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if err := (LoginRequest{SubjectID: "2023/123456/07"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tok := MagicLinkToken{ExpiresAt: now}
	if tok.Expired(now) {
		t.Fatal("token must still be valid at exactly ExpiresAt")
	}
	if !tok.Expired(now.Add(time.Nanosecond)) {
		t.Fatal("token must be expired after ExpiresAt")
	}
}

func TestErrorClassification(t *testing.T) {
	cause := errors.New("boom")

	de := &DeliveryError{Channel: ChannelTelegram, Contact: "42", Err: cause}
	if !errors.Is(de, ErrDelivery) || !errors.Is(de, cause) {
		t.Fatalf("delivery error should match ErrDelivery and its cause")
	}

	var target *DispatchError
	err := error(&DispatchError{PaymentReference: "TXN-1", HTTPStatus: 503, Err: cause})
	if !errors.As(err, &target) || target.HTTPStatus != 503 {
		t.Fatalf("expected DispatchError with status 503")
	}
	if !errors.Is(err, ErrDispatch) {
		t.Fatalf("dispatch error should match ErrDispatch")
	}
}
