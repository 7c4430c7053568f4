package domain

import (
	"strings"
	"time"
)

type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
	ChannelEmail    Channel = "email"
)

// Channels lists every delivery channel a login request may name.
var Channels = []Channel{ChannelWhatsApp, ChannelTelegram, ChannelEmail}

// ParseChannel maps a request value onto the closed channel set.
// An empty value selects WhatsApp.
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case "", ChannelWhatsApp:
		return ChannelWhatsApp, nil
	case ChannelTelegram:
		return ChannelTelegram, nil
	case ChannelEmail:
		return ChannelEmail, nil
	default:
		return "", ErrUnsupportedChannel
	}
}

// MagicLinkToken is a single-use login token. ConsumedAt is set exactly once.
type MagicLinkToken struct {
	ID         string
	SubjectID  string
	Contact    string
	Channel    Channel
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

func (t MagicLinkToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

type LoginRequest struct {
	SubjectID string `json:"subjectId"`
	Contact   string `json:"contact"`
	Channel   string `json:"channel"`
}

func (r LoginRequest) Validate() error {
	if strings.TrimSpace(r.SubjectID) == "" {
		return ErrInvalidRequest
	}
	return nil
}

type LoginResponse struct {
	TokenID   string    `json:"tokenId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Channel   Channel   `json:"channel"`
	Delivered bool      `json:"delivered"`
	Message   string    `json:"message"`
}

type SessionResponse struct {
	SubjectID   string    `json:"subjectId"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// FilingRequest is the payload handed to the external filing workflow.
type FilingRequest struct {
	RegistrationNumber string `json:"company_registration_number"`
	CompanyName        string `json:"company_name"`
	FinancialYearEnd   string `json:"financial_year_end"`
	ContactEmail       string `json:"contact_email"`
	ContactPhone       string `json:"contact_phone"`
	PaymentReference   string `json:"payment_reference"`
}

type DispatchState string

const (
	DispatchClaimed    DispatchState = "claimed"
	DispatchDispatched DispatchState = "dispatched"
	DispatchFailed     DispatchState = "failed"
)

// DispatchRecord tracks the single workflow trigger issued for a transaction.
// A record's existence is what blocks a second trigger; State is informational.
type DispatchRecord struct {
	TransactionID    string
	PaymentReference string
	LeadID           string
	CorrelationID    string
	State            DispatchState
	FilingID         string
	LastError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type OutboxKind string

const (
	OutboxFiling   OutboxKind = "filing"
	OutboxDelivery OutboxKind = "delivery"
)

type DeliveryJob struct {
	Channel Channel `json:"channel"`
	Contact string  `json:"contact"`
	Message string  `json:"message"`
}

// OutboxJob is a unit of work deferred to the worker after an inline attempt failed.
type OutboxJob struct {
	ID            string         `json:"id"`
	Kind          OutboxKind     `json:"kind"`
	TransactionID string         `json:"transactionId,omitempty"`
	Filing        *FilingRequest `json:"filing,omitempty"`
	Delivery      *DeliveryJob   `json:"delivery,omitempty"`
	EnqueuedAt    time.Time      `json:"enqueuedAt"`
}
