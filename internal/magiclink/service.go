package magiclink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"cipcagent/internal/domain"
	"cipcagent/internal/observability"
	"cipcagent/internal/util"
)

const loginMessage = "Welcome to CIPC Agent!\n\nYour magic link: {url}\n\nThis link expires in {ttl}.\n\nFor security, do not share this link."

const enqueueTimeout = 5 * time.Second

// Deliverer routes a message to a channel backend.
type Deliverer interface {
	Supports(ch domain.Channel) bool
	Send(ctx context.Context, ch domain.Channel, contact, message string) error
}

// SessionIssuer turns a validated subject into an access token.
type SessionIssuer interface {
	Issue(subjectID string) (token string, expiresAt time.Time, err error)
}

type Outbox interface {
	Enqueue(ctx context.Context, job domain.OutboxJob) error
}

// Service is the login orchestration: issue a token, build the link and hand
// it to the channel dispatcher.
type Service struct {
	Tokens   *TokenStore
	Delivery Deliverer
	Sessions SessionIssuer
	// Outbox is optional; when set, failed deliveries are retried by the worker.
	Outbox  Outbox
	BaseURL string
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.LoginResponse{}, fmt.Errorf("%w: subjectId is required", err)
	}
	ch, err := domain.ParseChannel(req.Channel)
	if err != nil {
		observability.Logins.WithLabelValues("unknown", "rejected").Inc()
		return domain.LoginResponse{}, fmt.Errorf("%w: %q", err, req.Channel)
	}
	if !s.Delivery.Supports(ch) {
		observability.Logins.WithLabelValues(string(ch), "rejected").Inc()
		return domain.LoginResponse{}, fmt.Errorf("%w: %s is not configured", domain.ErrUnsupportedChannel, ch)
	}

	subject := strings.TrimSpace(req.SubjectID)
	contact := strings.TrimSpace(req.Contact)

	tok, err := s.Tokens.Issue(ctx, subject, contact, ch)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	msg := util.RenderTemplate(loginMessage, map[string]string{
		"url": s.LinkURL(tok.ID),
		"ttl": humanDuration(tok.ExpiresAt.Sub(tok.IssuedAt)),
	})

	resp := domain.LoginResponse{
		TokenID:   tok.ID,
		ExpiresAt: tok.ExpiresAt,
		Channel:   ch,
	}

	if err := s.Delivery.Send(ctx, ch, contact, msg); err != nil {
		slog.Error("magic link delivery failed",
			"err", err, "channel", ch, "subject_id", subject, "token_id", shortID(tok.ID))
		observability.Logins.WithLabelValues(string(ch), "undelivered").Inc()
		resp.Message = fmt.Sprintf("Magic link issued; delivery via %s failed", ch)
		s.deferDelivery(ctx, ch, contact, msg, err)
		return resp, nil
	}

	observability.Logins.WithLabelValues(string(ch), "delivered").Inc()
	resp.Delivered = true
	resp.Message = fmt.Sprintf("Magic link sent via %s", ch)
	return resp, nil
}

// Validate consumes the token and opens a session for its subject.
func (s *Service) Validate(ctx context.Context, tokenID string) (domain.SessionResponse, error) {
	subject, err := s.Tokens.Validate(ctx, tokenID)
	if err != nil {
		return domain.SessionResponse{}, err
	}
	access, exp, err := s.Sessions.Issue(subject)
	if err != nil {
		return domain.SessionResponse{}, fmt.Errorf("issue session: %w", err)
	}
	return domain.SessionResponse{SubjectID: subject, AccessToken: access, ExpiresAt: exp}, nil
}

func (s *Service) LinkURL(tokenID string) string {
	return strings.TrimRight(s.BaseURL, "/") + "/auth/magic-link?token=" + url.QueryEscape(tokenID)
}

func (s *Service) deferDelivery(ctx context.Context, ch domain.Channel, contact, msg string, cause error) {
	if s.Outbox == nil || contact == "" {
		return
	}
	// the token already exists; keep the retry even if the client hung up
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	// only transport failures are worth a replay
	var de *domain.DeliveryError
	if !errors.As(cause, &de) {
		return
	}
	job := domain.OutboxJob{
		ID:         util.NewJobID(),
		Kind:       domain.OutboxDelivery,
		Delivery:   &domain.DeliveryJob{Channel: ch, Contact: contact, Message: msg},
		EnqueuedAt: util.NowUTC(),
	}
	if err := s.Outbox.Enqueue(ctx, job); err != nil {
		observability.OutboxEnqueues.WithLabelValues(string(job.Kind), "error").Inc()
		slog.Error("outbox enqueue failed", "err", err, "job_id", job.ID, "channel", ch)
		return
	}
	observability.OutboxEnqueues.WithLabelValues(string(job.Kind), "ok").Inc()
	slog.Info("delivery deferred to outbox", "job_id", job.ID, "channel", ch)
}

// humanDuration renders whole hours or minutes in words, anything else as
// a Go duration string.
func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}
