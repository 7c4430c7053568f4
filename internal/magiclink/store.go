package magiclink

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cipcagent/internal/domain"
	"cipcagent/internal/observability"
	"cipcagent/internal/util"
)

const (
	DefaultTTL = 24 * time.Hour

	idBytes       = 32
	issueAttempts = 3
)

// TokenStore owns the token lifecycle: pending until consumed or expired.
type TokenStore struct {
	Repo Repository
	TTL  time.Duration

	// Now and NewID are replaceable in tests.
	Now   func() time.Time
	NewID func() (string, error)
}

func NewTokenStore(repo Repository) *TokenStore {
	return &TokenStore{Repo: repo, TTL: DefaultTTL}
}

// Issue creates and persists a fresh pending token.
func (s *TokenStore) Issue(ctx context.Context, subjectID, contact string, ch domain.Channel) (domain.MagicLinkToken, error) {
	now := s.now()
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	var lastErr error
	for attempt := 0; attempt < issueAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return domain.MagicLinkToken{}, fmt.Errorf("generate token id: %w", err)
		}
		tok := domain.MagicLinkToken{
			ID:        id,
			SubjectID: subjectID,
			Contact:   contact,
			Channel:   ch,
			IssuedAt:  now,
			ExpiresAt: now.Add(ttl),
		}
		err = s.Repo.Insert(ctx, tok)
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, domain.ErrDuplicateToken) {
			return domain.MagicLinkToken{}, fmt.Errorf("insert token: %w", err)
		}
		lastErr = err
		slog.Warn("magic link id collision, regenerating", "attempt", attempt+1)
	}
	return domain.MagicLinkToken{}, fmt.Errorf("insert token: %w", lastErr)
}

// Validate consumes the token and returns its subject. Absent and already
// consumed tokens both report ErrTokenNotFound.
func (s *TokenStore) Validate(ctx context.Context, id string) (string, error) {
	if id == "" {
		observability.TokenValidations.WithLabelValues("not_found").Inc()
		return "", domain.ErrTokenNotFound
	}

	subject, err := s.Repo.Consume(ctx, id, s.now())
	switch {
	case err == nil:
		observability.TokenValidations.WithLabelValues("ok").Inc()
		slog.Info("magic link consumed", "token_id", shortID(id), "subject_id", subject)
		return subject, nil
	case errors.Is(err, domain.ErrTokenNotFound):
		observability.TokenValidations.WithLabelValues("not_found").Inc()
		slog.Info("magic link not found or already used", "token_id", shortID(id))
		return "", err
	case errors.Is(err, domain.ErrTokenExpired):
		observability.TokenValidations.WithLabelValues("expired").Inc()
		slog.Info("magic link expired", "token_id", shortID(id))
		return "", err
	default:
		observability.TokenValidations.WithLabelValues("error").Inc()
		return "", fmt.Errorf("consume token: %w", err)
	}
}

func (s *TokenStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return util.NowUTC()
}

func (s *TokenStore) newID() (string, error) {
	if s.NewID != nil {
		return s.NewID()
	}
	return NewTokenID()
}

// NewTokenID returns 32 random bytes, hex encoded.
func NewTokenID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// shortID keeps full bearer tokens out of the logs.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
