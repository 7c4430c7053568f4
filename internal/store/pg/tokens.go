package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cipcagent/internal/domain"
)

const uniqueViolation = "23505"

// TokenRepository stores magic links in Postgres. Consume relies on a single
// conditional UPDATE, so racing validators are serialised by the row lock.
type TokenRepository struct {
	DB *pgxpool.Pool
}

func NewTokenRepository(db *pgxpool.Pool) *TokenRepository { return &TokenRepository{DB: db} }

func (r *TokenRepository) Insert(ctx context.Context, tok domain.MagicLinkToken) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO magic_links (id, subject_id, contact, channel, issued_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, tok.ID, tok.SubjectID, tok.Contact, string(tok.Channel), tok.IssuedAt, tok.ExpiresAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateToken
	}
	return err
}

func (r *TokenRepository) Consume(ctx context.Context, id string, now time.Time) (string, error) {
	var subject string
	err := r.DB.QueryRow(ctx, `
		UPDATE magic_links SET consumed_at=$2
		WHERE id=$1 AND consumed_at IS NULL AND expires_at >= $2
		RETURNING subject_id
	`, id, now).Scan(&subject)
	if err == nil {
		return subject, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	// nothing updated: find out why
	var consumedAt *time.Time
	var expiresAt time.Time
	err = r.DB.QueryRow(ctx, `
		SELECT consumed_at, expires_at FROM magic_links WHERE id=$1
	`, id).Scan(&consumedAt, &expiresAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return "", domain.ErrTokenNotFound
	case err != nil:
		return "", err
	case consumedAt != nil:
		return "", domain.ErrTokenNotFound
	case now.After(expiresAt):
		return "", domain.ErrTokenExpired
	default:
		// lost a race with a concurrent consume that has not committed yet
		return "", domain.ErrTokenNotFound
	}
}

func (r *TokenRepository) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.DB.Exec(ctx, `
		DELETE FROM magic_links WHERE consumed_at IS NOT NULL OR expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
