package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cipcagent/internal/domain"
)

// Ledger is the Postgres dispatch ledger. The primary key on transaction_id
// makes Claim atomic across processes.
type Ledger struct {
	DB *pgxpool.Pool
}

func NewLedger(db *pgxpool.Pool) *Ledger { return &Ledger{DB: db} }

func (l *Ledger) Claim(ctx context.Context, rec domain.DispatchRecord) (bool, error) {
	tag, err := l.DB.Exec(ctx, `
		INSERT INTO workflow_dispatches (transaction_id, payment_reference, lead_id, correlation_id, state, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)
		ON CONFLICT (transaction_id) DO NOTHING
	`, rec.TransactionID, rec.PaymentReference, rec.LeadID, rec.CorrelationID, string(domain.DispatchClaimed), rec.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (l *Ledger) Complete(ctx context.Context, transactionID string, state domain.DispatchState, filingID, lastErr string, now time.Time) error {
	tag, err := l.DB.Exec(ctx, `
		UPDATE workflow_dispatches
		SET state=$2, filing_id=COALESCE($3, filing_id), last_error=$4, updated_at=$5
		WHERE transaction_id=$1
	`, transactionID, string(state), nullIfEmpty(filingID), nullIfEmpty(lastErr), now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, transactionID string) (domain.DispatchRecord, error) {
	var rec domain.DispatchRecord
	var state string
	err := l.DB.QueryRow(ctx, `
		SELECT transaction_id, payment_reference, lead_id, correlation_id, state,
		       COALESCE(filing_id,''), COALESCE(last_error,''), created_at, updated_at
		FROM workflow_dispatches WHERE transaction_id=$1
	`, transactionID).Scan(&rec.TransactionID, &rec.PaymentReference, &rec.LeadID, &rec.CorrelationID, &state,
		&rec.FilingID, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DispatchRecord{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.DispatchRecord{}, err
	}
	rec.State = domain.DispatchState(state)
	return rec, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
