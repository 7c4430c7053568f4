package payment

import (
	"context"
	"sync"
	"time"

	"cipcagent/internal/domain"
)

// Ledger records which transactions already had a filing workflow started.
// Claim is atomic per transaction id: exactly one concurrent caller gets true.
type Ledger interface {
	Claim(ctx context.Context, rec domain.DispatchRecord) (bool, error)
	Complete(ctx context.Context, transactionID string, state domain.DispatchState, filingID, lastErr string, now time.Time) error
	Get(ctx context.Context, transactionID string) (domain.DispatchRecord, error)
}

type MemoryLedger struct {
	records sync.Map // transaction id -> *ledgerEntry
}

type ledgerEntry struct {
	mu  sync.Mutex
	rec domain.DispatchRecord
}

func NewMemoryLedger() *MemoryLedger { return &MemoryLedger{} }

func (l *MemoryLedger) Claim(_ context.Context, rec domain.DispatchRecord) (bool, error) {
	rec.State = domain.DispatchClaimed
	_, loaded := l.records.LoadOrStore(rec.TransactionID, &ledgerEntry{rec: rec})
	return !loaded, nil
}

func (l *MemoryLedger) Complete(_ context.Context, transactionID string, state domain.DispatchState, filingID, lastErr string, now time.Time) error {
	v, ok := l.records.Load(transactionID)
	if !ok {
		return domain.ErrRecordNotFound
	}
	e := v.(*ledgerEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec.State = state
	if filingID != "" {
		e.rec.FilingID = filingID
	}
	e.rec.LastError = lastErr
	e.rec.UpdatedAt = now
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, transactionID string) (domain.DispatchRecord, error) {
	v, ok := l.records.Load(transactionID)
	if !ok {
		return domain.DispatchRecord{}, domain.ErrRecordNotFound
	}
	e := v.(*ledgerEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, nil
}
