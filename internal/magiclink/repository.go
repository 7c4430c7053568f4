package magiclink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cipcagent/internal/domain"
)

// Repository persists magic link tokens. Consume must be a single atomic
// check-and-mark: of any number of concurrent callers for one id, at most one
// gets the subject back.
type Repository interface {
	Insert(ctx context.Context, tok domain.MagicLinkToken) error
	Consume(ctx context.Context, id string, now time.Time) (subjectID string, err error)
	// Sweep deletes consumed tokens and tokens that expired before cutoff.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

type memEntry struct {
	tok        domain.MagicLinkToken
	consumed   atomic.Bool
	consumedAt atomic.Int64
}

// MemoryRepository keeps tokens in process. Entries are independent, so
// validations of different ids never contend.
type MemoryRepository struct {
	entries sync.Map // id -> *memEntry
}

func NewMemoryRepository() *MemoryRepository { return &MemoryRepository{} }

func (r *MemoryRepository) Insert(_ context.Context, tok domain.MagicLinkToken) error {
	tok.ConsumedAt = nil
	if _, loaded := r.entries.LoadOrStore(tok.ID, &memEntry{tok: tok}); loaded {
		return domain.ErrDuplicateToken
	}
	return nil
}

func (r *MemoryRepository) Consume(_ context.Context, id string, now time.Time) (string, error) {
	v, ok := r.entries.Load(id)
	if !ok {
		return "", domain.ErrTokenNotFound
	}
	e := v.(*memEntry)
	if e.consumed.Load() {
		return "", domain.ErrTokenNotFound
	}
	if e.tok.Expired(now) {
		return "", domain.ErrTokenExpired
	}
	if !e.consumed.CompareAndSwap(false, true) {
		return "", domain.ErrTokenNotFound
	}
	e.consumedAt.Store(now.UnixNano())
	return e.tok.SubjectID, nil
}

func (r *MemoryRepository) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	n := 0
	r.entries.Range(func(k, v any) bool {
		e := v.(*memEntry)
		if e.consumed.Load() || e.tok.ExpiresAt.Before(cutoff) {
			r.entries.Delete(k)
			n++
		}
		return true
	})
	return n, nil
}

// Get returns a snapshot of the token, for diagnostics.
func (r *MemoryRepository) Get(id string) (domain.MagicLinkToken, bool) {
	v, ok := r.entries.Load(id)
	if !ok {
		return domain.MagicLinkToken{}, false
	}
	e := v.(*memEntry)
	tok := e.tok
	if e.consumed.Load() {
		if ns := e.consumedAt.Load(); ns != 0 {
			at := time.Unix(0, ns).UTC()
			tok.ConsumedAt = &at
		}
	}
	return tok, true
}
