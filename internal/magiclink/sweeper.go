package magiclink

import (
	"context"
	"log/slog"
	"time"

	"cipcagent/internal/observability"
)

// Sweeper periodically removes consumed tokens and tokens expired for longer
// than Retention. Validation never depends on it having run.
type Sweeper struct {
	Repo      Repository
	Interval  time.Duration
	Retention time.Duration
	Now       func() time.Time
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				slog.Error("magic link sweep failed", "err", err)
			}
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	n, err := s.Repo.Sweep(ctx, now.Add(-s.Retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		observability.TokensSwept.Add(float64(n))
		slog.Info("magic links swept", "count", n)
	}
	return n, nil
}
