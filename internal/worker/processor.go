package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cipcagent/internal/domain"
	"cipcagent/internal/observability"
	"cipcagent/internal/workflow"
)

type Ledger interface {
	Get(ctx context.Context, transactionID string) (domain.DispatchRecord, error)
	Complete(ctx context.Context, transactionID string, state domain.DispatchState, filingID, lastErr string, now time.Time) error
}

type Triggerer interface {
	Trigger(ctx context.Context, req domain.FilingRequest) (workflow.Accepted, error)
}

type Deliverer interface {
	Send(ctx context.Context, ch domain.Channel, contact, message string) error
}

// Processor replays outbox jobs. A returned error leaves the message on the
// queue for redrive; nil deletes it.
type Processor struct {
	Ledger   Ledger
	Workflow Triggerer
	Delivery Deliverer
	Now      func() time.Time
}

func (p *Processor) Process(ctx context.Context, job domain.OutboxJob) error {
	log := slog.With("job_id", job.ID, "kind", job.Kind)

	var err error
	switch job.Kind {
	case domain.OutboxFiling:
		err = p.processFiling(ctx, log, job)
	case domain.OutboxDelivery:
		err = p.processDelivery(ctx, log, job)
	default:
		// unknown kinds can never succeed; drop them
		log.Error("unknown outbox job kind")
		observability.OutboxJobs.WithLabelValues(string(job.Kind), "dropped").Inc()
		return nil
	}

	if err != nil {
		observability.OutboxJobs.WithLabelValues(string(job.Kind), "error").Inc()
		return err
	}
	observability.OutboxJobs.WithLabelValues(string(job.Kind), "ok").Inc()
	return nil
}

func (p *Processor) processFiling(ctx context.Context, log *slog.Logger, job domain.OutboxJob) error {
	if job.Filing == nil || job.TransactionID == "" {
		log.Error("filing job without request, dropping")
		return nil
	}
	log = log.With("transaction_id", job.TransactionID)

	rec, err := p.Ledger.Get(ctx, job.TransactionID)
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		// replays only ever follow a claim; without one there is nothing to finish
		log.Warn("no dispatch record for filing job, dropping")
		return nil
	case err != nil:
		return fmt.Errorf("load dispatch record: %w", err)
	case rec.State == domain.DispatchDispatched:
		log.Info("filing already dispatched, skipping", "filing_id", rec.FilingID)
		return nil
	}

	acc, err := p.Workflow.Trigger(ctx, *job.Filing)
	if err != nil {
		if cerr := p.Ledger.Complete(ctx, job.TransactionID, domain.DispatchFailed, "", err.Error(), p.now()); cerr != nil {
			log.Error("dispatch ledger update failed", "err", cerr)
		}
		var de *domain.DispatchError
		if errors.As(err, &de) && de.HTTPStatus >= 400 && de.HTTPStatus < 500 && de.HTTPStatus != 408 && de.HTTPStatus != 429 {
			log.Error("workflow rejected filing, giving up", "err", err, "http_status", de.HTTPStatus)
			return nil
		}
		return err
	}

	if err := p.Ledger.Complete(ctx, job.TransactionID, domain.DispatchDispatched, acc.FilingID, "", p.now()); err != nil {
		// the run exists; a redelivered job would trigger it twice
		log.Error("dispatch ledger update failed after trigger", "err", err, "filing_id", acc.FilingID)
	}
	log.Info("filing workflow started from outbox", "filing_id", acc.FilingID)
	return nil
}

func (p *Processor) processDelivery(ctx context.Context, log *slog.Logger, job domain.OutboxJob) error {
	d := job.Delivery
	if d == nil {
		log.Error("delivery job without payload, dropping")
		return nil
	}
	err := p.Delivery.Send(ctx, d.Channel, d.Contact, d.Message)
	if errors.Is(err, domain.ErrUnsupportedChannel) {
		log.Error("channel no longer configured, dropping", "channel", d.Channel)
		return nil
	}
	return err
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}
