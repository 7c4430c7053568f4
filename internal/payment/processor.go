package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cipcagent/internal/domain"
	"cipcagent/internal/observability"
	"cipcagent/internal/signature"
	"cipcagent/internal/util"
	"cipcagent/internal/workflow"
)

const confirmationMessage = `✅ Payment Confirmed!

Thank you for your payment of R{amount}. Your annual returns filing is now being processed.

📋 Filing Status: Initiating
⏱️ Estimated completion: 5-10 minutes

We'll send you updates as we progress. Your transaction ID: {transaction_id}

Questions? Reply to this message.

Best regards,
CIPC Agent Team`

// DefaultDispatchTimeout bounds the work that follows a successful claim.
const DefaultDispatchTimeout = 15 * time.Second

type Outcome string

const (
	OutcomePending        Outcome = "pending"
	OutcomeDispatched     Outcome = "dispatched"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeDispatchFailed Outcome = "dispatch_failed"
)

type Result struct {
	Outcome       Outcome
	LeadID        string
	TransactionID string
	FilingID      string
}

type Triggerer interface {
	Trigger(ctx context.Context, req domain.FilingRequest) (workflow.Accepted, error)
}

type Notifier interface {
	Send(ctx context.Context, ch domain.Channel, contact, message string) error
}

type Outbox interface {
	Enqueue(ctx context.Context, job domain.OutboxJob) error
}

// Processor runs a parsed notification through verify, status check,
// dispatch and notify.
type Processor struct {
	Secret   string
	Ledger   Ledger
	Workflow Triggerer
	Notifier Notifier
	Outbox   Outbox // optional
	Now      func() time.Time

	// DispatchTimeout caps trigger, ledger completion, outbox and
	// confirmation once a claim is held. Zero means DefaultDispatchTimeout.
	DispatchTimeout time.Duration
}

// Process returns ErrSignatureMismatch for unverified payloads and a storage
// error when the ledger is unreachable. Workflow and notification failures
// never fail the call.
func (p *Processor) Process(ctx context.Context, n Notification) (Result, error) {
	txID := n.TransactionID()
	ref := n.PaymentReference()
	log := slog.With("transaction_id", txID, "payment_reference", ref)

	if !signature.Verify(n, p.Secret) {
		observability.WebhookEvents.WithLabelValues("unverified").Inc()
		log.Warn("payment notification signature mismatch")
		return Result{}, domain.ErrSignatureMismatch
	}

	if !n.Completed() {
		observability.WebhookEvents.WithLabelValues(string(OutcomePending)).Inc()
		log.Info("payment not completed yet", "status", n.Status())
		return Result{Outcome: OutcomePending, TransactionID: txID}, nil
	}

	res := Result{LeadID: LeadID(ref), TransactionID: txID}
	now := p.now()
	rec := domain.DispatchRecord{
		TransactionID:    txID,
		PaymentReference: ref,
		LeadID:           res.LeadID,
		CorrelationID:    util.NewCorrelationID(),
		State:            domain.DispatchClaimed,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	log = log.With("lead_id", res.LeadID, "correlation_id", rec.CorrelationID)

	claimed, err := p.Ledger.Claim(ctx, rec)
	if err != nil {
		observability.WebhookEvents.WithLabelValues("ledger_error").Inc()
		log.Error("dispatch ledger claim failed", "err", err)
		return Result{}, fmt.Errorf("claim dispatch: %w", err)
	}

	// A held claim suppresses every retry, so the rest must finish even if
	// the caller goes away.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.dispatchTimeout())
	defer cancel()

	if !claimed {
		res.Outcome = OutcomeDuplicate
		log.Info("workflow already dispatched for transaction")
	} else {
		res.Outcome, res.FilingID = p.dispatch(dctx, log, n, rec)
	}
	observability.WebhookEvents.WithLabelValues(string(res.Outcome)).Inc()

	p.notify(dctx, log, n)
	return res, nil
}

func (p *Processor) dispatch(ctx context.Context, log *slog.Logger, n Notification, rec domain.DispatchRecord) (Outcome, string) {
	req := n.FilingRequest()

	acc, err := p.Workflow.Trigger(ctx, req)
	if err != nil {
		// full context so the trigger can be replayed by hand
		log.Error("workflow trigger failed",
			"err", err,
			"company_registration_number", req.RegistrationNumber,
			"company_name", req.CompanyName,
			"financial_year_end", req.FinancialYearEnd,
			"contact_email", req.ContactEmail,
			"contact_phone", req.ContactPhone,
		)
		if cerr := p.Ledger.Complete(ctx, rec.TransactionID, domain.DispatchFailed, "", err.Error(), p.now()); cerr != nil {
			log.Error("dispatch ledger update failed", "err", cerr)
		}
		p.deferFiling(ctx, log, rec, req)
		return OutcomeDispatchFailed, ""
	}

	if cerr := p.Ledger.Complete(ctx, rec.TransactionID, domain.DispatchDispatched, acc.FilingID, "", p.now()); cerr != nil {
		log.Error("dispatch ledger update failed", "err", cerr)
	}
	log.Info("filing workflow started", "filing_id", acc.FilingID, "status", acc.Status)
	return OutcomeDispatched, acc.FilingID
}

func (p *Processor) deferFiling(ctx context.Context, log *slog.Logger, rec domain.DispatchRecord, req domain.FilingRequest) {
	if p.Outbox == nil {
		return
	}
	job := domain.OutboxJob{
		ID:            util.NewJobID(),
		Kind:          domain.OutboxFiling,
		TransactionID: rec.TransactionID,
		Filing:        &req,
		EnqueuedAt:    p.now(),
	}
	if err := p.Outbox.Enqueue(ctx, job); err != nil {
		observability.OutboxEnqueues.WithLabelValues(string(job.Kind), "error").Inc()
		log.Error("outbox enqueue failed", "err", err, "job_id", job.ID)
		return
	}
	observability.OutboxEnqueues.WithLabelValues(string(job.Kind), "ok").Inc()
	log.Info("filing trigger deferred to outbox", "job_id", job.ID)
}

func (p *Processor) notify(ctx context.Context, log *slog.Logger, n Notification) {
	if p.Notifier == nil {
		return
	}
	ch, contact := domain.ChannelWhatsApp, n.Field("customer_phone")
	if contact == "" {
		ch, contact = domain.ChannelEmail, n.Field("customer_email")
	}
	if contact == "" {
		return
	}

	msg := util.RenderTemplate(confirmationMessage, map[string]string{
		"amount":         n.Field("amount"),
		"transaction_id": n.TransactionID(),
	})
	if err := p.Notifier.Send(ctx, ch, contact, msg); err != nil {
		if errors.Is(err, domain.ErrUnsupportedChannel) {
			log.Warn("payment confirmation channel not configured", "channel", ch)
			return
		}
		log.Error("payment confirmation failed", "err", err, "channel", ch)
	}
}

func (p *Processor) dispatchTimeout() time.Duration {
	if p.DispatchTimeout > 0 {
		return p.DispatchTimeout
	}
	return DefaultDispatchTimeout
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return util.NowUTC()
}
