package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"cipcagent/internal/domain"
	"cipcagent/internal/payment"
	"cipcagent/internal/workflow"
)

type fakeWorkflow struct {
	calls int
	err   error
}

func (f *fakeWorkflow) Trigger(context.Context, domain.FilingRequest) (workflow.Accepted, error) {
	f.calls++
	if f.err != nil {
		return workflow.Accepted{}, f.err
	}
	return workflow.Accepted{FilingID: "F-9"}, nil
}

type fakeDelivery struct {
	calls int
	err   error
}

func (f *fakeDelivery) Send(context.Context, domain.Channel, string, string) error {
	f.calls++
	return f.err
}

func claimed(t *testing.T, tx string, state domain.DispatchState) *payment.MemoryLedger {
	t.Helper()
	l := payment.NewMemoryLedger()
	if _, err := l.Claim(context.Background(), domain.DispatchRecord{TransactionID: tx}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if state != domain.DispatchClaimed {
		_ = l.Complete(context.Background(), tx, state, "", "", time.Now())
	}
	return l
}

func filingJob(tx string) domain.OutboxJob {
	return domain.OutboxJob{ID: "job_1", Kind: domain.OutboxFiling, TransactionID: tx, Filing: &domain.FilingRequest{PaymentReference: tx}}
}

func TestProcessFilingReplaysFailedDispatch(t *testing.T) {
	l := claimed(t, "T1", domain.DispatchFailed)
	wf := &fakeWorkflow{}
	p := &Processor{Ledger: l, Workflow: wf}

	if err := p.Process(context.Background(), filingJob("T1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	rec, _ := l.Get(context.Background(), "T1")
	if rec.State != domain.DispatchDispatched || rec.FilingID != "F-9" || rec.LastError != "" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if wf.calls != 1 {
		t.Fatalf("expected one trigger, got %d", wf.calls)
	}
}

func TestProcessFilingSkipsDispatched(t *testing.T) {
	wf := &fakeWorkflow{}
	p := &Processor{Ledger: claimed(t, "T1", domain.DispatchDispatched), Workflow: wf}

	if err := p.Process(context.Background(), filingJob("T1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if wf.calls != 0 {
		t.Fatalf("already dispatched transaction must not be triggered again")
	}
}

func TestProcessFilingTransientFailureIsRetried(t *testing.T) {
	l := claimed(t, "T1", domain.DispatchFailed)
	wf := &fakeWorkflow{err: &domain.DispatchError{PaymentReference: "T1", HTTPStatus: 502, Err: errors.New("bad gateway")}}
	p := &Processor{Ledger: l, Workflow: wf}

	if err := p.Process(context.Background(), filingJob("T1")); !errors.Is(err, domain.ErrDispatch) {
		t.Fatalf("expected dispatch error to keep the job queued, got %v", err)
	}
	rec, _ := l.Get(context.Background(), "T1")
	if rec.State != domain.DispatchFailed {
		t.Fatalf("expected failed state, got %q", rec.State)
	}
}

func TestProcessFilingPermanentRejectionIsDropped(t *testing.T) {
	wf := &fakeWorkflow{err: &domain.DispatchError{PaymentReference: "T1", HTTPStatus: 422, Err: errors.New("invalid company")}}
	p := &Processor{Ledger: claimed(t, "T1", domain.DispatchFailed), Workflow: wf}

	if err := p.Process(context.Background(), filingJob("T1")); err != nil {
		t.Fatalf("4xx rejection should not be redriven: %v", err)
	}
}

func TestProcessFilingWithoutClaimIsDropped(t *testing.T) {
	wf := &fakeWorkflow{}
	p := &Processor{Ledger: payment.NewMemoryLedger(), Workflow: wf}

	if err := p.Process(context.Background(), filingJob("T404")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if wf.calls != 0 {
		t.Fatalf("no trigger without a claim")
	}
}

func TestProcessDelivery(t *testing.T) {
	d := &fakeDelivery{}
	p := &Processor{Delivery: d}
	job := domain.OutboxJob{ID: "job_2", Kind: domain.OutboxDelivery, Delivery: &domain.DeliveryJob{Channel: domain.ChannelEmail, Contact: "a@b.co", Message: "hi"}}

	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("process: %v", err)
	}

	d.err = &domain.DeliveryError{Channel: domain.ChannelEmail, Err: errors.New("503")}
	if err := p.Process(context.Background(), job); !errors.Is(err, domain.ErrDelivery) {
		t.Fatalf("expected delivery error, got %v", err)
	}

	d.err = domain.ErrUnsupportedChannel
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("unconfigured channel should drop the job, got %v", err)
	}
}
