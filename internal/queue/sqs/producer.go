package sqsqueue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"cipcagent/internal/domain"
)

// API is the part of the SQS client the outbox uses.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Producer writes outbox jobs. On a FIFO queue, jobs for one transaction (or
// one recipient) stay ordered and a repeated filing job is deduplicated.
type Producer struct {
	SQS      API
	QueueURL string
}

func (p *Producer) Enqueue(ctx context.Context, job domain.OutboxJob) error {
	if err := validateJob(job); err != nil {
		return err
	}
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
	}
	if strings.HasSuffix(p.QueueURL, ".fifo") {
		in.MessageGroupId = str(messageGroupID(job))
		in.MessageDeduplicationId = str(deduplicationID(job))
	}
	_, err = p.SQS.SendMessage(ctx, in)
	return err
}

func validateJob(job domain.OutboxJob) error {
	switch job.Kind {
	case domain.OutboxFiling:
		if job.Filing == nil || job.TransactionID == "" {
			return fmt.Errorf("outbox: filing job %s without filing request", job.ID)
		}
	case domain.OutboxDelivery:
		if job.Delivery == nil {
			return fmt.Errorf("outbox: delivery job %s without delivery", job.ID)
		}
	default:
		return fmt.Errorf("outbox: unknown job kind %q", job.Kind)
	}
	return nil
}

func messageGroupID(job domain.OutboxJob) string {
	if job.Kind == domain.OutboxFiling {
		return "filing:" + digest(job.TransactionID)
	}
	return "delivery:" + string(job.Delivery.Channel) + ":" + digest(job.Delivery.Contact)
}

// deduplicationID collapses repeated filing jobs for one transaction; delivery
// jobs are unique per job.
func deduplicationID(job domain.OutboxJob) string {
	if job.Kind == domain.OutboxFiling {
		return "filing:" + digest(job.TransactionID)
	}
	return job.ID
}

// digest keeps ids inside the SQS 128-char limit and off the wire in clear text.
func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}

func str(s string) *string { return &s }
