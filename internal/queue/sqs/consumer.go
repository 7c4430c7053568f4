package sqsqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"cipcagent/internal/domain"
)

type Consumer struct {
	SQS      API
	QueueURL string

	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

type Handler func(ctx context.Context, job domain.OutboxJob) error

// Poll handles messages one at a time until ctx is done.
func (c *Consumer) Poll(ctx context.Context, handler Handler) error {
	for {
		msgs, err := c.receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("sqs receive message failed", "err", err)
			pause(ctx, 500*time.Millisecond)
			continue
		}
		for _, m := range msgs {
			c.handle(ctx, m, handler)
		}
	}
}

// PollConcurrent processes messages with a worker pool. Messages are deleted
// only after the handler succeeds; failures are left for SQS redrive.
func (c *Consumer) PollConcurrent(ctx context.Context, workers int, handler Handler) error {
	if workers <= 0 {
		return c.Poll(ctx, handler)
	}

	jobs := make(chan types.Message, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				c.handle(ctx, m, handler)
			}
		}()
	}

	err := func() error {
		defer close(jobs)
		for {
			msgs, err := c.receive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Error("sqs receive message failed", "err", err)
				pause(ctx, 500*time.Millisecond)
				continue
			}
			for _, m := range msgs {
				select {
				case jobs <- m:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}()

	// let workers drain what was already fetched
	wg.Wait()
	return err
}

func (c *Consumer) receive(ctx context.Context) ([]types.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := c.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &c.QueueURL,
		MaxNumberOfMessages: c.MaxMessages,
		WaitTimeSeconds:     c.WaitTimeSeconds,
		VisibilityTimeout:   c.VisibilityTimeout,
	})
	if err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Consumer) handle(ctx context.Context, m types.Message, handler Handler) {
	if m.Body == nil {
		c.delete(ctx, m)
		return
	}
	var job domain.OutboxJob
	if err := json.Unmarshal([]byte(*m.Body), &job); err != nil {
		// bad payload => delete to avoid endless redrive
		slog.Error("dropping undecodable outbox message", "err", err, "message_id", deref(m.MessageId))
		c.delete(ctx, m)
		return
	}
	if err := handler(ctx, job); err != nil {
		slog.Error("outbox handler error", "err", err, "job_id", job.ID, "kind", job.Kind)
		return
	}
	c.delete(ctx, m)
}

func (c *Consumer) delete(ctx context.Context, m types.Message) {
	_, err := c.SQS.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.QueueURL,
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		slog.Error("sqs delete message failed", "err", err, "message_id", deref(m.MessageId))
	}
}

func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
