package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// drainVisibility hides a message long enough to replay it before it
// reappears to other consumers.
const drainVisibility = 60

// Replayer inspects and drains a dead-letter queue.
type Replayer struct {
	client SQSAPI
	dlqURL string
}

func NewReplayer(client SQSAPI, dlqURL string) *Replayer {
	return &Replayer{client: client, dlqURL: dlqURL}
}

// Peek returns up to n message bodies without consuming them. Visibility
// timeout zero leaves the messages visible to other inspectors.
func (r *Replayer) Peek(ctx context.Context, n int) ([]string, error) {
	var bodies []string
	for len(bodies) < n {
		out, err := r.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(r.dlqURL),
			MaxNumberOfMessages: int32(min(n-len(bodies), sqsMaxReceive)),
			VisibilityTimeout:   0,
		})
		if err != nil {
			return bodies, fmt.Errorf("peeking dead-letter queue: %w", err)
		}
		if len(out.Messages) == 0 {
			break
		}
		for _, msg := range out.Messages {
			bodies = append(bodies, aws.ToString(msg.Body))
		}
	}
	return bodies, nil
}

// Drain re-sends dead-letter messages to the target queue, deleting each
// original only after its replay send succeeded. Replay is at-least-once:
// a crash between send and delete duplicates the message, and the
// idempotent workflow absorbs it.
func (r *Replayer) Drain(ctx context.Context, targetURL string, limit int, throttle time.Duration) (int, error) {
	moved := 0
	for limit <= 0 || moved < limit {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		batch := sqsMaxReceive
		if limit > 0 {
			batch = min(batch, limit-moved)
		}
		out, err := r.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(r.dlqURL),
			MaxNumberOfMessages: int32(batch),
			VisibilityTimeout:   drainVisibility,
		})
		if err != nil {
			return moved, fmt.Errorf("receiving from dead-letter queue: %w", err)
		}
		if len(out.Messages) == 0 {
			return moved, nil
		}

		for _, msg := range out.Messages {
			if _, err := r.client.SendMessage(ctx, &sqs.SendMessageInput{
				QueueUrl:    aws.String(targetURL),
				MessageBody: msg.Body,
			}); err != nil {
				slog.Warn("replay send failed, leaving message on dead-letter queue",
					"message_id", aws.ToString(msg.MessageId), "error", err)
				continue
			}
			if _, err := r.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
				QueueUrl: aws.String(r.dlqURL),
				Entries:  deleteEntry(msg.ReceiptHandle),
			}); err != nil {
				slog.Warn("deleting replayed message failed, it may be replayed again",
					"message_id", aws.ToString(msg.MessageId), "error", err)
			}
			moved++
			if limit > 0 && moved >= limit {
				return moved, nil
			}
			if throttle > 0 {
				if err := sleepContext(ctx, throttle); err != nil {
					return moved, err
				}
			}
		}
	}
	return moved, nil
}

func deleteEntry(receipt *string) []types.DeleteMessageBatchRequestEntry {
	return []types.DeleteMessageBatchRequestEntry{{
		Id:            aws.String("replay-0"),
		ReceiptHandle: receipt,
	}}
}
