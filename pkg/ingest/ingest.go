// Package ingest runs the queue-driven ingestion loop: receive document
// notifications, route them, persist metadata records, dispatch processing,
// and acknowledge. Messages that fail before acknowledgement reappear after
// the visibility timeout.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/docflowhq/docflow/pkg/concurrent"
	"github.com/docflowhq/docflow/pkg/jobs"
	"github.com/docflowhq/docflow/pkg/metadata"
	"github.com/docflowhq/docflow/pkg/overrides"
	"github.com/docflowhq/docflow/pkg/payload"
	"github.com/docflowhq/docflow/pkg/router"
	"github.com/docflowhq/docflow/pkg/workflow"
)

// SQSAPI is the subset of the SQS client the loop and the DLQ replayer use.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

const (
	// sqsMaxReceive is the service-side cap on one receive call.
	sqsMaxReceive = 10
	// sqsMaxDeleteBatch is the service-side cap on one batch delete.
	sqsMaxDeleteBatch = 10

	defaultWaitTime     = 20
	defaultVisibility   = 300
	defaultPollInterval = 30 * time.Second
	defaultWorkers      = 4
)

// Config wires the loop. Client, Router, and Sink are required. Runner set
// means batches are handed to the external job runner; otherwise Workflow
// processes them inline.
type Config struct {
	Client    SQSAPI
	Router    *router.Router
	Overrides overrides.Provider
	Sink      metadata.Sink
	Workflow  *workflow.Workflow
	Runner    jobs.Runner

	QueueURL         string
	MaxBatchSize     int
	WaitTimeSeconds  int32
	VisibilityBuffer int32
	PollInterval     time.Duration
	MaxBatches       int
	Workers          int
	JobID            int64
	TaskParams       map[string]string
}

// Loop consumes one queue. Not safe for concurrent Run calls.
type Loop struct {
	cfg Config
}

func New(cfg Config) (*Loop, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("ingest loop requires an SQS client")
	}
	if cfg.Router == nil {
		return nil, fmt.Errorf("ingest loop requires a router")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("ingest loop requires a metadata sink")
	}
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("ingest loop requires a queue URL")
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = sqsMaxReceive
	}
	if cfg.WaitTimeSeconds <= 0 {
		cfg.WaitTimeSeconds = defaultWaitTime
	}
	if cfg.VisibilityBuffer <= 0 {
		cfg.VisibilityBuffer = defaultVisibility
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Loop{cfg: cfg}, nil
}

// routed is one message that made it through routing.
type routed struct {
	message  types.Message
	info     metadata.MessageInfo
	body     payload.Body
	analysis *router.Analysis
}

// Run polls until the context is cancelled or MaxBatches non-empty batches
// have been processed. Cycle errors are logged; the affected messages stay
// on the queue and reappear after the visibility timeout.
func (l *Loop) Run(ctx context.Context) error {
	batches := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		counted, err := l.runCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("ingestion cycle failed", "error", err)
		}
		if !counted {
			if err := sleepContext(ctx, l.cfg.PollInterval); err != nil {
				return err
			}
			continue
		}
		batches++
		if l.cfg.MaxBatches > 0 && batches >= l.cfg.MaxBatches {
			slog.Info("reached batch limit, stopping", "batches", batches)
			return nil
		}
	}
}

// runCycle processes one receive batch. counted reports whether any
// messages were received.
func (l *Loop) runCycle(ctx context.Context) (counted bool, err error) {
	var snapshot *router.OverrideSet
	if l.cfg.Overrides != nil {
		snapshot = l.cfg.Overrides.Overrides(ctx)
	}

	out, err := l.cfg.Client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(l.cfg.QueueURL),
		MaxNumberOfMessages: int32(min(l.cfg.MaxBatchSize, sqsMaxReceive)),
		WaitTimeSeconds:     l.cfg.WaitTimeSeconds,
		VisibilityTimeout:   l.cfg.VisibilityBuffer,
	})
	if err != nil {
		return false, fmt.Errorf("receiving messages: %w", err)
	}
	if len(out.Messages) == 0 {
		return false, nil
	}

	ctx, span := otel.Tracer("docflow/ingest").Start(ctx, "ingest.batch",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.Int("messages.received", len(out.Messages)))

	var routedMsgs []routed
	for _, msg := range out.Messages {
		r, ok := l.routeMessage(ctx, msg, snapshot)
		if ok {
			routedMsgs = append(routedMsgs, r)
		}
	}
	if len(routedMsgs) == 0 {
		return true, nil
	}

	if err := l.persist(ctx, routedMsgs); err != nil {
		return true, err
	}

	acked, err := l.dispatch(ctx, routedMsgs)
	if err != nil {
		return true, err
	}
	span.SetAttributes(attribute.Int("messages.acked", len(acked)))

	if err := l.deleteBatch(ctx, acked); err != nil {
		return true, err
	}
	return true, nil
}

// routeMessage parses and routes one message. Messages it cannot handle are
// logged and left un-acked.
func (l *Loop) routeMessage(ctx context.Context, msg types.Message, snapshot *router.OverrideSet) (routed, bool) {
	messageID := aws.ToString(msg.MessageId)
	body, err := payload.Parse([]byte(aws.ToString(msg.Body)))
	if err != nil {
		slog.Warn("skipping message with unparseable body", "message_id", messageID, "error", err)
		return routed{}, false
	}

	topic, body := unwrapNotification(body)

	objectKey, ok := objectKeyOf(body)
	if !ok {
		slog.Warn("skipping message without object key", "message_id", messageID)
		return routed{}, false
	}

	analysis, err := l.cfg.Router.Route(ctx, body, objectKey, snapshot)
	if err != nil {
		slog.Warn("routing failed", "message_id", messageID, "object_key", objectKey, "error", err)
		return routed{}, false
	}

	return routed{
		message: msg,
		info: metadata.MessageInfo{
			SourcePath: objectKey,
			MessageID:  messageID,
			SNSTopic:   topic,
			QueueURL:   l.cfg.QueueURL,
		},
		body:     body,
		analysis: analysis,
	}, true
}

// unwrapNotification peels an SNS envelope when present, returning the
// topic ARN and the inner payload.
func unwrapNotification(body payload.Body) (string, payload.Body) {
	topic, _ := payload.String(body, "TopicArn")
	inner, ok := payload.String(body, "Message")
	if !ok || topic == "" {
		return topic, body
	}
	decoded, err := payload.Parse([]byte(inner))
	if err != nil {
		return topic, body
	}
	return topic, decoded
}

func objectKeyOf(body payload.Body) (string, bool) {
	if key, ok := payload.DigString(body, "s3", "object", "key"); ok && key != "" {
		return key, true
	}
	if key, ok := payload.String(body, "object_key", "objectKey", "source_path"); ok && key != "" {
		return key, true
	}
	return "", false
}

func (l *Loop) persist(ctx context.Context, routedMsgs []routed) error {
	baseRows := make([]metadata.Row, 0, len(routedMsgs))
	routingRows := make([]metadata.Row, 0, len(routedMsgs))
	for _, r := range routedMsgs {
		baseRows = append(baseRows, metadata.BaseRow(r.info, r.analysis))
		routingRows = append(routingRows, metadata.RoutingRow(r.info, r.analysis))
	}
	if err := l.cfg.Sink.AppendBase(ctx, baseRows); err != nil {
		return fmt.Errorf("appending base metadata: %w", err)
	}
	if err := l.cfg.Sink.AppendRouting(ctx, routingRows); err != nil {
		return fmt.Errorf("appending routing metadata: %w", err)
	}
	return nil
}

// dispatch hands the routed batch to the job runner when configured, else
// processes it inline. It returns the messages safe to delete.
func (l *Loop) dispatch(ctx context.Context, routedMsgs []routed) ([]types.Message, error) {
	if l.cfg.Runner != nil && l.cfg.JobID != 0 {
		if err := l.submitRun(ctx, routedMsgs); err != nil {
			return nil, err
		}
		acked := make([]types.Message, 0, len(routedMsgs))
		for _, r := range routedMsgs {
			acked = append(acked, r.message)
		}
		return acked, nil
	}
	if l.cfg.Workflow == nil {
		// Route-and-record only: metadata is the product.
		acked := make([]types.Message, 0, len(routedMsgs))
		for _, r := range routedMsgs {
			acked = append(acked, r.message)
		}
		return acked, nil
	}
	return l.processInline(ctx, routedMsgs), nil
}

func (l *Loop) submitRun(ctx context.Context, routedMsgs []routed) error {
	payloads := make([]map[string]any, 0, len(routedMsgs))
	for _, r := range routedMsgs {
		payloads = append(payloads, map[string]any{
			"source_path": r.info.SourcePath,
			"strategy":    r.analysis.Strategy,
			"category":    string(r.analysis.Category),
		})
	}
	encoded, err := json.Marshal(payloads)
	if err != nil {
		return fmt.Errorf("encoding dispatch payloads: %w", err)
	}

	params := make(map[string]string, len(l.cfg.TaskParams)+2)
	for k, v := range l.cfg.TaskParams {
		params[k] = v
	}
	params["ingested_payloads"] = string(encoded)
	params["run_tag"] = uuid.NewString()

	runID, err := l.cfg.Runner.SubmitRun(ctx, l.cfg.JobID, params)
	if err != nil {
		return fmt.Errorf("submitting run for job %d: %w", l.cfg.JobID, err)
	}
	slog.Info("dispatched batch to job runner", "job_id", l.cfg.JobID, "run_id", runID, "payloads", len(payloads))
	return nil
}

// processInline fans the batch out over a bounded worker pool. A message
// whose workflow fails stays on the queue; its siblings still complete.
func (l *Loop) processInline(ctx context.Context, routedMsgs []routed) []types.Message {
	acked := concurrent.NewSlice[types.Message]()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Workers)
	for _, r := range routedMsgs {
		g.Go(func() error {
			if err := l.processOne(ctx, r); err != nil {
				slog.Warn("inline processing failed", "object_key", r.info.SourcePath, "error", err)
				return nil
			}
			acked.Append(r.message)
			return nil
		})
	}
	_ = g.Wait()
	return acked.All()
}

func (l *Loop) processOne(ctx context.Context, r routed) error {
	content := payload.InlineContent(r.body)

	meta := map[string]any{
		"source_path": r.info.SourcePath,
		"mime_type":   r.analysis.Profile.MimeType,
		"strategy":    r.analysis.Strategy.Name,
	}
	if dm, ok := payload.Map(r.body, "documentMetadata", "document_metadata"); ok {
		for k, v := range dm {
			meta[k] = v
		}
	}

	_, err := l.cfg.Workflow.Process(ctx, workflow.Request{
		DocumentID:  r.info.SourcePath,
		Content:     content,
		SourceURI:   r.info.SourcePath,
		Metadata:    meta,
		Pages:       r.analysis.Profile.PageCount,
		ContentType: r.analysis.Profile.MimeType,
	})
	return err
}

func (l *Loop) deleteBatch(ctx context.Context, acked []types.Message) error {
	for start := 0; start < len(acked); start += sqsMaxDeleteBatch {
		chunk := acked[start:min(start+sqsMaxDeleteBatch, len(acked))]
		entries := make([]types.DeleteMessageBatchRequestEntry, 0, len(chunk))
		for i, msg := range chunk {
			entries = append(entries, types.DeleteMessageBatchRequestEntry{
				Id:            aws.String(fmt.Sprintf("m%d", start+i)),
				ReceiptHandle: msg.ReceiptHandle,
			})
		}
		if _, err := l.cfg.Client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
			QueueUrl: aws.String(l.cfg.QueueURL),
			Entries:  entries,
		}); err != nil {
			return fmt.Errorf("deleting acknowledged messages: %w", err)
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
