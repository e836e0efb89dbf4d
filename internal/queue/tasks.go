package queue

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/monitorclient/internal/api"
	"github.com/zombar/monitorclient/internal/models"
	"github.com/zombar/monitorclient/internal/tracing"
	"github.com/zombar/monitorclient/internal/view"
)

// handleAnalyzeText runs one text analysis job
func (w *Worker) handleAnalyzeText(ctx context.Context, t *asynq.Task) error {
	var payload AnalyzeTextPayload
	if err := w.decode(t, &payload); err != nil {
		return err
	}

	ctx, span := w.startTaskSpan(ctx, t.Type(), payload.TaskMeta, attribute.Int("text.length", len(payload.Text)))
	defer span.End()

	analysis, err := w.dispatcher.AnalyzeText(ctx, payload.Text)
	w.logBackendError(payload.TaskMeta, err)
	outcome := view.TextOutcome(analysis, err)
	return w.record(ctx, span, payload.TaskMeta, models.KindText, payload.Text, outcome)
}

// handleAnalyzeImage runs one image analysis job
func (w *Worker) handleAnalyzeImage(ctx context.Context, t *asynq.Task) error {
	var payload AnalyzeImagePayload
	if err := w.decode(t, &payload); err != nil {
		return err
	}
	data, err := decompressBytes(payload.Image)
	if err != nil {
		w.logger.Error("failed to decode image payload", "job_id", payload.JobID, "error", err)
		return fmt.Errorf("invalid image payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := w.startTaskSpan(ctx, t.Type(), payload.TaskMeta,
		attribute.String("image.name", payload.Filename),
		attribute.Int("image.bytes", len(data)),
	)
	defer span.End()

	var image io.Reader
	if len(data) > 0 {
		image = bytes.NewReader(data)
	}
	analysis, err := w.dispatcher.AnalyzeImage(ctx, payload.Filename, image)
	w.logBackendError(payload.TaskMeta, err)
	outcome := view.ImageOutcome(analysis, err)
	return w.record(ctx, span, payload.TaskMeta, models.KindImage, payload.Filename, outcome)
}

// handleParseURL runs one parse demo job
func (w *Worker) handleParseURL(ctx context.Context, t *asynq.Task) error {
	var payload ParseURLPayload
	if err := w.decode(t, &payload); err != nil {
		return err
	}

	ctx, span := w.startTaskSpan(ctx, t.Type(), payload.TaskMeta, attribute.String("page.url", payload.URL))
	defer span.End()

	page, err := w.dispatcher.ParseDemo(ctx, payload.URL)
	w.logBackendError(payload.TaskMeta, err)
	outcome := view.ParseOutcome(page, err)
	return w.record(ctx, span, payload.TaskMeta, models.KindParse, payload.URL, outcome)
}

// decode unmarshals a task payload. Malformed payloads are never retried.
func (w *Worker) decode(t *asynq.Task, out any) error {
	if err := json.Unmarshal(t.Payload(), out); err != nil {
		w.logger.Error("failed to unmarshal task payload", "task_type", t.Type(), "error", err)
		return fmt.Errorf("invalid task payload: %v: %w", err, asynq.SkipRetry)
	}
	return nil
}

// startTaskSpan starts a consumer span, parented to the enqueueing span when
// the payload carries its ids.
func (w *Worker) startTaskSpan(ctx context.Context, taskType string, meta TaskMeta, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	queueWait := queueWaitTime(meta)

	if meta.TraceID != "" && meta.SpanID != "" {
		traceID, traceErr := trace.TraceIDFromHex(meta.TraceID)
		spanID, spanErr := trace.SpanIDFromHex(meta.SpanID)
		if traceErr == nil && spanErr == nil {
			remoteSpanCtx := trace.NewSpanContext(trace.SpanContextConfig{
				TraceID:    traceID,
				SpanID:     spanID,
				TraceFlags: trace.FlagsSampled,
				Remote:     true,
			})
			ctx = trace.ContextWithRemoteSpanContext(ctx, remoteSpanCtx)
		} else {
			w.logger.Warn("ignoring invalid trace context in payload", "job_id", meta.JobID)
		}
	}

	attrs = append(attrs,
		attribute.String("task.type", taskType),
		attribute.String("job.id", meta.JobID),
		attribute.Float64("queue.wait_time_seconds", queueWait.Seconds()),
		attribute.Int64("enqueued_at", meta.EnqueuedAt),
	)
	ctx, span := tracing.Tracer().Start(ctx, "asynq.task.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attrs...),
	)
	span.AddEvent("task_processing_started", trace.WithAttributes(
		attribute.Float64("wait_time_seconds", queueWait.Seconds()),
	))

	w.logger.Info("processing batch job",
		"job_id", meta.JobID,
		"task_type", taskType,
		"queue_wait_seconds", queueWait.Seconds(),
		"trace_id", tracing.TraceIDFromContext(ctx),
	)
	return ctx, span
}

// record saves the outcome of a job in the journal
func (w *Worker) record(ctx context.Context, span trace.Span, meta TaskMeta, kind, input string, outcome view.Outcome) error {
	status := models.StatusOK
	if outcome.Failed {
		status = models.StatusError
		span.SetStatus(codes.Error, outcome.Text)
	}
	span.SetAttributes(attribute.String("job.status", status))

	created := time.Now()
	if meta.EnqueuedAt > 0 {
		created = time.Unix(0, meta.EnqueuedAt)
	}
	result := &models.BatchResult{
		ID:          meta.JobID,
		Kind:        kind,
		Input:       input,
		Status:      status,
		Output:      outcome.Text,
		CreatedAt:   created,
		CompletedAt: time.Now(),
	}

	w.metrics.RecordTask(kind, status, queueWaitTime(meta).Seconds())

	if err := w.journal.SaveResult(result); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save result: %w", err)
	}

	w.logger.Info("batch job completed",
		"job_id", meta.JobID,
		"kind", kind,
		"status", status,
		"trace_id", tracing.TraceIDFromContext(ctx),
	)
	return nil
}

func queueWaitTime(meta TaskMeta) time.Duration {
	if meta.EnqueuedAt <= 0 {
		return 0
	}
	return time.Since(time.Unix(0, meta.EnqueuedAt))
}

// logBackendError logs failed backend calls. The failure itself is recorded
// in the journal like any other outcome.
func (w *Worker) logBackendError(meta TaskMeta, err error) {
	switch {
	case err == nil:
	case isBackendUnreachable(err):
		w.logger.Warn("backend unreachable", "job_id", meta.JobID, "error", err)
	default:
		w.logger.Debug("backend call failed", "job_id", meta.JobID, "error", err)
	}
}

// isBackendUnreachable reports whether err means the backend could not be
// reached at all, as opposed to a backend-side failure.
func isBackendUnreachable(err error) bool {
	var transportErr *api.TransportError
	return errors.As(err, &transportErr)
}

// compressBytes gzips data and base64 encodes the result
func compressBytes(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	gzWriter := gzip.NewWriter(&buf)

	if _, err := gzWriter.Write(data); err != nil {
		return "", fmt.Errorf("failed to write to gzip: %w", err)
	}

	if err := gzWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decompressBytes reverses compressBytes
func decompressBytes(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}

	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	gzReader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	decompressed, err := io.ReadAll(gzReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed data: %w", err)
	}
	return decompressed, nil
}
