package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Task type constants
const (
	TypeAnalyzeText  = "monitorclient:analyze_text"
	TypeAnalyzeImage = "monitorclient:analyze_image"
	TypeParseURL     = "monitorclient:parse_url"
)

// Queue names
const (
	QueueAnalysis = "analysis"
	QueueParsing  = "parsing"
)

// DefaultTaskTimeout bounds one task when ClientConfig.TaskTimeout is zero
const DefaultTaskTimeout = 5 * time.Minute

// taskRetention keeps finished tasks visible in asynq for inspection
const taskRetention = 24 * time.Hour

// TaskMeta is carried by every payload
type TaskMeta struct {
	JobID string `json:"job_id"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// AnalyzeTextPayload represents the payload for a text analysis job
type AnalyzeTextPayload struct {
	TaskMeta
	Text string `json:"text"`
}

// AnalyzeImagePayload represents the payload for an image analysis job
type AnalyzeImagePayload struct {
	TaskMeta
	Filename string `json:"filename"`
	Image    string `json:"image"` // gzip + base64 encoded file content
}

// ParseURLPayload represents the payload for a parse demo job
type ParseURLPayload struct {
	TaskMeta
	URL string `json:"url"`
}

// enqueuer is the part of *asynq.Client the queue client uses
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client wraps the Asynq client for enqueueing tasks
type Client struct {
	client  enqueuer
	timeout time.Duration
}

// ClientConfig contains configuration for the queue client
type ClientConfig struct {
	RedisAddr   string
	TaskTimeout time.Duration
}

// NewClient creates a new queue client
func NewClient(cfg ClientConfig) *Client {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}
	return newClient(asynq.NewClient(redisOpt), cfg.TaskTimeout)
}

func newClient(e enqueuer, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return &Client{client: e, timeout: timeout}
}

// EnqueueText enqueues a text analysis job and returns its job id
func (c *Client) EnqueueText(ctx context.Context, text string) (string, error) {
	payload := AnalyzeTextPayload{TaskMeta: newMeta(ctx, TypeAnalyzeText), Text: text}
	return c.enqueue(ctx, TypeAnalyzeText, QueueAnalysis, payload.TaskMeta, payload)
}

// EnqueueImageFile reads the image at path and enqueues its analysis
func (c *Client) EnqueueImageFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return c.EnqueueImage(ctx, filepath.Base(path), data)
}

// EnqueueImage enqueues an image analysis job and returns its job id
func (c *Client) EnqueueImage(ctx context.Context, filename string, data []byte) (string, error) {
	encoded, err := compressBytes(data)
	if err != nil {
		return "", err
	}
	payload := AnalyzeImagePayload{TaskMeta: newMeta(ctx, TypeAnalyzeImage), Filename: filename, Image: encoded}
	return c.enqueue(ctx, TypeAnalyzeImage, QueueAnalysis, payload.TaskMeta, payload)
}

// EnqueueURL enqueues a parse demo job and returns its job id
func (c *Client) EnqueueURL(ctx context.Context, pageURL string) (string, error) {
	payload := ParseURLPayload{TaskMeta: newMeta(ctx, TypeParseURL), URL: pageURL}
	return c.enqueue(ctx, TypeParseURL, QueueParsing, payload.TaskMeta, payload)
}

// newMeta assigns a job id and captures the trace context of ctx, if any
func newMeta(ctx context.Context, taskType string) TaskMeta {
	meta := TaskMeta{
		JobID:      uuid.NewString(),
		EnqueuedAt: time.Now().UnixNano(), // Record enqueue time for queue wait metrics
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		meta.TraceID = spanCtx.TraceID().String()
		meta.SpanID = spanCtx.SpanID().String()

		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", taskType),
			attribute.String("task.id", meta.JobID),
			attribute.Int64("enqueued_at", meta.EnqueuedAt),
		))
	}
	return meta
}

func (c *Client) enqueue(ctx context.Context, taskType, queue string, meta TaskMeta, payload any) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(taskType, payloadBytes)
	info, err := c.client.EnqueueContext(ctx, task, c.taskOptions(meta.JobID, queue)...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s task: %w", taskType, err)
	}
	return info.ID, nil
}

func (c *Client) taskOptions(jobID, queue string) []asynq.Option {
	return []asynq.Option{
		asynq.TaskID(jobID),
		asynq.MaxRetry(0), // requests are never retried
		asynq.Timeout(c.timeout),
		asynq.Queue(queue),
		asynq.Retention(taskRetention),
	}
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.client.Close()
}
