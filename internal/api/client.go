package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/monitorclient/internal/endpoint"
	"github.com/zombar/monitorclient/internal/metrics"
	"github.com/zombar/monitorclient/internal/models"
	"github.com/zombar/monitorclient/internal/tracing"
	"github.com/zombar/monitorclient/pkg/logging"
)

// Backend routes
const (
	PathAnalyzeText  = "/analyze_text"
	PathAnalyzeImage = "/analyze_image"
	PathParseDemo    = "/parse_demo"
	PathHistory      = "/history"
	PathHealth       = "/health"
)

// MinTextLength is the shortest text accepted for analysis, in characters
const MinTextLength = 10

// Client sends requests to the analysis backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.ClientMetrics
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default traced and logged HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request logging
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records every request in m
func WithMetrics(m *metrics.ClientMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTimeout bounds every request. Zero means no client-side limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a backend client. An empty baseURL means endpoint.DefaultBaseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = endpoint.DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: tracing.Transport(&logging.Transport{Logger: c.logger}),
		}
	}
	return c, nil
}

// BaseURL returns the backend address requests are sent to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AnalyzeText sends trimmed text for analysis. Texts shorter than MinTextLength
// fail with ErrTextTooShort without contacting the backend. An unreadable
// response body is treated as an empty object.
func (c *Client) AnalyzeText(ctx context.Context, text string) (*models.AnalysisResult, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinTextLength {
		return nil, ErrTextTooShort
	}

	ctx, call := c.startCall(ctx, "analyze_text", attribute.Int("text.length", len(text)))
	defer call.end()

	body, err := json.Marshal(models.AnalyzeTextRequest{Text: text})
	if err != nil {
		return nil, call.finish(fmt.Errorf("failed to encode request: %w", err))
	}
	req, err := c.newRequest(ctx, http.MethodPost, PathAnalyzeText, bytes.NewReader(body))
	if err != nil {
		return nil, call.finish(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return nil, call.finish(err)
	}
	defer resp.Body.Close()

	var out models.AnalysisResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		out = models.AnalysisResponse{}
	}
	if !isSuccess(resp.StatusCode) {
		return nil, call.finish(&StatusError{StatusCode: resp.StatusCode, Detail: detailText(out.Detail), Message: out.Error})
	}
	if !out.Success {
		return nil, call.finish(&FailureError{Message: out.Error})
	}
	return out.Analysis, call.finish(nil)
}

// AnalyzeImageFile opens the image at path and sends it for analysis
func (c *Client) AnalyzeImageFile(ctx context.Context, path string) (*models.AnalysisResult, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoFile
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return c.AnalyzeImage(ctx, filepath.Base(path), f)
}

// AnalyzeImage uploads one image as multipart field "file". A nil reader fails
// with ErrNoFile.
func (c *Client) AnalyzeImage(ctx context.Context, filename string, image io.Reader) (*models.AnalysisResult, error) {
	if image == nil {
		return nil, ErrNoFile
	}

	ctx, call := c.startCall(ctx, "analyze_image", attribute.String("image.name", filename))
	defer call.end()

	data, err := io.ReadAll(image)
	if err != nil {
		return nil, call.finish(fmt.Errorf("failed to read image: %w", err))
	}
	tracing.SetSpanAttributes(ctx, attribute.Int("image.bytes", len(data)))

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	header.Set("Content-Type", imageContentType(filename, data))
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, call.finish(fmt.Errorf("failed to build form: %w", err))
	}
	if _, err := part.Write(data); err != nil {
		return nil, call.finish(fmt.Errorf("failed to build form: %w", err))
	}
	if err := mw.Close(); err != nil {
		return nil, call.finish(fmt.Errorf("failed to build form: %w", err))
	}

	req, err := c.newRequest(ctx, http.MethodPost, PathAnalyzeImage, &form)
	if err != nil {
		return nil, call.finish(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.send(req)
	if err != nil {
		return nil, call.finish(err)
	}
	defer resp.Body.Close()

	var out models.AnalysisResponse
	if err := decodeResponse(resp, &out); err != nil {
		return nil, call.finish(err)
	}
	if !out.Success {
		return nil, call.finish(&FailureError{Message: out.Error})
	}
	return out.Analysis, call.finish(nil)
}

// ParseDemo asks the backend to fetch and analyze a page. Success without a
// data payload counts as a failure.
func (c *Client) ParseDemo(ctx context.Context, pageURL string) (*models.ParseResult, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return nil, ErrEmptyURL
	}

	ctx, call := c.startCall(ctx, "parse_demo", attribute.String("page.url", pageURL))
	defer call.end()

	body, err := json.Marshal(models.ParseDemoRequest{URL: pageURL})
	if err != nil {
		return nil, call.finish(fmt.Errorf("failed to encode request: %w", err))
	}
	req, err := c.newRequest(ctx, http.MethodPost, PathParseDemo, bytes.NewReader(body))
	if err != nil {
		return nil, call.finish(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return nil, call.finish(err)
	}
	defer resp.Body.Close()

	var out models.ParseResponse
	if err := decodeResponse(resp, &out); err != nil {
		return nil, call.finish(err)
	}
	if !out.Success || out.Data == nil {
		return nil, call.finish(&FailureError{Message: out.Error})
	}
	return out.Data, call.finish(nil)
}

// History fetches the backend's request history in backend order
func (c *Client) History(ctx context.Context) (*models.HistoryResponse, error) {
	ctx, call := c.startCall(ctx, "history")
	defer call.end()

	req, err := c.newRequest(ctx, http.MethodGet, PathHistory, nil)
	if err != nil {
		return nil, call.finish(err)
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, call.finish(err)
	}
	defer resp.Body.Close()

	var out models.HistoryResponse
	if err := decodeResponse(resp, &out); err != nil {
		return nil, call.finish(err)
	}
	if out.Items == nil {
		out.Items = []models.HistoryItem{}
	}
	tracing.SetSpanAttributes(ctx, attribute.Int("history.items", len(out.Items)))
	return &out, call.finish(nil)
}

// ClearHistory deletes the backend's history. Any completed call counts as
// success, whatever the status code.
func (c *Client) ClearHistory(ctx context.Context) error {
	ctx, call := c.startCall(ctx, "clear_history")
	defer call.end()

	req, err := c.newRequest(ctx, http.MethodDelete, PathHistory, nil)
	if err != nil {
		return call.finish(err)
	}
	resp, err := c.send(req)
	if err != nil {
		return call.finish(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if !isSuccess(resp.StatusCode) {
		c.logger.Warn("history clear returned non-success status", "status", resp.StatusCode)
	}
	return call.finish(nil)
}

// Health reports the backend's health status
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	ctx, call := c.startCall(ctx, "health")
	defer call.end()

	req, err := c.newRequest(ctx, http.MethodGet, PathHealth, nil)
	if err != nil {
		return nil, call.finish(err)
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, call.finish(err)
	}
	defer resp.Body.Close()

	var out models.HealthResponse
	if err := decodeResponse(resp, &out); err != nil {
		return nil, call.finish(err)
	}
	return &out, call.finish(nil)
}

// backendCall tracks one backend operation
type backendCall struct {
	name   string
	start  time.Time
	span   trace.Span
	cancel context.CancelFunc
	client *Client
}

// startCall opens the span for one backend operation and applies the
// configured timeout.
func (c *Client) startCall(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *backendCall) {
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	attrs = append(attrs, attribute.String("backend.url", c.baseURL))
	ctx, span := tracing.Tracer().Start(ctx, "backend."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, &backendCall{name: name, start: time.Now(), span: span, cancel: cancel, client: c}
}

// finish records the outcome in the span, metrics and log, and returns err
func (k *backendCall) finish(err error) error {
	outcome := outcomeOf(err)
	k.client.metrics.Observe(k.name, outcome, time.Since(k.start).Seconds())
	k.span.SetAttributes(attribute.String("backend.outcome", outcome))
	if err != nil {
		k.span.RecordError(err)
		k.span.SetStatus(codes.Error, err.Error())
		k.client.logger.Debug("backend call failed", "operation", k.name, "outcome", outcome, "error", err)
	} else {
		k.client.logger.Debug("backend call succeeded", "operation", k.name)
	}
	return err
}

func (k *backendCall) end() {
	k.span.End()
	k.cancel()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return resp, nil
}

// decodeResponse turns non-2xx responses into a StatusError and otherwise
// decodes the body strictly into out.
func decodeResponse(resp *http.Response, out any) error {
	if !isSuccess(resp.StatusCode) {
		var body struct {
			Detail json.RawMessage `json:"detail"`
			Error  string          `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &StatusError{StatusCode: resp.StatusCode, Detail: detailText(body.Detail), Message: body.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// DecodeError is a 2xx response whose body is not the expected JSON
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "invalid response from server: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func outcomeOf(err error) string {
	var (
		statusErr    *StatusError
		failureErr   *FailureError
		transportErr *TransportError
		decodeErr    *DecodeError
	)
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &statusErr):
		return metrics.OutcomeStatus
	case errors.As(err, &failureErr):
		return metrics.OutcomeFailure
	case errors.As(err, &transportErr):
		return metrics.OutcomeTransport
	case errors.As(err, &decodeErr):
		return metrics.OutcomeDecode
	default:
		return metrics.OutcomeFailure
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// imageContentType prefers the type implied by the file extension and falls
// back to sniffing the content.
func imageContentType(filename string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
