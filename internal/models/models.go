package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Request types reported by the backend in history items
const (
	RequestTypeText  = "text"
	RequestTypeImage = "image"
	RequestTypeParse = "parse"
)

// AnalysisResult is the structured analysis returned for text, images and parsed pages.
// Every field is optional and independent of the others.
type AnalysisResult struct {
	Summary             string   `json:"summary,omitempty"`
	Strengths           []string `json:"strengths,omitempty"`
	Weaknesses          []string `json:"weaknesses,omitempty"`
	UniqueOffers        []string `json:"unique_offers,omitempty"`
	Recommendations     []string `json:"recommendations,omitempty"`
	NewsHighlights      []string `json:"news_highlights,omitempty"`
	AttentionPoints     []string `json:"attention_points,omitempty"`
	KeyTopics           []string `json:"key_topics,omitempty"`
	MarketingInsights   []string `json:"marketing_insights,omitempty"`
	Description         string   `json:"description,omitempty"`
	VisualStyleScore    *float64 `json:"visual_style_score,omitempty"` // 0-10
	VisualStyleAnalysis string   `json:"visual_style_analysis,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the known fields and keeps the original object so that
// fields this client does not know about can still be shown.
// The visual style score is accepted as a number or a numeric string; anything
// else leaves it unset instead of failing the whole result.
func (a *AnalysisResult) UnmarshalJSON(data []byte) error {
	type plain AnalysisResult
	var p struct {
		plain
		VisualStyleScore json.RawMessage `json:"visual_style_score,omitempty"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = AnalysisResult(p.plain)
	a.VisualStyleScore = parseScore(p.VisualStyleScore)
	a.raw = append(json.RawMessage(nil), data...)
	return nil
}

func parseScore(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}

// Raw returns the JSON object the result was decoded from, or nil for values built in code.
func (a *AnalysisResult) Raw() json.RawMessage {
	return a.raw
}

// ParseResult is the page summary produced by the parse demo
type ParseResult struct {
	URL            string          `json:"url"`
	Title          string          `json:"title,omitempty"`
	H1             string          `json:"h1,omitempty"`
	FirstParagraph string          `json:"first_paragraph,omitempty"`
	Analysis       *AnalysisResult `json:"analysis,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// HistoryItem is one past request as recorded by the backend
type HistoryItem struct {
	ID              string          `json:"id,omitempty"`
	Timestamp       string          `json:"timestamp"`
	RequestType     string          `json:"request_type"`
	RequestSummary  string          `json:"request_summary"`
	ResponseSummary string          `json:"response_summary"`
	Details         json.RawMessage `json:"details,omitempty"` // shape depends on RequestType
}

// HasDetails reports whether the item carries a non-null details object
func (h *HistoryItem) HasDetails() bool {
	d := bytes.TrimSpace(h.Details)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

// ParseDetails decodes details of a "parse" item. Details that are not an object
// yield an empty ParseResult.
func (h *HistoryItem) ParseDetails() *ParseResult {
	var p ParseResult
	if err := json.Unmarshal(h.Details, &p); err != nil {
		return &ParseResult{}
	}
	return &p
}

// AnalysisDetails returns details.analysis, or nil when it is absent, null or not an object.
func (h *HistoryItem) AnalysisDetails() *AnalysisResult {
	var d struct {
		Analysis *AnalysisResult `json:"analysis"`
	}
	if err := json.Unmarshal(h.Details, &d); err != nil {
		return nil
	}
	return d.Analysis
}

// AnalyzeTextRequest is the body of POST /analyze_text
type AnalyzeTextRequest struct {
	Text string `json:"text"`
}

// ParseDemoRequest is the body of POST /parse_demo
type ParseDemoRequest struct {
	URL string `json:"url"`
}

// AnalysisResponse is returned by /analyze_text and /analyze_image
type AnalysisResponse struct {
	Success  bool            `json:"success"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`
	Error    string          `json:"error,omitempty"`
	Detail   json.RawMessage `json:"detail,omitempty"` // string, or a validation error list
}

// ParseResponse is returned by /parse_demo
type ParseResponse struct {
	Success bool            `json:"success"`
	Data    *ParseResult    `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}

// HistoryResponse is returned by GET /history
type HistoryResponse struct {
	Items []HistoryItem `json:"items"`
	Total int           `json:"total"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// Batch job kinds
const (
	KindText  = "text"
	KindImage = "image"
	KindParse = "parse"
)

// Batch result statuses
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// BatchResult is the rendered outcome of one batch job
type BatchResult struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Input       string    `json:"input"`
	Status      string    `json:"status"`
	Output      string    `json:"output"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}
