// Package format renders backend payloads as human-readable text.
//
// All functions are pure: the same input always yields the same text.
package format

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/zombar/monitorclient/internal/models"
)

// Ellipsis is appended by Truncate when text is cut
const Ellipsis = "…"

// Bullet prefixes every item of a list section
const Bullet = "• "

// Display limits, in characters
const (
	TimestampLimit       = 19
	RequestSummaryLimit  = 80
	ResponseSummaryLimit = 100
	FirstParagraphLimit  = 300
)

type listSection struct {
	label string
	items func(*models.AnalysisResult) []string
}

// listSections holds the list-valued fields in output order
var listSections = []listSection{
	{"Сильные стороны:", func(a *models.AnalysisResult) []string { return a.Strengths }},
	{"Слабые стороны:", func(a *models.AnalysisResult) []string { return a.Weaknesses }},
	{"Уникальные предложения:", func(a *models.AnalysisResult) []string { return a.UniqueOffers }},
	{"Рекомендации:", func(a *models.AnalysisResult) []string { return a.Recommendations }},
	{"Что нового:", func(a *models.AnalysisResult) []string { return a.NewsHighlights }},
	{"На что обратить внимание:", func(a *models.AnalysisResult) []string { return a.AttentionPoints }},
	{"Ключевые темы:", func(a *models.AnalysisResult) []string { return a.KeyTopics }},
	{"Инсайты:", func(a *models.AnalysisResult) []string { return a.MarketingInsights }},
}

// Analysis renders an analysis as a report. A nil analysis renders as empty text;
// an analysis with none of the known fields set renders as an indented JSON dump.
func Analysis(a *models.AnalysisResult) string {
	if a == nil {
		return ""
	}

	var b strings.Builder
	if a.Summary != "" {
		b.WriteString("Резюме: " + a.Summary + "\n\n")
	}
	for _, section := range listSections {
		items := section.items(a)
		if len(items) == 0 {
			continue
		}
		b.WriteString(section.label + "\n")
		for _, item := range items {
			b.WriteString(Bullet + item + "\n")
		}
		b.WriteString("\n")
	}
	if a.Description != "" {
		b.WriteString("Описание: " + a.Description + "\n\n")
	}
	if a.VisualStyleScore != nil {
		b.WriteString("Оценка визуального стиля: " + strconv.FormatFloat(*a.VisualStyleScore, 'f', -1, 64) + "/10\n")
	}
	if a.VisualStyleAnalysis != "" {
		b.WriteString(a.VisualStyleAnalysis + "\n\n")
	}

	if b.Len() == 0 {
		if raw := a.Raw(); len(raw) > 0 {
			return Dump(raw)
		}
		data, err := json.Marshal(a)
		if err != nil {
			return "{}"
		}
		return Dump(data)
	}
	return b.String()
}

// ParseResult renders the outcome of a parse demo request
func ParseResult(p *models.ParseResult) string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("URL: " + p.URL + "\n")
	writePageHeadings(&b, p)
	if p.Analysis != nil {
		b.WriteString("\n" + Analysis(p.Analysis))
	}
	return b.String()
}

// HistoryDetails renders the full details of a history item, or empty text when
// the item has none.
func HistoryDetails(item *models.HistoryItem) string {
	if item == nil || !item.HasDetails() {
		return ""
	}

	if item.RequestType == models.RequestTypeParse {
		p := item.ParseDetails()
		var b strings.Builder
		b.WriteString("URL: " + p.URL + "\n")
		writePageHeadings(&b, p)
		if p.FirstParagraph != "" {
			b.WriteString("Первый абзац: " + Truncate(p.FirstParagraph, FirstParagraphLimit) + "\n\n")
		}
		if p.Analysis != nil {
			b.WriteString(Analysis(p.Analysis))
		}
		return b.String()
	}

	if a := item.AnalysisDetails(); a != nil {
		return Analysis(a)
	}
	return Dump(item.Details)
}

func writePageHeadings(b *strings.Builder, p *models.ParseResult) {
	if p.Title != "" {
		b.WriteString("Title: " + p.Title + "\n")
	}
	if p.H1 != "" {
		b.WriteString("H1: " + p.H1 + "\n")
	}
}

// Dump pretty-prints a JSON document with two-space indentation. Input that is
// not valid JSON is returned unchanged.
func Dump(raw []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(raw), "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}

// Truncate cuts text to limit characters and appends Ellipsis, but only when
// text is strictly longer than limit.
func Truncate(text string, limit int) string {
	if limit < 0 {
		limit = 0
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return Clip(text, limit) + Ellipsis
}

// Clip cuts text to at most limit characters without any marker
func Clip(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}
