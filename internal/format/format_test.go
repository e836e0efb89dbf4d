package format

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/monitorclient/internal/models"
)

func decodeAnalysis(t *testing.T, s string) *models.AnalysisResult {
	t.Helper()
	var a models.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(s), &a))
	return &a
}

func score(v float64) *float64 { return &v }

func TestAnalysisNil(t *testing.T) {
	assert.Equal(t, "", Analysis(nil))
}

func TestAnalysisFullReport(t *testing.T) {
	a := &models.AnalysisResult{
		Summary:             "Крупный игрок",
		Strengths:           []string{"цена", "доставка"},
		Weaknesses:          []string{"поддержка"},
		UniqueOffers:        []string{"подписка"},
		Recommendations:     []string{"снизить цены"},
		NewsHighlights:      []string{"новый тариф"},
		AttentionPoints:     []string{"сроки"},
		KeyTopics:           []string{"налоги"},
		MarketingInsights:   []string{"яркие цвета"},
		Description:         "Баннер",
		VisualStyleScore:    score(7),
		VisualStyleAnalysis: "Чистый стиль",
	}

	expected := "Резюме: Крупный игрок\n\n" +
		"Сильные стороны:\n• цена\n• доставка\n\n" +
		"Слабые стороны:\n• поддержка\n\n" +
		"Уникальные предложения:\n• подписка\n\n" +
		"Рекомендации:\n• снизить цены\n\n" +
		"Что нового:\n• новый тариф\n\n" +
		"На что обратить внимание:\n• сроки\n\n" +
		"Ключевые темы:\n• налоги\n\n" +
		"Инсайты:\n• яркие цвета\n\n" +
		"Описание: Баннер\n\n" +
		"Оценка визуального стиля: 7/10\n" +
		"Чистый стиль\n\n"

	assert.Equal(t, expected, Analysis(a))
}

func TestAnalysisSectionsOnlyForPopulatedLists(t *testing.T) {
	a := &models.AnalysisResult{
		Weaknesses:      []string{"a", "b", "c"},
		Recommendations: []string{},
		KeyTopics:       []string{"x"},
	}

	out := Analysis(a)
	assert.Equal(t, 1, strings.Count(out, "Слабые стороны:"))
	assert.Equal(t, 1, strings.Count(out, "Ключевые темы:"))
	assert.NotContains(t, out, "Рекомендации:")
	assert.NotContains(t, out, "Резюме:")
	assert.Equal(t, 4, strings.Count(out, Bullet))
	assert.Less(t, strings.Index(out, "Слабые стороны:"), strings.Index(out, "Ключевые темы:"))
}

func TestAnalysisOrderIndependentOfInput(t *testing.T) {
	a := decodeAnalysis(t, `{"key_topics":["k"],"visual_style_score":3,"summary":"s","strengths":["st"]}`)
	b := decodeAnalysis(t, `{"strengths":["st"],"summary":"s","visual_style_score":3,"key_topics":["k"]}`)

	assert.Equal(t, Analysis(a), Analysis(b))
	assert.Equal(t, "Резюме: s\n\nСильные стороны:\n• st\n\nКлючевые темы:\n• k\n\nОценка визуального стиля: 3/10\n", Analysis(a))
}

func TestAnalysisScoreZeroAndFractional(t *testing.T) {
	assert.Equal(t, "Оценка визуального стиля: 0/10\n", Analysis(&models.AnalysisResult{VisualStyleScore: score(0)}))
	assert.Equal(t, "Оценка визуального стиля: 7.5/10\n", Analysis(&models.AnalysisResult{VisualStyleScore: score(7.5)}))
}

func TestAnalysisFallsBackToDump(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty object",
			input:    `{}`,
			expected: "{}",
		},
		{
			name:     "unknown fields",
			input:    `{"foo": 1, "bar": ["x"]}`,
			expected: "{\n  \"foo\": 1,\n  \"bar\": [\n    \"x\"\n  ]\n}",
		},
		{
			name:     "known fields all empty",
			input:    `{"summary": "", "strengths": [], "visual_style_score": null}`,
			expected: "{\n  \"summary\": \"\",\n  \"strengths\": [],\n  \"visual_style_score\": null\n}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Analysis(decodeAnalysis(t, tt.input))
			assert.NotEmpty(t, out)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestAnalysisDumpWithoutRaw(t *testing.T) {
	assert.Equal(t, "{}", Analysis(&models.AnalysisResult{}))
}

func TestAnalysisIdempotent(t *testing.T) {
	a := decodeAnalysis(t, `{"summary":"s","recommendations":["r1","r2"]}`)
	assert.Equal(t, Analysis(a), Analysis(a))
}

func TestParseResult(t *testing.T) {
	p := &models.ParseResult{
		URL:      "https://example.com",
		Title:    "Example",
		H1:       "Welcome",
		Analysis: &models.AnalysisResult{Summary: "ok"},
	}
	assert.Equal(t, "URL: https://example.com\nTitle: Example\nH1: Welcome\n\nРезюме: ok\n\n", ParseResult(p))

	assert.Equal(t, "URL: https://example.com\n", ParseResult(&models.ParseResult{URL: "https://example.com"}))
	assert.Equal(t, "", ParseResult(nil))
}

func TestHistoryDetails(t *testing.T) {
	long := strings.Repeat("а", 310)

	tests := []struct {
		name     string
		item     *models.HistoryItem
		expected string
	}{
		{
			name:     "nil item",
			item:     nil,
			expected: "",
		},
		{
			name:     "no details",
			item:     &models.HistoryItem{RequestType: "text"},
			expected: "",
		},
		{
			name:     "null details",
			item:     &models.HistoryItem{RequestType: "text", Details: json.RawMessage(`null`)},
			expected: "",
		},
		{
			name: "parse with everything",
			item: &models.HistoryItem{
				RequestType: "parse",
				Details:     json.RawMessage(`{"url":"https://a.b","title":"T","h1":"H","first_paragraph":"` + long + `","analysis":{"summary":"S"}}`),
			},
			expected: "URL: https://a.b\nTitle: T\nH1: H\nПервый абзац: " + strings.Repeat("а", 300) + "…\n\nРезюме: S\n\n",
		},
		{
			name: "parse without url",
			item: &models.HistoryItem{
				RequestType: "parse",
				Details:     json.RawMessage(`{"title":"T"}`),
			},
			expected: "URL: \nTitle: T\n",
		},
		{
			name: "text with analysis",
			item: &models.HistoryItem{
				RequestType: "text",
				Details:     json.RawMessage(`{"analysis":{"strengths":["x"]}}`),
			},
			expected: "Сильные стороны:\n• x\n\n",
		},
		{
			name: "image without analysis dumps details",
			item: &models.HistoryItem{
				RequestType: "image",
				Details:     json.RawMessage(`{"note":"n"}`),
			},
			expected: "{\n  \"note\": \"n\"\n}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HistoryDetails(tt.item))
		})
	}
}

func TestTruncate(t *testing.T) {
	for _, limit := range []int{RequestSummaryLimit, ResponseSummaryLimit, FirstParagraphLimit} {
		over := strings.Repeat("я", limit+5)
		out := Truncate(over, limit)
		require.True(t, strings.HasSuffix(out, Ellipsis))
		assert.Equal(t, strings.Repeat("я", limit), strings.TrimSuffix(out, Ellipsis))

		exact := strings.Repeat("z", limit)
		assert.Equal(t, exact, Truncate(exact, limit))

		under := strings.Repeat("z", limit-1)
		assert.Equal(t, under, Truncate(under, limit))
	}

	assert.Equal(t, "", Truncate("", 10))
	assert.Equal(t, "…", Truncate("abc", 0))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "2025-01-02T03:04:05", Clip("2025-01-02T03:04:05.123456+00:00", TimestampLimit))
	assert.Equal(t, "2025", Clip("2025", TimestampLimit))
	assert.Equal(t, "", Clip("abc", 0))
}
