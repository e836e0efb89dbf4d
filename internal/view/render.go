package view

import (
	"errors"

	"github.com/zombar/monitorclient/internal/api"
	"github.com/zombar/monitorclient/internal/format"
	"github.com/zombar/monitorclient/internal/models"
)

// Display messages
const (
	NotFoundGuidance = "Сервер вернул 404. Убедитесь, что сервер запущен (python run.py) и откройте http://127.0.0.1:8000"
	AnalysisFailed   = "Ошибка анализа"
	ParseFailed      = "Ошибка парсинга"
	NetworkFailed    = "Ошибка сети"
	HistoryCleared   = "История очищена."
)

// Outcome is the text a finished request puts in the output region
type Outcome struct {
	Text   string
	Failed bool
}

func success(text string) Outcome { return Outcome{Text: text} }
func failure(text string) Outcome { return Outcome{Text: text, Failed: true} }

// TextOutcome renders the result of a text analysis. A 404 always yields the
// guidance message whatever the body said.
func TextOutcome(a *models.AnalysisResult, err error) Outcome {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == 404 {
		return failure(NotFoundGuidance)
	}
	return analysisOutcome(a, err)
}

// ImageOutcome renders the result of an image analysis
func ImageOutcome(a *models.AnalysisResult, err error) Outcome {
	return analysisOutcome(a, err)
}

// ParseOutcome renders the result of a parse demo request
func ParseOutcome(p *models.ParseResult, err error) Outcome {
	if err == nil {
		return success(format.ParseResult(p))
	}
	return failure(ErrorText(err, ParseFailed))
}

func analysisOutcome(a *models.AnalysisResult, err error) Outcome {
	if err == nil {
		return success(format.Analysis(a))
	}
	return failure(ErrorText(err, AnalysisFailed))
}

// ErrorText picks the message shown for err. A success:false response without
// an error field falls back to fallback.
func ErrorText(err error, fallback string) string {
	var failureErr *api.FailureError
	if errors.As(err, &failureErr) {
		if failureErr.Message != "" {
			return failureErr.Message
		}
		return fallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return NetworkFailed
}
