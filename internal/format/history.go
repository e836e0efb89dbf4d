package format

import "github.com/zombar/monitorclient/internal/models"

// HistoryRow is the list projection of a history item
type HistoryRow struct {
	Type       string
	Time       string
	Request    string
	Response   string
	HasDetails bool
}

// OpenHint is shown under rows whose details can be opened
const OpenHint = "Enter — открыть полную информацию"

// Row builds the list projection of a history item
func Row(item models.HistoryItem) HistoryRow {
	return HistoryRow{
		Type:       item.RequestType,
		Time:       Clip(item.Timestamp, TimestampLimit),
		Request:    Truncate(item.RequestSummary, RequestSummaryLimit),
		Response:   Truncate(item.ResponseSummary, ResponseSummaryLimit),
		HasDetails: CanOpen(&item),
	}
}

// CanOpen reports whether a history item has details worth opening: any details
// for parse requests, details with an analysis for everything else.
func CanOpen(item *models.HistoryItem) bool {
	if item == nil || !item.HasDetails() {
		return false
	}
	return item.RequestType == models.RequestTypeParse || item.AnalysisDetails() != nil
}

// String renders the row as plain text lines
func (r HistoryRow) String() string {
	s := r.Type + " " + r.Time + "\n" + r.Request + "\n" + r.Response
	if r.HasDetails {
		s += "\n" + OpenHint
	}
	return s
}
