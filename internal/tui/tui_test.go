package tui

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/monitorclient/internal/api"
	"github.com/zombar/monitorclient/internal/models"
	"github.com/zombar/monitorclient/internal/view"
)

type backendCounts struct {
	history int32
	text    int32
	clear   int32
}

func newTestModel(t *testing.T) (tea.Model, *view.Controller, *backendCounts) {
	t.Helper()
	counts := &backendCounts{}
	cleared := atomic.Bool{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == api.PathHistory && r.Method == http.MethodGet:
			atomic.AddInt32(&counts.history, 1)
			resp := models.HistoryResponse{Items: []models.HistoryItem{
				{RequestType: "text", Timestamp: "2025-01-01T10:00:00", RequestSummary: "первый", ResponseSummary: "a",
					Details: json.RawMessage(`{"analysis":{"summary":"подробно"}}`)},
				{RequestType: "image", Timestamp: "2025-01-01T09:00:00", RequestSummary: "второй", ResponseSummary: "b"},
			}, Total: 2}
			if cleared.Load() {
				resp = models.HistoryResponse{Items: []models.HistoryItem{}}
			}
			_ = json.NewEncoder(w).Encode(resp)
		case r.URL.Path == api.PathHistory && r.Method == http.MethodDelete:
			atomic.AddInt32(&counts.clear, 1)
			cleared.Store(true)
			_, _ = io.WriteString(w, `{"success":true}`)
		case r.URL.Path == api.PathAnalyzeText:
			atomic.AddInt32(&counts.text, 1)
			_, _ = io.WriteString(w, `{"success":true,"analysis":{"summary":"итог"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := api.New(srv.URL)
	require.NoError(t, err)
	controller := view.NewController(client, nil)
	return New(context.Background(), controller), controller, counts
}

func press(m tea.Model, key tea.KeyMsg) (tea.Model, tea.Cmd) {
	return m.Update(key)
}

// run executes cmd and feeds its message back into the model
func run(t *testing.T, m tea.Model, cmd tea.Cmd) tea.Model {
	t.Helper()
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	return m
}

func typeText(m tea.Model, text string) tea.Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

// openHistory moves from the text tab to the history tab and runs the reload
func openHistory(t *testing.T, m tea.Model) tea.Model {
	t.Helper()
	var cmd tea.Cmd
	for i := 0; i < 3; i++ {
		m, cmd = press(m, tea.KeyMsg{Type: tea.KeyTab})
	}
	return run(t, m, cmd)
}

func TestTabCyclesAndLoadsHistoryOnce(t *testing.T) {
	m, controller, counts := newTestModel(t)

	var cmd tea.Cmd
	for _, expected := range []view.Tab{view.TabImage, view.TabParse} {
		m, cmd = press(m, tea.KeyMsg{Type: tea.KeyTab})
		assert.Nil(t, cmd)
		assert.Equal(t, expected, controller.ActiveTab())
	}

	m, cmd = press(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, view.TabHistory, controller.ActiveTab())
	m = run(t, m, cmd)
	assert.Equal(t, int32(1), atomic.LoadInt32(&counts.history))
	assert.Contains(t, m.View(), "первый")

	m, cmd = press(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Nil(t, cmd)
	assert.Equal(t, view.TabText, controller.ActiveTab())

	m, cmd = press(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, view.TabHistory, controller.ActiveTab())
	run(t, m, cmd)
	assert.Equal(t, int32(2), atomic.LoadInt32(&counts.history))
}

func TestSubmitText(t *testing.T) {
	m, controller, counts := newTestModel(t)

	m = typeText(m, "коротко")
	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "validation failures send nothing")
	assert.Equal(t, "Введите минимум 10 символов", controller.Output().Error)
	assert.Equal(t, int32(0), atomic.LoadInt32(&counts.text))

	m, _ = press(m, tea.KeyMsg{Type: tea.KeySpace})
	m = typeText(m, "и ещё немного")
	m, cmd = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, controller.Output().Loading)
	assert.Contains(t, m.View(), "Загрузка…")

	m = run(t, m, cmd)
	assert.Equal(t, int32(1), atomic.LoadInt32(&counts.text))
	assert.Equal(t, "Резюме: итог\n\n", controller.Output().Result)
	assert.Contains(t, m.View(), "Резюме: итог")
}

func TestBackspace(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = typeText(m, "абв")
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Contains(t, m.View(), "> аб▌")
}

func TestOpenHistoryRow(t *testing.T) {
	m, controller, _ := newTestModel(t)
	m = openHistory(t, m)
	require.Equal(t, view.TabHistory, controller.ActiveTab())

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, controller.Output().ResultVisible, "second row has no details")

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyUp})
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "Резюме: подробно\n\n", controller.Output().Result)
	assert.True(t, strings.Contains(m.View(), "Резюме: подробно"))
}

func TestClearHistoryKey(t *testing.T) {
	m, controller, counts := newTestModel(t)
	m = openHistory(t, m)
	require.Len(t, controller.History(), 2)

	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyCtrlX})
	m = run(t, m, cmd)
	assert.Equal(t, int32(1), atomic.LoadInt32(&counts.clear))
	assert.Empty(t, controller.History())
	assert.Equal(t, view.HistoryCleared, controller.Output().Result)
	assert.Contains(t, m.View(), "История пуста.")
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, "", m.View())
}
