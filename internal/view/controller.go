// Package view holds the state of the interactive client: the active tab, the
// output region and the history list. Every surface drives the same Controller.
package view

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/zombar/monitorclient/internal/api"
	"github.com/zombar/monitorclient/internal/format"
	"github.com/zombar/monitorclient/internal/models"
)

// Tab identifies one input panel
type Tab string

const (
	TabText    Tab = "text"
	TabImage   Tab = "image"
	TabParse   Tab = "parse"
	TabHistory Tab = "history"
)

// Tabs lists the panels in display order
var Tabs = []Tab{TabText, TabImage, TabParse, TabHistory}

// Dispatcher sends requests to the backend. *api.Client implements it.
type Dispatcher interface {
	AnalyzeText(ctx context.Context, text string) (*models.AnalysisResult, error)
	AnalyzeImage(ctx context.Context, filename string, image io.Reader) (*models.AnalysisResult, error)
	AnalyzeImageFile(ctx context.Context, path string) (*models.AnalysisResult, error)
	ParseDemo(ctx context.Context, pageURL string) (*models.ParseResult, error)
	History(ctx context.Context) (*models.HistoryResponse, error)
	ClearHistory(ctx context.Context) error
}

// Output is a snapshot of the output region. At most one of Loading,
// ResultVisible and ErrorVisible is set.
type Output struct {
	Loading       bool
	ResultVisible bool
	ErrorVisible  bool
	Result        string
	Error         string
}

// Controller is the view model shared by the CLI and the terminal UI. It is
// safe for concurrent use.
type Controller struct {
	dispatcher Dispatcher
	logger     *slog.Logger

	mu         sync.Mutex
	tab        Tab
	out        Output
	seq        uint64 // latest user action
	historySeq uint64 // latest history fetch
	history    []models.HistoryItem
	total      int
}

// NewController creates a controller with the text tab active
func NewController(d Dispatcher, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		dispatcher: d,
		logger:     logger,
		tab:        TabText,
		history:    []models.HistoryItem{},
	}
}

// ActiveTab returns the selected tab
func (c *Controller) ActiveTab() Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tab
}

// SelectTab activates tab and hides the result and error. It reports whether
// the caller must reload the history, which is the case on every selection of
// the history tab. Unknown tabs are ignored.
func (c *Controller) SelectTab(tab Tab) bool {
	if !validTab(tab) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tab = tab
	c.out.ResultVisible = false
	c.out.ErrorVisible = false
	return tab == TabHistory
}

// Output returns a snapshot of the output region
func (c *Controller) Output() Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out
}

// Pending is a started user action. Its loading state is already visible
// unless it failed validation.
type Pending struct {
	c   *Controller
	seq uint64
	run func(context.Context) Outcome
}

// Done reports whether the action has nothing left to send
func (p *Pending) Done() bool {
	return p.run == nil
}

// Wait sends the request, applies its outcome unless a newer action started
// meanwhile, and returns the resulting output.
func (p *Pending) Wait(ctx context.Context) Output {
	if p.run != nil {
		outcome := p.run(ctx)
		p.run = nil
		p.c.complete(p.seq, outcome)
	}
	return p.c.Output()
}

// StartText validates text and begins a text analysis
func (c *Controller) StartText(text string) *Pending {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < api.MinTextLength {
		return c.reject(api.ErrTextTooShort)
	}
	return c.begin(func(ctx context.Context) Outcome {
		return TextOutcome(c.dispatcher.AnalyzeText(ctx, text))
	})
}

// StartImageFile begins the analysis of the image at path
func (c *Controller) StartImageFile(path string) *Pending {
	if strings.TrimSpace(path) == "" {
		return c.reject(api.ErrNoFile)
	}
	return c.begin(func(ctx context.Context) Outcome {
		return ImageOutcome(c.dispatcher.AnalyzeImageFile(ctx, path))
	})
}

// StartImage begins the analysis of an image read from r
func (c *Controller) StartImage(filename string, r io.Reader) *Pending {
	if r == nil {
		return c.reject(api.ErrNoFile)
	}
	return c.begin(func(ctx context.Context) Outcome {
		return ImageOutcome(c.dispatcher.AnalyzeImage(ctx, filename, r))
	})
}

// StartParse validates pageURL and begins a parse demo request
func (c *Controller) StartParse(pageURL string) *Pending {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return c.reject(api.ErrEmptyURL)
	}
	return c.begin(func(ctx context.Context) Outcome {
		return ParseOutcome(c.dispatcher.ParseDemo(ctx, pageURL))
	})
}

// AnalyzeText runs a text analysis to completion
func (c *Controller) AnalyzeText(ctx context.Context, text string) Output {
	return c.StartText(text).Wait(ctx)
}

// AnalyzeImageFile runs an image analysis to completion
func (c *Controller) AnalyzeImageFile(ctx context.Context, path string) Output {
	return c.StartImageFile(path).Wait(ctx)
}

// ParseURL runs a parse demo request to completion
func (c *Controller) ParseURL(ctx context.Context, pageURL string) Output {
	return c.StartParse(pageURL).Wait(ctx)
}

// LoadHistory fetches the history and replaces the list. Failures are logged
// and leave the list as it was. It reports whether the list was replaced.
func (c *Controller) LoadHistory(ctx context.Context) bool {
	c.mu.Lock()
	c.historySeq++
	seq := c.historySeq
	c.mu.Unlock()

	resp, err := c.dispatcher.History(ctx)
	if err != nil {
		c.logger.Debug("history fetch failed", "error", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.historySeq {
		c.logger.Debug("discarding stale history", "seq", seq, "latest", c.historySeq)
		return false
	}
	c.history = append([]models.HistoryItem{}, resp.Items...)
	c.total = resp.Total
	return true
}

// ClearHistory deletes the backend history, reloads the list and confirms
func (c *Controller) ClearHistory(ctx context.Context) Output {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	if err := c.dispatcher.ClearHistory(ctx); err != nil {
		c.complete(seq, failure(ErrorText(err, NetworkFailed)))
		return c.Output()
	}
	c.LoadHistory(ctx)
	c.complete(seq, success(HistoryCleared))
	return c.Output()
}

// History returns the list rows in backend order
func (c *Controller) History() []format.HistoryRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := make([]format.HistoryRow, len(c.history))
	for i, item := range c.history {
		rows[i] = format.Row(item)
	}
	return rows
}

// HistoryItems returns a copy of the loaded history items
func (c *Controller) HistoryItems() []models.HistoryItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.HistoryItem{}, c.history...)
}

// HistoryTotal returns the total reported with the last loaded list
func (c *Controller) HistoryTotal() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// OpenHistoryItem shows the full details of item i. It does nothing and
// returns false when i is out of range or the item has nothing to open.
func (c *Controller) OpenHistoryItem(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.history) {
		return false
	}
	item := c.history[i]
	if !format.CanOpen(&item) {
		return false
	}
	c.seq++
	c.show(success(format.HistoryDetails(&item)))
	return true
}

// begin shows loading for a new action
func (c *Controller) begin(run func(context.Context) Outcome) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.out.Loading = true
	c.out.ResultVisible = false
	c.out.ErrorVisible = false
	return &Pending{c: c, seq: c.seq, run: run}
}

// reject shows a validation error for a new action that sends nothing
func (c *Controller) reject(err error) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.show(failure(err.Error()))
	return &Pending{c: c, seq: c.seq}
}

func (c *Controller) complete(seq uint64, outcome Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		c.logger.Debug("discarding stale response", "seq", seq, "latest", c.seq)
		return
	}
	c.show(outcome)
}

// show must be called with mu held
func (c *Controller) show(outcome Outcome) {
	c.out.Loading = false
	if outcome.Failed {
		c.out.ResultVisible = false
		c.out.ErrorVisible = true
		c.out.Error = outcome.Text
		return
	}
	c.out.ResultVisible = true
	c.out.ErrorVisible = false
	c.out.Result = outcome.Text
}

func validTab(tab Tab) bool {
	for _, t := range Tabs {
		if t == tab {
			return true
		}
	}
	return false
}
