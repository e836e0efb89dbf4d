package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zombar/monitorclient/internal/format"
	"github.com/zombar/monitorclient/internal/view"
)

// requestDoneMsg is sent when a submitted request finished
type requestDoneMsg struct {
	out view.Output
}

// historyLoadedMsg is sent when a history fetch finished
type historyLoadedMsg struct {
	replaced bool
}

var tabTitles = map[view.Tab]string{
	view.TabText:    "Текст",
	view.TabImage:   "Изображение",
	view.TabParse:   "Парсинг URL",
	view.TabHistory: "История",
}

var prompts = map[view.Tab]string{
	view.TabText:  "Текст для анализа (минимум 10 символов):",
	view.TabImage: "Путь к файлу изображения:",
	view.TabParse: "URL страницы:",
}

var (
	docStyle         = lipgloss.NewStyle().Margin(1, 2)
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1).Border(lipgloss.RoundedBorder(), true, true, false, true).BorderForeground(lipgloss.Color("63"))
	inactiveTabStyle = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.HiddenBorder(), true, true, false, true).Foreground(lipgloss.Color("245"))
	panelStyle       = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(0, 1)
	selectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	hintStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	resultStyle      = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).BorderForeground(lipgloss.Color("42")).Padding(0, 1)
	errorStyle       = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).BorderForeground(lipgloss.Color("196")).Foreground(lipgloss.Color("196")).Padding(0, 1)
	loadingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

// model is the bubbletea state around a view.Controller. The controller owns
// the output region and history; the model owns inputs and the cursor.
type model struct {
	ctx        context.Context
	controller *view.Controller
	inputs     map[view.Tab]string
	cursor     int
	width      int
	height     int
	quitting   bool
}

// New returns the initial model for controller
func New(ctx context.Context, controller *view.Controller) tea.Model {
	return model{
		ctx:        ctx,
		controller: controller,
		inputs:     map[view.Tab]string{},
	}
}

// Init starts with no command
func (m model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model accordingly
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case historyLoadedMsg:
		if n := len(m.controller.History()); m.cursor >= n {
			m.cursor = max(n-1, 0)
		}

	case requestDoneMsg:
		// The controller already holds the output; receiving the message re-renders.

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	tab := m.controller.ActiveTab()

	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		return m.selectTab(1)
	case "shift+tab":
		return m.selectTab(-1)
	case "ctrl+x":
		return m, m.clearHistory()
	case "enter":
		return m, m.submit(tab)
	case "up":
		if tab == view.TabHistory && m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down":
		if tab == view.TabHistory && m.cursor < len(m.controller.History())-1 {
			m.cursor++
		}
		return m, nil
	}

	if tab == view.TabHistory {
		return m, nil
	}
	switch msg.Type {
	case tea.KeyBackspace:
		runes := []rune(m.inputs[tab])
		if len(runes) > 0 {
			m.inputs[tab] = string(runes[:len(runes)-1])
		}
	case tea.KeySpace:
		m.inputs[tab] += " "
	case tea.KeyRunes:
		m.inputs[tab] += string(msg.Runes)
	}
	return m, nil
}

func (m model) selectTab(step int) (tea.Model, tea.Cmd) {
	current := 0
	active := m.controller.ActiveTab()
	for i, t := range view.Tabs {
		if t == active {
			current = i
		}
	}
	next := view.Tabs[(current+step+len(view.Tabs))%len(view.Tabs)]
	if m.controller.SelectTab(next) {
		return m, m.loadHistory()
	}
	return m, nil
}

// submit starts the request of the active tab. Validation failures show up
// immediately and produce no command.
func (m model) submit(tab view.Tab) tea.Cmd {
	var pending *view.Pending
	switch tab {
	case view.TabText:
		pending = m.controller.StartText(m.inputs[tab])
	case view.TabImage:
		pending = m.controller.StartImageFile(m.inputs[tab])
	case view.TabParse:
		pending = m.controller.StartParse(m.inputs[tab])
	case view.TabHistory:
		m.controller.OpenHistoryItem(m.cursor)
		return nil
	}
	if pending == nil || pending.Done() {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return requestDoneMsg{out: pending.Wait(ctx)}
	}
}

func (m model) loadHistory() tea.Cmd {
	ctx, c := m.ctx, m.controller
	return func() tea.Msg {
		return historyLoadedMsg{replaced: c.LoadHistory(ctx)}
	}
}

func (m model) clearHistory() tea.Cmd {
	ctx, c := m.ctx, m.controller
	return func() tea.Msg {
		return requestDoneMsg{out: c.ClearHistory(ctx)}
	}
}

// View renders the TUI
func (m model) View() string {
	if m.quitting {
		return ""
	}

	active := m.controller.ActiveTab()
	var tabs []string
	for _, t := range view.Tabs {
		style := inactiveTabStyle
		if t == active {
			style = activeTabStyle
		}
		tabs = append(tabs, style.Render(tabTitles[t]))
	}

	var panel string
	if active == view.TabHistory {
		panel = m.historyPanel()
	} else {
		panel = prompts[active] + "\n> " + m.inputs[active] + "▌"
	}

	width := m.width - 6
	if width < 20 {
		width = 76
	}

	sections := []string{
		lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...),
		panelStyle.Width(width).Render(panel),
	}

	out := m.controller.Output()
	switch {
	case out.Loading:
		sections = append(sections, loadingStyle.Render("Загрузка…"))
	case out.ErrorVisible:
		sections = append(sections, errorStyle.Width(width).Render(out.Error))
	case out.ResultVisible:
		sections = append(sections, resultStyle.Width(width).Render(strings.TrimRight(out.Result, "\n")))
	}

	help := "[tab] вкладка | [enter] отправить | [↑/↓] история | [ctrl+x] очистить историю | [esc] выход"
	sections = append(sections, hintStyle.Render(help))

	return docStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m model) historyPanel() string {
	rows := m.controller.History()
	if len(rows) == 0 {
		return "История пуста."
	}
	var b strings.Builder
	for i, row := range rows {
		cursor := "  "
		text := row.Type + " " + row.Time + "\n" + row.Request + "\n" + row.Response
		if i == m.cursor {
			cursor = "> "
			text = selectedStyle.Render(text)
		}
		b.WriteString(cursor + strings.ReplaceAll(text, "\n", "\n  ") + "\n")
		if row.HasDetails {
			b.WriteString("  " + hintStyle.Render(format.OpenHint) + "\n")
		}
		if i < len(rows)-1 {
			b.WriteString("\n")
		}
	}
	if total := m.controller.HistoryTotal(); total > len(rows) {
		b.WriteString(fmt.Sprintf("\nпоказано %d из %d", len(rows), total))
	}
	return b.String()
}

// Run starts the terminal UI and blocks until the user quits
func Run(ctx context.Context, controller *view.Controller, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(New(ctx, controller), opts...)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
