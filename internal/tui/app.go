// internal/tui/app.go
//
// This is the terminal browser for a resolved app tree.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: the graph, the node list and the preview pane
// 2. Update: key presses and reload results change the model
// 3. View: the model is rendered to a string
//
// The left pane lists every node, the right pane shows the selected node's
// rendered subtree, and the footer tails the resolution journal.

package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/apptree/internal/graph"
	"github.com/kingrea/apptree/internal/logbook"
)

const journalLines = 4

// Reloader re-runs discovery and resolution.
type Reloader func() (*graph.Graph, error)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithJournal shows the tail of the resolution journal under the panes.
func WithJournal(book *logbook.Logbook) AppOption {
	return func(a *App) {
		a.journal = book
	}
}

// WithReloader binds the "r" key to fn.
func WithReloader(fn Reloader) AppOption {
	return func(a *App) {
		a.reload = fn
	}
}

// reloadMsg carries the outcome of a Reloader call back into Update.
type reloadMsg struct {
	graph *graph.Graph
	err   error
}

// nodeItem implements list.Item for one graph node
type nodeItem struct {
	id   string
	desc string
}

func (i nodeItem) Title() string       { return i.id }
func (i nodeItem) Description() string { return i.desc }
func (i nodeItem) FilterValue() string { return i.id }

// App is the browser model. In bubbletea, this holds ALL the state.
type App struct {
	graph   *graph.Graph
	journal *logbook.Logbook
	reload  Reloader

	nodes       list.Model
	preview     viewport.Model
	orphansOnly bool
	previewID   string

	// journal tail as of construction or the last reload; View never reads the file.
	journalTail  []string
	journalTotal int

	statusMsg string
	width     int
	height    int
}

// NewApp builds a browser over g.
func NewApp(g *graph.Graph, opts ...AppOption) *App {
	nodes := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	nodes.Title = "Extensions"
	nodes.SetShowHelp(false)
	a := &App{
		graph:   g,
		nodes:   nodes,
		preview: viewport.New(0, 0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.refreshItems()
	a.refreshJournal()
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case reloadMsg:
		a.refreshJournal()
		if msg.err != nil {
			a.statusMsg = "Reload failed: " + msg.err.Error()
			return a, nil
		}
		a.graph = msg.graph
		a.previewID = ""
		a.refreshItems()
		a.statusMsg = fmt.Sprintf("Reloaded %d extensions, %d orphaned", a.graph.Len(), len(a.graph.Orphans()))
		return a, nil

	case tea.KeyMsg:
		if a.nodes.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit
		case "o":
			a.orphansOnly = !a.orphansOnly
			a.refreshItems()
			if a.orphansOnly {
				a.statusMsg = "Showing orphans only"
			} else {
				a.statusMsg = "Showing all extensions"
			}
			return a, nil
		case "r":
			if a.reload == nil {
				a.statusMsg = "Reload is not available"
				return a, nil
			}
			a.statusMsg = "Reloading..."
			return a, a.reloadCmd()
		case "pgdown", "J":
			a.preview.HalfViewDown()
			return a, nil
		case "pgup", "K":
			a.preview.HalfViewUp()
			return a, nil
		}
	}

	var cmd tea.Cmd
	a.nodes, cmd = a.nodes.Update(msg)
	a.syncPreview()
	return a, cmd
}

func (a *App) reloadCmd() tea.Cmd {
	reload := a.reload
	return func() tea.Msg {
		g, err := reload()
		return reloadMsg{graph: g, err: err}
	}
}

// refreshItems rebuilds the list from the graph and the orphan filter.
func (a *App) refreshItems() {
	var items []list.Item
	for _, n := range a.graph.Nodes() {
		if a.orphansOnly && !a.graph.IsOrphan(n.ID()) {
			continue
		}
		items = append(items, nodeItem{id: n.ID(), desc: describe(a.graph, n)})
	}
	a.nodes.SetItems(items)
	a.nodes.Select(0)
	a.syncPreview()
}

// describe says how a node relates to the tree: root, attached or orphan.
func describe(g *graph.Graph, n *graph.Node) string {
	decl := n.Declaration()
	var desc string
	switch {
	case n == g.Root():
		desc = "root"
	case g.IsOrphan(n.ID()):
		desc = "orphan"
		if target := decl.AttachTo.String(); target != "" {
			desc += " · wants " + target
		}
	default:
		desc = "attached to " + decl.AttachTo.String()
	}
	if decl.Disabled {
		desc += " · disabled"
	}
	return desc
}

func (a *App) selectedID() string {
	item, ok := a.nodes.SelectedItem().(nodeItem)
	if !ok {
		return ""
	}
	return item.id
}

func (a *App) syncPreview() {
	id := a.selectedID()
	if id == a.previewID {
		return
	}
	a.previewID = id
	n, ok := a.graph.Node(id)
	if !ok {
		a.preview.SetContent("No extension selected.")
		return
	}
	content := graph.Render(n)
	if source := n.Declaration().Source; source != "" {
		content = fmt.Sprintf("%s\n\nsource: %s", content, source)
	}
	a.preview.SetContent(content)
	a.preview.GotoTop()
}

func (a *App) paneWidths() (int, int) {
	width := a.width
	if width <= 0 {
		width = 100
	}
	leftWidth := max(24, width/3)
	rightWidth := max(20, width-leftWidth-4)
	return leftWidth, rightWidth
}

func (a *App) resize() {
	leftWidth, rightWidth := a.paneWidths()
	paneHeight := max(6, a.height-journalLines-10)
	a.nodes.SetSize(max(20, leftWidth-4), paneHeight)
	a.preview.Width = max(16, rightWidth-4)
	a.preview.Height = paneHeight
}

// View renders the browser.
func (a *App) View() string {
	leftWidth, rightWidth := a.paneWidths()
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render(fmt.Sprintf("⬡ APPTREE · root %s · %d extensions · %d orphans",
			a.graph.Root().ID(), a.graph.Len(), len(a.graph.Orphans())))
	leftBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(leftWidth).
		Render(a.nodes.View())
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(a.previewID)
	rightBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(rightWidth).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, a.preview.View()))

	sections := []string{header, lipgloss.JoinHorizontal(lipgloss.Top, leftBox, rightBox)}
	if journal := a.renderJournal(); journal != "" {
		sections = append(sections, journal)
	}
	hints := "↑/↓ select · / filter · o orphans · pgup/pgdn scroll · r reload · q quit"
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(strings.TrimSpace(a.statusMsg + "\n" + hints))
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

// refreshJournal re-reads the journal tail.
func (a *App) refreshJournal() {
	a.journalTail, a.journalTotal = a.journal.Tail(journalLines)
}

func (a *App) renderJournal() string {
	lines, total := a.journalTail, a.journalTotal
	if len(lines) == 0 {
		return ""
	}
	styled := make([]string, len(lines))
	for i, line := range lines {
		styled[i] = styleJournalLine(line)
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("JOURNAL · %s · %d of %d", filepath.Base(a.journal.Path()), len(lines), total))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(head + "\n" + strings.Join(styled, "\n"))
}

func styleJournalLine(line string) string {
	color := lipgloss.Color("#AAAAAA")
	if entry, ok := logbook.ParseEntry(line); ok {
		switch entry.Level {
		case logbook.LevelError:
			color = lipgloss.Color("#FF6B6B")
		case logbook.LevelWarn:
			color = lipgloss.Color("#F2C94C")
		}
	}
	return lipgloss.NewStyle().Foreground(color).Render(line)
}
