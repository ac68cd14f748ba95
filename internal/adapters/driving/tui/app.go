package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/views/chunkdetail"
	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/views/search"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	searchView *search.View
	chunkView  *chunkdetail.View
	statusbar  *status.Bar

	currentView messages.ViewType
	err         error

	width  int
	height int
	ready  bool
}

var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		searchView:  search.NewView(s, km, ports.Retrieval),
		chunkView:   chunkdetail.NewView(s, ports.Chunks),
		statusbar:   status.NewBar(s, km),
		currentView: messages.ViewSearch,
	}, nil
}

// WithContext sets the context passed to the services.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.searchView.WithContext(ctx)
	a.chunkView.WithContext(ctx)
	return a
}

// WithLimits sets the candidate chunk and ranked sentence counts used for
// every query. Zero keeps the retrieval defaults.
func (a *App) WithLimits(chunkK, sentenceK int) *App {
	a.searchView.WithLimits(chunkK, sentenceK)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("cliniq"),
		a.searchView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		return a.updateActive(msg)

	case messages.ChunkRequested:
		return a, a.chunkView.Load(msg.ChunkID, msg.SentenceID)

	case messages.ChunkDetailsLoaded:
		a.chunkView, cmd = a.chunkView.Update(msg)
		a.err = msg.Err
		if msg.Err == nil {
			a.currentView = messages.ViewChunkDetail
		}
		return a, cmd

	case messages.RetrievalCompleted:
		a.searchView, cmd = a.searchView.Update(msg)
		a.err = msg.Err
		return a, cmd

	case messages.ViewChanged:
		a.currentView = msg.View
		return a, nil

	case messages.ErrorOccurred:
		a.err = msg.Err
		return a.updateActive(msg)

	case messages.Quit:
		return a, tea.Quit
	}

	return a.updateActive(msg)
}

// updateActive forwards a message to the view on screen.
func (a *App) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch a.currentView {
	case messages.ViewSearch:
		a.searchView, cmd = a.searchView.Update(msg)
	case messages.ViewChunkDetail:
		a.chunkView, cmd = a.chunkView.Update(msg)
	case messages.ViewHelp:
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.String() {
			case "esc", "?":
				a.currentView = messages.ViewSearch
			case "q":
				return a, tea.Quit
			}
		}
	}

	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewChunkDetail:
		a.statusbar.SetState(status.StateDetail)
		a.statusbar.SetMessage(a.chunkView.StatusLine())
		return a.chunkView.View() + "\n\n" + a.statusbar.View()
	case messages.ViewHelp:
		return a.viewHelp()
	case messages.ViewSearch:
		return a.searchView.View()
	default:
		return a.searchView.View()
	}
}

// viewHelp renders the keybinding overview.
func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\n")

	for _, group := range a.keymap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %-10s %s\n", h.Key, h.Desc))
		}
		b.WriteString("\n")
	}

	b.WriteString(a.styles.Muted.Render("Scope a query with patient:<id> artifact:<id> type:<type> from:YYYY-MM-DD to:YYYY-MM-DD"))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Help.Render("[esc] back"))
	return b.String()
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been sized.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions on every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.searchView.SetDimensions(width, height)
	a.chunkView.SetDimensions(width, height-2) // status bar below
	a.statusbar.SetWidth(width)
}
