package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/mapcrawl/internal/engine/crawlstate"
	"github.com/rendis/mapcrawl/internal/tui/views"
)

// App is the root bubbletea model.
type App struct {
	width    int
	height   int
	progress views.ProgressModel
}

// NewApp creates the app around one crawl. start runs the crawl; cancel stops it.
func NewApp(title, output string, stats *crawlstate.Stats, cancel context.CancelFunc, start func() error) App {
	return App{
		progress: views.NewProgressModel(title, output, stats, cancel, start),
	}
}

func (a App) Init() tea.Cmd {
	return a.progress.Init()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		a.width = msg.Width
		a.height = msg.Height
	}
	var cmd tea.Cmd
	a.progress, cmd = a.progress.Update(msg)
	return a, cmd
}

func (a App) View() string {
	content := a.progress.View()
	if a.width > 0 && a.height > 0 {
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, content)
	}
	return content
}

// Run shows the progress screen while start runs and returns the crawl error.
// Quitting before the crawl returned cancels it and waits for start to finish.
func Run(title, output string, stats *crawlstate.Stats, cancel context.CancelFunc, start func() error) error {
	finished := make(chan error, 1)
	wrapped := func() error {
		err := start()
		finished <- err
		return err
	}

	final, err := tea.NewProgram(NewApp(title, output, stats, cancel, wrapped), tea.WithAltScreen()).Run()
	if err != nil {
		cancel()
		<-finished
		return fmt.Errorf("running tui: %w", err)
	}
	app := final.(App)
	if app.progress.Done() {
		return app.progress.Err()
	}
	cancel()
	return <-finished
}
