package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/mapcrawl/internal/engine/crawlstate"
	"github.com/rendis/mapcrawl/internal/tui/styles"
)

// ProgressModel shows the live counters of a crawl run.
type ProgressModel struct {
	title       string
	output      string
	stats       *crawlstate.Stats
	cancel      context.CancelFunc
	start       func() error
	progress    progress.Model
	startTime   time.Time
	done        bool
	stopping    bool
	confirmQuit bool
	err         error
	width       int
	height      int
}

// Messages
type progressTickMsg time.Time

// ScanCompleteMsg is sent when the crawl goroutine returns.
type ScanCompleteMsg struct {
	Err error
}

// NewProgressModel creates the view. start runs the crawl and blocks until it ends;
// cancel stops it early. stats is polled on every tick.
func NewProgressModel(title, output string, stats *crawlstate.Stats, cancel context.CancelFunc, start func() error) ProgressModel {
	return ProgressModel{
		title:     title,
		output:    output,
		stats:     stats,
		cancel:    cancel,
		start:     start,
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		startTime: time.Now(),
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.startScan(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

func (m ProgressModel) startScan() tea.Cmd {
	start := m.start
	return func() tea.Msg {
		if start == nil {
			return ScanCompleteMsg{}
		}
		return ScanCompleteMsg{Err: start()}
	}
}

// Err returns the crawl error once the scan completed.
func (m ProgressModel) Err() error {
	return m.err
}

// Done reports whether the crawl returned.
func (m ProgressModel) Done() bool {
	return m.done
}

func (m ProgressModel) stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m ProgressModel) Update(msg tea.Msg) (ProgressModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.stop()
			return m, tea.Quit
		case "esc":
			if m.done {
				return m, tea.Quit
			}
			if m.confirmQuit {
				// Second esc: stop the crawl and wait for it to return.
				m.stop()
				m.confirmQuit = false
				m.stopping = true
				return m, nil
			}
			m.confirmQuit = true
			return m, nil
		case "enter", "q":
			if m.done {
				return m, tea.Quit
			}
		}
		// Any other key cancels the confirmation
		m.confirmQuit = false
	case progressTickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()
	case ScanCompleteMsg:
		m.done = true
		m.err = msg.Err
		return m, nil
	}

	pModel, cmd := m.progress.Update(msg)
	m.progress = pModel.(progress.Model)
	return m, cmd
}

func (m ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render(m.title))
	b.WriteString("\n\n")

	b.WriteString(styles.StatsBox.Render(RenderStats(m.stats, time.Since(m.startTime), m.done)))
	b.WriteString("\n\n")

	b.WriteString(m.progress.ViewAs(Completion(m.stats)))
	b.WriteString("\n\n")

	switch {
	case m.done:
		if m.err != nil && !errors.Is(m.err, context.Canceled) {
			b.WriteString(styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			var pushed, enqueued int64
			if m.stats != nil {
				pushed = m.stats.PlacesPushed.Load()
				enqueued = m.stats.PlacesEnqueued.Load()
			}
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Success).Bold(true).
				Render(fmt.Sprintf("Complete! %d places enqueued, %d exported", enqueued, pushed)))
			if m.output != "" {
				b.WriteString("\n")
				b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Render("Output: " + m.output))
			}
		}
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("enter quit"))
	case m.stopping:
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Warning).Render("Stopping, waiting for open searches..."))
	case m.confirmQuit:
		b.WriteString(styles.ErrorText.Render("Press ESC again to stop the crawl"))
		b.WriteString("\n")
		b.WriteString(styles.StatusBar.Render("esc confirm stop • any key continue"))
	default:
		b.WriteString(styles.StatusBar.Render("esc stop • ctrl+c quit"))
	}

	return b.String()
}

// Completion is the finished share of searches, in [0, 1].
func Completion(stats *crawlstate.Stats) float64 {
	if stats == nil || stats.SearchesTotal <= 0 {
		return 0
	}
	finished := stats.SearchesDone.Load() + stats.SearchesFailed.Load()
	pct := float64(finished) / float64(stats.SearchesTotal)
	if pct > 1 {
		pct = 1
	}
	return pct
}

// RenderStats renders the counter table of the progress box.
func RenderStats(stats *crawlstate.Stats, elapsed time.Duration, done bool) string {
	var sb strings.Builder
	elapsed = elapsed.Truncate(time.Second)

	var s crawlstate.Summary
	if stats != nil {
		s = stats.Summary()
	}
	finished := s.SearchesDone + s.SearchesFailed

	statVal := styles.StatValue

	row := func(label string, value string, style lipgloss.Style) {
		sb.WriteString(styles.StatLabel.Render(label))
		sb.WriteString(style.Render(value))
		sb.WriteString("\n")
	}

	row("Searches:", fmt.Sprintf("%d/%d", finished, s.SearchesTotal), statVal)
	row("Found:", fmt.Sprintf("%d", s.PlacesFound), statVal)
	row("Enqueued:", fmt.Sprintf("%d", s.PlacesEnqueued), statVal)
	row("Exported:", fmt.Sprintf("%d", s.PlacesPushed), statVal)

	if s.OutOfPolygon > 0 {
		row("Outside area:", fmt.Sprintf("%d", s.OutOfPolygon), styles.StatAlert.Foreground(styles.Secondary))
	}
	if s.Retries > 0 {
		row("Retries:", fmt.Sprintf("%d", s.Retries), styles.StatAlert.Foreground(styles.Warning))
	}

	errStyle := statVal
	if s.SearchesFailed > 0 || s.ResponseErrors > 0 {
		errStyle = styles.StatAlert.Foreground(styles.Error)
	}
	row("Failed:", fmt.Sprintf("%d", s.SearchesFailed), errStyle)
	if s.ResponseErrors > 0 {
		row("Bad pages:", fmt.Sprintf("%d", s.ResponseErrors), errStyle)
	}

	row("Elapsed:", elapsed.String(), statVal)

	if eta, ok := ETA(finished, int64(s.SearchesTotal), elapsed); ok && !done {
		row("ETA:", "~"+eta.String(), statVal)
	}

	return sb.String()
}

// ETA extrapolates the remaining time from the searches finished so far.
func ETA(finished, total int64, elapsed time.Duration) (time.Duration, bool) {
	if finished <= 0 || total <= 0 || finished >= total || elapsed <= 0 {
		return 0, false
	}
	rate := float64(finished) / elapsed.Seconds()
	remaining := float64(total-finished) / rate
	return time.Duration(remaining * float64(time.Second)).Truncate(time.Second), true
}
