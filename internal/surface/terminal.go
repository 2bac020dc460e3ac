package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styles
var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	readyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	diagStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("241")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

type phase int

const (
	phaseStarting phase = iota
	phaseReady
	phaseFailed
)

// Messages delivered to the program from the handoff goroutine.
type (
	navigateMsg struct{ url string }
	renderMsg   struct{ page Page }
	copiedMsg   struct{ err error }
)

// model is the bubbletea model behind Terminal.
type model struct {
	spinner spinner.Model
	phase   phase
	page    Page
	url     string
	status  string
	copy    func(string) error
}

func newModel(copyFn func(string) error) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = headingStyle
	return model{
		spinner: s,
		page:    Page{Heading: "Starting"},
		copy:    copyFn,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "c":
			if m.phase == phaseFailed && m.copy != nil {
				diag, copyFn := m.page.Diag, m.copy
				return m, func() tea.Msg {
					return copiedMsg{err: copyFn(diag)}
				}
			}
		}

	case navigateMsg:
		m.phase = phaseReady
		m.url = msg.url
		return m, nil

	case renderMsg:
		m.page = msg.page
		if msg.page.IsDiagnostic() {
			m.phase = phaseFailed
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
		} else {
			m.status = "diagnostic copied to clipboard"
		}
		return m, nil

	case spinner.TickMsg:
		if m.phase != phaseStarting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	switch m.phase {
	case phaseStarting:
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), headingStyle.Render(m.page.Heading))
		for _, p := range m.page.Paragraphs {
			b.WriteString(p + "\n")
		}
		b.WriteString(helpStyle.Render("q quit"))

	case phaseReady:
		fmt.Fprintf(&b, "%s %s\n", readyStyle.Render("Ready at"), m.url)
		b.WriteString(helpStyle.Render("q stop and quit"))

	case phaseFailed:
		b.WriteString(failStyle.Render(m.page.Heading) + "\n")
		for _, p := range m.page.Paragraphs {
			b.WriteString(p + "\n")
		}
		b.WriteString(diagStyle.Render(m.page.Diag) + "\n")
		if m.status != "" {
			b.WriteString(m.status + "\n")
		}
		b.WriteString(helpStyle.Render("c copy details • q quit"))
	}
	return b.String() + "\n"
}

// Terminal is a surface drawn in the terminal. Run owns the terminal until
// the user quits; Navigate and Render may be called from any goroutine and
// are delivered to the program as messages.
type Terminal struct {
	program *tea.Program
	open    func(string) error
}

// TerminalOption configures a Terminal.
type TerminalOption func(*terminalConfig)

type terminalConfig struct {
	in      io.Reader
	out     io.Writer
	open    func(string) error
	copy    func(string) error
	noInput bool
	noDraw  bool
}

// WithIO sets the terminal input and output.
func WithIO(in io.Reader, out io.Writer) TerminalOption {
	return func(c *terminalConfig) {
		c.in, c.out = in, out
		c.noInput = in == nil
	}
}

// WithBrowser also opens the worker URL with open once it is ready.
func WithBrowser(open func(string) error) TerminalOption {
	return func(c *terminalConfig) {
		c.open = open
	}
}

// WithClipboard replaces the function used by the copy key.
func WithClipboard(copyFn func(string) error) TerminalOption {
	return func(c *terminalConfig) {
		c.copy = copyFn
	}
}

// WithoutRenderer disables drawing; used when output is not a terminal.
func WithoutRenderer() TerminalOption {
	return func(c *terminalConfig) {
		c.noDraw = true
	}
}

// NewTerminal creates a terminal surface.
func NewTerminal(opts ...TerminalOption) *Terminal {
	cfg := terminalConfig{copy: clipboard.WriteAll}
	for _, opt := range opts {
		opt(&cfg)
	}

	var popts []tea.ProgramOption
	if cfg.out != nil {
		popts = append(popts, tea.WithOutput(cfg.out))
	}
	if cfg.noInput {
		popts = append(popts, tea.WithInput(nil))
	} else if cfg.in != nil {
		popts = append(popts, tea.WithInput(cfg.in))
	}
	if cfg.noDraw {
		popts = append(popts, tea.WithoutRenderer())
	}

	return &Terminal{
		program: tea.NewProgram(newModel(cfg.copy), popts...),
		open:    cfg.open,
	}
}

// Run draws the surface and blocks until the user quits or Quit is called.
func (t *Terminal) Run() error {
	_, err := t.program.Run()
	return err
}

// Quit stops Run.
func (t *Terminal) Quit() {
	t.program.Quit()
}

// Navigate shows the worker URL, and opens it in the browser if configured.
func (t *Terminal) Navigate(url string) error {
	t.program.Send(navigateMsg{url: url})
	if t.open != nil {
		return t.open(url)
	}
	return nil
}

// Render shows the text content of page.
func (t *Terminal) Render(page string) error {
	t.program.Send(renderMsg{page: ParsePage(page)})
	return nil
}
