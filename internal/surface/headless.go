package surface

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Headless is a surface with no display. It prints what a windowed surface
// would show and optionally keeps every rendered page on disk.
type Headless struct {
	out    io.Writer
	dir    string
	logger *slog.Logger

	mu       sync.Mutex
	rendered int
	url      string
	last     Page
}

// NewHeadless creates a headless surface writing to out. If dir is not empty
// rendered pages are saved there as numbered HTML files.
func NewHeadless(out io.Writer, dir string, logger *slog.Logger) *Headless {
	if logger == nil {
		logger = slog.With("component", "surface")
	}
	return &Headless{out: out, dir: dir, logger: logger}
}

// Navigate prints the worker URL.
func (h *Headless) Navigate(url string) error {
	h.mu.Lock()
	h.url = url
	h.mu.Unlock()

	h.logger.Info("navigate", "url", url)
	_, err := fmt.Fprintf(h.out, "ready: %s\n", url)
	return err
}

// Render prints the page heading, and the diagnostic block if present.
func (h *Headless) Render(src string) error {
	page := ParsePage(src)

	h.mu.Lock()
	h.rendered++
	n := h.rendered
	h.last = page
	h.mu.Unlock()

	if h.dir != "" {
		path, err := savePage(h.dir, n, src)
		if err != nil {
			return err
		}
		h.logger.Debug("page saved", "path", path)
	}

	h.logger.Info("render", "heading", page.Heading, "diagnostic", page.IsDiagnostic())
	if !page.IsDiagnostic() {
		_, err := fmt.Fprintf(h.out, "%s\n", page.Heading)
		return err
	}
	_, err := fmt.Fprintf(h.out, "%s\n%s\n", page.Heading, page.Diag)
	return err
}

// URL returns the last URL navigated to.
func (h *Headless) URL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.url
}

// Last returns the last rendered page.
func (h *Headless) Last() Page {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

func savePage(dir string, n int, src string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating page directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%03d.html", n))
	if err := os.WriteFile(path, []byte(src), 0600); err != nil {
		return "", fmt.Errorf("writing page: %w", err)
	}
	return path, nil
}
