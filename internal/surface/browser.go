package surface

import (
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
)

// Browser hands off to the system web browser. The splash is only logged,
// since no tab should open until there is something to show.
type Browser struct {
	dir    string
	open   func(string) error
	logger *slog.Logger

	mu       sync.Mutex
	rendered int
}

// BrowserOption configures a Browser.
type BrowserOption func(*Browser)

// WithOpener replaces the function used to open URLs.
func WithOpener(open func(string) error) BrowserOption {
	return func(b *Browser) {
		b.open = open
	}
}

// NewBrowser creates a browser surface. Diagnostic pages are written to dir
// and opened from there.
func NewBrowser(dir string, logger *slog.Logger, opts ...BrowserOption) *Browser {
	if logger == nil {
		logger = slog.With("component", "surface")
	}
	b := &Browser{dir: dir, open: OpenURL, logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Navigate opens url in the browser.
func (b *Browser) Navigate(url string) error {
	b.logger.Info("opening browser", "url", url)
	if err := b.open(url); err != nil {
		return fmt.Errorf("opening %s: %w", url, err)
	}
	return nil
}

// Render saves the page and opens it if it is a diagnostic.
func (b *Browser) Render(src string) error {
	page := ParsePage(src)

	b.mu.Lock()
	b.rendered++
	n := b.rendered
	b.mu.Unlock()

	if !page.IsDiagnostic() {
		b.logger.Info(page.Heading)
		return nil
	}

	path, err := savePage(b.dir, n, src)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return b.Navigate(fileURL(abs))
}

func fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// OpenURL opens target with the platform's default handler.
func OpenURL(target string) error {
	name, args := openCommand(runtime.GOOS, target)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

func openCommand(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}
