package handoff

import (
	"bytes"
	"embed"
	"html/template"
)

//go:embed pages/*.html
var pagesFS embed.FS

var pages = template.Must(template.ParseFS(pagesFS, "pages/*.html"))

// SplashPage is the static page shown before anything touches the network.
func SplashPage() string {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "splash.html", nil); err != nil {
		// Static template with no data; cannot fail once parsed.
		panic(err)
	}
	return buf.String()
}

type diagnosticView struct {
	Summary string
	Text    string
	Data    Diagnostic
}

// DiagnosticPage renders d as a self-contained HTML page: a selectable text
// block with a copy button, plus the same data as embedded JSON.
func DiagnosticPage(d Diagnostic) (string, error) {
	var buf bytes.Buffer
	view := diagnosticView{Summary: d.Summary(), Text: d.Text(), Data: d}
	if err := pages.ExecuteTemplate(&buf, "diagnostic.html", view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
