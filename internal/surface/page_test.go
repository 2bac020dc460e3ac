package surface

import (
	"strings"
	"testing"
)

const diagnosticHTML = `<!DOCTYPE html>
<html><head><title>Startup failed</title><style>pre { color: red; }</style></head>
<body>
<h1>Startup   failed</h1>
<p>The worker did not start within 1s.</p>
<p>Copy the details below.</p>
<pre id="diag">port: 8401
timeout: 1s
</pre>
<span id="copied" hidden>Copied</span>
<p hidden>never shown</p>
<script type="application/json" id="diag-json">{"port":8401}</script>
<script>document.title = "x";</script>
</body></html>`

func TestParsePageDiagnostic(t *testing.T) {
	page := ParsePage(diagnosticHTML)

	if page.Title != "Startup failed" {
		t.Errorf("Title = %q", page.Title)
	}
	if page.Heading != "Startup failed" {
		t.Errorf("Heading = %q", page.Heading)
	}
	if len(page.Paragraphs) != 2 {
		t.Fatalf("expected 2 visible paragraphs, got %v", page.Paragraphs)
	}
	if page.Paragraphs[0] != "The worker did not start within 1s." {
		t.Errorf("unexpected paragraph %q", page.Paragraphs[0])
	}
	if page.Diag != "port: 8401\ntimeout: 1s" {
		t.Errorf("Diag = %q", page.Diag)
	}
	if !page.IsDiagnostic() {
		t.Error("expected diagnostic page")
	}
	if strings.Contains(strings.Join(page.Paragraphs, " "), "8401}") {
		t.Error("script content leaked into text")
	}
}

func TestParsePageSplash(t *testing.T) {
	page := ParsePage(`<html><body><h1>Starting</h1><p>Waiting for the local server.</p></body></html>`)
	if page.Heading != "Starting" || page.IsDiagnostic() {
		t.Errorf("unexpected splash parse %+v", page)
	}
}

func TestParsePageUnescapes(t *testing.T) {
	page := ParsePage(`<pre id="diag">&lt;script&gt;boom&lt;/script&gt;</pre>`)
	if page.Diag != "<script>boom</script>" {
		t.Errorf("Diag = %q", page.Diag)
	}
}

func TestParsePageEmpty(t *testing.T) {
	page := ParsePage("")
	if page.Heading != "" || page.IsDiagnostic() {
		t.Errorf("expected empty page, got %+v", page)
	}
}
