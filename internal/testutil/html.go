package testutil

import (
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ListHTML renders a document with one <ul class="class"> whose items each
// hold a span per field: <li><span class="name">v</span>...</li>.
// Empty values omit the span entirely.
func ListHTML(class string, fields []string, items ...[]string) string {
	var b strings.Builder
	b.WriteString("<html><body>\n<ul class=\"" + class + "\">\n")
	for _, item := range items {
		b.WriteString("  <li>")
		for i, f := range fields {
			if i >= len(item) || item[i] == "" {
				continue
			}
			b.WriteString("<span class=\"" + f + "\">" + html.EscapeString(item[i]) + "</span>")
		}
		b.WriteString("</li>\n")
	}
	b.WriteString("</ul>\n</body></html>\n")
	return b.String()
}

// TableHTML renders a document with one <table class="class">, a header row
// of <th> cells and one <tr> of <td> cells per row.
func TableHTML(class string, header []string, rows ...[]string) string {
	var b strings.Builder
	b.WriteString("<html><body>\n<table class=\"" + class + "\">\n")
	if len(header) > 0 {
		b.WriteString("  <tr>")
		for _, h := range header {
			b.WriteString("<th>" + html.EscapeString(h) + "</th>")
		}
		b.WriteString("</tr>\n")
	}
	for _, row := range rows {
		b.WriteString("  <tr>")
		for _, cell := range row {
			b.WriteString("<td>" + html.EscapeString(cell) + "</td>")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n</body></html>\n")
	return b.String()
}

// WriteDocs writes each document under dir, creating subdirectories as
// needed, and returns dir. Document ids are slash-separated relative paths.
func WriteDocs(t *testing.T, dir string, docs map[string]string) string {
	t.Helper()
	for id, content := range docs {
		path := filepath.Join(dir, filepath.FromSlash(id))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", id, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", id, err)
		}
	}
	return dir
}
