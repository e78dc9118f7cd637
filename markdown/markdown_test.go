package markdown

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func render(t *testing.T, src string) string {
	t.Helper()
	out, err := ToHTML(src)
	if err != nil {
		t.Fatalf("ToHTML(%q) error: %v", src, err)
	}
	return Sanitize(out)
}

func TestRenderBasics(t *testing.T) {
	tests := []struct {
		input    string
		contains string
	}{
		{"# Title", "<h1>Title</h1>"},
		{"**bold**", "<strong>bold</strong>"},
		{"*italic*", "<em>italic</em>"},
		{"- one\n- two", "<li>one</li>"},
		{"`code`", "<code>code</code>"},
		{"~~gone~~", "<del>gone</del>"},
		{"| a | b |\n|---|---|\n| 1 | 2 |", "<td>1</td>"},
	}
	for _, tt := range tests {
		got := render(t, tt.input)
		if !strings.Contains(got, tt.contains) {
			t.Errorf("Render(%q) = %q, want it to contain %q", tt.input, got, tt.contains)
		}
	}
}

func TestRenderStripsScripts(t *testing.T) {
	got := render(t, "hello <script>alert(1)</script> world")
	if strings.Contains(got, "script") || strings.Contains(got, "alert") {
		t.Errorf("script survived sanitizing: %q", got)
	}
}

func TestSanitizeLinks(t *testing.T) {
	got := Sanitize(`<a href="javascript:alert(1)">x</a><a href="https://example.com">y</a>`)
	if strings.Contains(got, "javascript") {
		t.Errorf("javascript href survived: %q", got)
	}
	if !strings.Contains(got, `href="https://example.com"`) {
		t.Errorf("safe link was dropped: %q", got)
	}
}

func TestSanitizeKeepsEditorMarkup(t *testing.T) {
	in := `<p style="text-align: center">centered</p><figure><img src="/public/uploads/a.jpg" alt="a"><figcaption>cap</figcaption></figure>`
	got := Sanitize(in)
	for _, want := range []string{`style="text-align: center"`, "<figure>", "<figcaption>cap</figcaption>", `src="/public/uploads/a.jpg"`} {
		if !strings.Contains(got, want) {
			t.Errorf("Sanitize dropped %q: %q", want, got)
		}
	}
}

func TestSanitizeDropsUnsafeStyle(t *testing.T) {
	got := Sanitize(`<p style="background:url(x)">p</p>`)
	if strings.Contains(got, "style") {
		t.Errorf("unsafe style survived: %q", got)
	}
}

func TestHTMLComponent(t *testing.T) {
	var buf bytes.Buffer
	if err := HTML(`<p onclick="x()">hi</p>`).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "<p>hi</p>" {
		t.Errorf("HTML component output = %q", buf.String())
	}
}
