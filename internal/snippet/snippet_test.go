package snippet_test

import (
	"strings"
	"testing"

	"github.com/estraier/stgy-sub003/internal/snippet"
)

func TestRenderStripsMarkdownTokens(t *testing.T) {
	in := "# Hello\n\nThis is **bold** and [a link](http://example.com) with `code`."
	got := snippet.Render(in)
	if strings.ContainsAny(got, "#*`[]") {
		t.Fatalf("expected markdown tokens stripped, got %q", got)
	}
	if !strings.Contains(got, "a link") {
		t.Fatalf("expected link text preserved, got %q", got)
	}
}

func TestRenderTruncates(t *testing.T) {
	long := strings.Repeat("word ", 40)
	got := snippet.Render(long)
	if len([]rune(got)) > snippet.MaxRunes+1 { // +1 allows for the ellipsis rune
		t.Fatalf("expected truncated output, got length %d: %q", len([]rune(got)), got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis suffix for truncated text, got %q", got)
	}
}

func TestRenderShortTextUnchanged(t *testing.T) {
	short := "hi there"
	if got := snippet.Render(short); got != short {
		t.Fatalf("expected %q unchanged, got %q", short, got)
	}
}
