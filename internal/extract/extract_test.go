package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/ragline/internal/domain"
)

func TestExtract_Text(t *testing.T) {
	e := New()
	res, err := e.Extract(context.Background(), []byte("hello   world\r\nsecond line"), domain.FormatText, "a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "hello world\nsecond line" {
		t.Errorf("unexpected text: %q", res.Text)
	}
	if len(res.Blocks) != 1 || res.Blocks[0].Index != 1 {
		t.Fatalf("expected single block, got %+v", res.Blocks)
	}
	if res.Blocks[0].Start != 0 || res.Blocks[0].End != len(res.Text) {
		t.Errorf("block offsets %d..%d do not span text", res.Blocks[0].Start, res.Blocks[0].End)
	}
}

func TestExtract_MarkdownKeepsStructure(t *testing.T) {
	e := New()
	res, err := e.Extract(context.Background(), []byte("# Title\n\nBody text."), domain.FormatMarkdown, "a.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Text, "# Title") {
		t.Errorf("markdown markup should survive: %q", res.Text)
	}
}

func TestExtract_HTML(t *testing.T) {
	e := New()
	input := `<html><head><title>Page</title><style>p{}</style></head>` +
		`<body><script>var x;</script><p>First &amp; foremost</p><p>Second</p></body></html>`
	res, err := e.Extract(context.Background(), []byte(input), domain.FormatHTML, "a.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(res.Text, "var x") || strings.Contains(res.Text, "p{}") {
		t.Errorf("script/style content leaked: %q", res.Text)
	}
	if !strings.Contains(res.Text, "First & foremost") {
		t.Errorf("expected decoded entity text, got %q", res.Text)
	}
	if !strings.Contains(res.Text, "Second") {
		t.Errorf("missing paragraph text: %q", res.Text)
	}
}

func TestExtract_EmptyDocument(t *testing.T) {
	e := New()
	_, err := e.Extract(context.Background(), []byte("   \n\n  "), domain.FormatText, "a.txt")
	if !errors.Is(err, domain.ErrExtractionFailed) {
		t.Errorf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	e := New()
	_, err := e.Extract(context.Background(), []byte("x"), domain.Format("xlsx"), "a.xlsx")
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExtract_MalformedPDF(t *testing.T) {
	e := New()
	_, err := e.Extract(context.Background(), []byte("not a pdf"), domain.FormatPDF, "a.pdf")
	if !errors.Is(err, domain.ErrExtractionFailed) {
		t.Errorf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestAssemble_Offsets(t *testing.T) {
	res, err := assemble([]domain.TextBlock{
		{Index: 1, Text: "page one"},
		{Index: 2, Text: ""}, // dropped
		{Index: 3, Text: "page three"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "page one\n\npage three" {
		t.Fatalf("unexpected joined text: %q", res.Text)
	}
	if len(res.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(res.Blocks))
	}
	for _, b := range res.Blocks {
		if res.Text[b.Start:b.End] != b.Text {
			t.Errorf("block %d offsets %d..%d do not slice back to its text", b.Index, b.Start, b.End)
		}
	}
	if res.Blocks[1].Index != 3 {
		t.Errorf("expected original page number preserved, got %d", res.Blocks[1].Index)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"bom", "\ufeffhello", "hello"},
		{"crlf", "a\r\nb", "a\nb"},
		{"cr", "a\rb", "a\nb"},
		{"tabs_and_spaces", "a \t  b", "a b"},
		{"blank_line_runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"trailing_space", "a   \nb", "a\nb"},
		{"trim", "  \n a \n ", "a"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalize(tc.in); got != tc.want {
				t.Errorf("normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestHTMLTitle(t *testing.T) {
	if got := HTMLTitle(`<html><title> My &amp; Page </title></html>`); got != "My & Page" {
		t.Errorf("unexpected title: %q", got)
	}
	if got := HTMLTitle(`<html><body>no title</body></html>`); got != "" {
		t.Errorf("expected empty title, got %q", got)
	}
}
