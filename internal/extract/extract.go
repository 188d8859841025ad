// Package extract converts uploaded document bytes into normalized plain
// text plus the structural blocks (pages) the text came from.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lu4p/cat"

	"github.com/kailas-cloud/ragline/internal/domain"
)

// Result is the output of one extraction: the full normalized text and the
// ordered blocks whose offsets index into it.
type Result struct {
	Text   string
	Blocks []domain.TextBlock
}

// Extractor turns raw document bytes into normalized text blocks.
type Extractor struct {
	pageTimeout time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPageTimeout bounds how long a single PDF page may take to extract.
func WithPageTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.pageTimeout = d }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{pageTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract converts document bytes of the given format into normalized text.
// The filename is only consulted for word-processor formats, whose parser
// dispatches on the file extension. It fails with domain.ErrExtractionFailed
// when the content is malformed or yields no text, and
// domain.ErrUnsupportedFormat for formats it cannot parse.
func (e *Extractor) Extract(ctx context.Context, data []byte, format domain.Format, filename string) (Result, error) {
	var blocks []domain.TextBlock
	var err error

	switch format {
	case domain.FormatPDF:
		blocks, err = e.extractPDF(ctx, data)
	case domain.FormatDocx:
		blocks, err = e.extractWordProcessor(data, filename)
	case domain.FormatHTML:
		blocks, err = extractHTML(data)
	case domain.FormatMarkdown, domain.FormatText:
		blocks = []domain.TextBlock{{Index: 1, Text: normalize(string(data))}}
	default:
		return Result{}, fmt.Errorf("format %q: %w", format, domain.ErrUnsupportedFormat)
	}
	if err != nil {
		return Result{}, err
	}

	return assemble(blocks)
}

// extractWordProcessor handles docx, odt and rtf. The parser works on file
// paths and dispatches on the extension, so the upload is staged to a temp
// file carrying the original extension.
func (e *Extractor) extractWordProcessor(data []byte, filename string) ([]domain.TextBlock, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".docx", ".odt", ".rtf":
	default:
		ext = ".docx"
	}

	f, err := os.CreateTemp("", "ragline-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	text, err := cat.File(f.Name())
	if err != nil {
		return nil, fmt.Errorf("parse document: %w: %v", domain.ErrExtractionFailed, err)
	}

	return []domain.TextBlock{{Index: 1, Text: normalize(text)}}, nil
}

// assemble drops empty blocks, assigns offsets into the joined text and
// rejects documents that produced no text at all.
func assemble(blocks []domain.TextBlock) (Result, error) {
	var text string
	out := make([]domain.TextBlock, 0, len(blocks))

	for _, b := range blocks {
		if b.Text == "" {
			continue
		}
		if text != "" {
			text += "\n\n"
		}
		b.Start = len(text)
		text += b.Text
		b.End = len(text)
		out = append(out, b)
	}

	if text == "" {
		return Result{}, fmt.Errorf("no extractable text: %w", domain.ErrExtractionFailed)
	}

	return Result{Text: text, Blocks: out}, nil
}
