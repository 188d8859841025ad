package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Format identifies the declared content type of an uploaded document.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDocx     Format = "docx"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
)

// DetectFormat resolves a Format from a declared content type or, failing
// that, from the filename extension. Returns ErrUnsupportedFormat for
// anything the extractor cannot handle.
func DetectFormat(contentType, filename string) (Format, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	switch ct {
	case "application/pdf":
		return FormatPDF, nil
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.oasis.opendocument.text",
		"application/rtf", "text/rtf":
		return FormatDocx, nil
	case "text/markdown":
		return FormatMarkdown, nil
	case "text/html", "application/xhtml+xml":
		return FormatHTML, nil
	case "text/plain":
		return FormatText, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx", ".odt", ".rtf":
		return FormatDocx, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".txt", ".text", ".log":
		return FormatText, nil
	}

	return "", fmt.Errorf("content type %q, file %q: %w", contentType, filename, ErrUnsupportedFormat)
}

// Document is the catalog aggregate for an ingested document.
type Document struct {
	id          string
	title       string
	format      Format
	sizeBytes   int
	liveVersion int
	chunkCount  int
	ingestedAt  int64
}

// NewDocument validates identity fields and creates a Document.
// ID: ^[a-zA-Z0-9._-]+$, 1-256 chars.
func NewDocument(id, title string, format Format, sizeBytes int) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf("document ID must be alphanumeric with dots, underscores and hyphens")
	}
	return Document{id: id, title: title, format: format, sizeBytes: sizeBytes}, nil
}

// ReconstructDocument creates a Document without validation (storage hydration).
func ReconstructDocument(
	id, title string, format Format, sizeBytes, liveVersion, chunkCount int, ingestedAt int64,
) Document {
	return Document{
		id: id, title: title, format: format, sizeBytes: sizeBytes,
		liveVersion: liveVersion, chunkCount: chunkCount, ingestedAt: ingestedAt,
	}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Title returns the display title.
func (d *Document) Title() string { return d.title }

// Format returns the declared content format.
func (d *Document) Format() Format { return d.format }

// SizeBytes returns the raw upload size.
func (d *Document) SizeBytes() int { return d.sizeBytes }

// LiveVersion returns the currently queryable version, 0 before first ingest.
func (d *Document) LiveVersion() int { return d.liveVersion }

// ChunkCount returns the number of chunks in the live version.
func (d *Document) ChunkCount() int { return d.chunkCount }

// IngestedAt returns the last ingestion time in unix milliseconds.
func (d *Document) IngestedAt() int64 { return d.ingestedAt }

// SetLive records a completed ingestion (mutation).
func (d *Document) SetLive(version, chunkCount int, ingestedAt int64) {
	d.liveVersion = version
	d.chunkCount = chunkCount
	d.ingestedAt = ingestedAt
}
