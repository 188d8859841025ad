package extract

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dslipak/pdf"

	"github.com/kailas-cloud/ragline/internal/domain"
)

// extractPDF pulls plain text out of each page. A malformed page is skipped
// rather than failing the whole document; the parser can also hang on
// pathological content streams, so every page runs behind a timeout guard.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) ([]domain.TextBlock, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w: %v", domain.ErrExtractionFailed, err)
	}

	numPages := reader.NumPage()
	blocks := make([]domain.TextBlock, 0, numPages)

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := e.extractPage(ctx, page)
		if err != nil {
			continue
		}

		blocks = append(blocks, domain.TextBlock{Index: i, Text: normalize(text)})
	}

	return blocks, nil
}

// extractPage runs GetPlainText in a goroutine so a stuck page cannot block
// ingestion past the configured timeout.
func (e *Extractor) extractPage(ctx context.Context, page pdf.Page) (string, error) {
	type result struct {
		text string
		err  error
	}
	resCh := make(chan result, 1)

	go func() {
		text, err := page.GetPlainText(nil)
		resCh <- result{text, err}
	}()

	select {
	case r := <-resCh:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(e.pageTimeout):
		return "", fmt.Errorf("page extraction timed out after %s", e.pageTimeout)
	}
}
