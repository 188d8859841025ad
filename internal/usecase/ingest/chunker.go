package ingest

import (
	"fmt"
	"regexp"

	"github.com/kailas-cloud/ragline/internal/domain"
)

var sentenceEnd = regexp.MustCompile(`[.!?]["')\]]*\s+`)

// Chunker splits normalized document text into overlapping windows. Sizes
// count characters (runes); recorded offsets are byte positions into the
// normalized text, so chunk.Text == normalized[Start:End] always holds.
type Chunker struct {
	cfg domain.ChunkingConfig
}

// NewChunker validates the window configuration.
func NewChunker(cfg domain.ChunkingConfig) (*Chunker, error) {
	if cfg.MaxChunkSize <= 0 {
		return nil, fmt.Errorf("max chunk size %d must be positive: %w",
			cfg.MaxChunkSize, domain.ErrInvalidConfiguration)
	}
	if cfg.OverlapSize < 0 {
		return nil, fmt.Errorf("overlap size %d must be non-negative: %w",
			cfg.OverlapSize, domain.ErrInvalidConfiguration)
	}
	if cfg.OverlapSize >= cfg.MaxChunkSize {
		return nil, fmt.Errorf("overlap %d must be smaller than max chunk size %d: %w",
			cfg.OverlapSize, cfg.MaxChunkSize, domain.ErrInvalidConfiguration)
	}
	return &Chunker{cfg: cfg}, nil
}

// Chunk splits text into chunks with exact offsets and block provenance.
// Empty text yields no chunks.
func (c *Chunker) Chunk(docID, text string, blocks []domain.TextBlock) ([]domain.Chunk, error) {
	if text == "" {
		return nil, nil
	}

	var spans []span
	if c.cfg.SplitSentences {
		spans = c.sentenceSpans(text)
	} else {
		spans = c.windowSpans(text)
	}

	chunks := make([]domain.Chunk, len(spans))
	for i, sp := range spans {
		first, last := blockSpan(blocks, sp.start, sp.end)
		chunks[i] = domain.Chunk{
			DocumentID: docID,
			Seq:        i,
			Text:       text[sp.start:sp.end],
			Start:      sp.start,
			End:        sp.end,
			FirstBlock: first,
			LastBlock:  last,
		}
	}
	return chunks, nil
}

// span is a byte range into the normalized text.
type span struct {
	start, end int
}

// windowSpans is the greedy sliding window: each window starts
// max-overlap runes after the previous one. A tail shorter than the
// overlap folds into the final window instead of becoming its own chunk.
func (c *Chunker) windowSpans(text string) []span {
	runes := []rune(text)
	byteAt := runeByteOffsets(text, len(runes))

	maxSize := c.cfg.MaxChunkSize
	step := maxSize - c.cfg.OverlapSize

	var spans []span
	for start := 0; start < len(runes); start += step {
		end := start + maxSize
		if end >= len(runes) {
			end = len(runes)
		} else if len(runes)-end < c.cfg.OverlapSize {
			end = len(runes)
		}
		spans = append(spans, span{start: byteAt[start], end: byteAt[end]})
		if end == len(runes) {
			break
		}
	}
	return spans
}

// sentenceSpans aligns windows to sentence boundaries: a chunk accumulates
// whole sentences up to the size budget, the next chunk starts at the
// earliest boundary within the overlap of the previous end. A single
// sentence larger than the budget falls back to plain windows over itself.
func (c *Chunker) sentenceSpans(text string) []span {
	runes := []rune(text)
	byteAt := runeByteOffsets(text, len(runes))
	bounds := sentenceBounds(text, byteAt)

	maxSize := c.cfg.MaxChunkSize

	var spans []span
	start := 0 // rune index
	for start < len(runes) {
		end := start
		for _, b := range bounds {
			if b <= start {
				continue
			}
			if b-start > maxSize {
				break
			}
			end = b
		}

		if end == start {
			// no whole sentence fits: take a plain window
			end = start + maxSize
			if end > len(runes) {
				end = len(runes)
			}
		}
		spans = append(spans, span{start: byteAt[start], end: byteAt[end]})
		if end >= len(runes) {
			break
		}

		next := end
		for _, b := range bounds {
			if b >= end-c.cfg.OverlapSize && b < end {
				next = b
				break
			}
		}
		if next <= start {
			next = end
		}
		start = next
	}

	return mergeShortTail(spans, byteAt, c.cfg.MinChunkSize)
}

// mergeShortTail folds a final chunk shorter than minSize runes into its
// predecessor.
func mergeShortTail(spans []span, byteAt []int, minSize int) []span {
	if minSize <= 0 || len(spans) < 2 {
		return spans
	}
	last := spans[len(spans)-1]
	if runeLen(byteAt, last) >= minSize {
		return spans
	}
	spans[len(spans)-2].end = last.end
	return spans[:len(spans)-1]
}

func runeLen(byteAt []int, sp span) int {
	n := 0
	for _, b := range byteAt {
		if b > sp.start && b <= sp.end {
			n++
		}
	}
	return n
}

// sentenceBounds returns rune indices immediately after each sentence end,
// plus the end of text.
func sentenceBounds(text string, byteAt []int) []int {
	byteToRune := make(map[int]int, len(byteAt))
	for r, b := range byteAt {
		byteToRune[b] = r
	}

	var bounds []int
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if r, ok := byteToRune[loc[1]]; ok {
			bounds = append(bounds, r)
		}
	}
	last := len(byteAt) - 1
	if len(bounds) == 0 || bounds[len(bounds)-1] != last {
		bounds = append(bounds, last)
	}
	return bounds
}

// runeByteOffsets maps rune index -> byte offset; index n maps to len(text).
func runeByteOffsets(text string, n int) []int {
	offsets := make([]int, n+1)
	i := 0
	for pos := range text {
		offsets[i] = pos
		i++
	}
	offsets[n] = len(text)
	return offsets
}

// blockSpan resolves the 1-based first/last block indices covering a byte range.
func blockSpan(blocks []domain.TextBlock, start, end int) (int, int) {
	if len(blocks) == 0 {
		return 1, 1
	}
	first, last := blocks[0].Index, blocks[len(blocks)-1].Index
	for _, b := range blocks {
		if b.End > start {
			first = b.Index
			break
		}
	}
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].Start < end {
			last = blocks[i].Index
			break
		}
	}
	return first, last
}
