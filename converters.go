package ragline

import (
	"github.com/kailas-cloud/ragline/internal/domain"
	ingestuc "github.com/kailas-cloud/ragline/internal/usecase/ingest"
)

func receiptFromInternal(r ingestuc.Receipt) Receipt {
	return Receipt{
		DocumentID: r.DocumentID,
		Version:    r.Version,
		Chunks:     r.Chunks,
		Vectors:    r.Vectors,
		TokensUsed: r.TokensUsed,
	}
}

func documentFromInternal(d domain.Document) Document {
	return Document{
		ID:          d.ID(),
		Title:       d.Title(),
		Format:      string(d.Format()),
		SizeBytes:   d.SizeBytes(),
		LiveVersion: d.LiveVersion(),
		ChunkCount:  d.ChunkCount(),
		IngestedAt:  d.IngestedAt(),
	}
}

func answerFromInternal(a domain.Answer) Answer {
	citations := make([]Citation, len(a.Citations))
	for i, c := range a.Citations {
		citations[i] = Citation{
			Ordinal:    c.Ordinal,
			Kind:       string(c.Kind),
			DocumentID: c.DocumentID,
			ChunkID:    c.ChunkID,
			URL:        c.URL,
			Title:      c.Title,
			Snippet:    c.Snippet,
			Score:      c.Score,
		}
	}
	return Answer{
		Query:            a.Query,
		Markdown:         a.Markdown,
		Citations:        citations,
		SourcesUsed:      a.SourcesUsed,
		Partial:          a.Partial,
		Grounding:        Grounding(a.Grounding),
		PromptTokens:     a.PromptTokens,
		CompletionTokens: a.CompletionTokens,
		Timings:          Timings(a.Timings),
	}
}
