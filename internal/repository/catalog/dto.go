package catalog

import (
	"strconv"

	"github.com/kailas-cloud/ragline/internal/domain"
)

// buildHashFields converts a domain Document into a flat map[string]string for HSET.
func buildHashFields(doc *domain.Document) map[string]string {
	return map[string]string{
		"title":        doc.Title(),
		"format":       string(doc.Format()),
		"size_bytes":   strconv.Itoa(doc.SizeBytes()),
		"live_version": strconv.Itoa(doc.LiveVersion()),
		"chunk_count":  strconv.Itoa(doc.ChunkCount()),
		"ingested_at":  strconv.FormatInt(doc.IngestedAt(), 10),
	}
}

// parseHashFields converts a flat hash map back into a domain Document.
func parseHashFields(id string, m map[string]string) domain.Document {
	ingestedAt, _ := strconv.ParseInt(m["ingested_at"], 10, 64)
	return domain.ReconstructDocument(
		id,
		m["title"],
		domain.Format(m["format"]),
		atoiOrZero(m["size_bytes"]),
		atoiOrZero(m["live_version"]),
		atoiOrZero(m["chunk_count"]),
		ingestedAt,
	)
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
