package index

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/ragline/internal/db"
	"github.com/kailas-cloud/ragline/internal/domain"
)

// recordToFields converts an IndexRecord into a flat map[string]string for HSET.
func recordToFields(rec *domain.IndexRecord) map[string]string {
	return map[string]string{
		"document_id": rec.DocumentID,
		"version":     strconv.Itoa(rec.Version),
		"seq":         strconv.Itoa(rec.Seq),
		"text":        rec.Text,
		"start":       strconv.Itoa(rec.Start),
		"end":         strconv.Itoa(rec.End),
		"first_block": strconv.Itoa(rec.FirstBlock),
		"last_block":  strconv.Itoa(rec.LastBlock),
		"vector":      vectorToBytes(rec.Vector),
	}
}

// entryToChunk converts one FT.SEARCH hit back into a RetrievedChunk.
func entryToChunk(entry db.SearchEntry) (domain.RetrievedChunk, error) {
	docID := entry.Fields["document_id"]
	if docID == "" {
		return domain.RetrievedChunk{}, fmt.Errorf("entry %s missing document_id", entry.Key)
	}

	version, err := strconv.Atoi(entry.Fields["version"])
	if err != nil {
		return domain.RetrievedChunk{}, fmt.Errorf("entry %s bad version: %w", entry.Key, err)
	}
	seq, err := strconv.Atoi(entry.Fields["seq"])
	if err != nil {
		return domain.RetrievedChunk{}, fmt.Errorf("entry %s bad seq: %w", entry.Key, err)
	}

	return domain.RetrievedChunk{
		ChunkID:    strings.TrimPrefix(entry.Key, chunkPrefix),
		DocumentID: docID,
		Version:    version,
		Seq:        seq,
		Text:       entry.Fields["text"],
		Start:      atoiOrZero(entry.Fields["start"]),
		End:        atoiOrZero(entry.Fields["end"]),
		FirstBlock: atoiOrZero(entry.Fields["first_block"]),
		LastBlock:  atoiOrZero(entry.Fields["last_block"]),
		Score:      entry.Score,
	}, nil
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
