package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
)

// Search returns the topK chunks closest to query by cosine distance.
// Ranking is brute force over all candidate embeddings: the corpus is a few
// hundred documents, so a linear scan inside one SELECT is both fast enough
// and gives a consistent snapshot without extra locking.
func (s *Store) Search(ctx context.Context, query []float32, topK int, documentID string) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", domain.ErrInvalidArgument)
	}

	sqlQuery := `
		SELECT c.id, c.document_id, c.position, c.page, c.content, c.embedding,
			` + documentColumnsPrefixed + `
		FROM chunks c
		JOIN documents d ON d.id = c.document_id`
	args := []any{}
	if documentID != "" {
		sqlQuery += " WHERE c.document_id = ?"
		args = append(args, documentID)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks for search: %w", err)
	}
	defer rows.Close()

	var results []domain.RetrievedChunk
	for rows.Next() {
		var chunk domain.Chunk
		var embeddingBlob []byte
		var doc domain.Document
		var status string
		var publishedAt, processedAt sql.NullTime

		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Page,
			&chunk.Text, &embeddingBlob,
			&doc.ID, &doc.Filename, &doc.Title, &doc.SourceURL, &doc.PDFURL,
			&publishedAt, &doc.SHA256, &doc.SizeBytes, &doc.LocalPath, &doc.PageCount,
			&status, &doc.ErrorMessage, &doc.CreatedAt, &processedAt); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}

		chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
		doc.Status = domain.DocumentStatus(status)
		if publishedAt.Valid {
			doc.PublishedAt = &publishedAt.Time
		}
		if processedAt.Valid {
			doc.ProcessedAt = &processedAt.Time
		}

		if len(chunk.Embedding) != len(query) {
			// Skip chunks embedded under a different model configuration.
			continue
		}

		results = append(results, domain.RetrievedChunk{
			Chunk:    chunk,
			Document: doc,
			Distance: cosineDistance(query, chunk.Embedding),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search rows: %w", err)
	}

	// Ascending distance; ties broken by (document ID, chunk position) so
	// equal-distance results are stable across runs.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		if results[i].Chunk.DocumentID != results[j].Chunk.DocumentID {
			return results[i].Chunk.DocumentID < results[j].Chunk.DocumentID
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// documentColumnsPrefixed mirrors documentColumns with the d alias for joins.
const documentColumnsPrefixed = `d.id, d.filename, d.title, d.source_url, d.pdf_url, d.published_at,
	d.sha256, d.size_bytes, d.local_path, d.page_count, d.status, d.error_message,
	d.created_at, d.processed_at`

// cosineDistance computes 1 - cosine similarity of two equal-length vectors.
// Zero vectors are treated as maximally distant.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
