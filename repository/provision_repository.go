package repository

import (
	"context"
	"fmt"
	"strings"

	"clauseguard-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ProvisionRepository handles database operations for the statutory
// provisions corpus. The corpus is read-only at runtime; it is populated by
// cmd/provisions-ingest.
type ProvisionRepository struct {
	db *pgxpool.Pool
}

// NewProvisionRepository creates a new provision repository
func NewProvisionRepository(db *pgxpool.Pool) *ProvisionRepository {
	return &ProvisionRepository{db: db}
}

// formatVector formats an embedding vector as a string for pgx
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}
	var parts []string
	for _, v := range embedding {
		parts = append(parts, fmt.Sprintf("%.6f", v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Search returns the provision chunks nearest to the query embedding by
// cosine distance.
// embedding: query embedding vector (768 dimensions)
// limit: maximum number of chunks to return
func (r *ProvisionRepository) Search(
	ctx context.Context,
	embedding []float64,
	limit int,
) ([]models.ProvisionChunk, error) {
	if len(embedding) != 768 {
		return nil, fmt.Errorf("embedding must be 768 dimensions, got %d", len(embedding))
	}

	vectorStr := formatVector(embedding)

	query := `
		SELECT
			id,
			chunk_text,
			source_act,
			provision_citation,
			chunk_index,
			metadata,
			embedding <=> $1::vector AS distance
		FROM provision_chunks
		ORDER BY
			embedding <=> $1::vector
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, vectorStr, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query provision chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.ProvisionChunk
	for rows.Next() {
		var chunk models.ProvisionChunk
		err := rows.Scan(
			&chunk.ID,
			&chunk.Text,
			&chunk.SourceAct,
			&chunk.ProvisionCitation,
			&chunk.ChunkIndex,
			&chunk.Metadata,
			&chunk.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provision chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating provision chunks: %w", err)
	}

	return chunks, nil
}
