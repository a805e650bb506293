package repository

import (
	"context"

	"clauseguard-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository handles database operations for uploaded contract
// documents
type DocumentRepository struct {
	db *pgxpool.Pool
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create creates a new contract document record
func (r *DocumentRepository) Create(ctx context.Context, doc *models.ContractDocument) error {
	query := `
		INSERT INTO contract_documents (
			id, filename, mime_type, size, storage_path, clause_count
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	return r.db.QueryRow(
		ctx, query,
		doc.ID,
		doc.Filename,
		doc.MimeType,
		doc.Size,
		doc.StoragePath,
		doc.ClauseCount,
	).Scan(&doc.CreatedAt)
}

// GetByID retrieves a contract document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ContractDocument, error) {
	doc := &models.ContractDocument{}
	query := `
		SELECT id, filename, mime_type, size, storage_path, clause_count, created_at
		FROM contract_documents
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&doc.ID,
		&doc.Filename,
		&doc.MimeType,
		&doc.Size,
		&doc.StoragePath,
		&doc.ClauseCount,
		&doc.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	return doc, nil
}

// List retrieves recently uploaded contract documents
func (r *DocumentRepository) List(ctx context.Context, limit int) ([]*models.ContractDocument, error) {
	query := `
		SELECT id, filename, mime_type, size, storage_path, clause_count, created_at
		FROM contract_documents
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.ContractDocument
	for rows.Next() {
		doc := &models.ContractDocument{}
		err := rows.Scan(
			&doc.ID,
			&doc.Filename,
			&doc.MimeType,
			&doc.Size,
			&doc.StoragePath,
			&doc.ClauseCount,
			&doc.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// Delete deletes a contract document record
func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM contract_documents WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
