package store

import (
	"context"
	"time"
)

// Document is a stored document record; the bytes live in the file
// provider, keyed by ID.
type Document struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	PageCount int       `json:"pageCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateDocument inserts a document record.
func (s *Store) CreateDocument(ctx context.Context, d Document) (Document, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO documents (id, owner_id, name, page_count)
		VALUES ($1, $2, $3, $4)
		RETURNING id, owner_id, name, page_count, created_at`,
		d.ID, d.OwnerID, d.Name, d.PageCount)

	var out Document
	err := row.Scan(&out.ID, &out.OwnerID, &out.Name, &out.PageCount, &out.CreatedAt)
	return out, err
}

// GetDocument returns a document record, or pgx.ErrNoRows.
func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, page_count, created_at
		FROM documents WHERE id = $1`, id)

	var out Document
	err := row.Scan(&out.ID, &out.OwnerID, &out.Name, &out.PageCount, &out.CreatedAt)
	return out, err
}

// ListDocumentsForUser returns the documents owned by a user, newest first.
func (s *Store) ListDocumentsForUser(ctx context.Context, ownerID string) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, page_count, created_at
		FROM documents WHERE owner_id = $1
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Name, &d.PageCount, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document record and its annotations.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}
