package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/markline/markline/backend-go/internal/annotation"
)

// ReplacePage overwrites the stored annotation collection for one page of a
// document in a single transaction. Last write wins; concurrent-editing
// conflict resolution is deliberately out of scope.
func (s *Store) ReplacePage(ctx context.Context, documentID string, page int, annotations []*annotation.Annotation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM annotations WHERE document_id = $1 AND page = $2`,
		documentID, page)
	if err != nil {
		return fmt.Errorf("clear page: %w", err)
	}

	for _, a := range annotations {
		payload, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal annotation %s: %w", a.ID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO annotations (id, document_id, page, author, payload)
			VALUES ($1, $2, $3, $4, $5)`,
			a.ID, documentID, a.PageNumber, a.Author, payload)
		if err != nil {
			return fmt.Errorf("insert annotation %s: %w", a.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// ListByDocument returns every annotation of a document ordered by page and
// insertion order.
func (s *Store) ListByDocument(ctx context.Context, documentID string) ([]*annotation.Annotation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM annotations
		WHERE document_id = $1
		ORDER BY page, seq`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAnnotations(rows)
}

// ListByPage returns the annotations of one page in insertion order.
func (s *Store) ListByPage(ctx context.Context, documentID string, page int) ([]*annotation.Annotation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM annotations
		WHERE document_id = $1 AND page = $2
		ORDER BY seq`, documentID, page)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAnnotations(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanAnnotations(rows rowScanner) ([]*annotation.Annotation, error) {
	var out []*annotation.Annotation
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var a annotation.Annotation
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("unmarshal annotation: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
