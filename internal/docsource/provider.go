package docsource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no file exists for a document id.
var ErrNotFound = errors.New("document file not found")

// Provider resolves document ids to their stored PDF bytes.
type Provider interface {
	Load(documentID string) ([]byte, error)
}

// DirProvider stores one PDF file per document id under a directory.
type DirProvider struct {
	dir string
}

func NewDirProvider(dir string) (*DirProvider, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	return &DirProvider{dir: dir}, nil
}

func (p *DirProvider) path(documentID string) string {
	return filepath.Join(p.dir, documentID+".pdf")
}

// Load reads the PDF bytes for documentID.
func (p *DirProvider) Load(documentID string) ([]byte, error) {
	data, err := os.ReadFile(p.path(documentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read document %s: %w", documentID, err)
	}
	return data, nil
}

// Save writes the PDF bytes for documentID, replacing any prior file.
func (p *DirProvider) Save(documentID string, data []byte) error {
	if err := os.WriteFile(p.path(documentID), data, 0644); err != nil {
		return fmt.Errorf("write document %s: %w", documentID, err)
	}
	return nil
}

// Remove deletes the stored file for documentID.
func (p *DirProvider) Remove(documentID string) error {
	if err := os.Remove(p.path(documentID)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
