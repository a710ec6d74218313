package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// LocalArchive implements Archive on the local filesystem
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates a new local archive instance
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &LocalArchive{
		basePath: basePath,
	}, nil
}

// Put stores a transcript locally
func (a *LocalArchive) Put(ctx context.Context, reportID uuid.UUID, data io.Reader) (string, error) {
	archivePath := transcriptPath(reportID, time.Now())
	fullPath := filepath.Join(a.basePath, archivePath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create transcript file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		os.Remove(fullPath) // Clean up on error
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}

	return archivePath, nil
}

// Get retrieves a transcript from the local archive
func (a *LocalArchive) Get(ctx context.Context, archivePath string) (io.ReadCloser, error) {
	fullPath := filepath.Join(a.basePath, archivePath)

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("transcript not found: %s", archivePath)
		}
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}

	return file, nil
}

// Delete removes a transcript from the local archive
func (a *LocalArchive) Delete(ctx context.Context, archivePath string) error {
	fullPath := filepath.Join(a.basePath, archivePath)

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}

	return nil
}
