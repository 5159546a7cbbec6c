package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// ErrInvalidPath is returned for relative paths that escape the storage root
var ErrInvalidPath = errors.New("invalid storage path")

// StoredFile describes a file written by Save
type StoredFile struct {
	Path     string // relative to the storage root, forward slashes
	Filename string // sanitised original name
	Size     int64
	Checksum string // hex BLAKE2b-256 of the bytes
}

// LocalStorage handles file storage on the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	// Ensure the base directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Save streams r into subDir under a unique name derived from filename.
// The checksum is computed while writing.
func (s *LocalStorage) Save(r io.Reader, filename, subDir string) (*StoredFile, error) {
	safeName := SafeFilename(filename)
	relPath := path.Join(subDir, fmt.Sprintf("%s_%s", generateID(), safeName))

	fullPath, err := s.FullPath(relPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Create destination file
	dst, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	hash, err := blake2b.New256(nil)
	if err != nil {
		dst.Close()
		os.Remove(fullPath)
		return nil, fmt.Errorf("failed to init checksum: %w", err)
	}

	size, err := io.Copy(io.MultiWriter(dst, hash), r)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// Clean up on failure
		os.Remove(fullPath)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	return &StoredFile{
		Path:     relPath,
		Filename: safeName,
		Size:     size,
		Checksum: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// Open returns a stored file for reading
func (s *LocalStorage) Open(relativePath string) (*os.File, error) {
	fullPath, err := s.FullPath(relativePath)
	if err != nil {
		return nil, err
	}
	return os.Open(fullPath)
}

// Delete removes a file. A missing file is not an error.
func (s *LocalStorage) Delete(relativePath string) error {
	fullPath, err := s.FullPath(relativePath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists checks if a file exists
func (s *LocalStorage) Exists(relativePath string) bool {
	fullPath, err := s.FullPath(relativePath)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && !info.IsDir()
}

// FullPath resolves a relative path inside the storage root
func (s *LocalStorage) FullPath(relativePath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(relativePath))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, relativePath)
	}
	return filepath.Join(s.basePath, clean), nil
}

// SafeFilename strips any directory components a client sent with the name
func SafeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." || base == "" {
		return "upload"
	}
	return base
}

// ObligationDir is the subdirectory holding an obligation's evidence
func ObligationDir(obligationID uint) string {
	return fmt.Sprintf("obligation_%d", obligationID)
}

// generateID creates a unique identifier for filenames
func generateID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
