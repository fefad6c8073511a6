package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"partykit/internal/domain"
	"partykit/pkg/zip"
)

// FileStore writes exported kits below a local output directory.
type FileStore struct {
	basePath string
}

// NewFileStore creates basePath when missing.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Path resolves a key returned by Write to its location on disk.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// Write stores data under the relative key and returns the cleaned key.
// Keys never escape the base path.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := s.Path(cleanKey)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := writeFileAtomic(fullPath, data); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return cleanKey, nil
}

// writeFileAtomic writes to a temp file beside target and renames it into
// place, so target is either absent, the previous version or complete.
func writeFileAtomic(target string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// WriteArchive stores an exported kit archive under its own filename.
func (s *FileStore) WriteArchive(ctx context.Context, archive *zip.Archive) (string, error) {
	if archive == nil {
		return "", errors.New("storage: nothing to write")
	}
	return s.Write(ctx, archive.Filename, archive.Data)
}

// WriteSingles stores every generated image as <dir>/<label>.png and returns
// the keys in result order. It stops at the first failure.
func (s *FileStore) WriteSingles(ctx context.Context, dir string, results []domain.GeneratedImage) ([]string, error) {
	keys := make([]string, 0, len(results))
	for _, img := range results {
		data, err := zip.Payload(img)
		if err != nil {
			return keys, fmt.Errorf("storage: %s: %w", img.Type, err)
		}
		key, err := s.Write(ctx, path.Join(dir, zip.SingleFilename(img.Label)), data)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimLeft(strings.TrimPrefix(key, "./"), "/")
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
