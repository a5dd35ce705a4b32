// Package fs keeps one JSON file per mapping under a root directory, for
// single-node deployments without a database.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/filmzi/filelink/backend/internal/storage/record"
	"github.com/filmzi/filelink/shared/domain"
	internal_errors "github.com/filmzi/filelink/shared/errors"
	"github.com/filmzi/filelink/shared/logger"
)

const fileSuffix = ".json"

type Storage struct {
	rootPath string
}

func New(rootPath string) (*Storage, error) {
	// Use filepath.Clean to prevent path traversal issues like "mappings/../"
	p := filepath.Clean(rootPath)
	if err := os.MkdirAll(p, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage directory %s: %w", p, err)
	}
	return &Storage{rootPath: p}, nil
}

// path maps an id to its file. Ids containing separators never reach here,
// but a cleaned base name keeps a bad id inside the root anyway.
func (s *Storage) path(id domain.ShortId) string {
	return filepath.Join(s.rootPath, filepath.Base(string(id))+fileSuffix)
}

// Put writes through a temp file and a rename, so readers see the old
// mapping or the new one, never a partial file. Last writer wins.
func (s *Storage) Put(ctx context.Context, m domain.FileMapping) error {
	data, err := record.Encode(m, record.Plain)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.rootPath, ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", m.ShortId, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", m.ShortId, err)
	}
	if err := os.Rename(tmp.Name(), s.path(m.ShortId)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store %s: %w", m.ShortId, err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, id domain.ShortId) (domain.FileMapping, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return domain.FileMapping{}, fmt.Errorf("fs %s: %w", id, internal_errors.NotFound)
	}
	if err != nil {
		return domain.FileMapping{}, fmt.Errorf("failed to read %s: %w", id, err)
	}
	return record.Decode(id, data)
}

// List reads every mapping file. Unreadable files are logged and skipped.
func (s *Storage) List(ctx context.Context) ([]domain.FileMapping, error) {
	entries, err := os.ReadDir(s.rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.rootPath, err)
	}

	var mappings []domain.FileMapping
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := domain.ShortId(strings.TrimSuffix(name, fileSuffix))
		m, err := s.Get(ctx, id)
		if err != nil {
			logger.Log.Warn("skipping unreadable mapping file", "file", name, "error", err)
			continue
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

// Ping checks the root is still a writable directory.
func (s *Storage) Ping(ctx context.Context) error {
	info, err := os.Stat(s.rootPath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.rootPath)
	}
	return nil
}
