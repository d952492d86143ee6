package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore legt Dokumente im lokalen Dateisystem unterhalb von BaseDir ab.
type LocalStore struct {
	BaseDir string
}

// NewLocalStore erstellt BaseDir, falls nötig.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create store base dir: %w", err)
	}
	return &LocalStore{BaseDir: abs}, nil
}

// resolve übersetzt einen logischen Pfad und verhindert das Verlassen von BaseDir.
func (s *LocalStore) resolve(p string) (string, error) {
	full := filepath.Join(s.BaseDir, filepath.FromSlash(p))
	rel, err := filepath.Rel(s.BaseDir, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q outside of store", p)
	}
	return full, nil
}

func (s *LocalStore) CreateDirectory(ctx context.Context, dir string) error {
	full, err := s.resolve(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.Mkdir(full, 0o755)
}

func (s *LocalStore) WriteFile(ctx context.Context, p string, data []byte) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	// Erst temporär schreiben, dann umbenennen, damit Leser nie eine halbe Datei sehen
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (s *LocalStore) DeleteDirectory(ctx context.Context, dir string) error {
	full, err := s.resolve(dir)
	if err != nil {
		return err
	}
	return os.RemoveAll(full)
}

func (s *LocalStore) OpenForRead(ctx context.Context, p string) (io.ReadCloser, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	return f, err
}
