package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"etd-catalog/config"
)

// ErrNotExist wird von OpenForRead geliefert, wenn die Datei fehlt.
var ErrNotExist = errors.New("file does not exist")

// FileStore legt die Dokumente der Einträge ab. Pfade kommen vom PathMapper.
type FileStore interface {
	// CreateDirectory legt das Verzeichnis an; existiert es bereits, ist das ein Fehler.
	CreateDirectory(ctx context.Context, dir string) error
	// WriteFile schreibt data nach p und überschreibt eine vorhandene Datei.
	WriteFile(ctx context.Context, p string, data []byte) error
	// DeleteDirectory entfernt das Verzeichnis samt Inhalt. Fehlt es, ist das kein Fehler.
	DeleteDirectory(ctx context.Context, dir string) error
	OpenForRead(ctx context.Context, p string) (io.ReadCloser, error)
}

// NewFileStore wählt die Ablage nach cfg.StoreBackend.
func NewFileStore(cfg *config.Config) (FileStore, error) {
	switch cfg.StoreBackend {
	case "s3":
		client, err := NewS3Client(cfg)
		if err != nil {
			return nil, fmt.Errorf("create s3 client: %w", err)
		}
		return NewS3Store(client, cfg.S3Bucket), nil
	case "local":
		store, err := NewLocalStore(cfg.LocalStoreDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
