package search

import (
	"context"
	"errors"
	"fmt"

	"etd-catalog/config"
	"etd-catalog/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound wird geliefert, wenn für die ID keine Metadaten im Index liegen.
var ErrNotFound = errors.New("etd entry meta not found")

// MetaIndex ist der Suchindex der Eintrags-Metadaten. Die Anfrage- und Ranking-Logik
// liegt beim Backend; der Katalog benutzt nur Schreiben, Löschen und Lookups per ID.
type MetaIndex interface {
	// Index legt die Metadaten unter meta.ID ab oder ersetzt sie.
	Index(ctx context.Context, meta *models.EtdEntryMeta) error
	// DeleteByID ist idempotent: fehlende Einträge sind kein Fehler.
	DeleteByID(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*models.EtdEntryMeta, error)
	// FindAllByIDs liefert die gefundenen Metadaten in der Reihenfolge von ids.
	FindAllByIDs(ctx context.Context, ids []uint) ([]models.EtdEntryMeta, error)
}

// NewMetaIndex wählt den Index nach cfg.SearchBackend. Für Weaviate wird die Klasse bei Bedarf angelegt.
func NewMetaIndex(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *zap.Logger) (MetaIndex, error) {
	switch cfg.SearchBackend {
	case "postgres":
		return NewPostgresIndex(db), nil
	case "weaviate":
		client, err := NewWeaviateClient(cfg.WeaviateURL)
		if err != nil {
			return nil, err
		}
		idx := NewWeaviateIndex(client, cfg.WeaviateClass, logger)
		if err := idx.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return idx, nil
	}
	return nil, fmt.Errorf("unknown search backend %q", cfg.SearchBackend)
}
