package search

import (
	"context"
	"errors"

	"etd-catalog/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresIndex hält die Metadaten in der Tabelle etd_entry_metas, für Installationen ohne Weaviate.
type PostgresIndex struct {
	DB *gorm.DB
}

func NewPostgresIndex(db *gorm.DB) *PostgresIndex {
	return &PostgresIndex{DB: db}
}

func (p *PostgresIndex) Index(ctx context.Context, meta *models.EtdEntryMeta) error {
	if meta.ID == 0 {
		return errors.New("meta without entry id")
	}
	return p.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(meta).Error
}

func (p *PostgresIndex) DeleteByID(ctx context.Context, id uint) error {
	return p.DB.WithContext(ctx).Delete(&models.EtdEntryMeta{}, id).Error
}

func (p *PostgresIndex) FindByID(ctx context.Context, id uint) (*models.EtdEntryMeta, error) {
	var meta models.EtdEntryMeta
	err := p.DB.WithContext(ctx).First(&meta, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func (p *PostgresIndex) FindAllByIDs(ctx context.Context, ids []uint) ([]models.EtdEntryMeta, error) {
	if len(ids) == 0 {
		return []models.EtdEntryMeta{}, nil
	}
	var metas []models.EtdEntryMeta
	if err := p.DB.WithContext(ctx).Where("id IN ?", ids).Find(&metas).Error; err != nil {
		return nil, err
	}
	return orderByIDs(metas, ids), nil
}

// orderByIDs sortiert metas in die Reihenfolge von ids; fehlende IDs entfallen.
func orderByIDs(metas []models.EtdEntryMeta, ids []uint) []models.EtdEntryMeta {
	byID := make(map[uint]models.EtdEntryMeta, len(metas))
	for _, m := range metas {
		byID[m.ID] = m
	}
	out := make([]models.EtdEntryMeta, 0, len(metas))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, m)
			delete(byID, id)
		}
	}
	return out
}
