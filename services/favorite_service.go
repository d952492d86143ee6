package services

import (
	"context"

	"etd-catalog/etderr"
	"etd-catalog/models"
	"etd-catalog/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FavoriteService verwaltet die Favoritenmenge eines Users.
type FavoriteService struct {
	DB      *gorm.DB
	Entries repository.EtdEntryRepository
	Logger  *zap.Logger
}

func NewFavoriteService(db *gorm.DB, entries repository.EtdEntryRepository, logger *zap.Logger) *FavoriteService {
	return &FavoriteService{DB: db, Entries: entries, Logger: logger}
}

// Add nimmt den Eintrag in die Favoriten auf. Ist er schon enthalten, passiert nichts.
func (s *FavoriteService) Add(ctx context.Context, userID, entryID uint) error {
	exists, err := s.Entries.ExistsByID(ctx, entryID)
	if err != nil {
		return err
	}
	if !exists {
		return etderr.New(etderr.RecordNotFound, "record %d not found", entryID)
	}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.FavoriteEntry{UserID: userID, EtdEntryID: entryID}).Error
}

// Remove entfernt den Eintrag aus den Favoriten.
func (s *FavoriteService) Remove(ctx context.Context, userID, entryID uint) error {
	res := s.DB.WithContext(ctx).
		Where("user_id = ? AND etd_entry_id = ?", userID, entryID).
		Delete(&models.FavoriteEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return etderr.New(etderr.FavoriteNotFound, "record %d is not a favorite", entryID)
	}
	return nil
}

// Check liefert parallel zu entryIDs, ob der Eintrag ein Favorit ist.
func (s *FavoriteService) Check(ctx context.Context, userID uint, entryIDs []uint) ([]bool, error) {
	out := make([]bool, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}
	var found []uint
	if err := s.DB.WithContext(ctx).Model(&models.FavoriteEntry{}).
		Where("user_id = ? AND etd_entry_id IN ?", userID, entryIDs).
		Pluck("etd_entry_id", &found).Error; err != nil {
		return nil, err
	}
	set := make(map[uint]bool, len(found))
	for _, id := range found {
		set[id] = true
	}
	for i, id := range entryIDs {
		out[i] = set[id]
	}
	return out, nil
}

// List liefert die favorisierten Einträge, die zuletzt hinzugefügten zuerst.
func (s *FavoriteService) List(ctx context.Context, userID uint) ([]models.EtdEntry, error) {
	var entries []models.EtdEntry
	err := s.DB.WithContext(ctx).
		Preload("Documents").
		Joins("JOIN user_favorite_entries f ON f.etd_entry_id = etd_entries.id").
		Where("f.user_id = ?", userID).
		Order("f.created_at desc, etd_entries.id desc").
		Find(&entries).Error
	return entries, err
}
