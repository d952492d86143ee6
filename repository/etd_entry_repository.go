package repository

import (
	"context"
	"errors"
	"time"

	"etd-catalog/database"
	"etd-catalog/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound wird geliefert, wenn kein Eintrag mit der ID existiert.
var ErrNotFound = errors.New("etd entry not found")

// EtdEntryRepository ist der relationale Record-Store der Katalog-Einträge.
type EtdEntryRepository interface {
	// Insert legt den Eintrag an und setzt die von der DB vergebene ID.
	Insert(ctx context.Context, entry *models.EtdEntry) (uint, error)
	FindByID(ctx context.Context, id uint) (*models.EtdEntry, error)
	// Update persistiert den Eintrag und legt neu angehängte Dokumente an.
	Update(ctx context.Context, entry *models.EtdEntry) error
	// Delete entfernt den Eintrag samt Dokument-Referenzen, Kommentaren und Kanten.
	Delete(ctx context.Context, id uint) error
	ExistsByID(ctx context.Context, id uint) (bool, error)
	// FindOrphans liefert Einträge ohne Dokumente, die vor before angelegt wurden.
	FindOrphans(ctx context.Context, before time.Time) ([]models.EtdEntry, error)
	// FindByUser liefert die Einträge eines Besitzers.
	FindByUser(ctx context.Context, userID uint) ([]models.EtdEntry, error)
}

type etdEntryRepository struct {
	db *gorm.DB
}

func NewEtdEntryRepository(db *gorm.DB) EtdEntryRepository {
	return &etdEntryRepository{db: db}
}

func (r *etdEntryRepository) Insert(ctx context.Context, entry *models.EtdEntry) (uint, error) {
	if err := r.db.WithContext(ctx).Omit("Documents", "ClaimComments").Create(entry).Error; err != nil {
		return 0, err
	}
	return entry.ID, nil
}

func (r *etdEntryRepository) FindByID(ctx context.Context, id uint) (*models.EtdEntry, error) {
	var entry models.EtdEntry
	err := r.db.WithContext(ctx).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		First(&entry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *etdEntryRepository) Update(ctx context.Context, entry *models.EtdEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.EtdEntry{}).
			Where("id = ?", entry.ID).
			Updates(map[string]any{"user_id": entry.UserID, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		for i := range entry.Documents {
			doc := &entry.Documents[i]
			if doc.ID != 0 {
				continue
			}
			doc.EtdEntryID = entry.ID
			if err := tx.Create(doc).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete sperrt zuerst den Eintrag und seine Kommentare, damit keine Reaktion oder neuer
// Kommentar zwischen dem Löschen der Kanten und dem der Kommentare landet.
func (r *etdEntryRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked []uint
		if err := database.Lock(tx, clause.LockingStrengthUpdate).Model(&models.EtdEntry{}).
			Where("id = ?", id).Pluck("id", &locked).Error; err != nil {
			return err
		}
		if len(locked) == 0 {
			return ErrNotFound
		}

		var commentIDs []uint
		if err := database.Lock(tx, clause.LockingStrengthUpdate).Model(&models.ClaimComment{}).
			Where("etd_entry_id = ?", id).Order("id asc").Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("claim_comment_id IN ?", commentIDs).Delete(&models.LikedComment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("claim_comment_id IN ?", commentIDs).Delete(&models.DislikedComment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", commentIDs).Delete(&models.ClaimComment{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("etd_entry_id = ?", id).Delete(&models.FavoriteEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("etd_entry_id = ?", id).Delete(&models.EtdDocument{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&models.EtdEntry{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *etdEntryRepository) ExistsByID(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EtdEntry{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *etdEntryRepository) FindOrphans(ctx context.Context, before time.Time) ([]models.EtdEntry, error) {
	var entries []models.EtdEntry
	err := r.db.WithContext(ctx).
		Where("created_at < ?", before).
		Where("NOT EXISTS (SELECT 1 FROM etd_documents d WHERE d.etd_entry_id = etd_entries.id)").
		Order("id asc").
		Find(&entries).Error
	return entries, err
}

func (r *etdEntryRepository) FindByUser(ctx context.Context, userID uint) ([]models.EtdEntry, error) {
	var entries []models.EtdEntry
	err := r.db.WithContext(ctx).
		Preload("Documents").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&entries).Error
	return entries, err
}
